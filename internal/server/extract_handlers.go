package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/mailsift/internal/extract"
	"github.com/dgellow/mailsift/internal/ioutil"
	jsonwriter "github.com/dgellow/mailsift/internal/json"
	"github.com/dgellow/mailsift/internal/log"
	"github.com/dgellow/mailsift/internal/storage"
	"github.com/dgellow/mailsift/internal/textenc"
)

// ExtractHandlers handles the extraction endpoints
type ExtractHandlers struct {
	storage        storage.Storage
	decoder        *textenc.Decoder
	maxUploadBytes int64
}

// NewExtractHandlers creates a new extract handlers instance
func NewExtractHandlers(storage storage.Storage, decoder *textenc.Decoder, maxUploadBytes int64) *ExtractHandlers {
	return &ExtractHandlers{
		storage:        storage,
		decoder:        decoder,
		maxUploadBytes: maxUploadBytes,
	}
}

// ExtractResponse is the success envelope shared by both extraction
// endpoints. Files is only present when artifacts were persisted.
type ExtractResponse struct {
	Success bool            `json:"success"`
	Total   int             `json:"total"`
	Emails  []string        `json:"emails"`
	Data    []extract.Entry `json:"data"`
	Files   *storage.Saved  `json:"files,omitempty"`
}

// UploadHandler extracts emails from an uploaded file and persists the
// results as a JSON+CSV artifact pair
func (h *ExtractHandlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	// Only accept POST
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		if isPayloadTooLarge(err) {
			h.writePayloadTooLarge(w)
			return
		}
		// A file input left empty arrives as a form value with an empty
		// filename, not as a file part.
		if errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0 {
			jsonwriter.WriteBadRequest(w, "No file selected")
			return
		}
		jsonwriter.WriteBadRequest(w, "No file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Filename == "" {
		jsonwriter.WriteBadRequest(w, "No file selected")
		return
	}

	data, err := ioutil.ReadAtMost(file, h.maxUploadBytes)
	if err != nil {
		if errors.Is(err, ioutil.ErrTooLarge) || isPayloadTooLarge(err) {
			h.writePayloadTooLarge(w)
			return
		}
		log.LogErrorWithFields("extract", "Failed to read uploaded file", map[string]any{
			"filename": header.Filename,
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to read uploaded file")
		return
	}

	text, encoding := h.decoder.Decode(data)
	entries := extract.Entries(text)

	record := &storage.Record{
		SourceFile:     header.Filename,
		ExtractionTime: time.Now(),
		TotalEmails:    len(entries),
		Emails:         entries,
	}
	saved, err := h.storage.Save(r.Context(), record)
	if err != nil {
		log.LogErrorWithFields("extract", "Failed to persist extraction artifacts", map[string]any{
			"filename": header.Filename,
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to save extraction results")
		return
	}

	log.LogInfoWithFields("extract", "Extraction complete", map[string]any{
		"source":   header.Filename,
		"encoding": encoding,
		"total":    len(entries),
		"json":     saved.JSONFile,
	})

	_ = jsonwriter.Write(w, ExtractResponse{
		Success: true,
		Total:   len(entries),
		Emails:  emailValues(entries),
		Data:    entries,
		Files:   saved,
	})
}

// TextHandler extracts emails from pasted text without persisting anything
func (h *ExtractHandlers) TextHandler(w http.ResponseWriter, r *http.Request) {
	// Only accept POST
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isPayloadTooLarge(err) {
			h.writePayloadTooLarge(w)
			return
		}
		jsonwriter.WriteBadRequest(w, "No text provided")
		return
	}
	if req.Text == "" {
		jsonwriter.WriteBadRequest(w, "No text provided")
		return
	}

	entries := extract.Entries(req.Text)

	_ = jsonwriter.Write(w, ExtractResponse{
		Success: true,
		Total:   len(entries),
		Emails:  emailValues(entries),
		Data:    entries,
	})
}

// DownloadCSVHandler builds a CSV attachment from a caller-provided email
// list. Company labels are re-derived server-side, never trusted from the
// request.
func (h *ExtractHandlers) DownloadCSVHandler(w http.ResponseWriter, r *http.Request) {
	// Only accept POST
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req struct {
		Emails []string `json:"emails"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isPayloadTooLarge(err) {
			h.writePayloadTooLarge(w)
			return
		}
		jsonwriter.WriteBadRequest(w, "No emails provided")
		return
	}
	if len(req.Emails) == 0 {
		jsonwriter.WriteBadRequest(w, "No emails provided")
		return
	}

	filename := fmt.Sprintf("extracted_emails_%s.csv", time.Now().Format("20060102_150405"))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(storage.EncodeCSV(req.Emails))
}

func (h *ExtractHandlers) writePayloadTooLarge(w http.ResponseWriter) {
	jsonwriter.WritePayloadTooLarge(w, fmt.Sprintf("File too large. Maximum size is %dMB.", h.maxUploadBytes>>20))
}

// isPayloadTooLarge reports whether err came from the MaxBytesReader limit
// rather than a malformed request.
func isPayloadTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func emailValues(entries []extract.Entry) []string {
	emails := make([]string, len(entries))
	for i, entry := range entries {
		emails[i] = entry.Email
	}
	return emails
}
