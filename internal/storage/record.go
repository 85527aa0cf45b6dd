package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgellow/mailsift/internal/crypto"
	"github.com/dgellow/mailsift/internal/extract"
)

// timestampLayout is the artifact-name timestamp, chosen so lexicographic
// name order matches recency.
const timestampLayout = "20060102_150405"

// artifactNames generates a fresh artifact pair name for an extraction at t.
// The random suffix keeps concurrent same-second requests from colliding.
func artifactNames(t time.Time) (jsonName, csvName string) {
	base := fmt.Sprintf("emails_%s_%s", t.Format(timestampLayout), crypto.FilenameSuffix())
	return base + ".json", base + ".csv"
}

// TimeFromName recovers the timestamp embedded in an artifact name such as
// emails_20240115_103005_1a2b3c4d.json.
func TimeFromName(name string) (time.Time, bool) {
	base := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(name), ".json"), ".csv")
	rest, ok := strings.CutPrefix(base, "emails_")
	if !ok || len(rest) < len(timestampLayout) {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, rest[:len(timestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// EncodeJSON renders the JSON artifact: source label, ISO-8601 extraction
// time, count, and the email/company pairs, 4-space indented.
func (r *Record) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// EncodeCSV renders the CSV artifact: an Email,Company/Domain header and one
// row per address. Companies are always re-derived from the address, never
// taken from a caller.
func EncodeCSV(emails []string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Email", "Company/Domain"})
	for _, email := range emails {
		_ = w.Write([]string{email, extract.Company(email)})
	}
	w.Flush()
	return buf.Bytes()
}

// emailValues flattens the record's entries to bare addresses for the CSV
// artifact.
func (r *Record) emailValues() []string {
	emails := make([]string, len(r.Emails))
	for i, entry := range r.Emails {
		emails[i] = entry.Email
	}
	return emails
}

// ParseSummary builds a history entry from a stored JSON artifact. Missing
// fields get display defaults; a record that does not parse at all is the
// caller's cue to skip it.
func ParseSummary(filename string, data []byte) (Summary, error) {
	var rec struct {
		SourceFile     string `json:"source_file"`
		ExtractionTime string `json:"extraction_time"`
		TotalEmails    int    `json:"total_emails"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Summary{}, fmt.Errorf("failed to parse artifact %s: %w", filename, err)
	}

	source := rec.SourceFile
	if source == "" {
		source = "Unknown"
	}
	return Summary{
		Filename: filename,
		Source:   source,
		Total:    rec.TotalEmails,
		Time:     rec.ExtractionTime,
	}, nil
}
