package json

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantError  string
	}{
		{
			name:       "bad request",
			write:      func(w http.ResponseWriter) { WriteBadRequest(w, "No text provided") },
			wantStatus: http.StatusBadRequest,
			wantError:  "No text provided",
		},
		{
			name:       "not found",
			write:      func(w http.ResponseWriter) { WriteNotFound(w, "File not found") },
			wantStatus: http.StatusNotFound,
			wantError:  "File not found",
		},
		{
			name:       "payload too large",
			write:      func(w http.ResponseWriter) { WritePayloadTooLarge(w, "File too large. Maximum size is 16MB.") },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "File too large. Maximum size is 16MB.",
		},
		{
			name:       "internal server error",
			write:      func(w http.ResponseWriter) { WriteInternalServerError(w, "Internal server error") },
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
		{
			name:       "unauthorized",
			write:      func(w http.ResponseWriter) { WriteUnauthorized(w, "Invalid admin token") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid admin token",
		},
		{
			name:       "method not allowed",
			write:      func(w http.ResponseWriter) { WriteMethodNotAllowed(w, "Method not allowed") },
			wantStatus: http.StatusMethodNotAllowed,
			wantError:  "Method not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			tt.write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if resp.Success {
				t.Error("success = true, want false")
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()

	if err := Write(w, map[string]any{"success": true, "total": 2}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if w.Code != http.StatusOK {
		t.Errorf("status = %v, want %v", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
}

func TestWriteResponseStatus(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteResponse(w, http.StatusCreated, ErrorResponse{Success: false, Error: "x"}); err != nil {
		t.Fatalf("WriteResponse() error = %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("status = %v, want %v", w.Code, http.StatusCreated)
	}
}
