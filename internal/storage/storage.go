package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgellow/mailsift/internal/extract"
)

// ErrArtifactNotFound is returned when a requested artifact doesn't exist
var ErrArtifactNotFound = errors.New("artifact not found")

// Record is the persisted form of one extraction.
type Record struct {
	SourceFile     string          `json:"source_file"`
	ExtractionTime time.Time       `json:"extraction_time"`
	TotalEmails    int             `json:"total_emails"`
	Emails         []extract.Entry `json:"emails"`
}

// Summary is one history listing entry, derived from a stored JSON artifact.
type Summary struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
	Total    int    `json:"total"`
	Time     string `json:"time"`
}

// Saved names the artifact pair a Save produced.
type Saved struct {
	JSONFile string `json:"json"`
	CSVFile  string `json:"csv"`
}

// Storage persists extraction artifacts and backs the history API.
type Storage interface {
	// Save persists rec as a JSON+CSV artifact pair and returns the
	// generated filenames.
	Save(ctx context.Context, rec *Record) (*Saved, error)

	// Open returns a stored artifact's bytes by exact filename, or
	// ErrArtifactNotFound.
	Open(ctx context.Context, filename string) ([]byte, error)

	// List returns up to limit summaries, newest first. Artifacts that
	// fail to parse are skipped.
	List(ctx context.Context, limit int) ([]Summary, error)

	// Clear deletes all stored artifacts and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	// Prune deletes artifacts older than cutoff (ignored when zero) and
	// beyond the newest keep records (ignored when zero), returning how
	// many files were removed.
	Prune(ctx context.Context, cutoff time.Time, keep int) (int, error)

	Close() error
}

// CleanFilename reduces name to its base component so a crafted request
// cannot reach outside the artifact store. Returns "" for names with no
// usable base.
func CleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return ""
	}
	return name
}
