package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgellow/mailsift/internal/log"
)

// Ensure MemoryStorage implements the Storage interface
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps artifacts in process memory. It backs unit tests and
// -dev runs where history need not survive a restart.
type MemoryStorage struct {
	mu    sync.RWMutex
	files map[string][]byte // artifact filename -> bytes
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		files: make(map[string][]byte),
	}
}

// Save stores the JSON and CSV artifacts for rec.
func (s *MemoryStorage) Save(_ context.Context, rec *Record) (*Saved, error) {
	jsonName, csvName := artifactNames(rec.ExtractionTime)

	jsonData, err := rec.EncodeJSON()
	if err != nil {
		return nil, err
	}
	csvData := EncodeCSV(rec.emailValues())

	s.mu.Lock()
	s.files[jsonName] = jsonData
	s.files[csvName] = csvData
	s.mu.Unlock()

	return &Saved{JSONFile: jsonName, CSVFile: csvName}, nil
}

// Open returns a stored artifact's bytes by filename.
func (s *MemoryStorage) Open(_ context.Context, filename string) ([]byte, error) {
	clean := CleanFilename(filename)
	if clean == "" {
		return nil, ErrArtifactNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[clean]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return data, nil
}

// List returns up to limit history summaries, newest first.
func (s *MemoryStorage) List(_ context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.jsonArtifactsLocked()
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		summary, err := ParseSummary(name, s.files[name])
		if err != nil {
			log.LogWarnWithFields("storage", "Skipping unparseable artifact", map[string]any{
				"filename": name,
				"error":    err.Error(),
			})
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Clear removes every stored artifact.
func (s *MemoryStorage) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.files)
	s.files = make(map[string][]byte)
	return removed, nil
}

// Prune deletes artifact pairs older than cutoff or beyond the newest keep
// records.
func (s *MemoryStorage) Prune(_ context.Context, cutoff time.Time, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for i, name := range s.jsonArtifactsLocked() {
		ts, ok := TimeFromName(name)
		expired := ok && !cutoff.IsZero() && ts.Before(cutoff)
		overflow := keep > 0 && i >= keep
		if !expired && !overflow {
			continue
		}

		for _, victim := range []string{name, strings.TrimSuffix(name, ".json") + ".csv"} {
			if _, ok := s.files[victim]; ok {
				delete(s.files, victim)
				removed++
			}
		}
	}
	return removed, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}

// jsonArtifactsLocked lists JSON artifact names newest first. Callers must
// hold at least a read lock.
func (s *MemoryStorage) jsonArtifactsLocked() []string {
	var names []string
	for name := range s.files {
		if strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(b, a)
	})
	return names
}
