package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dgellow/mailsift/internal/log"
)

// Ensure FilesystemStorage implements the Storage interface
var _ Storage = (*FilesystemStorage)(nil)

// FilesystemStorage persists each extraction as a JSON+CSV file pair in a
// single flat directory. It is the default backend and matches the on-disk
// history a single-host deployment expects.
type FilesystemStorage struct {
	dir string
}

// NewFilesystemStorage creates the output directory if needed and returns a
// storage rooted there.
func NewFilesystemStorage(dir string) (*FilesystemStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FilesystemStorage{dir: dir}, nil
}

// Save writes the JSON and CSV artifacts for rec.
func (s *FilesystemStorage) Save(_ context.Context, rec *Record) (*Saved, error) {
	jsonName, csvName := artifactNames(rec.ExtractionTime)

	jsonData, err := rec.EncodeJSON()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, jsonName), jsonData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write JSON artifact: %w", err)
	}

	csvData := EncodeCSV(rec.emailValues())
	if err := os.WriteFile(filepath.Join(s.dir, csvName), csvData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write CSV artifact: %w", err)
	}

	return &Saved{JSONFile: jsonName, CSVFile: csvName}, nil
}

// Open returns a stored artifact's bytes by filename.
func (s *FilesystemStorage) Open(_ context.Context, filename string) ([]byte, error) {
	clean := CleanFilename(filename)
	if clean == "" {
		return nil, ErrArtifactNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.dir, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// List returns up to limit history summaries, newest first by artifact name.
func (s *FilesystemStorage) List(_ context.Context, limit int) ([]Summary, error) {
	names, err := s.jsonArtifacts()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			log.LogWarnWithFields("storage", "Skipping unreadable artifact", map[string]any{
				"filename": name,
				"error":    err.Error(),
			})
			continue
		}
		summary, err := ParseSummary(name, data)
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

// Clear removes every file in the output directory.
func (s *FilesystemStorage) Clear(_ context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Prune deletes artifact pairs older than cutoff or beyond the newest keep
// records. A zero cutoff disables age pruning; keep <= 0 disables count
// pruning.
func (s *FilesystemStorage) Prune(_ context.Context, cutoff time.Time, keep int) (int, error) {
	names, err := s.jsonArtifacts()
	if err != nil {
		return 0, err
	}

	removed := 0
	for i, name := range names {
		ts, ok := TimeFromName(name)
		expired := ok && !cutoff.IsZero() && ts.Before(cutoff)
		overflow := keep > 0 && i >= keep
		if !expired && !overflow {
			continue
		}

		for _, victim := range []string{name, strings.TrimSuffix(name, ".json") + ".csv"} {
			err := os.Remove(filepath.Join(s.dir, victim))
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", victim, err)
			}
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the filesystem backend.
func (s *FilesystemStorage) Close() error {
	return nil
}

// jsonArtifacts lists JSON artifact names sorted newest first. Name order
// tracks recency because names embed the extraction timestamp.
func (s *FilesystemStorage) jsonArtifacts() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(b, a)
	})
	return names, nil
}
