// Package history persists run reports.
//
// Reports live under <baseDir>/.exposeq/runs/<run-id>/report.json. Writes
// are atomic and durable: temp file, file sync, rename, directory sync.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"exposeq/internal/sequence"
)

// ErrNotFound is returned by Load for an unknown run ID.
var ErrNotFound = errors.New("history: run not found")

// Store is a file-backed run-report archive.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("history: baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) runsRootDir() string {
	return filepath.Join(s.baseDir, ".exposeq", "runs")
}

func (s *Store) reportPath(runID string) string {
	return filepath.Join(s.runsRootDir(), runID, "report.json")
}

// Save persists a report under its run ID.
func (s *Store) Save(rep *sequence.RunReport) error {
	if s == nil {
		return errors.New("history: nil Store")
	}
	if rep == nil || strings.TrimSpace(rep.RunID) == "" {
		return errors.New("history: report with a run ID is required")
	}
	dir := filepath.Dir(s.reportPath(rep.RunID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: creating run dir: %w", err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encoding report: %w", err)
	}
	return writeFileAtomic(s.reportPath(rep.RunID), data)
}

// Load reads the report for a run ID.
func (s *Store) Load(runID string) (*sequence.RunReport, error) {
	if s == nil {
		return nil, errors.New("history: nil Store")
	}
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("history: runID is required")
	}
	data, err := os.ReadFile(s.reportPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rep sequence.RunReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("history: decoding report %s: %w", runID, err)
	}
	return &rep, nil
}

// ListRunIDs returns all persisted run IDs, sorted lexicographically.
func (s *Store) ListRunIDs() ([]string, error) {
	if s == nil {
		return nil, errors.New("history: nil Store")
	}
	entries, err := os.ReadDir(s.runsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.TrimSpace(e.Name())
		if name == "" {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// Latest returns the most recently started persisted report, or ErrNotFound
// when the store is empty. Run IDs are opaque, so recency comes from the
// reports' StartedAt stamps, not from ID order.
func (s *Store) Latest() (*sequence.RunReport, error) {
	ids, err := s.ListRunIDs()
	if err != nil {
		return nil, err
	}
	var latest *sequence.RunReport
	for _, id := range ids {
		rep, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		if latest == nil || rep.StartedAt.After(latest.StartedAt) {
			latest = rep
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// writeFileAtomic writes data next to path, syncs, renames over path, and
// syncs the directory so a crash never leaves a torn report.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
