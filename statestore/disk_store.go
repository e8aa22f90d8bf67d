package statestore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore persists one JSON file per task name under a state
// directory. Writes go through a temp file and rename, so a record is
// either the old version or the new one, never a torn write.
type DiskStore struct {
	dir    string
	logger *slog.Logger
}

// NewDiskStore creates a disk-backed store, creating the directory if
// needed. An error here is orchestration-fatal.
func NewDiskStore(dir string, logger *slog.Logger) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &DiskStore{
		dir:    dir,
		logger: logger.With("component", "statestore"),
	}, nil
}

// Dir returns the state directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put overwrites the record for taskName.
func (s *DiskStore) Put(taskName string, rec Record) error {
	rec.TaskName = taskName

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record for %q: %w", taskName, err)
	}

	path := s.path(taskName)

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp record file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write record for %q: %w", taskName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close record for %q: %w", taskName, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace record for %q: %w", taskName, err)
	}

	s.logger.Debug("saved task record", "task", taskName, "path", path)
	return nil
}

// Get returns the record for taskName.
func (s *DiskStore) Get(taskName string) (Record, bool, error) {
	data, err := os.ReadFile(s.path(taskName))
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read record for %q: %w", taskName, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to parse record for %q: %w", taskName, err)
	}
	if rec.TaskName == "" {
		rec.TaskName = taskName
	}
	return rec, true, nil
}

// All enumerates every record in the state directory. Files left by an
// interrupted run, or with missing optional fields, are tolerated:
// absent fields resolve to zero values and unparsable files are skipped
// with a warning.
func (s *DiskStore) All() (map[string]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	records := make(map[string]Record)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read record file", "file", path, "error", err)
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("failed to parse record file", "file", path, "error", err)
			continue
		}

		name := rec.TaskName
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ".json")
			rec.TaskName = name
		}
		records[name] = rec
	}

	return records, nil
}

func (s *DiskStore) path(taskName string) string {
	return filepath.Join(s.dir, fileStem(taskName)+".json")
}

// fileStem encodes a task name into a file name stem. Letters, digits,
// and dashes pass through; every other rune, underscore included,
// becomes "_<hex>_". The encoding is injective, so two distinct task
// names can never map to the same record file.
func fileStem(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%x_", r)
		}
	}
	return b.String()
}
