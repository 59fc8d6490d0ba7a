package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Snapshotter is the optional persistence hook for MemoryStore.
//
// Durability contract: best-effort only. MemoryStore swallows Save errors so
// that an I/O stall never turns a session operation into a failure; every
// other store operation keeps strict error propagation.
type Snapshotter interface {
	Save(records []Record) error
	Load() ([]Record, error)
}

// FileSnapshot persists session records as a single JSON file.
// Writes go through a temp file + rename so a crash never leaves a torn file.
type FileSnapshot struct {
	path string
}

// NewFileSnapshot creates a file-backed Snapshotter at path.
func NewFileSnapshot(path string) (*FileSnapshot, error) {
	if path == "" {
		return nil, errors.New("session: empty snapshot path")
	}
	return &FileSnapshot{path: path}, nil
}

// Save writes all records to disk. Called with the store lock held, so it must
// stay a single bounded local write.
func (f *FileSnapshot) Save(records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Load reads records back from disk. A missing file is an empty store, not an
// error.
func (f *FileSnapshot) Load() ([]Record, error) {
	data, err := os.ReadFile(filepath.Clean(f.path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
