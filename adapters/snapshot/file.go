package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/layer-3/questproof/ports"
)

// FileSnapshotter keeps a snapshot in a flat JSON file
type FileSnapshotter struct {
	path string
	mu   sync.Mutex
}

// NewFileSnapshotter creates a snapshotter writing to path
func NewFileSnapshotter(path string) ports.Snapshotter {
	return &FileSnapshotter{path: path}
}

// Load reads the JSON file into v
func (f *FileSnapshotter) Load(ctx context.Context, v interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to read snapshot %s", f.path)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "failed to decode snapshot %s", f.path)
	}
	return true, nil
}

// Save writes v to a temporary file and renames it over the snapshot
func (f *FileSnapshotter) Save(ctx context.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", f.path)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return errors.Wrapf(err, "failed to write snapshot %s", tmp)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrapf(err, "failed to replace snapshot %s", f.path)
	}
	return nil
}
