package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"kisan-mitra/api/internal/logger"
)

// FileRepo stores every list in one JSON object on disk, keyed by storage key.
type FileRepo struct {
	path string
	mu   sync.Mutex
}

func NewFileRepo(path string) *FileRepo { return &FileRepo{path: path} }

func (r *FileRepo) Path() string { return r.path }

func (r *FileRepo) Load(_ context.Context, key string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.read()
	if err != nil {
		return nil, err
	}
	return all[key], nil
}

func (r *FileRepo) Save(_ context.Context, key string, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.read()
	if err != nil {
		return err
	}
	all[key] = entries
	return r.write(all)
}

func (r *FileRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return r.write(all)
}

func (r *FileRepo) read() (map[string][]Entry, error) {
	all := map[string][]Entry{}
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", r.path, err)
	}
	if err := json.Unmarshal(b, &all); err != nil {
		// a corrupt file reads as empty; the next Save overwrites it
		logger.Warnf("history file %s is corrupt, starting empty: %v", r.path, err)
		return map[string][]Entry{}, nil
	}
	return all, nil
}

func (r *FileRepo) write(all map[string][]Entry) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	return os.Rename(tmp.Name(), r.path)
}
