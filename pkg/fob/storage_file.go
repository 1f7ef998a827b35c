package fob

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage persists the credential record to a single file. Save writes
// a temporary file in the same directory and renames it over the target, so
// a crash mid-write leaves either the old record or the new one, never a
// mix.
type FileStorage struct {
	path string
}

// NewFileStorage creates storage backed by the given path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads and decodes the stored record.
func (s *FileStorage) Load() (*CredentialRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return DecodeRecord(data)
}

// Save atomically replaces the stored record.
func (s *FileStorage) Save(r *CredentialRecord) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".fobstate-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	name := tmp.Name()

	if _, err := tmp.Write(r.Encode()); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

var _ Storage = (*FileStorage)(nil)
