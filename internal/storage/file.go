package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/project-89/Quantum-Veil/internal/shifter"
)

// FileStore persists fragments as individual files under a directory.
type FileStore struct{ dir string }

func NewFileStore(dir string) *FileStore {
	_ = os.MkdirAll(dir, 0700)
	return &FileStore{dir: dir}
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".frag")
}

func (f *FileStore) Store(_ context.Context, frag *shifter.Fragment) (string, error) {
	b, err := encodeFragment(frag)
	if err != nil {
		return "", err
	}
	p := f.path(frag.ID)
	if err := os.WriteFile(p, b, 0600); err != nil {
		return "", err
	}
	return "file://" + p, nil
}

func (f *FileStore) Retrieve(_ context.Context, id string) (*shifter.Fragment, error) {
	b, err := os.ReadFile(f.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeFragment(b)
}

func (f *FileStore) Exists(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(f.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(f.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
