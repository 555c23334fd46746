package blobstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/filex"
)

// FSStore stores blobs as files in one directory.
type FSStore struct {
	dir string
}

// NewFSStore creates dir if needed.
func NewFSStore(dir string) (*FSStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, common.Storage("create blob dir", err)
	}
	return &FSStore{dir: abs}, nil
}

func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) Write(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(s.path(name), data, 0o600); err != nil {
		return common.Storage("write blob", err)
	}
	return nil
}

func (s *FSStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, common.Storage("read blob", err)
	}
	return data, nil
}

func (s *FSStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.Storage("delete blob", err)
	}
	return nil
}

func (s *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, common.Storage("stat blob", err)
	}
	return true, nil
}

func (s *FSStore) path(name string) string {
	return filepath.Join(s.dir, name+".bin")
}
