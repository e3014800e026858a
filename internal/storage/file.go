package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// FileStorage keeps objects as files under a root directory.
type FileStorage struct {
	root string
}

// NewFileStorage returns a FileStorage rooted at dir.
func NewFileStorage(dir string) (*FileStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("fixtures dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, oops.Code("STORAGE_INVALID_DIR").With("dir", dir).Wrap(err)
	}
	return &FileStorage{root: abs}, nil
}

// EnsureBucket creates the root directory.
func (f *FileStorage) EnsureBucket(context.Context) error {
	return os.MkdirAll(f.root, 0o755)
}

// Put writes r to key, creating parent directories.
func (f *FileStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Get opens key for reading.
func (f *FileStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("STORAGE_NOT_FOUND").With("key", key).Wrap(ErrObjectNotFound)
	}
	return file, err
}

// Bucket returns the root directory.
func (f *FileStorage) Bucket() string {
	return f.root
}

// path resolves key inside root and rejects keys that escape it.
func (f *FileStorage) path(key string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", oops.Code("STORAGE_INVALID_KEY").With("key", key).Errorf("key must be a relative path inside the fixtures dir")
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}
