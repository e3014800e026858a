// Package storage reads and writes fixture objects in a bucket-like store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samber/oops"

	"github.com/cloudpanel/authcore/config"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// MaxObjectSize bounds how much of an object Read loads into memory.
const MaxObjectSize = 4 << 20

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
}

// Storage wraps an ObjectStorage backend with whole-object helpers.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// New opens the backend selected by cfg.Source.
func New(ctx context.Context, cfg config.FixturesConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Source {
	case config.FixturesFile:
		backend, err = NewFileStorage(cfg.Dir)
	case config.FixturesMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.FixturesGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown fixtures source %q", cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend), nil
}

// Read returns the full content of key. Objects larger than MaxObjectSize
// are rejected.
func (s *Storage) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, MaxObjectSize+1))
	if err != nil {
		return nil, oops.Code("STORAGE_READ_FAILED").
			With("bucket", s.backend.Bucket()).
			With("key", key).
			Wrap(err)
	}
	if len(data) > MaxObjectSize {
		return nil, oops.Code("STORAGE_OBJECT_TOO_LARGE").
			With("key", key).
			With("max_bytes", MaxObjectSize).
			Errorf("object exceeds %d bytes", MaxObjectSize)
	}
	return data, nil
}

// Write uploads data to key, creating the bucket first if needed.
func (s *Storage) Write(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.backend.EnsureBucket(ctx); err != nil {
		return err
	}
	return s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
