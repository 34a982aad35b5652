// Package blob stores snapshot documents behind a small S3-like interface.
package blob

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

var (
	ErrNotFound      = errors.New("blob: not found")
	ErrExists        = errors.New("blob: key already exists")
	ErrInvalidKey    = errors.New("blob: invalid key")
	ErrUnknownDriver = errors.New("blob: unknown driver")
)

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"sizeBytes"`
	ContentType  string            `json:"contentType,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"lastModified"`
}

// Store is implemented by every driver. Keys are slash separated and never
// start with "/".
type Store interface {
	// Put creates key. It fails with ErrExists when key is already present.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get returns ErrNotFound for a missing key. The caller closes the reader.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}
