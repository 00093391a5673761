// Package blob stores scene archives in an S3-like object store. Three
// drivers are available: a local directory, an in-process map and any
// S3-compatible endpoint.
package blob

import (
	"context"
	"errors"
	"io"
	"maps"
	"time"
)

// Driver identifies a concrete blob storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // process memory (tests, squadctl dry runs)
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions holds options for generating a pre-signed URL.
type SignedURLOptions struct {
	Method string        // only GET is supported
	Expiry time.Duration // default 15m
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is a minimal subset of S3 semantics shared by every driver.
type Store interface {
	// Put stores a new blob at key and fails with ErrExists if the key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get returns the blob and its metadata, or an error wrapping ErrNotExist.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns metadata only.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes a blob and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs whose key has prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns a time-limited GET URL or ErrUnsupported.
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrUnsupported is returned when a driver lacks an optional capability.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blob: key already exists")
	// ErrNotExist is returned when a key is missing.
	ErrNotExist = errors.New("blob: key does not exist")
)

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	return maps.Clone(in)
}
