// Package blob provides the content-addressed sample archive: imported
// audio bytes are stored under their digest so any participant can restore
// a sample that is missing from their local disk.
package blob

import (
	"context"
	"errors"
	"time"
)

// Driver identifies a concrete archive backend implementation.
type Driver string

const (
	// DriverFilesystem stores samples under a local directory (default).
	DriverFilesystem Driver = "fs"
	// DriverS3 stores samples in an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps samples in process memory, used in tests.
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // small flat key-value user metadata
}

// Info describes an archived sample.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is the archive abstraction. Samples are immutable and keyed by
// content digest, so Put with an existing key succeeds without rewriting.
type Store interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) ([]byte, Info, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotFound is returned by Get and Head for an unknown key.
var ErrNotFound = errors.New("blob: not found")

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
