// Package objectstore provides bucket-scoped binary storage. The disk
// implementation keeps one directory per bucket under a configured root;
// the interface leaves room for an S3-style backend.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get and Delete for missing keys.
var ErrObjectNotFound = errors.New("object not found")

type ObjectStore interface {
	// EnsureBucket creates the bucket if it does not exist. Idempotent.
	EnsureBucket(ctx context.Context, bucket string) error
	// Put stores the object and returns the number of bytes written.
	Put(ctx context.Context, bucket, key string, r io.Reader) (int64, error)
	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Delete removes the object.
	Delete(ctx context.Context, bucket, key string) error
	// Exists reports whether the object is present.
	Exists(ctx context.Context, bucket, key string) (bool, error)
}
