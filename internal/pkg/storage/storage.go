package storage

import (
	"context"
	"io"
)

// Storage abstracts blob storage for uploaded media.
type Storage interface {
	// Save writes content at the relative path, creating parents as needed.
	Save(ctx context.Context, path string, content io.Reader) error

	// Get opens the blob at the relative path for reading.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the blob at the relative path. Missing blobs are not an
	// error.
	Delete(ctx context.Context, path string) error
}
