// Package blobstore persists raw upload bytes addressed by opaque locators.
package blobstore

import (
	"context"
	"io"
	"time"
)

// PutResult describes one persisted blob payload.
type PutResult struct {
	Digest  string
	Size    int64
	Locator string
}

// Store is the content-opaque byte store consumed by the dedup engine.
// Locators are stable per distinct byte sequence; Put is idempotent for
// identical content.
type Store interface {
	Put(ctx context.Context, r io.Reader) (PutResult, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
	Walk(ctx context.Context, fn func(locator string, size int64, modTime time.Time) error) error
}
