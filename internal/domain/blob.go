package domain

import (
	"context"
	"io"
)

// BlobStore abstracts storage of uploaded image bytes.
// The local implementation writes into a content directory that is
// served read-only over HTTP.
type BlobStore interface {
	// Store writes data under a collision-resistant name derived from
	// originalName and returns the public reference for it.
	Store(ctx context.Context, originalName string, data io.Reader) (string, error)
	// Delete removes the blob behind ref. Missing or unmanaged refs are a no-op.
	Delete(ctx context.Context, ref string) error
	// Manages reports whether ref points at a blob owned by this store.
	Manages(ref string) bool
}
