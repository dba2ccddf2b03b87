// Package storage provides the blob store the tree engine persists file
// content through. Nodes reference blobs by opaque locator only; the engine
// never sees paths or bucket keys.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

type BlobStore interface {
	// Put stores the stream and returns a fresh locator.
	Put(ctx context.Context, r io.Reader) (string, error)
	// Get opens the blob for reading. Returns ErrNotFound for unknown locators.
	Get(ctx context.Context, locator string) (io.ReadCloser, error)
	// Copy duplicates the blob server-side without re-reading its bytes
	// through the caller and returns the new locator.
	Copy(ctx context.Context, locator string) (string, error)
	// Delete removes the blob. Deleting an unknown locator is not an error.
	Delete(ctx context.Context, locator string) error
	// Exists reports whether the locator resolves to a stored blob.
	Exists(ctx context.Context, locator string) bool
}
