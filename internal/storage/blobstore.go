package storage

import "context"

// BlobStore is the object storage collaborator holding uploaded document
// images. The core treats documents as opaque blobs; real implementations
// live outside this module (S3, GCS, a CDN-backed store).
type BlobStore interface {
	// Put stores the bytes and returns a stable key.
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	// Delete removes the blob. Deleting an absent key is a success so
	// retention retries stay idempotent.
	Delete(ctx context.Context, key string) (bool, error)
	// Resolve returns a readable URL for the key.
	Resolve(ctx context.Context, key string) (string, error)
}
