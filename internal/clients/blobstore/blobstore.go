// Package blobstore defines the BlobStore capability contract (spec.md §2)
// and a Google Cloud Storage implementation, grounded on
// internal/clients/gcp.BucketService (same client construction, content-type
// sniffing, and cancel-on-close reader idiom), generalized from a two-bucket
// avatar/material split down to the single document bucket this core needs.
package blobstore

import (
	"context"
	"io"
)

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}
