/*
Package storage issues presigned URLs for customer photos kept in an
S3-compatible bucket, and validates what clients may upload.
*/
package storage

import (
	"context"
	"time"
)

// Config holds the bucket settings. An empty Endpoint means AWS S3 itself.
type Config struct {
	Bucket   string
	Endpoint string
}

// Storage defines the object storage operations the server needs.
type Storage interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, ttl time.Duration) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
