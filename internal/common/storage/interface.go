package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object operations used for submission archives.
type ObjectStorage interface {
	// PutObject uploads size bytes from reader to bucket/objectKey.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error
}
