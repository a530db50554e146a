package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"codeduel/internal/common/storage"

	"github.com/klauspost/compress/zstd"
)

const (
	defaultArchivePrefix = "submissions"
	archiveContentType   = "application/zstd"
)

// SourceArchiver stores zstd-compressed submitted scripts in object storage.
type SourceArchiver struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
	encoder *zstd.Encoder
}

func NewSourceArchiver(objStorage storage.ObjectStorage, bucket, prefix string) (*SourceArchiver, error) {
	if objStorage == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if prefix == "" {
		prefix = defaultArchivePrefix
	}
	// A nil writer encoder is only used through EncodeAll, which is safe for concurrent use.
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder failed: %w", err)
	}
	return &SourceArchiver{storage: objStorage, bucket: bucket, prefix: prefix, encoder: encoder}, nil
}

// ObjectKey is <prefix>/<playerId>/<submissionId>.zst with the player id path-escaped.
func (a *SourceArchiver) ObjectKey(playerID, submissionID string) string {
	return fmt.Sprintf("%s/%s/%s.zst", a.prefix, url.PathEscape(playerID), submissionID)
}

// Archive compresses script and uploads it, returning the object key.
func (a *SourceArchiver) Archive(ctx context.Context, playerID, submissionID, script string) (string, error) {
	compressed := a.encoder.EncodeAll([]byte(script), nil)
	key := a.ObjectKey(playerID, submissionID)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(compressed), int64(len(compressed)), archiveContentType); err != nil {
		return "", err
	}
	return key, nil
}
