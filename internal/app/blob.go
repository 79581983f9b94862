package app

import (
	"context"

	"github.com/odyssey-erp/stockbook/internal/platform/blob"
)

// NewBlobStore selects the upload store from configuration.
func NewBlobStore(ctx context.Context, cfg *Config) (blob.Store, error) {
	if cfg.BlobDriver == BlobDriverS3 {
		return blob.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
	}
	return blob.NewLocalStore(cfg.BlobDir)
}
