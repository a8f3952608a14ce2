package artifactstore

import (
	"context"
	"fmt"

	appconfig "github.com/nemanja-m/wanremote/internal/shared/config"
)

// Open builds the store selected by cfg.Type: "file", "s3" or "memory".
func Open(ctx context.Context, cfg appconfig.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "file":
		return NewFileStore(cfg.OutputDir)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
			PathPrefix:      cfg.S3.PathPrefix,
		})
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
