package artifactstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/nemanja-m/wanremote/internal/shared/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "output")

	store, err := Open(ctx, appconfig.StorageConfig{Type: "file", OutputDir: dir})
	require.NoError(t, err)
	fs, ok := store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir())

	store, err = Open(ctx, appconfig.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, appconfig.StorageConfig{
		Type: "s3",
		S3: appconfig.S3Config{
			Endpoint:        "localhost:9000",
			Bucket:          "artifacts",
			AccessKeyID:     "minio",
			SecretAccessKey: "minio123",
		},
	})
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, store)

	_, err = Open(ctx, appconfig.StorageConfig{Type: "s3"})
	assert.ErrorContains(t, err, "bucket")

	_, err = Open(ctx, appconfig.StorageConfig{Type: "gcs"})
	assert.Error(t, err)
}
