package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/wanremote/internal/artifactstore"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
	"github.com/nemanja-m/wanremote/pkg/tensor"
)

type failingStore struct {
	artifactstore.Store
	err error
}

func (s failingStore) Put(ctx context.Context, name string, data []byte) error {
	return s.err
}

func conditioning(tokens int64) tensor.Tensor {
	values := make([]float32, tokens*8)
	for i := range values {
		values[i] = float32(i) * 0.25
	}
	return tensor.FromFloat32([]int64{1, tokens, 8}, values)
}

func TestCollect_WritesPredictableFilename(t *testing.T) {
	store := artifactstore.NewMemoryStore()
	c := New(store, logging.Nop())

	prefix := protocol.FilenamePrefix(protocol.DefaultFilenamePrefix, "42")
	res, err := c.Collect(context.Background(), conditioning(5), conditioning(2), prefix)
	require.NoError(t, err)

	assert.Equal(t, "wan_remote_42.pt", res.Filename)
	assert.Equal(t, protocol.NodeOutput{"text": {"Tensors Saved"}}, res.UI)

	data, err := store.Get(context.Background(), "wan_remote_42.pt")
	require.NoError(t, err)
	assert.Equal(t, res.Size, len(data))

	got, err := artifact.Decode(data)
	require.NoError(t, err)
	assert.True(t, conditioning(5).Equal(got.Positive))
	assert.True(t, conditioning(2).Equal(got.Negative))
}

func TestCollect_Compressed(t *testing.T) {
	store := artifactstore.NewMemoryStore()
	c := New(store, logging.Nop(), WithCompression(artifact.CompressionZstd))

	_, err := c.Collect(context.Background(), conditioning(3), conditioning(3), "run")
	require.NoError(t, err)

	data, err := store.Get(context.Background(), "run.pt")
	require.NoError(t, err)
	got, err := artifact.Decode(data)
	require.NoError(t, err)
	assert.True(t, conditioning(3).Equal(got.Positive))
}

func TestCollect_OverwritesExisting(t *testing.T) {
	store := artifactstore.NewMemoryStore()
	c := New(store, logging.Nop())
	ctx := context.Background()

	_, err := c.Collect(ctx, conditioning(1), conditioning(1), "same")
	require.NoError(t, err)
	_, err = c.Collect(ctx, conditioning(4), conditioning(1), "same")
	require.NoError(t, err)

	data, err := store.Get(ctx, "same.pt")
	require.NoError(t, err)
	got, err := artifact.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4, 8}, got.Positive.Shape)
}

func TestCollect_StorageFailure(t *testing.T) {
	cause := errors.New("disk full")
	c := New(failingStore{err: cause}, logging.Nop())

	_, err := c.Collect(context.Background(), conditioning(1), conditioning(1), "x")
	require.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
}

func TestCollect_RejectsBadInput(t *testing.T) {
	c := New(artifactstore.NewMemoryStore(), logging.Nop())
	ctx := context.Background()

	_, err := c.Collect(ctx, conditioning(1), conditioning(1), "../escape")
	assert.Error(t, err)

	bad := tensor.Tensor{DType: tensor.Float32, Shape: []int64{3}, Data: []byte{0}}
	_, err = c.Collect(ctx, bad, conditioning(1), "ok")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStorage)
}
