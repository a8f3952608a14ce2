// Package collector persists the two conditioning tensors produced by a remote
// graph under a filename the dispatcher can predict.
package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/nemanja-m/wanremote/internal/artifactstore"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/internal/shared/metrics"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
	"github.com/nemanja-m/wanremote/pkg/tensor"
)

var ErrStorage = errors.New("artifact storage failed")

// SavedNotice is shown in the host UI once an artifact has been written.
const SavedNotice = "Tensors Saved"

type Result struct {
	Filename string
	Size     int
	UI       protocol.NodeOutput
}

type Collector struct {
	store       artifactstore.Store
	compression artifact.Compression
	logger      logging.Logger
}

type Option func(*Collector)

func WithCompression(c artifact.Compression) Option {
	return func(col *Collector) {
		col.compression = c
	}
}

func New(store artifactstore.Store, logger logging.Logger, opts ...Option) *Collector {
	c := &Collector{
		store:       store,
		compression: artifact.CompressionNone,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect writes {filenamePrefix}.pt holding positive and negative unchanged.
// An existing artifact with the same name is replaced.
func (c *Collector) Collect(ctx context.Context, positive, negative tensor.Tensor, filenamePrefix string) (Result, error) {
	if err := protocol.ValidatePrefix(filenamePrefix); err != nil {
		c.recordFailure()
		return Result{}, err
	}
	filename := protocol.ArtifactFilename(filenamePrefix)

	data, err := artifact.Encode(positive, negative, artifact.WithCompression(c.compression))
	if err != nil {
		c.recordFailure()
		return Result{}, fmt.Errorf("encode %s: %w", filename, err)
	}

	if err := c.store.Put(ctx, filename, data); err != nil {
		c.recordFailure()
		c.logger.Error("Failed to save tensors", "filename", filename, "error", err)
		return Result{}, fmt.Errorf("%w: %s: %w", ErrStorage, filename, err)
	}

	metrics.CollectorSavesTotal.WithLabelValues("succeeded").Inc()
	metrics.ArtifactBytes.WithLabelValues("collector").Observe(float64(len(data)))
	c.logger.Info(
		"Tensors saved",
		"filename", filename,
		"bytes", len(data),
		"positive_shape", positive.Shape,
		"negative_shape", negative.Shape,
		"compression", c.compression.String(),
	)

	return Result{
		Filename: filename,
		Size:     len(data),
		UI:       protocol.NodeOutput{"text": {SavedNotice}},
	}, nil
}

func (c *Collector) recordFailure() {
	metrics.CollectorSavesTotal.WithLabelValues("failed").Inc()
}
