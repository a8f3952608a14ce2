package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nemanja-m/wanremote/internal/dispatcher/core"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/internal/shared/metrics"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

type dispatcher struct {
	client      core.HostClient
	poll        core.PollOptions
	newClientID func() string
	logger      logging.Logger
}

func NewDispatcher(client core.HostClient, poll core.PollOptions, logger logging.Logger) core.Dispatcher {
	return &dispatcher{
		client:      client,
		poll:        poll,
		newClientID: protocol.NewClientID,
		logger:      logger,
	}
}

// Dispatch runs one remote encode: submit the graph, wait for the host to
// finish it and download the collector's artifact. Errors are returned as
// produced by the client.
func (d *dispatcher) Dispatch(ctx context.Context, req core.Request) (result core.Result, err error) {
	start := time.Now()
	defer func() {
		label := resultLabel(err)
		metrics.DispatchesTotal.WithLabelValues(label).Inc()
		metrics.DispatchDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	if err := req.Validate(); err != nil {
		return core.Result{}, fmt.Errorf("invalid request: %w", err)
	}

	clientID := d.newClientID()
	filename := protocol.ArtifactFilename(protocol.FilenamePrefix(req.FilenamePrefix, clientID))
	logger := d.logger

	graph := core.BuildGraph(req, clientID)
	logger.Info("Submitting prompt",
		"client_id", clientID,
		"encoder", req.Loader.EncoderName,
		"encoder_type", string(req.Loader.EncoderType),
		"nodes", graph.Len(),
	)

	handle, err := d.client.Submit(ctx, protocol.SubmitRequest{Prompt: graph, ClientID: clientID})
	if err != nil {
		logger.Error("Failed to submit prompt", "client_id", clientID, "error", err)
		return core.Result{}, err
	}
	logger.Info("Prompt submitted", "client_id", clientID, "prompt_id", handle.PromptID)

	if err := d.client.AwaitCompletion(ctx, handle, d.poll); err != nil {
		logger.Error("Prompt did not complete", "prompt_id", handle.PromptID, "error", err)
		return core.Result{}, err
	}
	logger.Info("Prompt completed", "prompt_id", handle.PromptID, "elapsed", time.Since(start).String())

	decoded, err := d.client.FetchArtifact(ctx, filename)
	if err != nil {
		logger.Error("Failed to fetch artifact", "filename", filename, "error", err)
		return core.Result{}, err
	}
	logger.Info("Artifact fetched",
		"filename", filename,
		"positive", decoded.Positive.String(),
		"negative", decoded.Negative.String(),
	)

	return core.Result{
		Positive: decoded.Positive,
		Negative: decoded.Negative,
		ClientID: clientID,
		PromptID: handle.PromptID,
		Filename: filename,
	}, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, protocol.ErrTransport):
		return "transport"
	case errors.Is(err, protocol.ErrRemoteRejected):
		return "rejected"
	case errors.Is(err, protocol.ErrRemoteTimeout):
		return "timeout"
	case errors.Is(err, artifact.ErrDecode):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}
