package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
	"github.com/nemanja-m/wanremote/pkg/tensor"
)

const DefaultEncoderName = "umt5_xxl_fp8_e4m3fn_scaled.safetensors"

type LoaderConfig struct {
	EncoderName string
	EncoderType protocol.EncoderType
}

// Request holds everything one dispatch needs from the caller.
type Request struct {
	Loader         LoaderConfig
	Positive       string
	Negative       string
	FilenamePrefix string
}

func (r Request) Validate() error {
	var errs []error
	if r.Loader.EncoderName == "" {
		errs = append(errs, errors.New("encoder name is required"))
	}
	if !r.Loader.EncoderType.Valid() {
		errs = append(errs, fmt.Errorf("unknown encoder type %q", r.Loader.EncoderType))
	}
	if err := protocol.ValidatePrefix(r.FilenamePrefix); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Result is the decoded outcome of a dispatch.
type Result struct {
	Positive tensor.Tensor
	Negative tensor.Tensor
	ClientID string
	PromptID string
	Filename string
}

type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// MaxConsecutiveFailures makes polling fail after this many failed polls
	// in a row. Zero tolerates failures until the timeout.
	MaxConsecutiveFailures int
}

func DefaultPollOptions() PollOptions {
	return PollOptions{
		Interval: time.Second,
		Timeout:  300 * time.Second,
	}
}

// HostClient talks to the remote execution host.
type HostClient interface {
	Submit(ctx context.Context, req protocol.SubmitRequest) (protocol.JobHandle, error)
	AwaitCompletion(ctx context.Context, handle protocol.JobHandle, opts PollOptions) error
	FetchArtifact(ctx context.Context, filename string) (artifact.Artifact, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (Result, error)
}
