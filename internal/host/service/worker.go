package service

import (
	"context"
	"time"

	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
)

const (
	minBackoff = 20 * time.Millisecond
	maxBackoff = time.Second
)

type worker struct {
	prompts  core.PromptService
	executor core.PromptExecutor
	logger   logging.Logger
}

// NewWorker returns the single execution loop of the host. Prompts run one at a time.
func NewWorker(prompts core.PromptService, executor core.PromptExecutor, logger logging.Logger) core.Worker {
	return &worker{prompts: prompts, executor: executor, logger: logger}
}

// Run blocks until ctx is done.
func (w *worker) Run(ctx context.Context) error {
	backoff := minBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		prompt, err := w.prompts.Next()
		if err != nil {
			w.logger.Error("Failed to dequeue prompt", "error", err)
		}
		if err != nil || prompt == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = minBackoff
		w.execute(ctx, prompt)
	}
}

func (w *worker) execute(ctx context.Context, prompt *core.Prompt) {
	w.logger.Info("Executing prompt", "prompt_id", prompt.ID, "number", prompt.Number, "client_id", prompt.ClientID)
	start := time.Now()

	outputs, err := w.executor.Execute(ctx, prompt)
	if err == nil {
		w.logger.Info("Prompt executed", "prompt_id", prompt.ID, "duration_ms", time.Since(start).Milliseconds())
		if reportErr := w.prompts.Complete(prompt.ID, outputs); reportErr != nil {
			w.logger.Error("Failed to record prompt completion", "prompt_id", prompt.ID, "error", reportErr)
		}
		return
	}

	w.logger.Error("Prompt execution failed", "prompt_id", prompt.ID, "error", err)
	if reportErr := w.prompts.Fail(prompt.ID, outputs, err.Error()); reportErr != nil {
		w.logger.Error("Failed to record prompt failure", "prompt_id", prompt.ID, "error", reportErr)
	}
}
