package core

import (
	"context"

	"github.com/nemanja-m/wanremote/pkg/protocol"
)

type PromptService interface {
	// Submit validates the graph and queues it. Validation problems are
	// reported as *ValidationError.
	Submit(graph *protocol.JobGraph, clientID string, front bool) (*Prompt, error)
	GetPrompt(id string) (*Prompt, error)
	History(maxItems int) ([]*Prompt, error)
	ClearHistory() error
	Queue() (running []*Prompt, pending []*Prompt)

	// Next pops the next queued prompt and marks it running. It returns
	// (nil, nil) when nothing is queued.
	Next() (*Prompt, error)
	Complete(id string, outputs map[string]protocol.NodeOutput) error
	Fail(id string, outputs map[string]protocol.NodeOutput, message string) error
}

// PromptExecutor runs a validated graph and returns the UI payload of every
// output node. On failure the outputs produced so far are returned alongside
// the error.
type PromptExecutor interface {
	Execute(ctx context.Context, prompt *Prompt) (map[string]protocol.NodeOutput, error)
}

type Worker interface {
	Run(ctx context.Context) error
}
