package service

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/internal/host/nodes"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/internal/shared/metrics"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

type promptService struct {
	store    core.PromptStore
	queue    core.PromptQueue
	registry *nodes.Registry

	mu      sync.Mutex
	number  int
	running map[string]*core.Prompt

	logger logging.Logger
}

func NewPromptService(
	store core.PromptStore,
	queue core.PromptQueue,
	registry *nodes.Registry,
	logger logging.Logger,
) core.PromptService {
	return &promptService{
		store:    store,
		queue:    queue,
		registry: registry,
		running:  make(map[string]*core.Prompt),
		logger:   logger,
	}
}

func (s *promptService) Submit(graph *protocol.JobGraph, clientID string, front bool) (*core.Prompt, error) {
	if err := s.validate(graph); err != nil {
		s.logger.Warn("Prompt rejected", "client_id", clientID, "error", err)
		return nil, err
	}

	s.mu.Lock()
	number := s.number
	s.number++
	s.mu.Unlock()

	prompt := &core.Prompt{
		ID:        uuid.NewString(),
		Number:    number,
		ClientID:  clientID,
		Graph:     graph,
		Status:    core.PromptStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SavePrompt(prompt); err != nil {
		return nil, err
	}
	if err := s.queue.Push(prompt, front); err != nil {
		return nil, err
	}
	metrics.QueueDepth.Set(float64(s.queue.Len()))

	s.logger.Info("Prompt queued",
		"prompt_id", prompt.ID,
		"number", prompt.Number,
		"client_id", clientID,
		"nodes", graph.Len(),
		"front", front,
	)
	return prompt.Clone(), nil
}

// validate checks node classes, required inputs, literal values, references
// and the presence of an output node before anything is queued.
func (s *promptService) validate(graph *protocol.JobGraph) error {
	if graph == nil || graph.Len() == 0 {
		return &core.ValidationError{Type: "invalid_prompt", Message: "prompt has no nodes"}
	}

	verr := &core.ValidationError{
		Type:    "prompt_outputs_failed_validation",
		Message: "Prompt outputs failed validation",
	}
	hasOutput := false

	for _, id := range graph.IDs() {
		node, _ := graph.Node(id)
		class, err := s.registry.Get(node.ClassType)
		if err != nil {
			verr.AddNodeError(id, "unknown node class %q", node.ClassType)
			continue
		}
		hasOutput = hasOutput || class.OutputNode

		literals := nodes.Inputs{}
		for name, input := range node.Inputs {
			switch in := input.(type) {
			case protocol.Literal:
				literals[name] = in.Value
			case protocol.Reference:
				if _, ok := graph.Node(in.NodeID); !ok {
					verr.AddNodeError(id, "input %q references missing node %s", name, in.NodeID)
				}
			}
		}
		for _, name := range class.Required {
			if _, ok := node.Inputs[name]; !ok {
				verr.AddNodeError(id, "required input %q is missing", name)
			}
		}
		if class.Check != nil {
			if err := class.Check(literals); err != nil {
				verr.AddNodeError(id, "%s", err)
			}
		}
	}

	if len(verr.NodeErrors) > 0 {
		return verr
	}
	if !hasOutput {
		return &core.ValidationError{Type: "prompt_no_outputs", Message: "prompt has no outputs"}
	}
	if _, err := graph.TopologicalOrder(); err != nil {
		return &core.ValidationError{Type: "invalid_prompt", Message: err.Error()}
	}
	return nil
}

func (s *promptService) GetPrompt(id string) (*core.Prompt, error) {
	return s.store.GetPrompt(id)
}

func (s *promptService) History(maxItems int) ([]*core.Prompt, error) {
	return s.store.History(maxItems)
}

func (s *promptService) ClearHistory() error {
	return s.store.ClearHistory()
}

func (s *promptService) Queue() ([]*core.Prompt, []*core.Prompt) {
	s.mu.Lock()
	running := make([]*core.Prompt, 0, len(s.running))
	for _, p := range s.running {
		running = append(running, p.Clone())
	}
	s.mu.Unlock()
	slices.SortFunc(running, func(a, b *core.Prompt) int { return a.Number - b.Number })

	pending := s.queue.Pending()
	clones := make([]*core.Prompt, 0, len(pending))
	for _, p := range pending {
		clones = append(clones, p.Clone())
	}
	return running, clones
}

func (s *promptService) Next() (*core.Prompt, error) {
	prompt, err := s.queue.Pop()
	if errors.Is(err, core.ErrQueueEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.QueueDepth.Set(float64(s.queue.Len()))

	// Queued prompts are shared with Queue() readers and never mutated.
	prompt = prompt.Clone()
	prompt.MarkRunning()
	if err := s.store.UpdatePrompt(prompt); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.running[prompt.ID] = prompt
	s.mu.Unlock()
	return prompt.Clone(), nil
}

func (s *promptService) Complete(id string, outputs map[string]protocol.NodeOutput) error {
	return s.finish(id, func(p *core.Prompt) { p.MarkSucceeded(outputs) })
}

func (s *promptService) Fail(id string, outputs map[string]protocol.NodeOutput, message string) error {
	return s.finish(id, func(p *core.Prompt) { p.MarkFailed(outputs, message) })
}

func (s *promptService) finish(id string, mark func(*core.Prompt)) error {
	s.mu.Lock()
	prompt, ok := s.running[id]
	if ok {
		delete(s.running, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s is not running", core.ErrPromptNotFound, id)
	}

	mark(prompt)
	metrics.PromptsTotal.WithLabelValues(string(prompt.Status)).Inc()
	return s.store.UpdatePrompt(prompt)
}
