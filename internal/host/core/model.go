package core

import (
	"maps"
	"slices"
	"time"

	"github.com/nemanja-m/wanremote/pkg/protocol"
)

type PromptStatus string

const (
	PromptStatusPending PromptStatus = "pending"
	PromptStatusRunning PromptStatus = "running"
	PromptStatusSuccess PromptStatus = "success"
	PromptStatusError   PromptStatus = "error"
)

func (s PromptStatus) Finished() bool {
	return s == PromptStatusSuccess || s == PromptStatusError
}

type Prompt struct {
	ID       string
	Number   int
	ClientID string
	Graph    *protocol.JobGraph
	Status   PromptStatus

	// Outputs holds the UI payload of every output node that ran.
	Outputs  map[string]protocol.NodeOutput
	Messages []string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (p *Prompt) Clone() *Prompt {
	c := *p
	c.Outputs = maps.Clone(p.Outputs)
	c.Messages = slices.Clone(p.Messages)
	return &c
}

// HistoryEntry renders a finished prompt the way /history reports it.
func (p *Prompt) HistoryEntry() protocol.HistoryEntry {
	outputs := p.Outputs
	if outputs == nil {
		outputs = map[string]protocol.NodeOutput{}
	}
	messages := p.Messages
	if messages == nil {
		messages = []string{}
	}
	return protocol.HistoryEntry{
		Prompt:  p.Graph,
		Outputs: outputs,
		Status: protocol.HistoryStatus{
			StatusStr: string(p.Status),
			Completed: p.Status == PromptStatusSuccess,
			Messages:  messages,
		},
	}
}

func ptrTimeNow() *time.Time {
	t := time.Now().UTC()
	return &t
}

// MarkRunning moves the prompt to running and stamps the start time.
func (p *Prompt) MarkRunning() {
	p.Status = PromptStatusRunning
	p.StartedAt = ptrTimeNow()
}

func (p *Prompt) MarkSucceeded(outputs map[string]protocol.NodeOutput) {
	p.Status = PromptStatusSuccess
	p.Outputs = outputs
	p.CompletedAt = ptrTimeNow()
}

func (p *Prompt) MarkFailed(outputs map[string]protocol.NodeOutput, messages ...string) {
	p.Status = PromptStatusError
	p.Outputs = outputs
	p.Messages = append(p.Messages, messages...)
	p.CompletedAt = ptrTimeNow()
}
