package storage

import (
	"fmt"
	"sync"

	"github.com/nemanja-m/wanremote/internal/host/core"
)

// InMemoryPromptStore keeps every prompt and the completion order of finished ones.
// Stored prompts are copies, so callers may keep mutating the values they pass in.
type InMemoryPromptStore struct {
	mu       sync.RWMutex
	prompts  map[string]*core.Prompt
	finished []string
}

func NewInMemoryPromptStore() *InMemoryPromptStore {
	return &InMemoryPromptStore{
		prompts: make(map[string]*core.Prompt),
	}
}

func (s *InMemoryPromptStore) SavePrompt(prompt *core.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.prompts[prompt.ID]; exists {
		return fmt.Errorf("prompt %s already exists", prompt.ID)
	}
	s.prompts[prompt.ID] = prompt.Clone()
	if prompt.Status.Finished() {
		s.finished = append(s.finished, prompt.ID)
	}
	return nil
}

func (s *InMemoryPromptStore) UpdatePrompt(prompt *core.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.prompts[prompt.ID]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrPromptNotFound, prompt.ID)
	}
	s.prompts[prompt.ID] = prompt.Clone()
	if prompt.Status.Finished() && !prev.Status.Finished() {
		s.finished = append(s.finished, prompt.ID)
	}
	return nil
}

func (s *InMemoryPromptStore) GetPrompt(id string) (*core.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prompt, exists := s.prompts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrPromptNotFound, id)
	}
	return prompt.Clone(), nil
}

func (s *InMemoryPromptStore) History(maxItems int) ([]*core.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.finished
	if maxItems > 0 && len(ids) > maxItems {
		ids = ids[len(ids)-maxItems:]
	}
	prompts := make([]*core.Prompt, 0, len(ids))
	for _, id := range ids {
		prompts = append(prompts, s.prompts[id].Clone())
	}
	return prompts, nil
}

// ClearHistory forgets finished prompts. Pending and running ones stay.
func (s *InMemoryPromptStore) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.finished {
		delete(s.prompts, id)
	}
	s.finished = nil
	return nil
}
