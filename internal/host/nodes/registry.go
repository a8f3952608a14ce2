// Package nodes holds the node classes the host can execute.
package nodes

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/nemanja-m/wanremote/pkg/protocol"
)

var ErrUnknownClass = errors.New("unknown node class")

// Result is what a node produces: positional outputs that downstream
// references index into, and the UI payload reported for output nodes.
type Result struct {
	Outputs []any
	UI      protocol.NodeOutput
}

type Class struct {
	Name     string
	Required []string
	Optional []string
	// OutputNode marks classes whose UI payload lands in the prompt history.
	OutputNode bool
	// Check validates literal inputs before a prompt is queued. Inputs fed
	// by references are absent from the map.
	Check func(literals Inputs) error
	Run   func(ctx context.Context, in Inputs) (Result, error)
}

type Registry struct {
	mu      sync.RWMutex
	classes map[string]Class
}

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]Class)}
}

func (r *Registry) Register(class Class) error {
	if class.Name == "" || class.Run == nil {
		return fmt.Errorf("node class needs a name and a run function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[class.Name]; exists {
		return fmt.Errorf("node class already registered: %s", class.Name)
	}
	r.classes[class.Name] = class
	return nil
}

func (r *Registry) Get(name string) (Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	class, exists := r.classes[name]
	if !exists {
		return Class{}, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return class, nil
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
