package core

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var ErrPromptNotFound = errors.New("prompt not found")

// ValidationError describes why a submitted graph was refused. NodeErrors is
// keyed by node id.
type ValidationError struct {
	Type       string
	Message    string
	NodeErrors map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.NodeErrors) == 0 {
		return e.Message
	}
	var b strings.Builder
	b.WriteString(e.Message)
	for _, id := range slices.Sorted(maps.Keys(e.NodeErrors)) {
		fmt.Fprintf(&b, "; node %s: %s", id, strings.Join(e.NodeErrors[id], ", "))
	}
	return b.String()
}

// AddNodeError records a problem with a single node.
func (e *ValidationError) AddNodeError(nodeID, format string, args ...any) {
	if e.NodeErrors == nil {
		e.NodeErrors = make(map[string][]string)
	}
	e.NodeErrors[nodeID] = append(e.NodeErrors[nodeID], fmt.Sprintf(format, args...))
}
