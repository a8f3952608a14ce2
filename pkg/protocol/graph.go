package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrDanglingReference = errors.New("reference to unknown node")
	ErrCycle             = errors.New("graph contains a cycle")
)

// Input is a node input: either a Literal value or a Reference to another
// node's output. The execution host resolves references; this package only
// builds and inspects them.
type Input interface {
	isInput()
}

type Literal struct {
	Value any
}

type Reference struct {
	NodeID      string
	OutputIndex int
}

func (Literal) isInput()   {}
func (Reference) isInput() {}

func (l Literal) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Value)
}

// MarshalJSON encodes the reference as the host's ["<node id>", <output index>] pair.
func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.NodeID, r.OutputIndex})
}

func (r Reference) String() string {
	return fmt.Sprintf("%s[%d]", r.NodeID, r.OutputIndex)
}

// decodeInput turns a raw JSON input value into a Reference when it has the
// ["<id>", <int>] shape and into a Literal otherwise.
func decodeInput(raw json.RawMessage) (Input, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err == nil && len(pair) == 2 {
		var id string
		var index int
		if json.Unmarshal(pair[0], &id) == nil && json.Unmarshal(pair[1], &index) == nil {
			return Reference{NodeID: id, OutputIndex: index}, nil
		}
	}

	var value any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return Literal{Value: value}, nil
}

type NodeMeta struct {
	Title string `json:"title,omitempty"`
}

type Node struct {
	ClassType string
	Inputs    map[string]Input
	Meta      *NodeMeta
}

type nodeJSON struct {
	Inputs    map[string]json.RawMessage `json:"inputs"`
	ClassType string                     `json:"class_type"`
	Meta      *NodeMeta                  `json:"_meta,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	inputs := make(map[string]json.RawMessage, len(n.Inputs))
	for name, input := range n.Inputs {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		inputs[name] = raw
	}
	return json.Marshal(nodeJSON{Inputs: inputs, ClassType: n.ClassType, Meta: n.Meta})
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ClassType = raw.ClassType
	n.Meta = raw.Meta
	n.Inputs = make(map[string]Input, len(raw.Inputs))
	for name, value := range raw.Inputs {
		input, err := decodeInput(value)
		if err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		n.Inputs[name] = input
	}
	return nil
}

// References returns the node's reference inputs sorted by input name.
func (n Node) References() []Reference {
	names := make([]string, 0, len(n.Inputs))
	for name, input := range n.Inputs {
		if _, ok := input.(Reference); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	refs := make([]Reference, 0, len(names))
	for _, name := range names {
		refs = append(refs, n.Inputs[name].(Reference))
	}
	return refs
}

// JobGraph maps node ids to nodes and remembers insertion order.
type JobGraph struct {
	order []string
	nodes map[string]Node
}

func NewJobGraph() *JobGraph {
	return &JobGraph{nodes: make(map[string]Node)}
}

// Add inserts or replaces a node. Replacing keeps the original position.
func (g *JobGraph) Add(id string, node Node) {
	if g.nodes == nil {
		g.nodes = make(map[string]Node)
	}
	if _, exists := g.nodes[id]; !exists {
		g.order = append(g.order, id)
	}
	g.nodes[id] = node
}

func (g *JobGraph) Node(id string) (Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

func (g *JobGraph) IDs() []string {
	return slices.Clone(g.order)
}

func (g *JobGraph) Len() int {
	return len(g.order)
}

// Validate reports references to node ids that are not part of the graph.
// Cycles and class semantics are left to the execution host.
func (g *JobGraph) Validate() error {
	var errs []error
	for _, id := range g.order {
		for _, ref := range g.nodes[id].References() {
			if _, ok := g.nodes[ref.NodeID]; !ok {
				errs = append(errs, fmt.Errorf("%w: node %s references %s", ErrDanglingReference, id, ref))
			}
		}
	}
	return errors.Join(errs...)
}

// TopologicalOrder returns node ids so that every node follows the nodes it
// references. Ties keep insertion order.
func (g *JobGraph) TopologicalOrder() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(g.order))
	dependents := make(map[string][]string, len(g.order))
	for _, id := range g.order {
		seen := make(map[string]bool)
		for _, ref := range g.nodes[id].References() {
			if seen[ref.NodeID] {
				continue
			}
			seen[ref.NodeID] = true
			indegree[id]++
			dependents[ref.NodeID] = append(dependents[ref.NodeID], id)
		}
	}

	var ready []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	sorted := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(sorted) != len(g.order) {
		return nil, ErrCycle
	}
	return sorted, nil
}

// MarshalJSON writes the graph as a JSON object with keys in insertion order.
func (g JobGraph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(g.nodes[id])
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (g *JobGraph) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("job graph must be a JSON object")
	}

	g.order = nil
	g.nodes = make(map[string]Node)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var node Node
		if err := dec.Decode(&node); err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		g.Add(id, node)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
