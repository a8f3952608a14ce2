package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/internal/host/nodes"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

type executor struct {
	registry *nodes.Registry
	logger   logging.Logger
}

func NewExecutor(registry *nodes.Registry, logger logging.Logger) core.PromptExecutor {
	return &executor{registry: registry, logger: logger}
}

// Execute runs the graph's nodes in dependency order, feeding each node the
// outputs of the nodes it references.
func (e *executor) Execute(ctx context.Context, prompt *core.Prompt) (map[string]protocol.NodeOutput, error) {
	ui := make(map[string]protocol.NodeOutput)

	order, err := prompt.Graph.TopologicalOrder()
	if err != nil {
		return ui, err
	}

	results := make(map[string]nodes.Result, len(order))
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return ui, err
		}

		node, _ := prompt.Graph.Node(id)
		class, err := e.registry.Get(node.ClassType)
		if err != nil {
			return ui, fmt.Errorf("node %s: %w", id, err)
		}

		in := make(nodes.Inputs, len(node.Inputs))
		for name, input := range node.Inputs {
			switch v := input.(type) {
			case protocol.Literal:
				in[name] = v.Value
			case protocol.Reference:
				upstream := results[v.NodeID]
				if v.OutputIndex < 0 || v.OutputIndex >= len(upstream.Outputs) {
					return ui, fmt.Errorf("node %s (%s): input %q references missing output %s",
						id, node.ClassType, name, v)
				}
				in[name] = upstream.Outputs[v.OutputIndex]
			}
		}

		start := time.Now()
		res, err := class.Run(ctx, in)
		if err != nil {
			return ui, fmt.Errorf("node %s (%s): %w", id, node.ClassType, err)
		}
		results[id] = res
		if class.OutputNode && res.UI != nil {
			ui[id] = res.UI
		}

		e.logger.Debug("Node executed",
			"prompt_id", prompt.ID,
			"node_id", id,
			"class_type", node.ClassType,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return ui, nil
}
