package nodes

import (
	"fmt"

	"github.com/nemanja-m/wanremote/internal/host/encoder"
	"github.com/nemanja-m/wanremote/pkg/tensor"
)

// Inputs maps input names to resolved values: literals from the graph or
// outputs of upstream nodes.
type Inputs map[string]any

func (in Inputs) String(name string) (string, error) {
	v, ok := in[name]
	if !ok {
		return "", fmt.Errorf("missing input %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("input %q must be a string, got %T", name, v)
	}
	return s, nil
}

func (in Inputs) StringOr(name, fallback string) (string, error) {
	if _, ok := in[name]; !ok {
		return fallback, nil
	}
	return in.String(name)
}

func (in Inputs) Tensor(name string) (tensor.Tensor, error) {
	v, ok := in[name]
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("missing input %q", name)
	}
	t, ok := v.(tensor.Tensor)
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("input %q must be a tensor, got %T", name, v)
	}
	return t, nil
}

func (in Inputs) CLIP(name string) (*encoder.Model, error) {
	v, ok := in[name]
	if !ok {
		return nil, fmt.Errorf("missing input %q", name)
	}
	m, ok := v.(*encoder.Model)
	if !ok {
		return nil, fmt.Errorf("input %q must be a CLIP model, got %T", name, v)
	}
	return m, nil
}

func fmtNotInList(input, value string) error {
	return fmt.Errorf("value not in list: %s: %q", input, value)
}
