// Package encoder provides a deterministic stand-in for the host's text
// encoders. Each whitespace-separated token is hashed into a seed for a
// pseudo-random embedding row, so equal inputs always produce equal tensors.
package encoder

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"github.com/nemanja-m/wanremote/pkg/protocol"
	"github.com/nemanja-m/wanremote/pkg/tensor"
)

// hiddenSizes is the embedding width each encoder family produces.
var hiddenSizes = map[protocol.EncoderType]int{
	protocol.EncoderWan:             4096,
	protocol.EncoderStableDiffusion: 768,
	protocol.EncoderStableCascade:   1280,
	protocol.EncoderSD3:             4096,
	protocol.EncoderStableAudio:     768,
	protocol.EncoderHunyuanDiT:      1024,
	protocol.EncoderFlux:            4096,
	protocol.EncoderMochi:           4096,
	protocol.EncoderLTXV:            4096,
	protocol.EncoderHunyuanVideo:    4096,
	protocol.EncoderPixArt:          4096,
	protocol.EncoderCosmos:          1024,
	protocol.EncoderLumina2:         2304,
	protocol.EncoderHiDream:         4096,
	protocol.EncoderChroma:          4096,
	protocol.EncoderACE:             768,
	protocol.EncoderOmniGen2:        2048,
	protocol.EncoderQwenImage:       3584,
	protocol.EncoderHunyuanImage:    3584,
	protocol.EncoderHunyuanVideo15:  3584,
}

func HiddenSize(t protocol.EncoderType) (int, error) {
	dim, ok := hiddenSizes[t]
	if !ok {
		return 0, fmt.Errorf("unknown encoder type %q", t)
	}
	return dim, nil
}

// Model is a loaded text encoder.
type Model struct {
	Name string
	Type protocol.EncoderType
	Dim  int
}

// Loader resolves encoder names to models. An empty allow list accepts any name.
type Loader struct {
	allowed map[string]struct{}
}

func NewLoader(models []string) *Loader {
	l := &Loader{}
	if len(models) > 0 {
		l.allowed = make(map[string]struct{}, len(models))
		for _, m := range models {
			l.allowed[m] = struct{}{}
		}
	}
	return l
}

// Known reports whether name may be loaded.
func (l *Loader) Known(name string) bool {
	if l.allowed == nil {
		return name != ""
	}
	_, ok := l.allowed[name]
	return ok
}

func (l *Loader) Load(name string, t protocol.EncoderType) (*Model, error) {
	if !l.Known(name) {
		return nil, fmt.Errorf("text encoder %q not found", name)
	}
	dim, err := HiddenSize(t)
	if err != nil {
		return nil, err
	}
	return &Model{Name: name, Type: t, Dim: dim}, nil
}

// Encode returns a float32 tensor of shape [1, tokens, Dim]. Empty text
// encodes as a single padding token.
func (m *Model) Encode(text string) tensor.Tensor {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		tokens = []string{""}
	}

	modelSeed := seed(m.Name, string(m.Type))
	values := make([]float32, 0, len(tokens)*m.Dim)
	for pos, tok := range tokens {
		rng := rand.New(rand.NewPCG(modelSeed, seed(tok)^uint64(pos)))
		for range m.Dim {
			values = append(values, rng.Float32()*2-1)
		}
	}
	return tensor.FromFloat32([]int64{1, int64(len(tokens)), int64(m.Dim)}, values)
}

// seed folds the parts into a 64-bit FNV-1a value. A zero byte separates the
// parts so ("ab", "c") and ("a", "bc") differ.
func seed(parts ...string) uint64 {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return h.Sum64()
}
