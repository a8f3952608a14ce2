package core

import "github.com/nemanja-m/wanremote/pkg/protocol"

// Fixed node ids of the remote text-encode graph.
const (
	NodeLoader      = "10"
	NodePosEncode   = "20"
	NodeNegEncode   = "30"
	NodeRemoteSaver = "40"
)

// BuildGraph returns the four-node graph that loads the encoder on the host,
// encodes both prompts and hands the results to the collector.
func BuildGraph(req Request, clientID string) *protocol.JobGraph {
	clip := protocol.Reference{NodeID: NodeLoader, OutputIndex: 0}

	g := protocol.NewJobGraph()
	g.Add(NodeLoader, protocol.Node{
		ClassType: protocol.ClassCLIPLoader,
		Inputs: map[string]protocol.Input{
			protocol.InputCLIPName: protocol.Literal{Value: req.Loader.EncoderName},
			protocol.InputType:     protocol.Literal{Value: string(req.Loader.EncoderType)},
		},
		Meta: &protocol.NodeMeta{Title: "Remote CLIP Loader"},
	})
	g.Add(NodePosEncode, protocol.Node{
		ClassType: protocol.ClassCLIPTextEncode,
		Inputs: map[string]protocol.Input{
			protocol.InputText: protocol.Literal{Value: req.Positive},
			protocol.InputCLIP: clip,
		},
		Meta: &protocol.NodeMeta{Title: "Pos Encode"},
	})
	g.Add(NodeNegEncode, protocol.Node{
		ClassType: protocol.ClassCLIPTextEncode,
		Inputs: map[string]protocol.Input{
			protocol.InputText: protocol.Literal{Value: req.Negative},
			protocol.InputCLIP: clip,
		},
		Meta: &protocol.NodeMeta{Title: "Neg Encode"},
	})
	g.Add(NodeRemoteSaver, protocol.Node{
		ClassType: protocol.ClassRemoteSaver,
		Inputs: map[string]protocol.Input{
			protocol.InputPositive:       protocol.Reference{NodeID: NodePosEncode, OutputIndex: 0},
			protocol.InputNegative:       protocol.Reference{NodeID: NodeNegEncode, OutputIndex: 0},
			protocol.InputFilenamePrefix: protocol.Literal{Value: protocol.FilenamePrefix(req.FilenamePrefix, clientID)},
		},
		Meta: &protocol.NodeMeta{Title: "Remote Saver"},
	})
	return g
}
