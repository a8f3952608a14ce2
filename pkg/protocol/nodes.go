package protocol

import (
	"fmt"
	"strings"
)

// Node classes used by the remote text-encode graph.
const (
	ClassCLIPLoader     = "CLIPLoader"
	ClassCLIPTextEncode = "CLIPTextEncode"
	ClassRemoteSaver    = "RemoteCLIPHostSaver"
)

// Node input names.
const (
	InputCLIPName       = "clip_name"
	InputType           = "type"
	InputText           = "text"
	InputCLIP           = "clip"
	InputPositive       = "positive"
	InputNegative       = "negative"
	InputFilenamePrefix = "filename_prefix"
)

// EncoderType selects the text encoder family a CLIPLoader instantiates.
type EncoderType string

const (
	EncoderWan             EncoderType = "wan"
	EncoderStableDiffusion EncoderType = "stable_diffusion"
	EncoderStableCascade   EncoderType = "stable_cascade"
	EncoderSD3             EncoderType = "sd3"
	EncoderStableAudio     EncoderType = "stable_audio"
	EncoderHunyuanDiT      EncoderType = "hunyuan_dit"
	EncoderFlux            EncoderType = "flux"
	EncoderMochi           EncoderType = "mochi"
	EncoderLTXV            EncoderType = "ltxv"
	EncoderHunyuanVideo    EncoderType = "hunyuan_video"
	EncoderPixArt          EncoderType = "pixart"
	EncoderCosmos          EncoderType = "cosmos"
	EncoderLumina2         EncoderType = "lumina2"
	EncoderHiDream         EncoderType = "hidream"
	EncoderChroma          EncoderType = "chroma"
	EncoderACE             EncoderType = "ace"
	EncoderOmniGen2        EncoderType = "omnigen2"
	EncoderQwenImage       EncoderType = "qwen_image"
	EncoderHunyuanImage    EncoderType = "hunyuan_image"
	EncoderHunyuanVideo15  EncoderType = "hunyuan_video_15"
)

const DefaultEncoderType = EncoderWan

// EncoderTypes lists every accepted encoder type in presentation order.
var EncoderTypes = []EncoderType{
	EncoderWan, EncoderStableDiffusion, EncoderStableCascade, EncoderSD3,
	EncoderStableAudio, EncoderHunyuanDiT, EncoderFlux, EncoderMochi,
	EncoderLTXV, EncoderHunyuanVideo, EncoderPixArt, EncoderCosmos,
	EncoderLumina2, EncoderHiDream, EncoderChroma, EncoderACE,
	EncoderOmniGen2, EncoderQwenImage, EncoderHunyuanImage, EncoderHunyuanVideo15,
}

func (e EncoderType) Valid() bool {
	for _, known := range EncoderTypes {
		if e == known {
			return true
		}
	}
	return false
}

func ParseEncoderType(s string) (EncoderType, error) {
	e := EncoderType(strings.TrimSpace(s))
	if !e.Valid() {
		return "", fmt.Errorf("unknown encoder type %q", s)
	}
	return e, nil
}
