package nodes

import (
	"context"

	"github.com/nemanja-m/wanremote/internal/collector"
	"github.com/nemanja-m/wanremote/internal/host/encoder"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

// RegisterBuiltins registers the loader, text encoder and remote saver classes.
func RegisterBuiltins(r *Registry, loader *encoder.Loader, col *collector.Collector) error {
	classes := []Class{
		clipLoader(loader),
		clipTextEncode(),
		remoteSaver(col),
	}
	for _, c := range classes {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func clipLoader(loader *encoder.Loader) Class {
	return Class{
		Name:     protocol.ClassCLIPLoader,
		Required: []string{protocol.InputCLIPName, protocol.InputType},
		Check: func(in Inputs) error {
			if _, ok := in[protocol.InputCLIPName]; ok {
				name, err := in.String(protocol.InputCLIPName)
				if err != nil {
					return err
				}
				if !loader.Known(name) {
					return fmtNotInList(protocol.InputCLIPName, name)
				}
			}
			if _, ok := in[protocol.InputType]; ok {
				typ, err := in.String(protocol.InputType)
				if err != nil {
					return err
				}
				if _, err := protocol.ParseEncoderType(typ); err != nil {
					return fmtNotInList(protocol.InputType, typ)
				}
			}
			return nil
		},
		Run: func(ctx context.Context, in Inputs) (Result, error) {
			name, err := in.String(protocol.InputCLIPName)
			if err != nil {
				return Result{}, err
			}
			typ, err := in.String(protocol.InputType)
			if err != nil {
				return Result{}, err
			}
			encoderType, err := protocol.ParseEncoderType(typ)
			if err != nil {
				return Result{}, err
			}
			model, err := loader.Load(name, encoderType)
			if err != nil {
				return Result{}, err
			}
			return Result{Outputs: []any{model}}, nil
		},
	}
}

func clipTextEncode() Class {
	return Class{
		Name:     protocol.ClassCLIPTextEncode,
		Required: []string{protocol.InputText, protocol.InputCLIP},
		Check: func(in Inputs) error {
			if _, ok := in[protocol.InputText]; ok {
				_, err := in.String(protocol.InputText)
				return err
			}
			return nil
		},
		Run: func(ctx context.Context, in Inputs) (Result, error) {
			text, err := in.String(protocol.InputText)
			if err != nil {
				return Result{}, err
			}
			model, err := in.CLIP(protocol.InputCLIP)
			if err != nil {
				return Result{}, err
			}
			return Result{Outputs: []any{model.Encode(text)}}, nil
		},
	}
}

func remoteSaver(col *collector.Collector) Class {
	return Class{
		Name:       protocol.ClassRemoteSaver,
		Required:   []string{protocol.InputPositive, protocol.InputNegative},
		Optional:   []string{protocol.InputFilenamePrefix},
		OutputNode: true,
		Check: func(in Inputs) error {
			if _, ok := in[protocol.InputFilenamePrefix]; !ok {
				return nil
			}
			prefix, err := in.String(protocol.InputFilenamePrefix)
			if err != nil {
				return err
			}
			return protocol.ValidatePrefix(prefix)
		},
		Run: func(ctx context.Context, in Inputs) (Result, error) {
			positive, err := in.Tensor(protocol.InputPositive)
			if err != nil {
				return Result{}, err
			}
			negative, err := in.Tensor(protocol.InputNegative)
			if err != nil {
				return Result{}, err
			}
			prefix, err := in.StringOr(protocol.InputFilenamePrefix, protocol.DefaultCollectorPrefix)
			if err != nil {
				return Result{}, err
			}
			res, err := col.Collect(ctx, positive, negative, prefix)
			if err != nil {
				return Result{}, err
			}
			return Result{UI: res.UI}, nil
		},
	}
}
