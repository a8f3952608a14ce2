// Package artifact implements the binary format shared by the collector,
// which writes the two conditioning tensors after a remote run, and the
// dispatcher, which downloads and decodes them.
//
// Layout:
//
//	magic "WRAF" | payload (protobuf wire format) | CRC-32 IEEE of payload (big endian)
//
// Payload:
//
//	1: version (varint)
//	2: entry (bytes, repeated)
//
// Entry:
//
//	1: name (string)      4: device (string)     7: raw_size (varint)
//	2: dtype (string)     5: encoding (varint)
//	3: shape (packed)     6: data (bytes)
package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nemanja-m/wanremote/pkg/tensor"
)

// ErrDecode is returned for any blob that is not a complete, well-formed artifact.
var ErrDecode = errors.New("artifact decode error")

const (
	Version = 1

	KeyPositive = "positive"
	KeyNegative = "negative"

	ContentType = "application/octet-stream"
)

var magic = [4]byte{'W', 'R', 'A', 'F'}

const (
	fieldVersion protowire.Number = 1
	fieldEntry   protowire.Number = 2
)

const (
	fieldName     protowire.Number = 1
	fieldDType    protowire.Number = 2
	fieldShape    protowire.Number = 3
	fieldDevice   protowire.Number = 4
	fieldEncoding protowire.Number = 5
	fieldData     protowire.Number = 6
	fieldRawSize  protowire.Number = 7
)

// Artifact is the decoded pair of conditioning tensors.
type Artifact struct {
	Positive tensor.Tensor
	Negative tensor.Tensor
}

type encodeOptions struct {
	compression Compression
}

type EncodeOption func(*encodeOptions)

func WithCompression(c Compression) EncodeOption {
	return func(o *encodeOptions) {
		o.compression = c
	}
}

// Encode serializes both tensors. Shape and dtype are preserved exactly; the
// source device is recorded but ignored on decode.
func Encode(positive, negative tensor.Tensor, opts ...EncodeOption) ([]byte, error) {
	options := encodeOptions{compression: CompressionNone}
	for _, opt := range opts {
		opt(&options)
	}

	var payload []byte
	payload = protowire.AppendTag(payload, fieldVersion, protowire.VarintType)
	payload = protowire.AppendVarint(payload, Version)

	for _, e := range []struct {
		name string
		t    tensor.Tensor
	}{
		{KeyPositive, positive},
		{KeyNegative, negative},
	} {
		entry, err := encodeEntry(e.name, e.t, options.compression)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", e.name, err)
		}
		payload = protowire.AppendTag(payload, fieldEntry, protowire.BytesType)
		payload = protowire.AppendBytes(payload, entry)
	}

	return seal(payload), nil
}

// seal frames a payload with the magic prefix and checksum trailer.
func seal(payload []byte) []byte {
	out := make([]byte, 0, len(magic)+len(payload)+4)
	out = append(out, magic[:]...)
	out = append(out, payload...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(payload))
}

func encodeEntry(name string, t tensor.Tensor, compression Compression) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	data, err := compress(compression, t.Data)
	if err != nil {
		return nil, err
	}

	var shape []byte
	for _, dim := range t.Shape {
		shape = protowire.AppendVarint(shape, uint64(dim))
	}

	device := t.Device
	if device == "" {
		device = tensor.CPU
	}

	var b []byte
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	b = protowire.AppendTag(b, fieldDType, protowire.BytesType)
	b = protowire.AppendString(b, string(t.DType))
	b = protowire.AppendTag(b, fieldShape, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)
	b = protowire.AppendTag(b, fieldDevice, protowire.BytesType)
	b = protowire.AppendString(b, device)
	b = protowire.AppendTag(b, fieldEncoding, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(compression))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	b = protowire.AppendTag(b, fieldRawSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(t.Data)))
	return b, nil
}

// Decode parses an artifact. Every returned tensor lives on tensor.CPU
// regardless of the device it was saved from.
func Decode(data []byte) (Artifact, error) {
	if len(data) < len(magic)+4 {
		return Artifact{}, fmt.Errorf("%w: blob too short (%d bytes)", ErrDecode, len(data))
	}
	if [4]byte(data[:4]) != magic {
		return Artifact{}, fmt.Errorf("%w: bad magic %q", ErrDecode, data[:4])
	}

	payload := data[4 : len(data)-4]
	want := binary.BigEndian.Uint32(data[len(data)-4:])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return Artifact{}, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrDecode, got, want)
	}

	entries, err := decodePayload(payload)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	positive, ok := entries[KeyPositive]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: missing %q entry", ErrDecode, KeyPositive)
	}
	negative, ok := entries[KeyNegative]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: missing %q entry", ErrDecode, KeyNegative)
	}
	return Artifact{Positive: positive, Negative: negative}, nil
}

func decodePayload(b []byte) (map[string]tensor.Tensor, error) {
	entries := make(map[string]tensor.Tensor, 2)
	version := uint64(0)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			version = v
			b = b[n:]
		case num == fieldEntry && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			name, t, err := decodeEntry(raw)
			if err != nil {
				return nil, err
			}
			if _, dup := entries[name]; dup {
				return nil, fmt.Errorf("duplicate entry %q", name)
			}
			entries[name] = t
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if version != Version {
		return nil, fmt.Errorf("unsupported version %d", version)
	}
	return entries, nil
}

func decodeEntry(b []byte) (string, tensor.Tensor, error) {
	var (
		name        string
		t           tensor.Tensor
		data        []byte
		compression Compression
		rawSize     uint64
		hasRawSize  bool
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", tensor.Tensor{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			name, n = protowire.ConsumeString(b)
		case num == fieldDType && typ == protowire.BytesType:
			var s string
			s, n = protowire.ConsumeString(b)
			t.DType = tensor.DType(s)
		case num == fieldShape && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				shape, err := decodeShape(packed)
				if err != nil {
					return "", tensor.Tensor{}, err
				}
				t.Shape = shape
			}
		case num == fieldDevice && typ == protowire.BytesType:
			// Recorded for diagnostics only; decoded tensors always live on the CPU.
			_, n = protowire.ConsumeString(b)
		case num == fieldEncoding && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			compression = Compression(v)
		case num == fieldData && typ == protowire.BytesType:
			data, n = protowire.ConsumeBytes(b)
		case num == fieldRawSize && typ == protowire.VarintType:
			rawSize, n = protowire.ConsumeVarint(b)
			hasRawSize = true
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return "", tensor.Tensor{}, protowire.ParseError(n)
		}
		b = b[n:]
	}

	if name == "" {
		return "", tensor.Tensor{}, errors.New("entry without name")
	}

	want, err := t.ByteSize()
	if err != nil {
		return "", tensor.Tensor{}, fmt.Errorf("entry %q: %w", name, err)
	}
	if hasRawSize && int64(rawSize) != want {
		return "", tensor.Tensor{}, fmt.Errorf("entry %q: raw size %d does not match shape %v of %s",
			name, rawSize, t.Shape, t.DType)
	}

	t.Data, err = decompress(compression, data, want)
	if err != nil {
		return "", tensor.Tensor{}, fmt.Errorf("entry %q: %w", name, err)
	}
	t.Device = tensor.CPU

	if err := t.Validate(); err != nil {
		return "", tensor.Tensor{}, fmt.Errorf("entry %q: %w", name, err)
	}
	return name, t, nil
}

func decodeShape(b []byte) ([]int64, error) {
	shape := []int64{}
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		if v > 1<<62 {
			return nil, fmt.Errorf("dimension %d out of range", v)
		}
		shape = append(shape, int64(v))
		b = b[n:]
	}
	return shape, nil
}
