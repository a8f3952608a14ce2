package artifact

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

type Compression uint64

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
)

// maxDecodedEntry bounds the memory a single decompressed tensor may claim.
const maxDecodedEntry = 4 << 30

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint64(c))
	}
}

func (c Compression) Valid() bool {
	return c == CompressionNone || c == CompressionZstd
}

func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdErr     error
)

func sharedEncoder() (*zstd.Encoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return zstdEncoder, zstdErr
}

func compress(c Compression, data []byte) ([]byte, error) {
	if len(data) == 0 && c.Valid() {
		return data, nil
	}
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		enc, err := sharedEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}

func decompress(c Compression, data []byte, size int64) ([]byte, error) {
	if len(data) == 0 && size == 0 && c.Valid() {
		return data, nil
	}
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		if size > maxDecodedEntry {
			return nil, fmt.Errorf("decoded size %d exceeds limit", size)
		}
		return decodeZstd(data, size)
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}

// decodeZstd streams the frame and stops one byte past size, so memory grows
// with the bytes actually produced rather than with the declared shape.
func decodeZstd(data []byte, size int64) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxDecodedEntry))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out, err := io.ReadAll(io.LimitReader(dec, size+1))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if int64(len(out)) != size {
		return nil, fmt.Errorf("zstd: decoded %d bytes, shape needs %d", len(out), size)
	}
	return out, nil
}
