package tensor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// CPU is the device every decoded tensor is materialized on.
const CPU = "cpu"

type DType string

const (
	Float64    DType = "float64"
	Float32    DType = "float32"
	Float16    DType = "float16"
	BFloat16   DType = "bfloat16"
	Float8E4M3 DType = "float8_e4m3fn"
	Float8E5M2 DType = "float8_e5m2"
	Int64      DType = "int64"
	Int32      DType = "int32"
	Int16      DType = "int16"
	Int8       DType = "int8"
	Uint8      DType = "uint8"
	Bool       DType = "bool"
)

var elementSizes = map[DType]int{
	Float64:    8,
	Float32:    4,
	Float16:    2,
	BFloat16:   2,
	Float8E4M3: 1,
	Float8E5M2: 1,
	Int64:      8,
	Int32:      4,
	Int16:      2,
	Int8:       1,
	Uint8:      1,
	Bool:       1,
}

// ElementSize returns the byte width of one element, or 0 for unknown dtypes.
func (d DType) ElementSize() int {
	return elementSizes[d]
}

func (d DType) Valid() bool {
	_, ok := elementSizes[d]
	return ok
}

// Tensor is a dense, row-major, little-endian buffer with its shape and dtype.
// The protocol treats it as opaque: nothing between the encoder and the caller
// looks inside Data.
type Tensor struct {
	DType  DType
	Shape  []int64
	Data   []byte
	Device string
}

// NumElements returns the product of the shape. A scalar (empty shape) has one element.
func (t Tensor) NumElements() int64 {
	n := int64(1)
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

// ByteSize returns the expected length of Data, failing when the shape
// overflows int64.
func (t Tensor) ByteSize() (int64, error) {
	n := int64(t.DType.ElementSize())
	for _, dim := range t.Shape {
		if dim < 0 {
			return 0, fmt.Errorf("negative dimension %d", dim)
		}
		if dim != 0 && n > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows", t.Shape)
		}
		n *= dim
	}
	return n, nil
}

func (t Tensor) Validate() error {
	if !t.DType.Valid() {
		return fmt.Errorf("unsupported dtype %q", t.DType)
	}
	for i, dim := range t.Shape {
		if dim < 0 {
			return fmt.Errorf("negative dimension %d at axis %d", dim, i)
		}
	}
	want, err := t.ByteSize()
	if err != nil {
		return err
	}
	if int64(len(t.Data)) != want {
		return fmt.Errorf("data length %d does not match shape %v of %s (want %d bytes)",
			len(t.Data), t.Shape, t.DType, want)
	}
	return nil
}

func (t Tensor) Clone() Tensor {
	return Tensor{
		DType:  t.DType,
		Shape:  slices.Clone(t.Shape),
		Data:   bytes.Clone(t.Data),
		Device: t.Device,
	}
}

// Equal compares dtype, shape and data. Device is ignored.
func (t Tensor) Equal(other Tensor) bool {
	return t.DType == other.DType &&
		slices.Equal(t.Shape, other.Shape) &&
		bytes.Equal(t.Data, other.Data)
}

func (t Tensor) String() string {
	return fmt.Sprintf("tensor(%s, shape=%v, device=%s)", t.DType, t.Shape, t.Device)
}

// FromFloat32 builds a float32 CPU tensor. It panics if len(values) does not
// match the shape.
func FromFloat32(shape []int64, values []float32) Tensor {
	t := Tensor{
		DType:  Float32,
		Shape:  slices.Clone(shape),
		Data:   make([]byte, 4*len(values)),
		Device: CPU,
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(t.Data[4*i:], math.Float32bits(v))
	}
	if err := t.Validate(); err != nil {
		panic(err)
	}
	return t
}

func (t Tensor) Float32s() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor dtype is %s, not %s", t.DType, Float32)
	}
	if len(t.Data)%4 != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of 4", len(t.Data))
	}
	values := make([]float32, len(t.Data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:]))
	}
	return values, nil
}
