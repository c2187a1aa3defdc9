// Package tensor holds the typed NHWC buffers exchanged with inference graphs.
//
// A Tensor is a flat row-major buffer plus a shape. Image tensors are laid out
// as [batch, height, width, channels] with batch fixed to 1, either as raw
// uint8 values (0-255) or as float32 values normalized to [0, 1].
package tensor

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// DataType identifies the element type of a Tensor.
type DataType int

const (
	Uint8 DataType = iota + 1
	Float32
)

func (d DataType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

var (
	ErrShapeMismatch    = errors.New("tensor shape mismatch")
	ErrDTypeMismatch    = errors.New("tensor dtype mismatch")
	ErrUnsupportedDType = errors.New("unsupported tensor dtype")
)

// Shape is a list of dimensions. -1 marks an unknown dimension in a Spec.
type Shape []int64

// NumElements returns the product of all dimensions.
func (s Shape) NumElements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Tensor is a dense buffer. Exactly one of U8 or F32 is populated, matching DType.
type Tensor struct {
	DType DataType
	Shape Shape
	U8    []uint8
	F32   []float32
}

// Spec is the dtype and shape a graph declares for one of its inputs.
type Spec struct {
	Name  string
	DType DataType
	Shape Shape // nil when the rank is unknown
}

// NumElements returns the number of stored elements.
func (t *Tensor) NumElements() int {
	switch t.DType {
	case Uint8:
		return len(t.U8)
	case Float32:
		return len(t.F32)
	}
	return 0
}

// Validate checks that the buffer length agrees with the shape.
func (t *Tensor) Validate() error {
	if t.DType != Uint8 && t.DType != Float32 {
		return fmt.Errorf("%w: %v", ErrUnsupportedDType, t.DType)
	}
	if int64(t.NumElements()) != t.Shape.NumElements() {
		return fmt.Errorf("%w: %d elements for shape %v", ErrShapeMismatch, t.NumElements(), t.Shape)
	}
	return nil
}

// Matches reports whether t can be fed to an input declared by spec.
// Unknown dimensions (-1) and an unknown rank accept any size.
func (t *Tensor) Matches(spec Spec) error {
	if spec.DType != 0 && spec.DType != t.DType {
		return fmt.Errorf("%w: input %q expects %v, got %v", ErrDTypeMismatch, spec.Name, spec.DType, t.DType)
	}
	if spec.Shape == nil {
		return nil
	}
	if len(spec.Shape) != len(t.Shape) {
		return fmt.Errorf("%w: input %q expects %v, got %v", ErrShapeMismatch, spec.Name, spec.Shape, t.Shape)
	}
	for i, d := range spec.Shape {
		if d >= 0 && d != t.Shape[i] {
			return fmt.Errorf("%w: input %q expects %v, got %v", ErrShapeMismatch, spec.Name, spec.Shape, t.Shape)
		}
	}
	return nil
}

// FromHWC packs an interleaved height x width x channels pixel buffer into a
// [1, h, w, c] tensor. Float32 tensors are scaled to [0, 1].
func FromHWC(pix []byte, h, w, c int, dtype DataType) (*Tensor, error) {
	if h <= 0 || w <= 0 || c <= 0 {
		return nil, fmt.Errorf("%w: invalid image size %dx%dx%d", ErrShapeMismatch, h, w, c)
	}
	n := h * w * c
	if len(pix) < n {
		return nil, fmt.Errorf("%w: %d bytes for %dx%dx%d image", ErrShapeMismatch, len(pix), h, w, c)
	}
	shape := Shape{1, int64(h), int64(w), int64(c)}

	switch dtype {
	case Uint8:
		data := make([]uint8, n)
		copy(data, pix[:n])
		return &Tensor{DType: Uint8, Shape: shape, U8: data}, nil
	case Float32:
		data := make([]float32, n)
		for i := 0; i < n; i++ {
			data[i] = float32(pix[i]) / 255.0
		}
		return &Tensor{DType: Float32, Shape: shape, F32: data}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedDType, dtype)
}

// Uint8ToFloat32 returns a new float32 tensor with every value divided by 255.
func Uint8ToFloat32(t *Tensor) (*Tensor, error) {
	if t.DType != Uint8 {
		return nil, fmt.Errorf("%w: expected uint8 input, got %v", ErrDTypeMismatch, t.DType)
	}
	out := &Tensor{DType: Float32, Shape: append(Shape(nil), t.Shape...), F32: make([]float32, len(t.U8))}
	for i, v := range t.U8 {
		out.F32[i] = float32(v) / 255.0
	}
	return out, nil
}

// ImageSize returns height, width and channels of a [1, H, W, C] tensor.
func (t *Tensor) ImageSize() (h, w, c int, err error) {
	if len(t.Shape) != 4 || t.Shape[0] != 1 {
		return 0, 0, 0, fmt.Errorf("%w: expected [1, height, width, channels], got %v", ErrShapeMismatch, t.Shape)
	}
	return int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3]), nil
}

// ToHWC converts a [1, H, W, C] tensor back to interleaved bytes.
// Float32 values are scaled by 255 and clamped.
func ToHWC(t *Tensor) ([]byte, error) {
	if _, _, _, err := t.ImageSize(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch t.DType {
	case Uint8:
		out := make([]byte, len(t.U8))
		copy(out, t.U8)
		return out, nil
	case Float32:
		out := make([]byte, len(t.F32))
		for i, v := range t.F32 {
			out[i] = uint8(math32.Round(clamp(v*255, 0, 255)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedDType, t.DType)
}

// Floats returns the tensor values widened to float32, whatever the dtype.
func (t *Tensor) Floats() []float32 {
	if t.DType == Float32 {
		return t.F32
	}
	out := make([]float32, len(t.U8))
	for i, v := range t.U8 {
		out[i] = float32(v)
	}
	return out
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
