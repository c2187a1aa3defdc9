package tfmodel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	tf "github.com/tensorflow/tensorflow/tensorflow/go"
	"homewatch/internal/tensor"
)

// splitEndpoint splits "StatefulPartitionedCall:1" into the operation name and output index.
func splitEndpoint(name string) (string, int, error) {
	op, idx, found := strings.Cut(name, ":")
	if op == "" {
		return "", 0, fmt.Errorf("empty graph endpoint name %q", name)
	}
	if !found {
		return op, 0, nil
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 {
		return "", 0, fmt.Errorf("invalid output index in %q", name)
	}
	return op, i, nil
}

func normalizeEndpoint(name string) string {
	op, idx, err := splitEndpoint(name)
	if err != nil {
		return name
	}
	return op + ":" + strconv.Itoa(idx)
}

func resolveOutput(graph *tf.Graph, name string) (tf.Output, error) {
	opName, idx, err := splitEndpoint(name)
	if err != nil {
		return tf.Output{}, err
	}
	op := graph.Operation(opName)
	if op == nil {
		return tf.Output{}, fmt.Errorf("operation %q not found in graph", opName)
	}
	if idx >= op.NumOutputs() {
		return tf.Output{}, fmt.Errorf("operation %q has %d outputs, requested %d", opName, op.NumOutputs(), idx)
	}
	return op.Output(idx), nil
}

func fromTFDataType(dt tf.DataType) tensor.DataType {
	switch dt {
	case tf.Uint8:
		return tensor.Uint8
	case tf.Float:
		return tensor.Float32
	}
	return 0
}

// toTF builds a binding tensor from a flat buffer and reshapes it in place.
func toTF(t *tensor.Tensor) (*tf.Tensor, error) {
	var (
		tt  *tf.Tensor
		err error
	)
	switch t.DType {
	case tensor.Uint8:
		tt, err = tf.NewTensor(t.U8)
	case tensor.Float32:
		tt, err = tf.NewTensor(t.F32)
	default:
		return nil, fmt.Errorf("%w: %v", tensor.ErrUnsupportedDType, t.DType)
	}
	if err != nil {
		return nil, err
	}
	if err := tt.Reshape([]int64(t.Shape)); err != nil {
		return nil, fmt.Errorf("reshape to %v: %w", t.Shape, err)
	}
	return tt, nil
}

// fromTF copies the raw contents of a binding tensor. TensorFlow stores
// numeric tensors little-endian on every platform we build for.
func fromTF(tt *tf.Tensor) (*tensor.Tensor, error) {
	shape := tensor.Shape(tt.Shape())
	n := shape.NumElements()

	var buf bytes.Buffer
	if _, err := tt.WriteContentsTo(&buf); err != nil {
		return nil, fmt.Errorf("read tensor contents: %w", err)
	}

	switch tt.DataType() {
	case tf.Uint8:
		return &tensor.Tensor{DType: tensor.Uint8, Shape: shape, U8: buf.Bytes()[:n]}, nil
	case tf.Float:
		data := make([]float32, n)
		if err := binary.Read(&buf, binary.LittleEndian, data); err != nil {
			return nil, fmt.Errorf("decode float32 contents: %w", err)
		}
		return &tensor.Tensor{DType: tensor.Float32, Shape: shape, F32: data}, nil
	}
	return nil, fmt.Errorf("%w: TensorFlow dtype %v", tensor.ErrUnsupportedDType, tt.DataType())
}
