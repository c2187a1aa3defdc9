// Package vision converts OpenCV frames into model input tensors and back.
package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"homewatch/internal/logger"
	"homewatch/internal/tensor"
)

// DecodeImage decodes an encoded JPEG/PNG buffer into a BGR frame.
// The caller owns the returned Mat.
func DecodeImage(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("decoded image is empty")
	}
	return mat, nil
}

// ResizeFrame returns a width x height copy of frame.
func ResizeFrame(frame gocv.Mat, width, height int) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("cannot resize empty frame")
	}
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), fmt.Errorf("invalid target size %dx%d", width, height)
	}
	dst := gocv.NewMat()
	gocv.Resize(frame, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("resize to %dx%d failed", width, height)
	}
	return dst, nil
}

// BGRToRGB returns an RGB copy of a 3-channel BGR frame.
func BGRToRGB(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("expected 3 channels, got %d", frame.Channels())
	}
	dst := gocv.NewMat()
	if err := gocv.CvtColor(frame, &dst, gocv.ColorBGRToRGB); err != nil {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("failed to convert BGR to RGB: %w", err)
	}
	return dst, nil
}

// NormalizeFrame returns a 32-bit float copy of frame scaled by 1/255.
func NormalizeFrame(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("cannot normalize empty frame")
	}
	dst := gocv.NewMat()
	frame.ConvertToWithParams(&dst, gocv.MatTypeCV32F, 1.0/255.0, 0)
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("normalize failed")
	}
	return dst, nil
}

// MatToTensorUint8 packs an 8-bit height x width frame into a [1, H, W, C] uint8 tensor.
func MatToTensorUint8(frame gocv.Mat, height, width int) (*tensor.Tensor, error) {
	return matToTensor(frame, height, width, tensor.Uint8)
}

// MatToTensorFloat32 packs an 8-bit height x width frame into a [1, H, W, C]
// float32 tensor with values in [0, 1].
func MatToTensorFloat32(frame gocv.Mat, height, width int) (*tensor.Tensor, error) {
	return matToTensor(frame, height, width, tensor.Float32)
}

func matToTensor(frame gocv.Mat, height, width int, dtype tensor.DataType) (*tensor.Tensor, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("cannot convert empty frame")
	}
	if frame.Rows() != height || frame.Cols() != width {
		return nil, fmt.Errorf("%w: frame is %dx%d, expected %dx%d",
			tensor.ErrShapeMismatch, frame.Cols(), frame.Rows(), width, height)
	}
	channels := frame.Channels()
	switch frame.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3:
	default:
		return nil, fmt.Errorf("%w: expected 8-bit frame with 1 or 3 channels, got type %v",
			tensor.ErrUnsupportedDType, frame.Type())
	}
	return tensor.FromHWC(frame.ToBytes(), height, width, channels, dtype)
}

// PrepareImageForModel resizes frame, converts it to RGB and packs it as a
// [1, height, width, 3] tensor.
func PrepareImageForModel(frame gocv.Mat, width, height int, asFloat32 bool) (*tensor.Tensor, error) {
	resized, err := ResizeFrame(frame, width, height)
	if err != nil {
		return nil, err
	}
	defer resized.Close()

	rgb, err := BGRToRGB(resized)
	if err != nil {
		return nil, err
	}
	defer rgb.Close()

	if asFloat32 {
		return MatToTensorFloat32(rgb, height, width)
	}
	return MatToTensorUint8(rgb, height, width)
}

// TensorToMat converts a [1, H, W, C] tensor back into an 8-bit frame.
// Float32 values are expected in [0, 1]. The caller owns the returned Mat.
func TensorToMat(t *tensor.Tensor) (gocv.Mat, error) {
	h, w, c, err := t.ImageSize()
	if err != nil {
		return gocv.NewMat(), err
	}
	pix, err := tensor.ToHWC(t)
	if err != nil {
		return gocv.NewMat(), err
	}
	matType := gocv.MatTypeCV8UC1
	if c == 3 {
		matType = gocv.MatTypeCV8UC3
	} else if c != 1 {
		return gocv.NewMat(), fmt.Errorf("%w: cannot build a frame with %d channels", tensor.ErrShapeMismatch, c)
	}
	view, err := gocv.NewMatFromBytes(h, w, matType, pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create frame from tensor: %w", err)
	}
	defer view.Close()
	// view borrows pix; hand out a Mat that owns its pixels.
	return view.Clone(), nil
}

// DebugTensor logs the shape and dtype of t at debug level.
func DebugTensor(t *tensor.Tensor, name string, logger *logger.Logger) {
	if t == nil {
		logger.Debug("Tensor %s: <nil>", name)
		return
	}
	logger.Debug("Tensor %s: shape=%v dtype=%v", name, t.Shape, t.DType)
}
