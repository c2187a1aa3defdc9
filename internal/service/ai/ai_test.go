package ai

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"homewatch/internal/config"
	"homewatch/internal/logger"
	"homewatch/internal/tensor"
)

// fakeRunner records the feeds it receives and replays canned outputs.
type fakeRunner struct {
	outputs []*tensor.Tensor
	err     error
	panics  bool

	feeds   map[string]*tensor.Tensor
	fetches []string
	closed  bool
}

func (f *fakeRunner) Run(feeds map[string]*tensor.Tensor, fetches []string) ([]*tensor.Tensor, error) {
	if f.panics {
		panic("native binding failure")
	}
	f.feeds = feeds
	f.fetches = fetches
	return f.outputs, f.err
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		InputImageWidth:             224,
		InputImageHeight:            224,
		PresenceInputSize:           320,
		PresenceThreshold:           0.5,
		ActivityConfidenceThreshold: 0.3,
		PersonClassID:               1,
		MaxDetections:               100,
		PresenceInput:               "serving_default_input_tensor",
		PresenceClassesOut:          "StatefulPartitionedCall:1",
		PresenceScoresOut:           "StatefulPartitionedCall:2",
		ActivityInput:               "serving_default_inputs",
		ActivityOutput:              "StatefulPartitionedCall",
	}
}

func testLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.NewTestLogger(&buf), &buf
}

func float32Tensor(values ...float32) *tensor.Tensor {
	return &tensor.Tensor{DType: tensor.Float32, Shape: tensor.Shape{1, int64(len(values))}, F32: values}
}

// newFrame returns a gray BGR frame of the given size.
func newFrame(t *testing.T, height, width int) gocv.Mat {
	t.Helper()
	pix := bytes.Repeat([]byte{90}, height*width*3)
	view, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pix)
	require.NoError(t, err)
	defer view.Close()
	return view.Clone()
}

var errRun = errors.New("session run failed")
