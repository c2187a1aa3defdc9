package ai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"homewatch/internal/model"
	"homewatch/internal/tensor"
)

func activityOutput(values map[int]float32) *tensor.Tensor {
	out := make([]float32, model.NumClassifiedActivities)
	for i, v := range values {
		out[i] = v
	}
	return float32Tensor(out...)
}

func TestClassifyActivity(t *testing.T) {
	frame := newFrame(t, 120, 160)
	defer frame.Close()

	runner := &fakeRunner{outputs: []*tensor.Tensor{activityOutput(map[int]float32{2: 0.7, 16: 0.31, 19: 0.3, 26: 0.1})}}
	l, _ := testLogger()
	c := newActivityClassifier(runner, model.DefaultActivityLabels(), testConfig(), l)

	scores := c.ClassifyActivity(frame)
	require.Len(t, scores, 3)
	require.InDelta(t, 0.7, scores[model.Cooking], 1e-6)
	require.InDelta(t, 0.31, scores[model.Reading], 1e-6)
	require.InDelta(t, 0.3, scores[model.Sleeping], 1e-6, "0.3f at threshold 0.3")

	input := runner.feeds["serving_default_inputs"]
	require.NotNil(t, input)
	require.Equal(t, tensor.Float32, input.DType)
	require.Equal(t, tensor.Shape{1, 224, 224, 3}, input.Shape)
	for _, v := range input.F32 {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
	require.Equal(t, []string{"StatefulPartitionedCall"}, runner.fetches)
}

func TestClassifyActivity_IndexTwentyIsWriting(t *testing.T) {
	frame := newFrame(t, 32, 32)
	defer frame.Close()

	runner := &fakeRunner{outputs: []*tensor.Tensor{activityOutput(map[int]float32{20: 0.9})}}
	l, _ := testLogger()
	c := newActivityClassifier(runner, model.DefaultActivityLabels(), testConfig(), l)

	require.Equal(t, []model.ActivityType{model.Writing}, keys(c.ClassifyActivity(frame)))
}

func TestClassifyActivity_UsesInputSizeFromConfig(t *testing.T) {
	frame := newFrame(t, 32, 32)
	defer frame.Close()

	cfg := testConfig()
	cfg.InputImageWidth, cfg.InputImageHeight = 96, 64
	runner := &fakeRunner{outputs: []*tensor.Tensor{activityOutput(nil)}}
	l, _ := testLogger()
	c := newActivityClassifier(runner, model.DefaultActivityLabels(), cfg, l)

	require.Empty(t, c.ClassifyActivity(frame))
	require.Equal(t, tensor.Shape{1, 64, 96, 3}, runner.feeds[cfg.ActivityInput].Shape)
}

func TestClassifyActivity_FailuresReturnEmpty(t *testing.T) {
	frame := newFrame(t, 32, 32)
	defer frame.Close()

	for name, runner := range map[string]graphRunner{
		"no model":     nil,
		"run error":    &fakeRunner{err: errRun},
		"panic":        &fakeRunner{panics: true},
		"short output": &fakeRunner{outputs: []*tensor.Tensor{float32Tensor(0.9, 0.9)}},
	} {
		t.Run(name, func(t *testing.T) {
			l, buf := testLogger()
			c := newActivityClassifier(runner, model.DefaultActivityLabels(), testConfig(), l)
			scores := c.ClassifyActivity(frame)
			require.NotNil(t, scores)
			require.Empty(t, scores)
			require.NotEmpty(t, buf.String())
		})
	}
}

func TestNewActivityClassifier_LabelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("SLEEPING\nEATING\n"), 0644))

	cfg := testConfig()
	cfg.ActivityLabelsFile = path
	l, _ := testLogger()
	c := NewActivityClassifier(cfg, l)
	require.False(t, c.Loaded())
	require.Equal(t, []model.ActivityType{model.Sleeping, model.Eating}, c.Labels())

	cfg.ActivityLabelsFile = filepath.Join(t.TempDir(), "missing.txt")
	c = NewActivityClassifier(cfg, l)
	require.Equal(t, model.DefaultActivityLabels(), c.Labels())
}

func TestActivityClassifierClose(t *testing.T) {
	runner := &fakeRunner{}
	l, _ := testLogger()
	c := newActivityClassifier(runner, model.DefaultActivityLabels(), testConfig(), l)
	require.NoError(t, c.Close())
	require.True(t, runner.closed)
	require.NoError(t, c.Close())
}

func keys(m map[model.ActivityType]float64) []model.ActivityType {
	out := make([]model.ActivityType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
