package ai

import (
	"fmt"

	"gocv.io/x/gocv"
	"homewatch/internal/config"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/tensor"
	"homewatch/internal/tfmodel"
	"homewatch/internal/vision"
)

// ActivityClassifier scores household activities for a frame showing a person.
type ActivityClassifier struct {
	graph  graphRunner
	labels []model.ActivityType // output index -> activity
	cfg    *config.Config
	logger *logger.Logger
}

// NewActivityClassifier loads the activity model and its label table from cfg.
// Load failures are logged; the classifier then returns empty results.
func NewActivityClassifier(cfg *config.Config, logger *logger.Logger) *ActivityClassifier {
	m, err := loadModel(cfg.ActivityRecognitionModel, "activity recognition", logger)
	if err != nil {
		logger.Warning("Could not initialize activity recognition model: %v", err)
	}
	return NewActivityClassifierWithModel(m, cfg, logger)
}

// NewActivityClassifierWithModel builds a classifier around an already loaded
// model, which the classifier then owns. m may be nil.
func NewActivityClassifierWithModel(m *tfmodel.Model, cfg *config.Config, logger *logger.Logger) *ActivityClassifier {
	labels := model.DefaultActivityLabels()
	if cfg.ActivityLabelsFile != "" {
		loaded, err := LoadLabels(cfg.ActivityLabelsFile)
		if err != nil {
			logger.Warning("Could not load activity labels from %s, using defaults: %v", cfg.ActivityLabelsFile, err)
		} else {
			labels = loaded
		}
	}

	var graph graphRunner
	if m != nil {
		checkSignature(m, "activity recognition", cfg.SignatureKey, logger, cfg.ActivityInput, cfg.ActivityOutput)
		if tfmodel.ExpectsNormalizedInputs(m, logger) {
			logger.Info("Activity model rescales its own inputs")
		}
		graph = m
	}
	return newActivityClassifier(graph, labels, cfg, logger)
}

func newActivityClassifier(graph graphRunner, labels []model.ActivityType, cfg *config.Config, logger *logger.Logger) *ActivityClassifier {
	return &ActivityClassifier{
		graph:  graph,
		labels: labels,
		cfg:    cfg,
		logger: logger,
	}
}

// Loaded reports whether an activity model is available.
func (c *ActivityClassifier) Loaded() bool {
	return c.graph != nil
}

// Labels returns the output index to activity table in use.
func (c *ActivityClassifier) Labels() []model.ActivityType {
	return c.labels
}

// ClassifyActivity returns every activity whose confidence exceeds the
// configured threshold. Absent is never reported. Any failure is logged and
// yields an empty map.
func (c *ActivityClassifier) ClassifyActivity(frame gocv.Mat) map[model.ActivityType]float64 {
	if c.graph == nil {
		c.logger.Warning("Activity recognition model not loaded, cannot classify activity")
		return map[model.ActivityType]float64{}
	}
	scores, err := c.classify(frame)
	if err != nil {
		c.logger.Error("Error in activity classification: %v", err)
		return map[model.ActivityType]float64{}
	}
	return scores
}

func (c *ActivityClassifier) classify(frame gocv.Mat) (scores map[model.ActivityType]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during classification: %v", r)
		}
	}()

	input, err := vision.PrepareImageForModel(frame, c.cfg.InputImageWidth, c.cfg.InputImageHeight, true)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame: %w", err)
	}
	vision.DebugTensor(input, c.cfg.ActivityInput, c.logger)

	outputs, err := c.graph.Run(
		map[string]*tensor.Tensor{c.cfg.ActivityInput: input},
		[]string{c.cfg.ActivityOutput},
	)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 output, got %d", len(outputs))
	}

	tfmodel.AnalyzeTensor(outputs[0], c.cfg.ActivityOutput, c.logger)

	return DecodeActivities(outputs[0].Floats(), c.labels, c.cfg.ActivityConfidenceThreshold, c.cfg.ApplySoftmax)
}

// Close releases the model session.
func (c *ActivityClassifier) Close() error {
	if c.graph == nil {
		return nil
	}
	err := c.graph.Close()
	c.graph = nil
	return err
}
