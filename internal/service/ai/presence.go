package ai

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
	"homewatch/internal/config"
	"homewatch/internal/dto"
	"homewatch/internal/logger"
	"homewatch/internal/tensor"
	"homewatch/internal/tfmodel"
	"homewatch/internal/vision"
)

const (
	// HOG runs on frames scaled to this size.
	hogFrameWidth  = 640
	hogFrameHeight = 480
)

// graphRunner is the part of tfmodel.Model the detectors use.
type graphRunner interface {
	Run(feeds map[string]*tensor.Tensor, fetches []string) ([]*tensor.Tensor, error)
	Close() error
}

// PresenceDetector decides whether a person is in a frame, using a
// TensorFlow object detector and an OpenCV HOG people detector as fallback.
type PresenceDetector struct {
	graph  graphRunner
	hog    gocv.HOGDescriptor
	hogMu  sync.Mutex
	closed bool
	cfg    *config.Config
	logger *logger.Logger
}

// NewPresenceDetector loads the detection model named in cfg. A missing or
// broken model is logged and leaves the detector without one; HOG stays usable.
func NewPresenceDetector(cfg *config.Config, logger *logger.Logger) *PresenceDetector {
	m, err := loadModel(cfg.HumanDetectionModel, "human detection", logger)
	if err != nil {
		logger.Warning("Could not initialize human detection model: %v", err)
	}
	return NewPresenceDetectorWithModel(m, cfg, logger)
}

// NewPresenceDetectorWithModel builds a detector around an already loaded
// model, which the detector then owns. m may be nil.
func NewPresenceDetectorWithModel(m *tfmodel.Model, cfg *config.Config, logger *logger.Logger) *PresenceDetector {
	var graph graphRunner
	if m != nil {
		checkSignature(m, "human detection", cfg.SignatureKey, logger,
			cfg.PresenceInput, cfg.PresenceClassesOut, cfg.PresenceScoresOut)
		graph = m
	}
	return newPresenceDetector(graph, cfg, logger)
}

func newPresenceDetector(graph graphRunner, cfg *config.Config, logger *logger.Logger) *PresenceDetector {
	hog := gocv.NewHOGDescriptor()
	hog.SetSVMDetector(gocv.HOGDefaultPeopleDetector())
	return &PresenceDetector{
		graph:  graph,
		hog:    hog,
		cfg:    cfg,
		logger: logger,
	}
}

// Loaded reports whether a detection model is available.
func (d *PresenceDetector) Loaded() bool {
	return d.graph != nil
}

// IsPersonPresent reports whether the model finds a person scoring above the
// presence threshold. Any failure is logged and reported as no person.
func (d *PresenceDetector) IsPersonPresent(frame gocv.Mat) bool {
	if d.graph == nil {
		d.logger.Warning("Human detection model not loaded, cannot detect person")
		return false
	}
	detections, err := d.detect(frame)
	if err != nil {
		d.logger.Error("Error in person detection: %v", err)
		return false
	}
	return ContainsClass(detections, d.cfg.PersonClassID)
}

// Detect returns every detection above the presence threshold, or nil on failure.
func (d *PresenceDetector) Detect(frame gocv.Mat) []dto.DetectionResult {
	if d.graph == nil {
		d.logger.Warning("Human detection model not loaded, cannot run detection")
		return nil
	}
	detections, err := d.detect(frame)
	if err != nil {
		d.logger.Error("Error in object detection: %v", err)
		return nil
	}
	return detections
}

func (d *PresenceDetector) detect(frame gocv.Mat) (detections []dto.DetectionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during detection: %v", r)
		}
	}()

	size := d.cfg.PresenceInputSize
	input, err := vision.PrepareImageForModel(frame, size, size, false)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame: %w", err)
	}
	vision.DebugTensor(input, d.cfg.PresenceInput, d.logger)

	outputs, err := d.graph.Run(
		map[string]*tensor.Tensor{d.cfg.PresenceInput: input},
		[]string{d.cfg.PresenceClassesOut, d.cfg.PresenceScoresOut},
	)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 2 {
		return nil, fmt.Errorf("expected 2 outputs, got %d", len(outputs))
	}

	tfmodel.AnalyzeTensor(outputs[0], d.cfg.PresenceClassesOut, d.logger)
	tfmodel.AnalyzeTensor(outputs[1], d.cfg.PresenceScoresOut, d.logger)

	classes, scores := outputs[0].Floats(), outputs[1].Floats()
	return DecodeDetections(classes, scores, d.cfg.MaxDetections, d.cfg.PresenceThreshold), nil
}

// DetectPersonWithHOG runs OpenCV's default people detector on a 640x480
// copy of frame. Any failure is logged and reported as no person.
func (d *PresenceDetector) DetectPersonWithHOG(frame gocv.Mat) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Error in HOG person detection: %v", r)
			found = false
		}
	}()

	resized, err := vision.ResizeFrame(frame, hogFrameWidth, hogFrameHeight)
	if err != nil {
		d.logger.Error("Error in HOG person detection: %v", err)
		return false
	}
	defer resized.Close()

	d.hogMu.Lock()
	if d.closed {
		d.hogMu.Unlock()
		d.logger.Warning("HOG detector closed, cannot detect person")
		return false
	}
	rects := d.hog.DetectMultiScale(resized)
	d.hogMu.Unlock()

	if len(rects) > 0 {
		d.logger.Debug("HOG found %d people: %v", len(rects), boundsOf(rects))
	}
	return len(rects) > 0
}

// Close releases the model session and the HOG descriptor.
func (d *PresenceDetector) Close() error {
	d.hogMu.Lock()
	defer d.hogMu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.hog.Close()
	if d.graph == nil {
		return nil
	}
	err := d.graph.Close()
	d.graph = nil
	return err
}

func boundsOf(rects []image.Rectangle) image.Rectangle {
	var r image.Rectangle
	for _, rect := range rects {
		r = r.Union(rect)
	}
	return r
}

// loadModel returns nil and an error for an empty path or a model that fails to load.
func loadModel(path, kind string, logger *logger.Logger) (*tfmodel.Model, error) {
	if path == "" {
		return nil, fmt.Errorf("no %s model configured", kind)
	}
	if !tfmodel.Exists(path) {
		return nil, fmt.Errorf("%s model not found: %s", kind, path)
	}
	return tfmodel.Load(path, logger)
}

// checkSignature warns about configured endpoints that the signature under
// key does not declare.
func checkSignature(m *tfmodel.Model, kind, key string, logger *logger.Logger, endpoints ...string) {
	sig, ok := m.Signature(key)
	if !ok {
		logger.Warning("%s model %s has no signature %q", kind, m.Path(), key)
		return
	}
	if missing := sig.MissingEndpoints(endpoints...); len(missing) > 0 {
		logger.Warning("Signature %q of %s model %s does not declare %v", key, kind, m.Path(), missing)
	}
}
