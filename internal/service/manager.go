package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"homewatch/internal/config"
	"homewatch/internal/dto"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/service/ai"
	"homewatch/internal/service/storage"
	"homewatch/internal/service/websocket"
	"homewatch/internal/vision"
)

// PresenceDetector is what the pipeline needs from ai.PresenceDetector.
type PresenceDetector interface {
	Loaded() bool
	Detect(frame gocv.Mat) []dto.DetectionResult
	DetectPersonWithHOG(frame gocv.Mat) bool
}

// ActivityClassifier is what the pipeline needs from ai.ActivityClassifier.
type ActivityClassifier interface {
	ClassifyActivity(frame gocv.Mat) map[model.ActivityType]float64
}

type Manager struct {
	presence         PresenceDetector
	activity         ActivityClassifier
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	logger           *logger.Logger

	personClassID int
	hogFallback   bool

	processingQueue chan ImageProcessingTask
	frameCounters   map[string]int // per camera, reset every processEveryNth frames
	processEveryNth int
	numWorkers      int

	frameCounterMu sync.Mutex
	stopMu         sync.RWMutex
	stopped        bool
	wg             sync.WaitGroup
}

type ImageProcessingTask struct {
	Image     []byte
	Camera    string
	Timestamp time.Time
}

func NewManager(presence PresenceDetector, activity ActivityClassifier, bufferService *storage.BufferService, websocketService *websocket.HubService, config *config.Config, logger *logger.Logger) *Manager {
	manager := &Manager{
		presence:         presence,
		activity:         activity,
		bufferService:    bufferService,
		websocketService: websocketService,
		personClassID:    config.PersonClassID,
		hogFallback:      config.HOGFallback,
		numWorkers:       config.ProcessingWorkers,
		processingQueue:  make(chan ImageProcessingTask, config.ProcessingQueueDepth),
		frameCounters:    make(map[string]int),
		processEveryNth:  config.ProcessingInterval,
		logger:           logger,
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("Manager started - processing every %d frame(s) with %d worker(s)", manager.processEveryNth, manager.numWorkers)
	return manager
}

// HandleCameraImage forwards a JPEG frame to viewers and queues every Nth
// frame of the camera for perception.
func (m *Manager) HandleCameraImage(image []byte, camera string) {
	m.SendToViewers(image, camera)

	m.frameCounterMu.Lock()
	m.frameCounters[camera]++
	frameCount := m.frameCounters[camera]
	if frameCount%m.processEveryNth == 0 {
		m.frameCounters[camera] = 0
	}
	m.frameCounterMu.Unlock()

	if frameCount%m.processEveryNth != 0 {
		return
	}

	m.stopMu.RLock()
	defer m.stopMu.RUnlock()
	if m.stopped {
		return
	}

	select {
	case m.processingQueue <- ImageProcessingTask{Image: image, Camera: camera, Timestamp: time.Now().UTC()}:
		m.logger.Debug("Camera %s: frame queued for processing", camera)
	default:
		m.logger.Warning("Processing queue full for camera %s - skipping perception", camera)
	}
}

func (m *Manager) SendToViewers(image []byte, camera string) {
	if m.websocketService == nil {
		return
	}
	m.websocketService.BroadcastFrame(image, camera)
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("Processing worker %d started", workerID)

	for task := range m.processingQueue {
		m.processImage(task)
	}

	m.logger.Info("Processing worker %d stopped", workerID)
}

func (m *Manager) processImage(task ImageProcessingTask) {
	frame, err := vision.DecodeImage(task.Image)
	if err != nil {
		m.logger.Error("Camera %s: %v", task.Camera, err)
		return
	}
	defer frame.Close()

	obs, detections := m.Analyze(frame, task.Camera, task.Timestamp)

	if m.bufferService != nil {
		m.bufferService.AddObservation(obs, detections)
	}
	if m.websocketService != nil {
		m.websocketService.BroadcastObservation(&obs)
	}
}

// Analyze runs presence detection on frame, falling back to HOG when the
// model finds nobody, and classifies the activity when a person is present.
func (m *Manager) Analyze(frame gocv.Mat, camera string, ts time.Time) (model.Observation, []dto.DetectionResult) {
	obs := model.Observation{
		ID:         uuid.NewString(),
		Camera:     camera,
		Timestamp:  ts,
		Source:     model.SourceNone,
		Activities: map[model.ActivityType]float64{},
	}

	var detections []dto.DetectionResult
	if m.presence.Loaded() {
		detections = m.presence.Detect(frame)
		if ai.ContainsClass(detections, m.personClassID) {
			obs.PersonPresent = true
			obs.Source = model.SourceTensorFlow
		}
	}
	if !obs.PersonPresent && m.hogFallback && m.presence.DetectPersonWithHOG(frame) {
		obs.PersonPresent = true
		obs.Source = model.SourceHOG
	}

	if obs.PersonPresent {
		obs.Activities = m.activity.ClassifyActivity(frame)
		m.logger.WithField("camera", camera).Infof("Person present (%s), top activity %s", obs.Source, obs.TopActivity())
	}
	return obs, detections
}

// Stop drains the queue and waits for every worker.
func (m *Manager) Stop() {
	m.stopMu.Lock()
	if m.stopped {
		m.stopMu.Unlock()
		return
	}
	m.stopped = true
	close(m.processingQueue)
	m.stopMu.Unlock()

	m.wg.Wait()
	m.logger.Info("All processing workers stopped")
}
