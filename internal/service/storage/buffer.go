package storage

import (
	"context"
	"sync"
	"time"

	"homewatch/internal/dto"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/repository"
)

const (
	// ObservationBufferLimit limits how many observations per camera are buffered between flushes.
	ObservationBufferLimit = 50
	// ObservationBufferFlushInterval defines how often (seconds) buffered observations are written to the database.
	ObservationBufferFlushInterval = 30
	// MaxFlushAttempts is how many flushes an observation may fail before it is dropped.
	MaxFlushAttempts = 3
)

type bufferedObservation struct {
	record   dto.ObservationRecord
	attempts int
}

// BufferService buffers observations in memory and periodically writes them to the repository.
type BufferService struct {
	observations    []bufferedObservation
	bufferCount     map[string]int
	mu              sync.Mutex
	logger          *logger.Logger
	observationRepo repository.ObservationRepository
}

// NewBufferService creates a BufferService writing to observationRepo.
func NewBufferService(logger *logger.Logger, observationRepo repository.ObservationRepository) *BufferService {
	return &BufferService{
		observations:    make([]bufferedObservation, 0),
		bufferCount:     make(map[string]int),
		logger:          logger,
		observationRepo: observationRepo,
	}
}

// Run flushes on a ticker until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(ObservationBufferFlushInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.FlushObservations()
		case <-ctx.Done():
			s.FlushObservations()
			return
		}
	}
}

// AddObservation appends an observation to the buffer. It returns false when
// the camera already filled its share of the buffer.
func (s *BufferService) AddObservation(obs model.Observation, detections []dto.DetectionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[obs.Camera] >= ObservationBufferLimit {
		s.logger.Warning("Observation buffer full for camera %s, dropping observation", obs.Camera)
		return false
	}
	s.observations = append(s.observations, bufferedObservation{
		record: dto.ObservationRecord{Observation: obs, Detections: detections},
	})
	s.bufferCount[obs.Camera]++
	s.logger.Debug("Buffer size for camera %s: %d/%d", obs.Camera, s.bufferCount[obs.Camera], ObservationBufferLimit)
	return true
}

// Pending returns how many observations wait for the next flush.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observations)
}

// FlushObservations writes buffered observations and their detections to the
// database in one transaction and returns how many were saved. When the batch
// fails, records are retried one at a time and those still failing go back
// into the buffer until MaxFlushAttempts is reached.
func (s *BufferService) FlushObservations() int {
	s.mu.Lock()
	pending := s.observations
	s.observations = make([]bufferedObservation, 0, len(pending))
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	batch := make([]dto.ObservationRecord, 0, len(pending))
	for _, p := range pending {
		batch = append(batch, p.record)
	}
	err := s.observationRepo.InsertBatch(batch)
	if err == nil {
		s.logger.Info("Flushed %d observations to database", len(batch))
		return len(batch)
	}
	s.logger.Error("Error saving %d observations to database: %v", len(batch), err)

	saved := 0
	var failed []bufferedObservation
	for _, p := range pending {
		if err := s.observationRepo.InsertBatch([]dto.ObservationRecord{p.record}); err != nil {
			s.logger.Error("Error saving observation %s: %v", p.record.ID, err)
			failed = append(failed, p)
			continue
		}
		saved++
	}
	if len(failed) > 0 {
		s.requeue(failed)
	}
	s.logger.Info("Flushed %d of %d observations to database", saved, len(batch))
	return saved
}

// requeue puts a failed batch ahead of observations added since the flush
// began. Per-camera limits still apply, older observations win.
func (s *BufferService) requeue(failed []bufferedObservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]bufferedObservation, 0, len(failed)+len(s.observations))
	for _, f := range failed {
		f.attempts++
		if f.attempts >= MaxFlushAttempts {
			s.logger.Warning("Dropping observation %s after %d failed flushes", f.record.ID, f.attempts)
			continue
		}
		merged = append(merged, f)
	}
	merged = append(merged, s.observations...)

	s.observations = make([]bufferedObservation, 0, len(merged))
	s.bufferCount = make(map[string]int)
	dropped := 0
	for _, b := range merged {
		if s.bufferCount[b.record.Camera] >= ObservationBufferLimit {
			dropped++
			continue
		}
		s.observations = append(s.observations, b)
		s.bufferCount[b.record.Camera]++
	}
	if dropped > 0 {
		s.logger.Warning("Observation buffer full after failed flush, dropped %d observations", dropped)
	}
}
