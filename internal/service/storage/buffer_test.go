package storage

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"homewatch/internal/dto"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/repository"
)

// memObservationRepo fails any batch that contains an id in reject, or every
// batch when err is set.
type memObservationRepo struct {
	repository.ObservationRepository
	mu      sync.Mutex
	batches [][]dto.ObservationRecord
	reject  map[string]bool
	err     error
}

func (r *memObservationRepo) InsertBatch(records []dto.ObservationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, rec := range records {
		if r.reject[rec.ID] {
			return errors.New("UNIQUE constraint failed: observations.id")
		}
	}
	r.batches = append(r.batches, records)
	return nil
}

func (r *memObservationRepo) saved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, b := range r.batches {
		for _, rec := range b {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func newTestBuffer() (*BufferService, *memObservationRepo) {
	repo := &memObservationRepo{reject: make(map[string]bool)}
	var buf bytes.Buffer
	return NewBufferService(logger.NewTestLogger(&buf), repo), repo
}

func TestBufferService_Flush(t *testing.T) {
	s, repo := newTestBuffer()

	require.True(t, s.AddObservation(model.Observation{ID: "1", Camera: "kitchen"}, []dto.DetectionResult{{ClassID: 1, Score: 0.9}}))
	require.True(t, s.AddObservation(model.Observation{ID: "2", Camera: "hall"}, nil))
	require.Equal(t, 2, s.Pending())

	require.Equal(t, 2, s.FlushObservations())
	require.Zero(t, s.Pending())
	require.Len(t, repo.batches, 1, "one batch per flush")
	require.Len(t, repo.batches[0], 2)
	require.Equal(t, []dto.DetectionResult{{ClassID: 1, Score: 0.9}}, repo.batches[0][0].Detections)

	require.Zero(t, s.FlushObservations())
	require.Len(t, repo.batches, 1)
}

func TestBufferService_PerCameraLimit(t *testing.T) {
	s, _ := newTestBuffer()

	for i := 0; i < ObservationBufferLimit; i++ {
		require.True(t, s.AddObservation(model.Observation{Camera: "kitchen"}, nil))
	}
	require.False(t, s.AddObservation(model.Observation{Camera: "kitchen"}, nil))
	require.True(t, s.AddObservation(model.Observation{Camera: "hall"}, nil))

	s.FlushObservations()
	require.True(t, s.AddObservation(model.Observation{Camera: "kitchen"}, nil))
}

func TestBufferService_FailedRecordDoesNotBlockOthers(t *testing.T) {
	s, repo := newTestBuffer()
	repo.reject["bad"] = true

	s.AddObservation(model.Observation{ID: "1", Camera: "kitchen"}, nil)
	s.AddObservation(model.Observation{ID: "bad", Camera: "kitchen"}, nil)
	s.AddObservation(model.Observation{ID: "2", Camera: "hall"}, nil)

	require.Equal(t, 2, s.FlushObservations())
	require.ElementsMatch(t, []string{"1", "2"}, repo.saved())
	require.Equal(t, 1, s.Pending(), "failing record is kept for the next flush")

	// dropped once it has failed MaxFlushAttempts times
	for i := 1; i < MaxFlushAttempts; i++ {
		require.Zero(t, s.FlushObservations())
	}
	require.Zero(t, s.Pending())
}

func TestBufferService_RequeuesOnDatabaseError(t *testing.T) {
	s, repo := newTestBuffer()
	repo.err = errors.New("disk full")

	s.AddObservation(model.Observation{ID: "1", Camera: "kitchen"}, nil)
	require.Zero(t, s.FlushObservations())
	require.Equal(t, 1, s.Pending())

	s.AddObservation(model.Observation{ID: "2", Camera: "kitchen"}, nil)
	repo.err = nil
	require.Equal(t, 2, s.FlushObservations())
	require.Equal(t, []string{"1", "2"}, repo.saved(), "requeued observations keep their order")
}

func TestBufferService_RequeueRespectsCameraLimit(t *testing.T) {
	s, repo := newTestBuffer()
	repo.err = errors.New("disk full")

	for i := 0; i < ObservationBufferLimit; i++ {
		s.AddObservation(model.Observation{Camera: "kitchen"}, nil)
	}
	require.Zero(t, s.FlushObservations())
	require.Equal(t, ObservationBufferLimit, s.Pending())
	require.False(t, s.AddObservation(model.Observation{Camera: "kitchen"}, nil))
}

func TestBufferService_RunFlushesOnShutdown(t *testing.T) {
	s, repo := newTestBuffer()
	s.AddObservation(model.Observation{ID: "1", Camera: "kitchen"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Equal(t, []string{"1"}, repo.saved())
}
