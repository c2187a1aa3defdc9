package repository

import (
	"time"

	"homewatch/internal/dto"
	"homewatch/internal/model"
)

// ObservationRepository defines the interface for observation data operations.
type ObservationRepository interface {
	// Create operations
	InsertBatch(records []dto.ObservationRecord) error

	// Read operations
	GetByID(id string) (*model.Observation, error)
	GetAll(filter *dto.ObservationFilter) ([]model.Observation, error)
	GetTotalCount(filter *dto.ObservationFilter) (int, error)
	GetLatestPerCamera() ([]model.Observation, error)
	GetCameras() ([]string, error)
	GetStats(filter *dto.ObservationFilter) (*model.ObservationStats, error)

	// Delete operations
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// DetectionRepository reads the raw detector output stored with each observation.
type DetectionRepository interface {
	GetByObservationID(observationID string) ([]dto.DetectionResult, error)
	GetClassCounts() (map[int]int, error)
}
