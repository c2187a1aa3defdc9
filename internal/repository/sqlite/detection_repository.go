package sqlite

import (
	"fmt"

	"homewatch/internal/dto"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
// Detections are written by ObservationRepository.InsertBatch.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// GetByObservationID retrieves the detections of an observation, best score first.
func (r *DetectionRepository) GetByObservationID(observationID string) ([]dto.DetectionResult, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT class_id, score
		FROM detections WHERE observation_id = ?
		ORDER BY score DESC
	`, observationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []dto.DetectionResult
	for rows.Next() {
		var det dto.DetectionResult
		if err := rows.Scan(&det.ClassID, &det.Score); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}
	return detections, rows.Err()
}

// GetClassCounts returns how many times each class id was detected.
func (r *DetectionRepository) GetClassCounts() (map[int]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT class_id, COUNT(*) FROM detections GROUP BY class_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query class counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var classID, count int
		if err := rows.Scan(&classID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan class count: %w", err)
		}
		counts[classID] = count
	}
	return counts, rows.Err()
}
