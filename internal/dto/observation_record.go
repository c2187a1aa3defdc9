package dto

import "homewatch/internal/model"

// ObservationRecord is an observation together with the raw detector output
// that decided it. It is the unit the buffer persists and the detail endpoint returns.
type ObservationRecord struct {
	model.Observation
	Detections []DetectionResult `json:"detections"`
}
