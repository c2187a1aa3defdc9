package dto

// DetectionResult is one decoded detector entry: a class id and its score.
type DetectionResult struct {
	ClassID int     `json:"class_id"`
	Score   float32 `json:"score"`
}
