package dto

import "homewatch/internal/model"

// ObservationsPage is a paginated response payload for the observation history.
type ObservationsPage struct {
	Observations []model.Observation `json:"observations"`
	Length       int                 `json:"length"`
	TotalPages   int                 `json:"totalPages"`
	CurrentPage  int                 `json:"currentPage"`
	Limit        int                 `json:"pageSize"`
}
