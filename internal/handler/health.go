package handler

import (
	"net/http"

	"homewatch/internal/logger"
	"homewatch/internal/tfmodel"
)

// ModelStatus reports whether a perception model is loaded.
type ModelStatus interface {
	Loaded() bool
}

type healthResponse struct {
	Status              string `json:"status"`
	TensorFlow          string `json:"tensorflow"`
	PresenceModel       bool   `json:"presence_model"`
	ActivityModel       bool   `json:"activity_model"`
	ConnectedViewers    int    `json:"connected_viewers"`
	PendingObservations int    `json:"pending_observations"`
}

// HealthHandler reports model availability and pipeline state.
func HealthHandler(presence, activity ModelStatus, viewers func() int, pending func() int, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:        "ok",
			TensorFlow:    tfmodel.Version(),
			PresenceModel: presence.Loaded(),
			ActivityModel: activity.Loaded(),
		}
		if viewers != nil {
			resp.ConnectedViewers = viewers()
		}
		if pending != nil {
			resp.PendingObservations = pending()
		}
		if !resp.PresenceModel || !resp.ActivityModel {
			resp.Status = "degraded"
		}
		writeJSON(w, logger, resp)
	}
}
