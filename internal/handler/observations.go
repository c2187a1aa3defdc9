package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"homewatch/internal/dto"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// GetObservationsHandler returns a filtered, paginated observation history.
//
// Query parameters: camera, activity, present=true, after and before
// (RFC 3339 or 2006-01-02), page, limit (at most 500).
func GetObservationsHandler(repo repository.ObservationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := min(atoiDefault(q.Get("limit"), defaultPageSize), maxPageSize)
		if page-1 > math.MaxInt/limit {
			http.Error(w, "page out of range", http.StatusBadRequest)
			return
		}

		filter, err := parseObservationFilter(q.Get)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Limit = limit
		filter.Offset = (page - 1) * limit

		observations, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying observations from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting observations: %v", err)
			totalCount = len(observations)
		}

		if observations == nil {
			observations = []model.Observation{}
		}
		writeJSON(w, logger, dto.ObservationsPage{
			Observations: observations,
			Length:       totalCount,
			TotalPages:   (totalCount + limit - 1) / limit,
			CurrentPage:  page,
			Limit:        limit,
		})
	}
}

// GetObservationHandler returns one observation, selected by the {id} path
// segment, with the detector output stored for it.
func GetObservationHandler(repo repository.ObservationRepository, detections repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		obs, err := repo.GetByID(id)
		if err != nil {
			logger.Error("Error querying observation %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if obs == nil {
			http.NotFound(w, r)
			return
		}

		dets, err := detections.GetByObservationID(id)
		if err != nil {
			logger.Error("Error querying detections of observation %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if dets == nil {
			dets = []dto.DetectionResult{}
		}
		writeJSON(w, logger, dto.ObservationRecord{Observation: *obs, Detections: dets})
	}
}

// GetCamerasHandler lists every camera that has recorded an observation.
func GetCamerasHandler(repo repository.ObservationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameras, err := repo.GetCameras()
		if err != nil {
			logger.Error("Error querying cameras: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if cameras == nil {
			cameras = []string{}
		}
		writeJSON(w, logger, cameras)
	}
}

// GetLatestObservationsHandler returns the newest observation of every camera.
func GetLatestObservationsHandler(repo repository.ObservationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		observations, err := repo.GetLatestPerCamera()
		if err != nil {
			logger.Error("Error querying latest observations: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if observations == nil {
			observations = []model.Observation{}
		}
		writeJSON(w, logger, observations)
	}
}

// GetObservationStatsHandler returns counts per camera, source and top activity.
func GetObservationStatsHandler(repo repository.ObservationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseObservationFilter(r.URL.Query().Get)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stats, err := repo.GetStats(filter)
		if err != nil {
			logger.Error("Error computing observation stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, stats)
	}
}

func parseObservationFilter(get func(string) string) (*dto.ObservationFilter, error) {
	filter := &dto.ObservationFilter{
		Camera:      get("camera"),
		PresentOnly: get("present") == "true",
	}
	if a := get("activity"); a != "" {
		activity, err := model.ParseActivityType(a)
		if err != nil {
			return nil, err
		}
		filter.Activity = activity.String()
	}
	var err error
	if filter.After, err = parseTimestamp(get("after")); err != nil {
		return nil, err
	}
	if filter.Before, err = parseTimestamp(get("before")); err != nil {
		return nil, err
	}
	return filter, nil
}

// parseTimestamp accepts RFC 3339 or a bare date in the format "2006-01-02".
func parseTimestamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
