package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"homewatch/internal/dto"
	"homewatch/internal/model"
)

// ObservationRepository implements repository.ObservationRepository for SQLite.
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new SQLite observation repository.
func NewObservationRepository(db *DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

const observationColumns = `o.id, o.camera, o.timestamp, o.person_present, o.source`

// InsertBatch adds observations with their activity scores and detections in
// a single transaction. Either every record is stored or none is.
func (r *ObservationRepository) InsertBatch(records []dto.ObservationRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	obsStmt, err := tx.Prepare(`
		INSERT INTO observations (id, camera, timestamp, person_present, source, top_activity)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer obsStmt.Close()

	actStmt, err := tx.Prepare(`
		INSERT INTO observation_activities (observation_id, activity, confidence)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer actStmt.Close()

	detStmt, err := tx.Prepare(`INSERT INTO detections (observation_id, class_id, score) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer detStmt.Close()

	for i := range records {
		obs := &records[i].Observation
		if _, err := obsStmt.Exec(obs.ID, obs.Camera, obs.Timestamp.UTC(), obs.PersonPresent,
			string(obs.Source), obs.TopActivity().String()); err != nil {
			return fmt.Errorf("failed to insert observation %s: %w", obs.ID, err)
		}
		for activity, confidence := range obs.Activities {
			if _, err := actStmt.Exec(obs.ID, activity.String(), confidence); err != nil {
				return fmt.Errorf("failed to insert activity score: %w", err)
			}
		}
		for _, det := range records[i].Detections {
			if _, err := detStmt.Exec(obs.ID, det.ClassID, det.Score); err != nil {
				return fmt.Errorf("failed to insert detection: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetByID retrieves an observation by its ID. A missing ID returns nil, nil.
func (r *ObservationRepository) GetByID(id string) (*model.Observation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	obs, err := scanObservation(r.db.Conn().QueryRow(`
		SELECT `+observationColumns+`
		FROM observations o WHERE o.id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}

	list := []model.Observation{*obs}
	if err := r.attachActivities(list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// GetAll retrieves observations matching the filter, newest first.
func (r *ObservationRepository) GetAll(filter *dto.ObservationFilter) ([]model.Observation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + observationColumns + ` FROM observations o WHERE 1=1` + where + ` ORDER BY o.timestamp DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	observations, err := r.queryObservations(query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachActivities(observations); err != nil {
		return nil, err
	}
	return observations, nil
}

// GetTotalCount returns the number of observations matching the filter.
func (r *ObservationRepository) GetTotalCount(filter *dto.ObservationFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM observations o WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}

// GetLatestPerCamera returns the most recent observation of every camera.
func (r *ObservationRepository) GetLatestPerCamera() ([]model.Observation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	observations, err := r.queryObservations(`
		SELECT ` + observationColumns + `
		FROM observations o
		JOIN (SELECT camera, MAX(timestamp) AS ts FROM observations GROUP BY camera) latest
			ON o.camera = latest.camera AND o.timestamp = latest.ts
		ORDER BY o.camera
	`)
	if err != nil {
		return nil, err
	}
	if err := r.attachActivities(observations); err != nil {
		return nil, err
	}
	return observations, nil
}

// GetCameras returns a list of unique camera names.
func (r *ObservationRepository) GetCameras() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT camera FROM observations ORDER BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []string
	for rows.Next() {
		var camera string
		if err := rows.Scan(&camera); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, camera)
	}
	return cameras, rows.Err()
}

// GetStats returns statistics about observations matching the filter.
// Limit and Offset are ignored.
func (r *ObservationRepository) GetStats(filter *dto.ObservationFilter) (*model.ObservationStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.ObservationStats{
		PerCamera:         make(map[string]int),
		PerSource:         make(map[string]int),
		TopActivityCounts: make(map[model.ActivityType]int),
	}
	where, args := buildWhere(filter)

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(o.person_present), 0)
		FROM observations o WHERE 1=1`+where, args...).Scan(&stats.TotalObservations, &stats.PresenceCount); err != nil {
		return nil, fmt.Errorf("failed to count observations: %w", err)
	}

	groups := []struct {
		column string
		add    func(key string, count int)
	}{
		{"camera", func(k string, n int) { stats.PerCamera[k] = n }},
		{"source", func(k string, n int) { stats.PerSource[k] = n }},
		{"top_activity", func(k string, n int) {
			if a, err := model.ParseActivityType(k); err == nil {
				stats.TopActivityCounts[a] = n
			}
		}},
	}
	for _, g := range groups {
		rows, err := r.db.Conn().Query(`SELECT o.`+g.column+`, COUNT(*) FROM observations o WHERE 1=1`+where+` GROUP BY o.`+g.column, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to group observations by %s: %w", g.column, err)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s count: %w", g.column, err)
			}
			g.add(key, count)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// DeleteOlderThan removes observations recorded before cutoff and returns how many were removed.
func (r *ObservationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM observations WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete observations: %w", err)
	}
	return result.RowsAffected()
}

func buildWhere(filter *dto.ObservationFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}
	var where strings.Builder
	args := []interface{}{}

	if filter.Camera != "" {
		where.WriteString(" AND o.camera = ?")
		args = append(args, filter.Camera)
	}
	if filter.Activity != "" {
		where.WriteString(" AND o.top_activity = ?")
		args = append(args, strings.ToUpper(filter.Activity))
	}
	if filter.PresentOnly {
		where.WriteString(" AND o.person_present = 1")
	}
	if !filter.After.IsZero() {
		where.WriteString(" AND o.timestamp >= ?")
		args = append(args, filter.After.UTC())
	}
	if !filter.Before.IsZero() {
		where.WriteString(" AND o.timestamp < ?")
		args = append(args, filter.Before.UTC())
	}
	return where.String(), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row rowScanner) (*model.Observation, error) {
	var obs model.Observation
	var source string
	if err := row.Scan(&obs.ID, &obs.Camera, &obs.Timestamp, &obs.PersonPresent, &source); err != nil {
		return nil, err
	}
	obs.Source = model.PresenceSource(source)
	obs.Activities = make(map[model.ActivityType]float64)
	return &obs, nil
}

// queryObservations runs query without activities; the caller holds the lock.
func (r *ObservationRepository) queryObservations(query string, args ...interface{}) ([]model.Observation, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []model.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, *obs)
	}
	return observations, rows.Err()
}

// attachActivities fills Activities for every observation; the caller holds the lock.
func (r *ObservationRepository) attachActivities(observations []model.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	index := make(map[string]int, len(observations))
	placeholders := make([]string, 0, len(observations))
	args := make([]interface{}, 0, len(observations))
	for i, obs := range observations {
		index[obs.ID] = i
		placeholders = append(placeholders, "?")
		args = append(args, obs.ID)
	}

	rows, err := r.db.Conn().Query(`
		SELECT observation_id, activity, confidence
		FROM observation_activities
		WHERE observation_id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query activity scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		var confidence float64
		if err := rows.Scan(&id, &name, &confidence); err != nil {
			return fmt.Errorf("failed to scan activity score: %w", err)
		}
		activity, err := model.ParseActivityType(name)
		if err != nil {
			continue
		}
		observations[index[id]].Activities[activity] = confidence
	}
	return rows.Err()
}
