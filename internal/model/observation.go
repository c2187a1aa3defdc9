package model

import (
	"sort"
	"time"
)

// PresenceSource names the detector that decided a person was in frame.
type PresenceSource string

const (
	SourceTensorFlow PresenceSource = "tensorflow"
	SourceHOG        PresenceSource = "hog"
	SourceNone       PresenceSource = "none"
)

// Observation is the perception result for one camera frame.
type Observation struct {
	ID            string                   `json:"id"`
	Camera        string                   `json:"camera"`
	Timestamp     time.Time                `json:"timestamp"`
	PersonPresent bool                     `json:"person_present"`
	Source        PresenceSource           `json:"source"`
	Activities    map[ActivityType]float64 `json:"activities"`
}

// TopActivity returns the activity with the highest confidence, or Absent
// when nobody is present or nothing passed the threshold.
func (o *Observation) TopActivity() ActivityType {
	if !o.PersonPresent {
		return Absent
	}
	if a, ok := TopActivity(o.Activities); ok {
		return a
	}
	return Absent
}

// TopActivity returns the highest-confidence entry; ties go to the activity declared first.
func TopActivity(scores map[ActivityType]float64) (ActivityType, bool) {
	ranked := RankActivities(scores)
	if len(ranked) == 0 {
		return 0, false
	}
	return ranked[0].Activity, true
}

// ActivityScore pairs an activity with its confidence.
type ActivityScore struct {
	Activity   ActivityType `json:"activity"`
	Confidence float64      `json:"confidence"`
}

// RankActivities orders scores by descending confidence.
func RankActivities(scores map[ActivityType]float64) []ActivityScore {
	ranked := make([]ActivityScore, 0, len(scores))
	for a, c := range scores {
		ranked = append(ranked, ActivityScore{Activity: a, Confidence: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Activity < ranked[j].Activity
	})
	return ranked
}

// ObservationStats summarizes stored observations.
type ObservationStats struct {
	TotalObservations int                  `json:"total_observations"`
	PresenceCount     int                  `json:"presence_count"`
	PerCamera         map[string]int       `json:"per_camera"`
	PerSource         map[string]int       `json:"per_source"`
	TopActivityCounts map[ActivityType]int `json:"top_activity_counts"`
}
