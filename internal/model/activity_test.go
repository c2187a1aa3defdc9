package model

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

func TestActivityTypes(t *testing.T) {
	all := ActivityTypes()
	require.Len(t, all, 28)
	require.Equal(t, Cleaning, all[0])
	require.Equal(t, Absent, all[len(all)-1])
	require.Equal(t, 27, NumClassifiedActivities)
}

func TestDefaultActivityLabels(t *testing.T) {
	labels := DefaultActivityLabels()
	require.Len(t, labels, NumClassifiedActivities)
	require.Equal(t, Cleaning, labels[0])
	require.Equal(t, Sleeping, labels[19])
	require.Equal(t, Writing, labels[20])
	require.Equal(t, Unknown, labels[21])
	require.Equal(t, WatchingTV, labels[26])

	seen := make(map[ActivityType]bool)
	for _, a := range labels {
		require.NotEqual(t, Absent, a)
		require.False(t, seen[a], "duplicate %v", a)
		seen[a] = true
	}
}

func TestParseActivityType(t *testing.T) {
	a, err := ParseActivityType("GOING_TO_SLEEP")
	require.NoError(t, err)
	require.Equal(t, GoingToSleep, a)

	a, err = ParseActivityType(" watching_tv ")
	require.NoError(t, err)
	require.Equal(t, WatchingTV, a)

	_, err = ParseActivityType("JUGGLING")
	require.Error(t, err)

	for _, a := range ActivityTypes() {
		parsed, err := ParseActivityType(a.String())
		require.NoError(t, err)
		require.Equal(t, a, parsed)
	}
}

func TestActivityTypeString(t *testing.T) {
	require.Equal(t, "LISTENING_MUSIC", ListeningMusic.String())
	require.Equal(t, "ActivityType(99)", ActivityType(99).String())
	require.False(t, ActivityType(-1).Valid())
}

func TestActivityTypeJSON(t *testing.T) {
	scores := map[ActivityType]float64{Cooking: 0.75}
	data, err := jsoniter.Marshal(scores)
	require.NoError(t, err)
	require.JSONEq(t, `{"COOKING":0.75}`, string(data))

	var back map[ActivityType]float64
	require.NoError(t, jsoniter.Unmarshal(data, &back))
	require.Equal(t, scores, back)

	_, err = jsoniter.Marshal(ActivityType(99))
	require.Error(t, err)
}
