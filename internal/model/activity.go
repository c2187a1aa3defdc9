package model

import (
	"fmt"
	"strings"
)

// ActivityType is a household activity the classifier can report.
type ActivityType int

const (
	Cleaning ActivityType = iota
	Conversing
	Cooking
	Dancing
	Eating
	Feeding
	GoingToSleep
	Ironing
	Knitting
	ListeningMusic
	Moving
	NeedingHelp
	Phoning
	Playing
	PlayingMusic
	PuttingAway
	Reading
	Receiving
	Singing
	Sleeping
	Unknown
	UsingScreen
	Waiting
	WakingUp
	Washing
	WatchingTV
	Writing
	// Absent marks "nobody in frame"; the classifier never outputs it.
	Absent
)

var activityNames = [...]string{
	Cleaning:       "CLEANING",
	Conversing:     "CONVERSING",
	Cooking:        "COOKING",
	Dancing:        "DANCING",
	Eating:         "EATING",
	Feeding:        "FEEDING",
	GoingToSleep:   "GOING_TO_SLEEP",
	Ironing:        "IRONING",
	Knitting:       "KNITTING",
	ListeningMusic: "LISTENING_MUSIC",
	Moving:         "MOVING",
	NeedingHelp:    "NEEDING_HELP",
	Phoning:        "PHONING",
	Playing:        "PLAYING",
	PlayingMusic:   "PLAYING_MUSIC",
	PuttingAway:    "PUTTING_AWAY",
	Reading:        "READING",
	Receiving:      "RECEIVING",
	Singing:        "SINGING",
	Sleeping:       "SLEEPING",
	Unknown:        "UNKNOWN",
	UsingScreen:    "USING_SCREEN",
	Waiting:        "WAITING",
	WakingUp:       "WAKING_UP",
	Washing:        "WASHING",
	WatchingTV:     "WATCHING_TV",
	Writing:        "WRITING",
	Absent:         "ABSENT",
}

// ActivityTypes returns every activity in declaration order, Absent last.
func ActivityTypes() []ActivityType {
	out := make([]ActivityType, len(activityNames))
	for i := range activityNames {
		out[i] = ActivityType(i)
	}
	return out
}

// NumClassifiedActivities is the number of classifier output slots; Absent has none.
const NumClassifiedActivities = int(Absent)

// DefaultActivityLabels maps classifier output index to activity for the
// stock activity model. Index 20 is WRITING, the remaining slots follow
// declaration order.
func DefaultActivityLabels() []ActivityType {
	labels := make([]ActivityType, 0, NumClassifiedActivities)
	for a := Cleaning; a <= Sleeping; a++ {
		labels = append(labels, a)
	}
	labels = append(labels, Writing)
	for a := Unknown; a <= WatchingTV; a++ {
		labels = append(labels, a)
	}
	return labels
}

func (a ActivityType) Valid() bool {
	return a >= 0 && int(a) < len(activityNames)
}

func (a ActivityType) String() string {
	if !a.Valid() {
		return fmt.Sprintf("ActivityType(%d)", int(a))
	}
	return activityNames[a]
}

// ParseActivityType parses an upper-case activity name; case and surrounding
// spaces are ignored.
func ParseActivityType(s string) (ActivityType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range activityNames {
		if n == name {
			return ActivityType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown activity %q", s)
}

// MarshalText encodes the activity as its name, so maps keyed by
// ActivityType serialize with readable keys.
func (a ActivityType) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid activity %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *ActivityType) UnmarshalText(text []byte) error {
	v, err := ParseActivityType(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
