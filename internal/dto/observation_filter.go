// ObservationFilter describes user-provided filters to narrow the observation list.
package dto

import "time"

type ObservationFilter struct {
	Camera      string
	Activity    string // top activity name, e.g. "COOKING"
	PresentOnly bool
	After       time.Time
	Before      time.Time
	Limit       int
	Offset      int
}
