package core

import "time"

// Tick identifies one simulation step.
type Tick struct {
	Number uint64
	Time   time.Time
	// DT is the step length in seconds.
	DT float64
}
