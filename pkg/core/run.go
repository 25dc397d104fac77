// pkg/core/run.go
package core

import "time"

// Run is one execution of a scenario.
type Run struct {
	ID        uint
	Name      string
	Scenario  string
	StartTime time.Time
	// EndTime and Ticks are filled when the run ends.
	EndTime  time.Time
	Ticks    uint64
	TickRate float64
	// Origin of the local frame in WGS84 degrees.
	OriginLongitude float64
	OriginLatitude  float64
	Version         string
}
