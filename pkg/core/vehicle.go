// pkg/core/vehicle.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// EntityRecord describes an entity when it joins a run.
type EntityRecord struct {
	ID        EntityID
	Name      string
	Kind      string
	Archetype string
	Remote    bool
	JoinTime  time.Time
	JoinTick  uint64
}

// EntityState is the pose of an entity at a point in time.
type EntityState struct {
	ID       EntityID
	Time     time.Time
	Tick     uint64
	Position mgl64.Vec3
	HPR      HPR
	Velocity mgl64.Vec3
	Parent   EntityID
	DR       DRAlgorithm
}
