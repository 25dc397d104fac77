// Package physics defines the narrow rigid-body and ground-probe contracts the
// locomotion models need, plus simple reference implementations.
package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/pkg/core"
)

// StandardGravity in m/s^2.
const StandardGravity = 9.80665

// CollisionGroup is a bit in a collision mask.
type CollisionGroup uint32

const (
	GroupTerrain CollisionGroup = 1 << iota
	GroupStatic
	GroupVehicle
	GroupWater
)

// GroupsAll matches every collision group.
const GroupsAll CollisionGroup = 0xFFFFFFFF

// RigidBody is a dynamic body owned by a physics engine.
// Calls are synchronous; forces accumulate until the engine steps.
type RigidBody interface {
	ApplyForce(f mgl64.Vec3)
	ApplyImpulse(j mgl64.Vec3)
	Transform() core.Transform
	SetTransform(t core.Transform)
	LinearVelocity() mgl64.Vec3
	AngularVelocity() mgl64.Vec3
	Mass() float64
}

// Hit is the nearest surface found by a probe.
type Hit struct {
	Distance float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Group    CollisionGroup
}

// GroundProbe casts a ray against terrain and static geometry.
type GroundProbe interface {
	// Cast returns the nearest hit within maxDist along dir (unit length)
	// against surfaces whose group is in mask.
	Cast(origin, dir mgl64.Vec3, maxDist float64, mask CollisionGroup) (Hit, bool)
}
