// pkg/core/types.go
package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// EntityID identifies a simulation entity. The zero value (uuid.Nil) is "no entity".
type EntityID = uuid.UUID

// NilEntity is the empty entity id.
var NilEntity = uuid.Nil

// NewEntityID returns a fresh random id.
func NewEntityID() EntityID {
	return uuid.New()
}

// World axes. X right, Y forward, Z up.
var (
	AxisRight   = mgl64.Vec3{1, 0, 0}
	AxisForward = mgl64.Vec3{0, 1, 0}
	AxisUp      = mgl64.Vec3{0, 0, 1}
)

// HPR is a heading/pitch/roll triple in degrees.
// Heading rotates about +Z, pitch about +X, roll about +Y, applied in that order.
type HPR struct {
	H float64 `json:"h" mapstructure:"h"`
	P float64 `json:"p" mapstructure:"p"`
	R float64 `json:"r" mapstructure:"r"`
}

// Quat returns the rotation described by the triple.
func (a HPR) Quat() mgl64.Quat {
	h := mgl64.QuatRotate(mgl64.DegToRad(a.H), AxisUp)
	p := mgl64.QuatRotate(mgl64.DegToRad(a.P), AxisRight)
	r := mgl64.QuatRotate(mgl64.DegToRad(a.R), AxisForward)
	return h.Mul(p).Mul(r)
}

// HPRFromQuat extracts heading, pitch and roll (degrees) from a rotation.
func HPRFromQuat(q mgl64.Quat) HPR {
	fwd := q.Rotate(AxisForward)
	right := q.Rotate(AxisRight)
	up := q.Rotate(AxisUp)

	p := math.Asin(mgl64.Clamp(fwd.Z(), -1, 1))
	h := math.Atan2(-fwd.X(), fwd.Y())
	r := math.Atan2(-right.Z(), up.Z())

	return HPR{
		H: mgl64.RadToDeg(h),
		P: mgl64.RadToDeg(p),
		R: mgl64.RadToDeg(r),
	}
}

// Transform is a rigid pose: rotation followed by translation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// IdentityTransform returns the pose at the origin with no rotation.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// NewTransform builds a pose from a position and an HPR triple.
func NewTransform(pos mgl64.Vec3, hpr HPR) Transform {
	return Transform{Position: pos, Rotation: hpr.Quat()}
}

// Mul composes t with child, expressing child (given in t's frame) in t's parent frame.
func (t Transform) Mul(child Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.rot().Rotate(child.Position)),
		Rotation: t.rot().Mul(child.rot()).Normalize(),
	}
}

// Inverse returns the pose that undoes t.
func (t Transform) Inverse() Transform {
	inv := t.rot().Conjugate()
	return Transform{
		Position: inv.Rotate(t.Position).Mul(-1),
		Rotation: inv,
	}
}

// HPR returns the rotation part as heading/pitch/roll.
func (t Transform) HPR() HPR {
	return HPRFromQuat(t.rot())
}

// Mat4 returns the homogeneous matrix for the pose.
func (t Transform) Mat4() mgl64.Mat4 {
	m := t.rot().Mat4()
	m.SetCol(3, t.Position.Vec4(1))
	return m
}

// TransformFromMat4 converts a rigid homogeneous matrix back into a pose.
func TransformFromMat4(m mgl64.Mat4) Transform {
	return Transform{
		Position: m.Col(3).Vec3(),
		Rotation: mgl64.Mat4ToQuat(m).Normalize(),
	}
}

// rot treats the zero quaternion as identity so zero-valued transforms are usable.
func (t Transform) rot() mgl64.Quat {
	if t.Rotation.W == 0 && t.Rotation.V == (mgl64.Vec3{}) {
		return mgl64.QuatIdent()
	}
	return t.Rotation
}

// DRAlgorithm selects how an entity's pose is extrapolated between updates.
type DRAlgorithm uint8

const (
	DRNone DRAlgorithm = iota
	DRStatic
	DRVelocityOnly
	DRVelocityAndAcceleration
)

func (a DRAlgorithm) String() string {
	switch a {
	case DRNone:
		return "none"
	case DRStatic:
		return "static"
	case DRVelocityOnly:
		return "velocity_only"
	case DRVelocityAndAcceleration:
		return "velocity_and_acceleration"
	default:
		return "unknown"
	}
}

// ParseDRAlgorithm is the inverse of DRAlgorithm.String. Unknown names map to DRNone.
func ParseDRAlgorithm(s string) DRAlgorithm {
	switch s {
	case "static":
		return DRStatic
	case "velocity_only":
		return DRVelocityOnly
	case "velocity_and_acceleration":
		return DRVelocityAndAcceleration
	default:
		return DRNone
	}
}
