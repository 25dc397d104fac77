// Package kinematic moves AI controlled bodies with a closed-form integrator
// instead of the rigid body solver.
package kinematic

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/vmath"
	"github.com/simcore/locomotion/pkg/core"
)

// Controls are normalized driver inputs in [-1, 1].
// Positive Yaw turns left (counter-clockwise seen from above).
type Controls struct {
	Thrust float64
	Yaw    float64
	Lift   float64
}

func (c Controls) clamped() Controls {
	return Controls{
		Thrust: vmath.Clamp(c.Thrust, -1, 1),
		Yaw:    vmath.Clamp(c.Yaw, -1, 1),
		Lift:   vmath.Clamp(c.Lift, -1, 1),
	}
}

// KinematicState is the motion state of one body. It is owned by that body.
type KinematicState struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Up       mgl64.Vec3

	// Velocity is the signed speed along the horizontal heading.
	Velocity float64
	Pitch    float64
	Roll     float64
	// AngularVelocity is the yaw rate in rad/s.
	AngularVelocity  float64
	VerticalVelocity float64
	// TimeStep is the clamped dt used by the last update.
	TimeStep float64

	// PrevHeadings holds the two previous smoothed headings.
	PrevHeadings [2]mgl64.Vec3
}

// NewState places a body at pose with zero motion.
func NewState(pose core.Transform) KinematicState {
	rot := pose.Rotation
	if rot.Len() < vmath.Epsilon {
		rot = mgl64.QuatIdent()
	}
	hpr := core.HPRFromQuat(rot)
	return KinematicState{
		Position: pose.Position,
		Forward:  rot.Rotate(core.AxisForward),
		Up:       rot.Rotate(core.AxisUp),
		Pitch:    mgl64.DegToRad(hpr.P),
		Roll:     mgl64.DegToRad(hpr.R),
	}
}

// Right is Forward x Up.
func (s KinematicState) Right() mgl64.Vec3 {
	return s.Forward.Cross(s.Up)
}

// Heading is the unit horizontal direction of travel.
func (s KinematicState) Heading() mgl64.Vec3 {
	return vmath.SafeNormalize(vmath.Horizontal(s.Forward), core.AxisForward)
}

// Matrix returns the pose matrix of the state.
func (s KinematicState) Matrix() mgl64.Mat4 {
	return vmath.BasisMat4(s.Right(), s.Forward, s.Up, s.Position)
}

// Transform returns the pose of the state.
func (s KinematicState) Transform() core.Transform {
	return core.TransformFromMat4(s.Matrix())
}

// Update advances s by one tick under goal's limits and returns the new state.
func Update(dt float64, c Controls, s KinematicState, goal *GoalState) KinematicState {
	minTick, maxTick := goal.tickBounds()
	dt = vmath.Clamp(dt, minTick, maxTick)
	s.TimeStep = dt
	c = c.clamped()

	s.Pitch = updateAttitude(s.Pitch, -c.Thrust*goal.MaxPitch, goal.MaxPitch, goal.MaxPitchPerSecond*dt)
	s.Roll = updateAttitude(s.Roll, -c.Yaw*goal.MaxRoll, goal.MaxRoll, goal.MaxRollPerSecond*dt)

	s.Velocity = updateRate(s.Velocity, c.Thrust*goal.MaxVel, goal.MaxVel, goal.MaxAccel*dt, goal.Drag, dt)
	s.VerticalVelocity = updateRate(s.VerticalVelocity, c.Lift*goal.MaxVerticalVel, goal.MaxVerticalVel,
		goal.MaxVerticalAccel*dt, goal.VerticalDrag, dt)
	s.AngularVelocity = updateRate(s.AngularVelocity, c.Yaw*goal.MaxAngularVel, goal.MaxAngularVel,
		goal.MaxAngularAccel*dt, goal.AngularDrag, dt)

	heading := s.smoothHeading(vmath.RotateAboutUp(s.Heading(), s.AngularVelocity*dt))

	s.Position = s.Position.Add(heading.Mul(s.Velocity * dt))
	s.Position[2] += s.VerticalVelocity * dt
	if goal.MaxElevation > goal.MinElevation {
		z := s.Position.Z()
		if clamped := vmath.Clamp(z, goal.MinElevation, goal.MaxElevation); clamped != z {
			s.Position[2] = clamped
			s.VerticalVelocity = 0
		}
	}

	rot := attitude(vmath.HeadingOf(heading), s.Pitch, s.Roll)
	s.Forward, s.Up, _ = vmath.Orthonormalize(rot.Rotate(core.AxisForward), rot.Rotate(core.AxisUp))
	return s
}

// smoothHeading averages next with the two previous headings and shifts the history.
func (s *KinematicState) smoothHeading(next mgl64.Vec3) mgl64.Vec3 {
	for i := range s.PrevHeadings {
		if s.PrevHeadings[i].Len() < vmath.Epsilon {
			s.PrevHeadings[i] = next
		}
	}
	avg := vmath.SafeNormalize(next.Add(s.PrevHeadings[0]).Add(s.PrevHeadings[1]), next)
	s.PrevHeadings[1] = s.PrevHeadings[0]
	s.PrevHeadings[0] = avg
	return avg
}

// updateAttitude dampens angle toward target. Moving away from level slows as
// the angle nears its limit; returning toward level runs at the full rate.
func updateAttitude(angle, target, limit, maxStep float64) float64 {
	falloff := 0.0
	if limit > 0 && math.Abs(target) > math.Abs(angle) && target*angle >= 0 {
		falloff = math.Abs(angle) / limit
	}
	return vmath.ClampAbs(vmath.Dampen(angle, target, maxStep, falloff), limit)
}

// updateRate accelerates v toward target, applies drag and clamps to limit.
func updateRate(v, target, limit, maxStep, drag, dt float64) float64 {
	v = vmath.Approach(v, target, maxStep)
	v = vmath.Drag(v, drag, dt)
	return vmath.ClampAbs(v, limit)
}

// attitude is Rz(heading) * Rx(pitch) * Ry(roll).
func attitude(heading, pitch, roll float64) mgl64.Quat {
	h := mgl64.QuatRotate(heading, core.AxisUp)
	p := mgl64.QuatRotate(pitch, core.AxisRight)
	r := mgl64.QuatRotate(roll, core.AxisForward)
	return h.Mul(p).Mul(r)
}
