package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/pkg/core"
)

// PointMass is a rigid body without rotational dynamics. It integrates with
// semi-implicit Euler and is enough to drive the locomotion models in tests and
// in the standalone simulator.
type PointMass struct {
	mass     float64
	pose     core.Transform
	velocity mgl64.Vec3
	angular  mgl64.Vec3

	force   mgl64.Vec3
	impulse mgl64.Vec3

	// Gravity applied every step (world frame).
	Gravity mgl64.Vec3
	// LinearDamping removes this fraction of velocity per second.
	LinearDamping float64
	// Kinematic bodies ignore forces and keep whatever pose is set on them.
	Kinematic bool
}

// NewPointMass creates a body of the given mass under standard gravity.
func NewPointMass(mass float64, pose core.Transform) *PointMass {
	if mass <= 0 {
		mass = 1
	}
	return &PointMass{
		mass:    mass,
		pose:    pose,
		Gravity: mgl64.Vec3{0, 0, -StandardGravity},
	}
}

func (b *PointMass) ApplyForce(f mgl64.Vec3) {
	b.force = b.force.Add(f)
}

func (b *PointMass) ApplyImpulse(j mgl64.Vec3) {
	b.impulse = b.impulse.Add(j)
}

func (b *PointMass) Transform() core.Transform {
	return b.pose
}

func (b *PointMass) SetTransform(t core.Transform) {
	b.pose = t
}

func (b *PointMass) LinearVelocity() mgl64.Vec3 {
	return b.velocity
}

// SetLinearVelocity overrides the current velocity.
func (b *PointMass) SetLinearVelocity(v mgl64.Vec3) {
	b.velocity = v
}

func (b *PointMass) AngularVelocity() mgl64.Vec3 {
	return b.angular
}

// SetAngularVelocity overrides the reported angular velocity.
func (b *PointMass) SetAngularVelocity(w mgl64.Vec3) {
	b.angular = w
}

func (b *PointMass) Mass() float64 {
	return b.mass
}

// Step advances the body by dt seconds and clears the accumulators.
func (b *PointMass) Step(dt float64) {
	defer func() {
		b.force = mgl64.Vec3{}
		b.impulse = mgl64.Vec3{}
	}()
	if dt <= 0 || b.Kinematic {
		return
	}

	invMass := 1 / b.mass
	accel := b.force.Mul(invMass).Add(b.Gravity)
	b.velocity = b.velocity.Add(accel.Mul(dt)).Add(b.impulse.Mul(invMass))
	if b.LinearDamping > 0 {
		f := 1 - b.LinearDamping*dt
		if f < 0 {
			f = 0
		}
		b.velocity = b.velocity.Mul(f)
	}
	b.pose.Position = b.pose.Position.Add(b.velocity.Mul(dt))
}
