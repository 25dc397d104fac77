// Package hover drives a rigid body so that it floats at a fixed clearance
// above the ground and moves omnidirectionally from discrete control inputs.
package hover

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/internal/property"
	"github.com/simcore/locomotion/internal/vmath"
	"github.com/simcore/locomotion/pkg/core"
)

// Controls are the discrete driver intents for one tick.
type Controls struct {
	Forward bool
	Reverse bool
	Left    bool
	Right   bool
	Jump    bool
	Boost   bool
}

func (c Controls) idle() bool {
	return !c.Forward && !c.Reverse && !c.Left && !c.Right
}

// Model computes and applies hover forces to one body.
type Model struct {
	cfg   Config
	body  physics.RigidBody
	probe physics.GroundProbe
	log   *slog.Logger

	groundDistance float64
	supported      bool
	jumpHeld       bool
}

// New creates a model for body. Invalid tunables in cfg are replaced by
// defaults and reported through log.
func New(body physics.RigidBody, probe physics.GroundProbe, cfg Config, log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}
	cfg.sanitize(log)
	return &Model{
		cfg:            cfg,
		body:           body,
		probe:          probe,
		log:            log,
		groundDistance: math.Inf(1),
	}
}

// Config returns the effective tuning.
func (m *Model) Config() Config {
	return m.cfg
}

// Body returns the driven rigid body.
func (m *Model) Body() physics.RigidBody {
	return m.body
}

// GroundDistance is the probed height above ground at the last update,
// +Inf when nothing was found in range.
func (m *Model) GroundDistance() float64 {
	return m.groundDistance
}

// Supported reports whether ground was within probe range at the last update.
func (m *Model) Supported() bool {
	return m.supported
}

// NearGround reports whether the body is within two clearances of the ground.
func (m *Model) NearGround() bool {
	return m.supported && m.groundDistance <= 2*m.cfg.GroundClearance
}

// estimateForce returns the upward force magnitude needed at pos to hold the
// configured clearance, and whether ground was found.
func (m *Model) estimateForce(pos mgl64.Vec3, mass float64) (float64, float64, bool) {
	if m.probe == nil {
		return 0, math.Inf(1), false
	}
	hit, ok := m.probe.Cast(pos, core.AxisUp.Mul(-1), m.cfg.probeRange(), m.cfg.CollisionMask)
	if !ok {
		return 0, math.Inf(1), false
	}
	c := m.cfg.GroundClearance
	f := mass * m.cfg.Gravity * (1 + m.cfg.Stiffness*(c-hit.Distance)/c)
	return math.Max(f, 0), hit.Distance, true
}

// ComputeGroundCorrectionForce blends the lift needed at the current position
// with the lift needed at the look-ahead position. A probe miss contributes no lift.
func (m *Model) ComputeGroundCorrectionForce(current, lookAhead mgl64.Vec3) mgl64.Vec3 {
	if m.body == nil {
		m.supported = false
		return mgl64.Vec3{}
	}
	mass := m.body.Mass()

	cur, dist, ok := m.estimateForce(current, mass)
	m.groundDistance = dist
	m.supported = ok

	fut, _, _ := m.estimateForce(lookAhead, mass)

	w := m.cfg.FutureWeight
	return core.AxisUp.Mul(cur*(1-w) + fut*w)
}

// ComputeMovementForces returns the horizontal drive, wind resistance and
// coast forces for the given controls. forward and right are the vehicle's
// facing vectors; only their horizontal parts are used.
func (m *Model) ComputeMovementForces(c Controls, forward, right mgl64.Vec3, mass, dt float64) mgl64.Vec3 {
	forward = vmath.SafeNormalize(vmath.Horizontal(forward), mgl64.Vec3{})
	right = vmath.SafeNormalize(vmath.Horizontal(right), mgl64.Vec3{})

	k := m.cfg.WindResistance
	boost := 1.0
	if c.Boost {
		boost = m.cfg.BoostFactor
	}

	var drive mgl64.Vec3
	if c.Forward {
		drive = drive.Add(forward.Mul(m.cfg.MaxForwardSpeed))
	}
	if c.Reverse {
		drive = drive.Sub(forward.Mul(m.cfg.MaxReverseSpeed))
	}
	if c.Right {
		drive = drive.Add(right.Mul(m.cfg.MaxStrafeSpeed))
	}
	if c.Left {
		drive = drive.Sub(right.Mul(m.cfg.MaxStrafeSpeed))
	}
	// Terminal speed under wind resistance alone equals the configured max.
	force := drive.Mul(k * mass * boost)

	vel := vmath.Horizontal(m.body.LinearVelocity())
	force = force.Sub(vel.Mul(k * mass))

	speed := vel.Len()
	if speed > vmath.Epsilon {
		coast := m.cfg.CoastDeceleration
		if c.idle() && m.NearGround() {
			coast *= m.cfg.CoastIdleFactor
		}
		if dt > 0 {
			coast = math.Min(coast, speed/dt)
		}
		force = force.Sub(vel.Mul(mass * coast / speed))
	}
	return force
}

// Update computes this tick's forces and applies them to the body.
func (m *Model) Update(dt float64, c Controls) {
	if dt <= 0 || m.body == nil {
		return
	}
	m.cfg.sanitize(m.log)
	dt = math.Min(dt, m.cfg.MaxTimeStep)

	pose := m.body.Transform()
	vel := m.body.LinearVelocity()
	mass := m.body.Mass()

	look := pose.Position.Add(vel.Mul(m.cfg.LookAheadTime))
	lift := m.ComputeGroundCorrectionForce(pose.Position, look)

	rot := pose.Rotation
	if rot.Len() < vmath.Epsilon {
		rot = mgl64.QuatIdent()
	}
	move := m.ComputeMovementForces(c, rot.Rotate(core.AxisForward), rot.Rotate(core.AxisRight), mass, dt)

	if m.supported {
		move = move.Add(core.AxisUp.Mul(-mass * m.verticalDamping() * vel.Z()))
	}

	m.body.ApplyForce(move)
	m.body.ApplyImpulse(lift.Mul(dt))

	if c.Jump && !m.jumpHeld && m.NearGround() {
		m.body.ApplyImpulse(core.AxisUp.Mul(mass * m.cfg.JumpSpeed))
		m.log.Debug("hover jump", "groundDistance", m.groundDistance)
	}
	m.jumpHeld = c.Jump
}

// verticalDamping defaults to the critical value for the lift spring.
func (m *Model) verticalDamping() float64 {
	if m.cfg.VerticalDamping > 0 {
		return m.cfg.VerticalDamping
	}
	return 2 * math.Sqrt(m.cfg.Gravity*m.cfg.Stiffness/m.cfg.GroundClearance)
}

// Properties exposes the model's tunables and readouts by name.
func (m *Model) Properties() *property.Set {
	s := m.cfg.Properties()
	s.Add(property.ReadOnly("GroundDistance", func() any { return m.groundDistance }))
	s.Add(property.ReadOnly("Supported", func() any { return m.supported }))
	return s
}
