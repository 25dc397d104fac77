package kinematic

import (
	"log/slog"
	"math"

	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/pkg/core"
)

// Integrator owns the state of one AI body. With a rigid body attached it runs
// in hybrid mode: position follows the body and the same controls are turned
// into lift and thrust forces on it.
type Integrator struct {
	goal  *GoalState
	state KinematicState
	body  physics.RigidBody
	log   *slog.Logger

	// Gravity the hybrid lift compensates for (m/s^2).
	Gravity float64
}

// NewIntegrator starts at pose. body may be nil for a purely kinematic mover.
func NewIntegrator(goal *GoalState, pose core.Transform, body physics.RigidBody, log *slog.Logger) *Integrator {
	if log == nil {
		log = slog.Default()
	}
	if goal == nil {
		d := DefaultGoalState()
		goal = &d
	}
	goal.sanitize(log)
	if body != nil {
		pose = body.Transform()
	}
	return &Integrator{
		goal:    goal,
		state:   NewState(pose),
		body:    body,
		log:     log,
		Gravity: physics.StandardGravity,
	}
}

// State returns a copy of the current state.
func (i *Integrator) State() KinematicState {
	return i.state
}

// SetState replaces the current state.
func (i *Integrator) SetState(s KinematicState) {
	i.state = s
}

// Goal returns the limits in use.
func (i *Integrator) Goal() *GoalState {
	return i.goal
}

// Body returns the attached rigid body, nil when purely kinematic.
func (i *Integrator) Body() physics.RigidBody {
	return i.body
}

// Update advances one tick and returns the resulting pose.
func (i *Integrator) Update(dt float64, c Controls) core.Transform {
	if i.body != nil {
		i.state.Position = i.body.Transform().Position
	}

	i.state = Update(dt, c, i.state, i.goal)
	pose := i.state.Transform()

	if i.body == nil {
		return pose
	}

	c = c.clamped()
	mass := i.body.Mass()
	lift := math.Max(0, mass*(i.Gravity+c.Lift*i.goal.MaxVerticalAccel))
	thrust := mass * c.Thrust * i.goal.MaxAccel
	i.body.ApplyForce(i.state.Up.Mul(lift).Add(i.state.Forward.Mul(thrust)))

	// the solver owns position in hybrid mode
	pose.Position = i.body.Transform().Position
	i.body.SetTransform(pose)

	i.log.Debug("hybrid integrator step", "lift", lift, "thrust", thrust, "dt", i.state.TimeStep)
	return pose
}
