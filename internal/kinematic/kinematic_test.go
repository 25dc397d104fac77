package kinematic

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/pkg/core"
)

const tick = 1.0 / 60

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func randomControls(r *rand.Rand) Controls {
	return Controls{
		Thrust: r.Float64()*2 - 1,
		Yaw:    r.Float64()*2 - 1,
		Lift:   r.Float64()*2 - 1,
	}
}

func TestUpdate_BasisStaysOrthonormal(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	goal := DefaultGoalState()
	s := NewState(core.NewTransform(mgl64.Vec3{0, 0, 100}, core.HPR{H: 30}))

	for i := 0; i < 1000; i++ {
		s = Update(tick, randomControls(r), s, &goal)
		require.InDelta(t, 1.0, s.Forward.Len(), 1e-4, "tick %d", i)
		require.InDelta(t, 1.0, s.Up.Len(), 1e-4, "tick %d", i)
		require.InDelta(t, 0.0, s.Forward.Dot(s.Up), 1e-4, "tick %d", i)
	}
}

func TestUpdate_VelocityNeverExceedsMax(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	goals := []GoalState{
		DefaultGoalState(),
		{MaxVel: 5, MaxAccel: 100, MaxVerticalVel: 1, MaxVerticalAccel: 50},
		{MaxVel: 0.5, MaxAccel: 0.1, Drag: 0.9},
		{MaxVel: 0, MaxAccel: 10},
	}
	for gi := range goals {
		goal := goals[gi]
		s := NewState(core.IdentityTransform())
		s.Velocity = 1000 // start far outside the limit
		for i := 0; i < 500; i++ {
			s = Update(r.Float64()*0.2, randomControls(r), s, &goal)
			require.LessOrEqual(t, math.Abs(s.Velocity), goal.MaxVel+1e-12, "goal %d tick %d", gi, i)
			require.LessOrEqual(t, math.Abs(s.VerticalVelocity), goal.MaxVerticalVel+1e-12, "goal %d tick %d", gi, i)
		}
	}
}

func TestUpdate_ClampsTimeStep(t *testing.T) {
	goal := DefaultGoalState()
	s := NewState(core.IdentityTransform())

	assert.Equal(t, DefaultMaxTick, Update(1, Controls{}, s, &goal).TimeStep)
	assert.Equal(t, DefaultMinTick, Update(0.0001, Controls{}, s, &goal).TimeStep)
	assert.Equal(t, 0.05, Update(0.05, Controls{}, s, &goal).TimeStep)
}

func TestUpdate_FullThrustAcceleratesAlongHeading(t *testing.T) {
	goal := DefaultGoalState()
	goal.Drag = 0
	s := NewState(core.NewTransform(mgl64.Vec3{}, core.HPR{H: 90}))

	s = Update(0.1, Controls{Thrust: 1}, s, &goal)

	assert.InDelta(t, goal.MaxAccel*0.1, s.Velocity, 1e-12)
	// heading 90 faces -X
	assert.Less(t, s.Position.X(), 0.0)
	assert.InDelta(t, 0.0, s.Position.Y(), 1e-9)
}

func TestUpdate_ThrustPitchesNoseDown(t *testing.T) {
	goal := DefaultGoalState()
	s := NewState(core.IdentityTransform())

	for i := 0; i < 600; i++ {
		s = Update(tick, Controls{Thrust: 1}, s, &goal)
	}

	assert.Less(t, s.Pitch, 0.0)
	assert.GreaterOrEqual(t, s.Pitch, -goal.MaxPitch)
	assert.Less(t, s.Forward.Z(), 0.0)
}

func TestUpdate_YawBanksIntoTurn(t *testing.T) {
	goal := DefaultGoalState()
	s := NewState(core.IdentityTransform())
	start := s.Heading()

	for i := 0; i < 60; i++ {
		s = Update(tick, Controls{Yaw: 1}, s, &goal)
	}

	assert.Greater(t, s.AngularVelocity, 0.0)
	assert.Less(t, s.Roll, 0.0)
	// turning left swings forward toward -X
	assert.Less(t, s.Heading().X(), start.X())
}

func TestUpdate_AttitudeReturnsToLevel(t *testing.T) {
	goal := DefaultGoalState()
	s := NewState(core.IdentityTransform())
	for i := 0; i < 120; i++ {
		s = Update(tick, Controls{Thrust: 1, Yaw: -1}, s, &goal)
	}
	require.NotZero(t, s.Pitch)

	for i := 0; i < 600; i++ {
		s = Update(tick, Controls{}, s, &goal)
	}

	assert.InDelta(t, 0.0, s.Pitch, 1e-9)
	assert.InDelta(t, 0.0, s.Roll, 1e-9)
}

func TestUpdate_ElevationClampStopsClimb(t *testing.T) {
	goal := DefaultGoalState()
	goal.MinElevation = 10
	goal.MaxElevation = 20
	s := NewState(core.Transform{Position: mgl64.Vec3{0, 0, 19.9}})

	for i := 0; i < 120; i++ {
		s = Update(tick, Controls{Lift: 1}, s, &goal)
		require.LessOrEqual(t, s.Position.Z(), 20.0)
	}
	assert.Equal(t, 20.0, s.Position.Z())
	assert.LessOrEqual(t, s.VerticalVelocity, goal.MaxVerticalAccel*tick)
}

func TestState_MatrixMatchesBasis(t *testing.T) {
	s := NewState(core.NewTransform(mgl64.Vec3{1, 2, 3}, core.HPR{H: 45, P: 10, R: -5}))

	m := s.Matrix()
	assert.True(t, m.Col(1).Vec3().ApproxEqualThreshold(s.Forward, 1e-9))
	assert.True(t, m.Col(2).Vec3().ApproxEqualThreshold(s.Up, 1e-9))
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, m.Col(3).Vec3())

	hpr := s.Transform().HPR()
	assert.InDelta(t, 45.0, hpr.H, 1e-6)
	assert.InDelta(t, 10.0, hpr.P, 1e-6)
	assert.InDelta(t, -5.0, hpr.R, 1e-6)
}

func TestIntegrator_KinematicMovesPose(t *testing.T) {
	goal := DefaultGoalState()
	in := NewIntegrator(&goal, core.IdentityTransform(), nil, quietLogger())

	var pose core.Transform
	for i := 0; i < 60; i++ {
		pose = in.Update(tick, Controls{Thrust: 1})
	}

	assert.Greater(t, pose.Position.Y(), 0.0)
	assert.Equal(t, in.State().Position, pose.Position)
}

func TestIntegrator_HybridHoldsAltitudeWithNeutralLift(t *testing.T) {
	goal := DefaultGoalState()
	body := physics.NewPointMass(500, core.Transform{Position: mgl64.Vec3{0, 0, 50}, Rotation: mgl64.QuatIdent()})
	in := NewIntegrator(&goal, core.IdentityTransform(), body, quietLogger())

	for i := 0; i < 120; i++ {
		in.Update(tick, Controls{})
		body.Step(tick)
	}

	assert.InDelta(t, 50.0, body.Transform().Position.Z(), 1e-6)
	assert.InDelta(t, 50.0, in.State().Position.Z(), 1e-6)
}

func TestIntegrator_HybridThrustPushesBody(t *testing.T) {
	goal := DefaultGoalState()
	body := physics.NewPointMass(500, core.Transform{Position: mgl64.Vec3{0, 0, 50}, Rotation: mgl64.QuatIdent()})
	in := NewIntegrator(&goal, core.IdentityTransform(), body, quietLogger())

	for i := 0; i < 60; i++ {
		in.Update(tick, Controls{Thrust: 1})
		body.Step(tick)
	}

	assert.Greater(t, body.LinearVelocity().Y(), 0.0)
	// orientation is written back to the body
	assert.True(t, body.Transform().Rotation.ApproxEqualThreshold(in.State().Transform().Rotation, 1e-9))
}

func TestIntegrator_HybridLiftNeverPullsDown(t *testing.T) {
	goal := DefaultGoalState()
	goal.MaxVerticalAccel = 100
	body := &forceRecorder{mass: 10}
	in := NewIntegrator(&goal, core.IdentityTransform(), body, quietLogger())

	in.Update(tick, Controls{Lift: -1})

	require.Len(t, body.forces, 1)
	assert.InDelta(t, 0.0, body.forces[0].Z(), 1e-9)
}

func TestNewIntegrator_SanitizesGoal(t *testing.T) {
	var buf bytes.Buffer
	goal := DefaultGoalState()
	goal.MaxVel = -3
	goal.MinTick = 0.5
	goal.MaxTick = 0.1

	NewIntegrator(&goal, core.IdentityTransform(), nil, slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Equal(t, 0.0, goal.MaxVel)
	assert.Equal(t, DefaultMinTick, goal.MinTick)
	assert.Equal(t, DefaultMaxTick, goal.MaxTick)
	assert.Contains(t, buf.String(), "maxVel")
}

func TestGoalState_Properties(t *testing.T) {
	goal := DefaultGoalState()
	props := goal.Properties()

	require.NoError(t, props.Apply(map[string]any{"maxvel": 12, "Drag": "0.3"}))
	assert.Equal(t, 12.0, goal.MaxVel)
	assert.Equal(t, 0.3, goal.Drag)
	assert.Len(t, props.Names(), 17)
}

type forceRecorder struct {
	mass   float64
	pose   core.Transform
	forces []mgl64.Vec3
}

func (b *forceRecorder) ApplyForce(f mgl64.Vec3)       { b.forces = append(b.forces, f) }
func (b *forceRecorder) ApplyImpulse(mgl64.Vec3)       {}
func (b *forceRecorder) Transform() core.Transform     { return b.pose }
func (b *forceRecorder) SetTransform(t core.Transform) { b.pose = t }
func (b *forceRecorder) LinearVelocity() mgl64.Vec3    { return mgl64.Vec3{} }
func (b *forceRecorder) AngularVelocity() mgl64.Vec3   { return mgl64.Vec3{} }
func (b *forceRecorder) Mass() float64                 { return b.mass }
