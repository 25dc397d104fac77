package hover

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/pkg/core"
)

const tick = 1.0 / 60

type recordingBody struct {
	pose     core.Transform
	velocity mgl64.Vec3
	mass     float64
	forces   []mgl64.Vec3
	impulses []mgl64.Vec3
}

func (b *recordingBody) ApplyForce(f mgl64.Vec3)       { b.forces = append(b.forces, f) }
func (b *recordingBody) ApplyImpulse(j mgl64.Vec3)     { b.impulses = append(b.impulses, j) }
func (b *recordingBody) Transform() core.Transform     { return b.pose }
func (b *recordingBody) SetTransform(t core.Transform) { b.pose = t }
func (b *recordingBody) LinearVelocity() mgl64.Vec3    { return b.velocity }
func (b *recordingBody) AngularVelocity() mgl64.Vec3   { return mgl64.Vec3{} }
func (b *recordingBody) Mass() float64                 { return b.mass }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func hoverAt(height float64) (*Model, *physics.PointMass) {
	body := physics.NewPointMass(100, core.Transform{
		Position: mgl64.Vec3{0, 0, height},
		Rotation: mgl64.QuatIdent(),
	})
	m := New(body, physics.FlatGround{}, DefaultConfig(), quietLogger())
	return m, body
}

func run(m *Model, body *physics.PointMass, ticks int, c Controls) {
	for i := 0; i < ticks; i++ {
		m.Update(tick, c)
		body.Step(tick)
	}
}

func TestUpdate_ConvergesToGroundClearance(t *testing.T) {
	m, body := hoverAt(2)
	clearance := m.Config().GroundClearance

	run(m, body, 600, Controls{})

	for i := 0; i < 120; i++ {
		m.Update(tick, Controls{})
		body.Step(tick)
		require.InDelta(t, clearance, body.Transform().Position.Z(), 0.01*clearance, "tick %d", i)
	}
	assert.InDelta(t, 0.0, body.LinearVelocity().Z(), 1e-3)
}

func TestUpdate_ConvergesFromBelowClearance(t *testing.T) {
	m, body := hoverAt(0.3)

	run(m, body, 600, Controls{})

	assert.InDelta(t, 1.0, body.Transform().Position.Z(), 0.01)
}

func TestComputeGroundCorrectionForce_ProbeMissIsZero(t *testing.T) {
	m, _ := hoverAt(50)

	f := m.ComputeGroundCorrectionForce(mgl64.Vec3{0, 0, 50}, mgl64.Vec3{0, 0, 50})

	assert.Equal(t, mgl64.Vec3{}, f)
	assert.False(t, m.Supported())
	assert.False(t, m.NearGround())
	assert.True(t, math.IsInf(m.GroundDistance(), 1))
}

func TestComputeGroundCorrectionForce_NoBodyIsZero(t *testing.T) {
	m := New(nil, physics.FlatGround{}, DefaultConfig(), quietLogger())

	assert.Equal(t, mgl64.Vec3{}, m.ComputeGroundCorrectionForce(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, 1}))
	assert.False(t, m.Supported())
	assert.NotPanics(t, func() { m.Update(1.0/60, Controls{Forward: true}) })
}

func TestComputeGroundCorrectionForce_AtClearanceCancelsWeight(t *testing.T) {
	m, body := hoverAt(1)

	f := m.ComputeGroundCorrectionForce(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, 1})

	assert.InDelta(t, body.Mass()*physics.StandardGravity, f.Z(), 1e-9)
	assert.True(t, m.Supported())
	assert.InDelta(t, 1.0, m.GroundDistance(), 1e-12)
}

func TestComputeGroundCorrectionForce_FutureWeightBlends(t *testing.T) {
	body := &recordingBody{mass: 1, pose: core.IdentityTransform()}
	cfg := DefaultConfig()
	cfg.FutureWeight = 0.5
	cfg.ProbeRange = 10
	m := New(body, physics.FlatGround{}, cfg, quietLogger())

	// current at clearance: g; future at 2*clearance: 0
	f := m.ComputeGroundCorrectionForce(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, 2})

	assert.InDelta(t, 0.5*physics.StandardGravity, f.Z(), 1e-9)
}

func TestUpdate_CapsTimeStep(t *testing.T) {
	body := &recordingBody{mass: 10, pose: core.Transform{Position: mgl64.Vec3{0, 0, 1}}}
	m := New(body, physics.FlatGround{}, DefaultConfig(), quietLogger())

	m.Update(5, Controls{})

	require.Len(t, body.impulses, 1)
	assert.InDelta(t, 10*physics.StandardGravity*0.2, body.impulses[0].Z(), 1e-9)
}

func TestUpdate_NonPositiveStepIsNoop(t *testing.T) {
	body := &recordingBody{mass: 10, pose: core.Transform{Position: mgl64.Vec3{0, 0, 1}}}
	m := New(body, physics.FlatGround{}, DefaultConfig(), quietLogger())

	m.Update(0, Controls{Forward: true})
	m.Update(-1, Controls{Forward: true})

	assert.Empty(t, body.forces)
	assert.Empty(t, body.impulses)
}

func TestUpdate_ForwardReachesTerminalSpeed(t *testing.T) {
	m, body := hoverAt(1)
	cfg := m.Config()

	run(m, body, 1200, Controls{Forward: true})

	want := cfg.MaxForwardSpeed - cfg.CoastDeceleration/cfg.WindResistance
	v := body.LinearVelocity()
	assert.InDelta(t, want, v.Y(), 0.05)
	assert.InDelta(t, 0.0, v.X(), 1e-9)
	assert.InDelta(t, 1.0, body.Transform().Position.Z(), 0.02)
}

func TestUpdate_BoostRaisesSpeed(t *testing.T) {
	plain, plainBody := hoverAt(1)
	boosted, boostedBody := hoverAt(1)

	run(plain, plainBody, 300, Controls{Right: true})
	run(boosted, boostedBody, 300, Controls{Right: true, Boost: true})

	assert.Greater(t, boostedBody.LinearVelocity().X(), plainBody.LinearVelocity().X())
}

func TestUpdate_IdleSettlesToStop(t *testing.T) {
	m, body := hoverAt(1)
	body.SetLinearVelocity(mgl64.Vec3{5, -3, 0})

	run(m, body, 600, Controls{})

	assert.Less(t, body.LinearVelocity().Len(), 0.01)
}

func TestComputeMovementForces_CoastNeverReverses(t *testing.T) {
	body := &recordingBody{mass: 1, pose: core.IdentityTransform(), velocity: mgl64.Vec3{0.001, 0, 0}}
	cfg := DefaultConfig()
	cfg.WindResistance = 1e-6
	m := New(body, physics.FlatGround{}, cfg, quietLogger())

	f := m.ComputeMovementForces(Controls{}, core.AxisForward, core.AxisRight, 1, tick)

	// the resulting velocity change must not overshoot zero
	assert.GreaterOrEqual(t, 0.001+f.X()*tick, -1e-9)
}

func TestUpdate_JumpOnRisingEdgeOnly(t *testing.T) {
	body := &recordingBody{mass: 10, pose: core.Transform{Position: mgl64.Vec3{0, 0, 1}}}
	m := New(body, physics.FlatGround{}, DefaultConfig(), quietLogger())

	m.Update(tick, Controls{Jump: true})
	m.Update(tick, Controls{Jump: true})
	m.Update(tick, Controls{})
	m.Update(tick, Controls{Jump: true})

	// one lift impulse per tick plus two jumps
	require.Len(t, body.impulses, 6)
	jump := 10 * DefaultConfig().JumpSpeed
	assert.InDelta(t, jump, body.impulses[1].Z(), 1e-9)
	assert.InDelta(t, jump, body.impulses[5].Z(), 1e-9)
}

func TestNew_ReplacesInvalidTunables(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	cfg := DefaultConfig()
	cfg.GroundClearance = 0
	cfg.BoostFactor = -2
	cfg.FutureWeight = 3

	m := New(&recordingBody{mass: 1}, physics.FlatGround{}, cfg, log)

	got := m.Config()
	assert.Equal(t, 1.0, got.GroundClearance)
	assert.Equal(t, 1.5, got.BoostFactor)
	assert.Equal(t, 0.01, got.FutureWeight)
	assert.Contains(t, buf.String(), "groundClearance")
	assert.Contains(t, buf.String(), "boostFactor")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestProperties(t *testing.T) {
	m, _ := hoverAt(1)
	props := m.Properties()

	require.NoError(t, props.Set("futureWeight", "0.2"))
	assert.Equal(t, 0.2, m.Config().FutureWeight)

	v, err := props.Get("GroundClearance")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	assert.Error(t, props.Set("GroundDistance", 3))
	assert.Contains(t, props.Names(), "Supported")
}

func TestProperties_InvalidValueSanitizedOnUpdate(t *testing.T) {
	m, body := hoverAt(1)
	require.NoError(t, m.Properties().Set("GroundClearance", -1))

	m.Update(tick, Controls{})
	body.Step(tick)

	assert.Equal(t, 1.0, m.Config().GroundClearance)
	assert.False(t, math.IsNaN(body.Transform().Position.Z()))
}
