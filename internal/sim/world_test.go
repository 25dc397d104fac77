package sim

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simcore/locomotion/internal/entity"
	"github.com/simcore/locomotion/internal/hitch"
	"github.com/simcore/locomotion/internal/hover"
	"github.com/simcore/locomotion/internal/munition"
	"github.com/simcore/locomotion/internal/property"
	"github.com/simcore/locomotion/pkg/core"
)

type eventLog struct {
	events []core.Event
}

func (l *eventLog) Dispatch(ev core.Event) error {
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) hitches() []core.HitchEvent {
	var out []core.HitchEvent
	for _, ev := range l.events {
		if h, ok := ev.(core.HitchEvent); ok {
			out = append(out, h)
		}
	}
	return out
}

func (l *eventLog) removals() []core.EntityRemovedEvent {
	var out []core.EntityRemovedEvent
	for _, ev := range l.events {
		if r, ok := ev.(core.EntityRemovedEvent); ok {
			out = append(out, r)
		}
	}
	return out
}

func (l *eventLog) count(kind core.EventKind) int {
	n := 0
	for _, ev := range l.events {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

func testArchetypes() []Archetype {
	tractor := DefaultArchetype("tractor")
	tractor.Kind = "groundVehicle"
	tractor.Driver = DriverKinematic
	hc := hitch.DefaultConfig()
	tractor.Hitch = &hc
	tractor.Nodes = map[string]NodeSpec{"hitch_node": {Position: mgl64.Vec3{0, -3, 0.5}}}

	trailer := DefaultArchetype("trailer")
	trailer.Kind = "trailer"
	trailer.Nodes = map[string]NodeSpec{"hitch_node": {Position: mgl64.Vec3{0, 4, 0.5}}}

	skimmer := DefaultArchetype("skimmer")
	skimmer.Kind = "hover"
	skimmer.Driver = DriverHover
	skimmer.Mass = 100

	crate := DefaultArchetype("crate")
	crate.Mass = 10

	wagon := trailer
	wagon.Name = "wagon"
	wagon.Mass = 500

	return []Archetype{tractor, trailer, skimmer, crate, wagon}
}

func newTestWorld(t *testing.T, table *munition.Table) (*World, *eventLog) {
	t.Helper()
	events := &eventLog{}
	w, err := NewWorld(Options{
		Archetypes: testArchetypes(),
		Munitions:  table,
		Events:     events,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		MinTick:    0.001,
		MaxTick:    0.1,
		Seed:       7,
		Start:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	return w, events
}

func spawn(t *testing.T, w *World, spec EntitySpec) *entity.Entity {
	t.Helper()
	e, err := w.Spawn(spec)
	require.NoError(t, err)
	return e
}

func TestNewWorld_RejectsBadArchetypes(t *testing.T) {
	tests := []struct {
		name string
		mod  func(a *Archetype)
	}{
		{"unknown kind", func(a *Archetype) { a.Kind = "submarine" }},
		{"unknown driver", func(a *Archetype) { a.Driver = "wheels" }},
		{"hover without mass", func(a *Archetype) { a.Driver = DriverHover; a.Mass = 0 }},
		{"hybrid without mass", func(a *Archetype) { a.Driver = DriverHybrid }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DefaultArchetype("bad")
			tt.mod(&a)
			_, err := NewWorld(Options{Archetypes: []Archetype{a}})
			assert.Error(t, err)
		})
	}

	_, err := NewWorld(Options{Archetypes: []Archetype{DefaultArchetype("a"), DefaultArchetype("A")}})
	assert.Error(t, err)
}

func TestSpawn(t *testing.T) {
	w, events := newTestWorld(t, nil)

	tractor := spawn(t, w, EntitySpec{Name: "t1", Archetype: "Tractor", Position: mgl64.Vec3{1, 2, 0}})
	assert.Equal(t, entity.KindGroundVehicle, tractor.Kind)
	assert.Nil(t, tractor.Body, "kinematic movers have no body")
	assert.NotNil(t, w.Coupler(tractor.ID))
	node, ok := tractor.Node("hitch_node")
	assert.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0, -3, 0.5}, node.Position)

	skimmer := spawn(t, w, EntitySpec{Name: "s1", Archetype: "skimmer", Position: mgl64.Vec3{0, 0, 2}})
	assert.NotNil(t, skimmer.Body)
	assert.Nil(t, w.Coupler(skimmer.ID))

	assert.Equal(t, 2, events.count(core.EventEntityAdded))

	_, err := w.Spawn(EntitySpec{Name: "t1", Archetype: "tractor"})
	assert.ErrorIs(t, err, entity.ErrDuplicateEntity)

	_, err = w.Spawn(EntitySpec{Name: "x", Archetype: "zeppelin"})
	assert.ErrorIs(t, err, ErrUnknownArchetype)

	_, err = w.Spawn(EntitySpec{Name: "y", Archetype: "tractor", Tuning: map[string]any{"NoSuchTunable": 1}})
	assert.ErrorIs(t, err, property.ErrUnknownField)

	_, err = w.Spawn(EntitySpec{Name: "z", Archetype: "crate", HitchProperties: map[string]any{"MaxYaw": 10}})
	assert.ErrorIs(t, err, ErrNoCoupler)

	assert.Equal(t, 2, w.Registry().Len(), "failed spawns leave nothing behind")
}

func TestTick_ClampsStep(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	tick := w.Tick(5)
	assert.Equal(t, uint64(1), tick.Number)
	assert.InDelta(t, 0.1, tick.DT, 1e-12)
	assert.InDelta(t, 0.1, w.Elapsed(), 1e-12)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, int(100*time.Millisecond), time.UTC), tick.Time)

	same := w.Tick(0)
	assert.Equal(t, tick, same, "non-positive steps are ignored")
	assert.Equal(t, tick, w.Current())
}

func TestTick_TrailerFollowsTractorSameTick(t *testing.T) {
	w, events := newTestWorld(t, nil)
	tractor := spawn(t, w, EntitySpec{
		Name:      "tractor",
		Archetype: "tractor",
		Controls:  []ControlStep{{Thrust: 1, Yaw: 0.3}},
	})
	trailer := spawn(t, w, EntitySpec{Name: "trailer", Archetype: "trailer", Position: mgl64.Vec3{0, -7, 0}})
	require.NoError(t, w.Hitch(tractor.ID, trailer.ID, core.HPR{H: 15}))

	for i := 0; i < 120; i++ {
		w.Tick(1.0 / 60)
		want := w.Coupler(tractor.ID).TrailerWorldTransform(trailer)
		got := trailer.WorldTransform()
		require.InDelta(t, 0, got.Position.Sub(want.Position).Len(), 1e-9, "tick %d", i)
	}

	assert.Greater(t, tractor.WorldTransform().Position.Len(), 1.0, "tractor moved")
	assert.Equal(t, hitch.AttachedLocal, w.Coupler(tractor.ID).Mode())
	assert.Equal(t, core.DRNone, trailer.DRAlgorithm())
	require.Len(t, events.hitches(), 1)
	assert.Equal(t, core.HitchAttached, events.hitches()[0].Action)
	assert.Equal(t, 2*120, events.count(core.EventEntityState))
}

func TestTick_BodiedTrailerCoastsAfterDetach(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	tractor := spawn(t, w, EntitySpec{Name: "tractor", Archetype: "tractor", Controls: []ControlStep{{Thrust: 1}}})
	wagon := spawn(t, w, EntitySpec{Name: "wagon", Archetype: "wagon", Position: mgl64.Vec3{0, -7, 0}})
	require.NotNil(t, wagon.Body)
	require.NoError(t, w.Hitch(tractor.ID, wagon.ID, core.HPR{}))

	for i := 0; i < 120; i++ {
		w.Tick(1.0 / 60)
	}
	towSpeed := tractor.Velocity().Len()
	require.Greater(t, towSpeed, 1.0)
	assert.InDelta(t, 0, wagon.Velocity().Sub(tractor.Velocity()).Len(), 1e-9, "towed trailer reports the tractor's velocity")

	require.NoError(t, w.Unhitch(tractor.ID))
	before := wagon.WorldTransform().Position
	for i := 0; i < 60; i++ {
		w.Tick(1.0 / 60)
	}

	assert.Equal(t, core.DRVelocityOnly, wagon.DRAlgorithm())
	assert.InDelta(t, towSpeed, wagon.Velocity().Len(), 1e-6)
	assert.InDelta(t, towSpeed, wagon.WorldTransform().Position.Sub(before).Len(), 0.05, "trailer keeps rolling for one second")
}

func TestTick_RemoteBodiedTrailerBodyFollows(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	tractor := spawn(t, w, EntitySpec{Name: "tractor", Archetype: "tractor", Controls: []ControlStep{{Thrust: 1}}})
	tractor.Remote = true
	wagon := spawn(t, w, EntitySpec{Name: "wagon", Archetype: "wagon", Remote: true})
	require.NoError(t, w.Hitch(tractor.ID, wagon.ID, core.HPR{}))

	for i := 0; i < 30; i++ {
		w.Tick(1.0 / 60)
		require.InDelta(t, 0, wagon.Body.Transform().Position.Sub(wagon.WorldTransform().Position).Len(), 1e-9, "tick %d", i)
	}
	assert.Equal(t, hitch.AttachedRemoteDriven, w.Coupler(tractor.ID).Mode())
	assert.Same(t, tractor, wagon.Parent())
}

func TestTick_RemoteTrailerIsParented(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	tractor := spawn(t, w, EntitySpec{Name: "tractor", Archetype: "tractor"})
	trailer := spawn(t, w, EntitySpec{Name: "trailer", Archetype: "trailer", Remote: true})
	require.NoError(t, w.Hitch(tractor.ID, trailer.ID, core.HPR{}))

	w.Tick(0.05)
	assert.Equal(t, hitch.AttachedRemoteDriven, w.Coupler(tractor.ID).Mode())
	assert.Same(t, tractor, trailer.Parent())
}

func TestTick_CascadeDeleteSameTick(t *testing.T) {
	w, events := newTestWorld(t, nil)
	tractor := spawn(t, w, EntitySpec{Name: "tractor", Archetype: "tractor"})
	trailer := spawn(t, w, EntitySpec{Name: "trailer", Archetype: "trailer"})
	bystander := spawn(t, w, EntitySpec{Name: "crate", Archetype: "crate"})
	require.NoError(t, w.Hitch(tractor.ID, trailer.ID, core.HPR{}))
	w.Tick(0.05)

	require.True(t, w.Remove(tractor.ID))
	w.Tick(0.05)

	assert.False(t, tractor.Alive())
	assert.False(t, trailer.Alive())
	assert.True(t, bystander.Alive())
	assert.Nil(t, w.Coupler(tractor.ID))

	removals := events.removals()
	require.Len(t, removals, 2)
	assert.Equal(t, tractor.ID, removals[0].ID)
	assert.False(t, removals[0].Cascade)
	assert.Equal(t, trailer.ID, removals[1].ID)
	assert.True(t, removals[1].Cascade)
	assert.Equal(t, tractor.ID, removals[1].Cause)
	assert.Equal(t, uint64(2), removals[1].Tick)

	hitches := events.hitches()
	require.Len(t, hitches, 2)
	assert.Equal(t, core.HitchDetached, hitches[1].Action)
}

func TestTick_TrailerRemovalDetaches(t *testing.T) {
	w, events := newTestWorld(t, nil)
	tractor := spawn(t, w, EntitySpec{Name: "tractor", Archetype: "tractor"})
	trailer := spawn(t, w, EntitySpec{Name: "trailer", Archetype: "trailer"})
	require.NoError(t, w.Hitch(tractor.ID, trailer.ID, core.HPR{}))
	w.Tick(0.05)

	w.Remove(trailer.ID)
	w.Tick(0.05)

	assert.True(t, tractor.Alive())
	assert.False(t, w.Coupler(tractor.ID).Attached())
	assert.Equal(t, core.NilEntity, w.Coupler(tractor.ID).TrailerActorID())
	assert.Len(t, events.removals(), 1)
}

func TestTick_HoverSettlesAtClearance(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	s := spawn(t, w, EntitySpec{Name: "s1", Archetype: "skimmer", Position: mgl64.Vec3{0, 0, 2}})

	for i := 0; i < 900; i++ {
		w.Tick(1.0 / 60)
	}
	assert.InDelta(t, hover.DefaultConfig().GroundClearance, s.WorldTransform().Position.Z(), 0.05)
}

func TestTick_KinematicTuningApplies(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	e := spawn(t, w, EntitySpec{
		Name:      "slow",
		Archetype: "tractor",
		Controls:  []ControlStep{{Thrust: 1}},
		Tuning:    map[string]any{"MaxVel": "2"},
	})

	for i := 0; i < 600; i++ {
		w.Tick(1.0 / 60)
	}
	assert.LessOrEqual(t, e.Velocity().Len(), 2.0+1e-9)
	assert.Greater(t, e.Velocity().Len(), 1.0)
}

func TestSetControls(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	e := spawn(t, w, EntitySpec{Name: "t", Archetype: "tractor"})

	w.Tick(0.05)
	assert.Zero(t, e.WorldTransform().Position.Len())

	require.NoError(t, w.SetControls(e.ID, ControlStep{Thrust: 1}))
	for i := 0; i < 10; i++ {
		w.Tick(0.05)
	}
	assert.Greater(t, e.WorldTransform().Position.Y(), 0.0)

	assert.ErrorIs(t, w.SetControls(core.NewEntityID(), ControlStep{}), ErrUnknownEntity)
}

func blastTable(t *testing.T) *munition.Table {
	t.Helper()
	table, err := munition.NewTable([]munition.Damage{{
		Name:        "HE",
		DirectFire:  munition.Coefficients{Kill: 1},
		CutoffRange: 10,
		NewtonForce: 500,
	}})
	require.NoError(t, err)
	return table
}

func TestDetonate(t *testing.T) {
	w, events := newTestWorld(t, blastTable(t))
	near := spawn(t, w, EntitySpec{Name: "near", Archetype: "crate", Position: mgl64.Vec3{3, 0, 0}})
	spawn(t, w, EntitySpec{Name: "far", Archetype: "crate", Position: mgl64.Vec3{15, 0, 0}})

	damage, err := w.Detonate("he", mgl64.Vec3{}, mgl64.Vec3{0, 0, -1}, core.NilEntity, core.NilEntity)
	require.NoError(t, err)
	require.Len(t, damage, 1)

	d := damage[0]
	assert.Equal(t, near.ID, d.Target)
	assert.Equal(t, "HE", d.Munition)
	assert.InDelta(t, 3, d.Distance, 1e-12)
	assert.Equal(t, [5]float64{0, 0, 0, 0, 1}, d.Probabilities)
	assert.Equal(t, munition.SeverityKill.String(), d.Severity)
	assert.InDelta(t, 500, d.Force.X(), 1e-9)

	assert.Equal(t, 1, events.count(core.EventDetonation))
	assert.Equal(t, 1, events.count(core.EventDamage))

	w.Tick(0.1)
	assert.InDelta(t, 5, near.Velocity().X(), 1e-9, "force integrated over one step")

	_, err = w.Detonate("nuke", mgl64.Vec3{}, mgl64.Vec3{}, core.NilEntity, core.NilEntity)
	assert.ErrorIs(t, err, munition.ErrUnknownMunition)
}

func TestLoadScenario(t *testing.T) {
	w, events := newTestWorld(t, blastTable(t))
	err := w.LoadScenario(Scenario{
		Name: "convoy",
		Entities: []EntitySpec{
			{Name: "tractor", Archetype: "tractor", Controls: []ControlStep{{Thrust: 1}}},
			{Name: "trailer", Archetype: "trailer", Position: mgl64.Vec3{0, -7, 0}},
			{Name: "crate", Archetype: "crate", Position: mgl64.Vec3{50, 0, 0}},
		},
		Hitches:     []HitchSpec{{Tractor: "tractor", Trailer: "trailer", DetachAt: 0.25}},
		Detonations: []DetonationSpec{{At: 0.1, Munition: "HE", Point: mgl64.Vec3{50, 2, 0}, Target: "crate"}},
		Removals:    []RemovalSpec{{At: 0.5, Entity: "trailer"}},
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		w.Tick(0.05)
	}

	hitches := events.hitches()
	require.Len(t, hitches, 2)
	assert.Equal(t, core.HitchAttached, hitches[0].Action)
	assert.Equal(t, uint64(1), hitches[0].Tick)
	assert.Equal(t, core.HitchDetached, hitches[1].Action)

	assert.Equal(t, 1, events.count(core.EventDetonation))
	assert.Equal(t, 1, events.count(core.EventDamage))

	removals := events.removals()
	require.Len(t, removals, 1)
	assert.Nil(t, w.Registry().FindByName("trailer"))
	assert.NotNil(t, w.Registry().FindByName("tractor"))
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		sc   Scenario
		err  error
	}{
		{"unknown archetype", Scenario{Entities: []EntitySpec{{Name: "a", Archetype: "nope"}}}, ErrUnknownArchetype},
		{"hitch without coupler", Scenario{
			Entities: []EntitySpec{{Name: "a", Archetype: "crate"}, {Name: "b", Archetype: "trailer"}},
			Hitches:  []HitchSpec{{Tractor: "a", Trailer: "b"}},
		}, ErrNoCoupler},
		{"hitch unknown trailer", Scenario{
			Entities: []EntitySpec{{Name: "a", Archetype: "tractor"}},
			Hitches:  []HitchSpec{{Tractor: "a", Trailer: "ghost"}},
		}, ErrUnknownEntity},
		{"unknown munition", Scenario{Detonations: []DetonationSpec{{Munition: "nuke"}}}, munition.ErrUnknownMunition},
		{"removal of unknown entity", Scenario{Removals: []RemovalSpec{{Entity: "ghost"}}}, ErrUnknownEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWorld(t, blastTable(t))
			assert.ErrorIs(t, w.LoadScenario(tt.sc), tt.err)
		})
	}
}

func TestLoadScenario_HeightFieldGround(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	require.NoError(t, w.LoadScenario(Scenario{
		Name: "ridge",
		Ground: GroundSpec{
			OriginX: -50, OriginY: -50, Spacing: 100, Cols: 2,
			Heights: []float64{3, 3, 3, 3},
		},
		Entities: []EntitySpec{{Name: "s1", Archetype: "skimmer", Position: mgl64.Vec3{0, 0, 5}}},
	}))
	s := w.Registry().FindByName("s1")
	require.NotNil(t, s)

	for i := 0; i < 900; i++ {
		w.Tick(1.0 / 60)
	}
	assert.InDelta(t, 3+hover.DefaultConfig().GroundClearance, s.WorldTransform().Position.Z(), 0.05)
}

func TestLoadScenario_BadGround(t *testing.T) {
	for name, g := range map[string]GroundSpec{
		"no spacing":    {Cols: 2, Heights: []float64{0, 0, 0, 0}},
		"ragged":        {Spacing: 1, Cols: 2, Heights: []float64{0, 0, 0}},
		"single row":    {Spacing: 1, Cols: 3, Heights: []float64{0, 0, 0}},
		"single column": {Spacing: 1, Cols: 1, Heights: []float64{0, 0}},
	} {
		t.Run(name, func(t *testing.T) {
			w, _ := newTestWorld(t, nil)
			assert.ErrorContains(t, w.LoadScenario(Scenario{Name: "bad", Ground: g}), "ground")
		})
	}
}

func TestRun(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	n, err := w.Run(context.Background(), 10, 0.02, false)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, uint64(10), w.Current().Number)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = w.Run(ctx, 10, 0.02, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)

	_, err = w.Run(context.Background(), 1, 0, false)
	assert.Error(t, err)
}

func TestControlTrack(t *testing.T) {
	track := newControlTrack([]ControlStep{{At: 1, Thrust: 0.5}, {At: 0, Thrust: 1}, {At: 2, Yaw: 1}})

	assert.Equal(t, 1.0, track.at(0).Thrust)
	assert.Equal(t, 1.0, track.at(0.5).Thrust)
	assert.Equal(t, 0.5, track.at(1).Thrust)

	track.override(ControlStep{Lift: 1})
	assert.Equal(t, 1.0, track.at(1.5).Lift)
	assert.Equal(t, 1.0, track.at(2).Yaw)
}
