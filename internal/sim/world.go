// Package sim hosts the locomotion models, hitches and munitions in a
// single-threaded fixed-step world.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/entity"
	"github.com/simcore/locomotion/internal/hitch"
	"github.com/simcore/locomotion/internal/hover"
	"github.com/simcore/locomotion/internal/kinematic"
	"github.com/simcore/locomotion/internal/munition"
	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/internal/vmath"
	"github.com/simcore/locomotion/pkg/core"
)

// timeEpsilon absorbs float drift when comparing scheduled times.
const timeEpsilon = 1e-9

var (
	ErrUnknownArchetype = errors.New("unknown archetype")
	ErrUnknownEntity    = errors.New("unknown entity")
	ErrNoCoupler        = errors.New("entity has no hitch")
)

// Options configures a World.
type Options struct {
	Archetypes []Archetype
	Munitions  *munition.Table
	// Ground defaults to a flat plane at the scenario's ground height.
	Ground physics.GroundProbe
	Events hitch.Publisher
	Logger *slog.Logger

	// Dt passed to Tick is clamped to [MinTick, MaxTick].
	MinTick float64
	MaxTick float64
	Seed    int64
	Start   time.Time
}

type action struct {
	at   float64
	seq  int
	name string
	run  func() error
}

// World owns every entity and advances them one tick at a time.
type World struct {
	log        *slog.Logger
	registry   *entity.Registry
	events     hitch.Publisher
	munitions  *munition.Table
	ground     physics.GroundProbe
	archetypes map[string]Archetype
	rng        *rand.Rand
	metrics    *metrics

	minTick float64
	maxTick float64

	drivers  map[core.EntityID]driver
	bodies   map[core.EntityID]*physics.PointMass
	couplers map[core.EntityID]*hitch.Coupler
	controls map[core.EntityID]*controlTrack

	schedule []action
	seq      int

	start   time.Time
	elapsed float64
	tick    core.Tick
}

// NewWorld validates the archetypes and creates an empty world.
func NewWorld(opts Options) (*World, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.MinTick <= 0 {
		opts.MinTick = 0.001
	}
	if opts.MaxTick < opts.MinTick {
		opts.MaxTick = 0.1
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC()
	}

	archetypes := make(map[string]Archetype, len(opts.Archetypes))
	for _, a := range opts.Archetypes {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(a.Name)
		if _, dup := archetypes[key]; dup {
			return nil, fmt.Errorf("duplicate archetype %q", a.Name)
		}
		archetypes[key] = a
	}

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("create sim metrics: %w", err)
	}

	seed := uint64(opts.Seed)
	return &World{
		log:        log,
		registry:   entity.NewRegistry(),
		events:     opts.Events,
		munitions:  opts.Munitions,
		ground:     opts.Ground,
		archetypes: archetypes,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		metrics:    m,
		minTick:    opts.MinTick,
		maxTick:    opts.MaxTick,
		drivers:    make(map[core.EntityID]driver),
		bodies:     make(map[core.EntityID]*physics.PointMass),
		couplers:   make(map[core.EntityID]*hitch.Coupler),
		controls:   make(map[core.EntityID]*controlTrack),
		start:      opts.Start,
	}, nil
}

// Registry exposes the entity registry.
func (w *World) Registry() *entity.Registry {
	return w.registry
}

// Coupler returns the hitch owned by id, or nil.
func (w *World) Coupler(id core.EntityID) *hitch.Coupler {
	return w.couplers[id]
}

// Current returns the last completed tick.
func (w *World) Current() core.Tick {
	return w.tick
}

// Elapsed is the simulated time in seconds.
func (w *World) Elapsed() float64 {
	return w.elapsed
}

func (w *World) clock(seconds float64) time.Time {
	return w.start.Add(time.Duration(seconds * float64(time.Second)))
}

func (w *World) archetype(name string) (Archetype, bool) {
	a, ok := w.archetypes[strings.ToLower(name)]
	return a, ok
}

func (w *World) groundProbe() physics.GroundProbe {
	if w.ground == nil {
		w.ground = physics.FlatGround{Group: physics.GroupTerrain}
	}
	return w.ground
}

func (w *World) publish(ev core.Event) {
	if w.events == nil {
		return
	}
	if err := w.events.Dispatch(ev); err != nil {
		w.log.Warn("event not delivered", "kind", ev.Kind(), "error", err)
	}
}

// Spawn creates an entity from its archetype and registers it.
func (w *World) Spawn(spec EntitySpec) (*entity.Entity, error) {
	if spec.Name == "" {
		return nil, errors.New("entity needs a name")
	}
	if w.registry.FindByName(spec.Name) != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrDuplicateEntity, spec.Name)
	}
	a, ok := w.archetype(spec.Archetype)
	if !ok {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnknownArchetype, spec.Archetype, spec.Name)
	}
	kind, err := a.EntityKind()
	if err != nil {
		return nil, err
	}

	pose := core.NewTransform(spec.Position, spec.HPR)
	e := entity.New(spec.Name, kind, pose)
	e.Archetype = a.Name
	e.Remote = spec.Remote
	e.JoinTick = w.tick.Number
	e.JoinTime = w.clock(w.elapsed)
	for name, n := range a.Nodes {
		e.SetNode(name, core.NewTransform(n.Position, n.HPR))
	}
	if a.DeadReckoning != "" {
		e.SetDRAlgorithm(core.ParseDRAlgorithm(a.DeadReckoning))
	}

	log := w.log.With("entity", spec.Name)
	kindOfDriver := DriverType(strings.ToLower(string(a.Driver)))

	var body *physics.PointMass
	if a.Mass > 0 && kindOfDriver != DriverKinematic {
		body = physics.NewPointMass(a.Mass, pose)
		body.LinearDamping = a.LinearDamping
		body.SetLinearVelocity(spec.Velocity)
		if kindOfDriver == DriverNone {
			// no contact solver: undriven bodies rest where they are placed
			body.Gravity = mgl64.Vec3{}
		}
		e.Body = body
	} else {
		e.SetVelocity(spec.Velocity)
	}

	var rb physics.RigidBody
	if body != nil {
		rb = body
	}

	var d driver
	switch kindOfDriver {
	case DriverHover:
		d = &hoverDriver{model: hover.New(rb, w.groundProbe(), a.Hover, log)}
	case DriverKinematic, DriverHybrid:
		goal := a.Kinematic
		d = &kinematicDriver{integrator: kinematic.NewIntegrator(&goal, pose, rb, log)}
	}
	if len(spec.Tuning) > 0 {
		if d == nil {
			return nil, fmt.Errorf("entity %s: tuning given but archetype %q has no driver", spec.Name, a.Name)
		}
		if err := d.properties().Apply(spec.Tuning); err != nil {
			return nil, fmt.Errorf("entity %s tuning: %w", spec.Name, err)
		}
	}

	var coupler *hitch.Coupler
	if a.Hitch != nil {
		coupler = hitch.New(e, w.registry, *a.Hitch, w.events, log)
		if len(spec.HitchProperties) > 0 {
			if err := coupler.Properties().Apply(spec.HitchProperties); err != nil {
				return nil, fmt.Errorf("entity %s hitch: %w", spec.Name, err)
			}
		}
	} else if len(spec.HitchProperties) > 0 {
		return nil, fmt.Errorf("entity %s: %w", spec.Name, ErrNoCoupler)
	}

	if err := w.registry.Add(e); err != nil {
		return nil, err
	}
	if d != nil {
		w.drivers[e.ID] = d
	}
	if body != nil {
		w.bodies[e.ID] = body
	}
	if coupler != nil {
		w.couplers[e.ID] = coupler
	}
	w.controls[e.ID] = newControlTrack(spec.Controls)

	log.Debug("entity spawned", "id", e.ID, "archetype", a.Name, "driver", kindOfDriver)
	w.publish(core.EntityAddedEvent{Record: e.Record()})
	return e, nil
}

// SetControls overrides the controls of id until its next scheduled step.
func (w *World) SetControls(id core.EntityID, c ControlStep) error {
	t, ok := w.controls[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	t.override(c)
	return nil
}

// Hitch couples trailer to tractor. The coupling takes effect during the
// tractor's next coupler update.
func (w *World) Hitch(tractor, trailer core.EntityID, hpr core.HPR) error {
	c := w.couplers[tractor]
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoCoupler, tractor)
	}
	if !w.registry.IsAlive(trailer) {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, trailer)
	}
	c.SetCurrentHitchRotHPR(hpr)
	return c.SetTrailerActorID(trailer)
}

// Unhitch releases whatever tractor is towing.
func (w *World) Unhitch(tractor core.EntityID) error {
	c := w.couplers[tractor]
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoCoupler, tractor)
	}
	c.Detach()
	return nil
}

// Remove queues id for deletion at the end of the current or next tick.
func (w *World) Remove(id core.EntityID) bool {
	return w.registry.RequestDelete(id, core.NilEntity)
}

// Detonate evaluates munition at point against every live entity. Targets
// within the cutoff range receive the blast force on their body and a
// damage roll. target marks a direct hit and may be NilEntity.
func (w *World) Detonate(name string, point, trajectory mgl64.Vec3, shooter, target core.EntityID) ([]core.DamageEvent, error) {
	d, err := w.munitions.Get(name)
	if err != nil {
		return nil, err
	}

	w.publish(core.DetonationEvent{
		Time:       w.tick.Time,
		Tick:       w.tick.Number,
		Munition:   d.Name,
		Shooter:    shooter,
		Point:      point,
		Trajectory: trajectory,
	})

	var out []core.DamageEvent
	for _, e := range w.registry.All() {
		pos := e.WorldTransform().Position
		dist := pos.Sub(point).Len()
		if !d.InRange(dist) {
			continue
		}
		p := d.Probabilities(pos, point, trajectory, e.ID == target)
		force := d.Force(pos, point, trajectory)
		if e.Body != nil && force.Len() > 0 {
			e.Body.ApplyForce(force)
		}
		ev := core.DamageEvent{
			Time:          w.tick.Time,
			Tick:          w.tick.Number,
			Munition:      d.Name,
			Target:        e.ID,
			Distance:      dist,
			Force:         force,
			Probabilities: p.Values(),
			Absolute:      p.Absolute,
			Severity:      p.Select(w.rng.Float64()).String(),
		}
		w.publish(ev)
		out = append(out, ev)
	}
	w.log.Debug("detonation evaluated", "munition", d.Name, "targets", len(out))
	return out, nil
}

// At schedules fn to run at the start of the first tick whose start time is
// at or after seconds.
func (w *World) At(seconds float64, name string, fn func() error) {
	w.seq++
	w.schedule = append(w.schedule, action{at: seconds, seq: w.seq, name: name, run: fn})
	sort.SliceStable(w.schedule, func(i, j int) bool {
		if w.schedule[i].at != w.schedule[j].at {
			return w.schedule[i].at < w.schedule[j].at
		}
		return w.schedule[i].seq < w.schedule[j].seq
	})
}

func (w *World) runDue() {
	for len(w.schedule) > 0 && w.schedule[0].at <= w.elapsed+timeEpsilon {
		a := w.schedule[0]
		w.schedule = w.schedule[1:]
		if err := a.run(); err != nil {
			w.log.Warn("scheduled action failed", "action", a.name, "error", err)
		}
	}
}

// Tick advances the world by dt seconds: scheduled actions, drivers, body
// integration, couplers, deletions with cascades, then state publication.
func (w *World) Tick(dt float64) core.Tick {
	began := time.Now()
	if dt <= 0 {
		w.log.Warn("ignoring non-positive tick", "dt", dt)
		return w.tick
	}
	dt = vmath.Clamp(dt, w.minTick, w.maxTick)
	end := w.elapsed + dt
	w.tick = core.Tick{Number: w.tick.Number + 1, Time: w.clock(end), DT: dt}

	w.runDue()

	for _, e := range w.registry.All() {
		if d := w.drivers[e.ID]; d != nil {
			d.drive(e, dt, w.controls[e.ID].at(w.elapsed))
		}
	}

	for _, e := range w.registry.All() {
		if b := w.bodies[e.ID]; b != nil {
			b.Step(dt)
			e.SyncFromBody()
			continue
		}
		if _, driven := w.drivers[e.ID]; !driven {
			e.DeadReckon(dt)
		}
	}

	for _, e := range w.registry.All() {
		if c := w.couplers[e.ID]; c != nil {
			c.Update(w.tick)
		}
	}

	removed := w.processDeletions()

	live := w.registry.All()
	if w.events != nil {
		for _, e := range live {
			w.publish(core.EntityStateEvent{State: e.State(w.tick.Number, w.tick.Time)})
		}
	}

	w.elapsed = end
	w.metrics.recordTick(context.Background(), time.Since(began), len(live), len(removed))
	return w.tick
}

func (w *World) processDeletions() []core.EntityID {
	if !w.registry.PendingDeletes() {
		return nil
	}
	return w.registry.ProcessDeletions(func(e *entity.Entity, cause core.EntityID) {
		if c := w.couplers[e.ID]; c != nil {
			c.OnOwnerRemoved()
		}
		for _, other := range w.registry.All() {
			if c := w.couplers[other.ID]; c != nil && other.ID != e.ID {
				c.OnEntityRemoved(e.ID)
			}
		}
		delete(w.drivers, e.ID)
		delete(w.bodies, e.ID)
		delete(w.couplers, e.ID)
		delete(w.controls, e.ID)

		w.log.Info("entity removed", "entity", e.Name, "cascade", cause != core.NilEntity)
		w.publish(core.EntityRemovedEvent{
			Time:    w.tick.Time,
			Tick:    w.tick.Number,
			ID:      e.ID,
			Cascade: cause != core.NilEntity,
			Cause:   cause,
		})
	})
}

// Run executes ticks fixed steps of dt. With realtime set each tick waits
// for the wall clock. It returns the number of ticks executed.
func (w *World) Run(ctx context.Context, ticks int, dt float64, realtime bool) (int, error) {
	if dt <= 0 {
		return 0, fmt.Errorf("tick length must be positive, got %v", dt)
	}
	var pace *time.Ticker
	if realtime {
		pace = time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer pace.Stop()
	}
	for n := 0; n < ticks; n++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		w.Tick(dt)
		if pace != nil {
			select {
			case <-ctx.Done():
				return n + 1, ctx.Err()
			case <-pace.C:
			}
		}
	}
	return ticks, nil
}
