// Package influx implements storage.Backend as a time-series sink: every state
// sample and event becomes one InfluxDB point.
package influx

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/geo"
	"github.com/simcore/locomotion/pkg/core"
)

// Measurement names.
const (
	MeasurementRun         = "run"
	MeasurementEntityState = "entity_state"
	MeasurementDetonation  = "detonation"
	MeasurementDamage      = "damage"
	MeasurementHitch       = "hitch"
	MeasurementRemoval     = "entity_removed"
)

var severityFields = [5]string{"p_none", "p_mobility", "p_firepower", "p_mobility_firepower", "p_kill"}

// Backend writes run data as InfluxDB points.
type Backend struct {
	manager *Manager

	mu        sync.RWMutex
	run       *core.Run
	runTag    string
	projector *geo.Projector
	names     map[core.EntityID]core.EntityRecord
	nextID    uint
}

// New creates the backend. Nothing is contacted before Init.
func New(log zerolog.Logger, cfg config.InfluxConfig) *Backend {
	return &Backend{
		manager: NewManager(log, cfg),
		names:   make(map[core.EntityID]core.EntityRecord),
	}
}

// Manager exposes the underlying connection manager.
func (b *Backend) Manager() *Manager {
	return b.manager
}

// Init connects to the server or opens the backup file.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.manager.Connect(ctx)
}

// Close flushes and disconnects.
func (b *Backend) Close() error {
	return b.manager.Close()
}

// StartRun tags all following points with the run.
func (b *Backend) StartRun(run *core.Run) error {
	projector, err := geo.NewProjector(run.OriginLongitude, run.OriginLatitude)
	if err != nil {
		return fmt.Errorf("invalid run origin: %w", err)
	}

	b.mu.Lock()
	b.nextID++
	if run.ID == 0 {
		run.ID = b.nextID
	}
	b.run = run
	b.runTag = strconv.FormatUint(uint64(run.ID), 10)
	b.projector = projector
	b.names = make(map[core.EntityID]core.EntityRecord)
	b.mu.Unlock()

	p := influxdb2_write.NewPointWithMeasurement(MeasurementRun).
		AddTag("run", b.runTag).
		AddTag("scenario", run.Scenario).
		AddTag("state", "started").
		AddField("tick_rate", run.TickRate).
		AddField("origin_lon", run.OriginLongitude).
		AddField("origin_lat", run.OriginLatitude).
		SetTime(run.StartTime)
	return b.manager.WritePoint(p)
}

// EndRun writes the closing run point and flushes.
func (b *Backend) EndRun(run *core.Run) error {
	tag, _, err := b.current()
	if err != nil {
		return err
	}
	end := run.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	p := influxdb2_write.NewPointWithMeasurement(MeasurementRun).
		AddTag("run", tag).
		AddTag("scenario", run.Scenario).
		AddTag("state", "ended").
		AddField("ticks", run.Ticks).
		AddField("duration_s", end.Sub(run.StartTime).Seconds()).
		SetTime(end)
	if err := b.manager.WritePoint(p); err != nil {
		return err
	}
	return b.manager.Flush()
}

func (b *Backend) current() (string, *geo.Projector, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.run == nil {
		return "", nil, fmt.Errorf("no run started")
	}
	return b.runTag, b.projector, nil
}

// AddEntity remembers the entity so later points carry its name and kind.
func (b *Backend) AddEntity(e *core.EntityRecord) error {
	if _, _, err := b.current(); err != nil {
		return err
	}
	b.mu.Lock()
	b.names[e.ID] = *e
	b.mu.Unlock()
	return nil
}

func (b *Backend) entityTags(p *influxdb2_write.Point, id core.EntityID) *influxdb2_write.Point {
	b.mu.RLock()
	rec, ok := b.names[id]
	b.mu.RUnlock()
	p.AddTag("entity", id.String())
	if ok {
		p.AddTag("name", rec.Name).AddTag("kind", rec.Kind)
	}
	return p
}

// RecordEntityState writes one pose sample.
func (b *Backend) RecordEntityState(s *core.EntityState) error {
	tag, projector, err := b.current()
	if err != nil {
		return err
	}
	lon, lat := projector.LonLat(s.Position)

	p := influxdb2_write.NewPointWithMeasurement(MeasurementEntityState).
		AddTag("run", tag).
		AddTag("dr", s.DR.String())
	b.entityTags(p, s.ID)
	if s.Parent != core.NilEntity {
		p.AddTag("parent", s.Parent.String())
	}
	p.AddField("tick", s.Tick).
		AddField("x", s.Position.X()).
		AddField("y", s.Position.Y()).
		AddField("z", s.Position.Z()).
		AddField("lon", lon).
		AddField("lat", lat).
		AddField("heading", s.HPR.H).
		AddField("pitch", s.HPR.P).
		AddField("roll", s.HPR.R).
		AddField("speed", s.Velocity.Len()).
		SetTime(s.Time)
	return b.manager.WritePoint(p)
}

// RecordDetonation writes a detonation point.
func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	tag, projector, err := b.current()
	if err != nil {
		return err
	}
	lon, lat := projector.LonLat(e.Point)

	p := influxdb2_write.NewPointWithMeasurement(MeasurementDetonation).
		AddTag("run", tag).
		AddTag("munition", e.Munition)
	if e.Shooter != core.NilEntity {
		p.AddTag("shooter", e.Shooter.String())
	}
	p.AddField("tick", e.Tick).
		AddField("x", e.Point.X()).
		AddField("y", e.Point.Y()).
		AddField("z", e.Point.Z()).
		AddField("lon", lon).
		AddField("lat", lat).
		SetTime(e.Time)
	return b.manager.WritePoint(p)
}

// RecordDamage writes a damage point with one field per severity.
func (b *Backend) RecordDamage(e *core.DamageEvent) error {
	tag, _, err := b.current()
	if err != nil {
		return err
	}
	p := influxdb2_write.NewPointWithMeasurement(MeasurementDamage).
		AddTag("run", tag).
		AddTag("munition", e.Munition).
		AddTag("severity", e.Severity)
	b.entityTags(p, e.Target)
	p.AddField("tick", e.Tick).
		AddField("distance", e.Distance).
		AddField("absolute", e.Absolute).
		AddField("force", e.Force.Len())
	for i, name := range severityFields {
		p.AddField(name, e.Probabilities[i])
	}
	p.SetTime(e.Time)
	return b.manager.WritePoint(p)
}

// RecordHitchEvent writes a hitch point.
func (b *Backend) RecordHitchEvent(e *core.HitchEvent) error {
	tag, _, err := b.current()
	if err != nil {
		return err
	}
	p := influxdb2_write.NewPointWithMeasurement(MeasurementHitch).
		AddTag("run", tag).
		AddTag("action", e.Action.String()).
		AddTag("tractor", e.Tractor.String()).
		AddTag("trailer", e.Trailer.String()).
		AddTag("mode", e.Mode).
		AddField("tick", e.Tick).
		SetTime(e.Time)
	return b.manager.WritePoint(p)
}

// RecordRemoval writes a removal point.
func (b *Backend) RecordRemoval(e *core.EntityRemovedEvent) error {
	tag, _, err := b.current()
	if err != nil {
		return err
	}
	p := influxdb2_write.NewPointWithMeasurement(MeasurementRemoval).
		AddTag("run", tag)
	b.entityTags(p, e.ID)
	if e.Cause != core.NilEntity {
		p.AddTag("cause", e.Cause.String())
	}
	p.AddField("tick", e.Tick).
		AddField("cascade", e.Cascade).
		SetTime(e.Time)
	return b.manager.WritePoint(p)
}
