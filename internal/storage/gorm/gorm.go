// Package gormstorage implements the storage.Backend interface on top of GORM
// with internal queues and a background DB writer goroutine. The sqlite and
// postgres backends wrap it.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simcore/locomotion/internal/database"
	"github.com/simcore/locomotion/internal/geo"
	"github.com/simcore/locomotion/internal/model"
	"github.com/simcore/locomotion/internal/queue"
	"github.com/simcore/locomotion/pkg/core"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 5000
)

var (
	// ErrNoDB is returned by Init when no connection was injected.
	ErrNoDB = errors.New("no database connection")
	// ErrNoRun is returned by record calls made before StartRun.
	ErrNoRun = errors.New("no run started")
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	// FlushInterval is how often queued rows are written. Defaults to 2s.
	FlushInterval time.Duration
	// BatchSize caps the rows written per insert. Defaults to 5000.
	BatchSize int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Entities    *queue.Queue[model.Entity]
	States      *queue.Queue[model.EntityState]
	Detonations *queue.Queue[model.Detonation]
	Damages     *queue.Queue[model.Damage]
	Hitches     *queue.Queue[model.HitchEvent]
	Removals    *queue.Queue[model.Removal]
}

func newQueues() *queues {
	return &queues{
		Entities:    queue.New[model.Entity](),
		States:      queue.New[model.EntityState](),
		Detonations: queue.New[model.Detonation](),
		Damages:     queue.New[model.Damage](),
		Hitches:     queue.New[model.HitchEvent](),
		Removals:    queue.New[model.Removal](),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	runID     atomic.Uint64
	projector atomic.Pointer[geo.Projector]
	lastWrite atomic.Int64

	// writeMu serializes flushes between the writer goroutine and EndRun.
	writeMu  sync.Mutex
	stopChan chan struct{}
	done     sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps:   deps,
		log:    log.With("component", "storage", "dialect", dialect(deps.DB)),
		queues: newQueues(),
	}
}

func dialect(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	return db.Dialector.Name()
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if err := database.Setup(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.log.Info("Database setup complete")

	b.stopChan = make(chan struct{})
	b.done.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.done.Wait()
	return b.Flush()
}

// StartRun inserts the run row and makes it the target of later records.
func (b *Backend) StartRun(run *core.Run) error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	projector, err := geo.NewProjector(run.OriginLongitude, run.OriginLatitude)
	if err != nil {
		return fmt.Errorf("invalid run origin: %w", err)
	}

	row := model.Run{
		Name:            run.Name,
		Scenario:        run.Scenario,
		StartTime:       run.StartTime,
		TickRate:        run.TickRate,
		OriginLongitude: run.OriginLongitude,
		OriginLatitude:  run.OriginLatitude,
		Version:         run.Version,
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.ID = row.ID
	b.projector.Store(projector)
	b.runID.Store(uint64(row.ID))
	b.log.Info("Run started", "runId", row.ID, "scenario", run.Scenario)
	return nil
}

// EndRun flushes pending rows and stamps the end time and tick count.
func (b *Backend) EndRun(run *core.Run) error {
	id := uint(b.runID.Load())
	if id == 0 {
		return ErrNoRun
	}
	if err := b.Flush(); err != nil {
		return err
	}

	err := b.deps.DB.Model(&model.Run{}).Where("id = ?", id).Updates(map[string]any{
		"end_time": sql.NullTime{Time: run.EndTime, Valid: !run.EndTime.IsZero()},
		"ticks":    run.Ticks,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", id, err)
	}
	b.log.Info("Run ended", "runId", id, "ticks", run.Ticks)
	return nil
}

// current returns the active run id and projector.
func (b *Backend) current() (uint, *geo.Projector, error) {
	id := uint(b.runID.Load())
	p := b.projector.Load()
	if id == 0 || p == nil {
		return 0, nil, ErrNoRun
	}
	return id, p, nil
}

// AddEntity queues the entity row.
func (b *Backend) AddEntity(e *core.EntityRecord) error {
	runID, _, err := b.current()
	if err != nil {
		return err
	}
	b.queues.Entities.Push(model.Entity{
		RunID:     runID,
		ID:        e.ID,
		Name:      e.Name,
		Kind:      e.Kind,
		Archetype: e.Archetype,
		Remote:    e.Remote,
		JoinTime:  e.JoinTime,
		JoinTick:  e.JoinTick,
	})
	return nil
}

// RecordEntityState converts and queues a pose sample.
func (b *Backend) RecordEntityState(s *core.EntityState) error {
	runID, p, err := b.current()
	if err != nil {
		return err
	}
	b.queues.States.Push(model.EntityState{
		Time:      s.Time,
		RunID:     runID,
		Tick:      s.Tick,
		EntityID:  s.ID,
		ParentID:  optionalID(s.Parent),
		Position:  model.NewPoint(p.Point(s.Position)),
		LocalX:    s.Position.X(),
		LocalY:    s.Position.Y(),
		LocalZ:    s.Position.Z(),
		Heading:   s.HPR.H,
		Pitch:     s.HPR.P,
		Roll:      s.HPR.R,
		Velocity:  model.NewVec3(s.Velocity.X(), s.Velocity.Y(), s.Velocity.Z()),
		Speed:     s.Velocity.Len(),
		Algorithm: s.DR.String(),
	})
	return nil
}

// RecordDetonation converts and queues a detonation.
func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	runID, p, err := b.current()
	if err != nil {
		return err
	}
	b.queues.Detonations.Push(model.Detonation{
		Time:       e.Time,
		RunID:      runID,
		Tick:       e.Tick,
		Munition:   e.Munition,
		ShooterID:  optionalID(e.Shooter),
		Position:   model.NewPoint(p.Point(e.Point)),
		Trajectory: model.NewVec3(e.Trajectory.X(), e.Trajectory.Y(), e.Trajectory.Z()),
	})
	return nil
}

// RecordDamage converts and queues a damage evaluation.
func (b *Backend) RecordDamage(e *core.DamageEvent) error {
	runID, _, err := b.current()
	if err != nil {
		return err
	}
	b.queues.Damages.Push(model.Damage{
		Time:          e.Time,
		RunID:         runID,
		Tick:          e.Tick,
		Munition:      e.Munition,
		TargetID:      e.Target,
		Distance:      e.Distance,
		Force:         model.NewVec3(e.Force.X(), e.Force.Y(), e.Force.Z()),
		Probabilities: model.NewSeverities(e.Probabilities),
		Absolute:      e.Absolute,
		Severity:      e.Severity,
	})
	return nil
}

// RecordHitchEvent converts and queues a hitch change.
func (b *Backend) RecordHitchEvent(e *core.HitchEvent) error {
	runID, _, err := b.current()
	if err != nil {
		return err
	}
	b.queues.Hitches.Push(model.HitchEvent{
		Time:      e.Time,
		RunID:     runID,
		Tick:      e.Tick,
		Action:    e.Action.String(),
		TractorID: e.Tractor,
		TrailerID: e.Trailer,
		Mode:      e.Mode,
	})
	return nil
}

// RecordRemoval converts and queues an entity removal.
func (b *Backend) RecordRemoval(e *core.EntityRemovedEvent) error {
	runID, _, err := b.current()
	if err != nil {
		return err
	}
	b.queues.Removals.Push(model.Removal{
		Time:     e.Time,
		RunID:    runID,
		Tick:     e.Tick,
		EntityID: e.ID,
		Cascade:  e.Cascade,
		CauseID:  optionalID(e.Cause),
	})
	return nil
}

// Pending returns the number of queued rows not yet written.
func (b *Backend) Pending() int {
	q := b.queues
	return q.Entities.Len() + q.States.Len() + q.Detonations.Len() +
		q.Damages.Len() + q.Hitches.Len() + q.Removals.Len()
}

// GetLastDBWriteDuration returns the duration of the last flush.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush writes every queued row. Rows of a failed batch are requeued.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	db, size := b.deps.DB, b.deps.BatchSize
	err := errors.Join(
		writeQueue(db, b.queues.Entities, size),
		writeQueue(db, b.queues.States, size),
		writeQueue(db, b.queues.Detonations, size),
		writeQueue(db, b.queues.Damages, size),
		writeQueue(db, b.queues.Hitches, size),
		writeQueue(db, b.queues.Removals, size),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// writeQueue drains q in batches of at most size rows, one transaction per batch.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], size int) error {
	for !q.Empty() {
		items := q.Take(size)
		if len(items) == 0 {
			return nil
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Omit(clause.Associations).Create(&items).Error
		})
		if err != nil {
			q.Requeue(items...)
			var zero T
			return fmt.Errorf("error creating %T rows: %w", zero, err)
		}
	}
	return nil
}

// writeLoop periodically drains queues into the DB.
func (b *Backend) writeLoop() {
	defer b.done.Done()
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error("DB write failed", "error", err)
			}
		}
	}
}

func optionalID(id core.EntityID) *core.EntityID {
	if id == core.NilEntity {
		return nil
	}
	return &id
}
