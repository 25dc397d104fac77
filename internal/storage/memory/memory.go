// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/geo"
	"github.com/simcore/locomotion/pkg/core"
)

// ErrNoRun is returned by EndRun when StartRun was never called.
var ErrNoRun = errors.New("no run started")

// EntityRecord groups an entity with all its time-series data
type EntityRecord struct {
	Entity  core.EntityRecord
	States  []core.EntityState
	Removed *core.EntityRemovedEvent
}

// Backend stores run data in memory and exports it to JSON when the run ends
type Backend struct {
	cfg       config.MemoryConfig
	run       *core.Run
	projector *geo.Projector

	entities map[core.EntityID]*EntityRecord
	order    []core.EntityID

	detonations []core.DetonationEvent
	damages     []core.DamageEvent
	hitches     []core.HitchEvent
	// removals of entities that were never registered
	orphanRemovals []core.EntityRemovedEvent

	lastExportPath string
	idCounter      uint
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		entities: make(map[core.EntityID]*EntityRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run, discarding anything recorded before.
func (b *Backend) StartRun(run *core.Run) error {
	projector, err := geo.NewProjector(run.OriginLongitude, run.OriginLatitude)
	if err != nil {
		return fmt.Errorf("invalid run origin: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	if run.ID == 0 {
		run.ID = b.idCounter
	}
	b.run = run
	b.projector = projector
	b.entities = make(map[core.EntityID]*EntityRecord)
	b.order = nil
	b.detonations = nil
	b.damages = nil
	b.hitches = nil
	b.orphanRemovals = nil
	b.lastExportPath = ""
	return nil
}

// EndRun exports the recorded run.
func (b *Backend) EndRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	if run != nil {
		b.run.EndTime = run.EndTime
		b.run.Ticks = run.Ticks
	}
	return b.exportJSON()
}

// AddEntity registers an entity. Registering the same id twice keeps the first record.
func (b *Backend) AddEntity(e *core.EntityRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entities[e.ID]; ok {
		return nil
	}
	b.entities[e.ID] = &EntityRecord{Entity: *e}
	b.order = append(b.order, e.ID)
	return nil
}

// GetEntity retrieves an entity record by id
func (b *Backend) GetEntity(id core.EntityID) (*EntityRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.entities[id]
	return r, ok
}

// RecordEntityState appends a pose sample to its entity.
func (b *Backend) RecordEntityState(s *core.EntityState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.entities[s.ID]
	if !ok {
		return fmt.Errorf("state for unknown entity %s", s.ID)
	}
	r.States = append(r.States, *s)
	return nil
}

// RecordDetonation records a detonation event
func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detonations = append(b.detonations, *e)
	return nil
}

// RecordDamage records a damage event
func (b *Backend) RecordDamage(e *core.DamageEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.damages = append(b.damages, *e)
	return nil
}

// RecordHitchEvent records a hitch change
func (b *Backend) RecordHitchEvent(e *core.HitchEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hitches = append(b.hitches, *e)
	return nil
}

// RecordRemoval marks the entity as removed.
func (b *Backend) RecordRemoval(e *core.EntityRemovedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.entities[e.ID]
	if !ok {
		b.orphanRemovals = append(b.orphanRemovals, *e)
		return nil
	}
	removed := *e
	r.Removed = &removed
	return nil
}

// ExportedFilePath returns the path of the last export, empty before EndRun.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
