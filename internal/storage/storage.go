// internal/storage/storage.go
package storage

import "github.com/simcore/locomotion/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management. StartRun assigns run.ID; EndRun receives the run
	// with EndTime and Ticks filled in.
	StartRun(run *core.Run) error
	EndRun(run *core.Run) error

	// Entity registration
	AddEntity(e *core.EntityRecord) error

	// State recording
	RecordEntityState(s *core.EntityState) error

	// Event recording
	RecordDetonation(e *core.DetonationEvent) error
	RecordDamage(e *core.DamageEvent) error
	RecordHitchEvent(e *core.HitchEvent) error
	RecordRemoval(e *core.EntityRemovedEvent) error
}

// Exporter is an optional interface for backends that write the run to a
// file when it ends.
type Exporter interface {
	ExportedFilePath() string
}
