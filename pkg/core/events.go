// pkg/core/events.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// EventKind tags each event payload. Handlers are registered per kind.
type EventKind uint8

const (
	EventDetonation EventKind = iota + 1
	EventDamage
	EventHitch
	EventEntityRemoved
	EventEntityState
	EventEntityAdded
)

func (k EventKind) String() string {
	switch k {
	case EventDetonation:
		return "detonation"
	case EventDamage:
		return "damage"
	case EventHitch:
		return "hitch"
	case EventEntityRemoved:
		return "entity_removed"
	case EventEntityState:
		return "entity_state"
	case EventEntityAdded:
		return "entity_added"
	default:
		return "unknown"
	}
}

// Event is implemented by every payload that travels on the event bus.
type Event interface {
	Kind() EventKind
}

// DetonationEvent is published once per munition detonation.
type DetonationEvent struct {
	Time       time.Time
	Tick       uint64
	Munition   string
	Shooter    EntityID
	Point      mgl64.Vec3
	Trajectory mgl64.Vec3
}

func (DetonationEvent) Kind() EventKind { return EventDetonation }

// DamageEvent carries the damage evaluation for one target of a detonation.
type DamageEvent struct {
	Time     time.Time
	Tick     uint64
	Munition string
	Target   EntityID
	Distance float64
	Force    mgl64.Vec3
	// Probabilities are indexed by severity: none, mobility, firepower, mobility+firepower, kill.
	Probabilities [5]float64
	Absolute      bool
	// Severity is the outcome drawn from Probabilities.
	Severity string
}

func (DamageEvent) Kind() EventKind { return EventDamage }

// HitchAction is the transition reported by a HitchEvent.
type HitchAction uint8

const (
	HitchAttached HitchAction = iota + 1
	HitchDetached
)

func (a HitchAction) String() string {
	if a == HitchAttached {
		return "attached"
	}
	return "detached"
}

// HitchEvent reports a tractor/trailer coupling change.
type HitchEvent struct {
	Time    time.Time
	Tick    uint64
	Action  HitchAction
	Tractor EntityID
	Trailer EntityID
	Mode    string
}

func (HitchEvent) Kind() EventKind { return EventHitch }

// EntityRemovedEvent is published when an entity leaves the registry.
type EntityRemovedEvent struct {
	Time time.Time
	Tick uint64
	ID   EntityID
	// Cascade is set when the removal was caused by the removal of Cause.
	Cascade bool
	Cause   EntityID
}

func (EntityRemovedEvent) Kind() EventKind { return EventEntityRemoved }

// EntityStateEvent is the per-tick pose sample of one entity.
type EntityStateEvent struct {
	State EntityState
}

func (EntityStateEvent) Kind() EventKind { return EventEntityState }

// EntityAddedEvent is published when an entity joins the registry.
type EntityAddedEvent struct {
	Record EntityRecord
}

func (EntityAddedEvent) Kind() EventKind { return EventEntityAdded }
