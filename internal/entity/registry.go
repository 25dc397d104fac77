package entity

import (
	"errors"
	"fmt"

	"github.com/simcore/locomotion/pkg/core"
)

// ErrDuplicateEntity is returned when adding an id that is already registered.
var ErrDuplicateEntity = errors.New("entity already registered")

// RemoveFunc is called once for every entity removed by ProcessDeletions,
// before its children are unparented. It may request further deletions;
// they are processed in the same pass.
type RemoveFunc func(e *Entity, cause core.EntityID)

// Registry holds the live entities of a world. It is not safe for concurrent use.
type Registry struct {
	byID    map[core.EntityID]*Entity
	order   []core.EntityID
	pending []deletion
	queued  map[core.EntityID]bool
}

type deletion struct {
	id    core.EntityID
	cause core.EntityID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[core.EntityID]*Entity),
		queued: make(map[core.EntityID]bool),
	}
}

// Add registers e and marks it alive.
func (r *Registry) Add(e *Entity) error {
	if e == nil || e.ID == core.NilEntity {
		return fmt.Errorf("add entity: missing id")
	}
	if _, ok := r.byID[e.ID]; ok {
		return fmt.Errorf("add entity %s: %w", e.ID, ErrDuplicateEntity)
	}
	if e.children == nil {
		e.children = make(map[core.EntityID]*Entity)
	}
	if e.nodes == nil {
		e.nodes = make(map[string]core.Transform)
	}
	e.alive = true
	r.byID[e.ID] = e
	r.order = append(r.order, e.ID)
	return nil
}

// Get resolves id to a live entity. The empty id and unknown ids resolve to nil.
func (r *Registry) Get(id core.EntityID) *Entity {
	if id == core.NilEntity {
		return nil
	}
	return r.byID[id]
}

// FindByName returns the first live entity with the given name.
func (r *Registry) FindByName(name string) *Entity {
	for _, id := range r.order {
		if e := r.byID[id]; e != nil && e.Name == name {
			return e
		}
	}
	return nil
}

// IsAlive reports whether id is registered.
func (r *Registry) IsAlive(id core.EntityID) bool {
	return r.Get(id) != nil
}

// Len is the number of live entities.
func (r *Registry) Len() int {
	return len(r.byID)
}

// All returns the live entities in registration order.
func (r *Registry) All() []*Entity {
	out := make([]*Entity, 0, len(r.byID))
	for _, id := range r.order {
		if e, ok := r.byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// RequestDelete queues id for removal at the end of the tick.
// cause is the entity whose removal triggered this one, or NilEntity.
func (r *Registry) RequestDelete(id, cause core.EntityID) bool {
	if !r.IsAlive(id) || r.queued[id] {
		return false
	}
	r.queued[id] = true
	r.pending = append(r.pending, deletion{id: id, cause: cause})
	return true
}

// PendingDeletes reports whether removals are queued.
func (r *Registry) PendingDeletes() bool {
	return len(r.pending) > 0
}

// ProcessDeletions removes every queued entity, including those queued by fn
// while it runs, and returns the ids in removal order.
func (r *Registry) ProcessDeletions(fn RemoveFunc) []core.EntityID {
	var removed []core.EntityID
	for len(r.pending) > 0 {
		d := r.pending[0]
		r.pending = r.pending[1:]
		delete(r.queued, d.id)

		e, ok := r.byID[d.id]
		if !ok {
			continue
		}
		if fn != nil {
			fn(e, d.cause)
		}
		for _, childID := range e.Children() {
			if c := r.byID[childID]; c != nil {
				c.SetParent(nil)
			}
		}
		e.SetParent(nil)
		e.alive = false
		delete(r.byID, d.id)
		removed = append(removed, d.id)
	}
	r.compact()
	return removed
}

func (r *Registry) compact() {
	if len(r.order) == len(r.byID) {
		return
	}
	order := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.byID[id]; ok {
			order = append(order, id)
		}
	}
	r.order = order
}
