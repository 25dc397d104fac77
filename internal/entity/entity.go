// Package entity is the registry of live simulation entities: identity,
// parent/child placement, named attachment nodes and dead-reckoning state.
package entity

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/pkg/core"
)

// Entity is one simulated object.
type Entity struct {
	ID        core.EntityID
	Name      string
	Kind      Kind
	Archetype string

	// Remote entities receive their state from elsewhere and are not
	// locomotion-authoritative here.
	Remote bool

	// Body is the rigid body driving the entity, nil for kinematic or static entities.
	Body physics.RigidBody

	JoinTime time.Time
	JoinTick uint64

	local    core.Transform
	parent   *Entity
	children map[core.EntityID]*Entity
	nodes    map[string]core.Transform

	dr       core.DRAlgorithm
	velocity mgl64.Vec3
	alive    bool
}

// New creates a detached entity at pose with a fresh id.
func New(name string, kind Kind, pose core.Transform) *Entity {
	return &Entity{
		ID:       core.NewEntityID(),
		Name:     name,
		Kind:     kind,
		local:    pose,
		children: make(map[core.EntityID]*Entity),
		nodes:    make(map[string]core.Transform),
		dr:       core.DRVelocityOnly,
	}
}

// Alive reports whether the entity is still registered.
func (e *Entity) Alive() bool {
	return e != nil && e.alive
}

// Parent returns the entity this one is placed under, or nil.
func (e *Entity) Parent() *Entity {
	return e.parent
}

// Children returns the ids of entities parented under this one.
func (e *Entity) Children() []core.EntityID {
	ids := make([]core.EntityID, 0, len(e.children))
	for id := range e.children {
		ids = append(ids, id)
	}
	return ids
}

// LocalTransform is the pose relative to the parent (world when unparented).
func (e *Entity) LocalTransform() core.Transform {
	return e.local
}

// SetLocalTransform sets the pose relative to the parent.
func (e *Entity) SetLocalTransform(t core.Transform) {
	e.local = t
}

// WorldTransform resolves the pose through the parent chain.
func (e *Entity) WorldTransform() core.Transform {
	if e.parent == nil {
		return e.local
	}
	return e.parent.WorldTransform().Mul(e.local)
}

// SetWorldTransform places the entity in world space regardless of its parent.
func (e *Entity) SetWorldTransform(t core.Transform) {
	if e.parent == nil {
		e.local = t
		return
	}
	e.local = e.parent.WorldTransform().Inverse().Mul(t)
}

// SetParent moves the entity under p (nil for the world root) keeping its
// world pose. Parenting under itself or a descendant is refused.
func (e *Entity) SetParent(p *Entity) bool {
	if p == e.parent {
		return true
	}
	for a := p; a != nil; a = a.parent {
		if a == e {
			return false
		}
	}
	world := e.WorldTransform()
	if e.parent != nil {
		delete(e.parent.children, e.ID)
	}
	e.parent = p
	if p != nil {
		p.children[e.ID] = e
	}
	e.SetWorldTransform(world)
	return true
}

// SetNode defines a named attachment point relative to the entity origin.
func (e *Entity) SetNode(name string, local core.Transform) {
	e.nodes[name] = local
}

// Node returns the named attachment point. An empty or unknown name is the origin.
func (e *Entity) Node(name string) (core.Transform, bool) {
	if name == "" {
		return core.IdentityTransform(), true
	}
	t, ok := e.nodes[name]
	if !ok {
		return core.IdentityTransform(), false
	}
	return t, true
}

// NodeNames lists the attachment points.
func (e *Entity) NodeNames() []string {
	names := make([]string, 0, len(e.nodes))
	for n := range e.nodes {
		names = append(names, n)
	}
	return names
}

// DRAlgorithm is how the entity's pose is extrapolated between updates.
func (e *Entity) DRAlgorithm() core.DRAlgorithm {
	return e.dr
}

// SetDRAlgorithm changes the extrapolation algorithm.
func (e *Entity) SetDRAlgorithm(a core.DRAlgorithm) {
	e.dr = a
}

// Velocity is the last known world velocity.
func (e *Entity) Velocity() mgl64.Vec3 {
	if e.Body != nil {
		return e.Body.LinearVelocity()
	}
	return e.velocity
}

// velocitySetter is implemented by bodies whose velocity can be overridden.
type velocitySetter interface {
	SetLinearVelocity(v mgl64.Vec3)
}

// SetVelocity records the last known world velocity and hands it to the body
// when the body accepts one.
func (e *Entity) SetVelocity(v mgl64.Vec3) {
	e.velocity = v
	if b, ok := e.Body.(velocitySetter); ok {
		b.SetLinearVelocity(v)
	}
}

// SyncFromBody copies the body pose and velocity into the entity. A parented
// entity follows its parent instead and moves the body to its world pose.
func (e *Entity) SyncFromBody() {
	if e.Body == nil {
		return
	}
	if e.parent != nil {
		e.Body.SetTransform(e.WorldTransform())
		return
	}
	e.SetWorldTransform(e.Body.Transform())
	e.velocity = e.Body.LinearVelocity()
}

// DeadReckon advances an unparented entity without a body by dt using its
// algorithm and last known velocity.
func (e *Entity) DeadReckon(dt float64) {
	if e.parent != nil || e.Body != nil || dt <= 0 {
		return
	}
	switch e.dr {
	case core.DRVelocityOnly, core.DRVelocityAndAcceleration:
		e.local.Position = e.local.Position.Add(e.velocity.Mul(dt))
	}
}

// Record describes the entity for persistence.
func (e *Entity) Record() core.EntityRecord {
	return core.EntityRecord{
		ID:        e.ID,
		Name:      e.Name,
		Kind:      e.Kind.String(),
		Archetype: e.Archetype,
		Remote:    e.Remote,
		JoinTime:  e.JoinTime,
		JoinTick:  e.JoinTick,
	}
}

// State snapshots the entity for the given tick.
func (e *Entity) State(tick uint64, at time.Time) core.EntityState {
	w := e.WorldTransform()
	s := core.EntityState{
		ID:       e.ID,
		Time:     at,
		Tick:     tick,
		Position: w.Position,
		HPR:      w.HPR(),
		Velocity: e.Velocity(),
		DR:       e.dr,
	}
	if e.parent != nil {
		s.Parent = e.parent.ID
	}
	return s
}
