// Package hitch couples a towed trailer to a tractor entity by copying poses
// instead of simulating a physical joint.
package hitch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/simcore/locomotion/internal/entity"
	"github.com/simcore/locomotion/pkg/core"
)

// ErrSelfAttach is returned when a vehicle is asked to tow itself.
var ErrSelfAttach = errors.New("cannot attach entity to itself")

// Mode is the coupling state.
type Mode uint8

const (
	Unattached Mode = iota
	AttachedLocal
	AttachedRemoteDriven
	AttachedRemoteIndependent
	Detached
)

func (m Mode) String() string {
	switch m {
	case AttachedLocal:
		return "local"
	case AttachedRemoteDriven:
		return "remote_driven"
	case AttachedRemoteIndependent:
		return "remote_independent"
	case Detached:
		return "detached"
	default:
		return "unattached"
	}
}

// IsAttached reports whether m is one of the attached modes.
func (m Mode) IsAttached() bool {
	return m == AttachedLocal || m == AttachedRemoteDriven || m == AttachedRemoteIndependent
}

// State is the runtime part of a coupling.
type State struct {
	Rotation core.HPR
	Attached bool
	Mode     Mode
}

// Publisher receives hitch events.
type Publisher interface {
	Dispatch(ev core.Event) error
}

// Coupler maintains the towing relationship for one tractor.
type Coupler struct {
	cfg      Config
	owner    *entity.Entity
	registry *entity.Registry
	events   Publisher
	log      *slog.Logger

	trailerID core.EntityID
	rotation  core.HPR
	mode      Mode
	savedDR   core.DRAlgorithm
	lastTick  core.Tick
}

// New creates an unattached coupler on owner. events may be nil.
func New(owner *entity.Entity, registry *entity.Registry, cfg Config, events Publisher, log *slog.Logger) *Coupler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.HitchType != HitchFixed && cfg.HitchType != HitchFifthWheel {
		if cfg.HitchType != "" {
			log.Warn("unknown hitch type, using fifth wheel", "hitchType", cfg.HitchType, "tractor", owner.ID)
		}
		cfg.HitchType = HitchFifthWheel
	}
	return &Coupler{
		cfg:      cfg,
		owner:    owner,
		registry: registry,
		events:   events,
		log:      log.With("tractor", owner.ID),
	}
}

// Config returns the coupling configuration.
func (c *Coupler) Config() Config {
	return c.cfg
}

// Owner is the tractor entity.
func (c *Coupler) Owner() *entity.Entity {
	return c.owner
}

// Mode returns the current coupling state.
func (c *Coupler) Mode() Mode {
	return c.mode
}

// Attached reports whether a trailer is currently coupled.
func (c *Coupler) Attached() bool {
	return c.mode.IsAttached()
}

// State snapshots the runtime state.
func (c *Coupler) State() State {
	return State{Rotation: c.rotation, Attached: c.Attached(), Mode: c.mode}
}

// TrailerActorID returns the recorded trailer id.
func (c *Coupler) TrailerActorID() core.EntityID {
	return c.trailerID
}

// SetTrailerActorID records the trailer to tow. It is resolved on the next
// Update. Switching trailers detaches the current one first.
func (c *Coupler) SetTrailerActorID(id core.EntityID) error {
	if id == c.owner.ID {
		c.log.Error("rejected hitch", "error", ErrSelfAttach)
		return fmt.Errorf("set trailer %s: %w", id, ErrSelfAttach)
	}
	if id == c.trailerID {
		return nil
	}
	if c.Attached() {
		c.Detach()
	}
	c.trailerID = id
	return nil
}

// LookupTrailer resolves the trailer id; nil when empty or not alive.
func (c *Coupler) LookupTrailer() *entity.Entity {
	if c.registry == nil {
		return nil
	}
	return c.registry.Get(c.trailerID)
}

// SetCurrentHitchRotHPR sets the trailer's rotation relative to the tractor hitch node.
func (c *Coupler) SetCurrentHitchRotHPR(hpr core.HPR) {
	c.rotation = hpr
}

// CurrentHitchRotHPR returns the value last set.
func (c *Coupler) CurrentHitchRotHPR() core.HPR {
	return c.rotation
}

// desiredMode is the attached mode the current authority calls for.
func (c *Coupler) desiredMode() Mode {
	switch {
	case !c.owner.Remote:
		return AttachedLocal
	case c.cfg.DriveRemoteTrailer:
		return AttachedRemoteDriven
	default:
		return AttachedRemoteIndependent
	}
}

// relative is the trailer pose in the tractor frame.
func (c *Coupler) relative(trailer *entity.Entity) core.Transform {
	tractorNode, ok := c.owner.Node(c.cfg.TractorNode)
	if !ok {
		c.log.Debug("tractor hitch node missing, using origin", "node", c.cfg.TractorNode)
	}
	trailerNode, ok := trailer.Node(c.cfg.TrailerNode)
	if !ok {
		c.log.Debug("trailer hitch node missing, using origin", "node", c.cfg.TrailerNode, "trailer", trailer.ID)
	}
	pivot := core.Transform{Rotation: c.cfg.applied(c.rotation).Quat()}
	return tractorNode.Mul(pivot).Mul(trailerNode.Inverse())
}

// TrailerWorldTransform is where the attached trailer is placed this tick.
func (c *Coupler) TrailerWorldTransform(trailer *entity.Entity) core.Transform {
	return c.owner.WorldTransform().Mul(c.relative(trailer))
}

// Update places the trailer for this tick. It must run after the tractor's
// own pose update.
func (c *Coupler) Update(tick core.Tick) {
	c.lastTick = tick
	if c.trailerID == core.NilEntity {
		return
	}
	trailer := c.LookupTrailer()
	if trailer == nil {
		if c.Attached() {
			c.log.Info("trailer vanished, detaching", "trailer", c.trailerID)
			c.detachGone()
		}
		return
	}

	want := c.desiredMode()
	switch {
	case !c.Attached():
		c.attach(trailer, want)
	case c.mode != want:
		c.log.Debug("hitch mode change", "from", c.mode, "to", want)
		c.restore(trailer)
		c.mode = want
	}

	switch c.mode {
	case AttachedLocal:
		trailer.SetWorldTransform(c.TrailerWorldTransform(trailer))
		trailer.SetDRAlgorithm(core.DRNone)
		trailer.SetVelocity(c.owner.Velocity())
		if trailer.Body != nil {
			trailer.Body.SetTransform(trailer.WorldTransform())
		}
	case AttachedRemoteDriven:
		if trailer.Parent() != c.owner && !trailer.SetParent(c.owner) {
			c.log.Error("cannot parent trailer under tractor", "trailer", trailer.ID)
			return
		}
		trailer.SetLocalTransform(c.relative(trailer))
		trailer.SetDRAlgorithm(core.DRNone)
		trailer.SetVelocity(c.owner.Velocity())
		if trailer.Body != nil {
			trailer.Body.SetTransform(trailer.WorldTransform())
		}
	}
}

func (c *Coupler) attach(trailer *entity.Entity, mode Mode) {
	c.savedDR = trailer.DRAlgorithm()
	c.mode = mode
	c.log.Info("trailer attached", "trailer", trailer.ID, "mode", mode)
	c.publish(core.HitchAttached, trailer.ID)
}

// restore undoes what the current mode did to the trailer.
func (c *Coupler) restore(trailer *entity.Entity) {
	if trailer.Parent() == c.owner {
		trailer.SetParent(nil)
	}
	if c.mode == AttachedRemoteIndependent {
		return
	}
	dr := c.owner.DRAlgorithm()
	if dr == core.DRNone || dr == core.DRStatic {
		dr = c.savedDR
	}
	trailer.SetDRAlgorithm(dr)
	trailer.SetVelocity(c.owner.Velocity())
}

// Detach releases the trailer and forgets its id. It is a no-op when nothing
// is attached.
func (c *Coupler) Detach() {
	if !c.Attached() {
		c.trailerID = core.NilEntity
		return
	}
	trailerID := c.trailerID
	if trailer := c.LookupTrailer(); trailer != nil {
		c.restore(trailer)
	}
	c.mode = Detached
	c.trailerID = core.NilEntity
	c.log.Info("trailer detached", "trailer", trailerID)
	c.publish(core.HitchDetached, trailerID)
}

// detachGone records the loss of a trailer that is no longer in the registry.
func (c *Coupler) detachGone() {
	trailerID := c.trailerID
	c.mode = Detached
	c.trailerID = core.NilEntity
	c.publish(core.HitchDetached, trailerID)
}

// OnOwnerRemoved must be called while the tractor's removal is processed.
// With cascading enabled the attached trailer is queued for removal in the
// same pass; otherwise it is detached and left to reckon on its own.
func (c *Coupler) OnOwnerRemoved() {
	if !c.Attached() {
		c.trailerID = core.NilEntity
		return
	}
	if !c.cfg.CascadeDeletes {
		c.Detach()
		return
	}
	trailerID := c.trailerID
	if c.registry != nil {
		c.registry.RequestDelete(trailerID, c.owner.ID)
	}
	c.log.Info("cascading delete to trailer", "trailer", trailerID)
	c.detachGone()
}

// OnEntityRemoved must be called for every removed entity so that losing the
// trailer detaches the coupling.
func (c *Coupler) OnEntityRemoved(id core.EntityID) {
	if id == core.NilEntity || id != c.trailerID {
		return
	}
	if c.Attached() {
		c.detachGone()
		return
	}
	c.trailerID = core.NilEntity
}

func (c *Coupler) publish(action core.HitchAction, trailer core.EntityID) {
	if c.events == nil {
		return
	}
	err := c.events.Dispatch(core.HitchEvent{
		Time:    c.lastTick.Time,
		Tick:    c.lastTick.Number,
		Action:  action,
		Tractor: c.owner.ID,
		Trailer: trailer,
		Mode:    c.mode.String(),
	})
	if err != nil {
		c.log.Warn("hitch event not delivered", "action", action, "error", err)
	}
}
