package worker

import (
	"github.com/simcore/locomotion/internal/dispatcher"
	"github.com/simcore/locomotion/pkg/core"
)

// Buffer sizes per event kind.
const (
	stateBuffer = 10000
	eventBuffer = 1000
)

// RegisterHandlers registers all storage handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Entity creation - sync (must be known before its states arrive)
	d.Register(core.EventEntityAdded, m.handleEntityAdded, dispatcher.Logged())

	// High-volume state updates - buffered, never dropped
	d.Register(core.EventEntityState, m.handleEntityState, dispatcher.Buffered(stateBuffer), dispatcher.Blocking())

	// Combat events - buffered
	d.Register(core.EventDetonation, m.handleDetonation, dispatcher.Buffered(eventBuffer), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(core.EventDamage, m.handleDamage, dispatcher.Buffered(eventBuffer), dispatcher.Blocking(), dispatcher.Logged())

	// Coupling and lifecycle - buffered
	d.Register(core.EventHitch, m.handleHitch, dispatcher.Buffered(eventBuffer), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(core.EventEntityRemoved, m.handleEntityRemoved, dispatcher.Buffered(eventBuffer), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleEntityAdded(ev core.Event) error {
	e, ok := ev.(core.EntityAddedEvent)
	if !ok {
		return unexpected(ev)
	}
	if err := m.track(e.Record.JoinTick, m.backend.AddEntity(&e.Record)); err != nil {
		return err
	}
	m.mu.Lock()
	m.known[e.Record.ID] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Manager) handleEntityState(ev core.Event) error {
	e, ok := ev.(core.EntityStateEvent)
	if !ok {
		return unexpected(ev)
	}
	if !m.isKnown(e.State.ID) {
		return m.track(e.State.Tick, ErrTooEarlyForStateAssociation)
	}
	return m.track(e.State.Tick, m.backend.RecordEntityState(&e.State))
}

func (m *Manager) handleDetonation(ev core.Event) error {
	e, ok := ev.(core.DetonationEvent)
	if !ok {
		return unexpected(ev)
	}
	return m.track(e.Tick, m.backend.RecordDetonation(&e))
}

func (m *Manager) handleDamage(ev core.Event) error {
	e, ok := ev.(core.DamageEvent)
	if !ok {
		return unexpected(ev)
	}
	return m.track(e.Tick, m.backend.RecordDamage(&e))
}

func (m *Manager) handleHitch(ev core.Event) error {
	e, ok := ev.(core.HitchEvent)
	if !ok {
		return unexpected(ev)
	}
	return m.track(e.Tick, m.backend.RecordHitchEvent(&e))
}

func (m *Manager) handleEntityRemoved(ev core.Event) error {
	e, ok := ev.(core.EntityRemovedEvent)
	if !ok {
		return unexpected(ev)
	}
	return m.track(e.Tick, m.backend.RecordRemoval(&e))
}
