package worker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simcore/locomotion/internal/storage"
	"github.com/simcore/locomotion/pkg/core"
)

// ErrTooEarlyForStateAssociation is returned when state data arrives before entity is registered
var ErrTooEarlyForStateAssociation = errors.New("too early for state association")

// Manager forwards dispatcher events to a storage backend.
type Manager struct {
	backend storage.Backend

	mu    sync.RWMutex
	known map[core.EntityID]struct{}

	lastTick atomic.Uint64
	recorded atomic.Uint64
	rejected atomic.Uint64
}

// Stats is a snapshot of the recorder's progress.
type Stats struct {
	LastTick  uint64        `json:"lastTick"`
	Recorded  uint64        `json:"recorded"`
	Rejected  uint64        `json:"rejected"`
	Pending   int           `json:"pending"`
	LastWrite time.Duration `json:"lastWriteNs"`
}

// NewManager creates a new worker manager
func NewManager(backend storage.Backend) *Manager {
	return &Manager{
		backend: backend,
		known:   make(map[core.EntityID]struct{}),
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// Stats returns the current counters. Pending is only filled in for backends
// that queue writes.
func (m *Manager) Stats() Stats {
	st := Stats{
		LastTick:  m.lastTick.Load(),
		Recorded:  m.recorded.Load(),
		Rejected:  m.rejected.Load(),
		LastWrite: m.GetLastDBWriteDuration(),
	}
	if q, ok := m.backend.(interface{ Pending() int }); ok {
		st.Pending = q.Pending()
	}
	return st
}

// track counts the outcome of one backend call.
func (m *Manager) track(tick uint64, err error) error {
	if err != nil {
		m.rejected.Add(1)
		return err
	}
	m.recorded.Add(1)
	for {
		last := m.lastTick.Load()
		if tick <= last || m.lastTick.CompareAndSwap(last, tick) {
			return nil
		}
	}
}

func (m *Manager) isKnown(id core.EntityID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.known[id]
	return ok
}

func unexpected(ev core.Event) error {
	return fmt.Errorf("unexpected event payload %T", ev)
}
