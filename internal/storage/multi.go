package storage

import (
	"errors"
	"time"

	"github.com/simcore/locomotion/pkg/core"
)

// Multi fans every call out to several backends. The first backend is the
// primary: StartRun copies the run id it assigns to the others.
type Multi []Backend

func (m Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		errs = append(errs, fn(b))
	}
	return errors.Join(errs...)
}

func (m Multi) Init() error { return m.each(Backend.Init) }
func (m Multi) Close() error { return m.each(Backend.Close) }

func (m Multi) StartRun(run *core.Run) error {
	if len(m) == 0 {
		return nil
	}
	if err := m[0].StartRun(run); err != nil {
		return err
	}
	return m[1:].each(func(b Backend) error { return b.StartRun(run) })
}

func (m Multi) EndRun(run *core.Run) error {
	return m.each(func(b Backend) error { return b.EndRun(run) })
}

func (m Multi) AddEntity(e *core.EntityRecord) error {
	return m.each(func(b Backend) error { return b.AddEntity(e) })
}

func (m Multi) RecordEntityState(s *core.EntityState) error {
	return m.each(func(b Backend) error { return b.RecordEntityState(s) })
}

func (m Multi) RecordDetonation(e *core.DetonationEvent) error {
	return m.each(func(b Backend) error { return b.RecordDetonation(e) })
}

func (m Multi) RecordDamage(e *core.DamageEvent) error {
	return m.each(func(b Backend) error { return b.RecordDamage(e) })
}

func (m Multi) RecordHitchEvent(e *core.HitchEvent) error {
	return m.each(func(b Backend) error { return b.RecordHitchEvent(e) })
}

func (m Multi) RecordRemoval(e *core.EntityRemovedEvent) error {
	return m.each(func(b Backend) error { return b.RecordRemoval(e) })
}

// ExportedFilePath returns the first export path among the backends.
func (m Multi) ExportedFilePath() string {
	for _, b := range m {
		if e, ok := b.(Exporter); ok && e.ExportedFilePath() != "" {
			return e.ExportedFilePath()
		}
	}
	return ""
}

// Pending sums the queued rows of the backends that buffer writes.
func (m Multi) Pending() int {
	n := 0
	for _, b := range m {
		if q, ok := b.(interface{ Pending() int }); ok {
			n += q.Pending()
		}
	}
	return n
}

// GetLastDBWriteDuration returns the slowest last write among the backends.
func (m Multi) GetLastDBWriteDuration() time.Duration {
	var d time.Duration
	for _, b := range m {
		if p, ok := b.(interface{ GetLastDBWriteDuration() time.Duration }); ok {
			d = max(d, p.GetLastDBWriteDuration())
		}
	}
	return d
}
