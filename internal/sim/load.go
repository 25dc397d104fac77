package sim

import (
	"fmt"

	"github.com/simcore/locomotion/pkg/core"
)

// LoadScenario spawns the scenario's entities and schedules its hitches,
// detonations and removals. Times are seconds from the current elapsed time.
func (w *World) LoadScenario(sc Scenario) error {
	if w.ground == nil {
		probe, err := sc.Ground.probe()
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		w.ground = probe
	}

	for _, spec := range sc.Entities {
		if _, err := w.Spawn(spec); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	base := w.elapsed
	for _, h := range sc.Hitches {
		tractor, err := w.lookup(h.Tractor)
		if err != nil {
			return fmt.Errorf("scenario %s hitch: %w", sc.Name, err)
		}
		trailer, err := w.lookup(h.Trailer)
		if err != nil {
			return fmt.Errorf("scenario %s hitch: %w", sc.Name, err)
		}
		if w.couplers[tractor] == nil {
			return fmt.Errorf("scenario %s: %w: %s", sc.Name, ErrNoCoupler, h.Tractor)
		}
		hpr := h.HPR
		w.At(base+h.At, "hitch "+h.Tractor+"/"+h.Trailer, func() error {
			return w.Hitch(tractor, trailer, hpr)
		})
		if h.DetachAt > 0 {
			w.At(base+h.DetachAt, "unhitch "+h.Tractor, func() error {
				return w.Unhitch(tractor)
			})
		}
	}

	for _, d := range sc.Detonations {
		if _, err := w.munitions.Get(d.Munition); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		shooter, err := w.optionalLookup(d.Shooter)
		if err != nil {
			return fmt.Errorf("scenario %s detonation shooter: %w", sc.Name, err)
		}
		target, err := w.optionalLookup(d.Target)
		if err != nil {
			return fmt.Errorf("scenario %s detonation target: %w", sc.Name, err)
		}
		d := d
		w.At(base+d.At, "detonate "+d.Munition, func() error {
			_, err := w.Detonate(d.Munition, d.Point, d.Trajectory, shooter, target)
			return err
		})
	}

	for _, r := range sc.Removals {
		id, err := w.lookup(r.Entity)
		if err != nil {
			return fmt.Errorf("scenario %s removal: %w", sc.Name, err)
		}
		name := r.Entity
		w.At(base+r.At, "remove "+name, func() error {
			if !w.Remove(id) {
				return fmt.Errorf("%w: %s", ErrUnknownEntity, name)
			}
			return nil
		})
	}

	w.log.Info("scenario loaded",
		"scenario", sc.Name,
		"entities", len(sc.Entities),
		"hitches", len(sc.Hitches),
		"detonations", len(sc.Detonations),
		"removals", len(sc.Removals))
	return nil
}

func (w *World) lookup(name string) (core.EntityID, error) {
	e := w.registry.FindByName(name)
	if e == nil {
		return core.NilEntity, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e.ID, nil
}

func (w *World) optionalLookup(name string) (core.EntityID, error) {
	if name == "" {
		return core.NilEntity, nil
	}
	return w.lookup(name)
}
