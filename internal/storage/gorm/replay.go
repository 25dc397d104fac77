package gormstorage

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gorm.io/gorm"

	"github.com/simcore/locomotion/internal/geo"
	"github.com/simcore/locomotion/internal/model"
	"github.com/simcore/locomotion/internal/storage"
	"github.com/simcore/locomotion/pkg/core"
)

const replayBatchSize = 10000

// Replay reads a stored run and feeds it into dst in recording order:
// entities, pose samples by tick, then events. dst.EndRun is called last.
func Replay(db *gorm.DB, runID uint, dst storage.Backend) error {
	var row model.Run
	if err := db.First(&row, runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("run %d not found", runID)
		}
		return fmt.Errorf("failed to read run %d: %w", runID, err)
	}

	run := &core.Run{
		ID:              row.ID,
		Name:            row.Name,
		Scenario:        row.Scenario,
		StartTime:       row.StartTime,
		Ticks:           row.Ticks,
		TickRate:        row.TickRate,
		OriginLongitude: row.OriginLongitude,
		OriginLatitude:  row.OriginLatitude,
		Version:         row.Version,
	}
	if row.EndTime.Valid {
		run.EndTime = row.EndTime.Time
	}
	projector, err := geo.NewProjector(run.OriginLongitude, run.OriginLatitude)
	if err != nil {
		return fmt.Errorf("invalid origin of run %d: %w", runID, err)
	}
	if err := dst.StartRun(run); err != nil {
		return err
	}

	var entities []model.Entity
	if err := db.Where("run_id = ?", runID).Order("join_tick, name").Find(&entities).Error; err != nil {
		return fmt.Errorf("failed to read entities: %w", err)
	}
	for _, e := range entities {
		err := dst.AddEntity(&core.EntityRecord{
			ID:        e.ID,
			Name:      e.Name,
			Kind:      e.Kind,
			Archetype: e.Archetype,
			Remote:    e.Remote,
			JoinTime:  e.JoinTime,
			JoinTick:  e.JoinTick,
		})
		if err != nil {
			return err
		}
	}

	var states []model.EntityState
	var replayErr error
	res := db.Where("run_id = ?", runID).Order("tick, id").
		FindInBatches(&states, replayBatchSize, func(tx *gorm.DB, batch int) error {
			for i := range states {
				if err := dst.RecordEntityState(stateFromRow(&states[i])); err != nil {
					replayErr = err
					return err
				}
			}
			return nil
		})
	if replayErr != nil {
		return replayErr
	}
	if res.Error != nil {
		return fmt.Errorf("failed to read entity states: %w", res.Error)
	}

	if err := replayEvents(db, runID, projector, dst); err != nil {
		return err
	}
	return dst.EndRun(run)
}

func replayEvents(db *gorm.DB, runID uint, projector *geo.Projector, dst storage.Backend) error {
	var detonations []model.Detonation
	if err := db.Where("run_id = ?", runID).Order("tick, id").Find(&detonations).Error; err != nil {
		return fmt.Errorf("failed to read detonations: %w", err)
	}
	for _, d := range detonations {
		err := dst.RecordDetonation(&core.DetonationEvent{
			Time:       d.Time,
			Tick:       d.Tick,
			Munition:   d.Munition,
			Shooter:    fromOptionalID(d.ShooterID),
			Point:      projector.Local(d.Position.Point),
			Trajectory: vec(d.Trajectory),
		})
		if err != nil {
			return err
		}
	}

	var damages []model.Damage
	if err := db.Where("run_id = ?", runID).Order("tick, id").Find(&damages).Error; err != nil {
		return fmt.Errorf("failed to read damages: %w", err)
	}
	for _, d := range damages {
		err := dst.RecordDamage(&core.DamageEvent{
			Time:          d.Time,
			Tick:          d.Tick,
			Munition:      d.Munition,
			Target:        d.TargetID,
			Distance:      d.Distance,
			Force:         vec(d.Force),
			Probabilities: d.Probabilities.Data(),
			Absolute:      d.Absolute,
			Severity:      d.Severity,
		})
		if err != nil {
			return err
		}
	}

	var hitches []model.HitchEvent
	if err := db.Where("run_id = ?", runID).Order("tick, id").Find(&hitches).Error; err != nil {
		return fmt.Errorf("failed to read hitch events: %w", err)
	}
	for _, h := range hitches {
		action := core.HitchDetached
		if h.Action == core.HitchAttached.String() {
			action = core.HitchAttached
		}
		err := dst.RecordHitchEvent(&core.HitchEvent{
			Time:    h.Time,
			Tick:    h.Tick,
			Action:  action,
			Tractor: h.TractorID,
			Trailer: h.TrailerID,
			Mode:    h.Mode,
		})
		if err != nil {
			return err
		}
	}

	var removals []model.Removal
	if err := db.Where("run_id = ?", runID).Order("tick, id").Find(&removals).Error; err != nil {
		return fmt.Errorf("failed to read removals: %w", err)
	}
	for _, r := range removals {
		err := dst.RecordRemoval(&core.EntityRemovedEvent{
			Time:    r.Time,
			Tick:    r.Tick,
			ID:      r.EntityID,
			Cascade: r.Cascade,
			Cause:   fromOptionalID(r.CauseID),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func stateFromRow(s *model.EntityState) *core.EntityState {
	return &core.EntityState{
		ID:       s.EntityID,
		Time:     s.Time,
		Tick:     s.Tick,
		Position: mgl64.Vec3{s.LocalX, s.LocalY, s.LocalZ},
		HPR:      core.HPR{H: s.Heading, P: s.Pitch, R: s.Roll},
		Velocity: vec(s.Velocity),
		Parent:   fromOptionalID(s.ParentID),
		DR:       core.ParseDRAlgorithm(s.Algorithm),
	}
}

func vec(v model.Vec3) mgl64.Vec3 {
	d := v.Data()
	return mgl64.Vec3{d[0], d[1], d[2]}
}

func fromOptionalID(id *core.EntityID) core.EntityID {
	if id == nil {
		return core.NilEntity
	}
	return *id
}
