// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/simcore/locomotion/pkg/core"
)

// RunExport is the root JSON structure
type RunExport struct {
	Name      string       `json:"name"`
	Scenario  string       `json:"scenario"`
	Version   string       `json:"version"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`
	Ticks     uint64       `json:"ticks"`
	TickRate  float64      `json:"tickRate"`
	Origin    [2]float64   `json:"origin"` // lon, lat
	CRS       string       `json:"crs"`    // of entity tracks
	Entities  []EntityJSON `json:"entities"`
	Events    []EventJSON  `json:"events"`
}

// EntityJSON is one entity with its pose history.
// Each position row is [tick, x, y, z, heading, pitch, roll] in the local frame.
type EntityJSON struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        string           `json:"kind"`
	Archetype   string           `json:"archetype,omitempty"`
	Remote      bool             `json:"remote"`
	JoinTick    uint64           `json:"joinTick"`
	RemovedTick *uint64          `json:"removedTick,omitempty"`
	Positions   [][7]float64     `json:"positions"`
	Track       *geom.LineString `json:"track,omitempty"`
}

// EventJSON is a timeline entry. Data holds the event-specific payload.
type EventJSON struct {
	Tick uint64    `json:"tick"`
	Time time.Time `json:"time"`
	Type string    `json:"type"`
	Data any       `json:"data"`
}

type detonationJSON struct {
	Munition   string     `json:"munition"`
	Shooter    string     `json:"shooter,omitempty"`
	Point      [3]float64 `json:"point"`
	Trajectory [3]float64 `json:"trajectory"`
}

type damageJSON struct {
	Munition      string     `json:"munition"`
	Target        string     `json:"target"`
	Distance      float64    `json:"distance"`
	Probabilities [5]float64 `json:"probabilities"`
	Absolute      bool       `json:"absolute"`
	Severity      string     `json:"severity,omitempty"`
}

type hitchJSON struct {
	Action  string `json:"action"`
	Tractor string `json:"tractor"`
	Trailer string `json:"trailer"`
	Mode    string `json:"mode,omitempty"`
}

type removalJSON struct {
	Entity  string `json:"entity"`
	Cascade bool   `json:"cascade"`
	Cause   string `json:"cause,omitempty"`
}

// exportJSON writes the run to a (optionally gzipped) JSON file. Caller holds b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := b.run.Name
	if name == "" {
		name = b.run.Scenario
	}
	name = strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(name)
	timestamp := b.run.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() RunExport {
	lon, lat := b.projector.Origin()
	export := RunExport{
		Name:      b.run.Name,
		Scenario:  b.run.Scenario,
		Version:   b.run.Version,
		StartTime: b.run.StartTime,
		EndTime:   b.run.EndTime,
		Ticks:     b.run.Ticks,
		TickRate:  b.run.TickRate,
		Origin:    [2]float64{lon, lat},
		CRS:       "EPSG:3857",
		Entities:  make([]EntityJSON, 0, len(b.order)),
		Events:    make([]EventJSON, 0),
	}

	for _, id := range b.order {
		export.Entities = append(export.Entities, b.entityJSON(b.entities[id]))
	}

	for _, d := range b.detonations {
		export.Events = append(export.Events, EventJSON{
			Tick: d.Tick,
			Time: d.Time,
			Type: core.EventDetonation.String(),
			Data: detonationJSON{
				Munition:   d.Munition,
				Shooter:    idString(d.Shooter),
				Point:      d.Point,
				Trajectory: d.Trajectory,
			},
		})
	}
	for _, d := range b.damages {
		export.Events = append(export.Events, EventJSON{
			Tick: d.Tick,
			Time: d.Time,
			Type: core.EventDamage.String(),
			Data: damageJSON{
				Munition:      d.Munition,
				Target:        idString(d.Target),
				Distance:      d.Distance,
				Probabilities: d.Probabilities,
				Absolute:      d.Absolute,
				Severity:      d.Severity,
			},
		})
	}
	for _, h := range b.hitches {
		export.Events = append(export.Events, EventJSON{
			Tick: h.Tick,
			Time: h.Time,
			Type: core.EventHitch.String(),
			Data: hitchJSON{
				Action:  h.Action.String(),
				Tractor: idString(h.Tractor),
				Trailer: idString(h.Trailer),
				Mode:    h.Mode,
			},
		})
	}
	for _, id := range b.order {
		if r := b.entities[id].Removed; r != nil {
			export.Events = append(export.Events, removalEvent(*r))
		}
	}
	for _, r := range b.orphanRemovals {
		export.Events = append(export.Events, removalEvent(r))
	}

	sort.SliceStable(export.Events, func(i, j int) bool {
		return export.Events[i].Tick < export.Events[j].Tick
	})
	return export
}

func (b *Backend) entityJSON(r *EntityRecord) EntityJSON {
	e := EntityJSON{
		ID:        r.Entity.ID.String(),
		Name:      r.Entity.Name,
		Kind:      r.Entity.Kind,
		Archetype: r.Entity.Archetype,
		Remote:    r.Entity.Remote,
		JoinTick:  r.Entity.JoinTick,
		Positions: make([][7]float64, 0, len(r.States)),
	}
	if r.Removed != nil {
		tick := r.Removed.Tick
		e.RemovedTick = &tick
	}

	points := make([]mgl64.Vec3, 0, len(r.States))
	for _, s := range r.States {
		e.Positions = append(e.Positions, [7]float64{
			float64(s.Tick),
			s.Position.X(), s.Position.Y(), s.Position.Z(),
			s.HPR.H, s.HPR.P, s.HPR.R,
		})
		points = append(points, s.Position)
	}

	if track, err := b.projector.Track(points); err == nil {
		e.Track = &track
	}
	return e
}

func removalEvent(r core.EntityRemovedEvent) EventJSON {
	return EventJSON{
		Tick: r.Tick,
		Time: r.Time,
		Type: core.EventEntityRemoved.String(),
		Data: removalJSON{
			Entity:  idString(r.ID),
			Cascade: r.Cascade,
			Cause:   idString(r.Cause),
		},
	}
}

func idString(id core.EntityID) string {
	if id == core.NilEntity {
		return ""
	}
	return id.String()
}

func writeJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
