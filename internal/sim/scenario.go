package sim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/hover"
	"github.com/simcore/locomotion/internal/kinematic"
	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/pkg/core"
)

// ControlStep is the driver input that takes effect At seconds into the run
// and holds until the next step.
type ControlStep struct {
	At float64 `json:"at" mapstructure:"at"`

	Forward bool `json:"forward" mapstructure:"forward"`
	Reverse bool `json:"reverse" mapstructure:"reverse"`
	Left    bool `json:"left" mapstructure:"left"`
	Right   bool `json:"right" mapstructure:"right"`
	Jump    bool `json:"jump" mapstructure:"jump"`
	Boost   bool `json:"boost" mapstructure:"boost"`

	Thrust float64 `json:"thrust" mapstructure:"thrust"`
	Yaw    float64 `json:"yaw" mapstructure:"yaw"`
	Lift   float64 `json:"lift" mapstructure:"lift"`
}

func (c ControlStep) hover() hover.Controls {
	return hover.Controls{
		Forward: c.Forward,
		Reverse: c.Reverse,
		Left:    c.Left,
		Right:   c.Right,
		Jump:    c.Jump,
		Boost:   c.Boost,
	}
}

func (c ControlStep) kinematic() kinematic.Controls {
	return kinematic.Controls{Thrust: c.Thrust, Yaw: c.Yaw, Lift: c.Lift}
}

// EntitySpec places one entity in a scenario.
type EntitySpec struct {
	Name      string     `json:"name" mapstructure:"name"`
	Archetype string     `json:"archetype" mapstructure:"archetype"`
	Position  mgl64.Vec3 `json:"position" mapstructure:"position"`
	HPR       core.HPR   `json:"hpr" mapstructure:"hpr"`
	Velocity  mgl64.Vec3 `json:"velocity" mapstructure:"velocity"`
	Remote    bool       `json:"remote" mapstructure:"remote"`

	Controls []ControlStep `json:"controls" mapstructure:"controls"`
	// Tuning overrides driver tunables by property name.
	Tuning map[string]any `json:"tuning" mapstructure:"tuning"`
	// HitchProperties overrides coupler properties by name.
	HitchProperties map[string]any `json:"hitchProperties" mapstructure:"hitchProperties"`
}

// HitchSpec couples Trailer to Tractor at At and optionally releases it.
type HitchSpec struct {
	Tractor string   `json:"tractor" mapstructure:"tractor"`
	Trailer string   `json:"trailer" mapstructure:"trailer"`
	At      float64  `json:"at" mapstructure:"at"`
	HPR     core.HPR `json:"hpr" mapstructure:"hpr"`
	// DetachAt releases the trailer. Zero keeps it attached.
	DetachAt float64 `json:"detachAt" mapstructure:"detachAt"`
}

// DetonationSpec fires a munition at a point.
type DetonationSpec struct {
	At         float64    `json:"at" mapstructure:"at"`
	Munition   string     `json:"munition" mapstructure:"munition"`
	Shooter    string     `json:"shooter" mapstructure:"shooter"`
	Target     string     `json:"target" mapstructure:"target"`
	Point      mgl64.Vec3 `json:"point" mapstructure:"point"`
	Trajectory mgl64.Vec3 `json:"trajectory" mapstructure:"trajectory"`
}

// RemovalSpec deletes an entity at a point in time.
type RemovalSpec struct {
	At     float64 `json:"at" mapstructure:"at"`
	Entity string  `json:"entity" mapstructure:"entity"`
}

// GroundSpec describes the terrain. Without Heights it is a flat plane at
// Height. With Heights it is a row-major grid Cols wide whose first sample
// sits at (OriginX, OriginY).
type GroundSpec struct {
	Height  float64   `json:"height" mapstructure:"height"`
	OriginX float64   `json:"originX" mapstructure:"originX"`
	OriginY float64   `json:"originY" mapstructure:"originY"`
	Spacing float64   `json:"spacing" mapstructure:"spacing"`
	Cols    int       `json:"cols" mapstructure:"cols"`
	Heights []float64 `json:"heights" mapstructure:"heights"`
}

func (g GroundSpec) probe() (physics.GroundProbe, error) {
	if len(g.Heights) == 0 {
		return physics.FlatGround{Height: g.Height, Group: physics.GroupTerrain}, nil
	}
	if g.Spacing <= 0 {
		return nil, fmt.Errorf("ground spacing must be positive, got %v", g.Spacing)
	}
	if g.Cols < 2 || len(g.Heights)%g.Cols != 0 || len(g.Heights)/g.Cols < 2 {
		return nil, fmt.Errorf("ground grid of %d heights does not fill %d columns and at least 2 rows", len(g.Heights), g.Cols)
	}
	return &physics.HeightField{
		Origin:  mgl64.Vec2{g.OriginX, g.OriginY},
		Spacing: g.Spacing,
		Cols:    g.Cols,
		Rows:    len(g.Heights) / g.Cols,
		Heights: g.Heights,
		Group:   physics.GroupTerrain,
	}, nil
}

// Scenario is a complete run description.
type Scenario struct {
	Name        string           `json:"name" mapstructure:"name"`
	Ground      GroundSpec       `json:"ground" mapstructure:"ground"`
	Entities    []EntitySpec     `json:"entities" mapstructure:"entities"`
	Hitches     []HitchSpec      `json:"hitches" mapstructure:"hitches"`
	Detonations []DetonationSpec `json:"detonations" mapstructure:"detonations"`
	Removals    []RemovalSpec    `json:"removals" mapstructure:"removals"`
}
