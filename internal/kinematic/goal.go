package kinematic

import (
	"log/slog"

	"github.com/simcore/locomotion/internal/property"
)

// Default integration step bounds (s).
const (
	DefaultMinTick = 0.01
	DefaultMaxTick = 0.1
)

// GoalState holds the motion limits of one vehicle archetype. Angles are radians.
// A GoalState is read-only during Update and may be shared between vehicles.
type GoalState struct {
	MaxAngularVel   float64 `json:"maxAngularVel" mapstructure:"maxAngularVel"`
	MaxAngularAccel float64 `json:"maxAngularAccel" mapstructure:"maxAngularAccel"`

	MaxVel   float64 `json:"maxVel" mapstructure:"maxVel"`
	MaxAccel float64 `json:"maxAccel" mapstructure:"maxAccel"`

	MaxPitch          float64 `json:"maxPitch" mapstructure:"maxPitch"`
	MaxRoll           float64 `json:"maxRoll" mapstructure:"maxRoll"`
	MaxPitchPerSecond float64 `json:"maxPitchPerSecond" mapstructure:"maxPitchPerSecond"`
	MaxRollPerSecond  float64 `json:"maxRollPerSecond" mapstructure:"maxRollPerSecond"`

	MaxVerticalVel   float64 `json:"maxVerticalVel" mapstructure:"maxVerticalVel"`
	MaxVerticalAccel float64 `json:"maxVerticalAccel" mapstructure:"maxVerticalAccel"`

	// Elevation bounds are ignored unless MaxElevation > MinElevation.
	MinElevation float64 `json:"minElevation" mapstructure:"minElevation"`
	MaxElevation float64 `json:"maxElevation" mapstructure:"maxElevation"`

	Drag         float64 `json:"drag" mapstructure:"drag"`
	AngularDrag  float64 `json:"angularDrag" mapstructure:"angularDrag"`
	VerticalDrag float64 `json:"verticalDrag" mapstructure:"verticalDrag"`

	MinTick float64 `json:"minTick" mapstructure:"minTick"`
	MaxTick float64 `json:"maxTick" mapstructure:"maxTick"`
}

// DefaultGoalState is a light helicopter.
func DefaultGoalState() GoalState {
	return GoalState{
		MaxAngularVel:     0.8,
		MaxAngularAccel:   0.6,
		MaxVel:            40,
		MaxAccel:          6,
		MaxPitch:          0.35,
		MaxRoll:           0.5,
		MaxPitchPerSecond: 0.5,
		MaxRollPerSecond:  0.8,
		MaxVerticalVel:    8,
		MaxVerticalAccel:  4,
		Drag:              0.05,
		AngularDrag:       0.5,
		VerticalDrag:      0.2,
		MinTick:           DefaultMinTick,
		MaxTick:           DefaultMaxTick,
	}
}

func (g *GoalState) sanitize(log *slog.Logger) {
	limits := []struct {
		name string
		v    *float64
	}{
		{"maxAngularVel", &g.MaxAngularVel},
		{"maxAngularAccel", &g.MaxAngularAccel},
		{"maxVel", &g.MaxVel},
		{"maxAccel", &g.MaxAccel},
		{"maxPitch", &g.MaxPitch},
		{"maxRoll", &g.MaxRoll},
		{"maxPitchPerSecond", &g.MaxPitchPerSecond},
		{"maxRollPerSecond", &g.MaxRollPerSecond},
		{"maxVerticalVel", &g.MaxVerticalVel},
		{"maxVerticalAccel", &g.MaxVerticalAccel},
		{"drag", &g.Drag},
		{"angularDrag", &g.AngularDrag},
		{"verticalDrag", &g.VerticalDrag},
	}
	for _, l := range limits {
		if *l.v < 0 {
			log.Warn("negative motion limit, using zero", "field", l.name, "value", *l.v)
			*l.v = 0
		}
	}
	if g.MinTick <= 0 || g.MaxTick <= 0 || g.MinTick > g.MaxTick {
		if g.MinTick != 0 || g.MaxTick != 0 {
			log.Warn("invalid tick bounds, using defaults", "minTick", g.MinTick, "maxTick", g.MaxTick)
		}
		g.MinTick = DefaultMinTick
		g.MaxTick = DefaultMaxTick
	}
}

func (g *GoalState) tickBounds() (float64, float64) {
	if g.MinTick <= 0 || g.MaxTick <= 0 || g.MinTick > g.MaxTick {
		return DefaultMinTick, DefaultMaxTick
	}
	return g.MinTick, g.MaxTick
}

// Properties exposes the limits by name.
func (g *GoalState) Properties() *property.Set {
	return property.NewSet(
		property.Float64("MaxAngularVel", &g.MaxAngularVel),
		property.Float64("MaxAngularAccel", &g.MaxAngularAccel),
		property.Float64("MaxVel", &g.MaxVel),
		property.Float64("MaxAccel", &g.MaxAccel),
		property.Float64("MaxPitch", &g.MaxPitch),
		property.Float64("MaxRoll", &g.MaxRoll),
		property.Float64("MaxPitchPerSecond", &g.MaxPitchPerSecond),
		property.Float64("MaxRollPerSecond", &g.MaxRollPerSecond),
		property.Float64("MaxVerticalVel", &g.MaxVerticalVel),
		property.Float64("MaxVerticalAccel", &g.MaxVerticalAccel),
		property.Float64("MinElevation", &g.MinElevation),
		property.Float64("MaxElevation", &g.MaxElevation),
		property.Float64("Drag", &g.Drag),
		property.Float64("AngularDrag", &g.AngularDrag),
		property.Float64("VerticalDrag", &g.VerticalDrag),
		property.Float64("MinTick", &g.MinTick),
		property.Float64("MaxTick", &g.MaxTick),
	)
}
