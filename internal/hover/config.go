package hover

import (
	"log/slog"

	"github.com/simcore/locomotion/internal/physics"
	"github.com/simcore/locomotion/internal/property"
)

// Config holds the tunables of one hover vehicle archetype.
type Config struct {
	// GroundClearance is the hover height above the probed surface (m).
	GroundClearance float64 `json:"groundClearance" mapstructure:"groundClearance"`
	// Stiffness is the extra fraction of weight applied per clearance of height error.
	Stiffness float64 `json:"stiffness" mapstructure:"stiffness"`
	// VerticalDamping (1/s) opposes vertical speed while supported. Zero selects critical damping.
	VerticalDamping float64 `json:"verticalDamping" mapstructure:"verticalDamping"`
	// LookAheadTime extrapolates the second probe along the velocity (s).
	LookAheadTime float64 `json:"lookAheadTime" mapstructure:"lookAheadTime"`
	// FutureWeight blends the look-ahead correction into the current one.
	FutureWeight float64 `json:"futureWeight" mapstructure:"futureWeight"`
	// ProbeRange is how far below the vehicle ground is searched (m).
	ProbeRange float64 `json:"probeRange" mapstructure:"probeRange"`

	MaxForwardSpeed float64 `json:"maxForwardSpeed" mapstructure:"maxForwardSpeed"`
	MaxReverseSpeed float64 `json:"maxReverseSpeed" mapstructure:"maxReverseSpeed"`
	MaxStrafeSpeed  float64 `json:"maxStrafeSpeed" mapstructure:"maxStrafeSpeed"`
	BoostFactor     float64 `json:"boostFactor" mapstructure:"boostFactor"`

	// WindResistance (1/s) opposes horizontal speed.
	WindResistance float64 `json:"windResistance" mapstructure:"windResistance"`
	// CoastDeceleration (m/s^2) is the constant braking term.
	CoastDeceleration float64 `json:"coastDeceleration" mapstructure:"coastDeceleration"`
	// CoastIdleFactor multiplies the coast term with no input near the ground.
	CoastIdleFactor float64 `json:"coastIdleFactor" mapstructure:"coastIdleFactor"`

	// JumpSpeed is the upward velocity change of a jump (m/s).
	JumpSpeed float64 `json:"jumpSpeed" mapstructure:"jumpSpeed"`

	Gravity       float64                `json:"gravity" mapstructure:"gravity"`
	MaxTimeStep   float64                `json:"maxTimeStep" mapstructure:"maxTimeStep"`
	CollisionMask physics.CollisionGroup `json:"collisionMask" mapstructure:"collisionMask"`
}

// DefaultConfig returns the tuning used when an archetype leaves fields unset.
func DefaultConfig() Config {
	return Config{
		GroundClearance:   1.0,
		Stiffness:         1.0,
		LookAheadTime:     0.25,
		FutureWeight:      0.01,
		MaxForwardSpeed:   20,
		MaxReverseSpeed:   8,
		MaxStrafeSpeed:    10,
		BoostFactor:       1.5,
		WindResistance:    0.8,
		CoastDeceleration: 0.5,
		CoastIdleFactor:   4,
		JumpSpeed:         5,
		Gravity:           physics.StandardGravity,
		MaxTimeStep:       0.2,
		CollisionMask:     physics.GroupTerrain | physics.GroupStatic,
	}
}

// sanitize replaces values that would divide by zero or invert the model.
func (c *Config) sanitize(log *slog.Logger) {
	def := DefaultConfig()
	fix := func(name string, v *float64, ok func(float64) bool, fallback float64) {
		if ok(*v) {
			return
		}
		log.Warn("invalid hover tunable, using default", "field", name, "value", *v, "default", fallback)
		*v = fallback
	}
	positive := func(v float64) bool { return v > 0 }
	nonNegative := func(v float64) bool { return v >= 0 }
	fraction := func(v float64) bool { return v >= 0 && v <= 1 }

	fix("groundClearance", &c.GroundClearance, positive, def.GroundClearance)
	fix("stiffness", &c.Stiffness, positive, def.Stiffness)
	fix("verticalDamping", &c.VerticalDamping, nonNegative, 0)
	fix("lookAheadTime", &c.LookAheadTime, nonNegative, def.LookAheadTime)
	fix("futureWeight", &c.FutureWeight, fraction, def.FutureWeight)
	fix("probeRange", &c.ProbeRange, nonNegative, 0)
	fix("maxForwardSpeed", &c.MaxForwardSpeed, nonNegative, def.MaxForwardSpeed)
	fix("maxReverseSpeed", &c.MaxReverseSpeed, nonNegative, def.MaxReverseSpeed)
	fix("maxStrafeSpeed", &c.MaxStrafeSpeed, nonNegative, def.MaxStrafeSpeed)
	fix("boostFactor", &c.BoostFactor, positive, def.BoostFactor)
	fix("windResistance", &c.WindResistance, positive, def.WindResistance)
	fix("coastDeceleration", &c.CoastDeceleration, nonNegative, def.CoastDeceleration)
	fix("coastIdleFactor", &c.CoastIdleFactor, positive, def.CoastIdleFactor)
	fix("jumpSpeed", &c.JumpSpeed, nonNegative, def.JumpSpeed)
	fix("gravity", &c.Gravity, positive, def.Gravity)
	fix("maxTimeStep", &c.MaxTimeStep, positive, def.MaxTimeStep)

	if c.CollisionMask == 0 {
		c.CollisionMask = def.CollisionMask
	}
}

// probeRange defaults to three clearances so a vehicle dropped from twice its
// hover height still finds the ground.
func (c *Config) probeRange() float64 {
	if c.ProbeRange > 0 {
		return c.ProbeRange
	}
	return 3 * c.GroundClearance
}

// Properties exposes the tunables by name.
func (c *Config) Properties() *property.Set {
	return property.NewSet(
		property.Float64("GroundClearance", &c.GroundClearance),
		property.Float64("Stiffness", &c.Stiffness),
		property.Float64("VerticalDamping", &c.VerticalDamping),
		property.Float64("LookAheadTime", &c.LookAheadTime),
		property.Float64("FutureWeight", &c.FutureWeight),
		property.Float64("ProbeRange", &c.ProbeRange),
		property.Float64("MaxForwardSpeed", &c.MaxForwardSpeed),
		property.Float64("MaxReverseSpeed", &c.MaxReverseSpeed),
		property.Float64("MaxStrafeSpeed", &c.MaxStrafeSpeed),
		property.Float64("BoostFactor", &c.BoostFactor),
		property.Float64("WindResistance", &c.WindResistance),
		property.Float64("CoastDeceleration", &c.CoastDeceleration),
		property.Float64("CoastIdleFactor", &c.CoastIdleFactor),
		property.Float64("JumpSpeed", &c.JumpSpeed),
		property.Float64("MaxTimeStep", &c.MaxTimeStep),
	)
}
