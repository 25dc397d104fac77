package hitch

import (
	"math"

	"github.com/simcore/locomotion/pkg/core"
)

// HitchType selects how the runtime rotation is applied.
type HitchType string

const (
	// HitchFixed keeps the trailer rigidly aligned with the hitch node.
	HitchFixed HitchType = "fixed"
	// HitchFifthWheel pivots the trailer by the current hitch rotation.
	HitchFifthWheel HitchType = "fifthWheel"
)

// Config describes one coupling.
type Config struct {
	HitchType   HitchType `json:"hitchType" mapstructure:"hitchType"`
	TractorNode string    `json:"tractorNode" mapstructure:"tractorNode"`
	TrailerNode string    `json:"trailerNode" mapstructure:"trailerNode"`
	// MaxYaw and MaxCone limit the applied rotation in degrees. Zero is unlimited.
	MaxYaw  float64 `json:"maxYaw" mapstructure:"maxYaw"`
	MaxCone float64 `json:"maxCone" mapstructure:"maxCone"`
	// CascadeDeletes removes the trailer when the tractor is removed.
	CascadeDeletes bool `json:"cascadeDeletes" mapstructure:"cascadeDeletes"`
	// DriveRemoteTrailer moves a remote trailer with the tractor by the hitch
	// rotation alone instead of leaving it to its own updates.
	DriveRemoteTrailer bool `json:"driveRemoteTrailer" mapstructure:"driveRemoteTrailer"`
}

// DefaultConfig is a pivoting hitch at "hitch_node" on both vehicles.
func DefaultConfig() Config {
	return Config{
		HitchType:          HitchFifthWheel,
		TractorNode:        "hitch_node",
		TrailerNode:        "hitch_node",
		CascadeDeletes:     true,
		DriveRemoteTrailer: true,
	}
}

// applied returns the rotation the hitch actually applies for hpr.
func (c Config) applied(hpr core.HPR) core.HPR {
	if c.HitchType == HitchFixed {
		return core.HPR{}
	}
	out := hpr
	if c.MaxYaw > 0 {
		out.H = math.Max(-c.MaxYaw, math.Min(c.MaxYaw, hpr.H))
	}
	if c.MaxCone > 0 {
		if cone := math.Hypot(hpr.P, hpr.R); cone > c.MaxCone {
			scale := c.MaxCone / cone
			out.P = hpr.P * scale
			out.R = hpr.R * scale
		}
	}
	return out
}
