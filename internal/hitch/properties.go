package hitch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/simcore/locomotion/internal/property"
	"github.com/simcore/locomotion/pkg/core"
)

// Properties exposes the coupling configuration and runtime rotation by name.
func (c *Coupler) Properties() *property.Set {
	return property.NewSet(
		property.Func("HitchType",
			func() string { return string(c.cfg.HitchType) },
			func(v string) { c.cfg.HitchType = HitchType(v) }),
		property.String("TractorNode", &c.cfg.TractorNode),
		property.String("TrailerNode", &c.cfg.TrailerNode),
		property.Float64("MaxYaw", &c.cfg.MaxYaw),
		property.Float64("MaxCone", &c.cfg.MaxCone),
		property.Bool("CascadeDeletes", &c.cfg.CascadeDeletes),
		property.Bool("DriveRemoteTrailer", &c.cfg.DriveRemoteTrailer),
		property.Field{
			Name: "TrailerActorID",
			Get:  func() any { return c.trailerID.String() },
			Set: func(v any) error {
				s, ok := v.(string)
				if !ok {
					if id, ok := v.(core.EntityID); ok {
						return c.SetTrailerActorID(id)
					}
					return fmt.Errorf("trailer id must be a string, got %T", v)
				}
				if s == "" {
					return c.SetTrailerActorID(core.NilEntity)
				}
				id, err := uuid.Parse(s)
				if err != nil {
					return err
				}
				return c.SetTrailerActorID(id)
			},
		},
		property.Func("CurrentHitchRotHPR",
			func() []float64 { return []float64{c.rotation.H, c.rotation.P, c.rotation.R} },
			func(v []float64) {
				var hpr core.HPR
				if len(v) > 0 {
					hpr.H = v[0]
				}
				if len(v) > 1 {
					hpr.P = v[1]
				}
				if len(v) > 2 {
					hpr.R = v[2]
				}
				c.SetCurrentHitchRotHPR(hpr)
			}),
		property.ReadOnly("Attached", func() any { return c.Attached() }),
		property.ReadOnly("Mode", func() any { return c.mode.String() }),
	)
}
