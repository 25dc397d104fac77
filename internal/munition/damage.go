// Package munition evaluates munition effects on targets: per-severity damage
// probabilities from the Carleton radial model and the impact force.
package munition

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/property"
	"github.com/simcore/locomotion/internal/vmath"
)

// MaxRanges is the number of range tables a munition may carry.
const MaxRanges = 3

// Distances are per-severity radii in metres.
type Distances struct {
	Mobility          float64 `json:"mobility" mapstructure:"mobility"`
	Firepower         float64 `json:"firepower" mapstructure:"firepower"`
	MobilityFirepower float64 `json:"mobilityFirepower" mapstructure:"mobilityFirepower"`
	Kill              float64 `json:"kill" mapstructure:"kill"`
}

// Ranges are the radii along (Forward) and across (Deflect) the trajectory
// for one angle of fall.
type Ranges struct {
	Name string `json:"name" mapstructure:"name"`
	// AngleOfFall is the trajectory angle below the horizon in degrees.
	AngleOfFall float64   `json:"angleOfFall" mapstructure:"angleOfFall"`
	Forward     Distances `json:"forward" mapstructure:"forward"`
	Deflect     Distances `json:"deflect" mapstructure:"deflect"`
}

// Damage is the reference data of one munition type.
type Damage struct {
	Name         string       `json:"name" mapstructure:"name"`
	DirectFire   Coefficients `json:"directFire" mapstructure:"directFire"`
	IndirectFire Coefficients `json:"indirectFire" mapstructure:"indirectFire"`
	Ranges       []Ranges     `json:"ranges" mapstructure:"ranges"`
	// CutoffRange beyond which a detonation has no effect. Negative
	// (NoCutoff) is unlimited.
	CutoffRange float64 `json:"cutoffRange" mapstructure:"cutoffRange"`
	NewtonForce float64 `json:"newtonForce" mapstructure:"newtonForce"`
	// Absolute ranks results by coefficient rather than by probability.
	Absolute bool `json:"absolute" mapstructure:"absolute"`
}

// Validate checks the table for values the model cannot use.
func (d *Damage) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	if len(d.Ranges) > MaxRanges {
		errs = append(errs, fmt.Errorf("%d ranges, at most %d allowed", len(d.Ranges), MaxRanges))
	}
	for _, c := range []struct {
		name string
		c    Coefficients
	}{{"directFire", d.DirectFire}, {"indirectFire", d.IndirectFire}} {
		for _, v := range c.c.byRank() {
			if v < 0 || math.IsNaN(v) {
				errs = append(errs, fmt.Errorf("%s: negative coefficient %v", c.name, v))
				break
			}
		}
	}
	for i, r := range d.Ranges {
		for _, v := range []float64{
			r.Forward.Mobility, r.Forward.Firepower, r.Forward.MobilityFirepower, r.Forward.Kill,
			r.Deflect.Mobility, r.Deflect.Firepower, r.Deflect.MobilityFirepower, r.Deflect.Kill,
		} {
			if v < 0 {
				errs = append(errs, fmt.Errorf("ranges[%d]: negative distance %v", i, v))
				break
			}
		}
	}
	if math.IsNaN(d.CutoffRange) {
		errs = append(errs, errors.New("cutoffRange is NaN"))
	}
	if d.NewtonForce < 0 {
		errs = append(errs, fmt.Errorf("negative newtonForce %v", d.NewtonForce))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("munition %q: %w", d.Name, err)
	}
	return nil
}

// NoCutoff disables the cutoff range.
const NoCutoff = -1.0

// InRange reports whether distance is within the cutoff. A zero cutoff only
// reaches targets at the detonation point.
func (d *Damage) InRange(distance float64) bool {
	return d.CutoffRange < 0 || distance <= d.CutoffRange
}

// AngleOfFall returns the angle of trajectory below the horizon in degrees.
func AngleOfFall(trajectory mgl64.Vec3) float64 {
	l := trajectory.Len()
	if l < vmath.Epsilon {
		return 0
	}
	return mgl64.RadToDeg(math.Asin(vmath.Clamp(-trajectory.Z()/l, -1, 1)))
}

// RangesFor returns the range table whose angle of fall is nearest to angle.
// Ties go to the earlier entry.
func (d *Damage) RangesFor(angle float64) (Ranges, bool) {
	if len(d.Ranges) == 0 {
		return Ranges{}, false
	}
	best := 0
	for i := 1; i < len(d.Ranges); i++ {
		if math.Abs(d.Ranges[i].AngleOfFall-angle) < math.Abs(d.Ranges[best].AngleOfFall-angle) {
			best = i
		}
	}
	return d.Ranges[best], true
}

// Decompose splits the detonation-to-target offset into the distance along
// the trajectory and the distance across it.
func Decompose(target, detonation, trajectory mgl64.Vec3) (x, y float64) {
	offset := target.Sub(detonation)
	dir := vmath.SafeNormalize(trajectory, mgl64.Vec3{})
	if dir == (mgl64.Vec3{}) {
		return offset.Len(), 0
	}
	x = offset.Dot(dir)
	y = offset.Sub(dir.Mul(x)).Len()
	return x, y
}

// Probabilities evaluates the chance of each severity for a target at target.
// directHit selects the direct-fire coefficients instead of the indirect ones.
func (d *Damage) Probabilities(target, detonation, trajectory mgl64.Vec3, directHit bool) Probability {
	if !d.InRange(target.Sub(detonation).Len()) {
		p := NoDamage()
		p.Absolute = d.Absolute
		return p
	}

	var p Probability
	ranges, ok := d.RangesFor(AngleOfFall(trajectory))
	if !ok {
		// no spatial model: the flat direct-fire table applies as is
		c := d.DirectFire
		p = Probability{
			Mobility:          vmath.Clamp(c.Mobility, 0, 1),
			Firepower:         vmath.Clamp(c.Firepower, 0, 1),
			MobilityFirepower: vmath.Clamp(c.MobilityFirepower, 0, 1),
			Kill:              vmath.Clamp(c.Kill, 0, 1),
			Coefficients:      c,
		}
	} else {
		c := d.IndirectFire
		if directHit {
			c = d.DirectFire
		}
		x, y := Decompose(target, detonation, trajectory)
		f, dr := ranges.Forward, ranges.Deflect
		p = Probability{
			Mobility:          CarletonProbability(c.Mobility, x, y, f.Mobility, dr.Mobility),
			Firepower:         CarletonProbability(c.Firepower, x, y, f.Firepower, dr.Firepower),
			MobilityFirepower: CarletonProbability(c.MobilityFirepower, x, y, f.MobilityFirepower, dr.MobilityFirepower),
			Kill:              CarletonProbability(c.Kill, x, y, f.Kill, dr.Kill),
			Coefficients:      c,
		}
	}
	p.None = vmath.Clamp(1-(p.Mobility+p.Firepower+p.MobilityFirepower+p.Kill), 0, 1)
	p.Absolute = d.Absolute
	return p
}

// Force is the push on a target at target: NewtonForce along the
// detonation-to-target direction, or along the trajectory for a target at the
// detonation point. It is zero beyond the cutoff.
func (d *Damage) Force(target, detonation, trajectory mgl64.Vec3) mgl64.Vec3 {
	offset := target.Sub(detonation)
	dist := offset.Len()
	if !d.InRange(dist) {
		return mgl64.Vec3{}
	}
	if dist < vmath.Epsilon {
		return vmath.SafeNormalize(trajectory, mgl64.Vec3{}).Mul(d.NewtonForce)
	}
	return offset.Mul(d.NewtonForce / dist)
}

// Properties exposes the scalar fields of the table by name.
func (d *Damage) Properties() *property.Set {
	s := property.NewSet(
		property.String("Name", &d.Name),
		property.Float64("CutoffRange", &d.CutoffRange),
		property.Float64("NewtonForce", &d.NewtonForce),
		property.Bool("Absolute", &d.Absolute),
		property.ReadOnly("RangeCount", func() any { return len(d.Ranges) }),
	)
	tables := []struct {
		prefix string
		c      *Coefficients
	}{{"DirectFire", &d.DirectFire}, {"IndirectFire", &d.IndirectFire}}
	for _, t := range tables {
		s.Add(property.Float64(t.prefix+".Mobility", &t.c.Mobility))
		s.Add(property.Float64(t.prefix+".Firepower", &t.c.Firepower))
		s.Add(property.Float64(t.prefix+".MobilityFirepower", &t.c.MobilityFirepower))
		s.Add(property.Float64(t.prefix+".Kill", &t.c.Kill))
	}
	return s
}
