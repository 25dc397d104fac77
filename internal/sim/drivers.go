package sim

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/entity"
	"github.com/simcore/locomotion/internal/hover"
	"github.com/simcore/locomotion/internal/kinematic"
	"github.com/simcore/locomotion/internal/property"
)

// driver turns the current controls of one entity into forces or a pose.
type driver interface {
	drive(e *entity.Entity, dt float64, c ControlStep)
	properties() *property.Set
}

type hoverDriver struct {
	model *hover.Model
}

func (d *hoverDriver) drive(_ *entity.Entity, dt float64, c ControlStep) {
	d.model.Update(dt, c.hover())
}

func (d *hoverDriver) properties() *property.Set {
	return d.model.Properties()
}

type kinematicDriver struct {
	integrator *kinematic.Integrator
}

func (d *kinematicDriver) drive(e *entity.Entity, dt float64, c ControlStep) {
	pose := d.integrator.Update(dt, c.kinematic())
	if d.integrator.Body() != nil {
		return
	}
	s := d.integrator.State()
	e.SetWorldTransform(pose)
	e.SetVelocity(s.Heading().Mul(s.Velocity).Add(mgl64.Vec3{0, 0, s.VerticalVelocity}))
}

func (d *kinematicDriver) properties() *property.Set {
	return d.integrator.Goal().Properties()
}

// controlTrack replays scheduled control steps.
type controlTrack struct {
	steps   []ControlStep
	next    int
	current ControlStep
}

func newControlTrack(steps []ControlStep) *controlTrack {
	sorted := append([]ControlStep(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	return &controlTrack{steps: sorted}
}

// at returns the controls in effect at elapsed seconds.
func (t *controlTrack) at(elapsed float64) ControlStep {
	for t.next < len(t.steps) && t.steps[t.next].At <= elapsed+timeEpsilon {
		t.current = t.steps[t.next]
		t.next++
	}
	return t.current
}

// override replaces the current controls until the next scheduled step.
func (t *controlTrack) override(c ControlStep) {
	t.current = c
}
