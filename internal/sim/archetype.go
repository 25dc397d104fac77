package sim

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/simcore/locomotion/internal/entity"
	"github.com/simcore/locomotion/internal/hitch"
	"github.com/simcore/locomotion/internal/hover"
	"github.com/simcore/locomotion/internal/kinematic"
	"github.com/simcore/locomotion/pkg/core"
)

// DriverType selects the locomotion model attached to an entity.
type DriverType string

const (
	DriverNone      DriverType = ""
	DriverHover     DriverType = "hover"
	DriverKinematic DriverType = "kinematic"
	// DriverHybrid runs the kinematic integrator against a rigid body.
	DriverHybrid DriverType = "hybrid"
)

// NodeSpec is a named attachment point in an entity's local frame.
type NodeSpec struct {
	Position mgl64.Vec3 `json:"position" mapstructure:"position"`
	HPR      core.HPR   `json:"hpr" mapstructure:"hpr"`
}

// Archetype is the template entities are spawned from.
type Archetype struct {
	Name string `json:"name" mapstructure:"name"`
	Kind string `json:"kind" mapstructure:"kind"`
	// Mass of the rigid body in kg. Zero spawns the entity without a body.
	Mass          float64    `json:"mass" mapstructure:"mass"`
	LinearDamping float64    `json:"linearDamping" mapstructure:"linearDamping"`
	Driver        DriverType `json:"driver" mapstructure:"driver"`
	DeadReckoning string     `json:"deadReckoning" mapstructure:"deadReckoning"`

	Hover     hover.Config        `json:"hover" mapstructure:"hover"`
	Kinematic kinematic.GoalState `json:"kinematic" mapstructure:"kinematic"`
	// Hitch is set for entities that can tow a trailer.
	Hitch *hitch.Config `json:"hitch,omitempty" mapstructure:"hitch"`

	Nodes map[string]NodeSpec `json:"nodes" mapstructure:"nodes"`
}

// DefaultArchetype returns an archetype with default tuning for every driver.
func DefaultArchetype(name string) Archetype {
	return Archetype{
		Name:      name,
		Kind:      entity.KindStatic.String(),
		Hover:     hover.DefaultConfig(),
		Kinematic: kinematic.DefaultGoalState(),
	}
}

// EntityKind resolves Kind.
func (a Archetype) EntityKind() (entity.Kind, error) {
	k, ok := entity.ParseKind(a.Kind)
	if !ok {
		return entity.KindStatic, fmt.Errorf("archetype %q: unknown kind %q", a.Name, a.Kind)
	}
	return k, nil
}

// Validate checks the combination of driver and body.
func (a Archetype) Validate() error {
	if _, err := a.EntityKind(); err != nil {
		return err
	}
	switch DriverType(strings.ToLower(string(a.Driver))) {
	case DriverNone, DriverKinematic:
	case DriverHover, DriverHybrid:
		if a.Mass <= 0 {
			return fmt.Errorf("archetype %q: driver %s needs a positive mass", a.Name, a.Driver)
		}
	default:
		return fmt.Errorf("archetype %q: unknown driver %q", a.Name, a.Driver)
	}
	if a.Mass < 0 {
		return fmt.Errorf("archetype %q: negative mass", a.Name)
	}
	return nil
}
