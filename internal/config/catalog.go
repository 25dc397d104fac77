package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"

	"github.com/simcore/locomotion/internal/hitch"
	"github.com/simcore/locomotion/internal/munition"
	"github.com/simcore/locomotion/internal/sim"
)

// GetArchetypes decodes every entry under archetypes.* on top of the default
// tuning, sorted by name.
func GetArchetypes() ([]sim.Archetype, error) {
	raw := viper.GetStringMap("archetypes")
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]sim.Archetype, 0, len(names))
	for _, name := range names {
		key := "archetypes." + name
		a := sim.DefaultArchetype(name)
		if viper.IsSet(key + ".hitch") {
			hc := hitch.DefaultConfig()
			a.Hitch = &hc
		}
		if err := viper.UnmarshalKey(key, &a); err != nil {
			return nil, fmt.Errorf("decode archetype %s: %w", name, err)
		}
		if a.Name == "" {
			a.Name = name
		}
		out = append(out, a)
	}
	return out, nil
}

// GetMunitions builds the munition table from munitions.*. Entries without a
// name take their key.
func GetMunitions() (*munition.Table, error) {
	raw := viper.GetStringMap("munitions")
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]munition.Damage, 0, len(names))
	for _, name := range names {
		var d munition.Damage
		if err := viper.UnmarshalKey("munitions."+name, &d); err != nil {
			return nil, fmt.Errorf("decode munition %s: %w", name, err)
		}
		if d.Name == "" {
			d.Name = name
		}
		defs = append(defs, d)
	}
	return munition.NewTable(defs)
}

// GetScenario decodes the scenario.* section.
func GetScenario() (sim.Scenario, error) {
	var sc sim.Scenario
	if err := viper.UnmarshalKey("scenario", &sc); err != nil {
		return sim.Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.Name == "" {
		sc.Name = "default"
	}
	return sc, nil
}
