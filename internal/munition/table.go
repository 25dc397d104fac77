package munition

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownMunition is returned for a name missing from the table.
var ErrUnknownMunition = errors.New("unknown munition")

// Table holds the damage data of every known munition, keyed by name.
type Table struct {
	byName map[string]*Damage
}

// NewTable validates defs and indexes them by name. Names are case-insensitive
// and must be unique.
func NewTable(defs []Damage) (*Table, error) {
	t := &Table{byName: make(map[string]*Damage, len(defs))}
	var errs []error
	for i := range defs {
		d := defs[i]
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		key := strings.ToLower(d.Name)
		if _, dup := t.byName[key]; dup {
			errs = append(errs, fmt.Errorf("munition %q defined twice", d.Name))
			continue
		}
		t.byName[key] = &d
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("loading munition table: %w", err)
	}
	return t, nil
}

// Get returns the named munition.
func (t *Table) Get(name string) (*Damage, error) {
	if t != nil {
		if d, ok := t.byName[strings.ToLower(name)]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMunition, name)
}

// Names lists the munitions in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.byName))
	for _, d := range t.byName {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// Len is the number of munitions.
func (t *Table) Len() int {
	return len(t.byName)
}
