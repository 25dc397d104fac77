// Package property exposes the tunable fields of a component by name so that
// tools and scenario files can read and write them without knowing the type.
package property

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

var (
	// ErrUnknownField is returned when no field has the requested name.
	ErrUnknownField = errors.New("unknown property")
	// ErrReadOnly is returned when setting a field that has no setter.
	ErrReadOnly = errors.New("read-only property")
)

// Field is one named accessor pair.
type Field struct {
	Name string
	Get  func() any
	Set  func(any) error
}

// Set is an ordered collection of fields. Names are matched case-insensitively.
type Set struct {
	fields []Field
	byName map[string]int
}

// NewSet builds a Set. Later fields with a duplicate name replace earlier ones.
func NewSet(fields ...Field) *Set {
	s := &Set{byName: make(map[string]int, len(fields))}
	for _, f := range fields {
		s.Add(f)
	}
	return s
}

// Add registers a field.
func (s *Set) Add(f Field) {
	key := strings.ToLower(f.Name)
	if i, ok := s.byName[key]; ok {
		s.fields[i] = f
		return
	}
	s.byName[key] = len(s.fields)
	s.fields = append(s.fields, f)
}

// Names lists the field names in registration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Get returns the current value of the named field.
func (s *Set) Get(name string) (any, error) {
	f, ok := s.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return f.Get(), nil
}

// Set converts value to the field's type and stores it.
func (s *Set) Set(name string, value any) error {
	f, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if f.Set == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	if err := f.Set(value); err != nil {
		return fmt.Errorf("setting %s: %w", f.Name, err)
	}
	return nil
}

// Apply sets every entry of values, in name order, and joins the failures.
func (s *Set) Apply(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if err := s.Set(k, values[k]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns all current values keyed by field name.
func (s *Set) Snapshot() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		out[f.Name] = f.Get()
	}
	return out
}

func (s *Set) lookup(name string) (Field, bool) {
	i, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Float64 binds a float64 variable.
func Float64(name string, p *float64) Field {
	return Field{
		Name: name,
		Get:  func() any { return *p },
		Set: func(v any) error {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return err
			}
			*p = f
			return nil
		},
	}
}

// Bool binds a bool variable.
func Bool(name string, p *bool) Field {
	return Field{
		Name: name,
		Get:  func() any { return *p },
		Set: func(v any) error {
			b, err := cast.ToBoolE(v)
			if err != nil {
				return err
			}
			*p = b
			return nil
		},
	}
}

// String binds a string variable.
func String(name string, p *string) Field {
	return Field{
		Name: name,
		Get:  func() any { return *p },
		Set: func(v any) error {
			s, err := cast.ToStringE(v)
			if err != nil {
				return err
			}
			*p = s
			return nil
		},
	}
}

// Func binds a getter and a typed setter; the value is cast to T first.
func Func[T any](name string, get func() T, set func(T)) Field {
	f := Field{
		Name: name,
		Get:  func() any { return get() },
	}
	if set != nil {
		f.Set = func(v any) error {
			t, err := castTo[T](v)
			if err != nil {
				return err
			}
			set(t)
			return nil
		}
	}
	return f
}

// ReadOnly exposes a computed value.
func ReadOnly(name string, get func() any) Field {
	return Field{Name: name, Get: get}
}

func castTo[T any](v any) (T, error) {
	var zero T
	if t, ok := v.(T); ok {
		return t, nil
	}
	var out any
	var err error
	switch any(zero).(type) {
	case float64:
		out, err = cast.ToFloat64E(v)
	case int:
		out, err = cast.ToIntE(v)
	case bool:
		out, err = cast.ToBoolE(v)
	case string:
		out, err = cast.ToStringE(v)
	case []float64:
		out, err = toFloatSlice(v)
	default:
		return zero, fmt.Errorf("cannot convert %T to %T", v, zero)
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

func toFloatSlice(v any) ([]float64, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, it := range items {
		f, err := cast.ToFloat64E(it)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
