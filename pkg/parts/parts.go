// Package parts defines the fixed parametric parts the service and the
// partgen tool can produce without a spoken command: a bolted flange, a
// perforated plate, an involute spur gear and a cycloidal gear.
//
// Every part has sensible defaults, validates its own parameters and builds
// through the kernel abstraction. Parts stand on the XY plane unless noted.
package parts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/voxcad/pkg/kernel"
)

// Part is a parametric solid.
type Part interface {
	// Name is the registry name, e.g. "flange".
	Name() string
	Validate() error
	Build(k kernel.Kernel) (kernel.Solid, error)
}

// Error reports an invalid part parameter.
type Error struct {
	Part   string
	Field  string
	Value  float64
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parts: %s %s=%g: %s", e.Part, e.Field, e.Value, e.Reason)
}

func positive(part, field string, v float64) error {
	if v <= 0 {
		return &Error{Part: part, Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

func nonNegative(part, field string, v float64) error {
	if v < 0 {
		return &Error{Part: part, Field: field, Value: v, Reason: "must not be negative"}
	}
	return nil
}

var registry = map[string]func() Part{
	"flange":         func() Part { p := DefaultFlange(); return &p },
	"plate":          func() Part { p := DefaultPlate(); return &p },
	"spur-gear":      func() Part { p := DefaultSpurGear(); return &p },
	"cycloidal-gear": func() Part { p := DefaultCycloidalGear(); return &p },
}

// Names returns the registered part names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the named part with its default parameters.
func New(name string) (Part, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("parts: unknown part %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Params returns the parameters of p keyed by their snake_case names.
func Params(p Part) (map[string]float64, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("parts: %s: %w", p.Name(), err)
	}
	var out map[string]float64
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parts: %s: %w", p.Name(), err)
	}
	return out, nil
}

// Apply overrides parameters of p. Keys may be snake_case or kebab-case.
// Unknown keys and fractional values for integer parameters are errors.
// The part is validated after the overrides are applied.
func Apply(p Part, params map[string]float64) error {
	if len(params) == 0 {
		return p.Validate()
	}
	normalized := make(map[string]float64, len(params))
	for k, v := range params {
		normalized[strings.ReplaceAll(k, "-", "_")] = v
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("parts: %s: %w", p.Name(), err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return fmt.Errorf("parts: %s: %w", p.Name(), err)
	}
	return p.Validate()
}

// column returns a cylinder of the given diameter spanning bottom..top at
// (x, y).
func column(k kernel.Kernel, diameter, bottom, top, x, y float64) (kernel.Solid, error) {
	c, err := k.Cylinder(top-bottom, diameter/2)
	if err != nil {
		return nil, err
	}
	return k.Translate(c, x, y, (bottom+top)/2), nil
}
