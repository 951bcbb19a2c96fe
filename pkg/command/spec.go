package command

import (
	"encoding/json"
	"fmt"
)

// Kind identifies one of the recognized shape families.
type Kind int

const (
	KindUnknown Kind = iota
	KindGear
	KindCube
	KindCylinder
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindGear:     "gear",
	KindCube:     "cube",
	KindCylinder: "cylinder",
}

// String returns the wire name of the kind ("gear", "cube", "cylinder").
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a wire name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if k != KindUnknown && name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("command: unknown shape kind %q", s)
}

// Spec is a fully resolved shape specification. The set of implementations
// is closed: Gear, Cube and Cylinder.
type Spec interface {
	Kind() Kind
	// Params returns every parameter as a float keyed by its wire name.
	Params() map[string]float64
	isSpec()
}

// Gear is a spur gear. BoreDiameter 0 means no center hole.
type Gear struct {
	Teeth        int     `json:"teeth"`
	Module       float64 `json:"module"`
	Width        float64 `json:"width"`
	BoreDiameter float64 `json:"bore_diameter"`
}

// DefaultGear returns the gear used when a command names no parameters.
func DefaultGear() Gear {
	return Gear{Teeth: 20, Module: 1.0, Width: 5.0, BoreDiameter: 3.0}
}

func (Gear) Kind() Kind { return KindGear }
func (Gear) isSpec()    {}

func (g Gear) Params() map[string]float64 {
	return map[string]float64{
		"teeth":         float64(g.Teeth),
		"module":        g.Module,
		"width":         g.Width,
		"bore_diameter": g.BoreDiameter,
	}
}

// Cube is an axis-aligned cube centered on the origin.
type Cube struct {
	Size float64 `json:"size"`
}

func DefaultCube() Cube { return Cube{Size: 10.0} }

func (Cube) Kind() Kind { return KindCube }
func (Cube) isSpec()    {}

func (c Cube) Params() map[string]float64 {
	return map[string]float64{"size": c.Size}
}

// Cylinder stands on the XY plane and extends Height along +Z.
type Cylinder struct {
	Radius float64 `json:"radius"`
	Height float64 `json:"height"`
}

func DefaultCylinder() Cylinder { return Cylinder{Radius: 5.0, Height: 20.0} }

func (Cylinder) Kind() Kind { return KindCylinder }
func (Cylinder) isSpec()    {}

func (c Cylinder) Params() map[string]float64 {
	return map[string]float64{"radius": c.Radius, "height": c.Height}
}

// Envelope is the JSON form of a Spec: {"type": "gear", "params": {...}}.
type Envelope struct {
	Type   string `json:"type"`
	Params Spec   `json:"params"`
}

// Wrap returns the JSON envelope for s.
func Wrap(s Spec) Envelope {
	return Envelope{Type: s.Kind().String(), Params: s}
}

// UnmarshalJSON decodes the params object according to the type field.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   string          `json:"type"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseKind(raw.Type)
	if err != nil {
		return err
	}

	var spec Spec
	switch kind {
	case KindGear:
		var g Gear
		err = json.Unmarshal(raw.Params, &g)
		spec = g
	case KindCube:
		var c Cube
		err = json.Unmarshal(raw.Params, &c)
		spec = c
	case KindCylinder:
		var c Cylinder
		err = json.Unmarshal(raw.Params, &c)
		spec = c
	}
	if err != nil {
		return fmt.Errorf("command: decoding %s params: %w", raw.Type, err)
	}

	e.Type = raw.Type
	e.Params = spec
	return nil
}
