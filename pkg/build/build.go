// Package build turns parsed shape specifications into kernel solids.
//
// Cubes are centered on the origin. Gears and cylinders stand on the XY
// plane and extend along +Z, matching what the browser viewer expects.
package build

import (
	"fmt"

	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/kernel"
)

// Gear cutting allowances in mm.
const (
	GearClearance = 0.1
	GearBacklash  = 0.05
)

// MinTeeth is the smallest tooth count that yields a usable involute gear.
const MinTeeth = 3

// Error reports a parameter that cannot be built.
type Error struct {
	Kind   command.Kind
	Field  string
	Value  float64
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("build: %s %s=%g: %s", e.Kind, e.Field, e.Value, e.Reason)
}

// RootDiameter returns the diameter of the root circle the kernel cuts: the
// dedendum is one module plus GearClearance.
func RootDiameter(teeth int, module float64) float64 {
	return module*float64(teeth) - 2*(module+GearClearance)
}

// Validate checks s for infeasible parameters without touching a kernel.
func Validate(s command.Spec) error {
	switch s := s.(type) {
	case command.Gear:
		return validateGear(s)
	case command.Cube:
		return positive(command.KindCube, "size", s.Size)
	case command.Cylinder:
		if err := positive(command.KindCylinder, "radius", s.Radius); err != nil {
			return err
		}
		return positive(command.KindCylinder, "height", s.Height)
	case nil:
		return fmt.Errorf("build: nil spec")
	default:
		return fmt.Errorf("build: unsupported spec %T", s)
	}
}

func positive(kind command.Kind, field string, v float64) error {
	if v <= 0 {
		return &Error{Kind: kind, Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

func validateGear(g command.Gear) error {
	if g.Teeth < MinTeeth {
		return &Error{
			Kind: command.KindGear, Field: "teeth", Value: float64(g.Teeth),
			Reason: fmt.Sprintf("need at least %d teeth", MinTeeth),
		}
	}
	if err := positive(command.KindGear, "module", g.Module); err != nil {
		return err
	}
	if err := positive(command.KindGear, "width", g.Width); err != nil {
		return err
	}
	if g.BoreDiameter < 0 {
		return &Error{Kind: command.KindGear, Field: "bore_diameter", Value: g.BoreDiameter, Reason: "must not be negative"}
	}
	if root := RootDiameter(g.Teeth, g.Module); g.BoreDiameter >= root {
		return &Error{
			Kind: command.KindGear, Field: "bore_diameter", Value: g.BoreDiameter,
			Reason: fmt.Sprintf("must be smaller than root diameter %g", root),
		}
	}
	return nil
}

// Build validates s and constructs its solid with k.
func Build(k kernel.Kernel, s command.Spec) (kernel.Solid, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	switch s := s.(type) {
	case command.Gear:
		return buildGear(k, s)
	case command.Cube:
		solid, err := k.Box(s.Size, s.Size, s.Size)
		if err != nil {
			return nil, fmt.Errorf("build: cube: %w", err)
		}
		return solid, nil
	case command.Cylinder:
		solid, err := k.Cylinder(s.Height, s.Radius)
		if err != nil {
			return nil, fmt.Errorf("build: cylinder: %w", err)
		}
		return k.Translate(solid, 0, 0, s.Height/2), nil
	}
	return nil, fmt.Errorf("build: unsupported spec %T", s)
}

func buildGear(k kernel.Kernel, g command.Gear) (kernel.Solid, error) {
	solid, err := k.Gear(kernel.GearProfile{
		Teeth:     g.Teeth,
		Module:    g.Module,
		Backlash:  GearBacklash,
		Clearance: GearClearance,
	}, g.Width)
	if err != nil {
		return nil, fmt.Errorf("build: gear: %w", err)
	}

	if g.BoreDiameter > 0 {
		// Overshoot both faces so the hole cuts cleanly through.
		bore, err := k.Cylinder(g.Width+2, g.BoreDiameter/2)
		if err != nil {
			return nil, fmt.Errorf("build: gear bore: %w", err)
		}
		solid = k.Difference(solid, bore)
	}
	return k.Translate(solid, 0, 0, g.Width/2), nil
}
