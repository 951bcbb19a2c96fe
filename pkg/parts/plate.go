package parts

import (
	"fmt"
	"math"

	"github.com/chazu/voxcad/pkg/kernel"
)

// Plate is a rectangular mounting plate, centered on the origin, with a
// center bore and a through hole near each corner.
type Plate struct {
	Length             float64 `json:"length"`
	Width              float64 `json:"width"`
	Height             float64 `json:"height"`
	CenterHoleDiameter float64 `json:"center_hole_diameter"`
	CornerHoleDiameter float64 `json:"corner_hole_diameter"`
	// Margin is the distance from each edge to the corner hole centers.
	Margin float64 `json:"margin"`
}

// DefaultPlate returns an 80x60x10 plate with a 22 mm bore.
func DefaultPlate() Plate {
	return Plate{
		Length:             80,
		Width:              60,
		Height:             10,
		CenterHoleDiameter: 22,
		CornerHoleDiameter: 5,
		Margin:             10,
	}
}

func (p *Plate) Name() string { return "plate" }

func (p *Plate) Validate() error {
	const name = "plate"
	for _, f := range []struct {
		field string
		v     float64
	}{
		{"length", p.Length},
		{"width", p.Width},
		{"height", p.Height},
	} {
		if err := positive(name, f.field, f.v); err != nil {
			return err
		}
	}
	if err := nonNegative(name, "center_hole_diameter", p.CenterHoleDiameter); err != nil {
		return err
	}
	if err := nonNegative(name, "corner_hole_diameter", p.CornerHoleDiameter); err != nil {
		return err
	}
	if p.CenterHoleDiameter >= math.Min(p.Length, p.Width) {
		return &Error{Part: name, Field: "center_hole_diameter", Value: p.CenterHoleDiameter,
			Reason: "does not fit the plate"}
	}
	if p.CornerHoleDiameter > 0 && p.CornerHoleDiameter/2 >= p.Margin {
		return &Error{Part: name, Field: "margin", Value: p.Margin,
			Reason: "corner holes break through the edge"}
	}
	if 2*p.Margin >= math.Min(p.Length, p.Width) {
		return &Error{Part: name, Field: "margin", Value: p.Margin,
			Reason: "corner holes overlap"}
	}
	return nil
}

// Build returns the plate centered on the origin.
func (p *Plate) Build(k kernel.Kernel) (kernel.Solid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	plate, err := k.Box(p.Length, p.Width, p.Height)
	if err != nil {
		return nil, fmt.Errorf("parts: plate: %w", err)
	}

	top := p.Height/2 + holeOvershoot
	var cutters []kernel.Solid
	if p.CenterHoleDiameter > 0 {
		hole, err := column(k, p.CenterHoleDiameter, -top, top, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("parts: plate center hole: %w", err)
		}
		cutters = append(cutters, hole)
	}
	if p.CornerHoleDiameter > 0 {
		for _, c := range p.CornerPositions() {
			hole, err := column(k, p.CornerHoleDiameter, -top, top, c[0], c[1])
			if err != nil {
				return nil, fmt.Errorf("parts: plate corner hole: %w", err)
			}
			cutters = append(cutters, hole)
		}
	}
	if len(cutters) == 0 {
		return plate, nil
	}
	return k.Difference(plate, k.Union(cutters...)), nil
}

// CornerPositions returns the corner hole centers.
func (p *Plate) CornerPositions() [4][2]float64 {
	x := p.Length/2 - p.Margin
	y := p.Width/2 - p.Margin
	return [4][2]float64{{x, y}, {x, -y}, {-x, y}, {-x, -y}}
}
