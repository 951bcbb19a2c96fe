package parts

import (
	"fmt"
	"math"

	"github.com/chazu/voxcad/pkg/kernel"
)

// holeOvershoot extends cutting tools past the faces they pierce.
const holeOvershoot = 1.0

// Flange is a round disk with a center hole and a bolt circle. A hole whose
// depth reaches the thickness goes through; a shallower one is a blind hole
// drilled from the top face.
type Flange struct {
	OuterDiameter      float64 `json:"outer_diameter"`
	Thickness          float64 `json:"thickness"`
	CenterHoleDiameter float64 `json:"center_hole_diameter"`
	CenterHoleDepth    float64 `json:"center_hole_depth"`
	BoltHoleDiameter   float64 `json:"bolt_hole_diameter"`
	BoltCircleDiameter float64 `json:"bolt_circle_diameter"`
	Bolts              int     `json:"bolts"`
	BoltHoleDepth      float64 `json:"bolt_hole_depth"`
}

// DefaultFlange returns a 100 mm flange with six M10 clearance holes.
func DefaultFlange() Flange {
	return Flange{
		OuterDiameter:      100,
		Thickness:          20,
		CenterHoleDiameter: 50,
		CenterHoleDepth:    25,
		BoltHoleDiameter:   10,
		BoltCircleDiameter: 80,
		Bolts:              6,
		BoltHoleDepth:      25,
	}
}

func (f *Flange) Name() string { return "flange" }

func (f *Flange) Validate() error {
	const name = "flange"
	if err := positive(name, "outer_diameter", f.OuterDiameter); err != nil {
		return err
	}
	if err := positive(name, "thickness", f.Thickness); err != nil {
		return err
	}
	if err := nonNegative(name, "center_hole_diameter", f.CenterHoleDiameter); err != nil {
		return err
	}
	if f.CenterHoleDiameter > 0 {
		if err := positive(name, "center_hole_depth", f.CenterHoleDepth); err != nil {
			return err
		}
		if f.CenterHoleDiameter >= f.OuterDiameter {
			return &Error{Part: name, Field: "center_hole_diameter", Value: f.CenterHoleDiameter,
				Reason: "must be smaller than outer_diameter"}
		}
	}
	if f.Bolts < 0 {
		return &Error{Part: name, Field: "bolts", Value: float64(f.Bolts), Reason: "must not be negative"}
	}
	if f.Bolts == 0 {
		return nil
	}
	if err := positive(name, "bolt_hole_diameter", f.BoltHoleDiameter); err != nil {
		return err
	}
	if err := positive(name, "bolt_hole_depth", f.BoltHoleDepth); err != nil {
		return err
	}
	if f.BoltCircleDiameter+f.BoltHoleDiameter >= f.OuterDiameter {
		return &Error{Part: name, Field: "bolt_circle_diameter", Value: f.BoltCircleDiameter,
			Reason: "bolt holes break through the rim"}
	}
	if f.BoltCircleDiameter-f.BoltHoleDiameter <= f.CenterHoleDiameter {
		return &Error{Part: name, Field: "bolt_circle_diameter", Value: f.BoltCircleDiameter,
			Reason: "bolt holes run into the center hole"}
	}
	return nil
}

// Build returns the flange standing on the XY plane.
func (f *Flange) Build(k kernel.Kernel) (kernel.Solid, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	disk, err := column(k, f.OuterDiameter, 0, f.Thickness, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("parts: flange disk: %w", err)
	}

	var cutters []kernel.Solid
	if f.CenterHoleDiameter > 0 {
		hole, err := f.hole(k, f.CenterHoleDiameter, f.CenterHoleDepth, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("parts: flange center hole: %w", err)
		}
		cutters = append(cutters, hole)
	}
	for i, p := range f.BoltPositions() {
		hole, err := f.hole(k, f.BoltHoleDiameter, f.BoltHoleDepth, p[0], p[1])
		if err != nil {
			return nil, fmt.Errorf("parts: flange bolt hole %d: %w", i, err)
		}
		cutters = append(cutters, hole)
	}
	if len(cutters) == 0 {
		return disk, nil
	}
	return k.Difference(disk, k.Union(cutters...)), nil
}

// hole drills from the top face down to depth, or through the whole disk.
func (f *Flange) hole(k kernel.Kernel, diameter, depth, x, y float64) (kernel.Solid, error) {
	bottom := -holeOvershoot
	if depth < f.Thickness {
		bottom = f.Thickness - depth
	}
	return column(k, diameter, bottom, f.Thickness+holeOvershoot, x, y)
}

// BoltPositions returns the XY centers of the bolt holes, starting on +X and
// proceeding counter-clockwise.
func (f *Flange) BoltPositions() [][2]float64 {
	r := f.BoltCircleDiameter / 2
	out := make([][2]float64, f.Bolts)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(f.Bolts)
		out[i] = [2]float64{r * math.Cos(a), r * math.Sin(a)}
	}
	return out
}
