// Package kernel defines the abstract geometry kernel interface.
// Implementations provide solid modeling and boolean operations behind
// this interface so builders and part definitions never depend on a
// particular CAD library.
//
// Every primitive is created centered on the origin. Callers position
// solids with Translate and Rotate.
package kernel

import "errors"

// ErrEmptyMesh is returned when meshing a solid yields no triangles.
var ErrEmptyMesh = errors.New("kernel: mesh is empty")

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// GearProfile describes an involute spur gear cross-section.
type GearProfile struct {
	Teeth  int
	Module float64
	// PressureAngle is in degrees. Zero selects the standard 20 degrees.
	PressureAngle float64
	// Backlash and Clearance are in mm.
	Backlash  float64
	Clearance float64
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives. Sizes must be positive; invalid sizes return an error.
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)
	// Gear extrudes an involute gear profile to the given width along Z.
	Gear(p GearProfile, width float64) (Solid, error)
	// Extrude builds a closed XY polygon into a prism of the given height.
	// A non-zero twist (degrees) rotates the top face relative to the bottom.
	Extrude(profile [][2]float64, height, twist float64) (Solid, error)

	// Boolean operations
	Union(solids ...Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
