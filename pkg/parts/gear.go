package parts

import (
	"fmt"
	"math"

	"github.com/chazu/voxcad/pkg/build"
	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/kernel"
)

// SpurGear is an involute spur gear with an optional bore.
type SpurGear struct {
	Teeth        int     `json:"teeth"`
	Module       float64 `json:"module"`
	Width        float64 `json:"width"`
	BoreDiameter float64 `json:"bore_diameter"`
}

// DefaultSpurGear returns a 20 tooth, module 1 gear with a 5 mm bore.
func DefaultSpurGear() SpurGear {
	return SpurGear{Teeth: 20, Module: 1, Width: 10, BoreDiameter: 5}
}

func (g *SpurGear) Name() string { return "spur-gear" }

func (g *SpurGear) spec() command.Gear {
	return command.Gear{Teeth: g.Teeth, Module: g.Module, Width: g.Width, BoreDiameter: g.BoreDiameter}
}

func (g *SpurGear) Validate() error {
	return build.Validate(g.spec())
}

// Build builds the gear the same way a spoken gear command is built.
func (g *SpurGear) Build(k kernel.Kernel) (kernel.Solid, error) {
	return build.Build(k, g.spec())
}

// CycloidalGear is a twisted gear whose profile alternates epicycloid and
// hypocycloid arcs rolled by a circle of radius R2 around a base circle of
// radius R1. R1/R2 lobes are produced when the ratio is an integer.
type CycloidalGear struct {
	R1     float64 `json:"r1"`
	R2     float64 `json:"r2"`
	Height float64 `json:"height"`
	// Twist is the rotation of the top face in degrees.
	Twist        float64 `json:"twist"`
	HoleDiameter float64 `json:"hole_diameter"`
	// Samples is the number of profile points.
	Samples int `json:"samples"`
}

// DefaultCycloidalGear returns a six lobe gear twisted by 30 degrees.
func DefaultCycloidalGear() CycloidalGear {
	return CycloidalGear{R1: 6, R2: 1, Height: 15, Twist: 30, HoleDiameter: 4, Samples: 360}
}

func (g *CycloidalGear) Name() string { return "cycloidal-gear" }

func (g *CycloidalGear) Validate() error {
	const name = "cycloidal-gear"
	if err := positive(name, "r2", g.R2); err != nil {
		return err
	}
	if g.R1 <= g.R2 {
		return &Error{Part: name, Field: "r1", Value: g.R1, Reason: "must be larger than r2"}
	}
	if err := positive(name, "height", g.Height); err != nil {
		return err
	}
	if err := nonNegative(name, "hole_diameter", g.HoleDiameter); err != nil {
		return err
	}
	if g.HoleDiameter/2 >= g.R1-2*g.R2 {
		return &Error{Part: name, Field: "hole_diameter", Value: g.HoleDiameter,
			Reason: fmt.Sprintf("must be smaller than the inner diameter %g", 2*(g.R1-2*g.R2))}
	}
	if g.Samples < 16 {
		return &Error{Part: name, Field: "samples", Value: float64(g.Samples), Reason: "need at least 16"}
	}
	return nil
}

// Profile samples the closed gear outline once around.
func (g *CycloidalGear) Profile() [][2]float64 {
	pts := make([][2]float64, g.Samples)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / float64(g.Samples)
		pts[i] = cycloid(t, g.R1, g.R2)
	}
	return pts
}

// cycloid switches between the outer and inner rolling curve every lobe.
func cycloid(t, r1, r2 float64) [2]float64 {
	lobe := math.Floor(t / (2 * math.Pi) * (r1 / r2))
	if int(lobe)%2 == 0 {
		return epicycloid(t, r1, r2)
	}
	return hypocycloid(t, r1, r2)
}

func hypocycloid(t, r1, r2 float64) [2]float64 {
	a := r1/r2*t - t
	return [2]float64{
		(r1-r2)*math.Cos(t) + r2*math.Cos(a),
		(r1-r2)*math.Sin(t) - r2*math.Sin(a),
	}
}

func epicycloid(t, r1, r2 float64) [2]float64 {
	a := r1/r2*t + t
	return [2]float64{
		(r1+r2)*math.Cos(t) - r2*math.Cos(a),
		(r1+r2)*math.Sin(t) - r2*math.Sin(a),
	}
}

// Build returns the twisted gear standing on the XY plane.
func (g *CycloidalGear) Build(k kernel.Kernel) (kernel.Solid, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	body, err := k.Extrude(g.Profile(), g.Height, g.Twist)
	if err != nil {
		return nil, fmt.Errorf("parts: cycloidal gear: %w", err)
	}
	body = k.Translate(body, 0, 0, g.Height/2)
	if g.HoleDiameter == 0 {
		return body, nil
	}
	hole, err := column(k, g.HoleDiameter, -holeOvershoot, g.Height+holeOvershoot, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("parts: cycloidal gear hole: %w", err)
	}
	return k.Difference(body, hole), nil
}
