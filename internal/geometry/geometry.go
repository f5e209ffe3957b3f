package geometry

import (
	"fmt"
	"math"
)

// Axis is one of the two horizontal axes a layer can travel along.
type Axis string

const (
	AxisX Axis = "x"
	AxisZ Axis = "z"
)

// Other returns the perpendicular horizontal axis.
func (a Axis) Other() Axis {
	if a == AxisX {
		return AxisZ
	}
	return AxisX
}

// Valid reports whether a is a known axis.
func (a Axis) Valid() bool {
	return a == AxisX || a == AxisZ
}

// Default tolerances.
const (
	// DefaultPerfectionTolerance is the largest offset still counted as a
	// perfect placement.
	DefaultPerfectionTolerance = 0.1

	// DefaultDebrisEpsilon is the minimum debris dimension worth spawning.
	DefaultDebrisEpsilon = 0.03
)

// Vec3 is a point in world space. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Along returns the coordinate on the given horizontal axis.
func (v Vec3) Along(a Axis) float64 {
	if a == AxisX {
		return v.X
	}
	return v.Z
}

// WithAlong returns a copy of v with the coordinate on axis a replaced.
func (v Vec3) WithAlong(a Axis, val float64) Vec3 {
	if a == AxisX {
		v.X = val
	} else {
		v.Z = val
	}
	return v
}

// Box is a rectangular prism travelling along Axis.
type Box struct {
	Position Vec3    `json:"position"`
	Width    float64 `json:"width"` // extent on X
	Depth    float64 `json:"depth"` // extent on Z
	Axis     Axis    `json:"axis"`
}

// Size returns the extent along the box's own axis.
func (b Box) Size() float64 {
	return b.SizeAlong(b.Axis)
}

// SizeAlong returns the extent along axis a.
func (b Box) SizeAlong(a Axis) float64 {
	if a == AxisX {
		return b.Width
	}
	return b.Depth
}

// Area returns the horizontal footprint.
func (b Box) Area() float64 {
	return b.Width * b.Depth
}

// withSizeAlong returns a copy of b with the extent on axis a replaced.
func (b Box) withSizeAlong(a Axis, size float64) Box {
	if a == AxisX {
		b.Width = size
	} else {
		b.Depth = size
	}
	return b
}

func (b Box) String() string {
	return fmt.Sprintf("box{axis=%s pos=(%.3f,%.3f,%.3f) w=%.3f d=%.3f}",
		b.Axis, b.Position.X, b.Position.Y, b.Position.Z, b.Width, b.Depth)
}

// Tolerance holds the thresholds used by CutLayer.
type Tolerance struct {
	// Perfection is the offset below which a placement counts as perfect.
	Perfection float64

	// DebrisMin is the minimum debris dimension on both axes.
	DebrisMin float64
}

// DefaultTolerance returns the standard tolerances.
func DefaultTolerance() Tolerance {
	return Tolerance{
		Perfection: DefaultPerfectionTolerance,
		DebrisMin:  DefaultDebrisEpsilon,
	}
}

// Cut is the outcome of a successful cut.
type Cut struct {
	// Layer is the moving layer trimmed to the overlap region.
	Layer Box

	// Debris is the overhang slice. Only meaningful when HasDebris is true.
	Debris    Box
	HasDebris bool

	Delta   float64 // signed offset from the base along the axis
	Diff    float64 // |Delta|
	Overlap float64 // retained along-axis size

	// Perfect is true when Diff is below the perfection tolerance.
	Perfect bool
}

// CutLayer cuts top against base along top's axis.
//
// Returns ok=false on a miss (overlap <= 0). A miss produces no cut object and
// the caller must end the game.
func CutLayer(top, base Box, tol Tolerance) (Cut, bool) {
	axis := top.Axis
	delta := top.Position.Along(axis) - base.Position.Along(axis)
	size := top.SizeAlong(axis)
	diff := math.Abs(delta)
	overlap := size - diff

	if overlap <= 0 {
		return Cut{Delta: delta, Diff: diff, Overlap: overlap}, false
	}

	layer := top.withSizeAlong(axis, overlap)
	center := top.Position.Along(axis) - delta/2
	layer.Position = layer.Position.WithAlong(axis, center)

	cut := Cut{
		Layer:   layer,
		Delta:   delta,
		Diff:    diff,
		Overlap: overlap,
		Perfect: diff < tol.Perfection,
	}

	shift := (overlap/2 + diff/2) * sign(delta)
	debris := layer.withSizeAlong(axis, diff)
	debris.Position = layer.Position.WithAlong(axis, center+shift)
	if debris.Width > tol.DebrisMin && debris.Depth > tol.DebrisMin {
		cut.Debris = debris
		cut.HasDebris = true
	}

	return cut, true
}

// NextLayer returns the layer that starts moving after placed was cut.
//
// The new layer travels on the other axis, starts at spawn on that axis,
// keeps placed's coordinate on placed's axis and inherits its footprint.
// Y is left to the caller, which owns layer heights.
func NextLayer(placed Box, spawn float64) Box {
	next := placed
	next.Axis = placed.Axis.Other()
	next.Position = placed.Position.WithAlong(next.Axis, spawn)
	return next
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
