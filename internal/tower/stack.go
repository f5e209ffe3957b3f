// Package tower owns the ordered record of placed layers.
//
// A Stack always starts with two layers: the immovable foundation at index 0
// and the first active layer. The active layer is the last element and is
// the only one that moves; everything below it is static once placed.
//
// INVARIANTS:
//   - Layer.Position.Y == Layer.Seq * BoxHeight and never changes
//   - A layer is cut at most once, when it stops being the active layer
//   - Len() >= 2 until Drop removes the missed layer at game over
package tower

import (
	"math"
	"time"

	"github.com/roach88/stacktower/internal/geometry"
)

// Layer is one placed or moving segment of the tower.
type Layer struct {
	geometry.Box

	// Seq is the layer's height index. The foundation is 0.
	Seq int `json:"seq"`

	// Cut is true once the layer has been trimmed and superseded.
	Cut bool `json:"cut"`
}

// Stack is the ordered, mutable record of layers.
//
// Stack is not safe for concurrent use; it is owned by the game machine,
// which only mutates it from the single event loop.
type Stack struct {
	profile Profile
	layers  []Layer

	// oscillation state of the active layer
	phase  float64 // seconds since the active layer spawned
	offset float64 // phase offset so motion starts near the spawn point
}

// New creates the foundation and the first active layer for p.
func New(p Profile) *Stack {
	s := &Stack{profile: p}

	s.push(geometry.Box{
		Width: p.BaseSize,
		Depth: p.BaseSize,
		Axis:  geometry.AxisZ,
	})
	s.push(geometry.Box{
		Position: geometry.Vec3{X: p.FirstSpawn},
		Width:    p.BaseSize,
		Depth:    p.BaseSize,
		Axis:     geometry.AxisX,
	})

	return s
}

// Profile returns the profile the stack was built with.
func (s *Stack) Profile() Profile {
	return s.profile
}

// Len returns the number of layers, including foundation and active layer.
func (s *Stack) Len() int {
	return len(s.layers)
}

// Score is the number of successfully placed layers: Len()-2, floored at 0.
func (s *Stack) Score() int {
	if len(s.layers) < 2 {
		return 0
	}
	return len(s.layers) - 2
}

// Active returns the moving layer.
func (s *Stack) Active() Layer {
	return s.layers[len(s.layers)-1]
}

// Below returns the layer beneath the active one.
func (s *Stack) Below() Layer {
	return s.layers[len(s.layers)-2]
}

// Layers returns a copy of all layers in height order.
func (s *Stack) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Height returns the Y coordinate of the active layer.
func (s *Stack) Height() float64 {
	if len(s.layers) == 0 {
		return 0
	}
	return s.layers[len(s.layers)-1].Position.Y
}

// Advance moves the active layer along its axis by dt of oscillation.
//
// Motion is a pure function of accumulated dt, so identical tick sequences
// produce identical positions.
func (s *Stack) Advance(dt time.Duration) {
	if len(s.layers) < 2 || dt <= 0 {
		return
	}
	s.phase += dt.Seconds()
	s.applyPhase()
}

// SetActivePosition places the active layer at pos on its axis.
// Used when the host reports the frame position an input was made against.
func (s *Stack) SetActivePosition(pos float64) {
	if len(s.layers) < 2 {
		return
	}
	top := &s.layers[len(s.layers)-1]
	top.Position = top.Position.WithAlong(top.Axis, pos)
}

// Place cuts the active layer against the layer below.
//
// On a hit the active layer shrinks, is marked Cut, and a new active layer
// spawns on the other axis. On a miss nothing changes and ok is false.
func (s *Stack) Place(tol geometry.Tolerance) (geometry.Cut, bool) {
	if len(s.layers) < 2 {
		return geometry.Cut{}, false
	}

	top := s.Active()
	cut, ok := geometry.CutLayer(top.Box, s.Below().Box, tol)
	if !ok {
		return cut, false
	}

	placed := &s.layers[len(s.layers)-1]
	placed.Box = cut.Layer
	placed.Cut = true

	s.push(geometry.NextLayer(cut.Layer, s.profile.Spawn))
	return cut, true
}

// Drop removes the active layer, which falls away after a miss.
func (s *Stack) Drop() (Layer, bool) {
	if len(s.layers) < 2 {
		return Layer{}, false
	}
	top := s.layers[len(s.layers)-1]
	s.layers = s.layers[:len(s.layers)-1]
	return top, true
}

// push appends box as the new top layer with its height fixed by index.
func (s *Stack) push(box geometry.Box) {
	seq := len(s.layers)
	box.Position.Y = float64(seq) * s.profile.BoxHeight
	s.layers = append(s.layers, Layer{Box: box, Seq: seq})

	s.phase = 0
	start := box.Position.Along(box.Axis) / s.profile.Amplitude
	s.offset = math.Asin(math.Max(-1, math.Min(1, start)))
}

func (s *Stack) applyPhase() {
	top := &s.layers[len(s.layers)-1]
	pos := s.profile.Amplitude * math.Sin(s.profile.Speed*s.phase+s.offset)
	top.Position = top.Position.WithAlong(top.Axis, pos)
}
