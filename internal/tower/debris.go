package tower

import (
	"time"

	"github.com/roach88/stacktower/internal/geometry"
)

// Cosmetic fall constants, in world units per second.
const (
	debrisGravity   = 14.4
	debrisStartFall = 3.0
	debrisDrift     = 1.5
	debrisFloor     = -20.0
)

// Fragment is a falling piece of debris. It has no effect on score.
type Fragment struct {
	geometry.Box
	Velocity geometry.Vec3 `json:"velocity"`
}

// Debris tracks falling fragments until they leave the scene.
//
// The fall is an approximation: constant gravity, outward drift and no
// collisions.
type Debris struct {
	pieces []Fragment
}

// Spawn adds a fragment drifting away from the tower along axis in the
// direction of dir's sign.
func (d *Debris) Spawn(b geometry.Box, axis geometry.Axis, dir float64) {
	var vel geometry.Vec3
	switch {
	case dir > 0:
		vel = vel.WithAlong(axis, debrisDrift)
	case dir < 0:
		vel = vel.WithAlong(axis, -debrisDrift)
	}
	vel.Y = -debrisStartFall
	d.pieces = append(d.pieces, Fragment{Box: b, Velocity: vel})
}

// Advance integrates every fragment over dt and culls those below the floor.
func (d *Debris) Advance(dt time.Duration) {
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}

	kept := d.pieces[:0]
	for _, f := range d.pieces {
		f.Position.X += f.Velocity.X * sec
		f.Position.Y += f.Velocity.Y * sec
		f.Position.Z += f.Velocity.Z * sec
		f.Velocity.Y -= debrisGravity * sec
		if f.Position.Y >= debrisFloor {
			kept = append(kept, f)
		}
	}
	d.pieces = kept
}

// Pieces returns a copy of the live fragments.
func (d *Debris) Pieces() []Fragment {
	out := make([]Fragment, len(d.pieces))
	copy(out, d.pieces)
	return out
}

// Len returns the number of live fragments.
func (d *Debris) Len() int {
	return len(d.pieces)
}

// Reset discards every fragment.
func (d *Debris) Reset() {
	d.pieces = nil
}
