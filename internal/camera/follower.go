// Package camera derives the cosmetic viewpoint from the tower height.
//
// The follower eases toward the active layer and adds a small
// multi-frequency wobble so the screen never holds perfectly still. Nothing
// here feeds back into cutting or scoring.
package camera

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/roach88/stacktower/internal/geometry"
)

// Config tunes the follower.
type Config struct {
	// Lerp is the fraction of the remaining distance covered per update.
	Lerp float64 `json:"lerp"`

	// JitterAmplitude is the peak wobble in world units.
	JitterAmplitude float64 `json:"jitter_amplitude"`

	// Lift keeps the camera above the focus point so the base sits lower.
	Lift float64 `json:"lift"`

	// Anchor is the resting camera position before following.
	Anchor geometry.Vec3 `json:"anchor"`
}

// DefaultConfig returns the standard camera tuning.
func DefaultConfig() Config {
	return Config{
		Lerp:            0.08,
		JitterAmplitude: 0.12,
		Lift:            6,
		Anchor:          geometry.Vec3{X: -10, Y: 20, Z: -10},
	}
}

// Validate checks the tuning.
func (c Config) Validate() error {
	if c.Lerp <= 0 || c.Lerp > 1 {
		return fmt.Errorf("camera lerp must be in (0, 1], got %v", c.Lerp)
	}
	if c.JitterAmplitude < 0 {
		return fmt.Errorf("camera jitter must be non-negative, got %v", c.JitterAmplitude)
	}
	return nil
}

// View is the camera pose for one frame.
type View struct {
	Position geometry.Vec3 `json:"position"`
	LookAt   geometry.Vec3 `json:"look_at"`
}

// Follower tracks the tower. Not safe for concurrent use.
type Follower struct {
	cfg  Config
	y    float64
	t    float64
	seed float64
}

// Option configures a Follower.
type Option func(*Follower)

// WithSeed fixes the jitter phase, for reproducible frames in tests.
func WithSeed(seed float64) Option {
	return func(f *Follower) {
		f.seed = seed
	}
}

// New creates a follower at the anchor with a random jitter phase.
func New(cfg Config, opts ...Option) *Follower {
	f := &Follower{cfg: cfg, y: cfg.Anchor.Y, seed: randomPhase()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Update eases toward focusY and advances the jitter clock by dt.
func (f *Follower) Update(focusY float64, dt time.Duration) View {
	desired := focusY + f.cfg.Lift
	f.y += (desired - f.y) * f.cfg.Lerp
	f.t += dt.Seconds()

	jx, jz := f.jitter()
	return View{
		Position: geometry.Vec3{X: f.cfg.Anchor.X + jx, Y: f.y, Z: f.cfg.Anchor.Z + jz},
		LookAt:   geometry.Vec3{Y: focusY},
	}
}

// Y returns the eased height without jitter.
func (f *Follower) Y() float64 {
	return f.y
}

// Reset returns the camera to its anchor with a fresh jitter phase.
func (f *Follower) Reset() {
	f.y = f.cfg.Anchor.Y
	f.t = 0
	f.seed = randomPhase()
}

func (f *Follower) jitter() (x, z float64) {
	a := f.cfg.JitterAmplitude
	t := f.t + f.seed
	x = math.Sin(t*1.7)*a + math.Cos(t*2.3)*a*0.5
	z = math.Cos(t*1.3)*a + math.Sin(t*2.1)*a*0.5
	return x, z
}

// randomPhase returns a phase in [0, 1000) from crypto/rand.
func randomPhase() float64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0
	}
	return float64(binary.LittleEndian.Uint64(b[:])>>11) / float64(1<<53) * 1000
}
