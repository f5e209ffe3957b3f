// Package config loads game tuning and server settings.
//
// Tuning comes from an optional CUE file checked against the embedded
// schema.cue. Server settings come from STACKTOWER_* environment variables.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/stacktower/internal/attest"
	"github.com/roach88/stacktower/internal/camera"
	"github.com/roach88/stacktower/internal/game"
	"github.com/roach88/stacktower/internal/geometry"
	"github.com/roach88/stacktower/internal/sentinel"
	"github.com/roach88/stacktower/internal/tower"
)

//go:embed schema.cue
var schemaCUE string

// Schema returns the CUE schema tuning files are validated against.
func Schema() string {
	return schemaCUE
}

// Tuning is every gameplay and anti-cheat constant.
type Tuning struct {
	Game   game.Config   `json:"game"`
	Attest attest.Config `json:"attest"`
}

// Default returns the built-in tuning.
func Default() Tuning {
	return Tuning{
		Game:   game.DefaultConfig(),
		Attest: attest.DefaultConfig(),
	}
}

// Validate checks every component's tuning.
func (t Tuning) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"tower", t.Game.Profile.Validate},
		{"sentinel", t.Game.Sentinel.Validate},
		{"timing", t.Game.Timing.Validate},
		{"camera", t.Game.Camera.Validate},
		{"attest", t.Attest.Validate},
	}
	for _, c := range checks {
		if err := c.fn(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// GameConfig returns the game tuning for profile. The tuned profile wins
// when names match so file overrides apply; any other built-in profile is
// played with its stock dimensions.
func (t Tuning) GameConfig(profile string) (game.Config, error) {
	cfg := t.Game
	if profile == "" || profile == cfg.Profile.Name {
		return cfg, nil
	}
	p, err := tower.ProfileByName(profile)
	if err != nil {
		return game.Config{}, err
	}
	cfg.Profile = p
	return cfg, nil
}

// TuningError is a tuning file that does not satisfy the schema.
type TuningError struct {
	Message string
	Pos     token.Pos
}

func (e *TuningError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadTuning reads a CUE tuning file. An empty path returns Default.
func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning: %w", err)
	}
	return ParseTuning(data, path)
}

// ParseTuning unifies data with the schema and decodes the result.
// filename is only used in error positions.
func ParseTuning(data []byte, filename string) (Tuning, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Tuning{}, fmt.Errorf("compile tuning schema: %w", err)
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Tuning{}, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Tuning")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Tuning{}, formatCUEError(err)
	}

	var f tuningFile
	if err := v.Decode(&f); err != nil {
		return Tuning{}, formatCUEError(err)
	}

	t, err := f.tuning()
	if err != nil {
		return Tuning{}, &TuningError{Message: err.Error(), Pos: user.Pos()}
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, &TuningError{Message: err.Error(), Pos: user.Pos()}
	}
	return t, nil
}

// tuningFile mirrors #Tuning. Durations are whole milliseconds in CUE.
type tuningFile struct {
	Profile string `json:"profile"`

	Tower struct {
		BoxHeight  *float64 `json:"box_height"`
		BaseSize   *float64 `json:"base_size"`
		FirstSpawn *float64 `json:"first_spawn"`
		Spawn      *float64 `json:"spawn"`
		Amplitude  *float64 `json:"amplitude"`
		Speed      *float64 `json:"speed"`
	} `json:"tower"`

	Tolerance struct {
		Perfection float64 `json:"perfection"`
		DebrisMin  float64 `json:"debris_min"`
	} `json:"tolerance"`

	Sentinel sentinel.Config `json:"sentinel"`

	Attest struct {
		MinSessionMs      int64 `json:"min_session_ms"`
		MinTimePerBlockMs int64 `json:"min_time_per_block_ms"`
		PerBlockAfter     int   `json:"per_block_after"`
	} `json:"attest"`

	Timing struct {
		EntryMs int64 `json:"entry_ms"`
		ExitMs  int64 `json:"exit_ms"`
	} `json:"timing"`

	Camera struct {
		Lerp            float64 `json:"lerp"`
		JitterAmplitude float64 `json:"jitter_amplitude"`
		Lift            float64 `json:"lift"`
	} `json:"camera"`
}

func (f tuningFile) tuning() (Tuning, error) {
	profile, err := tower.ProfileByName(f.Profile)
	if err != nil {
		return Tuning{}, err
	}
	override := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	override(&profile.BoxHeight, f.Tower.BoxHeight)
	override(&profile.BaseSize, f.Tower.BaseSize)
	override(&profile.FirstSpawn, f.Tower.FirstSpawn)
	override(&profile.Spawn, f.Tower.Spawn)
	override(&profile.Amplitude, f.Tower.Amplitude)
	override(&profile.Speed, f.Tower.Speed)

	cam := camera.DefaultConfig()
	cam.Lerp = f.Camera.Lerp
	cam.JitterAmplitude = f.Camera.JitterAmplitude
	cam.Lift = f.Camera.Lift

	return Tuning{
		Game: game.Config{
			Profile: profile,
			Tolerance: geometry.Tolerance{
				Perfection: f.Tolerance.Perfection,
				DebrisMin:  f.Tolerance.DebrisMin,
			},
			Sentinel: f.Sentinel,
			Timing: game.Timing{
				Entry: time.Duration(f.Timing.EntryMs) * time.Millisecond,
				Exit:  time.Duration(f.Timing.ExitMs) * time.Millisecond,
			},
			Camera: cam,
		},
		Attest: attest.Config{
			MinSessionDuration: time.Duration(f.Attest.MinSessionMs) * time.Millisecond,
			MinTimePerBlock:    time.Duration(f.Attest.MinTimePerBlockMs) * time.Millisecond,
			PerBlockAfter:      f.Attest.PerBlockAfter,
		},
	}, nil
}

// formatCUEError keeps the first error and its source position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &TuningError{Message: first.Error(), Pos: positions[0]}
	}
	return &TuningError{Message: first.Error()}
}
