package tower

import (
	"fmt"
	"strings"
)

// Profile holds the dimensional and motion constants of a tower.
type Profile struct {
	Name string `json:"name"`

	// BoxHeight is the vertical size of every layer.
	BoxHeight float64 `json:"box_height"`

	// BaseSize is the width and depth of the foundation and first layer.
	BaseSize float64 `json:"base_size"`

	// FirstSpawn is the along-axis start position of the first moving layer.
	FirstSpawn float64 `json:"first_spawn"`

	// Spawn is the along-axis start position of every later layer.
	Spawn float64 `json:"spawn"`

	// Amplitude is the half-range of the active layer's oscillation.
	Amplitude float64 `json:"amplitude"`

	// Speed is the oscillation angular speed in radians per second.
	Speed float64 `json:"speed"`
}

// Profile names.
const (
	ProfileClassic = "classic"
	ProfilePro     = "pro"
)

// Classic is the original in-app tower: a 3×3 base with layers entering from -8.
func Classic() Profile {
	return Profile{
		Name:       ProfileClassic,
		BoxHeight:  0.8,
		BaseSize:   3,
		FirstSpawn: -10,
		Spawn:      -8,
		Amplitude:  8,
		Speed:      1.1,
	}
}

// Pro is the embedded "stack pro" tower: a wider 4.5 base entering from -12.
func Pro() Profile {
	return Profile{
		Name:       ProfilePro,
		BoxHeight:  0.8,
		BaseSize:   4.5,
		FirstSpawn: -12,
		Spawn:      -12,
		Amplitude:  6,
		Speed:      0.9,
	}
}

// ProfileByName looks up a built-in profile.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileClassic:
		return Classic(), nil
	case ProfilePro, "":
		return Pro(), nil
	default:
		return Profile{}, fmt.Errorf("unknown tower profile %q", name)
	}
}

// Validate checks that the profile describes a playable tower.
func (p Profile) Validate() error {
	if p.BoxHeight <= 0 {
		return fmt.Errorf("box height must be positive, got %v", p.BoxHeight)
	}
	if p.BaseSize <= 0 {
		return fmt.Errorf("base size must be positive, got %v", p.BaseSize)
	}
	if p.Amplitude <= 0 {
		return fmt.Errorf("amplitude must be positive, got %v", p.Amplitude)
	}
	if p.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", p.Speed)
	}
	return nil
}
