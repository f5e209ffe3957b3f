// Package sentinel implements the click-pattern anti-cheat heuristics.
//
// The sentinel consumes pointer samples and flags sequences that look
// scripted. It never blocks gameplay: a flagged session plays on normally and
// its score is withheld later, at emission time.
//
// # Detectors
//
// Three independent detectors run on every recorded sample. Any of them can
// set the flag, and the flag is sticky until Reset:
//
//   - Position: var(x) and var(y) of the last PositionWindow samples both
//     below PositionVarianceMin (the same spot clicked over and over).
//   - Rate: max(1, score) / elapsed seconds across the last TimingWindow
//     timestamps above RateMax.
//   - Interval: variance of the inter-click intervals over IntervalWindow
//     samples below IntervalVarianceMin raises suspicion, a human-like window
//     lowers it (floor 0); suspicion reaching SuspicionThreshold flags.
//
// The sentinel is a deterrent, not a proof.
package sentinel

import (
	"fmt"
	"time"
)

// Detector names a heuristic that can flag a session.
type Detector string

const (
	DetectorPosition Detector = "position_variance"
	DetectorRate     Detector = "rate"
	DetectorInterval Detector = "interval_variance"
)

// Default thresholds.
const (
	DefaultPositionWindow = 5
	DefaultTimingWindow   = 12
	DefaultIntervalWindow = 5

	// DefaultPositionVarianceMin is 25 px² (a 5px spread) on a 1000px
	// reference viewport, expressed in normalized units.
	DefaultPositionVarianceMin = 25.0 / (1000.0 * 1000.0)

	DefaultRateMax             = 3.0
	DefaultIntervalVarianceMin = 2500.0 // ms²
	DefaultSuspicionThreshold  = 3
)

// Config holds the sentinel thresholds.
type Config struct {
	PositionWindow      int     `json:"position_window"`
	TimingWindow        int     `json:"timing_window"`
	IntervalWindow      int     `json:"interval_window"`
	PositionVarianceMin float64 `json:"position_variance_min"`
	RateMax             float64 `json:"rate_max"`
	IntervalVarianceMin float64 `json:"interval_variance_min"`
	SuspicionThreshold  int     `json:"suspicion_threshold"`
}

// DefaultConfig returns the canonical threshold set.
func DefaultConfig() Config {
	return Config{
		PositionWindow:      DefaultPositionWindow,
		TimingWindow:        DefaultTimingWindow,
		IntervalWindow:      DefaultIntervalWindow,
		PositionVarianceMin: DefaultPositionVarianceMin,
		RateMax:             DefaultRateMax,
		IntervalVarianceMin: DefaultIntervalVarianceMin,
		SuspicionThreshold:  DefaultSuspicionThreshold,
	}
}

// Validate checks window sizes and thresholds.
func (c Config) Validate() error {
	if c.PositionWindow < 2 {
		return fmt.Errorf("position window must be at least 2, got %d", c.PositionWindow)
	}
	if c.IntervalWindow < 3 {
		return fmt.Errorf("interval window must be at least 3, got %d", c.IntervalWindow)
	}
	if c.TimingWindow < c.IntervalWindow {
		return fmt.Errorf("timing window (%d) must cover interval window (%d)", c.TimingWindow, c.IntervalWindow)
	}
	if c.PositionVarianceMin < 0 || c.IntervalVarianceMin < 0 {
		return fmt.Errorf("variance thresholds must be non-negative")
	}
	if c.RateMax <= 0 {
		return fmt.Errorf("rate max must be positive, got %v", c.RateMax)
	}
	if c.SuspicionThreshold < 1 {
		return fmt.Errorf("suspicion threshold must be at least 1, got %d", c.SuspicionThreshold)
	}
	return nil
}

// Sample is one pointer input.
//
// X and Y are offsets from the viewport centre divided by the viewport size,
// so they are dimensionless and roughly within [-0.5, 0.5].
type Sample struct {
	At time.Time `json:"at"`
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
}

// NormalizeSample converts a pixel position into a Sample.
func NormalizeSample(at time.Time, clientX, clientY, viewportW, viewportH float64) (Sample, error) {
	if viewportW <= 0 || viewportH <= 0 {
		return Sample{}, fmt.Errorf("viewport must be positive, got %vx%v", viewportW, viewportH)
	}
	return Sample{
		At: at,
		X:  (clientX - viewportW/2) / viewportW,
		Y:  (clientY - viewportH/2) / viewportH,
	}, nil
}

// State is a point-in-time copy of the sentinel.
type State struct {
	Flagged    bool        `json:"flagged"`
	Suspicion  int         `json:"suspicion"`
	Triggered  []Detector  `json:"triggered,omitempty"`
	Offsets    []Sample    `json:"offsets"`
	Timestamps []time.Time `json:"timestamps"`
}

// Sentinel holds the rolling windows and the sticky flag for one session.
//
// Not safe for concurrent use; owned by the game machine.
type Sentinel struct {
	cfg        Config
	offsets    *ring[Sample]
	timestamps *ring[time.Time]
	suspicion  int
	flagged    bool
	triggered  []Detector
}

// New creates a sentinel with cfg.
func New(cfg Config) *Sentinel {
	return &Sentinel{
		cfg:        cfg,
		offsets:    newRing[Sample](cfg.PositionWindow),
		timestamps: newRing[time.Time](cfg.TimingWindow),
	}
}

// Record adds a sample and runs every detector.
//
// score is the session score at the moment of the input. Returns the
// detectors that fired on this sample, which may be empty.
func (s *Sentinel) Record(sample Sample, score int) []Detector {
	s.offsets.push(sample)
	s.timestamps.push(sample.At)

	var fired []Detector
	if s.checkPosition() {
		fired = append(fired, DetectorPosition)
	}
	if s.checkRate(score) {
		fired = append(fired, DetectorRate)
	}
	if s.checkInterval() {
		fired = append(fired, DetectorInterval)
	}

	for _, d := range fired {
		s.flag(d)
	}
	return fired
}

// Flagged reports whether any detector has fired this session.
func (s *Sentinel) Flagged() bool {
	return s.flagged
}

// Suspicion returns the interval detector's counter.
func (s *Sentinel) Suspicion() int {
	return s.suspicion
}

// State returns a copy of the sentinel's state.
func (s *Sentinel) State() State {
	triggered := make([]Detector, len(s.triggered))
	copy(triggered, s.triggered)
	return State{
		Flagged:    s.flagged,
		Suspicion:  s.suspicion,
		Triggered:  triggered,
		Offsets:    s.offsets.snapshot(),
		Timestamps: s.timestamps.snapshot(),
	}
}

// Reset clears all windows and the flag for a new session.
func (s *Sentinel) Reset() {
	s.offsets.reset()
	s.timestamps.reset()
	s.suspicion = 0
	s.flagged = false
	s.triggered = nil
}

func (s *Sentinel) flag(d Detector) {
	s.flagged = true
	for _, t := range s.triggered {
		if t == d {
			return
		}
	}
	s.triggered = append(s.triggered, d)
}

func (s *Sentinel) checkPosition() bool {
	if !s.offsets.full() {
		return false
	}
	window := s.offsets.last(s.cfg.PositionWindow)
	xs := make([]float64, len(window))
	ys := make([]float64, len(window))
	for i, o := range window {
		xs[i] = o.X
		ys[i] = o.Y
	}
	return variance(xs) < s.cfg.PositionVarianceMin && variance(ys) < s.cfg.PositionVarianceMin
}

func (s *Sentinel) checkRate(score int) bool {
	if s.timestamps.len() < 2 {
		return false
	}
	window := s.timestamps.last(s.cfg.TimingWindow)
	elapsed := window[len(window)-1].Sub(window[0]).Seconds()
	if elapsed < 0.001 {
		elapsed = 0.001
	}
	blocks := score
	if blocks < 1 {
		blocks = 1
	}
	return float64(blocks)/elapsed > s.cfg.RateMax
}

// checkInterval updates suspicion and reports whether it crossed the threshold.
func (s *Sentinel) checkInterval() bool {
	if s.timestamps.len() < s.cfg.IntervalWindow {
		return false
	}
	window := s.timestamps.last(s.cfg.IntervalWindow)
	intervals := make([]float64, len(window)-1)
	for i := 1; i < len(window); i++ {
		intervals[i-1] = float64(window[i].Sub(window[i-1])) / float64(time.Millisecond)
	}

	if variance(intervals) < s.cfg.IntervalVarianceMin {
		s.suspicion++
	} else if s.suspicion > 0 {
		s.suspicion--
	}
	return s.suspicion >= s.cfg.SuspicionThreshold
}

// variance is the population variance of vals.
func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var sum float64
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(vals))
}
