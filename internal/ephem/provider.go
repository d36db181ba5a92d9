// Package ephem holds sampled trajectories, the body catalog and the
// JPL Horizons VECTORS client that fills them.
package ephem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
)

// TargetID is a NAIF SPICE ID for a body or spacecraft.
type TargetID int

// StateVector is one sampled position (km) and velocity (km/s).
type StateVector struct {
	Time        time.Time // zero when the source timestamp could not be parsed
	Pos         astro.Vec3
	Vel         astro.Vec3
	HasVelocity bool
	Valid       bool // false for structurally broken rows
}

// Usable reports whether the vector may be handed to a caller: it must be
// structurally valid and every component finite.
func (s StateVector) Usable() bool {
	if !s.Valid || !s.Pos.IsFinite() {
		return false
	}
	if s.HasVelocity && !s.Vel.IsFinite() {
		return false
	}
	return true
}

// HasTime reports whether the sample carries a parsable timestamp.
func (s StateVector) HasTime() bool {
	return !s.Time.IsZero()
}

// Trajectory is an ordered series of samples for one target. Timestamps are
// non-decreasing. A Trajectory is never modified after it is built.
type Trajectory struct {
	Target TargetID
	Center string
	States []StateVector
}

// Len returns the number of samples, usable or not.
func (t Trajectory) Len() int {
	return len(t.States)
}

// UsableCount returns how many samples are usable.
func (t Trajectory) UsableCount() int {
	n := 0
	for _, s := range t.States {
		if s.Usable() {
			n++
		}
	}
	return n
}

// Window is the time range and cadence requested from a provider.
type Window struct {
	Start time.Time
	Stop  time.Time
	Step  time.Duration
}

// ErrInvalidWindow is returned for a window with Stop <= Start or Step <= 0.
var ErrInvalidWindow = errors.New("ephem: invalid window")

// Validate checks the window bounds.
func (w Window) Validate() error {
	if !w.Stop.After(w.Start) {
		return fmt.Errorf("stop %s not after start %s: %w",
			w.Stop.Format(time.RFC3339), w.Start.Format(time.RFC3339), ErrInvalidWindow)
	}
	if w.Step <= 0 {
		return fmt.Errorf("step %v: %w", w.Step, ErrInvalidWindow)
	}
	return nil
}

// Frames returns the expected number of samples in the window.
func (w Window) Frames() int {
	if w.Step <= 0 || !w.Stop.After(w.Start) {
		return 0
	}
	return int(math.Floor(float64(w.Stop.Sub(w.Start))/float64(w.Step))) + 1
}

// WindowAround builds a window of the given span starting at start.
func WindowAround(start time.Time, span, step time.Duration) Window {
	return Window{Start: start.UTC(), Stop: start.UTC().Add(span), Step: step}
}

// Provider fetches sampled trajectories.
type Provider interface {
	// Name returns the provider name for display/logging.
	Name() string

	// FetchVectors returns state vectors for one target over a window.
	FetchVectors(ctx context.Context, target TargetID, w Window) (Trajectory, error)

	// FetchAll fetches every target over one window. Per-target failures
	// are reported in the results, not as the returned error.
	FetchAll(ctx context.Context, targets []TargetID, w Window) ([]FetchResult, error)
}
