// Package position answers "where is this body at this index or instant"
// from sampled trajectories, falling back to Keplerian propagation.
//
// Every function here is pure; trajectories are treated as read-only.
package position

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/interp"
	"github.com/litescript/ls-orrery/internal/orbit"
)

// ErrUnpositionable means neither samples nor elements could place the body.
var ErrUnpositionable = errors.New("position: target cannot be positioned")

// Source tells which model produced a Position.
type Source int

const (
	SourceSampled Source = iota
	SourcePropagated
)

func (s Source) String() string {
	switch s {
	case SourceSampled:
		return "sampled"
	case SourcePropagated:
		return "propagated"
	default:
		return "unknown"
	}
}

// Options are the per-request settings.
type Options struct {
	// Extrapolate allows the propagator for date requests outside the
	// sampled range. Without it the nearest sample is returned.
	Extrapolate bool

	Frame astro.Frame // output frame, ecliptic by default
	Unit  astro.Unit  // output distance unit, km by default

	// Timeline is the window fractional indices address. It places
	// propagated positions for index requests when no sample is usable.
	Timeline ephem.Window
}

// Position is a resolved location. Vel is only meaningful when HasVelocity
// is set; its unit is Unit per second.
type Position struct {
	Target      ephem.TargetID
	Time        time.Time // zero when the sample had no parsable timestamp
	Pos         astro.Vec3
	Vel         astro.Vec3
	HasVelocity bool
	Source      Source
}

// ResolveIndex positions traj.Target at fractional sample index f. When
// both neighbours of f are unusable the nearest usable sample is returned.
// The propagator is used only when the trajectory has no usable sample at
// all; the index is then mapped to a time through opts.Timeline, the sample
// timestamps, or the element epoch, in that order.
func ResolveIndex(traj ephem.Trajectory, el *orbit.Elements, f float64, opts Options) (Position, error) {
	if traj.UsableCount() > 0 {
		sv, err := interp.AtIndex(traj.States, f)
		if errors.Is(err, interp.ErrNoData) {
			// Both neighbours are broken; some other sample is not.
			sv, err = interp.Nearest(traj.States, f)
		}
		if err != nil {
			return Position{}, unpositionable(traj.Target, err)
		}
		return fromSample(traj.Target, sv, opts), nil
	}
	return propagate(traj.Target, el, indexTime(traj, el, f, opts.Timeline), opts)
}

// ResolveTime positions traj.Target at instant t.
func ResolveTime(traj ephem.Trajectory, el *orbit.Elements, t time.Time, opts Options) (Position, error) {
	res, err := interp.AtTime(traj.States, t)
	if err != nil {
		if errors.Is(err, interp.ErrNoData) {
			return propagate(traj.Target, el, t, opts)
		}
		return Position{}, unpositionable(traj.Target, err)
	}

	if res.Outside() && opts.Extrapolate && el != nil {
		if p, err := propagate(traj.Target, el, t, opts); err == nil {
			return p, nil
		}
	}
	return fromSample(traj.Target, res.State, opts), nil
}

func fromSample(id ephem.TargetID, sv ephem.StateVector, opts Options) Position {
	p := Position{
		Target: id,
		Time:   sv.Time,
		Pos:    convert(sv.Pos, opts),
		Source: SourceSampled,
	}
	if sv.HasVelocity {
		p.Vel = convert(sv.Vel, opts)
		p.HasVelocity = true
	}
	return p
}

func propagate(id ephem.TargetID, el *orbit.Elements, t time.Time, opts Options) (Position, error) {
	if el == nil {
		return Position{}, unpositionable(id, orbit.ErrNoModel)
	}
	st, err := orbit.Propagate(el, t)
	if err != nil {
		return Position{}, unpositionable(id, err)
	}
	return Position{
		Target:      id,
		Time:        t,
		Pos:         convert(st.Pos, opts),
		Vel:         convert(st.Vel, opts),
		HasVelocity: true,
		Source:      SourcePropagated,
	}, nil
}

func convert(v astro.Vec3, opts Options) astro.Vec3 {
	return astro.FromKm(astro.FromEcliptic(v, opts.Frame), opts.Unit)
}

// indexTime maps an index onto a time for the propagator.
func indexTime(traj ephem.Trajectory, el *orbit.Elements, f float64, w ephem.Window) time.Time {
	if n := w.Frames(); n > 0 {
		f = clamp(f, 0, float64(n-1))
		return w.Start.Add(time.Duration(f * float64(w.Step)))
	}

	var first, last time.Time
	firstIdx, lastIdx := -1, -1
	for i, s := range traj.States {
		if !s.HasTime() {
			continue
		}
		if firstIdx < 0 {
			first, firstIdx = s.Time, i
		}
		last, lastIdx = s.Time, i
	}

	switch {
	case firstIdx < 0:
		if el != nil {
			return el.Epoch
		}
		return time.Time{}
	case lastIdx == firstIdx:
		return first
	}

	// Step by the mean spacing of the timed samples.
	step := float64(last.Sub(first)) / float64(lastIdx-firstIdx)
	f = clamp(f, 0, float64(len(traj.States)-1))
	return first.Add(time.Duration((f - float64(firstIdx)) * step))
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}

func unpositionable(id ephem.TargetID, err error) error {
	return fmt.Errorf("target %d: %w: %w", id, ErrUnpositionable, err)
}
