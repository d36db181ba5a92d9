// Package interp turns sampled state vectors into a state at a fractional
// sample index or an absolute time. It never extrapolates.
package interp

import (
	"errors"
	"math"
	"time"

	"github.com/litescript/ls-orrery/internal/ephem"
)

// ErrNoData means no usable sample exists to answer the request.
var ErrNoData = errors.New("interp: no usable samples")

// Coverage tells where a requested time fell relative to the samples.
type Coverage int

const (
	CoverageInside Coverage = iota // bracketed or exact
	CoverageBefore                 // earlier than the first timed sample
	CoverageAfter                  // later than the last timed sample
)

func (c Coverage) String() string {
	switch c {
	case CoverageInside:
		return "inside"
	case CoverageBefore:
		return "before"
	case CoverageAfter:
		return "after"
	default:
		return "unknown"
	}
}

// Result is the state for a time request plus where the time fell.
type Result struct {
	State    ephem.StateVector
	Coverage Coverage
}

// Outside reports whether the request lay beyond the sampled range.
func (r Result) Outside() bool {
	return r.Coverage != CoverageInside
}

// AtIndex interpolates between the samples bracketing fractional index f.
// f is clamped to [0, len-1]; NaN is treated as 0.
func AtIndex(states []ephem.StateVector, f float64) (ephem.StateVector, error) {
	n := len(states)
	if n == 0 {
		return ephem.StateVector{}, ErrNoData
	}

	f = clamp(f, 0, float64(n-1))
	i0 := int(math.Floor(f))
	i1 := min(n-1, i0+1)
	t := clamp(f-float64(i0), 0, 1)

	a, b := states[i0], states[i1]
	switch aOK, bOK := a.Usable(), b.Usable(); {
	case aOK && bOK:
		return Lerp(a, b, t), nil
	case aOK:
		return a, nil
	case bOK:
		return b, nil
	default:
		return ephem.StateVector{}, ErrNoData
	}
}

// Nearest returns the usable sample closest to fractional index f,
// searching outward from floor(f). Ties go to the earlier sample.
func Nearest(states []ephem.StateVector, f float64) (ephem.StateVector, error) {
	n := len(states)
	if n == 0 {
		return ephem.StateVector{}, ErrNoData
	}
	f = clamp(f, 0, float64(n-1))
	i0 := int(math.Floor(f))

	for d := 0; d < n; d++ {
		lo, hi := i0-d, i0+1+d
		loOK := lo >= 0 && states[lo].Usable()
		hiOK := hi < n && states[hi].Usable()
		switch {
		case loOK && hiOK:
			if f-float64(lo) <= float64(hi)-f {
				return states[lo], nil
			}
			return states[hi], nil
		case loOK:
			return states[lo], nil
		case hiOK:
			return states[hi], nil
		}
		if lo < 0 && hi >= n {
			break
		}
	}
	return ephem.StateVector{}, ErrNoData
}

// AtTime returns the state at t. Only usable samples with a timestamp
// take part. An exact match is returned unmodified; a time outside the
// sampled range returns the nearest end sample with Coverage set.
func AtTime(states []ephem.StateVector, t time.Time) (Result, error) {
	var (
		first, last   ephem.StateVector
		before, after ephem.StateVector
		haveAny       bool
		haveBefore    bool
		haveAfter     bool
	)

	for _, s := range states {
		if !s.Usable() || !s.HasTime() {
			continue
		}
		if s.Time.Equal(t) {
			return Result{State: s}, nil
		}

		if !haveAny || s.Time.Before(first.Time) {
			first = s
		}
		if !haveAny || !s.Time.Before(last.Time) {
			last = s
		}
		haveAny = true

		// Closest sample strictly before t; ties keep the later one in
		// sample order.
		if s.Time.Before(t) && (!haveBefore || !s.Time.Before(before.Time)) {
			before = s
			haveBefore = true
		}
		// Closest sample strictly after t; ties keep the earlier one.
		if s.Time.After(t) && (!haveAfter || s.Time.Before(after.Time)) {
			after = s
			haveAfter = true
		}
	}

	switch {
	case !haveAny:
		return Result{}, ErrNoData
	case !haveBefore:
		return Result{State: first, Coverage: CoverageBefore}, nil
	case !haveAfter:
		return Result{State: last, Coverage: CoverageAfter}, nil
	}

	span := after.Time.Sub(before.Time)
	if span <= 0 {
		return Result{State: before}, nil
	}
	frac := float64(t.Sub(before.Time)) / float64(span)
	out := Lerp(before, after, frac)
	out.Time = t
	return Result{State: out}, nil
}

// Lerp blends a toward b by t in [0, 1]. Velocity is blended only when both
// samples carry it. A non-finite result falls back to a.
func Lerp(a, b ephem.StateVector, t float64) ephem.StateVector {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}

	out := ephem.StateVector{
		Time:  lerpTime(a.Time, b.Time, t),
		Pos:   a.Pos.Lerp(b.Pos, t),
		Valid: true,
	}
	if a.HasVelocity && b.HasVelocity {
		out.Vel = a.Vel.Lerp(b.Vel, t)
		out.HasVelocity = true
	}
	if !out.Usable() {
		return a
	}
	return out
}

func lerpTime(a, b time.Time, t float64) time.Time {
	if a.IsZero() || b.IsZero() {
		return a
	}
	return a.Add(time.Duration(t * float64(b.Sub(a))))
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}
