// Package kepler solves Kepler's equation E - e·sin(E) = M for elliptical
// orbits.
package kepler

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultTolerance is the Newton step size, in radians, below which the
	// iteration is considered converged.
	DefaultTolerance = 1e-8

	// DefaultMaxIterations caps the Newton-Raphson loop.
	DefaultMaxIterations = 100
)

// ErrNotConverged is returned by SolveStrict when the iteration cap is hit
// before the step drops below the tolerance.
var ErrNotConverged = errors.New("kepler: iteration did not converge")

// Options tunes the solver. Zero values select the defaults.
type Options struct {
	Tolerance     float64
	MaxIterations int
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Solve returns the eccentric anomaly E (radians) for mean anomaly M
// (radians) and eccentricity 0 <= e < 1, using the default options.
//
// On non-convergence the best current estimate is returned; treat the
// result as approximate for e close to 1. Use SolveStrict to detect that case.
func Solve(M, e float64) float64 {
	E, _, _ := SolveWith(M, e, Options{})
	return E
}

// SolveWith runs Newton-Raphson from E0 = M and reports the iteration count
// and whether the last step was below the tolerance. M is not wrapped, so for
// e = 0 the result is exactly M.
func SolveWith(M, e float64, opts Options) (E float64, iterations int, converged bool) {
	opts = opts.withDefaults()

	E = M
	for iterations < opts.MaxIterations {
		iterations++

		denom := 1 - e*math.Cos(E)
		if denom == 0 {
			// Only reachable for e >= 1; keep the last estimate.
			return E, iterations, false
		}
		step := (E - e*math.Sin(E) - M) / denom
		E -= step

		if math.Abs(step) < opts.Tolerance {
			return E, iterations, true
		}
	}
	return E, iterations, false
}

// SolveStrict is Solve for callers that need guaranteed precision: it
// returns ErrNotConverged instead of an approximate anomaly.
func SolveStrict(M, e float64, opts Options) (float64, error) {
	E, n, ok := SolveWith(M, e, opts)
	if !ok {
		return E, fmt.Errorf("M=%g e=%g after %d iterations: %w", M, e, n, ErrNotConverged)
	}
	return E, nil
}
