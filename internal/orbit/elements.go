// Package orbit propagates classical Keplerian elements to heliocentric
// state vectors. It is the fallback model used when no sampled trajectory
// covers a request.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/litescript/ls-orrery/internal/astro"
)

// GMSun is the Sun's standard gravitational parameter in km³/s².
const GMSun = 1.32712440018e11

var (
	// ErrNoModel means no orbital elements exist for the requested body.
	ErrNoModel = errors.New("orbit: no element model available")

	// ErrInvalidElements means the elements violate a > 0, 0 <= e < 1,
	// period > 0 or contain non-finite values.
	ErrInvalidElements = errors.New("orbit: invalid elements")

	// ErrNonFinite means propagation produced NaN or Inf.
	ErrNonFinite = errors.New("orbit: non-finite result")
)

// Elements holds the six classical elements of an elliptical orbit plus
// period and reference epoch. Angles are in degrees, the semi-major axis in
// AU and the period in days.
type Elements struct {
	SemiMajorAxisAU  float64
	Eccentricity     float64
	InclinationDeg   float64
	ArgPerihelionDeg float64 // ω
	AscendingNodeDeg float64 // Ω
	MeanAnomalyDeg   float64 // M at Epoch
	PeriodDays       float64
	Epoch            time.Time

	// GM of the central body in km³/s². Zero means GMSun.
	GM float64
}

// FromMeanLongitude builds elements from the mean longitude L and longitude
// of perihelion ϖ used by planetary element tables: M0 = L - ϖ, ω = ϖ - Ω.
func FromMeanLongitude(aAU, e, iDeg, meanLongDeg, perihelionLongDeg, nodeDeg, periodDays float64, epoch time.Time) Elements {
	return Elements{
		SemiMajorAxisAU:  aAU,
		Eccentricity:     e,
		InclinationDeg:   iDeg,
		ArgPerihelionDeg: astro.NormalizeDegrees(perihelionLongDeg - nodeDeg),
		AscendingNodeDeg: astro.NormalizeDegrees(nodeDeg),
		MeanAnomalyDeg:   astro.NormalizeDegrees(meanLongDeg - perihelionLongDeg),
		PeriodDays:       periodDays,
		Epoch:            epoch,
	}
}

// Validate checks the element invariants.
func (el Elements) Validate() error {
	for _, v := range []float64{
		el.SemiMajorAxisAU, el.Eccentricity, el.InclinationDeg,
		el.ArgPerihelionDeg, el.AscendingNodeDeg, el.MeanAnomalyDeg, el.PeriodDays,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite element: %w", ErrInvalidElements)
		}
	}
	if el.SemiMajorAxisAU <= 0 {
		return fmt.Errorf("semi-major axis %g AU: %w", el.SemiMajorAxisAU, ErrInvalidElements)
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return fmt.Errorf("eccentricity %g outside [0,1): %w", el.Eccentricity, ErrInvalidElements)
	}
	if el.PeriodDays <= 0 {
		return fmt.Errorf("period %g days: %w", el.PeriodDays, ErrInvalidElements)
	}
	if el.GM < 0 {
		return fmt.Errorf("negative GM %g: %w", el.GM, ErrInvalidElements)
	}
	return nil
}

func (el Elements) gm() float64 {
	if el.GM > 0 {
		return el.GM
	}
	return GMSun
}

// MeanAnomalyAt returns M in degrees, wrapped to [0, 360), at time t.
func (el Elements) MeanAnomalyAt(t time.Time) float64 {
	elapsed := astro.DaysBetween(el.Epoch, t)
	return astro.NormalizeDegrees(el.MeanAnomalyDeg + 360*elapsed/el.PeriodDays)
}
