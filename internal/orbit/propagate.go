package orbit

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/kepler"
)

// State is a propagated position (km) and approximate velocity (km/s) in
// the ecliptic frame of the elements.
type State struct {
	Pos astro.Vec3
	Vel astro.Vec3

	// Diagnostics, useful for tests and HUDs.
	TrueAnomaly float64 // radians
	RadiusKm    float64
}

// Propagate computes the heliocentric state of el at time t.
// A nil el yields ErrNoModel; invalid elements yield ErrInvalidElements.
//
// The velocity uses the circular speed sqrt(GM/a) split along the true
// anomaly and is only an approximation of the vis-viva speed.
func Propagate(el *Elements, t time.Time) (State, error) {
	if el == nil {
		return State{}, ErrNoModel
	}
	if err := el.Validate(); err != nil {
		return State{}, err
	}

	e := el.Eccentricity
	aKm := astro.AUToKm(el.SemiMajorAxisAU)

	M := astro.DegToRad(el.MeanAnomalyAt(t))
	E := kepler.Solve(M, e)

	sinE, cosE := math.Sincos(E)
	nu := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)
	sinNu, cosNu := math.Sincos(nu)

	r := aKm * (1 - e*e) / (1 + e*cosNu)

	rot := PerifocalToEcliptic(
		astro.DegToRad(el.InclinationDeg),
		astro.DegToRad(el.ArgPerihelionDeg),
		astro.DegToRad(el.AscendingNodeDeg),
	)

	v := math.Sqrt(el.gm() / aKm)
	st := State{
		Pos:         rotate(rot, r*cosNu, r*sinNu),
		Vel:         rotate(rot, -v*sinNu, v*(e+cosNu)),
		TrueAnomaly: nu,
		RadiusKm:    r,
	}

	if !st.Pos.IsFinite() || !st.Vel.IsFinite() {
		return State{}, fmt.Errorf("propagate at %s: %w", t.UTC().Format(time.RFC3339), ErrNonFinite)
	}
	return st, nil
}

// PerifocalToEcliptic returns Rz(Ω)·Rx(i)·Rz(ω), which maps perifocal
// coordinates (x toward periapsis) into the reference frame.
func PerifocalToEcliptic(i, argPeri, node float64) *mat.Dense {
	var tmp, out mat.Dense
	tmp.Mul(RotX(i), RotZ(argPeri))
	out.Mul(RotZ(node), &tmp)
	return &out
}

// RotZ is the active rotation by θ about the third axis.
func RotZ(θ float64) *mat.Dense {
	s, c := math.Sincos(θ)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// RotX is the active rotation by θ about the first axis.
func RotX(θ float64) *mat.Dense {
	s, c := math.Sincos(θ)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

// rotate applies m to the in-plane vector (x, y, 0).
func rotate(m mat.Matrix, x, y float64) astro.Vec3 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{x, y, 0}))
	return astro.Vec3{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
