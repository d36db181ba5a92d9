// Package astro provides vector math, reference-frame rotations and display
// projections shared by the ephemeris packages.
package astro

import (
	"math"
)

// AU is the Astronomical Unit in kilometers.
const AU = 149597870.7

// Vec3 represents a 3D vector in any reference frame.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the magnitude of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Scale returns the vector scaled by a factor.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Lerp returns v + (u - v)*t, evaluated per component.
func (v Vec3) Lerp(u Vec3, t float64) Vec3 {
	return Vec3{
		X: v.X + (u.X-v.X)*t,
		Y: v.Y + (u.Y-v.Y)*t,
		Z: v.Z + (u.Z-v.Z)*t,
	}
}

// IsFinite reports whether every component is a finite real number.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Frame identifies the reference plane a vector is expressed in.
type Frame int

const (
	// FrameEcliptic is the J2000 ecliptic plane (Horizons default for VECTORS).
	FrameEcliptic Frame = iota

	// FrameEquatorial is the J2000 mean equator (ICRF-aligned).
	FrameEquatorial
)

// String returns the frame name.
func (f Frame) String() string {
	switch f {
	case FrameEcliptic:
		return "ecliptic"
	case FrameEquatorial:
		return "equatorial"
	default:
		return "unknown"
	}
}

// ParseFrame parses a frame name. Unknown names map to FrameEcliptic.
func ParseFrame(s string) Frame {
	switch s {
	case "equatorial", "eq", "icrf":
		return FrameEquatorial
	default:
		return FrameEcliptic
	}
}

// FromEcliptic rotates an ecliptic vector into the requested frame.
func FromEcliptic(v Vec3, f Frame) Vec3 {
	if f == FrameEquatorial {
		return EclipticToEquatorial(v)
	}
	return v
}

// Unit identifies the distance unit of returned vectors.
type Unit int

const (
	UnitKm Unit = iota
	UnitAU
)

// String returns the unit symbol.
func (u Unit) String() string {
	switch u {
	case UnitKm:
		return "km"
	case UnitAU:
		return "AU"
	default:
		return "unknown"
	}
}

// FromKm converts a kilometer vector to the given unit.
// Velocities in km/s become AU/s under UnitAU.
func FromKm(v Vec3, u Unit) Vec3 {
	if u == UnitAU {
		return v.Scale(1 / AU)
	}
	return v
}

// ProjectedPoint represents a 2D projected position with metadata.
type ProjectedPoint struct {
	X float64 // Screen X coordinate (normalized, -1 to 1)
	Y float64 // Screen Y coordinate (normalized, -1 to 1)
	R float64 // Original radial distance in AU
	Z float64 // Original Z offset (for ecliptic latitude display)
}

// ScaleMode defines how radial distances are mapped to screen space.
type ScaleMode int

const (
	// ScaleLogR uses logarithmic scaling: r_display = log10(r_AU + 1) * scale
	ScaleLogR ScaleMode = iota

	// ScaleInner uses linear scaling optimized for 0-5 AU
	ScaleInner

	// ScaleOuter uses compressed scaling for outer solar system (>5 AU)
	ScaleOuter
)

// String returns the scale mode label shown in the HUD.
func (m ScaleMode) String() string {
	switch m {
	case ScaleLogR:
		return "log"
	case ScaleInner:
		return "inner"
	case ScaleOuter:
		return "outer"
	default:
		return "unknown"
	}
}

// ProjectionConfig configures the top-down ecliptic projection.
// It is passed explicitly to every projection call.
type ProjectionConfig struct {
	Scale float64   // Base scale factor
	Mode  ScaleMode // Scaling mode
}

// ProjectEclipticTopDown projects a 3D ecliptic vector given in AU to 2D
// screen coordinates. X points toward the vernal equinox, Y is 90° ahead in
// the ecliptic, Z is dropped into the Z field.
func ProjectEclipticTopDown(v Vec3, cfg ProjectionConfig) ProjectedPoint {
	rAU := math.Sqrt(v.X*v.X + v.Y*v.Y)
	rDisplay := scaleRadius(rAU, cfg)
	angle := math.Atan2(v.Y, v.X)

	return ProjectedPoint{
		X: rDisplay * math.Cos(angle) * cfg.Scale,
		Y: rDisplay * math.Sin(angle) * cfg.Scale,
		R: v.Norm(),
		Z: v.Z,
	}
}

// scaleRadius applies the configured scaling mode to a radial distance.
func scaleRadius(rAU float64, cfg ProjectionConfig) float64 {
	switch cfg.Mode {
	case ScaleLogR:
		// log10(r + 1): 0 at origin, ~0.78 at 5 AU, ~1.49 at 30 AU
		return math.Log10(rAU + 1)

	case ScaleInner:
		if rAU > 5 {
			return 5
		}
		return rAU

	case ScaleOuter:
		// Linear to 5 AU on the inner half, logarithmic beyond
		if rAU <= 5 {
			return rAU / 5 * 0.5
		}
		return 0.5 + math.Log10(rAU/5+1)*0.5

	default:
		return math.Log10(rAU + 1)
	}
}

// AUToKm converts Astronomical Units to kilometers.
func AUToKm(au float64) float64 {
	return au * AU
}

// EclipticLatitude returns the ecliptic latitude in degrees for a vector.
func EclipticLatitude(v Vec3) float64 {
	r := v.Norm()
	if r == 0 {
		return 0
	}
	return radToDeg(math.Asin(v.Z / r))
}

// EclipticLongitude returns the ecliptic longitude in degrees for a vector.
func EclipticLongitude(v Vec3) float64 {
	lon := radToDeg(math.Atan2(v.Y, v.X))
	if lon < 0 {
		lon += 360
	}
	return lon
}

// Obliquity of the ecliptic at J2000, in radians.
const obliquityRad = 23.439291 * math.Pi / 180

// EquatorialToEcliptic converts equatorial XYZ to ecliptic XYZ.
// Input is in any units (km, AU, etc); output is in the same units.
func EquatorialToEcliptic(eq Vec3) Vec3 {
	cosE := math.Cos(obliquityRad)
	sinE := math.Sin(obliquityRad)

	return Vec3{
		X: eq.X,
		Y: eq.Y*cosE + eq.Z*sinE,
		Z: -eq.Y*sinE + eq.Z*cosE,
	}
}

// EclipticToEquatorial converts ecliptic XYZ to equatorial XYZ.
func EclipticToEquatorial(ecl Vec3) Vec3 {
	cosE := math.Cos(obliquityRad)
	sinE := math.Sin(obliquityRad)

	return Vec3{
		X: ecl.X,
		Y: ecl.Y*cosE - ecl.Z*sinE,
		Z: ecl.Y*sinE + ecl.Z*cosE,
	}
}

// LightTimeFromAU returns the one-way light time for a distance in AU.
func LightTimeFromAU(au float64) float64 {
	// Light travels 1 AU in ~499.005 seconds
	return au * 499.005
}
