package ui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/metrics"
	"github.com/litescript/ls-orrery/internal/orbit"
	"github.com/litescript/ls-orrery/internal/position"
)

func TestRenderTable(t *testing.T) {
	at := time.Date(2025, 8, 21, 6, 0, 0, 0, time.UTC)
	rs := []position.Resolved{
		{
			Target: ephem.NAIFEarth,
			Position: position.Position{
				Target: ephem.NAIFEarth,
				Time:   at,
				Pos:    astro.Vec3{X: 1},
				Source: position.SourceSampled,
			},
		},
		{
			Target: ephem.NAIFMars,
			Position: position.Position{
				Target: ephem.NAIFMars,
				Time:   at,
				Pos:    astro.Vec3{X: -1.2, Y: 0.9},
				Source: position.SourcePropagated,
			},
		},
		{
			Target: ephem.NAIFVoyager1,
			Err:    fmt.Errorf("target -31: %w: %w", position.ErrUnpositionable, orbit.ErrNoModel),
		},
	}

	out := plain(RenderTable(rs, TableOptions{
		At:      at,
		Options: position.Options{Unit: astro.UnitAU, Frame: astro.FrameEquatorial, Extrapolate: true},
	}))

	for _, want := range []string{
		"Positions at 2025-08-21 06:00:00 UTC",
		"frame equatorial",
		"extrapolate true",
		"X (AU)",
		"Earth", "1.000000", "sampled",
		"Mars", "-1.200000", "1.500000", "propagated",
		"Voyager 1", "unpositionable", "no data, no model",
		"2025-08-21 06:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTable_Km(t *testing.T) {
	rs := []position.Resolved{{
		Target:   ephem.NAIFEarth,
		Position: position.Position{Target: ephem.NAIFEarth, Pos: astro.Vec3{X: 149597870.7}},
	}}

	out := plain(RenderTable(rs, TableOptions{At: time.Unix(0, 0)}))
	if !strings.Contains(out, "X (km)") || !strings.Contains(out, "149597870.7") {
		t.Errorf("unexpected km table:\n%s", out)
	}
	// Untimed sample.
	if !strings.Contains(out, "?") {
		t.Errorf("expected '?' for missing sample time:\n%s", out)
	}
}

func TestRenderNEOTable(t *testing.T) {
	neos := []ephem.NEO{
		{FullName: "433 Eros (A898 PA)", OrbitClass: "AMO", H: 10.38, DiameterKm: 16.84, MOIDAU: 0.149},
		{FullName: "99942 Apophis (2004 MN4)", OrbitClass: "ATE", H: 19.09, DiameterKm: math.NaN(), MOIDAU: 0.000194, PHA: true},
	}

	out := plain(RenderNEOTable(neos))
	for _, want := range []string{
		"Near-Earth objects (2)",
		"MOID (AU)",
		"433 Eros (A898 PA)", "AMO", "10.38", "16.84", "0.1490", "no",
		"99942 Apophis (2004 MN4)", "ATE", "0.0002", "yes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("NEO table missing %q:\n%s", want, out)
		}
	}

	// Apophis has no diameter.
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Apophis") && !strings.Contains(line, " - ") {
			t.Errorf("missing diameter should render as '-': %q", line)
		}
	}
}

func TestDescribeErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", orbit.ErrNoModel), "no data, no model"},
		{fmt.Errorf("x: %w", orbit.ErrInvalidElements), "invalid elements"},
		{fmt.Errorf("x: %w", orbit.ErrNonFinite), "model diverged"},
		{errors.New("boom"), "boom"},
	}
	for _, tc := range tests {
		if got := describeErr(tc.err); got != tc.want {
			t.Errorf("describeErr(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestResolveAtRecordsMetrics(t *testing.T) {
	e := position.NewEngine(nil, ephem.NewCatalog())
	ids := []ephem.TargetID{ephem.NAIFEarth, ephem.NAIFVoyager1}

	counter := func(source string) float64 {
		return testutil.ToFloat64(metrics.PositionsCounter(source))
	}
	propagated := counter("propagated")
	failed := counter(sourceUnpositionable)

	rs := ResolveAt(e, ids, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), position.Options{})
	if len(rs) != 2 || rs[0].Err != nil || rs[1].Err == nil {
		t.Fatalf("unexpected results: %+v", rs)
	}

	if d := counter("propagated") - propagated; d != 1 {
		t.Errorf("propagated delta = %v, want 1", d)
	}
	if d := counter(sourceUnpositionable) - failed; d != 1 {
		t.Errorf("unpositionable delta = %v, want 1", d)
	}

	_ = ResolveAtIndex(e, ids, 0, position.Options{})
	if d := counter("propagated") - propagated; d != 2 {
		t.Errorf("propagated delta after index = %v, want 2", d)
	}
}
