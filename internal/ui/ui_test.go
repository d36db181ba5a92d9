package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/position"
	"github.com/litescript/ls-orrery/internal/state"
)

// marsTrajectory covers testWindow with Mars moving +1e6 km per frame.
func marsTrajectory() ephem.Trajectory {
	n := testWindow.Frames()
	states := make([]ephem.StateVector, n)
	for i := range states {
		states[i] = ephem.StateVector{
			Time:  testWindow.Start.Add(time.Duration(i) * testWindow.Step),
			Pos:   astro.Vec3{X: 2.0e8 + float64(i)*1e6, Y: 1e7},
			Valid: true,
		}
	}
	return ephem.Trajectory{Target: ephem.NAIFMars, Center: "500@0", States: states}
}

func newTestModel(t *testing.T) (Model, *state.Manager) {
	t.Helper()
	mgr := state.NewManager(state.DefaultConfig())
	engine := position.NewEngine(mgr, ephem.NewCatalog())
	targets := []ephem.TargetID{ephem.NAIFEarth, ephem.NAIFMars, ephem.NAIFVoyager1}

	m := New(mgr, engine, targets, position.Options{})
	m.now = func() time.Time { return testWindow.Start.AddDate(0, 0, 30) }

	ds := state.NewDataset([]ephem.FetchResult{
		{Target: ephem.NAIFMars, Trajectory: marsTrajectory()},
	}, testWindow, time.Now())
	mgr.Update(ds, time.Second, nil)

	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 32})
	m = send(t, m, DataUpdateMsg{Snapshot: mgr.Snapshot()})
	return m, mgr
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out
}

func marsX(t *testing.T, m Model) float64 {
	t.Helper()
	for _, r := range m.Positions() {
		if r.Target == ephem.NAIFMars {
			if r.Err != nil {
				t.Fatalf("Mars: %v", r.Err)
			}
			return r.Position.Pos.X
		}
	}
	t.Fatal("Mars not resolved")
	return 0
}

func TestModel_DataUpdateResolves(t *testing.T) {
	m, _ := newTestModel(t)

	if m.Timeline().Frames() != 5 {
		t.Errorf("Frames() = %d, want 5", m.Timeline().Frames())
	}
	if m.Options().Unit != astro.UnitAU {
		t.Errorf("UI must resolve in AU, got %v", m.Options().Unit)
	}

	rs := m.Positions()
	if len(rs) != 3 {
		t.Fatalf("len(Positions) = %d, want 3", len(rs))
	}
	if rs[0].Err != nil || rs[0].Position.Source != position.SourcePropagated {
		t.Errorf("Earth = %+v, want propagated", rs[0])
	}
	if rs[1].Err != nil || rs[1].Position.Source != position.SourceSampled {
		t.Errorf("Mars = %+v, want sampled", rs[1])
	}
	if rs[2].Err == nil {
		t.Error("Voyager 1 has neither samples nor a model and must fail")
	}
}

func TestModel_Scrubbing(t *testing.T) {
	m, _ := newTestModel(t)
	perFrame := 1e6 / astro.AU

	tests := []struct {
		name      string
		key       tea.KeyMsg
		wantFrame float64
	}{
		{"fine right", tea.KeyMsg{Type: tea.KeyRight}, 0.1},
		{"coarse right", tea.KeyMsg{Type: tea.KeyShiftRight}, 1.1},
		{"fine left", tea.KeyMsg{Type: tea.KeyLeft}, 1.0},
		{"coarse left", tea.KeyMsg{Type: tea.KeyShiftLeft}, 0},
		{"clamped left", tea.KeyMsg{Type: tea.KeyShiftLeft}, 0},
	}

	base := marsX(t, m)
	for _, tc := range tests {
		m = send(t, m, tc.key)
		if !approx(m.Timeline().Frame(), tc.wantFrame) {
			t.Fatalf("%s: Frame() = %v, want %v", tc.name, m.Timeline().Frame(), tc.wantFrame)
		}
		want := base + tc.wantFrame*perFrame
		if got := marsX(t, m); !scalar.EqualWithinAbs(got, want, 1e-12) {
			t.Errorf("%s: Mars X = %v AU, want %v", tc.name, got, want)
		}
	}

	for i := 0; i < 10; i++ {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyShiftRight})
	}
	if m.Timeline().Frame() != 4 {
		t.Errorf("Frame() = %v, want clamp at 4", m.Timeline().Frame())
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyHome})
	if m.Timeline().Frame() != 0 {
		t.Errorf("home: Frame() = %v, want 0", m.Timeline().Frame())
	}
}

func TestModel_Playback(t *testing.T) {
	m, _ := newTestModel(t)

	// Paused ticks do nothing.
	m = send(t, m, AnimTickMsg(time.Now()))
	if m.Timeline().Frame() != 0 {
		t.Fatalf("paused tick moved to %v", m.Timeline().Frame())
	}

	m = send(t, m, key(' '))
	if !m.Timeline().Playing() {
		t.Fatal("space should start playback")
	}
	m = send(t, m, AnimTickMsg(time.Now()))
	m = send(t, m, AnimTickMsg(time.Now()))
	if !approx(m.Timeline().Frame(), 0.2) {
		t.Errorf("Frame() = %v, want 0.2", m.Timeline().Frame())
	}

	m = send(t, m, key(' '))
	if m.Timeline().Playing() {
		t.Error("space should pause playback")
	}
}

func TestModel_DateModeAndExtrapolation(t *testing.T) {
	m, _ := newTestModel(t)

	// Jump to the last frame, enter date mode and walk past the window.
	m = send(t, m, tea.KeyMsg{Type: tea.KeyShiftRight})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyShiftRight})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyShiftRight})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyShiftRight})
	m = send(t, m, key('d'))
	if !m.Timeline().DateMode() {
		t.Fatal("d should enter date mode")
	}
	last := marsX(t, m)

	for i := 0; i < 40; i++ {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyShiftRight})
	}
	if !m.Timeline().Outside() {
		t.Fatalf("Time() = %v should be outside the window", m.Timeline().Time())
	}

	// Without extrapolation the nearest sample is held.
	if got := marsX(t, m); !scalar.EqualWithinAbs(got, last, 1e-12) {
		t.Errorf("Mars X = %v, want held last sample %v", got, last)
	}
	if src := m.Positions()[1].Position.Source; src != position.SourceSampled {
		t.Errorf("source = %v, want sampled", src)
	}

	m = send(t, m, key('x'))
	if !m.Options().Extrapolate {
		t.Fatal("x should enable extrapolation")
	}
	p := m.Positions()[1].Position
	if p.Source != position.SourcePropagated {
		t.Errorf("source = %v, want propagated past the window", p.Source)
	}
	if !p.Time.Equal(m.Timeline().Time()) {
		t.Errorf("propagated at %v, want %v", p.Time, m.Timeline().Time())
	}
	if r := p.Pos.Norm(); r < 1.38 || r > 1.67 {
		t.Errorf("Mars at %.3f AU, outside perihelion/aphelion", r)
	}

	m = send(t, m, key('d'))
	if m.Timeline().DateMode() || m.Timeline().Frame() != 4 {
		t.Errorf("leaving date mode: DateMode=%v Frame=%v", m.Timeline().DateMode(), m.Timeline().Frame())
	}
}

func TestModel_FrameToggle(t *testing.T) {
	m, _ := newTestModel(t)
	ecl := m.Positions()[1].Position.Pos

	m = send(t, m, key('f'))
	if m.Options().Frame != astro.FrameEquatorial {
		t.Fatalf("Frame = %v, want equatorial", m.Options().Frame)
	}
	eq := m.Positions()[1].Position.Pos
	want := astro.EclipticToEquatorial(ecl)
	if !scalar.EqualWithinAbs(eq.Y, want.Y, 1e-12) || !scalar.EqualWithinAbs(eq.Z, want.Z, 1e-12) {
		t.Errorf("equatorial = %+v, want %+v", eq, want)
	}

	m = send(t, m, key('f'))
	if m.Options().Frame != astro.FrameEcliptic {
		t.Errorf("Frame = %v, want ecliptic", m.Options().Frame)
	}
}

func TestModel_ViewSwitching(t *testing.T) {
	m, _ := newTestModel(t)

	view := plain(m.View())
	if !strings.Contains(view, "▶ [1] Orbit") || !strings.ContainsRune(view, '☉') {
		t.Errorf("orbit view expected:\n%s", view)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	view = plain(m.View())
	if !strings.Contains(view, "▶ [2] Table") || !strings.Contains(view, "Voyager 1") || !strings.Contains(view, "unpositionable") {
		t.Errorf("table view expected:\n%s", view)
	}

	// Keys the root doesn't own reach the orbit view.
	m = send(t, m, key('z'))
	if m.solarSystem.ScaleMode() != astro.ScaleInner {
		t.Errorf("z should cycle the scale mode, got %v", m.solarSystem.ScaleMode())
	}
}

func TestModel_FooterReportsTargetEvents(t *testing.T) {
	m, mgr := newTestModel(t)

	tests := []struct {
		name    string
		results []ephem.FetchResult
		want    []string
		absent  []string
	}{
		{
			name:    "loaded",
			results: nil,
			want:    []string{"Mars loaded (5 samples)"},
			absent:  []string{"failed:"},
		},
		{
			name: "failed",
			results: []ephem.FetchResult{
				{Target: ephem.NAIFMars, Trajectory: ephem.Trajectory{Target: ephem.NAIFMars}, Err: errors.New("timeout")},
			},
			want: []string{"failed: Mars", "Mars failed: timeout"},
		},
		{
			name: "recovered",
			results: []ephem.FetchResult{
				{Target: ephem.NAIFMars, Trajectory: marsTrajectory()},
			},
			want:   []string{"Mars recovered (5 samples)"},
			absent: []string{"failed:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.results != nil {
				mgr.Update(state.NewDataset(tt.results, testWindow, time.Now()), time.Second, nil)
				m = send(t, m, DataUpdateMsg{Snapshot: mgr.Snapshot()})
			}
			footer := plain(m.renderFooter())
			for _, w := range tt.want {
				if !strings.Contains(footer, w) {
					t.Errorf("footer missing %q:\n%s", w, footer)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(footer, a) {
					t.Errorf("footer should not contain %q:\n%s", a, footer)
				}
			}
		})
	}
}

func TestModel_NotReady(t *testing.T) {
	m := New(nil, nil, nil, position.Options{})
	if m.View() != "Initializing..." {
		t.Errorf("View() = %q", m.View())
	}
	// No engine: keys are harmless.
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if len(m.Positions()) != 0 {
		t.Error("expected no positions without an engine")
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(key('q'))
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
