// Package ui provides the terminal user interface using Bubble Tea.
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/position"
	"github.com/litescript/ls-orrery/internal/state"
	"github.com/litescript/ls-orrery/internal/version"
)

// ViewMode represents the current UI view.
type ViewMode int

const (
	ViewOrbit ViewMode = iota
	ViewTable
)

// Msg types for Bubble Tea
type (
	// TickMsg triggers periodic UI updates.
	TickMsg time.Time

	// AnimTickMsg advances playback.
	AnimTickMsg time.Time

	// DataUpdateMsg signals a new dataset was published.
	DataUpdateMsg struct {
		Snapshot state.Snapshot
	}

	// ErrorMsg signals a fetch error.
	ErrorMsg struct {
		Error error
	}
)

// Model is the root Bubble Tea model.
type Model struct {
	// Dependencies
	state   *state.Manager
	engine  *position.Engine
	targets []ephem.TargetID
	opts    position.Options

	// UI state
	viewMode ViewMode
	width    int
	height   int
	ready    bool
	animTick int
	now      func() time.Time

	timeline    Timeline
	solarSystem SolarSystemModel

	snapshot  state.Snapshot
	positions []position.Resolved
}

// New creates a new root UI model. Positions are always resolved in AU.
func New(stateMgr *state.Manager, engine *position.Engine, targets []ephem.TargetID, opts position.Options) Model {
	opts.Unit = astro.UnitAU
	return Model{
		state:       stateMgr,
		engine:      engine,
		targets:     targets,
		opts:        opts,
		viewMode:    ViewOrbit,
		now:         time.Now,
		timeline:    NewTimeline(),
		solarSystem: NewSolarSystemModel(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), animTickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		// Header ~4 lines, footer ~3 lines
		m.solarSystem = m.solarSystem.SetSize(msg.Width, msg.Height-7)

	case TickMsg:
		cmds = append(cmds, tickCmd())
		if m.state != nil {
			m.snapshot = m.state.Snapshot()
		}

	case AnimTickMsg:
		cmds = append(cmds, animTickCmd())
		m.animTick++
		if m.timeline.Playing() {
			m.timeline = m.timeline.Advance()
			m.resolve()
		}

	case DataUpdateMsg:
		m.applySnapshot(msg.Snapshot)

	case ErrorMsg:
		m.snapshot.LastError = msg.Error
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit

	case "tab":
		m.viewMode = (m.viewMode + 1) % 2
	case "1":
		m.viewMode = ViewOrbit
	case "2":
		m.viewMode = ViewTable

	case "left":
		m.timeline = m.timeline.Step(-fineStep)
	case "right":
		m.timeline = m.timeline.Step(fineStep)
	case "shift+left":
		m.timeline = m.timeline.Step(-coarseStep)
	case "shift+right":
		m.timeline = m.timeline.Step(coarseStep)
	case "home":
		m.timeline = m.timeline.Rewind()
	case " ":
		m.timeline = m.timeline.TogglePlay()
		return nil

	case "d":
		m.timeline = m.timeline.ToggleDateMode(m.now())
	case "x":
		m.opts.Extrapolate = !m.opts.Extrapolate
	case "f":
		if m.opts.Frame == astro.FrameEcliptic {
			m.opts.Frame = astro.FrameEquatorial
		} else {
			m.opts.Frame = astro.FrameEcliptic
		}

	default:
		var cmd tea.Cmd
		m.solarSystem, cmd = m.solarSystem.Update(msg)
		return cmd
	}

	m.resolve()
	return nil
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	if snap.Data != nil {
		m.timeline = m.timeline.SetWindow(snap.Data.Window, snap.Data.Frames())
	}
	m.resolve()
}

// resolve recomputes every target's position for the current timeline.
func (m *Model) resolve() {
	if m.engine == nil {
		return
	}
	opts := m.opts
	opts.Timeline = m.timeline.Window()

	if m.timeline.DateMode() {
		m.positions = ResolveAt(m.engine, m.targets, m.timeline.Time(), opts)
	} else {
		m.positions = ResolveAtIndex(m.engine, m.targets, m.timeline.Frame(), opts)
	}
	m.solarSystem = m.solarSystem.SetPositions(m.positions, opts.Frame)
}

// Timeline returns the scrubber state.
func (m Model) Timeline() Timeline { return m.timeline }

// Options returns the current resolution options.
func (m Model) Options() position.Options { return m.opts }

// Positions returns the most recently resolved positions.
func (m Model) Positions() []position.Resolved { return m.positions }

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var content string
	switch m.viewMode {
	case ViewTable:
		content = RenderTable(m.positions, TableOptions{At: m.timeline.Time(), Options: m.opts})
	default:
		content = m.solarSystem.View()
	}

	return m.renderHeader() + "\n" + content + "\n" + m.renderFooter()
}

func (m Model) renderHeader() string {
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(titleStyle.Render("ls-orrery"))
	b.WriteString(muted.Render(fmt.Sprintf("  v%s  ", version.Version)))
	b.WriteString(m.renderTabs())
	b.WriteString("\n  ")
	b.WriteString(m.renderScrubber())
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"[1] Orbit", "[2] Table"}
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	var parts []string
	for i, tab := range tabs {
		if ViewMode(i) == m.viewMode {
			parts = append(parts, activeStyle.Render("▶ "+tab))
		} else {
			parts = append(parts, dimStyle.Render("  "+tab))
		}
	}
	return strings.Join(parts, "  ")
}

// renderScrubber draws the timeline bar and the displayed instant.
func (m Model) renderScrubber() string {
	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	headStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	tl := m.timeline
	const barWidth = 40

	var b strings.Builder
	head := -1
	if tl.Frames() > 1 && !tl.DateMode() {
		head = int(math.Round(tl.Frame() / float64(tl.Frames()-1) * (barWidth - 1)))
	}
	b.WriteString(barStyle.Render("["))
	for i := 0; i < barWidth; i++ {
		if i == head {
			b.WriteString(headStyle.Render("|"))
		} else {
			b.WriteString(barStyle.Render("─"))
		}
	}
	b.WriteString(barStyle.Render("] "))

	if tl.DateMode() {
		b.WriteString(valueStyle.Render("DATE "))
	} else {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.1f/%d ", tl.Frame(), max(tl.Frames()-1, 0))))
	}

	if at := tl.Time(); !at.IsZero() {
		b.WriteString(valueStyle.Render(at.UTC().Format("2006-01-02 15:04 UTC")))
	}
	if tl.Playing() {
		b.WriteString(headStyle.Render("  ▶"))
	} else {
		b.WriteString(barStyle.Render("  ❚❚"))
	}
	if tl.Outside() {
		if m.opts.Extrapolate {
			b.WriteString(warnStyle.Render("  outside window: propagated"))
		} else {
			b.WriteString(warnStyle.Render("  outside window: nearest sample"))
		}
	}
	return b.String()
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7B2CBF"))

	spinnerFrames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinner := spinnerFrames[m.animTick%len(spinnerFrames)]

	var status string
	switch {
	case m.snapshot.LastError != nil:
		status = errorStyle.Render("ERROR: " + m.snapshot.LastError.Error())
	case !m.snapshot.LastFetch.IsZero():
		status = accentStyle.Render(spinner) + dimStyle.Render(fmt.Sprintf(" fetched %s",
			m.snapshot.LastFetch.Format("15:04:05")))
		if m.snapshot.FetchDuration > 0 {
			status += dimStyle.Render(" (" + m.snapshot.FetchDuration.Round(time.Millisecond).String() + ")")
		}
		if failed := failedNames(m.snapshot.Data); len(failed) > 0 {
			status += errorStyle.Render(" failed: " + strings.Join(failed, ", "))
		}
	default:
		status = accentStyle.Render(spinner) + dimStyle.Render(" Waiting for data...")
	}

	settings := fmt.Sprintf("frame:%s extrap:%s", m.opts.Frame, onOff(m.opts.Extrapolate))
	help := "←/→: scrub | shift: ±1 frame | space: play | d: date | x: extrap | f: frame | z: scale | j/k: focus"

	out := "  " + status + "  " + dimStyle.Render("| "+settings)
	if n := len(m.snapshot.Events); n > 0 {
		e := m.snapshot.Events[n-1]
		style := dimStyle
		if e.Type == state.EventTargetFailed {
			style = errorStyle
		}
		out += "\n  " + style.Render(formatEvent(e))
	}
	return out + "\n  " + dimStyle.Render(help)
}

// failedNames lists the targets whose last fetch failed, in ID order.
func failedNames(ds *state.Dataset) []string {
	if ds == nil || len(ds.Errors) == 0 {
		return nil
	}
	var names []string
	for _, id := range ds.Targets() {
		if _, ok := ds.Errors[id]; ok {
			names = append(names, ephem.DisplayName(id))
		}
	}
	return names
}

func formatEvent(e state.Event) string {
	name := ephem.DisplayName(e.Target)
	at := e.Timestamp.Format("15:04:05")
	switch e.Type {
	case state.EventTargetFailed:
		return fmt.Sprintf("%s %s failed: %s", at, name, e.Error)
	case state.EventTargetRecovered:
		return fmt.Sprintf("%s %s recovered (%d samples)", at, name, e.Samples)
	default:
		return fmt.Sprintf("%s %s loaded (%d samples)", at, name, e.Samples)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func animTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return AnimTickMsg(t)
	})
}
