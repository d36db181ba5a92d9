package ui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/position"
)

// LabelMode controls which bodies get a name next to their glyph.
type LabelMode int

const (
	LabelNone LabelMode = iota
	LabelFocused
	LabelAll
)

func (l LabelMode) String() string {
	switch l {
	case LabelNone:
		return "off"
	case LabelFocused:
		return "focus"
	case LabelAll:
		return "all"
	default:
		return "unknown"
	}
}

// SolarSystemModel renders a top-down ecliptic view of resolved positions.
type SolarSystemModel struct {
	width     int
	height    int
	positions []position.Resolved
	frame     astro.Frame // frame the positions are expressed in

	// View state
	focusIdx   int     // Index in positions (-1 = Sun)
	zoomLevel  int     // Index into zoomLevels
	panX       float64 // Pan offset in display units
	panY       float64
	scaleMode  astro.ScaleMode
	labelMode  LabelMode
	userPanned bool // True if user has manually panned (disables auto-center on zoom)
}

// Discrete zoom levels for clean stepping
var zoomLevels = []float64{0.25, 0.5, 0.75, 1.0, 1.5, 2.0, 3.0, 5.0, 10.0}

const defaultZoom = 3

// NewSolarSystemModel creates a new solar system view model.
func NewSolarSystemModel() SolarSystemModel {
	return SolarSystemModel{
		focusIdx:  -1,
		zoomLevel: defaultZoom,
		scaleMode: astro.ScaleLogR,
		labelMode: LabelAll,
	}
}

// scale returns the current zoom scale.
func (m SolarSystemModel) scale() float64 {
	if m.zoomLevel < 0 || m.zoomLevel >= len(zoomLevels) {
		return 1.0
	}
	return zoomLevels[m.zoomLevel]
}

// SetSize updates the viewport size.
func (m SolarSystemModel) SetSize(width, height int) SolarSystemModel {
	m.width = width
	m.height = height
	return m
}

// SetPositions replaces the drawn positions. Positions must be in AU.
func (m SolarSystemModel) SetPositions(rs []position.Resolved, frame astro.Frame) SolarSystemModel {
	m.positions = rs
	m.frame = frame
	if m.focusIdx >= len(rs) {
		m.focusIdx = -1
	}
	if !m.userPanned {
		m.centerOnFocused()
	}
	return m
}

// ScaleMode returns the radial scaling mode.
func (m SolarSystemModel) ScaleMode() astro.ScaleMode { return m.scaleMode }

// Update handles input messages.
func (m SolarSystemModel) Update(msg tea.Msg) (SolarSystemModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "[":
			m.focusPrev()
		case "k", "]":
			m.focusNext()

		// Arrow keys belong to the scrubber; pan with the vi keys.
		case "K", "ctrl+up":
			m.panY -= 0.1 / m.scale()
			m.userPanned = true
		case "J", "ctrl+down":
			m.panY += 0.1 / m.scale()
			m.userPanned = true
		case "H", "ctrl+left":
			m.panX -= 0.1 / m.scale()
			m.userPanned = true
		case "L", "ctrl+right":
			m.panX += 0.1 / m.scale()
			m.userPanned = true
		case "c":
			m.panX, m.panY = 0, 0
			m.userPanned = false

		case "+", "=":
			if m.zoomLevel < len(zoomLevels)-1 {
				m.zoomLevel++
				if !m.userPanned {
					m.centerOnFocused()
				}
			}
		case "-":
			if m.zoomLevel > 0 {
				m.zoomLevel--
				if !m.userPanned {
					m.centerOnFocused()
				}
			}
		case "0":
			m.zoomLevel = defaultZoom
			if !m.userPanned {
				m.centerOnFocused()
			}

		case "z":
			m.scaleMode = (m.scaleMode + 1) % 3
			if !m.userPanned {
				m.centerOnFocused()
			}

		case "l":
			m.labelMode = (m.labelMode + 1) % 3

		case "r":
			m.panX, m.panY = 0, 0
			m.zoomLevel = defaultZoom
			m.userPanned = false
		}
	}
	return m, nil
}

func (m *SolarSystemModel) focusNext() {
	if len(m.positions) == 0 {
		return
	}
	m.focusIdx++
	if m.focusIdx >= len(m.positions) {
		m.focusIdx = -1 // Wrap to Sun
	}
	m.centerOnFocused()
	m.userPanned = false
}

func (m *SolarSystemModel) focusPrev() {
	if len(m.positions) == 0 {
		return
	}
	m.focusIdx--
	if m.focusIdx < -1 {
		m.focusIdx = len(m.positions) - 1
	}
	m.centerOnFocused()
	m.userPanned = false
}

// projectionConfig returns the projection for the current zoom and mode.
func (m SolarSystemModel) projectionConfig() astro.ProjectionConfig {
	return astro.ProjectionConfig{Scale: m.scale(), Mode: m.scaleMode}
}

// ecliptic returns p in the ecliptic plane used by the canvas.
func (m SolarSystemModel) ecliptic(p astro.Vec3) astro.Vec3 {
	if m.frame == astro.FrameEquatorial {
		return astro.EquatorialToEcliptic(p)
	}
	return p
}

// centerOnFocused pans the view to center on the currently focused body.
func (m *SolarSystemModel) centerOnFocused() {
	r := m.FocusedBody()
	if r == nil || r.Err != nil {
		m.panX, m.panY = 0, 0
		return
	}
	proj := astro.ProjectEclipticTopDown(m.ecliptic(r.Position.Pos), m.projectionConfig())
	m.panX = -proj.X
	m.panY = -proj.Y
}

// View renders the solar system view.
func (m SolarSystemModel) View() string {
	if m.width < 40 || m.height < 10 {
		return "Terminal too small for solar system view"
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.buildCanvas(), m.renderHUD())
}

// bodyPos tracks a body's screen position for label rendering.
type bodyPos struct {
	x, y      int
	name      string
	isFocused bool
}

// buildCanvas renders the positions to a string canvas.
func (m SolarSystemModel) buildCanvas() string {
	// Reserve space for HUD
	canvasH := max(m.height-3, 5)
	canvasW := m.width

	grid := make([][]rune, canvasH)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", canvasW))
	}

	screenCenterX := canvasW / 2
	screenCenterY := canvasH / 2

	scale := m.scale()
	cfg := m.projectionConfig()

	// Map log(30 AU + 1) ~ 1.5 to fit in half the canvas
	maxDisplayR := float64(min(screenCenterX, screenCenterY*2)) * 0.9
	displayScale := maxDisplayR / 1.5 * scale

	// Positive panX moves origin right, positive panY moves origin up
	originX := screenCenterX + int(m.panX*displayScale)
	originY := screenCenterY - int(m.panY*displayScale)

	m.drawOrbitRings(grid, originX, originY, displayScale, cfg)

	var positions []bodyPos
	for i, r := range m.positions {
		if r.Err != nil || r.Target == ephem.NAIFSun {
			continue
		}

		proj := astro.ProjectEclipticTopDown(m.ecliptic(r.Position.Pos), cfg)
		sx := originX + int(proj.X*displayScale)
		sy := originY - int(proj.Y*displayScale*0.5) // Aspect ratio correction

		if sx < 0 || sx >= canvasW || sy < 0 || sy >= canvasH {
			continue
		}

		grid[sy][sx] = bodyGlyph(r, i == m.focusIdx)
		positions = append(positions, bodyPos{
			x:         sx,
			y:         sy,
			name:      ephem.DisplayName(r.Target),
			isFocused: i == m.focusIdx,
		})
	}

	// Sun last so it's always visible
	if originX >= 0 && originX < canvasW && originY >= 0 && originY < canvasH {
		grid[originY][originX] = '☉'
		positions = append(positions, bodyPos{
			x:         originX,
			y:         originY,
			name:      "Sun",
			isFocused: m.focusIdx == -1,
		})
	}

	m.renderLabels(grid, canvasW, canvasH, positions)

	return renderGrid(grid)
}

func (m SolarSystemModel) drawOrbitRings(grid [][]rune, cx, cy int, scale float64, cfg astro.ProjectionConfig) {
	// Earth, Jupiter, Saturn, Uranus, Neptune regions
	for _, au := range []float64{1, 5, 10, 20, 30} {
		proj := astro.ProjectEclipticTopDown(astro.Vec3{X: au}, cfg)
		drawCircle(grid, cx, cy, proj.X*scale)
	}
}

func drawCircle(grid [][]rune, cx, cy int, r float64) {
	if r < 1 {
		return
	}

	h := len(grid)
	w := len(grid[0])

	steps := min(max(int(2*math.Pi*r), 8), 360)
	for i := 0; i < steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		x := cx + int(r*math.Cos(theta))
		y := cy - int(r*math.Sin(theta)*0.5) // Aspect ratio correction

		if x >= 0 && x < w && y >= 0 && y < h && grid[y][x] == ' ' {
			grid[y][x] = '·'
		}
	}
}

// renderLabels draws body labels on the canvas based on label mode.
func (m SolarSystemModel) renderLabels(grid [][]rune, width, height int, positions []bodyPos) {
	if m.labelMode == LabelNone {
		return
	}

	for _, pos := range positions {
		if m.labelMode == LabelFocused && !pos.isFocused {
			continue
		}

		labelX := pos.x + 2
		labelY := pos.y
		if labelY < 0 || labelY >= height || labelX >= width {
			continue
		}

		labelText := pos.name
		if pos.isFocused {
			labelText = "◄ " + pos.name
		}

		for i, r := range []rune(labelText) {
			x := labelX + i
			if x >= width {
				break
			}
			if grid[labelY][x] == ' ' || grid[labelY][x] == '·' {
				grid[labelY][x] = r
			}
		}
	}
}

// bodyGlyph picks a glyph by body kind. Propagated positions are hollow.
func bodyGlyph(r position.Resolved, focused bool) rune {
	if focused {
		return '●'
	}
	if r.Position.Source == position.SourcePropagated {
		return '∘'
	}
	b, ok := ephem.GetBody(r.Target)
	if !ok {
		return '◇'
	}
	switch b.Kind {
	case ephem.BodyPlanet:
		if r.Target >= ephem.NAIFJupiter && r.Target <= ephem.NAIFNeptune {
			return '○'
		}
		return '•'
	case ephem.BodyDwarf:
		return '˚'
	case ephem.BodySmall:
		return '·'
	default:
		return '◇'
	}
}

func renderGrid(grid [][]rune) string {
	var b strings.Builder

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	sunStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	planetStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	giantStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	scStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	modelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	focusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("249"))

	for _, row := range grid {
		for _, ch := range row {
			var style lipgloss.Style

			switch ch {
			case ' ':
				b.WriteRune(ch)
				continue
			case '·':
				style = dimStyle
			case '☉':
				style = sunStyle
			case '•', '˚':
				style = planetStyle
			case '○':
				style = giantStyle
			case '◇':
				style = scStyle
			case '∘':
				style = modelStyle
			case '●', '◄':
				style = focusStyle
			default:
				style = labelStyle
			}

			b.WriteString(style.Render(string(ch)))
		}
		b.WriteRune('\n')
	}

	return b.String()
}

func (m SolarSystemModel) renderHUD() string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))

	focused := m.FocusedBody()
	switch {
	case focused == nil:
		b.WriteString(headerStyle.Render("☉ Sun"))
		b.WriteString("  ")
		b.WriteString(dimStyle.Render("(center of view)"))
	case focused.Err != nil:
		b.WriteString(headerStyle.Render("◆ " + ephem.DisplayName(focused.Target)))
		b.WriteString("  ")
		b.WriteString(errStyle.Render("no position"))
	default:
		p := focused.Position
		ecl := m.ecliptic(p.Pos)
		dist := ecl.Norm()
		b.WriteString(headerStyle.Render("◆ " + ephem.DisplayName(focused.Target)))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("Dist: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.3f AU", dist)))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("Light: "))
		b.WriteString(valueStyle.Render(formatLightTime(astro.LightTimeFromAU(dist))))
		b.WriteString("  ")
		b.WriteString(labelStyle.Render("Lon/Lat: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.1f° %+.1f°",
			astro.EclipticLongitude(ecl), astro.EclipticLatitude(ecl))))
		b.WriteString("  ")
		b.WriteString(dimStyle.Render("[" + p.Source.String() + "]"))
	}
	b.WriteString("\n")

	b.WriteString(dimStyle.Render("Mode:"))
	b.WriteString(valueStyle.Render(m.scaleMode.String()))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("Zoom:"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.2gx", m.scale())))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("Labels:"))
	b.WriteString(valueStyle.Render(m.labelMode.String()))

	return b.String()
}

// FocusedBody returns the focused resolution, or nil for the Sun.
func (m SolarSystemModel) FocusedBody() *position.Resolved {
	if m.focusIdx >= 0 && m.focusIdx < len(m.positions) {
		return &m.positions[m.focusIdx]
	}
	return nil
}

// formatLightTime renders a one-way light time in seconds.
func formatLightTime(sec float64) string {
	switch {
	case sec < 60:
		return fmt.Sprintf("%.1fs", sec)
	case sec < 3600:
		return fmt.Sprintf("%.1fm", sec/60)
	default:
		h := int(sec / 3600)
		m := int(math.Mod(sec, 3600) / 60)
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}
