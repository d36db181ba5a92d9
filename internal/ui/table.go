package ui

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/metrics"
	"github.com/litescript/ls-orrery/internal/orbit"
	"github.com/litescript/ls-orrery/internal/position"
)

const sourceUnpositionable = "unpositionable"

// ResolveAt positions every target at t and records how each was answered.
func ResolveAt(e *position.Engine, ids []ephem.TargetID, t time.Time, opts position.Options) []position.Resolved {
	rs := e.AllAt(ids, t, opts)
	recordResolutions(rs)
	return rs
}

// ResolveAtIndex positions every target at fractional frame f.
func ResolveAtIndex(e *position.Engine, ids []ephem.TargetID, f float64, opts position.Options) []position.Resolved {
	rs := e.AllAtIndex(ids, f, opts)
	recordResolutions(rs)
	return rs
}

func recordResolutions(rs []position.Resolved) {
	for _, r := range rs {
		metrics.PositionResolved(sourceLabel(r))
	}
}

func sourceLabel(r position.Resolved) string {
	if r.Err != nil {
		return sourceUnpositionable
	}
	return r.Position.Source.String()
}

// TableOptions describe the header of a rendered table.
type TableOptions struct {
	At      time.Time
	Options position.Options
}

// RenderTable renders resolved positions as a bordered table.
func RenderTable(rs []position.Resolved, to TableOptions) string {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	numStyle := cellStyle.Align(lipgloss.Right)
	modelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Padding(0, 1)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27")).Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	unit := to.Options.Unit.String()
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		name := ephem.DisplayName(r.Target)
		if r.Err != nil {
			rows = append(rows, []string{name, "-", "-", "-", "-", sourceUnpositionable, describeErr(r.Err)})
			continue
		}
		p := r.Position
		rows = append(rows, []string{
			name,
			formatCoord(p.Pos.X, to.Options),
			formatCoord(p.Pos.Y, to.Options),
			formatCoord(p.Pos.Z, to.Options),
			formatCoord(p.Pos.Norm(), to.Options),
			p.Source.String(),
			formatSampleTime(p.Time),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Body", "X ("+unit+")", "Y ("+unit+")", "Z ("+unit+")", "R ("+unit+")", "Source", "Sample").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(rows) {
				return cellStyle
			}
			switch rows[row][5] {
			case sourceUnpositionable:
				return errStyle
			case position.SourcePropagated.String():
				if col == 5 {
					return modelStyle
				}
			}
			if col >= 1 && col <= 4 {
				return numStyle
			}
			return cellStyle
		})

	title := titleStyle.Render(fmt.Sprintf("Positions at %s", to.At.UTC().Format("2006-01-02 15:04:05 UTC")))
	meta := dimStyle.Render(fmt.Sprintf("frame %s · unit %s · extrapolate %v",
		to.Options.Frame, unit, to.Options.Extrapolate))

	return title + "\n" + meta + "\n" + t.String() + "\n"
}

// RenderNEOTable renders a near-Earth object listing. Potentially
// hazardous objects are highlighted.
func RenderNEOTable(neos []ephem.NEO) string {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	numStyle := cellStyle.Align(lipgloss.Right)
	phaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27")).Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	rows := make([][]string, 0, len(neos))
	for _, n := range neos {
		pha := "no"
		if n.PHA {
			pha = "yes"
		}
		rows = append(rows, []string{
			n.FullName,
			n.OrbitClass,
			formatOptional(n.H, "%.2f"),
			formatOptional(n.DiameterKm, "%.2f"),
			formatOptional(n.MOIDAU, "%.4f"),
			pha,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Object", "Class", "H", "Diam (km)", "MOID (AU)", "PHA").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && rows[row][5] == "yes" {
				return phaStyle
			}
			if col >= 2 && col <= 4 {
				return numStyle
			}
			return cellStyle
		})

	title := titleStyle.Render(fmt.Sprintf("Near-Earth objects (%d)", len(neos)))
	return title + "\n" + t.String() + "\n"
}

func formatOptional(v float64, format string) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

func formatCoord(v float64, opts position.Options) string {
	if opts.Unit == astro.UnitAU {
		return fmt.Sprintf("%.6f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func formatSampleTime(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// describeErr shortens the error to its cause for a table cell.
func describeErr(err error) string {
	switch {
	case errors.Is(err, orbit.ErrNoModel):
		return "no data, no model"
	case errors.Is(err, orbit.ErrInvalidElements):
		return "invalid elements"
	case errors.Is(err, orbit.ErrNonFinite):
		return "model diverged"
	default:
		return err.Error()
	}
}
