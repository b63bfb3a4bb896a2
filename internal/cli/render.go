package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"treasury/internal/core"
)

var (
	ColorBorder = lipgloss.Color("#575653")
	ColorText   = lipgloss.Color("#FFFCF0")
	ColorMuted  = lipgloss.Color("#6F6E69")
	ColorAccent = lipgloss.Color("#3AA99F")
	ColorGreen  = lipgloss.Color("#879A39")
	ColorYellow = lipgloss.Color("#D0A215")
	ColorOrange = lipgloss.Color("#DA702C")
	ColorRed    = lipgloss.Color("#D14D41")
	ColorBlue   = lipgloss.Color("#4385BE")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(ColorBorder)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Table is a titled grid of text cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// RightAlign marks numeric columns by index.
	RightAlign map[int]bool
}

// RenderTitle renders a title in a rounded box.
func RenderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 2).
		Render(titleStyle.Render(title))
}

// RenderTable renders t with rounded borders. An empty table renders a
// muted placeholder line.
func RenderTable(t Table) string {
	var b strings.Builder
	if t.Title != "" {
		b.WriteString(titleStyle.Render(t.Title))
		b.WriteString("\n")
	}
	if len(t.Rows) == 0 {
		b.WriteString(mutedStyle.Render("  (no rows)"))
		b.WriteString("\n")
		return b.String()
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if t.RightAlign[col] {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	return b.String()
}

// StatusColor maps a budget status to its display color.
func StatusColor(s core.Status) lipgloss.Color {
	switch s {
	case core.StatusOnTrack:
		return ColorGreen
	case core.StatusInProgress:
		return ColorBlue
	case core.StatusAlmostSpent:
		return ColorYellow
	case core.StatusFullySpent:
		return ColorOrange
	case core.StatusOverBudget:
		return ColorRed
	default:
		return ColorMuted
	}
}

// RenderStatus renders the status label in its color.
func RenderStatus(s core.Status) string {
	return lipgloss.NewStyle().Foreground(StatusColor(s)).Render(s.Label())
}

// RenderBar renders a utilization bar of width cells for pct in [0,100].
func RenderBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	color := ColorGreen
	switch {
	case pct > 90:
		color = ColorRed
	case pct > 50:
		color = ColorOrange
	}
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
}
