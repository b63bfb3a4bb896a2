package http

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"treasury/internal/core"
	"treasury/internal/report"
)

// templateFuncs are shared by every page and partial.
var templateFuncs = template.FuncMap{
	"money":       func(m core.Money) string { return m.Display() },
	"percent":     func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"statusClass": statusClass,
	"statusCount": func(s core.Statistics, st core.Status) int { return s.ByStatus[st] },
	"statuses":    func() []core.Status { return core.Statuses },
	"categories":  func() []string { return core.Categories },
	"committees":  func() []string { return core.Committees },
	"date":        formatDate,
	"timestamp":   formatTimestamp,
	"barWidth":    barWidth,
	"chartMax":    report.Max,
	"pairMax":     pairMax,
	"chart":       func(title string, points []report.Point) chartView { return chartView{title, points} },
}

type chartView struct {
	Title  string
	Points []report.Point
}

func statusClass(s core.Status) string {
	switch s {
	case core.StatusOverBudget:
		return "status-over"
	case core.StatusFullySpent, core.StatusAlmostSpent:
		return "status-warn"
	case core.StatusInProgress:
		return "status-progress"
	case core.StatusOnTrack:
		return "status-ok"
	default:
		return "status-idle"
	}
}

func formatDate(d core.Date) string {
	if d.IsEmpty() {
		return "-"
	}
	return d.Format("02 Jan 2006")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("02 Jan 2006 15:04")
}

// barWidth scales v against max into a CSS percentage.
func barWidth(v, max float64) string {
	if max <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", clampPercent(v*100/max))
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// pairMax is the largest allocated or spent value, at least 1.
func pairMax(pairs []report.Pair) float64 {
	m := 1.0
	for _, p := range pairs {
		m = max(m, p.Allocated, p.Spent)
	}
	return m
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
