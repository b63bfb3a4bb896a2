// Package report builds the analytics view model: filtered budget lists,
// chart series and CSV export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"treasury/internal/core"
)

// Filter narrows the budget list. Zero values match everything.
type Filter struct {
	Category   string
	Committee  string
	Status     core.Status
	FiscalYear int
	Query      string
	ActiveOnly bool
}

// FilterFromQuery reads a Filter from URL query parameters.
func FilterFromQuery(q url.Values) Filter {
	f := Filter{
		Category:   strings.TrimSpace(q.Get("category")),
		Committee:  strings.TrimSpace(q.Get("committee")),
		Query:      strings.TrimSpace(q.Get("q")),
		ActiveOnly: q.Get("active") == "1" || q.Get("active") == "true",
	}
	if s, ok := core.ParseStatus(strings.TrimSpace(q.Get("status"))); ok {
		f.Status = s
	}
	if y, err := strconv.Atoi(q.Get("year")); err == nil {
		f.FiscalYear = y
	}
	return f
}

// Values renders f back into URL parameters, omitting empty fields.
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Committee != "" {
		q.Set("committee", f.Committee)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.FiscalYear != 0 {
		q.Set("year", strconv.Itoa(f.FiscalYear))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.ActiveOnly {
		q.Set("active", "1")
	}
	return q
}

// Match reports whether b passes the filter.
func (f Filter) Match(b core.Budget) bool {
	if f.Category != "" && !strings.EqualFold(b.Category, f.Category) {
		return false
	}
	if f.Committee != "" && !strings.EqualFold(b.Committee, f.Committee) {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.FiscalYear != 0 && b.FiscalYear != f.FiscalYear {
		return false
	}
	if f.ActiveOnly && !b.Active {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(b.EventName), q) &&
			!strings.Contains(strings.ToLower(b.Description), q) &&
			!strings.Contains(strings.ToLower(b.Resolution), q) {
			return false
		}
	}
	return true
}

// Apply returns the budgets matching f, keeping their order.
func (f Filter) Apply(budgets []core.Budget) []core.Budget {
	out := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}

// Point is one bar or slice of a chart.
type Point struct {
	Label string
	Value float64
}

// Pair is an allocated-versus-spent bar group.
type Pair struct {
	Label     string
	Allocated float64
	Spent     float64
}

// Charts holds every series the analytics page draws.
type Charts struct {
	ByCategory  []Point
	ByCommittee []Point
	ByStatus    []Point
	Committees  []Pair
}

// BuildCharts derives chart series from an aggregate. Category and committee
// series are sorted by descending count, then label.
func BuildCharts(s core.Statistics) Charts {
	c := Charts{
		ByCategory:  countSeries(s.ByCategory),
		ByCommittee: countSeries(s.ByCommittee),
	}
	for _, st := range core.Statuses {
		c.ByStatus = append(c.ByStatus, Point{Label: st.Label(), Value: float64(s.ByStatus[st])})
	}

	labels := make([]string, 0, len(s.AllocatedByCommittee))
	for k := range s.AllocatedByCommittee {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, k := range labels {
		c.Committees = append(c.Committees, Pair{
			Label:     k,
			Allocated: s.AllocatedByCommittee[k].Float(),
			Spent:     s.SpentByCommittee[k].Float(),
		})
	}
	return c
}

func countSeries(m map[string]int) []Point {
	out := make([]Point, 0, len(m))
	for k, v := range m {
		out = append(out, Point{Label: k, Value: float64(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Max returns the largest value in the series, at least 1, for bar scaling.
func Max(points []Point) float64 {
	m := 1.0
	for _, p := range points {
		if p.Value > m {
			m = p.Value
		}
	}
	return m
}

// View is the analytics page model.
type View struct {
	Filter   Filter
	Budgets  []core.Budget
	Stats    core.Statistics
	Charts   Charts
	Loading  bool
	Total    int
	Years    []int
	Statuses []core.Status
}

// Build filters budgets and aggregates the filtered set.
func Build(budgets []core.Budget, f Filter) View {
	filtered := f.Apply(budgets)
	stats := core.Aggregate(filtered)
	return View{
		Filter:   f,
		Budgets:  filtered,
		Stats:    stats,
		Charts:   BuildCharts(stats),
		Total:    len(budgets),
		Years:    fiscalYears(budgets),
		Statuses: core.Statuses,
	}
}

func fiscalYears(budgets []core.Budget) []int {
	seen := make(map[int]bool)
	var years []int
	for _, b := range budgets {
		if b.FiscalYear != 0 && !seen[b.FiscalYear] {
			seen[b.FiscalYear] = true
			years = append(years, b.FiscalYear)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// CSVHeader lists the export columns in order.
var CSVHeader = []string{
	"id", "eventName", "category", "committee",
	"allocated", "spent", "remaining", "utilization", "status",
	"fiscalYear", "startDate", "endDate", "resolution", "description",
	"receiptUrl", "createdBy", "userRole", "createdAt", "updatedAt",
}

// WriteCSV writes budgets with a header row.
func WriteCSV(w io.Writer, budgets []core.Budget) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range budgets {
		if err := cw.Write(Row(b)); err != nil {
			return fmt.Errorf("write csv row %s: %w", b.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Row renders b in CSVHeader column order. Text cells are sanitized for
// spreadsheet import.
func Row(b core.Budget) []string {
	year := ""
	if b.FiscalYear != 0 {
		year = strconv.Itoa(b.FiscalYear)
	}
	return []string{
		b.ID,
		sanitize(b.EventName),
		sanitize(b.Category),
		sanitize(b.Committee),
		b.Allocated.String(),
		b.Spent.String(),
		b.Remaining.String(),
		strconv.FormatFloat(b.Utilization(), 'f', 1, 64),
		string(b.Status),
		year,
		b.StartDate.String(),
		b.EndDate.String(),
		sanitize(b.Resolution),
		sanitize(b.Description),
		sanitize(b.ReceiptURL),
		sanitize(b.CreatedBy),
		sanitize(b.UserRole),
		timestamp(b.CreatedAt),
		timestamp(b.UpdatedAt),
	}
}

// sanitize neutralizes cells a spreadsheet would evaluate as formulas.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Filename returns the download name for an export taken at now.
func Filename(now time.Time) string {
	return "budgets-" + now.Format("2006-01-02") + ".csv"
}
