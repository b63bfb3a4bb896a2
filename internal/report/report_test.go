package report

import (
	"bytes"
	"encoding/csv"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/core"
)

func budgets() []core.Budget {
	mk := func(id, name, cat, com string, alloc, spent int64, year int, active bool) core.Budget {
		a, s := core.Money{Cents: alloc}, core.Money{Cents: spent}
		return core.Budget{
			ID: id, EventName: name, Category: cat, Committee: com,
			Allocated: a, Spent: s, Remaining: a.Sub(s), Status: core.DeriveStatus(a, s),
			FiscalYear: year, Active: active,
		}
	}
	return []core.Budget{
		mk("1", "Spring Gala", "Events", "Executive", 100000, 95000, 2025, true),
		mk("2", "Book Drive", "Donations", "Community Service", 20000, 0, 2025, true),
		mk("3", "Jerseys", "Equipment", "Sports", 50000, 30000, 2024, false),
		mk("4", "Movie Night", "Events", "Arts & Culture", 10000, 2000, 2024, true),
	}
}

func TestFilterFromQueryRoundTrip(t *testing.T) {
	q := url.Values{"category": {"Events"}, "status": {"Almost Spent"}, "year": {"2025"}, "q": {"gala"}, "active": {"1"}}
	f := FilterFromQuery(q)

	assert.Equal(t, "Events", f.Category)
	assert.Equal(t, core.StatusAlmostSpent, f.Status)
	assert.Equal(t, 2025, f.FiscalYear)
	assert.True(t, f.ActiveOnly)
	assert.Equal(t, f, FilterFromQuery(f.Values()))
}

func TestFilterApply(t *testing.T) {
	all := budgets()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"1", "2", "3", "4"}},
		{"category case-insensitive", Filter{Category: "events"}, []string{"1", "4"}},
		{"committee", Filter{Committee: "Sports"}, []string{"3"}},
		{"status", Filter{Status: core.StatusNotStarted}, []string{"2"}},
		{"year", Filter{FiscalYear: 2024}, []string{"3", "4"}},
		{"text search", Filter{Query: "NIGHT"}, []string{"4"}},
		{"active only", Filter{ActiveOnly: true}, []string{"1", "2", "4"}},
		{"combined", Filter{Category: "Events", FiscalYear: 2025}, []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, b := range tt.filter.Apply(all) {
				got = append(got, b.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildAggregatesFilteredSet(t *testing.T) {
	v := Build(budgets(), Filter{Category: "Events"})

	assert.Equal(t, 4, v.Total)
	assert.Len(t, v.Budgets, 2)
	assert.Equal(t, int64(110000), v.Stats.TotalAllocated.Cents)
	assert.Equal(t, []int{2025, 2024}, v.Years)

	require.Len(t, v.Charts.ByStatus, len(core.Statuses))
	assert.Equal(t, "Not Started", v.Charts.ByStatus[0].Label)
	require.Len(t, v.Charts.ByCategory, 1)
	assert.Equal(t, Point{Label: "Events", Value: 2}, v.Charts.ByCategory[0])

	require.Len(t, v.Charts.Committees, 2)
	assert.Equal(t, "Arts & Culture", v.Charts.Committees[0].Label)
	assert.Equal(t, 100.0, v.Charts.Committees[0].Allocated)
	assert.Equal(t, 20.0, v.Charts.Committees[0].Spent)
}

func TestCountSeriesOrdering(t *testing.T) {
	got := countSeries(map[string]int{"b": 2, "a": 2, "c": 5})
	assert.Equal(t, []Point{{"c", 5}, {"a", 2}, {"b", 2}}, got)
	assert.Equal(t, 5.0, Max(got))
	assert.Equal(t, 1.0, Max(nil))
}

func TestWriteCSV(t *testing.T) {
	b := budgets()[0]
	b.Description = "=HYPERLINK(\"x\")"
	b.CreatedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b.StartDate = core.NewDate(2025, 3, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []core.Budget{b}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeader, rows[0])

	row := make(map[string]string)
	for i, h := range rows[0] {
		row[h] = rows[1][i]
	}
	assert.Equal(t, "1000.00", row["allocated"])
	assert.Equal(t, "50.00", row["remaining"])
	assert.Equal(t, "95.0", row["utilization"])
	assert.Equal(t, "AlmostSpent", row["status"])
	assert.Equal(t, "2025-03-01", row["startDate"])
	assert.Equal(t, "", row["endDate"])
	assert.Equal(t, "'=HYPERLINK(\"x\")", row["description"])
	assert.Equal(t, "2025-01-02T03:04:05Z", row["createdAt"])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "budgets-2025-06-30.csv", Filename(time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)))
}
