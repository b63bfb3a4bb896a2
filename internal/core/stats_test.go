package core

import (
	"reflect"
	"testing"
)

func budget(cat, com string, allocated, spent int64) Budget {
	a, s := Money{Cents: allocated}, Money{Cents: spent}
	return Budget{
		Category:  cat,
		Committee: com,
		Allocated: a,
		Spent:     s,
		Remaining: a.Sub(s),
		Status:    DeriveStatus(a, s),
	}
}

func TestAggregateTotals(t *testing.T) {
	budgets := []Budget{
		budget("Events", "Sports", 10000, 5000),
		budget("", "", 20000, 20000),
		budget("Events", "Finance", 30000, 40000),
	}
	st := Aggregate(budgets)

	if st.TotalAllocated.Cents != 60000 || st.TotalSpent.Cents != 65000 || st.TotalRemaining.Cents != -5000 {
		t.Fatalf("unexpected totals: %+v", st)
	}
	if st.Count != 3 {
		t.Fatalf("count = %d", st.Count)
	}
	if st.ByCategory["Events"] != 2 || st.ByCategory[DefaultCategory] != 1 {
		t.Fatalf("by category: %v", st.ByCategory)
	}
	if st.ByCommittee[DefaultCommittee] != 1 {
		t.Fatalf("by committee: %v", st.ByCommittee)
	}
	sum := func(m map[string]int) (n int) {
		for _, v := range m {
			n += v
		}
		return n
	}
	if sum(st.ByCategory) != len(budgets) || sum(st.ByCommittee) != len(budgets) {
		t.Fatalf("groupings do not cover the collection")
	}
	if st.ByStatus[StatusInProgress] != 0 || st.ByStatus[StatusOnTrack] != 1 ||
		st.ByStatus[StatusFullySpent] != 1 || st.ByStatus[StatusOverBudget] != 1 {
		t.Fatalf("by status: %v", st.ByStatus)
	}
	if st.SpentByCategory["Events"].Cents != 45000 {
		t.Fatalf("spent by category: %v", st.SpentByCategory)
	}
}

func TestAggregateSeedsEveryStatus(t *testing.T) {
	st := Aggregate(nil)
	if len(st.ByStatus) != len(Statuses) {
		t.Fatalf("expected %d seeded statuses, got %v", len(Statuses), st.ByStatus)
	}
	for _, s := range Statuses {
		if n, ok := st.ByStatus[s]; !ok || n != 0 {
			t.Fatalf("status %s not seeded at zero", s)
		}
	}
}

func TestAggregateIsPure(t *testing.T) {
	budgets := []Budget{budget("Events", "Sports", 100, 50), budget("Supplies", "Finance", 300, 0)}
	if !reflect.DeepEqual(Aggregate(budgets), Aggregate(budgets)) {
		t.Fatal("aggregate differs across identical inputs")
	}
}

func TestAggregateTrustsStoredStatus(t *testing.T) {
	b := budget("Events", "Sports", 10000, 10000)
	b.Status = StatusOnTrack // edited behind our back
	st := Aggregate([]Budget{b})
	if st.ByStatus[StatusOnTrack] != 1 || st.ByStatus[StatusFullySpent] != 0 {
		t.Fatalf("expected stored status to be counted: %v", st.ByStatus)
	}
	if st.StaleStatus != 1 {
		t.Fatalf("expected stale status to be flagged, got %d", st.StaleStatus)
	}
}
