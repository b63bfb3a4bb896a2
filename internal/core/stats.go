package core

// Statistics is the collection-wide aggregate. It is never persisted and is
// recomputed from the full collection on every change.
type Statistics struct {
	TotalAllocated Money
	TotalSpent     Money
	TotalRemaining Money
	Count          int
	ByCategory     map[string]int
	ByCommittee    map[string]int
	ByStatus       map[Status]int
	// Sub-totals per tag, used by the analytics charts.
	AllocatedByCategory  map[string]Money
	SpentByCategory      map[string]Money
	AllocatedByCommittee map[string]Money
	SpentByCommittee     map[string]Money
	// StaleStatus counts records whose stored status differs from the one
	// derived from their stored amounts. ByStatus still uses the stored value.
	StaleStatus int
}

// Aggregate reduces the collection into Statistics. It is a pure function of
// its input.
func Aggregate(budgets []Budget) Statistics {
	st := Statistics{
		ByCategory:           make(map[string]int),
		ByCommittee:          make(map[string]int),
		ByStatus:             make(map[Status]int, len(Statuses)),
		AllocatedByCategory:  make(map[string]Money),
		SpentByCategory:      make(map[string]Money),
		AllocatedByCommittee: make(map[string]Money),
		SpentByCommittee:     make(map[string]Money),
	}
	for _, s := range Statuses {
		st.ByStatus[s] = 0
	}

	for _, b := range budgets {
		st.Count++
		st.TotalAllocated = st.TotalAllocated.Add(b.Allocated)
		st.TotalSpent = st.TotalSpent.Add(b.Spent)
		st.TotalRemaining = st.TotalRemaining.Add(b.Remaining)

		cat := b.Category
		if cat == "" {
			cat = DefaultCategory
		}
		com := b.Committee
		if com == "" {
			com = DefaultCommittee
		}
		st.ByCategory[cat]++
		st.ByCommittee[com]++
		st.AllocatedByCategory[cat] = st.AllocatedByCategory[cat].Add(b.Allocated)
		st.SpentByCategory[cat] = st.SpentByCategory[cat].Add(b.Spent)
		st.AllocatedByCommittee[com] = st.AllocatedByCommittee[com].Add(b.Allocated)
		st.SpentByCommittee[com] = st.SpentByCommittee[com].Add(b.Spent)

		if b.Status != "" {
			st.ByStatus[b.Status]++
		}
		if !b.StatusConsistent() {
			st.StaleStatus++
		}
	}
	return st
}

// Utilization returns total spent as a percentage of total allocated.
func (s Statistics) Utilization() float64 {
	if s.TotalAllocated.Cents <= 0 {
		return 0
	}
	return float64(s.TotalSpent.Cents) * 100 / float64(s.TotalAllocated.Cents)
}
