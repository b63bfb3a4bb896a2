package core

// Status is the lifecycle tag of a budget, derived from allocated and spent.
type Status string

const (
	StatusNotStarted  Status = "NotStarted"
	StatusOnTrack     Status = "OnTrack"
	StatusInProgress  Status = "InProgress"
	StatusAlmostSpent Status = "AlmostSpent"
	StatusFullySpent  Status = "FullySpent"
	StatusOverBudget  Status = "OverBudget"
)

// Statuses lists every known status tag in display order.
var Statuses = []Status{
	StatusNotStarted,
	StatusOnTrack,
	StatusInProgress,
	StatusAlmostSpent,
	StatusFullySpent,
	StatusOverBudget,
}

// Label returns a human readable label for the status.
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not Started"
	case StatusOnTrack:
		return "On Track"
	case StatusInProgress:
		return "In Progress"
	case StatusAlmostSpent:
		return "Almost Spent"
	case StatusFullySpent:
		return "Fully Spent"
	case StatusOverBudget:
		return "Over Budget"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known tags.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts either the tag or its label.
func ParseStatus(v string) (Status, bool) {
	for _, s := range Statuses {
		if v == string(s) || v == s.Label() {
			return s, true
		}
	}
	return "", false
}

// DeriveStatus maps an (allocated, spent) pair to a status tag.
//
// The checks run in a fixed order and the first match wins:
//
//	spent == 0                 -> NotStarted
//	remaining < 0              -> OverBudget
//	remaining == 0             -> FullySpent
//	spent > 90% of allocated   -> AlmostSpent
//	spent > 50% of allocated   -> InProgress
//	otherwise                  -> OnTrack
//
// The percentage thresholds are compared in integer cents, so there is no
// rounding at the boundaries.
func DeriveStatus(allocated, spent Money) Status {
	a, s := allocated.Cents, spent.Cents
	remaining := a - s
	switch {
	case s == 0:
		return StatusNotStarted
	case remaining < 0:
		return StatusOverBudget
	case remaining == 0:
		return StatusFullySpent
	case s*10 > a*9:
		return StatusAlmostSpent
	case s*2 > a:
		return StatusInProgress
	default:
		return StatusOnTrack
	}
}
