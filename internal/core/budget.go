package core

import (
	"strings"
	"time"
)

const (
	DefaultCategory  = "Uncategorized"
	DefaultCommittee = "General"
)

// Categories and Committees are the tags offered by the budget form.
// Stored records may carry other values; they are kept as-is.
var (
	Categories = []string{
		"Events",
		"Supplies",
		"Food & Beverages",
		"Transportation",
		"Equipment",
		"Marketing",
		"Donations",
		DefaultCategory,
	}
	Committees = []string{
		"Executive",
		"Finance",
		"Academic",
		"Sports",
		"Arts & Culture",
		"Community Service",
		"Publicity",
		DefaultCommittee,
	}
)

type (
	// Budget is one allocation record for an event, project or committee.
	Budget struct {
		ID          string
		EventName   string
		Category    string
		Committee   string
		Allocated   Money
		Spent       Money
		Remaining   Money
		Status      Status
		FiscalYear  int
		StartDate   Date
		EndDate     Date
		Resolution  string
		Description string
		ReceiptURL  string
		CreatedBy   string
		UserRole    string
		UpdatedBy   string
		Active      bool
		Version     int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// BudgetInput is a candidate record produced by the form. Remaining and
	// Status are stamped by the form once validation passes.
	BudgetInput struct {
		EventName   string
		Category    string
		Committee   string
		Allocated   Money
		Spent       Money
		Remaining   Money
		Status      Status
		FiscalYear  int
		StartDate   Date
		EndDate     Date
		Resolution  string
		Description string
		ReceiptURL  string
		Active      bool
		// Version is the record version the edit started from. Zero skips the
		// compare-and-swap check.
		Version int64
	}

	// Date is an optional calendar date; the zero value means "not set".
	Date struct {
		time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty returns true if the date is not set
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Normalize trims text fields and applies the category/committee defaults.
func (in BudgetInput) Normalize() BudgetInput {
	in.EventName = strings.TrimSpace(in.EventName)
	in.Category = strings.TrimSpace(in.Category)
	in.Committee = strings.TrimSpace(in.Committee)
	in.Resolution = strings.TrimSpace(in.Resolution)
	in.Description = strings.TrimSpace(in.Description)
	in.ReceiptURL = strings.TrimSpace(in.ReceiptURL)
	if in.Category == "" {
		in.Category = DefaultCategory
	}
	if in.Committee == "" {
		in.Committee = DefaultCommittee
	}
	return in
}

// Input returns the editable part of b, used to pre-fill the edit form.
func (b Budget) Input() BudgetInput {
	return BudgetInput{
		EventName:   b.EventName,
		Category:    b.Category,
		Committee:   b.Committee,
		Allocated:   b.Allocated,
		Spent:       b.Spent,
		Remaining:   b.Remaining,
		Status:      b.Status,
		FiscalYear:  b.FiscalYear,
		StartDate:   b.StartDate,
		EndDate:     b.EndDate,
		Resolution:  b.Resolution,
		Description: b.Description,
		ReceiptURL:  b.ReceiptURL,
		Active:      b.Active,
		Version:     b.Version,
	}
}

// Utilization returns spent as a percentage of allocated, 0 when nothing is allocated.
func (b Budget) Utilization() float64 {
	if b.Allocated.Cents <= 0 {
		return 0
	}
	return float64(b.Spent.Cents) * 100 / float64(b.Allocated.Cents)
}

// StatusConsistent reports whether the stored status matches the one derived
// from the stored amounts.
func (b Budget) StatusConsistent() bool {
	return b.Status == DeriveStatus(b.Allocated, b.Spent)
}
