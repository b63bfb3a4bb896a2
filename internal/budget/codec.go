package budget

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"treasury/internal/core"
	"treasury/internal/identity"
	"treasury/internal/storage"
)

// encodeCreate builds the document persisted for a new budget.
func encodeCreate(in core.BudgetInput, user identity.User, now time.Time) storage.Document {
	doc := encodeFields(in)
	doc[core.FieldCreatedBy] = user.Name
	doc[core.FieldUserRole] = user.Role
	doc[core.FieldCreatedAt] = now
	doc[core.FieldUpdatedAt] = now
	return doc
}

// encodeUpdate builds the patch merged over an existing budget. A non-zero
// input version is forwarded as the expected store version.
func encodeUpdate(in core.BudgetInput, user identity.User, now time.Time) storage.Document {
	doc := encodeFields(in)
	doc[core.FieldUpdatedBy] = user.Name
	doc[core.FieldUpdatedAt] = now
	if in.Version != 0 {
		doc[storage.KeyExpectedVersion] = in.Version
	}
	return doc
}

func encodeFields(in core.BudgetInput) storage.Document {
	return storage.Document{
		core.FieldEventName:   in.EventName,
		core.FieldCategory:    in.Category,
		core.FieldCommittee:   in.Committee,
		core.FieldAllocated:   in.Allocated.Float(),
		core.FieldSpent:       in.Spent.Float(),
		core.FieldRemaining:   in.Remaining.Float(),
		core.FieldStatus:      string(in.Status),
		core.FieldFiscalYear:  in.FiscalYear,
		core.FieldStartDate:   in.StartDate.String(),
		core.FieldEndDate:     in.EndDate.String(),
		core.FieldResolution:  in.Resolution,
		core.FieldDescription: in.Description,
		core.FieldReceiptURL:  in.ReceiptURL,
		core.FieldActive:      in.Active,
	}
}

// Decode turns a loosely typed store record into a Budget, applying the
// defaults for absent or malformed fields.
func Decode(rec storage.Record) core.Budget {
	d := rec.Data
	b := core.Budget{
		ID:          rec.ID,
		EventName:   str(d[core.FieldEventName]),
		Category:    str(d[core.FieldCategory]),
		Committee:   str(d[core.FieldCommittee]),
		Allocated:   amount(d[core.FieldAllocated]),
		Spent:       amount(d[core.FieldSpent]),
		FiscalYear:  int(integer(d[core.FieldFiscalYear])),
		StartDate:   date(d[core.FieldStartDate]),
		EndDate:     date(d[core.FieldEndDate]),
		Resolution:  str(d[core.FieldResolution]),
		Description: str(d[core.FieldDescription]),
		ReceiptURL:  str(d[core.FieldReceiptURL]),
		CreatedBy:   str(d[core.FieldCreatedBy]),
		UserRole:    str(d[core.FieldUserRole]),
		UpdatedBy:   str(d[core.FieldUpdatedBy]),
		Active:      boolean(d[core.FieldActive], true),
		Version:     integer(d[core.FieldVersion]),
	}
	if b.Category == "" {
		b.Category = core.DefaultCategory
	}
	if b.Committee == "" {
		b.Committee = core.DefaultCommittee
	}

	if v, ok := d[core.FieldRemaining]; ok && v != nil {
		b.Remaining = amount(v)
	} else {
		b.Remaining = b.Allocated.Sub(b.Spent)
	}

	// The stored status is kept even when it disagrees with the amounts;
	// only a record that never had one gets a derived status.
	raw := strings.TrimSpace(str(d[core.FieldStatus]))
	if s, ok := core.ParseStatus(raw); ok {
		b.Status = s
	} else if raw != "" {
		b.Status = core.Status(raw)
	} else {
		b.Status = core.DeriveStatus(b.Allocated, b.Spent)
	}

	b.CreatedAt, _ = storage.ParseTime(d[core.FieldCreatedAt])
	b.UpdatedAt, _ = storage.ParseTime(d[core.FieldUpdatedAt])
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if b.FiscalYear == 0 && !b.CreatedAt.IsZero() {
		b.FiscalYear = b.CreatedAt.Year()
	}
	return b
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

// amount reads a stored number. Missing or non-numeric values count as zero.
func amount(v any) core.Money {
	switch n := v.(type) {
	case float64:
		return core.FromFloat(n)
	case float32:
		return core.FromFloat(float64(n))
	case int:
		return core.FromInt(int64(n))
	case int64:
		return core.FromInt(n)
	case json.Number:
		if m, err := core.ParseAmount(n.String()); err == nil {
			return m
		}
	case string:
		if m, err := core.ParseAmount(n); err == nil {
			return m
		}
	}
	return core.Money{}
}

func integer(v any) int64 {
	switch n := v.(type) {
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return storage.Int64(v)
	}
}

func boolean(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

func date(v any) core.Date {
	t, ok := storage.ParseTime(v)
	if !ok {
		return core.Date{}
	}
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}
