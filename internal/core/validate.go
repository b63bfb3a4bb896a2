package core

import (
	"net/url"
	"strings"
)

// Field names shared by forms, validation messages and stored documents.
const (
	FieldEventName   = "eventName"
	FieldCategory    = "category"
	FieldCommittee   = "committee"
	FieldAllocated   = "allocatedAmount"
	FieldSpent       = "spentAmount"
	FieldRemaining   = "remainingAmount"
	FieldStatus      = "status"
	FieldFiscalYear  = "fiscalYear"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
	FieldResolution  = "resolution"
	FieldDescription = "description"
	FieldReceiptURL  = "receiptUrl"
	FieldCreatedBy   = "createdBy"
	FieldUserRole    = "userRole"
	FieldUpdatedBy   = "updatedBy"
	FieldActive      = "isActive"
	FieldVersion     = "version"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// Validation messages.
const (
	MsgNameRequired      = "Event name is required"
	MsgAllocatedRequired = "Allocated amount is required"
	MsgAllocatedPositive = "Allocated amount must be greater than zero"
	MsgSpentNegative     = "Spent amount cannot be negative"
	MsgDateOrder         = "Start date must be on or before end date"
	MsgOverspend         = "Spent amount cannot exceed allocated amount"
	MsgReceiptURL        = "Receipt URL must be a valid http(s) URL"

	// Raised while parsing raw form values.
	MsgAllocatedInvalid = "Allocated amount must be a number"
	MsgSpentInvalid     = "Spent amount must be a number"
	MsgFiscalYear       = "Fiscal year must be between 2000 and 2100"
	MsgDateInvalid      = "Date must be in YYYY-MM-DD format"
	MsgVersionInvalid   = "Version must be a whole number"
)

// ValidateInput checks a candidate budget. Every rule is evaluated so that
// all failures can be shown at once; nil means the input is acceptable.
func ValidateInput(in BudgetInput) *ValidationError {
	verr := NewValidationError()

	if strings.TrimSpace(in.EventName) == "" {
		verr.Cause(FieldEventName, MsgNameRequired, ErrEmptyName)
	}
	if in.Allocated.Cents <= 0 {
		verr.Add(FieldAllocated, MsgAllocatedPositive)
	}
	if in.Spent.Cents < 0 {
		verr.Add(FieldSpent, MsgSpentNegative)
	}
	if !in.StartDate.IsEmpty() && !in.EndDate.IsEmpty() && in.StartDate.After(in.EndDate.Time) {
		verr.Add(FieldEndDate, MsgDateOrder)
	}
	if in.Spent.Cents > in.Allocated.Cents {
		verr.Add(FieldSpent, MsgOverspend)
	}
	if in.ReceiptURL != "" && !ValidURL(in.ReceiptURL) {
		verr.Add(FieldReceiptURL, MsgReceiptURL)
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// ValidURL reports whether s is an absolute http or https URL with a host.
func ValidURL(s string) bool {
	u, err := url.ParseRequestURI(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Stamp fills the derived fields of a validated input.
func (in BudgetInput) Stamp() BudgetInput {
	in.Remaining = in.Allocated.Sub(in.Spent)
	in.Status = DeriveStatus(in.Allocated, in.Spent)
	return in
}
