package core

import (
	"errors"
	"testing"
)

func validInput() BudgetInput {
	return BudgetInput{
		EventName:  "Foundation Week",
		Allocated:  Money{Cents: 100000},
		Spent:      Money{Cents: 25000},
		FiscalYear: 2025,
		StartDate:  NewDate(2025, 2, 1),
		EndDate:    NewDate(2025, 2, 7),
		ReceiptURL: "https://example.org/r/1.pdf",
	}
}

func TestValidateInputOK(t *testing.T) {
	if verr := ValidateInput(validInput()); verr != nil {
		t.Fatalf("expected ok, got %v", verr)
	}
}

func TestValidateInputRules(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*BudgetInput)
		field string
		msg   string
	}{
		{"empty name", func(in *BudgetInput) { in.EventName = "   " }, FieldEventName, MsgNameRequired},
		{"zero allocated", func(in *BudgetInput) { in.Allocated = Money{}; in.Spent = Money{} }, FieldAllocated, MsgAllocatedPositive},
		{"negative spent", func(in *BudgetInput) { in.Spent = Money{Cents: -1} }, FieldSpent, MsgSpentNegative},
		{"dates reversed", func(in *BudgetInput) { in.StartDate = NewDate(2025, 3, 1) }, FieldEndDate, MsgDateOrder},
		{"overspend", func(in *BudgetInput) { in.Spent = Money{Cents: 100001} }, FieldSpent, MsgOverspend},
		{"bad receipt", func(in *BudgetInput) { in.ReceiptURL = "not a url" }, FieldReceiptURL, MsgReceiptURL},
		{"receipt without host", func(in *BudgetInput) { in.ReceiptURL = "https://" }, FieldReceiptURL, MsgReceiptURL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.edit(&in)
			verr := ValidateInput(in)
			if verr == nil {
				t.Fatalf("expected validation error")
			}
			found := false
			for _, m := range verr.Fields[tc.field] {
				if m == tc.msg {
					found = true
				}
			}
			if !found {
				t.Fatalf("field %s: want %q, got %v", tc.field, tc.msg, verr.Fields)
			}
		})
	}
}

func TestValidateInputReportsAllFailures(t *testing.T) {
	in := BudgetInput{EventName: "", Allocated: Money{Cents: 0}, Spent: Money{Cents: 500}, ReceiptURL: "::"}
	verr := ValidateInput(in)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	for _, f := range []string{FieldEventName, FieldAllocated, FieldSpent, FieldReceiptURL} {
		if !verr.Has(f) {
			t.Fatalf("expected message for %s, got %v", f, verr.Fields)
		}
	}
}

func TestValidateInputEmptyNameSentinel(t *testing.T) {
	in := validInput()
	in.EventName = ""
	if err := error(ValidateInput(in)); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	in = validInput()
	in.Spent = Money{Cents: -1}
	if err := error(ValidateInput(in)); errors.Is(err, ErrEmptyName) {
		t.Fatalf("unexpected ErrEmptyName for %v", err)
	}
}

func TestStampAndNormalize(t *testing.T) {
	in := BudgetInput{EventName: "  Fair ", Allocated: Money{Cents: 1000}, Spent: Money{Cents: 950}}.Normalize().Stamp()
	if in.EventName != "Fair" || in.Category != DefaultCategory || in.Committee != DefaultCommittee {
		t.Fatalf("unexpected normalization: %+v", in)
	}
	if in.Remaining.Cents != 50 || in.Status != StatusAlmostSpent {
		t.Fatalf("unexpected stamp: remaining=%d status=%s", in.Remaining.Cents, in.Status)
	}
}
