package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"treasury/internal/core"
)

func TestRequestBodyParser_Form(t *testing.T) {
	form := url.Values{
		core.FieldEventName: {"  Spring Fair \x00"},
		core.FieldAllocated: {"1500,00"},
		core.FieldActive:    {"on", "false"},
		FieldFormToken:      {"tok-1"},
		"unknown":           {"ignored"},
	}
	req := httptest.NewRequest(http.MethodPost, "/budgets", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.IsJSON() {
		t.Fatal("form body parsed as JSON")
	}

	v := p.BudgetValues()
	if got := v[core.FieldEventName]; got != "Spring Fair" {
		t.Errorf("eventName = %q, want %q", got, "Spring Fair")
	}
	if got := v[core.FieldAllocated]; got != "1500,00" {
		t.Errorf("allocatedAmount = %q", got)
	}
	if got := v[core.FieldActive]; got != "on" {
		t.Errorf("isActive = %q, want first value", got)
	}
	if _, ok := v["unknown"]; ok {
		t.Error("unknown field should not be collected")
	}
	if p.FormToken() != "tok-1" {
		t.Errorf("FormToken() = %q", p.FormToken())
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"eventName":"Gala","allocatedAmount":2500.5,"isActive":false,"fiscalYear":2025}`
	req := httptest.NewRequest(http.MethodPost, "/api/budgets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !p.IsJSON() {
		t.Fatal("expected JSON")
	}

	tests := map[string]string{
		core.FieldEventName:  "Gala",
		core.FieldAllocated:  "2500.5",
		core.FieldActive:     "false",
		core.FieldFiscalYear: "2025",
		core.FieldSpent:      "",
	}
	v := p.BudgetValues()
	for field, want := range tests {
		if got := v[field]; got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/budgets", strings.NewReader(`{"eventName":`))
	req.Header.Set("Content-Type", "application/json")
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Error("expected error for truncated JSON")
	}

	big := strings.Repeat("a", maxFormBytes+10)
	req = httptest.NewRequest(http.MethodPost, "/budgets", strings.NewReader("eventName="+big))
	if err := NewRequestBodyParser(req).Parse(); err != errBodyTooLarge {
		t.Errorf("Parse() error = %v, want %v", err, errBodyTooLarge)
	}

	req = httptest.NewRequest(http.MethodPost, "/budgets", nil)
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("empty body: %v", err)
	}
	if len(p.BudgetValues()) != 0 {
		t.Error("empty body should yield no values")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{"tab\tkept", "tab\tkept"},
		{"bell\x07gone", "bellgone"},
		{"line\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
