// Package http provides HTTP server and handler implementations.
//
// This file reads budget submissions from form-encoded (htmx) and JSON
// (API) request bodies into the field map the budget form validates.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"treasury/internal/budget"
	"treasury/internal/core"
)

// maxFormBytes bounds budget submissions. Receipts use their own limit.
const maxFormBytes = 64 << 10

// FieldFormToken identifies one rendered form for the in-flight guard.
const FieldFormToken = "formToken"

var errBodyTooLarge = errors.New("request body too large")

// budgetFields are the submitted keys the form understands.
var budgetFields = []string{
	core.FieldEventName,
	core.FieldCategory,
	core.FieldCommittee,
	core.FieldAllocated,
	core.FieldSpent,
	core.FieldFiscalYear,
	core.FieldStartDate,
	core.FieldEndDate,
	core.FieldResolution,
	core.FieldDescription,
	core.FieldReceiptURL,
	core.FieldActive,
	core.FieldVersion,
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxFormBytes of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBytes+1))
	if p.err == nil && len(p.body) > maxFormBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form). For
// repeated form keys the first value wins.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// BudgetValues collects the submitted budget fields.
func (p *RequestBodyParser) BudgetValues() budget.Values {
	v := make(budget.Values, len(budgetFields))
	for _, f := range budgetFields {
		if s := p.Get(f); s != "" {
			v[f] = s
		}
	}
	return v
}

// FormToken returns the submitted form token, if any.
func (p *RequestBodyParser) FormToken() string {
	return p.Get(FieldFormToken)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
