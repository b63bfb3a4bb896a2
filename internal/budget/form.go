package budget

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"treasury/internal/core"
	"treasury/internal/metrics"
)

// Saver is the part of the repository the form writes through.
type Saver interface {
	Create(ctx context.Context, in core.BudgetInput) (core.Budget, error)
	Update(ctx context.Context, id string, in core.BudgetInput) (core.Budget, error)
}

// Values holds raw submitted form fields keyed by document field name.
type Values map[string]string

// Get returns the trimmed value of key.
func (v Values) Get(key string) string {
	return strings.TrimSpace(v[key])
}

// Form validates and normalizes submissions before handing them to the
// repository. Submissions sharing a token are serialized: a second one is
// refused with core.ErrInFlight while the first is still running.
type Form struct {
	saver   Saver
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewForm(saver Saver, m *metrics.Metrics) *Form {
	return &Form{
		saver:    saver,
		metrics:  m,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// Submit creates a budget when id is empty and updates it otherwise. It
// returns a *core.ValidationError without calling the repository when the
// input is rejected.
func (f *Form) Submit(ctx context.Context, token, id string, raw Values) (core.Budget, error) {
	if !f.acquire(token) {
		return core.Budget{}, core.ErrInFlight
	}
	defer f.release(token)

	in, verr := f.Validate(raw)
	if verr != nil {
		f.metrics.ValidationFailed()
		return core.Budget{}, verr
	}

	if id == "" {
		return f.saver.Create(ctx, in)
	}
	return f.saver.Update(ctx, id, in)
}

// Validate parses raw values and applies every rule. On success the returned
// input is normalized and stamped with remaining and status.
func (f *Form) Validate(raw Values) (core.BudgetInput, *core.ValidationError) {
	in, parseErr := parseValues(raw, f.now())
	in = in.Normalize()

	verr := core.NewValidationError()
	verr.Inherit(parseErr)
	for field, msgs := range parseErr.Fields {
		for _, msg := range msgs {
			verr.Add(field, msg)
		}
	}
	if rules := core.ValidateInput(in); rules != nil {
		verr.Inherit(rules)
		for field, msgs := range rules.Fields {
			for _, msg := range msgs {
				if parseErr.Has(field) {
					continue
				}
				if msg == core.MsgOverspend && parseErr.Has(core.FieldAllocated) {
					continue
				}
				verr.Add(field, msg)
			}
		}
	}

	if !verr.Empty() {
		return in, verr
	}
	return in.Stamp(), nil
}

// IsInFlight reports whether a submission with token is running.
func (f *Form) IsInFlight(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.inFlight[token]
	return busy
}

func (f *Form) acquire(token string) bool {
	if token == "" {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.inFlight[token]; busy {
		return false
	}
	f.inFlight[token] = struct{}{}
	return true
}

func (f *Form) release(token string) {
	if token == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inFlight, token)
}

func parseValues(raw Values, now time.Time) (core.BudgetInput, *core.ValidationError) {
	verr := core.NewValidationError()
	in := core.BudgetInput{
		EventName:   raw.Get(core.FieldEventName),
		Category:    raw.Get(core.FieldCategory),
		Committee:   raw.Get(core.FieldCommittee),
		Resolution:  raw.Get(core.FieldResolution),
		Description: raw.Get(core.FieldDescription),
		ReceiptURL:  raw.Get(core.FieldReceiptURL),
		Active:      true,
	}

	if v := raw.Get(core.FieldAllocated); v == "" {
		verr.Add(core.FieldAllocated, core.MsgAllocatedRequired)
	} else if m, err := core.ParseAmount(v); err != nil {
		verr.Cause(core.FieldAllocated, core.MsgAllocatedInvalid, err)
	} else {
		in.Allocated = m
	}

	if v := raw.Get(core.FieldSpent); v != "" {
		if m, err := core.ParseAmount(v); err != nil {
			verr.Cause(core.FieldSpent, core.MsgSpentInvalid, err)
		} else {
			in.Spent = m
		}
	}

	in.FiscalYear = now.Year()
	if v := raw.Get(core.FieldFiscalYear); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 2000 || year > 2100 {
			verr.Add(core.FieldFiscalYear, core.MsgFiscalYear)
		} else {
			in.FiscalYear = year
		}
	}

	in.StartDate = parseDate(raw, core.FieldStartDate, verr)
	in.EndDate = parseDate(raw, core.FieldEndDate, verr)

	if v := strings.ToLower(raw.Get(core.FieldActive)); v != "" {
		switch v {
		case "on", "true", "1", "yes":
			in.Active = true
		default:
			in.Active = false
		}
	}

	if v := raw.Get(core.FieldVersion); v != "" {
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil || version < 0 {
			verr.Add(core.FieldVersion, core.MsgVersionInvalid)
		} else {
			in.Version = version
		}
	}

	return in, verr
}

func parseDate(raw Values, field string, verr *core.ValidationError) core.Date {
	v := raw.Get(field)
	if v == "" {
		return core.Date{}
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		verr.Add(field, core.MsgDateInvalid)
		return core.Date{}
	}
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}

// ValuesFromBudget pre-fills the edit form.
func ValuesFromBudget(b core.Budget) Values {
	active := "false"
	if b.Active {
		active = "true"
	}
	return Values{
		core.FieldEventName:   b.EventName,
		core.FieldCategory:    b.Category,
		core.FieldCommittee:   b.Committee,
		core.FieldAllocated:   b.Allocated.String(),
		core.FieldSpent:       b.Spent.String(),
		core.FieldFiscalYear:  strconv.Itoa(b.FiscalYear),
		core.FieldStartDate:   b.StartDate.String(),
		core.FieldEndDate:     b.EndDate.String(),
		core.FieldResolution:  b.Resolution,
		core.FieldDescription: b.Description,
		core.FieldReceiptURL:  b.ReceiptURL,
		core.FieldActive:      active,
		core.FieldVersion:     strconv.FormatInt(b.Version, 10),
	}
}

// IsValidation reports whether err carries field messages.
func IsValidation(err error) (*core.ValidationError, bool) {
	var verr *core.ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}
