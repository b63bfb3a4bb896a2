package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"treasury/internal/budget"
	"treasury/internal/core"
	"treasury/internal/log"
	"treasury/internal/report"
	"treasury/internal/storage"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	s.submitBudget(w, r, "")
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	s.submitBudget(w, r, r.PathValue("id"))
}

func (s *Server) submitBudget(w http.ResponseWriter, r *http.Request, id string) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Parse form error",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	b, op, err := s.save(r.Context(), p.FormToken(), id, p.BudgetValues())
	if err != nil {
		s.submitError(w, r, id, err)
		return
	}

	msg := fmt.Sprintf("Saved %s (%s allocated, %s)", b.EventName, b.Allocated.Display(), b.Status.Label())
	NewHTMXResponse().
		TriggerBudgetSaved(b.ID, op).
		TriggerFormReset().
		TriggerStatsRefresh().
		TriggerSuccessNotification(msg).
		Write(w)
}

// save runs the form and logs the outcome. op is "create" or "update".
func (s *Server) save(ctx context.Context, token, id string, values budget.Values) (core.Budget, string, error) {
	op := log.OpCreate
	if id != "" {
		op = log.OpUpdate
	}
	b, err := s.form.Submit(ctx, token, id, values)
	if err != nil {
		return core.Budget{}, op, err
	}
	user := s.ids.Current(ctx)
	s.events.LogBudgetSaved(ctx, op, b, user.Name, user.Role)
	return b, op, nil
}

// submitError maps form and repository errors onto the console responses:
// 422 for field messages, 409 for a duplicate submit, 500 for store failures.
func (s *Server) submitError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if verr, ok := budget.IsValidation(err); ok {
		ValidationErrorResponse(verr).Write(w)
		return
	}
	if errors.Is(err, core.ErrInFlight) {
		ConflictError("This form is already being saved").
			TriggerNotification(NotificationWarning, "Still saving the previous submission", 3000).
			Write(w)
		return
	}

	op := log.OpCreate
	fields := log.NewFields()
	if id != "" {
		op = log.OpUpdate
		fields[log.FieldBudgetID] = id
	}
	s.events.LogError(r.Context(), "Failed to save budget", err, log.ComponentBudget, op, fields)

	msg := persistenceMessage(err)
	InternalServerError(msg).TriggerErrorNotification(msg).Write(w)
}

// persistenceMessage explains a failed store call without leaking internals.
func persistenceMessage(err error) string {
	switch {
	case core.IsNotFound(err):
		return "This budget no longer exists"
	case errors.Is(err, storage.ErrVersionConflict):
		return "This budget was changed by someone else, reload and try again"
	default:
		return "Could not save the budget, please retry"
	}
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.events.LogError(r.Context(), "Failed to delete budget", err, log.ComponentBudget, log.OpDelete,
			log.LogFields{log.FieldBudgetID: id})
		InternalServerError("Could not delete the budget").
			TriggerErrorNotification("Could not delete the budget").
			Write(w)
		return
	}
	NewHTMXResponse().
		TriggerBudgetDeleted(id).
		TriggerStatsRefresh().
		TriggerSuccessNotification("Budget deleted").
		Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Refresh(r.Context()); err != nil {
		s.events.LogError(r.Context(), "Manual refresh failed", err, log.ComponentBudget, log.OpRefresh, nil)
		InternalServerError("Could not reload budgets").
			TriggerErrorNotification("Could not reload budgets").
			Write(w)
		return
	}
	// Filters arrive in the body through hx-include. An unreadable body
	// falls back to the query string.
	filters := r.URL.Query()
	if err := r.ParseForm(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Parse refresh filters error",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
	} else {
		filters = r.Form
	}
	if filters.Get("view") == "analytics" {
		w.Header().Set("HX-Refresh", "true")
	}
	w.Header().Set("HX-Trigger", `{"stats:refresh":{}}`)
	s.render(w, r, "budget_list", s.listFor(filters))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.repo.Snapshot()
	filtered := report.FilterFromQuery(r.URL.Query()).Apply(snap.Budgets)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(s.now())))
	if err := report.WriteCSV(w, filtered); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed",
			log.FieldError, err,
			log.FieldOperation, log.OpExport)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budgets exported",
		"rows", len(filtered),
		log.FieldOperation, log.OpExport)
}
