package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"treasury/internal/budget"
	"treasury/internal/core"
	"treasury/internal/log"
	"treasury/internal/report"
)

// budgetJSON is the API representation of a budget. Amounts are decimal
// strings to keep cents exact.
type budgetJSON struct {
	ID          string  `json:"id"`
	EventName   string  `json:"eventName"`
	Category    string  `json:"category"`
	Committee   string  `json:"committee"`
	Allocated   string  `json:"allocatedAmount"`
	Spent       string  `json:"spentAmount"`
	Remaining   string  `json:"remainingAmount"`
	Utilization float64 `json:"utilization"`
	Status      string  `json:"status"`
	FiscalYear  int     `json:"fiscalYear"`
	StartDate   string  `json:"startDate,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	Resolution  string  `json:"resolution,omitempty"`
	Description string  `json:"description,omitempty"`
	ReceiptURL  string  `json:"receiptUrl,omitempty"`
	CreatedBy   string  `json:"createdBy,omitempty"`
	UserRole    string  `json:"userRole,omitempty"`
	UpdatedBy   string  `json:"updatedBy,omitempty"`
	Active      bool    `json:"isActive"`
	Version     int64   `json:"version"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

type statsJSON struct {
	Count          int            `json:"count"`
	TotalAllocated string         `json:"totalAllocated"`
	TotalSpent     string         `json:"totalSpent"`
	TotalRemaining string         `json:"totalRemaining"`
	Utilization    float64        `json:"utilization"`
	ByCategory     map[string]int `json:"byCategory"`
	ByCommittee    map[string]int `json:"byCommittee"`
	ByStatus       map[string]int `json:"byStatus"`
	StaleStatus    int            `json:"staleStatus"`
}

type apiError struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func toJSON(b core.Budget) budgetJSON {
	return budgetJSON{
		ID:          b.ID,
		EventName:   b.EventName,
		Category:    b.Category,
		Committee:   b.Committee,
		Allocated:   b.Allocated.String(),
		Spent:       b.Spent.String(),
		Remaining:   b.Remaining.String(),
		Utilization: b.Utilization(),
		Status:      string(b.Status),
		FiscalYear:  b.FiscalYear,
		StartDate:   b.StartDate.String(),
		EndDate:     b.EndDate.String(),
		Resolution:  b.Resolution,
		Description: b.Description,
		ReceiptURL:  b.ReceiptURL,
		CreatedBy:   b.CreatedBy,
		UserRole:    b.UserRole,
		UpdatedBy:   b.UpdatedBy,
		Active:      b.Active,
		Version:     b.Version,
		CreatedAt:   rfc3339(b.CreatedAt),
		UpdatedAt:   rfc3339(b.UpdatedAt),
	}
}

func statsToJSON(s core.Statistics) statsJSON {
	byStatus := make(map[string]int, len(s.ByStatus))
	for k, v := range s.ByStatus {
		byStatus[string(k)] = v
	}
	return statsJSON{
		Count:          s.Count,
		TotalAllocated: s.TotalAllocated.String(),
		TotalSpent:     s.TotalSpent.String(),
		TotalRemaining: s.TotalRemaining.String(),
		Utilization:    s.Utilization(),
		ByCategory:     s.ByCategory,
		ByCommittee:    s.ByCommittee,
		ByStatus:       byStatus,
		StaleStatus:    s.StaleStatus,
	}
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	snap := s.repo.Snapshot()
	filtered := report.FilterFromQuery(r.URL.Query()).Apply(snap.Budgets)
	out := make([]budgetJSON, 0, len(filtered))
	for _, b := range filtered {
		out = append(out, toJSON(b))
	}
	resp := struct {
		Budgets []budgetJSON `json:"budgets"`
		Loading bool         `json:"loading"`
		Error   string       `json:"error,omitempty"`
	}{Budgets: out, Loading: snap.Loading}
	if snap.Err != nil {
		resp.Error = persistenceMessage(snap.Err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	b, ok := s.repo.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: core.ErrNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toJSON(b))
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsToJSON(s.repo.Stats()))
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	s.apiSubmit(w, r, "", http.StatusCreated)
}

func (s *Server) handleAPIUpdate(w http.ResponseWriter, r *http.Request) {
	s.apiSubmit(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) apiSubmit(w http.ResponseWriter, r *http.Request, id string, okStatus int) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	b, op, err := s.save(r.Context(), p.FormToken(), id, p.BudgetValues())
	if err != nil {
		status, body := apiFailure(err)
		if status == http.StatusInternalServerError {
			s.events.LogError(r.Context(), "API budget save failed", err, log.ComponentBudget, op,
				log.LogFields{log.FieldBudgetID: id})
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, okStatus, toJSON(b))
}

func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		status, body := apiFailure(err)
		writeJSON(w, status, body)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiFailure mirrors submitError for JSON clients.
func apiFailure(err error) (int, apiError) {
	if verr, ok := budget.IsValidation(err); ok {
		return http.StatusUnprocessableEntity, apiError{Error: "validation failed", Fields: verr.Fields}
	}
	if errors.Is(err, core.ErrInFlight) {
		return http.StatusConflict, apiError{Error: err.Error()}
	}
	return http.StatusInternalServerError, apiError{Error: persistenceMessage(err)}
}

// handleHealth reports liveness only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store and the budget snapshot.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]any)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		code = http.StatusServiceUnavailable
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
			"check", "store",
			log.FieldError, err)
	} else {
		checks["store"] = "ok"
	}

	snap := s.repo.Snapshot()
	repo := map[string]any{"loading": snap.Loading, "budgets": len(snap.Budgets)}
	if snap.Err != nil {
		repo["last_error"] = snap.Err.Error()
	}
	checks["repository"] = repo
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"refused":        s.limiter.Hits(),
	}
	if s.receipts != nil {
		checks["receipts"] = string(s.receipts.Driver())
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
