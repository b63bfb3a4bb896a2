package http

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"treasury/internal/budget"
	"treasury/internal/core"
	"treasury/internal/identity"
	"treasury/internal/log"
	"treasury/internal/report"
)

// formView drives the budget_form partial.
type formView struct {
	Action     string
	ID         string
	Editing    bool
	Token      string
	Values     budget.Values
	Categories []string
	Committees []string
	Receipts   bool
}

// listView drives the budget_list partial.
type listView struct {
	report.View
	Err       error
	Editable  bool
	ExportURL template.URL
}

type pageData struct {
	Title   string
	Nav     string
	User    identity.User
	Form    formView
	List    listView
	Stats   core.Statistics
	Loading bool
}

func (s *Server) newForm(id string, values budget.Values) formView {
	f := formView{
		Action:     "/budgets",
		Token:      uuid.NewString(),
		Values:     values,
		Categories: core.Categories,
		Committees: core.Committees,
		Receipts:   s.receipts != nil,
	}
	if f.Values == nil {
		f.Values = budget.Values{
			core.FieldFiscalYear: strconv.Itoa(s.now().Year()),
			core.FieldActive:     "true",
		}
	}
	if id != "" {
		f.Action = "/budgets/" + id
		f.ID = id
		f.Editing = true
	}
	return f
}

// listFor builds the log for the filters in q. The analytics page passes
// view=analytics to get a read-only table.
func (s *Server) listFor(q url.Values) listView {
	snap := s.repo.Snapshot()
	f := report.FilterFromQuery(q)
	export := "/budgets/export.csv"
	if q := f.Values().Encode(); q != "" {
		export += "?" + q
	}
	view := s.views.GetOrBuild(f.Values().Encode(), snap.Seq, func() report.View {
		return report.Build(snap.Budgets, f)
	})
	view.Loading = snap.Loading
	return listView{
		View:      view,
		Err:       snap.Err,
		Editable:  q.Get("view") != "analytics",
		ExportURL: template.URL(export),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.repo.Snapshot()
	s.render(w, r, "index.html", pageData{
		Title:   "Budgets",
		Nav:     "budgets",
		User:    s.ids.Current(r.Context()),
		Form:    s.newForm("", nil),
		List:    s.listFor(r.URL.Query()),
		Stats:   snap.Stats,
		Loading: snap.Loading,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("view", "analytics")
	s.render(w, r, "analytics.html", pageData{
		Title: "Analytics",
		Nav:   "analytics",
		User:  s.ids.Current(r.Context()),
		List:  s.listFor(q),
	})
}

func (s *Server) handleBudgetList(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "budget_list", s.listFor(r.URL.Query()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.repo.Snapshot()
	s.render(w, r, "budget_stats", struct {
		Stats   core.Statistics
		Loading bool
	}{snap.Stats, snap.Loading})
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "budget_form", s.newForm("", nil))
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b, ok := s.repo.Get(id)
	if !ok {
		NotFoundError("Budget not found").Write(w)
		return
	}
	s.render(w, r, "budget_form", s.newForm(id, budget.ValuesFromBudget(b)))
}

// render executes name into a buffer first so a template failure never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		InternalServerError("Could not render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
