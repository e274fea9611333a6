package http

import (
	"errors"
	"net/http"
	"strconv"

	"wallet/internal/core"
	"wallet/internal/dashboard"
)

// sectionData feeds the home page and its partials. OOB marks the budget
// section for an out-of-band swap when it rides along a category response.
type sectionData struct {
	dashboard.View
	OOB bool
}

var sectionTemplates = map[dashboard.Entity]string{
	dashboard.EntityTransactions: "transactions_section",
	dashboard.EntityBudgets:      "budgets_section",
	// Budget rows follow the category list, so both are re-rendered.
	dashboard.EntityCategories: "categories_update",
}

// handleHome mounts the dashboard: every store is reset and reloaded.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.dashboard.Mount(r.Context())
	s.render(w, r, NewHTMXResponse(), "home.html", sectionData{View: s.dashboard.View()})
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	err := s.dashboard.AddTransaction(r.Context(), p.Get("description"), p.Get("amount"))
	s.respondSection(w, r, dashboard.EntityTransactions, err, true)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.dashboard.EditTransaction(id)
	s.respondSection(w, r, dashboard.EntityTransactions, err, false)
}

func (s *Server) handleSaveTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	draft := dashboard.TransactionDraft{Description: p.Get("description"), Amount: p.Get("amount")}
	err := s.dashboard.SaveTransaction(r.Context(), id, draft)
	s.respondSection(w, r, dashboard.EntityTransactions, err, true)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.dashboard.DeleteTransaction(r.Context(), id)
	s.respondSection(w, r, dashboard.EntityTransactions, err, true)
}

func (s *Server) handleAddBudget(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	err := s.dashboard.AddBudget(r.Context(), p.Get("category"), p.Get("amount"))
	s.respondSection(w, r, dashboard.EntityBudgets, err, true)
}

func (s *Server) handleEditBudget(w http.ResponseWriter, r *http.Request) {
	err := s.dashboard.EditBudget(r.PathValue("category"))
	s.respondSection(w, r, dashboard.EntityBudgets, err, false)
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	err := s.dashboard.SaveBudget(r.Context(), r.PathValue("category"), dashboard.BudgetDraft{Amount: p.Get("amount")})
	s.respondSection(w, r, dashboard.EntityBudgets, err, true)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	err := s.dashboard.DeleteBudget(r.Context(), r.PathValue("category"))
	s.respondSection(w, r, dashboard.EntityBudgets, err, true)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	err := s.dashboard.AddCategory(r.Context(), p.Get("name"))
	s.respondSection(w, r, dashboard.EntityCategories, err, true)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.dashboard.DeleteCategory(r.Context(), id)
	s.respondSection(w, r, dashboard.EntityCategories, err, true)
}

// respondSection re-renders the section of entity from a fresh view.
// Operation failures are shown inline by the section itself; only a
// vanished row is reported as a notification.
func (s *Server) respondSection(w http.ResponseWriter, r *http.Request, entity dashboard.Entity, err error, mutation bool) {
	v := s.dashboard.View()
	b := NewHTMXResponse()
	switch {
	case errors.Is(err, core.ErrNotFound):
		b.TriggerErrorNotification("That item no longer exists")
	case err == nil && mutation:
		b.TriggerChanged(string(entity), v.Revision)
	}
	s.render(w, r, b, sectionTemplates[entity], sectionData{View: v, OOB: entity == dashboard.EntityCategories})
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid request").Write(w)
		return nil, false
	}
	return p, true
}

// pathID parses the {id} segment; a malformed id is an unknown path.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		NotFound().Write(w)
		return 0, false
	}
	return id, true
}
