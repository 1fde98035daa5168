package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"casetrack/internal/core"
	"casetrack/internal/storage"
)

type expenseRequest struct {
	Date        string          `json:"expense_date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"payment_mode"`
}

func (req expenseRequest) toExpense() (core.Expense, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Date:        date,
		Month:       core.MonthKeyOf(date),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		PaymentMode: sanitizeInput(req.PaymentMode),
	}
	return e, e.Validate()
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	var f storage.ExpenseFilter
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		from, err := parseDate(v)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		f.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := parseDate(v)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		f.To = to
	}

	expenses, err := s.store.ListExpenses(ctx, f)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"expenses": expenses, "count": len(expenses)})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := req.toExpense()
	if err != nil {
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	e.CreatedBy = identity(r).UserID

	id, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()

	stored, err := s.store.GetExpense(ctx, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, stored)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	e, err := s.store.GetExpense(ctx, idFromPath(r))
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()
	id := idFromPath(r)

	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := req.toExpense()
	if err != nil {
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	e.ID = id
	e.CreatedBy = existing.CreatedBy

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()

	stored, err := s.store.GetExpense(ctx, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, stored)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	if err := s.store.DeleteExpense(ctx, idFromPath(r)); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}
