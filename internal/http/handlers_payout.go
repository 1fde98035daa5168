package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"casetrack/internal/core"
)

// requireAdminView rejects callers without admin visibility. Payouts and
// expenses are business money, not per-agent data.
func (s *Server) requireAdminView(w http.ResponseWriter, r *http.Request) bool {
	if !identity(r).Role.CanViewAdminDashboard() {
		respondError(r.Context(), w, http.StatusForbidden, "access denied")
		return false
	}
	return true
}

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	payouts, err := s.store.ListPayouts(ctx)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"payouts": payouts, "count": len(payouts)})
}

func (s *Server) handleGetPayout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	payout, err := s.store.GetPayout(ctx, idFromPath(r))
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, payout)
}

// manualPayoutRequest is a payout entered by hand, without a source case.
// The gross either comes from principal and percent or is given flat.
type manualPayoutRequest struct {
	Month          string          `json:"month"`
	Branch         string          `json:"case_book_at"`
	CustomerName   string          `json:"customer_name"`
	Principal      decimal.Decimal `json:"principal"`
	PayoutPercent  decimal.Decimal `json:"payout_percent"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
	ReferralAmount decimal.Decimal `json:"referral_amount"`
}

func (s *Server) handleCreatePayout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	var req manualPayoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	month, err := core.ParseMonthKey(req.Month)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	if sanitizeInput(req.CustomerName) == "" {
		respondError(ctx, w, http.StatusUnprocessableEntity, "customer name is required")
		return
	}

	breakdown := core.ComputePayout(req.Principal, req.PayoutPercent, req.PayoutAmount)
	id, _, err := s.store.CreatePayout(ctx, core.Payout{
		EventID:        uuid.New(),
		Month:          month,
		Branch:         sanitizeInput(req.Branch),
		CustomerName:   sanitizeInput(req.CustomerName),
		Principal:      req.Principal,
		PayoutPercent:  req.PayoutPercent,
		Gross:          breakdown.Gross,
		GST:            breakdown.GST,
		TDS:            breakdown.TDS,
		Net:            breakdown.Net,
		ReferralAmount: req.ReferralAmount,
		Status:         core.PayoutPending,
	})
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()

	payout, err := s.store.GetPayout(ctx, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, payout)
}

// handleUpdatePayout changes a payout's status. The snapshot figures
// are immutable once derived.
func (s *Server) handleUpdatePayout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()
	id := idFromPath(r)

	var req struct {
		Status core.PayoutStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		respondError(ctx, w, http.StatusUnprocessableEntity, "invalid payout status")
		return
	}

	if err := s.store.UpdatePayoutStatus(ctx, id, req.Status); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()

	payout, err := s.store.GetPayout(ctx, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, payout)
}

// handleProcessPayout marks a payout as received.
func (s *Server) handleProcessPayout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()
	id := idFromPath(r)

	if err := s.store.UpdatePayoutStatus(ctx, id, core.PayoutProcessed); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()

	payout, err := s.store.GetPayout(ctx, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, payout)
}

func (s *Server) handleDeletePayout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	if err := s.store.DeletePayout(ctx, idFromPath(r)); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}
