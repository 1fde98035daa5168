package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"casetrack/internal/auth"
	"casetrack/internal/core"
	"casetrack/internal/storage"
)

// caseRequest is the JSON body for creating and updating cases. Dates are
// ISO strings; the canonical month key is always recomputed from the case
// date on write.
type caseRequest struct {
	Product          string               `json:"product"`
	Date             string               `json:"date"`
	Branch           string               `json:"case_book_at"`
	CustomerName     string               `json:"customer_name"`
	Address          string               `json:"address"`
	Occupation       string               `json:"applicant_occupation"`
	Mobile           string               `json:"mobile"`
	Status           string               `json:"status"`
	Amount           decimal.Decimal      `json:"amount"`
	InterestRate     decimal.Decimal      `json:"interest_rate"`
	TenureMonths     int                  `json:"tenure_months"`
	EMIAmount        decimal.Decimal      `json:"emi_amount"`
	Charges          decimal.Decimal      `json:"charges"`
	BTAmount         decimal.Decimal      `json:"bt_amount"`
	ExtraFund        decimal.Decimal      `json:"extra_fund"`
	PayoutPercent    decimal.Decimal      `json:"payout_percent"`
	PayoutAmount     decimal.Decimal      `json:"payout_amount"`
	ReferralAmount   decimal.Decimal      `json:"referral_amount"`
	DisbursementDate string               `json:"disbursement_date"`
	Sourcing         string               `json:"sourcing"`
	CoApplicants     []core.CoApplicant   `json:"co_applicants"`
	Vehicle          *core.VehicleDetails `json:"vehicle"`
	MSME             *core.MSMEDetails    `json:"msme"`
	PL               *core.PLDetails      `json:"pl"`
}

func (req caseRequest) toCase() (core.LoanCase, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return core.LoanCase{}, err
	}

	status := core.CaseStatus(req.Status)
	if req.Status == "" {
		status = core.StatusDraft
	}

	c := core.LoanCase{
		Product:        core.ProductType(req.Product),
		Date:           date,
		Month:          core.MonthKeyOf(date),
		Branch:         sanitizeInput(req.Branch),
		CustomerName:   sanitizeInput(req.CustomerName),
		Address:        sanitizeInput(req.Address),
		Occupation:     sanitizeInput(req.Occupation),
		Mobile:         sanitizeInput(req.Mobile),
		Status:         status,
		Amount:         req.Amount,
		InterestRate:   req.InterestRate,
		TenureMonths:   req.TenureMonths,
		EMIAmount:      req.EMIAmount,
		Charges:        req.Charges,
		BTAmount:       req.BTAmount,
		ExtraFund:      req.ExtraFund,
		PayoutPercent:  req.PayoutPercent,
		PayoutAmount:   req.PayoutAmount,
		ReferralAmount: req.ReferralAmount,
		Sourcing:       sanitizeInput(req.Sourcing),
		CoApplicants:   req.CoApplicants,
		Vehicle:        req.Vehicle,
		MSME:           req.MSME,
		PL:             req.PL,
	}
	if req.DisbursementDate != "" {
		disb, err := parseDate(req.DisbursementDate)
		if err != nil {
			return core.LoanCase{}, err
		}
		c.DisbursementDate = &disb
	}
	return c, c.Validate()
}

func productFromPath(r *http.Request) (core.ProductType, error) {
	switch strings.ToLower(mux.Vars(r)["product"]) {
	case "vehicle":
		return core.ProductVehicle, nil
	case "msme":
		return core.ProductMSME, nil
	case "pl":
		return core.ProductPL, nil
	}
	return "", core.ErrInvalidProduct
}

func idFromPath(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// canTouchCase allows the creator and anyone with admin visibility.
func canTouchCase(id auth.Identity, c core.LoanCase) bool {
	return id.Role.CanViewAdminDashboard() || c.CreatedBy == id.UserID
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := identity(r)

	var f storage.CaseFilter
	q := r.URL.Query()
	if p := q.Get("product"); p != "" {
		f.Product = core.ProductType(p)
	}
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

	// Non-admin callers only ever see their own cases.
	if caller.Role.CanViewAdminDashboard() {
		if v := q.Get("user"); v != "" {
			userID, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				respondError(ctx, w, http.StatusBadRequest, "invalid user filter")
				return
			}
			f.CreatedBy = userID
		}
	} else {
		f.CreatedBy = caller.UserID
	}

	cases, err := s.store.ListCases(ctx, f)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"cases": cases, "count": len(cases)})
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req caseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := req.toCase()
	if err != nil {
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.CreatedBy = identity(r).UserID

	id, err := s.store.CreateCase(ctx, c)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	c.ID = id

	// Cases can be booked directly in Disbursed state.
	if _, err := s.deriver.OnStatusChange(ctx, core.StatusDraft, c); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()

	stored, err := s.store.GetCase(ctx, c.Product, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, stored)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	product, err := productFromPath(r)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	c, err := s.store.GetCase(ctx, product, idFromPath(r))
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	if !canTouchCase(identity(r), c) {
		respondError(ctx, w, http.StatusForbidden, "access denied")
		return
	}
	respondJSON(ctx, w, http.StatusOK, c)
}

func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	product, err := productFromPath(r)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	id := idFromPath(r)

	existing, err := s.store.GetCase(ctx, product, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	if !canTouchCase(identity(r), existing) {
		respondError(ctx, w, http.StatusForbidden, "access denied")
		return
	}

	var req caseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := req.toCase()
	if err != nil {
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if c.Product != product {
		respondError(ctx, w, http.StatusUnprocessableEntity, "product cannot change on update")
		return
	}
	c.ID = id
	c.CreatedBy = existing.CreatedBy

	if err := s.store.UpdateCase(ctx, c); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	if _, err := s.deriver.OnStatusChange(ctx, existing.Status, c); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()

	stored, err := s.store.GetCase(ctx, product, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, stored)
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	product, err := productFromPath(r)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	id := idFromPath(r)

	existing, err := s.store.GetCase(ctx, product, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	if !canTouchCase(identity(r), existing) {
		respondError(ctx, w, http.StatusForbidden, "access denied")
		return
	}

	if err := s.store.DeleteCase(ctx, product, id); err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.flushCaches()
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}
