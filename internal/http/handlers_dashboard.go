package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"casetrack/internal/core"
	"casetrack/internal/export"
	"casetrack/internal/report"
	"casetrack/internal/storage"
)

// handleAnalytics serves the trailing-window monthly breakdown. Admin
// visibility required; results are cached until the next write.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	const cacheKey = "analytics"
	if months, ok := s.analyticsCache.Get(cacheKey); ok {
		respondJSON(ctx, w, http.StatusOK, map[string]any{"months": months, "cached": true})
		return
	}

	months, err := s.aggregator.MonthlyBreakdown(ctx)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.analyticsCache.Put(cacheKey, months)
	respondJSON(ctx, w, http.StatusOK, map[string]any{"months": months})
}

func (s *Server) handleTopBranches(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()

	n := 5
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			respondError(ctx, w, http.StatusBadRequest, "invalid branch count")
			return
		}
		n = parsed
	}

	branches, err := s.aggregator.TopBranches(ctx, n)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"branches": branches})
}

// adminDashboardResponse pairs the lifetime totals with the most
// recent month of the trailing window.
type adminDashboardResponse struct {
	report.AdminDashboard
	LatestMonth *report.MonthSummary `json:"latest_month,omitempty"`
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := identity(r)

	const cacheKey = "admin"
	if caller.Role.CanViewAdminDashboard() {
		if dash, ok := s.adminCache.Get(cacheKey); ok {
			respondJSON(ctx, w, http.StatusOK, dash)
			return
		}
	}

	// The role gate lives in the report layer and fails closed.
	dash, err := s.dashboards.AdminSummary(ctx, caller.Role)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	months, err := s.aggregator.MonthlyBreakdown(ctx)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	resp := adminDashboardResponse{AdminDashboard: dash}
	if len(months) > 0 {
		resp.LatestMonth = &months[0]
	}
	s.adminCache.Put(cacheKey, resp)
	respondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := identity(r)
	userID := idFromPath(r)

	cacheKey := "user:" + strconv.FormatInt(userID, 10)
	if caller.UserID == userID || caller.Role.CanViewAdminDashboard() {
		if dash, ok := s.userCache.Get(cacheKey); ok {
			respondJSON(ctx, w, http.StatusOK, dash)
			return
		}
	}

	dash, err := s.dashboards.UserSummary(ctx, caller.UserID, caller.Role, userID)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	s.userCache.Put(cacheKey, dash)
	respondJSON(ctx, w, http.StatusOK, dash)
}

// handleExport streams a CSV register. Type is cases (optionally a
// single product line: vehicle, msme, pl), payouts or expenses.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminView(w, r) {
		return
	}
	ctx := r.Context()
	exportType := mux.Vars(r)["type"]

	var caseFilter storage.CaseFilter
	switch exportType {
	case "vehicle":
		caseFilter.Product = core.ProductVehicle
	case "msme":
		caseFilter.Product = core.ProductMSME
	case "pl":
		caseFilter.Product = core.ProductPL
	case "cases", "payouts", "expenses":
	default:
		respondError(ctx, w, http.StatusNotFound, "unknown export type")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", exportType))

	switch exportType {
	case "cases", "vehicle", "msme", "pl":
		cases, err := s.store.ListCases(ctx, caseFilter)
		if err != nil {
			respondDomainError(ctx, w, err)
			return
		}
		if err := export.Cases(w, cases); err != nil {
			respondDomainError(ctx, w, err)
		}
	case "payouts":
		payouts, err := s.store.ListPayouts(ctx)
		if err != nil {
			respondDomainError(ctx, w, err)
			return
		}
		if err := export.Payouts(w, payouts); err != nil {
			respondDomainError(ctx, w, err)
		}
	case "expenses":
		expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{})
		if err != nil {
			respondDomainError(ctx, w, err)
			return
		}
		if err := export.Expenses(w, expenses); err != nil {
			respondDomainError(ctx, w, err)
		}
	}
}
