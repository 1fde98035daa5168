package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"casetrack/internal/core"
	"casetrack/internal/storage"
)

// DashboardStore is the slice of the repository the dashboard builder
// reads.
type DashboardStore interface {
	CaseTotals(ctx context.Context) (storage.CaseTotals, error)
	PayoutTotals(ctx context.Context) (storage.PayoutTotals, error)
	UserCaseCount(ctx context.Context, userID int64) (int, error)
	UserStatusBreakdown(ctx context.Context, userID int64) ([]storage.StatusCount, error)
	UserMonthlyCounts(ctx context.Context, userID int64) ([]storage.MonthCount, error)
}

type (
	// AdminDashboard is the business-wide view. Admin and manager only.
	AdminDashboard struct {
		TotalLeads         int             `json:"total_leads"`
		TotalDisbursed     decimal.Decimal `json:"total_disbursed"`
		PayoutReceived     decimal.Decimal `json:"payout_received"`
		PayoutPending      decimal.Decimal `json:"payout_pending"`
		PendingPayoutCount int             `json:"pending_payout_count"`
	}

	// UserDashboard is one user's own pipeline view.
	UserDashboard struct {
		UserID          int64                 `json:"user_id"`
		TotalCases      int                   `json:"total_cases"`
		StatusBreakdown []storage.StatusCount `json:"status_breakdown"`
		MonthlyCounts   []storage.MonthCount  `json:"monthly_counts"`
	}
)

// Dashboards builds role-gated summary views. Access checks live here, not
// in the handlers, so every caller fails closed the same way.
type Dashboards struct {
	store DashboardStore
}

func NewDashboards(store DashboardStore) *Dashboards {
	return &Dashboards{store: store}
}

// AdminSummary returns the business-wide dashboard. Roles without admin
// visibility get ErrAccessDenied.
func (d *Dashboards) AdminSummary(ctx context.Context, viewer core.Role) (AdminDashboard, error) {
	if !viewer.CanViewAdminDashboard() {
		return AdminDashboard{}, core.ErrAccessDenied
	}

	var (
		cases   storage.CaseTotals
		payouts storage.PayoutTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cases, err = d.store.CaseTotals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		payouts, err = d.store.PayoutTotals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return AdminDashboard{}, fmt.Errorf("load admin totals: %w", err)
	}

	return AdminDashboard{
		TotalLeads:         cases.TotalLeads,
		TotalDisbursed:     cases.TotalDisbursed,
		PayoutReceived:     payouts.Received,
		PayoutPending:      payouts.Pending,
		PendingPayoutCount: payouts.PendingCount,
	}, nil
}

// UserSummary returns one user's dashboard. A user may read their own;
// admin visibility unlocks everyone's.
func (d *Dashboards) UserSummary(ctx context.Context, viewerID int64, viewerRole core.Role, userID int64) (UserDashboard, error) {
	if viewerID != userID && !viewerRole.CanViewAdminDashboard() {
		return UserDashboard{}, core.ErrAccessDenied
	}

	out := UserDashboard{UserID: userID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.TotalCases, err = d.store.UserCaseCount(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		out.StatusBreakdown, err = d.store.UserStatusBreakdown(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		out.MonthlyCounts, err = d.store.UserMonthlyCounts(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return UserDashboard{}, fmt.Errorf("load user stats: %w", err)
	}
	return out, nil
}
