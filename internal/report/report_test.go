package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"casetrack/internal/core"
	"casetrack/internal/storage"
)

type fakeStore struct {
	caseRows    []storage.MonthBranchRow
	payoutRows  []storage.PayoutMonthRow
	expenseRows []storage.ExpenseMonthRow

	caseTotals   storage.CaseTotals
	payoutTotals storage.PayoutTotals
	userCount    int
	statuses     []storage.StatusCount
	months       []storage.MonthCount
}

func (s *fakeStore) CaseMonthBranchRows(context.Context, time.Time) ([]storage.MonthBranchRow, error) {
	return s.caseRows, nil
}
func (s *fakeStore) PayoutMonthRows(context.Context, core.MonthKey) ([]storage.PayoutMonthRow, error) {
	return s.payoutRows, nil
}
func (s *fakeStore) ExpenseMonthRows(context.Context, core.MonthKey) ([]storage.ExpenseMonthRow, error) {
	return s.expenseRows, nil
}
func (s *fakeStore) CaseTotals(context.Context) (storage.CaseTotals, error) {
	return s.caseTotals, nil
}
func (s *fakeStore) PayoutTotals(context.Context) (storage.PayoutTotals, error) {
	return s.payoutTotals, nil
}
func (s *fakeStore) UserCaseCount(context.Context, int64) (int, error) {
	return s.userCount, nil
}
func (s *fakeStore) UserStatusBreakdown(context.Context, int64) ([]storage.StatusCount, error) {
	return s.statuses, nil
}
func (s *fakeStore) UserMonthlyCounts(context.Context, int64) ([]storage.MonthCount, error) {
	return s.months, nil
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestMonthlyBreakdown(t *testing.T) {
	store := &fakeStore{
		caseRows: []storage.MonthBranchRow{
			{Month: "2025-03", Branch: "Pune", TotalCases: 3, TotalAmount: dec(1500000), DisbursedCases: 2},
			{Month: "2025-03", Branch: "Nashik", TotalCases: 1, TotalAmount: dec(400000), DisbursedCases: 0},
			{Month: "2025-02", Branch: "Pune", TotalCases: 2, TotalAmount: dec(900000), DisbursedCases: 1},
		},
		payoutRows: []storage.PayoutMonthRow{
			{Month: "2025-03", Gross: dec(9500), Net: dec(7315), Referral: dec(500)},
		},
		expenseRows: []storage.ExpenseMonthRow{
			{Month: "2025-03", Total: dec(2000)},
			{Month: "2025-02", Total: dec(1500)},
		},
	}

	a := NewAggregator(store, 3)
	a.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	months, err := a.MonthlyBreakdown(context.Background())
	if err != nil {
		t.Fatalf("MonthlyBreakdown: %v", err)
	}
	if len(months) != 3 {
		t.Fatalf("months = %d, want 3", len(months))
	}

	march := months[0]
	if march.Month != "2025-03" || march.Label != "March 2025" {
		t.Errorf("first month = %q (%q), want 2025-03 / March 2025", march.Month, march.Label)
	}
	if march.TotalCases != 4 || march.DisbursedCases != 2 {
		t.Errorf("march cases = %d/%d disbursed, want 4/2", march.TotalCases, march.DisbursedCases)
	}
	if !march.TotalAmount.Equal(dec(1900000)) {
		t.Errorf("march amount = %s, want 1900000", march.TotalAmount)
	}
	if len(march.Branches) != 2 {
		t.Errorf("march branches = %d, want 2", len(march.Branches))
	}
	if !march.NetIncome.Equal(dec(5315)) {
		t.Errorf("march net income = %s, want 7315 - 2000 = 5315", march.NetIncome)
	}
	if !march.Referral.Equal(dec(500)) {
		t.Errorf("march referral = %s, want 500 (reported, never netted)", march.Referral)
	}

	feb := months[1]
	if feb.Month != "2025-02" || feb.TotalCases != 2 {
		t.Errorf("second month = %+v, want 2025-02 with 2 cases", feb)
	}
	if !feb.NetIncome.Equal(dec(-1500)) {
		t.Errorf("feb net income = %s, want -1500", feb.NetIncome)
	}

	jan := months[2]
	if jan.Month != "2025-01" || jan.TotalCases != 0 || !jan.NetIncome.IsZero() {
		t.Errorf("third month = %+v, want a zero-filled 2025-01", jan)
	}
}

func TestTopBranches(t *testing.T) {
	store := &fakeStore{
		caseRows: []storage.MonthBranchRow{
			{Month: "2025-03", Branch: "Pune", TotalCases: 3, TotalAmount: dec(1500000), DisbursedCases: 2},
			{Month: "2025-02", Branch: "Pune", TotalCases: 2, TotalAmount: dec(900000), DisbursedCases: 1},
			{Month: "2025-03", Branch: "Nashik", TotalCases: 5, TotalAmount: dec(2000000), DisbursedCases: 3},
			{Month: "2025-03", Branch: "Satara", TotalCases: 1, TotalAmount: dec(100000), DisbursedCases: 0},
		},
	}
	a := NewAggregator(store, 6)
	a.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	top, err := a.TopBranches(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopBranches: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top branches = %d, want 2", len(top))
	}
	// Pune and Nashik tie on case count; the larger amount wins.
	if top[0].Branch != "Pune" || top[0].TotalCases != 5 || !top[0].TotalAmount.Equal(dec(2400000)) {
		t.Errorf("top[0] = %+v, want Pune with 5 cases and 2400000", top[0])
	}
	if top[1].Branch != "Nashik" || top[1].TotalCases != 5 {
		t.Errorf("top[1] = %+v, want Nashik with 5 cases", top[1])
	}
}

func TestAdminSummaryRoleGate(t *testing.T) {
	store := &fakeStore{
		caseTotals:   storage.CaseTotals{TotalLeads: 12, TotalDisbursed: dec(5000000)},
		payoutTotals: storage.PayoutTotals{Received: dec(20000), Pending: dec(8000), PendingCount: 4},
	}
	d := NewDashboards(store)
	ctx := context.Background()

	for _, role := range []core.Role{core.RoleAdmin, core.RoleManager} {
		got, err := d.AdminSummary(ctx, role)
		if err != nil {
			t.Fatalf("AdminSummary(%s): %v", role, err)
		}
		if got.TotalLeads != 12 || !got.TotalDisbursed.Equal(dec(5000000)) {
			t.Errorf("AdminSummary(%s) = %+v", role, got)
		}
		if !got.PayoutPending.Equal(dec(8000)) || got.PendingPayoutCount != 4 {
			t.Errorf("AdminSummary(%s) pending = %s/%d, want 8000/4", role, got.PayoutPending, got.PendingPayoutCount)
		}
	}

	if _, err := d.AdminSummary(ctx, core.RoleAgent); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("AdminSummary(agent) = %v, want ErrAccessDenied", err)
	}
	if _, err := d.AdminSummary(ctx, core.Role("")); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("AdminSummary(empty role) = %v, want ErrAccessDenied", err)
	}
}

func TestUserSummaryScoping(t *testing.T) {
	store := &fakeStore{
		userCount: 5,
		statuses:  []storage.StatusCount{{Status: core.StatusApproved, Count: 3}, {Status: core.StatusDisbursed, Count: 2}},
		months:    []storage.MonthCount{{Month: "2025-03", Count: 4}, {Month: "2025-02", Count: 1}},
	}
	d := NewDashboards(store)
	ctx := context.Background()

	// Own dashboard.
	got, err := d.UserSummary(ctx, 7, core.RoleAgent, 7)
	if err != nil {
		t.Fatalf("UserSummary self: %v", err)
	}
	if got.TotalCases != 5 || len(got.StatusBreakdown) != 2 || len(got.MonthlyCounts) != 2 {
		t.Errorf("UserSummary self = %+v", got)
	}

	// Someone else's dashboard requires admin visibility.
	if _, err := d.UserSummary(ctx, 7, core.RoleAgent, 8); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("agent reading another user = %v, want ErrAccessDenied", err)
	}
	if _, err := d.UserSummary(ctx, 1, core.RoleManager, 8); err != nil {
		t.Errorf("manager reading another user = %v, want success", err)
	}
}
