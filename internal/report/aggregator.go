// Package report builds the monthly aggregation and dashboard read models
// from the grouped storage rollups.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"casetrack/internal/core"
	"casetrack/internal/storage"
)

// AggregateStore is the slice of the repository the aggregator reads.
type AggregateStore interface {
	CaseMonthBranchRows(ctx context.Context, since time.Time) ([]storage.MonthBranchRow, error)
	PayoutMonthRows(ctx context.Context, since core.MonthKey) ([]storage.PayoutMonthRow, error)
	ExpenseMonthRows(ctx context.Context, since core.MonthKey) ([]storage.ExpenseMonthRow, error)
}

type (
	// BranchSummary is one branch's share of a month.
	BranchSummary struct {
		Branch         string          `json:"branch"`
		TotalCases     int             `json:"total_cases"`
		TotalAmount    decimal.Decimal `json:"total_amount"`
		DisbursedCases int             `json:"disbursed_cases"`
	}

	// MonthSummary is the full aggregation for one month. NetIncome is
	// payout net minus expenses; referral amounts are reported separately
	// and never netted.
	MonthSummary struct {
		Month          core.MonthKey   `json:"month"`
		Label          string          `json:"label"`
		TotalCases     int             `json:"total_cases"`
		TotalAmount    decimal.Decimal `json:"total_amount"`
		DisbursedCases int             `json:"disbursed_cases"`
		PayoutGross    decimal.Decimal `json:"payout_gross"`
		PayoutNet      decimal.Decimal `json:"payout_net"`
		Referral       decimal.Decimal `json:"referral"`
		Expenses       decimal.Decimal `json:"expenses"`
		NetIncome      decimal.Decimal `json:"net_income"`
		Branches       []BranchSummary `json:"branches"`
	}
)

// Aggregator assembles trailing-window monthly summaries. The window is
// measured in months including the current one.
type Aggregator struct {
	store  AggregateStore
	window int
	now    func() time.Time
}

func NewAggregator(store AggregateStore, windowMonths int) *Aggregator {
	if windowMonths < 1 {
		windowMonths = 1
	}
	return &Aggregator{store: store, window: windowMonths, now: time.Now}
}

// windowStart is the first day of the oldest month in the window.
func (a *Aggregator) windowStart() time.Time {
	t := a.now()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(a.window - 1), 0)
}

// MonthlyBreakdown returns one summary per window month, newest first.
// Months without activity are present and zero-filled so charts keep a
// continuous axis.
func (a *Aggregator) MonthlyBreakdown(ctx context.Context) ([]MonthSummary, error) {
	start := a.windowStart()
	sinceKey := core.MonthKeyOf(start)

	var (
		caseRows    []storage.MonthBranchRow
		payoutRows  []storage.PayoutMonthRow
		expenseRows []storage.ExpenseMonthRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		caseRows, err = a.store.CaseMonthBranchRows(gctx, start)
		return err
	})
	g.Go(func() error {
		var err error
		payoutRows, err = a.store.PayoutMonthRows(gctx, sinceKey)
		return err
	})
	g.Go(func() error {
		var err error
		expenseRows, err = a.store.ExpenseMonthRows(gctx, sinceKey)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load monthly rollups: %w", err)
	}

	byMonth := make(map[core.MonthKey]*MonthSummary, a.window)
	months := make([]MonthSummary, 0, a.window)
	cursor := a.now()
	for i := 0; i < a.window; i++ {
		key := core.MonthKeyOf(cursor)
		months = append(months, MonthSummary{
			Month:       key,
			Label:       key.Label(),
			TotalAmount: decimal.Zero,
			PayoutGross: decimal.Zero,
			PayoutNet:   decimal.Zero,
			Referral:    decimal.Zero,
			Expenses:    decimal.Zero,
			NetIncome:   decimal.Zero,
		})
		cursor = cursor.AddDate(0, -1, 0)
	}
	for i := range months {
		byMonth[months[i].Month] = &months[i]
	}

	for _, row := range caseRows {
		m, ok := byMonth[row.Month]
		if !ok {
			continue
		}
		m.TotalCases += row.TotalCases
		m.TotalAmount = m.TotalAmount.Add(row.TotalAmount)
		m.DisbursedCases += row.DisbursedCases
		m.Branches = append(m.Branches, BranchSummary{
			Branch:         row.Branch,
			TotalCases:     row.TotalCases,
			TotalAmount:    row.TotalAmount,
			DisbursedCases: row.DisbursedCases,
		})
	}
	for _, row := range payoutRows {
		m, ok := byMonth[row.Month]
		if !ok {
			continue
		}
		m.PayoutGross = m.PayoutGross.Add(row.Gross)
		m.PayoutNet = m.PayoutNet.Add(row.Net)
		m.Referral = m.Referral.Add(row.Referral)
	}
	for _, row := range expenseRows {
		m, ok := byMonth[row.Month]
		if !ok {
			continue
		}
		m.Expenses = m.Expenses.Add(row.Total)
	}
	for i := range months {
		months[i].NetIncome = months[i].PayoutNet.Sub(months[i].Expenses)
	}
	return months, nil
}

// TopBranches ranks branches across the window by case count,
// breaking ties on total amount.
func (a *Aggregator) TopBranches(ctx context.Context, n int) ([]BranchSummary, error) {
	rows, err := a.store.CaseMonthBranchRows(ctx, a.windowStart())
	if err != nil {
		return nil, fmt.Errorf("load branch rollups: %w", err)
	}

	byBranch := make(map[string]*BranchSummary)
	for _, row := range rows {
		b, ok := byBranch[row.Branch]
		if !ok {
			b = &BranchSummary{Branch: row.Branch, TotalAmount: decimal.Zero}
			byBranch[row.Branch] = b
		}
		b.TotalCases += row.TotalCases
		b.TotalAmount = b.TotalAmount.Add(row.TotalAmount)
		b.DisbursedCases += row.DisbursedCases
	}

	out := make([]BranchSummary, 0, len(byBranch))
	for _, b := range byBranch {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCases != out[j].TotalCases {
			return out[i].TotalCases > out[j].TotalCases
		}
		if !out[i].TotalAmount.Equal(out[j].TotalAmount) {
			return out[i].TotalAmount.GreaterThan(out[j].TotalAmount)
		}
		return out[i].Branch < out[j].Branch
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
