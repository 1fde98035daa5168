package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"casetrack/internal/core"
)

// unionCases projects the three case tables onto their common shape for
// cross-product rollups.
const unionCases = `(
	SELECT date, month, case_book_at, amount, status, created_by FROM vehicle_cases
	UNION ALL SELECT date, month, case_book_at, amount, status, created_by FROM msme_cases
	UNION ALL SELECT date, month, case_book_at, amount, status, created_by FROM pl_cases
)`

type (
	// MonthBranchRow is one grouped (month, branch) case rollup.
	MonthBranchRow struct {
		Month          core.MonthKey
		Branch         string
		TotalCases     int
		TotalAmount    decimal.Decimal
		DisbursedCases int
	}

	// PayoutMonthRow sums payout amounts for one month.
	PayoutMonthRow struct {
		Month    core.MonthKey
		Gross    decimal.Decimal
		Net      decimal.Decimal
		Referral decimal.Decimal
	}

	// ExpenseMonthRow sums expenses for one month.
	ExpenseMonthRow struct {
		Month core.MonthKey
		Total decimal.Decimal
	}

	// CaseTotals are the business-wide admin dashboard counters.
	CaseTotals struct {
		TotalLeads     int
		TotalDisbursed decimal.Decimal
	}

	// PayoutTotals split received and still-pending payout income.
	PayoutTotals struct {
		Received     decimal.Decimal
		Pending      decimal.Decimal
		PendingCount int
	}

	// StatusCount is one entry of a per-status case breakdown.
	StatusCount struct {
		Status core.CaseStatus
		Count  int
	}

	// MonthCount is one entry of a per-month lead count.
	MonthCount struct {
		Month core.MonthKey
		Count int
	}
)

// sumDec converts an aggregated SQL sum (REAL) back to a decimal rounded at
// 2 places. Aggregation sums are display figures; per-row money stays TEXT.
func sumDec(v sql.NullFloat64) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v.Float64).Round(2)
}

// CaseMonthBranchRows returns per-(month, branch) rollups across all three
// case tables for rows dated on or after since.
func (r *Repository) CaseMonthBranchRows(ctx context.Context, since time.Time) ([]MonthBranchRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		month, case_book_at,
		COUNT(*) AS total_cases,
		SUM(CAST(amount AS REAL)) AS total_amount,
		COUNT(CASE WHEN status = 'Disbursed' THEN 1 END) AS disbursed_cases
		FROM `+unionCases+`
		WHERE date >= ?
		GROUP BY month, case_book_at
		ORDER BY month DESC, case_book_at`, fmtDate(since))
	if err != nil {
		return nil, fmt.Errorf("case month/branch rollup: %w", err)
	}
	defer rows.Close()

	var out []MonthBranchRow
	for rows.Next() {
		var (
			row   MonthBranchRow
			month string
			total sql.NullFloat64
		)
		if err := rows.Scan(&month, &row.Branch, &row.TotalCases, &total, &row.DisbursedCases); err != nil {
			return nil, fmt.Errorf("scan rollup row: %w", err)
		}
		row.Month = core.MonthKey(month)
		row.TotalAmount = sumDec(total)
		out = append(out, row)
	}
	return out, rows.Err()
}

// PayoutMonthRows sums payouts per month for months >= since.
func (r *Repository) PayoutMonthRows(ctx context.Context, since core.MonthKey) ([]PayoutMonthRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		month,
		SUM(CAST(gross AS REAL)),
		SUM(CAST(net AS REAL)),
		SUM(CAST(referral_amount AS REAL))
		FROM payouts WHERE month >= ? GROUP BY month`, string(since))
	if err != nil {
		return nil, fmt.Errorf("payout month rollup: %w", err)
	}
	defer rows.Close()

	var out []PayoutMonthRow
	for rows.Next() {
		var (
			row                 PayoutMonthRow
			month               string
			gross, net, referral sql.NullFloat64
		)
		if err := rows.Scan(&month, &gross, &net, &referral); err != nil {
			return nil, fmt.Errorf("scan payout rollup row: %w", err)
		}
		row.Month = core.MonthKey(month)
		row.Gross = sumDec(gross)
		row.Net = sumDec(net)
		row.Referral = sumDec(referral)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ExpenseMonthRows sums expenses per month for months >= since.
func (r *Repository) ExpenseMonthRows(ctx context.Context, since core.MonthKey) ([]ExpenseMonthRow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT month, SUM(CAST(amount AS REAL)) FROM expenses WHERE month >= ? GROUP BY month", string(since))
	if err != nil {
		return nil, fmt.Errorf("expense month rollup: %w", err)
	}
	defer rows.Close()

	var out []ExpenseMonthRow
	for rows.Next() {
		var (
			row   ExpenseMonthRow
			month string
			total sql.NullFloat64
		)
		if err := rows.Scan(&month, &total); err != nil {
			return nil, fmt.Errorf("scan expense rollup row: %w", err)
		}
		row.Month = core.MonthKey(month)
		row.Total = sumDec(total)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CaseTotals counts all leads and sums the canonical principal of disbursed
// cases across product lines.
func (r *Repository) CaseTotals(ctx context.Context) (CaseTotals, error) {
	var (
		t         CaseTotals
		disbursed sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		SUM(CASE WHEN status = 'Disbursed' THEN CAST(amount AS REAL) ELSE 0 END)
		FROM `+unionCases).Scan(&t.TotalLeads, &disbursed)
	if err != nil {
		return CaseTotals{}, fmt.Errorf("case totals: %w", err)
	}
	t.TotalDisbursed = sumDec(disbursed)
	return t, nil
}

// PayoutTotals sums processed (received) and pending net payout amounts.
func (r *Repository) PayoutTotals(ctx context.Context) (PayoutTotals, error) {
	var (
		t                 PayoutTotals
		received, pending sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `SELECT
		SUM(CASE WHEN status = 'Processed' THEN CAST(net AS REAL) ELSE 0 END),
		SUM(CASE WHEN status = 'Pending' THEN CAST(net AS REAL) ELSE 0 END),
		COUNT(CASE WHEN status = 'Pending' THEN 1 END)
		FROM payouts`).Scan(&received, &pending, &t.PendingCount)
	if err != nil {
		return PayoutTotals{}, fmt.Errorf("payout totals: %w", err)
	}
	t.Received = sumDec(received)
	t.Pending = sumDec(pending)
	return t, nil
}

// UserCaseCount counts cases created by one user across product lines.
func (r *Repository) UserCaseCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+unionCases+" WHERE created_by = ?", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("user case count: %w", err)
	}
	return n, nil
}

// UserStatusBreakdown counts one user's cases per status.
func (r *Repository) UserStatusBreakdown(ctx context.Context, userID int64) ([]StatusCount, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM "+unionCases+" WHERE created_by = ? GROUP BY status", userID)
	if err != nil {
		return nil, fmt.Errorf("user status breakdown: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var (
			sc     StatusCount
			status string
		)
		if err := rows.Scan(&status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		sc.Status = core.CaseStatus(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// UserMonthlyCounts counts one user's cases per month, newest first.
func (r *Repository) UserMonthlyCounts(ctx context.Context, userID int64) ([]MonthCount, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT month, COUNT(*) FROM "+unionCases+" WHERE created_by = ? GROUP BY month ORDER BY month DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("user monthly counts: %w", err)
	}
	defer rows.Close()

	var out []MonthCount
	for rows.Next() {
		var (
			mc    MonthCount
			month string
		)
		if err := rows.Scan(&month, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan month row: %w", err)
		}
		mc.Month = core.MonthKey(month)
		out = append(out, mc)
	}
	return out, rows.Err()
}
