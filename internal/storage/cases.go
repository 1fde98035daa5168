package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casetrack/internal/core"
)

// CaseFilter narrows ListCases. Zero values mean "no restriction": an empty
// Product spans all three product lines.
type CaseFilter struct {
	Product   core.ProductType
	CreatedBy int64
	From      time.Time
	To        time.Time
}

// commonCols is the shared column shape of the three case tables, in
// insert/select order. Product-specific columns are appended per table.
var commonCols = []string{
	"date", "month", "case_book_at", "customer_name", "address",
	"applicant_occupation", "mobile", "status", "amount", "interest_rate",
	"tenure_months", "emi_amount", "charges", "bt_amount", "extra_fund",
	"payout_percent", "payout_amount", "referral_amount", "disbursement_date",
	"sourcing", "created_by",
}

func productCols(p core.ProductType) []string {
	switch p {
	case core.ProductVehicle:
		return []string{"vehicle_no", "vehicle_model", "model_year", "vehicle_end_used", "rc_limit_amount", "insurance_type", "insurance_amount"}
	case core.ProductMSME:
		return []string{"property_type", "loan_end_used", "total_loan_amount", "net_amount"}
	default:
		return []string{"loan_end_used"}
	}
}

func commonValues(c core.LoanCase) []any {
	return []any{
		fmtDate(c.Date), string(c.Month), c.Branch, c.CustomerName, c.Address,
		c.Occupation, c.Mobile, string(c.Status), c.Amount.String(), c.InterestRate.String(),
		c.TenureMonths, c.EMIAmount.String(), c.Charges.String(), c.BTAmount.String(), c.ExtraFund.String(),
		c.PayoutPercent.String(), c.PayoutAmount.String(), c.ReferralAmount.String(), fmtDatePtr(c.DisbursementDate),
		c.Sourcing, c.CreatedBy,
	}
}

func productValues(c core.LoanCase) []any {
	switch c.Product {
	case core.ProductVehicle:
		v := c.Vehicle
		if v == nil {
			v = &core.VehicleDetails{}
		}
		return []any{v.VehicleNo, v.Model, v.ModelYear, v.EndUse, v.RCLimitAmount.String(), v.InsuranceType, v.InsuranceAmount.String()}
	case core.ProductMSME:
		m := c.MSME
		if m == nil {
			m = &core.MSMEDetails{}
		}
		return []any{m.PropertyType, m.EndUse, m.TotalLoanAmount.String(), m.NetAmount.String()}
	default:
		p := c.PL
		if p == nil {
			p = &core.PLDetails{}
		}
		return []any{p.EndUse}
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// CreateCase inserts a case and its co-applicants in one transaction.
func (r *Repository) CreateCase(ctx context.Context, c core.LoanCase) (int64, error) {
	table, err := caseTable(c.Product)
	if err != nil {
		return 0, err
	}

	cols := append(append([]string{}, commonCols...), productCols(c.Product)...)
	vals := append(commonValues(c), productValues(c)...)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders(len(cols))),
		vals...)
	if err != nil {
		return 0, fmt.Errorf("insert case: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if err := replaceCoApplicants(ctx, tx, c.Product, id, c.CoApplicants); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit case insert: %w", err)
	}

	slog.InfoContext(ctx, "Case saved",
		"product", c.Product,
		"id", id,
		"branch", c.Branch,
		"status", c.Status,
		"amount", c.Amount.String())
	return id, nil
}

// UpdateCase overwrites the full case row and its co-applicant set.
func (r *Repository) UpdateCase(ctx context.Context, c core.LoanCase) error {
	table, err := caseTable(c.Product)
	if err != nil {
		return err
	}

	cols := append(append([]string{}, commonCols...), productCols(c.Product)...)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = ?"
	}
	vals := append(commonValues(c), productValues(c)...)
	vals = append(vals, c.ID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", ")),
		vals...)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM co_applicants WHERE case_type = ? AND case_id = ?", string(c.Product), c.ID); err != nil {
		return fmt.Errorf("clear co-applicants: %w", err)
	}
	if err := replaceCoApplicants(ctx, tx, c.Product, c.ID, c.CoApplicants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit case update: %w", err)
	}
	return nil
}

// DeleteCase removes a case and its co-applicants. Payouts derived from the
// case survive deletion, matching their independent lifecycle.
func (r *Repository) DeleteCase(ctx context.Context, product core.ProductType, id int64) error {
	table, err := caseTable(product)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM co_applicants WHERE case_type = ? AND case_id = ?", string(product), id); err != nil {
		return fmt.Errorf("delete co-applicants: %w", err)
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return tx.Commit()
}

// GetCase loads one case including its co-applicants.
func (r *Repository) GetCase(ctx context.Context, product core.ProductType, id int64) (core.LoanCase, error) {
	table, err := caseTable(product)
	if err != nil {
		return core.LoanCase{}, err
	}
	cols := append(append([]string{"id"}, commonCols...), productCols(product)...)
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s, created_at FROM %s WHERE id = ?", strings.Join(cols, ", "), table), id)

	c, err := scanCase(row, product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LoanCase{}, core.ErrNotFound
		}
		return core.LoanCase{}, fmt.Errorf("get case: %w", err)
	}

	apps, err := r.coApplicants(ctx, product, c.ID)
	if err != nil {
		return core.LoanCase{}, err
	}
	c.CoApplicants = apps
	return c, nil
}

// ListCases returns cases newest first, across all product lines unless the
// filter names one.
func (r *Repository) ListCases(ctx context.Context, f CaseFilter) ([]core.LoanCase, error) {
	products := []core.ProductType{core.ProductVehicle, core.ProductMSME, core.ProductPL}
	if f.Product != "" {
		if !f.Product.Valid() {
			return nil, core.ErrInvalidProduct
		}
		products = []core.ProductType{f.Product}
	}

	var out []core.LoanCase
	for _, p := range products {
		cases, err := r.listProduct(ctx, p, f)
		if err != nil {
			return nil, err
		}
		out = append(out, cases...)
	}
	return out, nil
}

func (r *Repository) listProduct(ctx context.Context, product core.ProductType, f CaseFilter) ([]core.LoanCase, error) {
	table, _ := caseTable(product)
	cols := append(append([]string{"id"}, commonCols...), productCols(product)...)

	query := fmt.Sprintf("SELECT %s, created_at FROM %s", strings.Join(cols, ", "), table)
	var conds []string
	var args []any
	if f.CreatedBy != 0 {
		conds = append(conds, "created_by = ?")
		args = append(args, f.CreatedBy)
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, fmtDate(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, fmtDate(f.To))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var cases []core.LoanCase
	for rows.Next() {
		c, err := scanCase(rows, product)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		apps, err := r.coApplicants(ctx, product, c.ID)
		if err != nil {
			return nil, err
		}
		c.CoApplicants = apps
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return cases, nil
}

func replaceCoApplicants(ctx context.Context, tx *sql.Tx, product core.ProductType, caseID int64, apps []core.CoApplicant) error {
	for _, a := range apps {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO co_applicants (case_type, case_id, name, relation, mobile) VALUES (?, ?, ?, ?, ?)",
			string(product), caseID, a.Name, a.Relation, a.Mobile); err != nil {
			return fmt.Errorf("insert co-applicant: %w", err)
		}
	}
	return nil
}

func (r *Repository) coApplicants(ctx context.Context, product core.ProductType, caseID int64) ([]core.CoApplicant, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name, relation, mobile FROM co_applicants WHERE case_type = ? AND case_id = ? ORDER BY id",
		string(product), caseID)
	if err != nil {
		return nil, fmt.Errorf("list co-applicants: %w", err)
	}
	defer rows.Close()

	var apps []core.CoApplicant
	for rows.Next() {
		var a core.CoApplicant
		if err := rows.Scan(&a.Name, &a.Relation, &a.Mobile); err != nil {
			return nil, fmt.Errorf("scan co-applicant: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner, product core.ProductType) (core.LoanCase, error) {
	var (
		c                core.LoanCase
		dateStr, month   string
		status           string
		amount, irate    string
		emi, charges     string
		bt, extra        string
		pct, payAmt, ref string
		disbDate         sql.NullString
		createdAt        time.Time
	)
	c.Product = product

	dest := []any{
		&c.ID, &dateStr, &month, &c.Branch, &c.CustomerName, &c.Address,
		&c.Occupation, &c.Mobile, &status, &amount, &irate,
		&c.TenureMonths, &emi, &charges, &bt, &extra,
		&pct, &payAmt, &ref, &disbDate,
		&c.Sourcing, &c.CreatedBy,
	}

	var (
		vehicleNo, vehicleModel, modelYear, vehicleEnd string
		rcLimit, insAmount                             string
		insType                                        string
		propertyType, loanEnd, totalLoan, netAmount    string
	)
	switch product {
	case core.ProductVehicle:
		dest = append(dest, &vehicleNo, &vehicleModel, &modelYear, &vehicleEnd, &rcLimit, &insType, &insAmount)
	case core.ProductMSME:
		dest = append(dest, &propertyType, &loanEnd, &totalLoan, &netAmount)
	default:
		dest = append(dest, &loanEnd)
	}
	dest = append(dest, &createdAt)

	if err := row.Scan(dest...); err != nil {
		return core.LoanCase{}, err
	}

	c.Date = parseDate(dateStr)
	c.Month = core.MonthKey(month)
	c.Status = core.CaseStatus(status)
	c.Amount = parseDec(amount)
	c.InterestRate = parseDec(irate)
	c.EMIAmount = parseDec(emi)
	c.Charges = parseDec(charges)
	c.BTAmount = parseDec(bt)
	c.ExtraFund = parseDec(extra)
	c.PayoutPercent = parseDec(pct)
	c.PayoutAmount = parseDec(payAmt)
	c.ReferralAmount = parseDec(ref)
	c.DisbursementDate = parseDatePtr(disbDate)
	c.CreatedAt = createdAt

	switch product {
	case core.ProductVehicle:
		c.Vehicle = &core.VehicleDetails{
			VehicleNo:       vehicleNo,
			Model:           vehicleModel,
			ModelYear:       modelYear,
			EndUse:          vehicleEnd,
			RCLimitAmount:   parseDec(rcLimit),
			InsuranceType:   insType,
			InsuranceAmount: parseDec(insAmount),
		}
	case core.ProductMSME:
		c.MSME = &core.MSMEDetails{
			PropertyType:    propertyType,
			EndUse:          loanEnd,
			TotalLoanAmount: parseDec(totalLoan),
			NetAmount:       parseDec(netAmount),
		}
	default:
		c.PL = &core.PLDetails{EndUse: loanEnd}
	}
	return c, nil
}
