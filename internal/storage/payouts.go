package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"casetrack/internal/core"
)

// CreatePayout inserts a payout. For payouts carrying a case reference the
// insert is conditional on the unique (case_type, case_id) index, so a
// second derivation for the same case is a no-op; the returned bool reports
// whether a row was actually written. Manual entries (no case reference)
// always insert.
func (r *Repository) CreatePayout(ctx context.Context, p core.Payout) (int64, bool, error) {
	var caseType, caseID any
	verb := "INSERT INTO"
	if p.CaseID != 0 {
		caseType = string(p.CaseType)
		caseID = p.CaseID
		verb = "INSERT OR IGNORE INTO"
	}

	res, err := r.db.ExecContext(ctx, verb+` payouts
		(case_type, case_id, event_id, month, case_book_at, customer_name,
		 principal, payout_percent, gross, gst, tds, net, referral_amount, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		caseType, caseID, p.EventID.String(), string(p.Month), p.Branch, p.CustomerName,
		p.Principal.String(), p.PayoutPercent.String(), p.Gross.String(), p.GST.String(),
		p.TDS.String(), p.Net.String(), p.ReferralAmount.String(), string(p.Status))
	if err != nil {
		return 0, false, fmt.Errorf("insert payout: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Unique index hit: a payout for this case already exists.
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Payout saved",
		"id", id,
		"case_type", p.CaseType,
		"case_id", p.CaseID,
		"gross", p.Gross.String(),
		"net", p.Net.String())
	return id, true, nil
}

func (r *Repository) GetPayout(ctx context.Context, id int64) (core.Payout, error) {
	row := r.db.QueryRowContext(ctx, `SELECT
		id, case_type, case_id, event_id, month, case_book_at, customer_name,
		principal, payout_percent, gross, gst, tds, net, referral_amount, status, created_at
		FROM payouts WHERE id = ?`, id)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Payout{}, core.ErrNotFound
		}
		return core.Payout{}, fmt.Errorf("get payout: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPayouts(ctx context.Context) ([]core.Payout, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, case_type, case_id, event_id, month, case_book_at, customer_name,
		principal, payout_percent, gross, gst, tds, net, referral_amount, status, created_at
		FROM payouts ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []core.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// UpdatePayoutStatus is the "process" action: Pending to Processed.
func (r *Repository) UpdatePayoutStatus(ctx context.Context, id int64, status core.PayoutStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE payouts SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeletePayout removes a payout independently of its source case.
func (r *Repository) DeletePayout(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM payouts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanPayout(row rowScanner) (core.Payout, error) {
	var (
		p                 core.Payout
		caseType          sql.NullString
		caseID            sql.NullInt64
		eventID, month    string
		status            string
		principal, pct    string
		gross, gst        string
		tds, net, ref     string
		createdAt         time.Time
	)
	err := row.Scan(&p.ID, &caseType, &caseID, &eventID, &month, &p.Branch, &p.CustomerName,
		&principal, &pct, &gross, &gst, &tds, &net, &ref, &status, &createdAt)
	if err != nil {
		return core.Payout{}, err
	}
	if caseType.Valid {
		p.CaseType = core.ProductType(caseType.String)
	}
	if caseID.Valid {
		p.CaseID = caseID.Int64
	}
	if parsed, err := uuid.Parse(eventID); err == nil {
		p.EventID = parsed
	}
	p.Month = core.MonthKey(month)
	p.Status = core.PayoutStatus(status)
	p.Principal = parseDec(principal)
	p.PayoutPercent = parseDec(pct)
	p.Gross = parseDec(gross)
	p.GST = parseDec(gst)
	p.TDS = parseDec(tds)
	p.Net = parseDec(net)
	p.ReferralAmount = parseDec(ref)
	p.CreatedAt = createdAt
	return p, nil
}
