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

// ExpenseFilter narrows ListExpenses by date range. Zero times mean open
// ends.
type ExpenseFilter struct {
	From time.Time
	To   time.Time
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO expenses
		(expense_date, month, category, description, amount, payment_mode, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fmtDate(e.Date), string(e.Month), e.Category, e.Description,
		e.Amount.String(), e.PaymentMode, e.CreatedBy)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"category", e.Category,
		"amount", e.Amount.String(),
		"month", e.Month)
	return id, nil
}

func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT
		id, expense_date, month, category, description, amount, payment_mode, created_by, created_at
		FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, core.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET
		expense_date = ?, month = ?, category = ?, description = ?, amount = ?, payment_mode = ?
		WHERE id = ?`,
		fmtDate(e.Date), string(e.Month), e.Category, e.Description,
		e.Amount.String(), e.PaymentMode, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
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

func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
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

func (r *Repository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT id, expense_date, month, category, description, amount, payment_mode, created_by, created_at FROM expenses`
	var conds []string
	var args []any
	if !f.From.IsZero() {
		conds = append(conds, "expense_date >= ?")
		args = append(args, fmtDate(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "expense_date <= ?")
		args = append(args, fmtDate(f.To))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e               core.Expense
		dateStr, month  string
		amount          string
		createdAt       time.Time
	)
	err := row.Scan(&e.ID, &dateStr, &month, &e.Category, &e.Description, &amount, &e.PaymentMode, &e.CreatedBy, &createdAt)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = parseDate(dateStr)
	e.Month = core.MonthKey(month)
	e.Amount = parseDec(amount)
	e.CreatedAt = createdAt
	return e, nil
}
