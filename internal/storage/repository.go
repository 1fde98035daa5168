// Package storage persists cases, payouts, expenses and users in SQLite and
// serves the grouped rollup queries consumed by the reporting layer.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"casetrack/internal/core"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// caseTable maps a product line to its table. The three tables share the
// common column shape; only the trailing product-specific columns differ.
func caseTable(p core.ProductType) (string, error) {
	switch p {
	case core.ProductVehicle:
		return "vehicle_cases", nil
	case core.ProductMSME:
		return "msme_cases", nil
	case core.ProductPL:
		return "pl_cases", nil
	}
	return "", core.ErrInvalidProduct
}

const isoDate = "2006-01-02"

func fmtDate(t time.Time) string {
	return t.Format(isoDate)
}

func fmtDatePtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(isoDate)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(isoDate, s)
	return t
}

func parseDatePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(isoDate, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// parseDec tolerates empty and malformed stored values, treating them as
// zero, matching the zero-value policy for missing financial fields.
func parseDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
