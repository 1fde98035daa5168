package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validCase() LoanCase {
	return LoanCase{
		Product:      ProductVehicle,
		Date:         time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Branch:       "Jaipur",
		CustomerName: "Test Customer",
		Status:       StatusDraft,
		Amount:       decimal.NewFromInt(500000),
	}
}

func TestLoanCaseValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LoanCase)
		wantOK  bool
		wantErr error // checked with errors.Is when set
	}{
		{"valid", func(c *LoanCase) {}, true, nil},
		{"zero amount accepted", func(c *LoanCase) { c.Amount = decimal.Zero }, true, nil},
		{"bad product", func(c *LoanCase) { c.Product = "Gold" }, false, ErrInvalidProduct},
		{"zero date", func(c *LoanCase) { c.Date = time.Time{} }, false, nil},
		{"empty customer", func(c *LoanCase) { c.CustomerName = "  " }, false, ErrEmptyCustomerName},
		{"empty branch", func(c *LoanCase) { c.Branch = "" }, false, ErrEmptyBranch},
		{"bad status", func(c *LoanCase) { c.Status = "Cancelled" }, false, ErrInvalidStatus},
		{"negative amount", func(c *LoanCase) { c.Amount = decimal.NewFromInt(-1) }, false, ErrInvalidAmount},
		{"percent over 100", func(c *LoanCase) { c.PayoutPercent = decimal.NewFromInt(101) }, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCase()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantOK {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpenseValidate(t *testing.T) {
	e := Expense{
		Date:     time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		Category: "Office Rent",
		Amount:   decimal.NewFromInt(12000),
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	bad := e
	bad.Amount = decimal.Zero
	if !errors.Is(bad.Validate(), ErrInvalidAmount) {
		t.Error("zero amount should be rejected")
	}

	bad = e
	bad.Category = ""
	if !errors.Is(bad.Validate(), ErrEmptyCategory) {
		t.Error("empty category should be rejected")
	}
}

func TestMonthKey(t *testing.T) {
	k := MonthKeyOf(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC))
	if k != "2025-01" {
		t.Fatalf("MonthKeyOf = %q", k)
	}
	if k.Label() != "January 2025" {
		t.Fatalf("Label = %q", k.Label())
	}

	if _, err := ParseMonthKey("January 2025"); !errors.Is(err, ErrInvalidMonthKey) {
		t.Error("human label should not parse as a month key")
	}
	if _, err := ParseMonthKey("2025-13"); !errors.Is(err, ErrInvalidMonthKey) {
		t.Error("month 13 should not parse")
	}
	got, err := ParseMonthKey("2024-12")
	if err != nil {
		t.Fatalf("ParseMonthKey: %v", err)
	}
	if !got.Before(k) {
		t.Error("2024-12 should sort before 2025-01")
	}
}

func TestRoleGate(t *testing.T) {
	for role, want := range map[Role]bool{
		RoleAdmin:   true,
		RoleManager: true,
		RoleAgent:   false,
		Role("??"):  false,
	} {
		if got := role.CanViewAdminDashboard(); got != want {
			t.Errorf("%s.CanViewAdminDashboard() = %v, want %v", role, got, want)
		}
	}
}
