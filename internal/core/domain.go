package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ProductVehicle ProductType = "Vehicle"
	ProductMSME    ProductType = "MSME"
	ProductPL      ProductType = "PL"
)

const (
	StatusDraft     CaseStatus = "Draft"
	StatusApproved  CaseStatus = "Approved"
	StatusDisbursed CaseStatus = "Disbursed"
	StatusRejected  CaseStatus = "Rejected"
)

const (
	PayoutPending   PayoutStatus = "Pending"
	PayoutProcessed PayoutStatus = "Processed"
)

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

type (
	ProductType  string
	CaseStatus   string
	PayoutStatus string
	Role         string

	// CoApplicant is a co-applicant or guarantor attached to a loan case.
	// Stored as a proper relation, one row per person.
	CoApplicant struct {
		Name     string `json:"name"`
		Relation string `json:"relation"`
		Mobile   string `json:"mobile"`
	}

	// VehicleDetails carries the fields specific to vehicle loan cases.
	VehicleDetails struct {
		VehicleNo       string          `json:"vehicle_no"`
		Model           string          `json:"vehicle_model"`
		ModelYear       string          `json:"model_year"`
		EndUse          string          `json:"vehicle_end_used"`
		RCLimitAmount   decimal.Decimal `json:"rc_limit_amount"`
		InsuranceType   string          `json:"insurance_type"`
		InsuranceAmount decimal.Decimal `json:"insurance_amount"`
	}

	// MSMEDetails carries the fields specific to MSME/property loan cases.
	MSMEDetails struct {
		PropertyType    string          `json:"property_type"`
		EndUse          string          `json:"loan_end_used"`
		TotalLoanAmount decimal.Decimal `json:"total_loan_amount"`
		NetAmount       decimal.Decimal `json:"net_amount"`
	}

	// PLDetails carries the fields specific to personal loan cases.
	PLDetails struct {
		EndUse string `json:"loan_end_used"`
	}

	// LoanCase is a customer loan application in one of the three product
	// lines. Amount is the canonical principal: the single source of truth
	// for both payout derivation and disbursement totals.
	LoanCase struct {
		ID               int64           `json:"id"`
		Product          ProductType     `json:"product"`
		Date             time.Time       `json:"date"`
		Month            MonthKey        `json:"month"`
		Branch           string          `json:"case_book_at"`
		CustomerName     string          `json:"customer_name"`
		Address          string          `json:"address"`
		Occupation       string          `json:"applicant_occupation"`
		Mobile           string          `json:"mobile"`
		Status           CaseStatus      `json:"status"`
		Amount           decimal.Decimal `json:"amount"`
		InterestRate     decimal.Decimal `json:"interest_rate"`
		TenureMonths     int             `json:"tenure_months"`
		EMIAmount        decimal.Decimal `json:"emi_amount"`
		Charges          decimal.Decimal `json:"charges"`
		BTAmount         decimal.Decimal `json:"bt_amount"`
		ExtraFund        decimal.Decimal `json:"extra_fund"`
		PayoutPercent    decimal.Decimal `json:"payout_percent"`
		PayoutAmount     decimal.Decimal `json:"payout_amount"`
		ReferralAmount   decimal.Decimal `json:"referral_amount"`
		DisbursementDate *time.Time      `json:"disbursement_date,omitempty"`
		Sourcing         string          `json:"sourcing"`
		CoApplicants     []CoApplicant   `json:"co_applicants"`
		Vehicle          *VehicleDetails `json:"vehicle,omitempty"`
		MSME             *MSMEDetails    `json:"msme,omitempty"`
		PL               *PLDetails      `json:"pl,omitempty"`
		CreatedBy        int64           `json:"created_by"`
		CreatedAt        time.Time       `json:"created_at"`
	}

	// Payout is the commission record derived from a disbursed case, or
	// entered manually. EventID identifies the disbursement event that
	// produced it.
	Payout struct {
		ID             int64           `json:"id"`
		CaseType       ProductType     `json:"case_type"`
		CaseID         int64           `json:"case_id"`
		EventID        uuid.UUID       `json:"event_id"`
		Month          MonthKey        `json:"month"`
		Branch         string          `json:"case_book_at"`
		CustomerName   string          `json:"customer_name"`
		Principal      decimal.Decimal `json:"principal"`
		PayoutPercent  decimal.Decimal `json:"payout_percent"`
		Gross          decimal.Decimal `json:"gross"`
		GST            decimal.Decimal `json:"gst"`
		TDS            decimal.Decimal `json:"tds"`
		Net            decimal.Decimal `json:"net"`
		ReferralAmount decimal.Decimal `json:"referral_amount"`
		Status         PayoutStatus    `json:"status"`
		CreatedAt      time.Time       `json:"created_at"`
	}

	// Expense is an operating cost entry. It contributes to monthly
	// aggregation only, never to payouts.
	Expense struct {
		ID          int64           `json:"id"`
		Date        time.Time       `json:"expense_date"`
		Month       MonthKey        `json:"month"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		PaymentMode string          `json:"payment_mode"`
		CreatedBy   int64           `json:"created_by"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// User is an authenticated account. PasswordHash is a bcrypt hash and
	// never leaves the server.
	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrInvalidProduct    = errors.New("invalid product type")
	ErrInvalidStatus     = errors.New("invalid case status")
	ErrInvalidMonthKey   = errors.New("invalid month key")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyCustomerName = errors.New("empty customer name")
	ErrEmptyBranch       = errors.New("empty booking branch")
	ErrEmptyCategory     = errors.New("empty expense category")
	ErrDuplicateEmail    = errors.New("email already registered")
)

// Valid reports whether p is one of the three product lines.
func (p ProductType) Valid() bool {
	switch p {
	case ProductVehicle, ProductMSME, ProductPL:
		return true
	}
	return false
}

// Valid reports whether s is a known case status.
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusDisbursed, StatusRejected:
		return true
	}
	return false
}

// Valid reports whether s is a known payout status.
func (s PayoutStatus) Valid() bool {
	return s == PayoutPending || s == PayoutProcessed
}

// CanViewAdminDashboard reports whether the role may read business-wide
// aggregations. Anything else is restricted to its own cases.
func (r Role) CanViewAdminDashboard() bool {
	return r == RoleAdmin || r == RoleManager
}

func (c LoanCase) Validate() error {
	if !c.Product.Valid() {
		return ErrInvalidProduct
	}
	if c.Date.IsZero() {
		return errors.New("case date cannot be zero")
	}
	if len(strings.TrimSpace(c.CustomerName)) == 0 {
		return ErrEmptyCustomerName
	}
	if len(strings.TrimSpace(c.Branch)) == 0 {
		return ErrEmptyBranch
	}
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	// A zero or missing amount is accepted: derivation treats it as a
	// zero-value payout rather than blocking unrelated case edits.
	if c.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if c.PayoutPercent.IsNegative() || c.PayoutPercent.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("payout percent out of range")
	}
	if c.TenureMonths < 0 {
		return errors.New("negative tenure")
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return errors.New("expense date cannot be zero")
	}
	if len(strings.TrimSpace(e.Category)) == 0 {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
