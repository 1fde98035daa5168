// Package export renders cases, payouts and expenses as CSV downloads.
// Every field is quoted, including numbers, so spreadsheet imports never
// reinterpret mobile numbers or leading-zero values.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"casetrack/internal/core"
)

const isoDate = "2006-01-02"

// quote wraps a field in double quotes, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeRow(w io.Writer, fields ...string) error {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = quote(f)
	}
	_, err := fmt.Fprintln(w, strings.Join(quoted, ","))
	return err
}

var caseHeader = []string{
	"ID", "Product", "Date", "Month", "Branch", "Customer Name", "Mobile",
	"Status", "Amount", "Interest Rate", "Tenure Months", "EMI",
	"Payout %", "Payout Amount", "Referral Amount", "Disbursement Date",
	"Sourcing", "Co-Applicants",
}

// Cases writes the case register. Co-applicants collapse into one
// semicolon-joined column.
func Cases(w io.Writer, cases []core.LoanCase) error {
	if err := writeRow(w, caseHeader...); err != nil {
		return err
	}
	for _, c := range cases {
		disb := ""
		if c.DisbursementDate != nil {
			disb = c.DisbursementDate.Format(isoDate)
		}
		apps := make([]string, 0, len(c.CoApplicants))
		for _, a := range c.CoApplicants {
			apps = append(apps, a.Name)
		}
		err := writeRow(w,
			strconv.FormatInt(c.ID, 10),
			string(c.Product),
			c.Date.Format(isoDate),
			string(c.Month),
			c.Branch,
			c.CustomerName,
			c.Mobile,
			string(c.Status),
			c.Amount.String(),
			c.InterestRate.String(),
			strconv.Itoa(c.TenureMonths),
			c.EMIAmount.String(),
			c.PayoutPercent.String(),
			c.PayoutAmount.String(),
			c.ReferralAmount.String(),
			disb,
			c.Sourcing,
			strings.Join(apps, "; "),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

var payoutHeader = []string{
	"ID", "Case Type", "Case ID", "Month", "Branch", "Customer Name",
	"Principal", "Payout %", "Gross", "GST", "TDS", "Net", "Referral", "Status",
}

// WritePayoutHeader writes the payout register header row.
func WritePayoutHeader(w io.Writer) error {
	return writeRow(w, payoutHeader...)
}

// WritePayoutRow writes one payout register row. The register worker
// appends these incrementally; Payouts uses the same shape for full
// exports.
func WritePayoutRow(w io.Writer, p core.Payout) error {
	caseID := ""
	if p.CaseID != 0 {
		caseID = strconv.FormatInt(p.CaseID, 10)
	}
	return writeRow(w,
		strconv.FormatInt(p.ID, 10),
		string(p.CaseType),
		caseID,
		string(p.Month),
		p.Branch,
		p.CustomerName,
		p.Principal.String(),
		p.PayoutPercent.String(),
		p.Gross.String(),
		p.GST.String(),
		p.TDS.String(),
		p.Net.String(),
		p.ReferralAmount.String(),
		string(p.Status),
	)
}

// Payouts writes the payout register.
func Payouts(w io.Writer, payouts []core.Payout) error {
	if err := WritePayoutHeader(w); err != nil {
		return err
	}
	for _, p := range payouts {
		if err := WritePayoutRow(w, p); err != nil {
			return err
		}
	}
	return nil
}

var expenseHeader = []string{
	"ID", "Date", "Month", "Category", "Description", "Amount", "Payment Mode",
}

// Expenses writes the expense register.
func Expenses(w io.Writer, expenses []core.Expense) error {
	if err := writeRow(w, expenseHeader...); err != nil {
		return err
	}
	for _, e := range expenses {
		err := writeRow(w,
			strconv.FormatInt(e.ID, 10),
			e.Date.Format(isoDate),
			string(e.Month),
			e.Category,
			e.Description,
			e.Amount.String(),
			e.PaymentMode,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
