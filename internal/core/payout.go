package core

import (
	"github.com/shopspring/decimal"
)

// Statutory deduction rates applied to payout income. Both are
// jurisdiction-fixed, not configurable.
var (
	gstRate = decimal.NewFromFloat(0.18) // Goods & Services Tax
	tdsRate = decimal.NewFromFloat(0.05) // Tax Deducted at Source
	hundred = decimal.NewFromInt(100)
)

// PayoutBreakdown is the financial result of deriving a payout from a
// disbursed case. All amounts are rounded to 2 decimal places.
type PayoutBreakdown struct {
	Percent decimal.Decimal `json:"payout_percent"`
	Gross   decimal.Decimal `json:"gross"`
	GST     decimal.Decimal `json:"gst"`
	TDS     decimal.Decimal `json:"tds"`
	Net     decimal.Decimal `json:"net"`
}

// ComputePayout derives the commission breakdown for a disbursed case.
//
// Gross is principal×percent/100 when percent is positive, otherwise the
// case-supplied flat payout amount, otherwise zero. A missing or zero
// principal therefore yields a zero breakdown rather than an error, so case
// edits are never blocked by incomplete financial data. GST (18%) and TDS
// (5%) are deducted from gross to produce net.
func ComputePayout(principal, percent, flatAmount decimal.Decimal) PayoutBreakdown {
	var gross decimal.Decimal
	switch {
	case percent.IsPositive():
		gross = principal.Mul(percent).Div(hundred)
	case flatAmount.IsPositive():
		gross = flatAmount
	default:
		gross = decimal.Zero
	}
	gross = gross.Round(2)
	gst := gross.Mul(gstRate).Round(2)
	tds := gross.Mul(tdsRate).Round(2)
	return PayoutBreakdown{
		Percent: percent,
		Gross:   gross,
		GST:     gst,
		TDS:     tds,
		Net:     gross.Sub(gst).Sub(tds),
	}
}
