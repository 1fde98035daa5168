// Package core provides the loan-case domain model and the payout
// derivation rules shared by storage, reporting and HTTP layers.
package core

import (
	"time"
)

// MonthKey is the canonical, sortable month representation "YYYY-MM".
// It is the only month form used internally; human-readable labels such as
// "January 2025" are derived at presentation time via Label. Because keys
// sort lexicographically in chronological order, "latest month" selection is
// a plain string max.
type MonthKey string

// MonthKeyOf returns the canonical key for the month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// ParseMonthKey validates a "YYYY-MM" string. Human labels and any other
// representation are rejected.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", ErrInvalidMonthKey
	}
	return MonthKey(s), nil
}

// Label renders the key as "January 2006" for display.
func (m MonthKey) Label() string {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return string(m)
	}
	return t.Format("January 2006")
}

// Time returns midnight UTC on the first day of the month.
func (m MonthKey) Time() time.Time {
	t, _ := time.Parse("2006-01", string(m))
	return t
}

// Before reports whether m is chronologically before other. Valid keys
// compare correctly as strings.
func (m MonthKey) Before(other MonthKey) bool {
	return string(m) < string(other)
}
