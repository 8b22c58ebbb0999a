package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is an amount in integer minor-currency units. All amounts inside
// the system are minor units; dollar strings exist only at the API
// boundary.
type Cents int64

var centsFactor = decimal.NewFromInt(100)

// ParseDollars converts a decimal dollar string ("50.00") into minor
// units. Rejects empty, malformed, negative, and sub-cent inputs.
func ParseDollars(s string) (Cents, error) {
	if s == "" {
		return 0, &ValidationError{Field: "amount", Reason: "amount is required"}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: fmt.Sprintf("invalid amount %q", s)}
	}

	if d.IsNegative() {
		return 0, &ValidationError{Field: "amount", Reason: "amount must not be negative"}
	}

	minor := d.Mul(centsFactor)
	if !minor.IsInteger() {
		return 0, &ValidationError{Field: "amount", Reason: "amount has sub-cent precision"}
	}

	return Cents(minor.IntPart()), nil
}

// Dollars renders the amount as a two-decimal dollar string.
func (c Cents) Dollars() string {
	return decimal.NewFromInt(int64(c)).Div(centsFactor).StringFixed(2)
}
