package domain

import (
	"fmt"

	dErrors "rihla/pkg/domain-errors"
)

// Money is an amount in the smallest currency unit (cents, fils, ...).
// Integer arithmetic keeps the balance-due invariant exact; floating point
// would make `balance == 0` checks unreliable.
type Money int64

// Sub returns m - other floored at zero, the balance-due semantics used
// throughout the payment lifecycle.
func (m Money) Sub(other Money) Money {
	if other >= m {
		return 0
	}
	return m - other
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// ValidateCurrency checks the 3-letter uppercase currency code convention.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("currency %q must be a 3-letter code", code))
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("currency %q must be uppercase letters", code))
		}
	}
	return nil
}
