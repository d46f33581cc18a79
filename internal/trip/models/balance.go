package models

import id "rihla/pkg/domain"

// PaymentStatus is the derived payment-progress label on a registration.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusDepositPaid PaymentStatus = "deposit_paid"
	PaymentStatusPartial     PaymentStatus = "partial"
	PaymentStatusPaid        PaymentStatus = "paid"
)

// NextPaymentStatus derives the payment status from the amounts and the
// prior status. It is a pure function so the transition table is testable in
// isolation from persistence.
//
//   - balance == 0            -> paid (overpayment clamps, never rejects)
//   - first crossing of the deposit threshold while still pending
//     -> deposit_paid (fires once; later recomputations yield partial)
//   - otherwise               -> partial
//
// A zero deposit threshold means any positive payment reaches deposit_paid
// unless it settles the balance outright.
func NextPaymentStatus(total, paid, deposit id.Money, prior PaymentStatus) PaymentStatus {
	if total.Sub(paid) == 0 {
		return PaymentStatusPaid
	}
	if paid > 0 && paid >= deposit && prior == PaymentStatusPending {
		return PaymentStatusDepositPaid
	}
	return PaymentStatusPartial
}

// BalanceDue is the remaining amount owed, floored at zero.
func BalanceDue(total, paid id.Money) id.Money {
	return total.Sub(paid)
}
