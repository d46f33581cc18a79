package models

import (
	"strings"
	"time"

	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
)

// RegistrationStatus is the booking lifecycle state.
type RegistrationStatus string

const (
	RegistrationStatusPending    RegistrationStatus = "pending"
	RegistrationStatusConfirmed  RegistrationStatus = "confirmed"
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

// VisaStatus tracks the travel-document sub-state. It is independent of the
// booking and payment machines.
type VisaStatus string

const (
	VisaStatusNotStarted VisaStatus = "not_started"
	VisaStatusInProgress VisaStatus = "in_progress"
	VisaStatusApproved   VisaStatus = "approved"
	VisaStatusRejected   VisaStatus = "rejected"
)

// VisaInfo bundles the visa fields updated together.
type VisaInfo struct {
	Status     VisaStatus `json:"status"`
	Number     string     `json:"number,omitempty"`
	IssueDate  *time.Time `json:"issue_date,omitempty"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func (s VisaStatus) valid() bool {
	switch s {
	case VisaStatusNotStarted, VisaStatusInProgress, VisaStatusApproved, VisaStatusRejected:
		return true
	}
	return false
}

// Registration is one member's booking against exactly one trip.
//
// Invariants:
//   - BalanceDue == max(0, TotalAmount - AmountPaid) after every mutation
//   - AmountPaid is monotonically non-decreasing
//   - Cancellation is terminal: the cancellation fields are set once and
//     never mutated afterward, and no further payments are accepted
//   - RegistrationNumber is unique within the trip (enforced by the store's
//     atomic booking unit plus a uniqueness constraint)
//
// A registration never mutates the trip's capacity counter itself; it only
// requests spot changes through the store.
type Registration struct {
	ID       id.RegistrationID `json:"id"`
	OrgID    id.OrgID          `json:"org_id"`
	TripID   id.TripID         `json:"trip_id"`
	MemberID id.MemberID       `json:"member_id"`

	RegistrationNumber string `json:"registration_number"`
	RoomType           string `json:"room_type,omitempty"`

	TotalAmount id.Money `json:"total_amount"`
	AmountPaid  id.Money `json:"amount_paid"`
	DepositPaid id.Money `json:"deposit_paid"`
	BalanceDue  id.Money `json:"balance_due"`

	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	Visa          VisaInfo           `json:"visa"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	RefundAmount       *id.Money  `json:"refund_amount,omitempty"`
	RefundDate         *time.Time `json:"refund_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRegistration constructs a pending booking. The registration number is
// assigned by the store inside the booking atomic unit, not here.
func NewRegistration(regID id.RegistrationID, trip *Trip, memberID id.MemberID, roomType string, totalOverride *id.Money, now time.Time) (*Registration, error) {
	if memberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registration requires a member")
	}
	total := trip.Price
	if totalOverride != nil {
		if totalOverride.IsNegative() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "total amount cannot be negative")
		}
		total = *totalOverride
	}
	return &Registration{
		ID:            regID,
		OrgID:         trip.OrgID,
		TripID:        trip.ID,
		MemberID:      memberID,
		RoomType:      strings.TrimSpace(roomType),
		TotalAmount:   total,
		AmountPaid:    0,
		DepositPaid:   0,
		BalanceDue:    total,
		Status:        RegistrationStatusPending,
		PaymentStatus: PaymentStatusPending,
		Visa:          VisaInfo{Status: VisaStatusNotStarted},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanRecordPayment checks that a payment may be applied in the current state.
func (r *Registration) CanRecordPayment(amount id.Money) error {
	if r.Status == RegistrationStatusCancelled {
		return dErrors.New(dErrors.CodeInvalidState, "registration is cancelled")
	}
	if amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "payment amount must be positive")
	}
	return nil
}

// ApplyPayment adds the amount, recomputes the balance and payment status,
// and promotes a pending booking to confirmed. Any payment confirms the
// booking, including a partial deposit. Trip capacity is untouched.
func (r *Registration) ApplyPayment(amount id.Money, depositAmount id.Money, now time.Time) {
	prior := r.PaymentStatus
	r.AmountPaid += amount
	r.BalanceDue = r.TotalAmount.Sub(r.AmountPaid)
	r.PaymentStatus = NextPaymentStatus(r.TotalAmount, r.AmountPaid, depositAmount, prior)
	if r.AmountPaid < depositAmount {
		r.DepositPaid = r.AmountPaid
	} else {
		r.DepositPaid = depositAmount
	}
	if r.Status == RegistrationStatusPending {
		r.Status = RegistrationStatusConfirmed
	}
	r.UpdatedAt = now
}

// CanUpdateVisa checks the visa fields before applying them.
func (r *Registration) CanUpdateVisa(v VisaInfo) error {
	if r.Status == RegistrationStatusCancelled {
		return dErrors.New(dErrors.CodeInvalidState, "registration is cancelled")
	}
	if !v.Status.valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown visa status %q", v.Status)
	}
	return nil
}

// ApplyVisaUpdate replaces the visa sub-state. No side effects on the booking
// or payment machines.
func (r *Registration) ApplyVisaUpdate(v VisaInfo, now time.Time) {
	r.Visa = v
	r.UpdatedAt = now
}

// CanCancel checks that the booking is not already in the terminal state.
// A second cancel is a caller error, not a no-op: operators need to know the
// seat was already released.
func (r *Registration) CanCancel() error {
	if r.Status == RegistrationStatusCancelled {
		return dErrors.New(dErrors.CodeInvalidState, "registration is already cancelled")
	}
	return nil
}

// ApplyCancellation moves the booking to its terminal state and records the
// refund, if any. The caller releases the trip spot in the same atomic unit.
func (r *Registration) ApplyCancellation(reason string, refund *id.Money, now time.Time) {
	r.Status = RegistrationStatusCancelled
	r.CancelledAt = &now
	r.CancellationReason = strings.TrimSpace(reason)
	if refund != nil {
		amount := *refund
		r.RefundAmount = &amount
		r.RefundDate = &now
	}
	r.UpdatedAt = now
}
