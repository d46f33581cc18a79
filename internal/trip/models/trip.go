package models

import (
	"strings"
	"time"

	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
)

// TripStatus is the lifecycle state of a trip offering.
type TripStatus string

const (
	TripStatusDraft      TripStatus = "draft"
	TripStatusOpen       TripStatus = "open"
	TripStatusClosed     TripStatus = "closed"
	TripStatusFull       TripStatus = "full"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// AcceptsRegistrations reports whether bookings may be created in this state.
// Full trips also return false; callers get the capacity signal from the
// spot counter, not the status, so the two never disagree.
func (s TripStatus) AcceptsRegistrations() bool {
	return s == TripStatusOpen
}

// IsActive reports whether the trip counts toward the active rollup.
func (s TripStatus) IsActive() bool {
	return s == TripStatusOpen || s == TripStatusClosed || s == TripStatusFull
}

// DefaultWaitlistCapacity applies when a trip is created without one.
// Waitlist allocation itself is future work; the field is stored only.
const DefaultWaitlistCapacity = 10

// Trip is the aggregate root for one bookable group-travel offering.
//
// Invariants:
//   - 0 <= AvailableSpots <= Capacity at all times
//   - DepositAmount <= Price, both non-negative
//   - StartDate <= EndDate
//   - The trip owns the capacity counter: registrations request spot changes
//     through the store's atomic operations and never write AvailableSpots
//     directly
//
// The AvailableSpots invariant survives concurrent bookings only because
// every reserve/release runs inside the store's atomic unit (trip row lock
// or per-trip mutex). CanReserveSpot/ApplyReserveSpot are written to be
// called under that lock.
type Trip struct {
	ID    id.TripID `json:"id"`
	OrgID id.OrgID  `json:"org_id"`

	Code string `json:"code,omitempty"`
	Name string `json:"name"`

	Capacity         int `json:"capacity"`
	AvailableSpots   int `json:"available_spots"`
	WaitlistCapacity int `json:"waitlist_capacity"`

	Price         id.Money `json:"price"`
	DepositAmount id.Money `json:"deposit_amount"`
	Currency      string   `json:"currency"`

	Status TripStatus `json:"status"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTripParams carries the caller-supplied fields for NewTrip.
type NewTripParams struct {
	OrgID            id.OrgID
	Code             string
	Name             string
	Capacity         int
	WaitlistCapacity int
	Price            id.Money
	DepositAmount    id.Money
	Currency         string
	StartDate        time.Time
	EndDate          time.Time

	// Draft creates the trip without opening it for registration.
	Draft bool
}

// NewTrip validates the invariants and constructs a trip open for
// registration with every spot available.
func NewTrip(tripID id.TripID, p NewTripParams, now time.Time) (*Trip, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))

	if p.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trip name cannot be empty")
	}
	if p.OrgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trip requires an organization")
	}
	if p.Capacity < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trip capacity cannot be negative")
	}
	if p.Price.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trip price cannot be negative")
	}
	if p.DepositAmount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "deposit amount cannot be negative")
	}
	if p.DepositAmount > p.Price {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "deposit amount cannot exceed the trip price")
	}
	if err := id.ValidateCurrency(p.Currency); err != nil {
		return nil, err
	}
	if p.EndDate.Before(p.StartDate) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trip end date cannot precede its start date")
	}
	waitlist := p.WaitlistCapacity
	if waitlist == 0 {
		waitlist = DefaultWaitlistCapacity
	}
	if waitlist < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "waitlist capacity cannot be negative")
	}

	status := TripStatusOpen
	if p.Capacity == 0 {
		status = TripStatusFull
	}
	if p.Draft {
		status = TripStatusDraft
	}

	return &Trip{
		ID:               tripID,
		OrgID:            p.OrgID,
		Code:             p.Code,
		Name:             p.Name,
		Capacity:         p.Capacity,
		AvailableSpots:   p.Capacity,
		WaitlistCapacity: waitlist,
		Price:            p.Price,
		DepositAmount:    p.DepositAmount,
		Currency:         p.Currency,
		Status:           status,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// CanReserveSpot checks that a seat may be taken right now.
// Call under the store's trip lock, immediately before ApplyReserveSpot.
func (t *Trip) CanReserveSpot() error {
	if t.Status == TripStatusFull || t.AvailableSpots <= 0 {
		return dErrors.New(dErrors.CodeCapacityExhausted, "trip has no available spots")
	}
	if !t.Status.AcceptsRegistrations() {
		return dErrors.Newf(dErrors.CodeInvalidState, "trip is %s and not accepting registrations", t.Status)
	}
	return nil
}

// ApplyReserveSpot takes one seat. Reserving the last seat flips an open trip
// to full so the status never disagrees with the counter.
func (t *Trip) ApplyReserveSpot(now time.Time) {
	t.AvailableSpots--
	if t.AvailableSpots <= 0 && t.Status == TripStatusOpen {
		t.AvailableSpots = 0
		t.Status = TripStatusFull
	}
	t.UpdatedAt = now
}

// ApplyReleaseSpot returns one seat, clamped so the counter never exceeds
// capacity (releasing against an uncounted registration must not inflate
// availability). A full trip with a freed seat reopens.
func (t *Trip) ApplyReleaseSpot(now time.Time) {
	if t.AvailableSpots < t.Capacity {
		t.AvailableSpots++
	}
	if t.Status == TripStatusFull && t.AvailableSpots > 0 {
		t.Status = TripStatusOpen
	}
	t.UpdatedAt = now
}

// CanOpenForRegistration checks the trip may start accepting bookings.
// Only draft and closed trips can be (re)opened.
func (t *Trip) CanOpenForRegistration() error {
	switch t.Status {
	case TripStatusDraft, TripStatusClosed:
		return nil
	case TripStatusOpen, TripStatusFull:
		return dErrors.New(dErrors.CodeInvalidState, "trip is already open for registration")
	default:
		return dErrors.Newf(dErrors.CodeInvalidState, "trip is %s and cannot be opened", t.Status)
	}
}

// ApplyOpenForRegistration opens the trip, or marks it full immediately when
// no spots remain.
func (t *Trip) ApplyOpenForRegistration(now time.Time) {
	if t.AvailableSpots <= 0 {
		t.Status = TripStatusFull
	} else {
		t.Status = TripStatusOpen
	}
	t.UpdatedAt = now
}

// CanClose checks the trip may stop accepting bookings. Existing
// registrations are unaffected.
func (t *Trip) CanClose() error {
	switch t.Status {
	case TripStatusOpen, TripStatusFull:
		return nil
	default:
		return dErrors.Newf(dErrors.CodeInvalidState, "trip is %s and cannot be closed", t.Status)
	}
}

// ApplyClose stops registration.
func (t *Trip) ApplyClose(now time.Time) {
	t.Status = TripStatusClosed
	t.UpdatedAt = now
}

// SequencePrefix is the registration-number prefix for this trip: the trip
// code, or REG when the trip has none.
func (t *Trip) SequencePrefix() string {
	if t.Code == "" {
		return "REG"
	}
	return t.Code
}
