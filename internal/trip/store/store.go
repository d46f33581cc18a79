// Package store defines the persistence interfaces for the trip module.
// Stores are interface-driven so the service stays testable and the
// in-memory and PostgreSQL implementations are interchangeable.
//
// Error contract: stores return sentinel errors (pkg/platform/sentinel) for
// infrastructure facts (ErrNotFound, ErrConflict) and propagate callback
// errors unchanged. Coded domain errors never originate in a store.
//
// Concurrency contract: Book, Execute, and Cancel run their callbacks while
// holding the relevant lock (row-level FOR UPDATE in PostgreSQL, a store
// mutex in memory), so validate-then-mutate sequences are atomic. Capacity
// reservation, sequence derivation, and the registration insert share one
// atomic unit; so do the terminal-state check and the spot release on
// cancellation.
package store

import (
	"context"
	"time"

	"rihla/internal/trip/models"
	id "rihla/pkg/domain"
)

// TripFilter narrows ListByOrg. Zero value matches everything.
type TripFilter struct {
	Status models.TripStatus
}

// TripStore persists trips.
type TripStore interface {
	Create(ctx context.Context, trip *models.Trip) error
	FindByID(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	ListByOrg(ctx context.Context, orgID id.OrgID, filter TripFilter) ([]*models.Trip, error)

	// Execute runs validate then apply on the trip while holding its lock,
	// persisting the result. Returns the updated trip. Validate errors abort
	// without writing and propagate unchanged.
	Execute(ctx context.Context, tripID id.TripID, validate func(*models.Trip) error, apply func(*models.Trip)) (*models.Trip, error)
}

// BuildRegistration constructs the registration to insert inside the booking
// atomic unit. It receives the locked trip and the next sequence counter for
// the trip's prefix and the request year. The callback is expected to check
// capacity (trip.CanReserveSpot), reserve the spot (trip.ApplyReserveSpot),
// and return the fully-populated registration; returning an error aborts the
// unit with nothing written.
type BuildRegistration func(trip *models.Trip, seq int) (*models.Registration, error)

// RegistrationStore persists registrations and owns the two multi-row atomic
// units of the module: booking and cancellation.
type RegistrationStore interface {
	// Book atomically reserves a spot, derives the registration number, and
	// inserts the registration. Returns sentinel.ErrNotFound for a missing
	// trip and sentinel.ErrConflict when the unit repeatedly loses races
	// (bounded internal retry).
	Book(ctx context.Context, tripID id.TripID, build BuildRegistration) (*models.Registration, error)

	FindRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ListByTrip(ctx context.Context, tripID id.TripID) ([]*models.Registration, error)

	// ExecuteRegistration runs validate then apply on the registration while
	// holding its lock. Used for payment recording and visa updates; trip
	// capacity is untouched.
	ExecuteRegistration(ctx context.Context, regID id.RegistrationID, validate func(*models.Registration) error, apply func(*models.Registration)) (*models.Registration, error)

	// Cancel runs validate then apply like Execute, and additionally releases
	// one spot on the owning trip in the same atomic unit. The release is
	// clamped at the trip capacity and happens exactly once because validate
	// rejects already-cancelled registrations.
	Cancel(ctx context.Context, regID id.RegistrationID, validate func(*models.Registration) error, apply func(*models.Registration)) (*models.Registration, error)
}

// StatsStore serves the read-only organization rollups. Implementations must
// tolerate empty result sets (zero-value aggregates) and take no locks.
type StatsStore interface {
	TripCounts(ctx context.Context, orgID id.OrgID, now time.Time) (models.TripCounts, error)
	RegistrationTotals(ctx context.Context, orgID id.OrgID) (models.RegistrationTotals, error)
}
