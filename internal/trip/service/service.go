// Package service orchestrates the trip module: trip lifecycle, the booking
// path, payments, visa updates, cancellation, and the statistics rollup.
// Stores own atomicity; the service owns validation order, error translation,
// audit, and metrics.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rihla/internal/audit"
	"rihla/internal/trip/metrics"
	"rihla/internal/trip/models"
	"rihla/internal/trip/sequence"
	"rihla/internal/trip/store"
	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
	"rihla/pkg/platform/sentinel"
	"rihla/pkg/requestcontext"
)

// AuditPublisher receives lifecycle events. Emission is fire-and-forget.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// StatsCache caches assembled statistics per organization. A nil cache
// disables caching.
type StatsCache interface {
	Get(ctx context.Context, orgID id.OrgID) (*models.Statistics, bool)
	Set(ctx context.Context, orgID id.OrgID, stats *models.Statistics)
	Invalidate(ctx context.Context, orgID id.OrgID)
}

// Service orchestrates trips and registrations.
type Service struct {
	trips         store.TripStore
	registrations store.RegistrationStore
	stats         store.StatsStore

	logger     *slog.Logger
	audit      AuditPublisher
	metrics    *metrics.Metrics
	statsCache StatsCache
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithStatsCache(cache StatsCache) Option {
	return func(s *Service) {
		s.statsCache = cache
	}
}

// New constructs a Service.
func New(trips store.TripStore, registrations store.RegistrationStore, stats store.StatsStore, opts ...Option) *Service {
	s := &Service{
		trips:         trips,
		registrations: registrations,
		stats:         stats,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTrip validates and persists a new trip.
func (s *Service) CreateTrip(ctx context.Context, params models.NewTripParams) (*models.Trip, error) {
	trip, err := models.NewTrip(id.NewTripID(), params, requestcontext.Now(ctx))
	if err != nil {
		// Convert invariant violations to validation errors for API response
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.trips.Create(ctx, trip); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "trip already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create trip")
	}

	s.emitAudit(ctx, audit.Event{
		OrgID:      trip.OrgID,
		ActorID:    requestcontext.MemberID(ctx),
		Action:     audit.ActionTripCreated,
		EntityType: "trip",
		EntityID:   uuid.UUID(trip.ID),
		Detail:     trip.Name,
	})
	s.invalidateStats(ctx, trip.OrgID)
	s.logger.InfoContext(ctx, "trip created",
		"trip_id", trip.ID,
		"capacity", trip.Capacity,
	)
	return trip, nil
}

// GetTrips lists the organization's trips, optionally filtered by status.
func (s *Service) GetTrips(ctx context.Context, orgID id.OrgID, filter store.TripFilter) ([]*models.Trip, error) {
	trips, err := s.trips.ListByOrg(ctx, orgID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trips")
	}
	return trips, nil
}

// GetTripByID fetches one trip.
func (s *Service) GetTripByID(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "trip not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trip")
	}
	return trip, nil
}

// OpenTrip makes a draft or closed trip bookable.
func (s *Service) OpenTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	now := requestcontext.Now(ctx)
	trip, err := s.trips.Execute(ctx, tripID,
		func(t *models.Trip) error { return t.CanOpenForRegistration() },
		func(t *models.Trip) { t.ApplyOpenForRegistration(now) },
	)
	if err != nil {
		return nil, s.translateTripErr(err, "failed to open trip")
	}
	return trip, nil
}

// CloseTrip stops further registration without touching existing bookings.
func (s *Service) CloseTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	now := requestcontext.Now(ctx)
	trip, err := s.trips.Execute(ctx, tripID,
		func(t *models.Trip) error { return t.CanClose() },
		func(t *models.Trip) { t.ApplyClose(now) },
	)
	if err != nil {
		return nil, s.translateTripErr(err, "failed to close trip")
	}
	return trip, nil
}

// CreateRegistrationParams carries the caller-supplied booking fields.
type CreateRegistrationParams struct {
	TripID        id.TripID
	MemberID      id.MemberID
	RoomType      string
	TotalOverride *id.Money
}

// CreateRegistration books one spot: capacity check, registration number
// derivation, spot decrement, and insert all happen inside the store's atomic
// unit. Rejections carry capacity_exhausted or invalid_state; a booking that
// repeatedly loses numbering races carries conflict.
func (s *Service) CreateRegistration(ctx context.Context, params CreateRegistrationParams) (*models.Registration, error) {
	start := time.Now()
	defer s.observeBooking(start)

	now := requestcontext.Now(ctx)
	reg, err := s.registrations.Book(ctx, params.TripID, func(trip *models.Trip, seq int) (*models.Registration, error) {
		if err := trip.CanReserveSpot(); err != nil {
			return nil, err
		}
		reg, err := models.NewRegistration(id.NewRegistrationID(), trip, params.MemberID, params.RoomType, params.TotalOverride, now)
		if err != nil {
			return nil, err
		}
		reg.RegistrationNumber = sequence.Format(trip.SequencePrefix(), now, seq)
		trip.ApplyReserveSpot(now)
		return reg, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "trip not found")
		case dErrors.HasCode(err, dErrors.CodeCapacityExhausted):
			s.incrementCapacityExhausted()
			return nil, err
		case dErrors.HasCode(err, dErrors.CodeInvalidState):
			return nil, err
		case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "booking conflicted, retry the request")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
		}
	}

	s.incrementRegistrationsCreated()
	s.emitAudit(ctx, audit.Event{
		OrgID:      reg.OrgID,
		ActorID:    requestcontext.MemberID(ctx),
		Action:     audit.ActionRegistrationCreated,
		EntityType: "registration",
		EntityID:   uuid.UUID(reg.ID),
		Detail:     reg.RegistrationNumber,
	})
	s.invalidateStats(ctx, reg.OrgID)
	s.logger.InfoContext(ctx, "registration created",
		"registration_id", reg.ID,
		"trip_id", reg.TripID,
		"registration_number", reg.RegistrationNumber,
	)
	return reg, nil
}

// GetRegistration fetches one registration.
func (s *Service) GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	reg, err := s.registrations.FindRegistration(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	return reg, nil
}

// ListRegistrations returns a trip's registrations, cancelled included.
func (s *Service) ListRegistrations(ctx context.Context, tripID id.TripID) ([]*models.Registration, error) {
	if _, err := s.GetTripByID(ctx, tripID); err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, nil
}

// RecordPayment applies a payment to a registration. The first payment of any
// size confirms a pending booking; a zero balance marks the registration paid.
func (s *Service) RecordPayment(ctx context.Context, regID id.RegistrationID, amount id.Money) (*models.Registration, error) {
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payment amount must be positive")
	}

	// The deposit threshold lives on the trip and is immutable, so reading it
	// outside the registration lock is safe.
	existing, err := s.GetRegistration(ctx, regID)
	if err != nil {
		return nil, err
	}
	trip, err := s.GetTripByID(ctx, existing.TripID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	reg, err := s.registrations.ExecuteRegistration(ctx, regID,
		func(r *models.Registration) error { return r.CanRecordPayment(amount) },
		func(r *models.Registration) { r.ApplyPayment(amount, trip.DepositAmount, now) },
	)
	if err != nil {
		return nil, s.translateRegistrationErr(err, "failed to record payment")
	}

	s.incrementPaymentsRecorded()
	s.emitAudit(ctx, audit.Event{
		OrgID:      reg.OrgID,
		ActorID:    requestcontext.MemberID(ctx),
		Action:     audit.ActionPaymentRecorded,
		EntityType: "registration",
		EntityID:   uuid.UUID(reg.ID),
		Detail:     string(reg.PaymentStatus),
	})
	s.invalidateStats(ctx, reg.OrgID)
	s.logger.InfoContext(ctx, "payment recorded",
		"registration_id", reg.ID,
		"payment_status", reg.PaymentStatus,
		"balance_due", reg.BalanceDue,
	)
	return reg, nil
}

// UpdateVisaStatus replaces the visa sub-state. Independent of the booking
// and payment machines.
func (s *Service) UpdateVisaStatus(ctx context.Context, regID id.RegistrationID, visa models.VisaInfo) (*models.Registration, error) {
	now := requestcontext.Now(ctx)
	reg, err := s.registrations.ExecuteRegistration(ctx, regID,
		func(r *models.Registration) error { return r.CanUpdateVisa(visa) },
		func(r *models.Registration) { r.ApplyVisaUpdate(visa, now) },
	)
	if err != nil {
		return nil, s.translateRegistrationErr(err, "failed to update visa status")
	}

	s.emitAudit(ctx, audit.Event{
		OrgID:      reg.OrgID,
		ActorID:    requestcontext.MemberID(ctx),
		Action:     audit.ActionVisaUpdated,
		EntityType: "registration",
		EntityID:   uuid.UUID(reg.ID),
		Detail:     string(reg.Visa.Status),
	})
	return reg, nil
}

// CancelRegistration moves the booking to its terminal state and releases the
// spot in the same atomic unit. Cancelling twice fails with invalid_state and
// never releases a second spot.
func (s *Service) CancelRegistration(ctx context.Context, regID id.RegistrationID, reason string, refund *id.Money) (*models.Registration, error) {
	if refund != nil && refund.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "refund amount cannot be negative")
	}

	now := requestcontext.Now(ctx)
	reg, err := s.registrations.Cancel(ctx, regID,
		func(r *models.Registration) error { return r.CanCancel() },
		func(r *models.Registration) { r.ApplyCancellation(reason, refund, now) },
	)
	if err != nil {
		return nil, s.translateRegistrationErr(err, "failed to cancel registration")
	}

	s.incrementCancellations()
	s.emitAudit(ctx, audit.Event{
		OrgID:      reg.OrgID,
		ActorID:    requestcontext.MemberID(ctx),
		Action:     audit.ActionRegistrationCancelled,
		EntityType: "registration",
		EntityID:   uuid.UUID(reg.ID),
		Detail:     reg.CancellationReason,
	})
	s.invalidateStats(ctx, reg.OrgID)
	s.logger.InfoContext(ctx, "registration cancelled",
		"registration_id", reg.ID,
		"trip_id", reg.TripID,
	)
	return reg, nil
}

func (s *Service) translateTripErr(err error, internalMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "trip not found")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

func (s *Service) translateRegistrationErr(err error, internalMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "registration not found")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, event)
}

func (s *Service) invalidateStats(ctx context.Context, orgID id.OrgID) {
	if s.statsCache == nil {
		return
	}
	s.statsCache.Invalidate(ctx, orgID)
}

func (s *Service) observeBooking(start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveBooking(start)
}

func (s *Service) incrementRegistrationsCreated() {
	if s.metrics != nil {
		s.metrics.IncrementRegistrationsCreated()
	}
}

func (s *Service) incrementCapacityExhausted() {
	if s.metrics != nil {
		s.metrics.IncrementCapacityExhausted()
	}
}

func (s *Service) incrementPaymentsRecorded() {
	if s.metrics != nil {
		s.metrics.IncrementPaymentsRecorded()
	}
}

func (s *Service) incrementCancellations() {
	if s.metrics != nil {
		s.metrics.IncrementCancellations()
	}
}
