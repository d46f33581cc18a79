//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rihla/internal/trip/models"
	"rihla/internal/trip/sequence"
	"rihla/internal/trip/store/postgres"
	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
	"rihla/pkg/platform/sentinel"
	"rihla/pkg/requestcontext"
	"rihla/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "registrations", "trips")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTrip(capacity int) *models.Trip {
	now := time.Now().UTC()
	trip, err := models.NewTrip(id.NewTripID(), models.NewTripParams{
		OrgID:         id.NewOrgID(),
		Code:          "UR2026",
		Name:          "Umrah Group",
		Capacity:      capacity,
		Price:         100_000,
		DepositAmount: 20_000,
		Currency:      "USD",
		StartDate:     now.AddDate(0, 1, 0),
		EndDate:       now.AddDate(0, 1, 14),
	}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), trip))
	return trip
}

// bookOne is the same build callback shape the service uses.
func (s *PostgresStoreSuite) bookOne(ctx context.Context, tripID id.TripID) (*models.Registration, error) {
	now := requestcontext.Now(ctx)
	return s.store.Book(ctx, tripID, func(trip *models.Trip, seq int) (*models.Registration, error) {
		if err := trip.CanReserveSpot(); err != nil {
			return nil, err
		}
		reg, err := models.NewRegistration(id.NewRegistrationID(), trip, id.NewMemberID(), "", nil, now)
		if err != nil {
			return nil, err
		}
		reg.RegistrationNumber = sequence.Format(trip.SequencePrefix(), now, seq)
		trip.ApplyReserveSpot(now)
		return reg, nil
	})
}

func (s *PostgresStoreSuite) TestBookAssignsSequentialNumbers() {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	trip := s.newTrip(3)

	first, err := s.bookOne(ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal("UR2026-26-0001", first.RegistrationNumber)

	second, err := s.bookOne(ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal("UR2026-26-0002", second.RegistrationNumber)

	stored, err := s.store.FindByID(ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.AvailableSpots)
}

// TestConcurrentBookingNeverOverbooks verifies the row lock serialises rival
// bookings: exactly capacity succeed, the rest get capacity_exhausted, and
// the spot counter never goes negative.
func (s *PostgresStoreSuite) TestConcurrentBookingNeverOverbooks() {
	ctx := context.Background()
	const capacity = 5
	const goroutines = 50
	trip := s.newTrip(capacity)

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var exhaustedCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.bookOne(ctx, trip.ID)
			if err == nil {
				successCount.Add(1)
			} else if dErrors.HasCode(err, dErrors.CodeCapacityExhausted) {
				exhaustedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(capacity), successCount.Load(), "exactly capacity bookings should succeed")
	s.Equal(int32(goroutines-capacity), exhaustedCount.Load(), "all others should see capacity_exhausted")

	stored, err := s.store.FindByID(ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal(0, stored.AvailableSpots)
	s.Equal(models.TripStatusFull, stored.Status)

	regs, err := s.store.ListByTrip(ctx, trip.ID)
	s.Require().NoError(err)
	s.Len(regs, capacity)

	seen := make(map[string]bool, capacity)
	for _, reg := range regs {
		s.False(seen[reg.RegistrationNumber], "duplicate number %s", reg.RegistrationNumber)
		seen[reg.RegistrationNumber] = true
	}
}

func (s *PostgresStoreSuite) TestCancelReleasesSpotExactlyOnce() {
	ctx := context.Background()
	trip := s.newTrip(1)

	reg, err := s.bookOne(ctx, trip.ID)
	s.Require().NoError(err)

	now := time.Now().UTC()
	_, err = s.store.Cancel(ctx, reg.ID,
		func(r *models.Registration) error { return r.CanCancel() },
		func(r *models.Registration) { r.ApplyCancellation("plans changed", nil, now) },
	)
	s.Require().NoError(err)

	stored, err := s.store.FindByID(ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.AvailableSpots)
	s.Equal(models.TripStatusOpen, stored.Status)

	// Second cancel must fail the state check and not release again.
	_, err = s.store.Cancel(ctx, reg.ID,
		func(r *models.Registration) error { return r.CanCancel() },
		func(r *models.Registration) { r.ApplyCancellation("again", nil, now) },
	)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	stored, err = s.store.FindByID(ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.AvailableSpots)
}

func (s *PostgresStoreSuite) TestPaymentRoundTrip() {
	ctx := context.Background()
	trip := s.newTrip(2)

	reg, err := s.bookOne(ctx, trip.ID)
	s.Require().NoError(err)

	now := time.Now().UTC()
	updated, err := s.store.ExecuteRegistration(ctx, reg.ID,
		func(r *models.Registration) error { return r.CanRecordPayment(20_000) },
		func(r *models.Registration) { r.ApplyPayment(20_000, trip.DepositAmount, now) },
	)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusDepositPaid, updated.PaymentStatus)
	s.Equal(models.RegistrationStatusConfirmed, updated.Status)
	s.Equal(id.Money(80_000), updated.BalanceDue)

	found, err := s.store.FindRegistration(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(updated.AmountPaid, found.AmountPaid)
	s.Equal(updated.PaymentStatus, found.PaymentStatus)
}

func (s *PostgresStoreSuite) TestNotFoundError() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.NewTripID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindRegistration(ctx, id.NewRegistrationID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.bookOne(ctx, id.NewTripID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestStatsAggregates() {
	ctx := context.Background()
	now := time.Now().UTC()
	trip := s.newTrip(10)

	reg, err := s.bookOne(ctx, trip.ID)
	s.Require().NoError(err)
	_, err = s.store.ExecuteRegistration(ctx, reg.ID,
		func(r *models.Registration) error { return r.CanRecordPayment(40_000) },
		func(r *models.Registration) { r.ApplyPayment(40_000, trip.DepositAmount, now) },
	)
	s.Require().NoError(err)

	counts, err := s.store.TripCounts(ctx, trip.OrgID, now)
	s.Require().NoError(err)
	s.Equal(1, counts.ActiveTrips)
	s.Equal(1, counts.UpcomingTrips)
	s.Equal(0, counts.CompletedTrips)

	totals, err := s.store.RegistrationTotals(ctx, trip.OrgID)
	s.Require().NoError(err)
	s.Equal(1, totals.ConfirmedRegistrations)
	s.Equal(id.Money(100_000), totals.TotalRevenue)
	s.Equal(id.Money(40_000), totals.CollectedRevenue)
	s.Equal(id.Money(60_000), totals.PendingRevenue)
}
