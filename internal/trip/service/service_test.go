package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rihla/internal/trip/models"
	"rihla/internal/trip/service"
	"rihla/internal/trip/store"
	"rihla/internal/trip/store/memory"
	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
	"rihla/pkg/requestcontext"
)

type fixture struct {
	svc   *service.Service
	store *memory.Store
	orgID id.OrgID
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	return &fixture{
		svc:   service.New(st, st, st),
		store: st,
		orgID: id.NewOrgID(),
		ctx:   requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)),
	}
}

func (f *fixture) createTrip(t *testing.T, capacity int) *models.Trip {
	t.Helper()
	trip, err := f.svc.CreateTrip(f.ctx, models.NewTripParams{
		OrgID:         f.orgID,
		Code:          "UR2026",
		Name:          "Umrah Group",
		Capacity:      capacity,
		Price:         100_000,
		DepositAmount: 20_000,
		Currency:      "USD",
		StartDate:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return trip
}

func (f *fixture) book(t *testing.T, tripID id.TripID) *models.Registration {
	t.Helper()
	reg, err := f.svc.CreateRegistration(f.ctx, service.CreateRegistrationParams{
		TripID:   tripID,
		MemberID: id.NewMemberID(),
	})
	require.NoError(t, err)
	return reg
}

func TestCreateTripRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*models.NewTripParams)
	}{
		{"empty name", func(p *models.NewTripParams) { p.Name = " " }},
		{"negative capacity", func(p *models.NewTripParams) { p.Capacity = -1 }},
		{"negative price", func(p *models.NewTripParams) { p.Price = -1 }},
		{"deposit above price", func(p *models.NewTripParams) { p.DepositAmount = p.Price + 1 }},
		{"bad currency", func(p *models.NewTripParams) { p.Currency = "usd" }},
		{"end before start", func(p *models.NewTripParams) { p.EndDate = p.StartDate.AddDate(0, 0, -1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := models.NewTripParams{
				OrgID:         f.orgID,
				Name:          "Valid Trip",
				Capacity:      10,
				Price:         50_000,
				DepositAmount: 10_000,
				Currency:      "USD",
				StartDate:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
				EndDate:       time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC),
			}
			tc.mutate(&params)
			_, err := f.svc.CreateTrip(f.ctx, params)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestBookingFillsTripThenRejects(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 2)

	f.book(t, trip.ID)
	f.book(t, trip.ID)

	stored, err := f.svc.GetTripByID(f.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableSpots)
	assert.Equal(t, models.TripStatusFull, stored.Status)

	_, err = f.svc.CreateRegistration(f.ctx, service.CreateRegistrationParams{
		TripID:   trip.ID,
		MemberID: id.NewMemberID(),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacityExhausted))
}

func TestBookingAssignsFormattedNumbers(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)

	first := f.book(t, trip.ID)
	second := f.book(t, trip.ID)

	assert.Equal(t, "UR2026-26-0001", first.RegistrationNumber)
	assert.Equal(t, "UR2026-26-0002", second.RegistrationNumber)
	assert.Equal(t, models.RegistrationStatusPending, first.Status)
	assert.Equal(t, models.PaymentStatusPending, first.PaymentStatus)
	assert.Equal(t, id.Money(100_000), first.BalanceDue)
}

func TestBookingRejectedOnClosedTrip(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)

	_, err := f.svc.CloseTrip(f.ctx, trip.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateRegistration(f.ctx, service.CreateRegistrationParams{
		TripID:   trip.ID,
		MemberID: id.NewMemberID(),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	// Reopening restores booking.
	_, err = f.svc.OpenTrip(f.ctx, trip.ID)
	require.NoError(t, err)
	f.book(t, trip.ID)
}

func TestOpenTripOnOpenTripFails(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)

	_, err := f.svc.OpenTrip(f.ctx, trip.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestDepositPaymentConfirmsBooking(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)
	reg := f.book(t, trip.ID)

	// Exactly the deposit: deposit_paid fires and the booking confirms.
	updated, err := f.svc.RecordPayment(f.ctx, reg.ID, 20_000)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusConfirmed, updated.Status)
	assert.Equal(t, models.PaymentStatusDepositPaid, updated.PaymentStatus)
	assert.Equal(t, id.Money(20_000), updated.DepositPaid)
	assert.Equal(t, id.Money(80_000), updated.BalanceDue)

	// Further partial payment: partial, deposit_paid never fires twice.
	updated, err = f.svc.RecordPayment(f.ctx, reg.ID, 30_000)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, updated.PaymentStatus)
	assert.Equal(t, id.Money(50_000), updated.AmountPaid)
	assert.Equal(t, id.Money(50_000), updated.BalanceDue)

	// Settling the balance: paid.
	updated, err = f.svc.RecordPayment(f.ctx, reg.ID, 50_000)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, id.Money(100_000), updated.AmountPaid)
	assert.Equal(t, id.Money(0), updated.BalanceDue)
}

func TestSmallFirstPaymentConfirmsAsPartial(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)
	reg := f.book(t, trip.ID)

	updated, err := f.svc.RecordPayment(f.ctx, reg.ID, 5_000)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusConfirmed, updated.Status, "any payment confirms the booking")
	assert.Equal(t, models.PaymentStatusPartial, updated.PaymentStatus)
	assert.Equal(t, id.Money(5_000), updated.DepositPaid)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)
	reg := f.book(t, trip.ID)

	_, err := f.svc.RecordPayment(f.ctx, reg.ID, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.svc.RecordPayment(f.ctx, reg.ID, -100)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.svc.RecordPayment(f.ctx, id.NewRegistrationID(), 100)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCancellationReleasesSpotAndIsTerminal(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 1)
	reg := f.book(t, trip.ID)

	refund := id.Money(10_000)
	cancelled, err := f.svc.CancelRegistration(f.ctx, reg.ID, "plans changed", &refund)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.RefundAmount)
	assert.Equal(t, refund, *cancelled.RefundAmount)
	require.NotNil(t, cancelled.CancelledAt)

	stored, err := f.svc.GetTripByID(f.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AvailableSpots)
	assert.Equal(t, models.TripStatusOpen, stored.Status)

	// Terminal: no second cancel, no payments, no visa updates.
	_, err = f.svc.CancelRegistration(f.ctx, reg.ID, "again", nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = f.svc.RecordPayment(f.ctx, reg.ID, 1_000)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = f.svc.UpdateVisaStatus(f.ctx, reg.ID, models.VisaInfo{Status: models.VisaStatusInProgress})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	stored, err = f.svc.GetTripByID(f.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AvailableSpots, "failed operations must not release another spot")
}

func TestVisaUpdateLeavesBookingUntouched(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)
	reg := f.book(t, trip.ID)

	issue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	expiry := issue.AddDate(0, 6, 0)
	updated, err := f.svc.UpdateVisaStatus(f.ctx, reg.ID, models.VisaInfo{
		Status:     models.VisaStatusApproved,
		Number:     "V123456",
		IssueDate:  &issue,
		ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, models.VisaStatusApproved, updated.Visa.Status)
	assert.Equal(t, models.RegistrationStatusPending, updated.Status)
	assert.Equal(t, models.PaymentStatusPending, updated.PaymentStatus)

	_, err = f.svc.UpdateVisaStatus(f.ctx, reg.ID, models.VisaInfo{Status: "granted"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGetTripsFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	open := f.createTrip(t, 5)
	closed := f.createTrip(t, 5)
	_, err := f.svc.CloseTrip(f.ctx, closed.ID)
	require.NoError(t, err)

	trips, err := f.svc.GetTrips(f.ctx, f.orgID, store.TripFilter{Status: models.TripStatusOpen})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, open.ID, trips[0].ID)

	trips, err = f.svc.GetTrips(f.ctx, f.orgID, store.TripFilter{})
	require.NoError(t, err)
	assert.Len(t, trips, 2)
}

func TestListRegistrations(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)
	f.book(t, trip.ID)
	f.book(t, trip.ID)

	regs, err := f.svc.ListRegistrations(f.ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, regs, 2)

	_, err = f.svc.ListRegistrations(f.ctx, id.NewTripID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestGetStatisticsRollsUp(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 5)
	reg := f.book(t, trip.ID)
	_, err := f.svc.RecordPayment(f.ctx, reg.ID, 40_000)
	require.NoError(t, err)
	f.book(t, trip.ID) // second booking stays pending

	stats, err := f.svc.GetStatistics(f.ctx, f.orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveTrips)
	assert.Equal(t, 1, stats.UpcomingTrips)
	assert.Equal(t, 1, stats.ConfirmedRegistrations)
	assert.Equal(t, id.Money(200_000), stats.TotalRevenue)
	assert.Equal(t, id.Money(40_000), stats.CollectedRevenue)
	assert.Equal(t, id.Money(160_000), stats.PendingRevenue)
}

func TestGetStatisticsEmptyOrg(t *testing.T) {
	f := newFixture(t)

	stats, err := f.svc.GetStatistics(f.ctx, id.NewOrgID())
	require.NoError(t, err)
	assert.Equal(t, &models.Statistics{}, stats)
}

// stubCache records cache traffic for assertions.
type stubCache struct {
	mu      sync.Mutex
	entries map[id.OrgID]*models.Statistics
	hits    int
	writes  int
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[id.OrgID]*models.Statistics)}
}

func (c *stubCache) Get(_ context.Context, orgID id.OrgID) (*models.Statistics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.entries[orgID]
	if ok {
		c.hits++
	}
	return stats, ok
}

func (c *stubCache) Set(_ context.Context, orgID id.OrgID, stats *models.Statistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[orgID] = stats
	c.writes++
}

func (c *stubCache) Invalidate(_ context.Context, orgID id.OrgID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, orgID)
}

func TestGetStatisticsUsesCache(t *testing.T) {
	st := memory.New()
	cache := newStubCache()
	svc := service.New(st, st, st, service.WithStatsCache(cache))
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	orgID := id.NewOrgID()

	_, err := svc.GetStatistics(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes)

	_, err = svc.GetStatistics(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.writes, "cache hit must not recompute")

	// A write invalidates; the next read recomputes.
	_, err = svc.CreateTrip(ctx, models.NewTripParams{
		OrgID:     orgID,
		Name:      "Invalidation Trip",
		Capacity:  3,
		Price:     10_000,
		Currency:  "USD",
		StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	stats, err := svc.GetStatistics(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveTrips)
	assert.Equal(t, 2, cache.writes)
}
