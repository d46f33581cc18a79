// Package memory provides the in-memory trip store used by unit tests and
// development mode. A single store mutex serialises every atomic unit, which
// is coarse but correct; the PostgreSQL store carries the production
// concurrency model.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rihla/internal/trip/models"
	"rihla/internal/trip/sequence"
	"rihla/internal/trip/store"
	id "rihla/pkg/domain"
	"rihla/pkg/platform/sentinel"
	"rihla/pkg/requestcontext"
)

// Store implements store.TripStore, store.RegistrationStore, and
// store.StatsStore in memory.
type Store struct {
	mu            sync.RWMutex
	trips         map[id.TripID]*models.Trip
	registrations map[id.RegistrationID]*models.Registration
	byTrip        map[id.TripID][]id.RegistrationID
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		trips:         make(map[id.TripID]*models.Trip),
		registrations: make(map[id.RegistrationID]*models.Registration),
		byTrip:        make(map[id.TripID][]id.RegistrationID),
	}
}

var (
	_ store.TripStore         = (*Store)(nil)
	_ store.RegistrationStore = (*Store)(nil)
	_ store.StatsStore        = (*Store)(nil)
)

// ---------------------------------------------------------------------------
// TripStore
// ---------------------------------------------------------------------------

func (s *Store) Create(_ context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trips[trip.ID]; exists {
		return sentinel.ErrConflict
	}
	s.trips[trip.ID] = cloneTrip(trip)
	return nil
}

func (s *Store) FindByID(_ context.Context, tripID id.TripID) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTrip(trip), nil
}

func (s *Store) ListByOrg(_ context.Context, orgID id.OrgID, filter store.TripFilter) ([]*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trips := make([]*models.Trip, 0)
	for _, trip := range s.trips {
		if trip.OrgID != orgID {
			continue
		}
		if filter.Status != "" && trip.Status != filter.Status {
			continue
		}
		trips = append(trips, cloneTrip(trip))
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].CreatedAt.After(trips[j].CreatedAt) })
	return trips, nil
}

func (s *Store) Execute(_ context.Context, tripID id.TripID, validate func(*models.Trip) error, apply func(*models.Trip)) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := cloneTrip(trip)
	if err := validate(work); err != nil {
		return nil, err
	}
	apply(work)
	s.trips[tripID] = work
	return cloneTrip(work), nil
}

// ---------------------------------------------------------------------------
// RegistrationStore
// ---------------------------------------------------------------------------

func (s *Store) Book(ctx context.Context, tripID id.TripID, build store.BuildRegistration) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trip, ok := s.trips[tripID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	now := requestcontext.Now(ctx)

	issued := make([]string, 0, len(s.byTrip[tripID]))
	for _, regID := range s.byTrip[tripID] {
		issued = append(issued, s.registrations[regID].RegistrationNumber)
	}
	seq := sequence.NextFrom(issued, trip.SequencePrefix(), now)

	work := cloneTrip(trip)
	reg, err := build(work, seq)
	if err != nil {
		return nil, err
	}
	for _, number := range issued {
		if number == reg.RegistrationNumber {
			return nil, sentinel.ErrConflict
		}
	}

	s.trips[tripID] = work
	s.registrations[reg.ID] = cloneRegistration(reg)
	s.byTrip[tripID] = append(s.byTrip[tripID], reg.ID)
	return cloneRegistration(reg), nil
}

func (s *Store) FindRegistration(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registrations[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRegistration(reg), nil
}

func (s *Store) ListByTrip(_ context.Context, tripID id.TripID) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regs := make([]*models.Registration, 0, len(s.byTrip[tripID]))
	for _, regID := range s.byTrip[tripID] {
		regs = append(regs, cloneRegistration(s.registrations[regID]))
	}
	return regs, nil
}

func (s *Store) ExecuteRegistration(_ context.Context, regID id.RegistrationID, validate func(*models.Registration) error, apply func(*models.Registration)) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := cloneRegistration(reg)
	if err := validate(work); err != nil {
		return nil, err
	}
	apply(work)
	s.registrations[regID] = work
	return cloneRegistration(work), nil
}

func (s *Store) Cancel(ctx context.Context, regID id.RegistrationID, validate func(*models.Registration) error, apply func(*models.Registration)) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := cloneRegistration(reg)
	if err := validate(work); err != nil {
		return nil, err
	}
	apply(work)

	if trip, ok := s.trips[work.TripID]; ok {
		updated := cloneTrip(trip)
		updated.ApplyReleaseSpot(requestcontext.Now(ctx))
		s.trips[work.TripID] = updated
	}
	s.registrations[regID] = work
	return cloneRegistration(work), nil
}

// ---------------------------------------------------------------------------
// StatsStore
// ---------------------------------------------------------------------------

func (s *Store) TripCounts(_ context.Context, orgID id.OrgID, now time.Time) (models.TripCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts models.TripCounts
	for _, trip := range s.trips {
		if trip.OrgID != orgID {
			continue
		}
		if trip.Status.IsActive() {
			counts.ActiveTrips++
		}
		if trip.StartDate.After(now) && trip.Status != models.TripStatusCancelled {
			counts.UpcomingTrips++
		}
		if trip.Status == models.TripStatusCompleted {
			counts.CompletedTrips++
		}
	}
	return counts, nil
}

func (s *Store) RegistrationTotals(_ context.Context, orgID id.OrgID) (models.RegistrationTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var totals models.RegistrationTotals
	for _, reg := range s.registrations {
		if reg.OrgID != orgID {
			continue
		}
		if reg.Status == models.RegistrationStatusConfirmed {
			totals.ConfirmedRegistrations++
		}
		totals.TotalRevenue += reg.TotalAmount
		totals.CollectedRevenue += reg.AmountPaid
		totals.PendingRevenue += reg.BalanceDue
	}
	return totals, nil
}

// ---------------------------------------------------------------------------
// clones
// ---------------------------------------------------------------------------

// Clones keep callers and callbacks from aliasing stored state across the
// mutex boundary.

func cloneTrip(t *models.Trip) *models.Trip {
	c := *t
	return &c
}

func cloneRegistration(r *models.Registration) *models.Registration {
	c := *r
	if r.CancelledAt != nil {
		v := *r.CancelledAt
		c.CancelledAt = &v
	}
	if r.RefundAmount != nil {
		v := *r.RefundAmount
		c.RefundAmount = &v
	}
	if r.RefundDate != nil {
		v := *r.RefundDate
		c.RefundDate = &v
	}
	if r.Visa.IssueDate != nil {
		v := *r.Visa.IssueDate
		c.Visa.IssueDate = &v
	}
	if r.Visa.ExpiryDate != nil {
		v := *r.Visa.ExpiryDate
		c.Visa.ExpiryDate = &v
	}
	return &c
}
