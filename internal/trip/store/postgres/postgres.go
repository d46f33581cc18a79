// Package postgres implements the trip stores on PostgreSQL via pgx.
//
// The booking unit runs in a transaction that takes a row-level lock on the
// trip (SELECT ... FOR UPDATE) before checking capacity, deriving the next
// sequence number, decrementing the spot counter, and inserting the
// registration. Concurrent bookings for the same trip serialise on that
// lock, so the capacity invariant and number uniqueness hold without
// read-then-write races. A unique index on (trip_id, registration_number)
// backstops numbering; a bounded retry re-runs the whole unit if the insert
// still loses a race.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rihla/internal/trip/models"
	"rihla/internal/trip/sequence"
	"rihla/internal/trip/store"
	id "rihla/pkg/domain"
	"rihla/pkg/platform/sentinel"
	"rihla/pkg/requestcontext"
)

// maxBookAttempts bounds the internal retry when the booking unit loses a
// numbering race despite the trip lock (possible only across schemas that
// relax the lock, but cheap to keep).
const maxBookAttempts = 3

// Store implements store.TripStore, store.RegistrationStore, and
// store.StatsStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a PostgreSQL-backed store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ store.TripStore         = (*Store)(nil)
	_ store.RegistrationStore = (*Store)(nil)
	_ store.StatsStore        = (*Store)(nil)
)

const tripColumns = `id, org_id, code, name, capacity, available_spots, waitlist_capacity,
	price, deposit_amount, currency, status, start_date, end_date, created_at, updated_at`

const registrationColumns = `id, org_id, trip_id, member_id, registration_number, room_type,
	total_amount, amount_paid, deposit_paid, balance_due, status, payment_status,
	visa_status, visa_number, visa_issue_date, visa_expiry_date, visa_notes,
	cancelled_at, cancellation_reason, refund_amount, refund_date, created_at, updated_at`

// ---------------------------------------------------------------------------
// TripStore
// ---------------------------------------------------------------------------

func (s *Store) Create(ctx context.Context, trip *models.Trip) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trips (`+tripColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		uuid.UUID(trip.ID), uuid.UUID(trip.OrgID), trip.Code, trip.Name,
		trip.Capacity, trip.AvailableSpots, trip.WaitlistCapacity,
		int64(trip.Price), int64(trip.DepositAmount), trip.Currency, string(trip.Status),
		trip.StartDate, trip.EndDate, trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE id = $1`, uuid.UUID(tripID))
	return scanTrip(row)
}

func (s *Store) ListByOrg(ctx context.Context, orgID id.OrgID, filter store.TripFilter) ([]*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE org_id = $1`
	args := []any{uuid.UUID(orgID)}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func (s *Store) Execute(ctx context.Context, tripID id.TripID, validate func(*models.Trip) error, apply func(*models.Trip)) (*models.Trip, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin trip update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	trip, err := lockTrip(ctx, tx, tripID)
	if err != nil {
		return nil, err
	}
	if err := validate(trip); err != nil {
		return nil, err
	}
	apply(trip)

	if err := updateTrip(ctx, tx, trip); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit trip update: %w", err)
	}
	return trip, nil
}

// ---------------------------------------------------------------------------
// RegistrationStore
// ---------------------------------------------------------------------------

func (s *Store) Book(ctx context.Context, tripID id.TripID, build store.BuildRegistration) (*models.Registration, error) {
	var lastErr error
	for attempt := 0; attempt < maxBookAttempts; attempt++ {
		reg, err := s.tryBook(ctx, tripID, build)
		if err == nil {
			return reg, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("booking lost %d numbering races: %w", maxBookAttempts, errors.Join(sentinel.ErrConflict, lastErr))
}

func (s *Store) tryBook(ctx context.Context, tripID id.TripID, build store.BuildRegistration) (*models.Registration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	trip, err := lockTrip(ctx, tx, tripID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	pattern := sequence.Pattern(trip.SequencePrefix(), now)

	// Numeric max of the trailing counter within the prefix+year scope;
	// lexicographic order breaks past the fixed width, numeric order does not.
	var maxSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(substring(registration_number from '([0-9]+)$')::int), 0)
		 FROM registrations
		 WHERE trip_id = $1 AND registration_number LIKE $2`,
		uuid.UUID(tripID), pattern+"%",
	).Scan(&maxSeq)
	if err != nil {
		return nil, fmt.Errorf("scan sequence max: %w", err)
	}

	reg, err := build(trip, maxSeq+1)
	if err != nil {
		return nil, err
	}

	if err := updateTrip(ctx, tx, trip); err != nil {
		return nil, err
	}
	if err := insertRegistration(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	return reg, nil
}

func (s *Store) FindRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, uuid.UUID(regID))
	return scanRegistration(row)
}

func (s *Store) ListByTrip(ctx context.Context, tripID id.TripID) ([]*models.Registration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE trip_id = $1 ORDER BY created_at ASC`, uuid.UUID(tripID))
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *Store) ExecuteRegistration(ctx context.Context, regID id.RegistrationID, validate func(*models.Registration) error, apply func(*models.Registration)) (*models.Registration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin registration update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reg, err := lockRegistration(ctx, tx, regID)
	if err != nil {
		return nil, err
	}
	if err := validate(reg); err != nil {
		return nil, err
	}
	apply(reg)

	if err := updateRegistration(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit registration update: %w", err)
	}
	return reg, nil
}

func (s *Store) Cancel(ctx context.Context, regID id.RegistrationID, validate func(*models.Registration) error, apply func(*models.Registration)) (*models.Registration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancellation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reg, err := lockRegistration(ctx, tx, regID)
	if err != nil {
		return nil, err
	}
	if err := validate(reg); err != nil {
		return nil, err
	}
	apply(reg)

	trip, err := lockTrip(ctx, tx, reg.TripID)
	if err != nil {
		return nil, err
	}
	trip.ApplyReleaseSpot(requestcontext.Now(ctx))

	if err := updateRegistration(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err := updateTrip(ctx, tx, trip); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}
	return reg, nil
}

// ---------------------------------------------------------------------------
// StatsStore
// ---------------------------------------------------------------------------

func (s *Store) TripCounts(ctx context.Context, orgID id.OrgID, now time.Time) (models.TripCounts, error) {
	var counts models.TripCounts
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status IN ('open', 'closed', 'full')),
			COUNT(*) FILTER (WHERE start_date > $2 AND status <> 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'completed')
		 FROM trips WHERE org_id = $1`,
		uuid.UUID(orgID), now,
	).Scan(&counts.ActiveTrips, &counts.UpcomingTrips, &counts.CompletedTrips)
	if err != nil {
		return models.TripCounts{}, fmt.Errorf("trip counts: %w", err)
	}
	return counts, nil
}

func (s *Store) RegistrationTotals(ctx context.Context, orgID id.OrgID) (models.RegistrationTotals, error) {
	var totals models.RegistrationTotals
	var total, collected, pending int64
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(amount_paid), 0),
			COALESCE(SUM(balance_due), 0)
		 FROM registrations WHERE org_id = $1`,
		uuid.UUID(orgID),
	).Scan(&totals.ConfirmedRegistrations, &total, &collected, &pending)
	if err != nil {
		return models.RegistrationTotals{}, fmt.Errorf("registration totals: %w", err)
	}
	totals.TotalRevenue = id.Money(total)
	totals.CollectedRevenue = id.Money(collected)
	totals.PendingRevenue = id.Money(pending)
	return totals, nil
}

// ---------------------------------------------------------------------------
// row helpers
// ---------------------------------------------------------------------------

func lockTrip(ctx context.Context, tx pgx.Tx, tripID id.TripID) (*models.Trip, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, uuid.UUID(tripID))
	return scanTrip(row)
}

func lockRegistration(ctx context.Context, tx pgx.Tx, regID id.RegistrationID) (*models.Registration, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, uuid.UUID(regID))
	return scanRegistration(row)
}

func updateTrip(ctx context.Context, tx pgx.Tx, trip *models.Trip) error {
	_, err := tx.Exec(ctx,
		`UPDATE trips SET
			available_spots = $2, status = $3, capacity = $4, updated_at = $5
		 WHERE id = $1`,
		uuid.UUID(trip.ID), trip.AvailableSpots, string(trip.Status), trip.Capacity, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	return nil
}

func insertRegistration(ctx context.Context, tx pgx.Tx, reg *models.Registration) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		uuid.UUID(reg.ID), uuid.UUID(reg.OrgID), uuid.UUID(reg.TripID), uuid.UUID(reg.MemberID),
		reg.RegistrationNumber, reg.RoomType,
		int64(reg.TotalAmount), int64(reg.AmountPaid), int64(reg.DepositPaid), int64(reg.BalanceDue),
		string(reg.Status), string(reg.PaymentStatus),
		string(reg.Visa.Status), reg.Visa.Number, reg.Visa.IssueDate, reg.Visa.ExpiryDate, reg.Visa.Notes,
		reg.CancelledAt, reg.CancellationReason, moneyPtr(reg.RefundAmount), reg.RefundDate,
		reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func updateRegistration(ctx context.Context, tx pgx.Tx, reg *models.Registration) error {
	_, err := tx.Exec(ctx,
		`UPDATE registrations SET
			total_amount = $2, amount_paid = $3, deposit_paid = $4, balance_due = $5,
			status = $6, payment_status = $7,
			visa_status = $8, visa_number = $9, visa_issue_date = $10, visa_expiry_date = $11, visa_notes = $12,
			cancelled_at = $13, cancellation_reason = $14, refund_amount = $15, refund_date = $16,
			updated_at = $17
		 WHERE id = $1`,
		uuid.UUID(reg.ID),
		int64(reg.TotalAmount), int64(reg.AmountPaid), int64(reg.DepositPaid), int64(reg.BalanceDue),
		string(reg.Status), string(reg.PaymentStatus),
		string(reg.Visa.Status), reg.Visa.Number, reg.Visa.IssueDate, reg.Visa.ExpiryDate, reg.Visa.Notes,
		reg.CancelledAt, reg.CancellationReason, moneyPtr(reg.RefundAmount), reg.RefundDate,
		reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTrip(row scannable) (*models.Trip, error) {
	var (
		trip          models.Trip
		tripID, orgID uuid.UUID
		price, dep    int64
		status        string
	)
	err := row.Scan(
		&tripID, &orgID, &trip.Code, &trip.Name,
		&trip.Capacity, &trip.AvailableSpots, &trip.WaitlistCapacity,
		&price, &dep, &trip.Currency, &status,
		&trip.StartDate, &trip.EndDate, &trip.CreatedAt, &trip.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan trip: %w", err)
	}
	trip.ID = id.TripID(tripID)
	trip.OrgID = id.OrgID(orgID)
	trip.Price = id.Money(price)
	trip.DepositAmount = id.Money(dep)
	trip.Status = models.TripStatus(status)
	return &trip, nil
}

func scanRegistration(row scannable) (*models.Registration, error) {
	var (
		reg                                models.Registration
		regID, orgID, tripID, memberID     uuid.UUID
		total, paid, deposit, balance      int64
		status, payStatus, visaStatus      string
		refund                             *int64
	)
	err := row.Scan(
		&regID, &orgID, &tripID, &memberID, &reg.RegistrationNumber, &reg.RoomType,
		&total, &paid, &deposit, &balance, &status, &payStatus,
		&visaStatus, &reg.Visa.Number, &reg.Visa.IssueDate, &reg.Visa.ExpiryDate, &reg.Visa.Notes,
		&reg.CancelledAt, &reg.CancellationReason, &refund, &reg.RefundDate,
		&reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	reg.ID = id.RegistrationID(regID)
	reg.OrgID = id.OrgID(orgID)
	reg.TripID = id.TripID(tripID)
	reg.MemberID = id.MemberID(memberID)
	reg.TotalAmount = id.Money(total)
	reg.AmountPaid = id.Money(paid)
	reg.DepositPaid = id.Money(deposit)
	reg.BalanceDue = id.Money(balance)
	reg.Status = models.RegistrationStatus(status)
	reg.PaymentStatus = models.PaymentStatus(payStatus)
	reg.Visa.Status = models.VisaStatus(visaStatus)
	if refund != nil {
		v := id.Money(*refund)
		reg.RefundAmount = &v
	}
	return &reg, nil
}

func moneyPtr(m *id.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
