//go:build integration

package containers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with a ready
// pgx pool and the application schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("rihla_test"),
		tcpostgres.WithUsername("rihla"),
		tcpostgres.WithPassword("rihla"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		Pool:      pool,
	}
	if err := pc.applySchema(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Shared across suites; Ryuk terminates the container after the run.

	return pc
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}

func (p *PostgresContainer) applySchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	id                UUID PRIMARY KEY,
	org_id            UUID NOT NULL,
	code              TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL,
	capacity          INTEGER NOT NULL,
	available_spots   INTEGER NOT NULL,
	waitlist_capacity INTEGER NOT NULL,
	price             BIGINT NOT NULL,
	deposit_amount    BIGINT NOT NULL,
	currency          TEXT NOT NULL,
	status            TEXT NOT NULL,
	start_date        TIMESTAMPTZ NOT NULL,
	end_date          TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	CONSTRAINT trips_spots_within_capacity
		CHECK (available_spots >= 0 AND available_spots <= capacity)
);

CREATE INDEX IF NOT EXISTS idx_trips_org_status ON trips (org_id, status);

CREATE TABLE IF NOT EXISTS registrations (
	id                  UUID PRIMARY KEY,
	org_id              UUID NOT NULL,
	trip_id             UUID NOT NULL REFERENCES trips (id),
	member_id           UUID NOT NULL,
	registration_number TEXT NOT NULL,
	room_type           TEXT NOT NULL DEFAULT '',
	total_amount        BIGINT NOT NULL,
	amount_paid         BIGINT NOT NULL,
	deposit_paid        BIGINT NOT NULL,
	balance_due         BIGINT NOT NULL,
	status              TEXT NOT NULL,
	payment_status      TEXT NOT NULL,
	visa_status         TEXT NOT NULL,
	visa_number         TEXT NOT NULL DEFAULT '',
	visa_issue_date     TIMESTAMPTZ,
	visa_expiry_date    TIMESTAMPTZ,
	visa_notes          TEXT NOT NULL DEFAULT '',
	cancelled_at        TIMESTAMPTZ,
	cancellation_reason TEXT NOT NULL DEFAULT '',
	refund_amount       BIGINT,
	refund_date         TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	CONSTRAINT registrations_number_per_trip UNIQUE (trip_id, registration_number)
);

CREATE INDEX IF NOT EXISTS idx_registrations_trip ON registrations (trip_id);
CREATE INDEX IF NOT EXISTS idx_registrations_org ON registrations (org_id);

CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	org_id      UUID NOT NULL,
	actor_id    UUID,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   UUID NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_org ON audit_events (org_id, occurred_at);
`
