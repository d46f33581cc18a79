// Package postgres persists audit events via database/sql and lib/pq. The
// audit trail is append-only and read rarely, so it stays on the plain SQL
// interface rather than the pgx pool the hot path uses.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"rihla/internal/audit"
	id "rihla/pkg/domain"
)

type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ audit.Store = (*Store)(nil)

// Append inserts one event. Events carry no caller-supplied ID; the store
// assigns one.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var actorID *uuid.UUID
	if !event.ActorID.IsNil() {
		actor := uuid.UUID(event.ActorID)
		actorID = &actor
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, org_id, actor_id, action, entity_type, entity_id, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), uuid.UUID(event.OrgID), actorID,
		string(event.Action), event.EntityType, event.EntityID,
		event.Detail, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByOrg returns an organization's events, newest first.
func (s *Store) ListByOrg(ctx context.Context, orgID id.OrgID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, actor_id, action, entity_type, entity_id, detail, occurred_at
		 FROM audit_events
		 WHERE org_id = $1
		 ORDER BY occurred_at DESC`,
		uuid.UUID(orgID),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events across organizations.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, actor_id, action, entity_type, entity_id, detail, occurred_at
		 FROM audit_events
		 ORDER BY occurred_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			orgID   uuid.UUID
			actorID *uuid.UUID
			action  string
		)
		err := rows.Scan(&orgID, &actorID, &action, &event.EntityType, &event.EntityID, &event.Detail, &event.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.OrgID = id.OrgID(orgID)
		event.Action = audit.Action(action)
		if actorID != nil {
			event.ActorID = id.MemberID(*actorID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
