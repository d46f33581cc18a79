package audit

import (
	"context"

	id "rihla/pkg/domain"
)

// Store persists audit events. Append-only; events are never updated or
// deleted by the application.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
