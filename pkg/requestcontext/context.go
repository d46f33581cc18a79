// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// This package defines context keys and getter/setter functions for values
// that are typically set by middleware but consumed by services. By keeping
// this package free of net/http dependencies, services can import only what
// they need without pulling in HTTP-related code.
//
// Usage in services (read values):
//
//	orgID := requestcontext.OrgID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithOrgID(ctx, orgID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "rihla/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	orgIDKey       struct{}
	memberIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOrgID       = orgIDKey{}
	ContextKeyMemberID    = memberIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// OrgID retrieves the authenticated organization ID from the context.
// Returns the zero value (nil UUID) if not set.
func OrgID(ctx context.Context) id.OrgID {
	if orgID, ok := ctx.Value(ContextKeyOrgID).(id.OrgID); ok {
		return orgID
	}
	return id.OrgID{}
}

// WithOrgID injects an organization ID into the context.
func WithOrgID(ctx context.Context, orgID id.OrgID) context.Context {
	return context.WithValue(ctx, ContextKeyOrgID, orgID)
}

// MemberID retrieves the acting member ID from the context.
// Returns the zero value (nil UUID) if not set.
func MemberID(ctx context.Context) id.MemberID {
	if memberID, ok := ctx.Value(ContextKeyMemberID).(id.MemberID); ok {
		return memberID
	}
	return id.MemberID{}
}

// WithMemberID injects a member ID into the context.
func WithMemberID(ctx context.Context, memberID id.MemberID) context.Context {
	return context.WithValue(ctx, ContextKeyMemberID, memberID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers,
// CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
