package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
	"rihla/pkg/platform/httputil"
	"rihla/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims carries the identity claims the middleware needs. Token issuance
// lives outside this service; only validation happens here.
type JWTClaims struct {
	OrgID    string
	MemberID string
}

// RequireAuth validates the Authorization header and stores the caller's
// organization and member IDs in the request context. Requests without a
// valid token get a 401 envelope.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			orgID, err := id.ParseOrgID(claims.OrgID)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token carries no valid organization"))
				return
			}
			ctx = requestcontext.WithOrgID(ctx, orgID)

			if memberID, err := id.ParseMemberID(claims.MemberID); err == nil {
				ctx = requestcontext.WithMemberID(ctx, memberID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
