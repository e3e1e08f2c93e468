package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"choregate/internal/audit"
	"choregate/internal/platform/metrics"
)

// TokenValidator validates a bearer access token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims is the caller identity the middleware hands to downstream
// handlers after a successful validation.
type TokenClaims struct {
	Subject string
	Scope   string
}

type contextKeySubject struct{}
type contextKeyScope struct{}

var (
	ContextKeySubject = contextKeySubject{}
	ContextKeyScope   = contextKeyScope{}
)

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	sub, ok := ctx.Value(ContextKeySubject).(string)
	if !ok {
		return ""
	}
	return sub
}

// GetScope retrieves the token scope from the context.
func GetScope(ctx context.Context) string {
	scope, ok := ctx.Value(ContextKeyScope).(string)
	if !ok {
		return ""
	}
	return scope
}

// Challenge carries the values advertised in WWW-Authenticate on 401s so
// compliant clients can self-discover the authorization server.
type Challenge struct {
	ResourceMetadataURL string
	Scope               string
}

func (c Challenge) header() string {
	return fmt.Sprintf("Bearer resource_metadata=%q, scope=%q", c.ResourceMetadataURL, c.Scope)
}

// RequireAuth guards every protected route. Missing, malformed, or invalid
// bearer tokens are rejected with 401 and the discovery challenge header; the
// validation failure reason is logged but never returned to the caller.
func RequireAuth(validator TokenValidator, challenge Challenge, m *metrics.Metrics, auditor audit.Publisher, logger *slog.Logger) func(http.Handler) http.Handler {
	reject := func(ctx context.Context, w http.ResponseWriter, reason string) {
		logger.WarnContext(ctx, "unauthorized",
			"reason", reason,
			"request_id", GetRequestID(ctx),
		)
		m.RecordRejection(reason)
		auditor.Publish(audit.Event{
			Action:    audit.ActionTokenRejected,
			Reason:    reason,
			RequestID: GetRequestID(ctx),
		})
		writeUnauthorized(w, challenge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject(ctx, w, "missing_header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				reject(ctx, w, "malformed_header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "token validation failed",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				reject(ctx, w, "invalid_token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyScope, claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized keeps 401 bodies uniform: callers learn nothing about why
// validation failed beyond the challenge itself.
func writeUnauthorized(w http.ResponseWriter, challenge Challenge) {
	w.Header().Set("WWW-Authenticate", challenge.header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
}
