package testutil

import (
	"context"
	"net/http"

	"choregate/internal/platform/middleware"
)

// WithSubject adds an authenticated subject and scope to the request
// context, simulating what the token middleware does for valid requests.
func WithSubject(req *http.Request, subject, scope string) *http.Request {
	ctx := req.Context()
	if subject != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeySubject, subject)
	}
	if scope != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyScope, scope)
	}
	return req.WithContext(ctx)
}

// WithRequestID adds a request id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyRequestID, requestID)
	return req.WithContext(ctx)
}
