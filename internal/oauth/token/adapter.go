package token

import (
	"choregate/internal/platform/middleware"
)

// MiddlewareAdapter exposes the Codec through the resource-server
// middleware's validator interface.
type MiddlewareAdapter struct {
	codec *Codec
}

// NewMiddlewareAdapter wraps a Codec for use by middleware.RequireAuth.
func NewMiddlewareAdapter(codec *Codec) *MiddlewareAdapter {
	return &MiddlewareAdapter{codec: codec}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.codec.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{
		Subject: claims.Subject,
		Scope:   claims.Scope,
	}, nil
}
