// Package token mints and validates the signed bearer tokens that protect
// the tool-calling API. Tokens are self-describing: the resource-server
// middleware validates them without contacting the authorization components.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"choregate/internal/oauth/models"
	derrors "choregate/pkg/domain-errors"
)

// AccessTokenClaims are the claims carried inside an access token.
type AccessTokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens with the process-wide HMAC secret.
// The secret is injected once at startup and never leaves this package.
type Codec struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock sets the time source for minting and validation. Tests use this
// to exercise expiry without real-time waits.
func WithClock(clock func() time.Time) CodecOption {
	return func(c *Codec) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCodec constructs a Codec for the given secret, issuer, and audience.
func NewCodec(signingKey, issuer, audience string, opts ...CodecOption) *Codec {
	c := &Codec{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Mint builds and signs an access token for the subject, copying the scope
// verbatim from the authorization request. It returns the compact token and
// its TTL in seconds for the token endpoint response body.
func (c *Codec) Mint(subject, scope string) (string, int64, error) {
	now := c.clock()
	claims := AccessTokenClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			Audience:  []string{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(models.AccessTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", 0, derrors.Wrap(err, derrors.CodeInternal, "failed to sign access token")
	}
	return signed, int64(models.AccessTokenTTL / time.Second), nil
}

// Validate decodes and verifies a token. Structural decode failures,
// signature mismatches, expiry, and issuer/audience mismatches all fail with
// the same "invalid token" error so callers cannot be used as a validation
// oracle; the cause stays wrapped for server-side logging.
func (c *Codec) Validate(tokenString string) (*AccessTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenUnverifiable
			}
			return c.signingKey, nil
		},
		jwt.WithTimeFunc(c.clock),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, derrors.New(derrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok {
		return nil, derrors.New(derrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
