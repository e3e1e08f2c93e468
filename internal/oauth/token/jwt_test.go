package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choregate/internal/oauth/models"
	derrors "choregate/pkg/domain-errors"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testIssuer   = "http://127.0.0.1:8080"
	testAudience = "choregate-mcp"
	testScope    = "mcp:tools:read mcp:tools:write"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestMintAndValidateRoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	codec := NewCodec(testSecret, testIssuer, testAudience, WithClock(fixedClock(now)))

	tokenString, expiresIn, err := codec.Mint("user-42", testScope)
	require.NoError(t, err)
	assert.Equal(t, int64(24*60*60), expiresIn)

	claims, err := codec.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, testScope, claims.Scope)
	assert.Equal(t, testIssuer, claims.Issuer)
	require.Len(t, claims.Audience, 1)
	assert.Equal(t, testAudience, claims.Audience[0])
	assert.Equal(t, now.Add(models.AccessTokenTTL).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	minted := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	codec := NewCodec(testSecret, testIssuer, testAudience, WithClock(fixedClock(minted)))

	tokenString, _, err := codec.Mint("user-42", testScope)
	require.NoError(t, err)

	// Still valid one minute before the deadline.
	beforeExpiry := NewCodec(testSecret, testIssuer, testAudience,
		WithClock(fixedClock(minted.Add(models.AccessTokenTTL-time.Minute))))
	_, err = beforeExpiry.Validate(tokenString)
	require.NoError(t, err)

	afterExpiry := NewCodec(testSecret, testIssuer, testAudience,
		WithClock(fixedClock(minted.Add(models.AccessTokenTTL+time.Minute))))
	_, err = afterExpiry.Validate(tokenString)
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "invalid token")
}

func TestValidateRejectsWrongKey(t *testing.T) {
	codec := NewCodec(testSecret, testIssuer, testAudience)
	tokenString, _, err := codec.Mint("user-42", testScope)
	require.NoError(t, err)

	other := NewCodec("another-secret-that-is-long-enough!", testIssuer, testAudience)
	_, err = other.Validate(tokenString)
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.CodeUnauthorized))
}

func TestValidateRejectsIssuerAndAudienceMismatch(t *testing.T) {
	codec := NewCodec(testSecret, testIssuer, testAudience)
	tokenString, _, err := codec.Mint("user-42", testScope)
	require.NoError(t, err)

	wrongIssuer := NewCodec(testSecret, "http://elsewhere.example", testAudience)
	_, err = wrongIssuer.Validate(tokenString)
	require.Error(t, err)

	wrongAudience := NewCodec(testSecret, testIssuer, "other-client")
	_, err = wrongAudience.Validate(tokenString)
	require.Error(t, err)
}

func TestValidateRejectsNonHMACAlgorithm(t *testing.T) {
	// An unsigned token claiming alg=none must not pass, even with
	// otherwise correct claims.
	claims := AccessTokenClaims{
		Scope: testScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    testIssuer,
			Audience:  []string{testAudience},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	codec := NewCodec(testSecret, testIssuer, testAudience)
	_, err = codec.Validate(unsigned)
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.CodeUnauthorized))
}

func TestValidateRejectsGarbage(t *testing.T) {
	codec := NewCodec(testSecret, testIssuer, testAudience)

	for _, tokenString := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := codec.Validate(tokenString)
		require.Error(t, err)
		// Same opaque message for every failure mode.
		assert.True(t, derrors.Is(err, derrors.CodeUnauthorized))
	}
}

func TestTamperedTokenFailsUniformly(t *testing.T) {
	codec := NewCodec(testSecret, testIssuer, testAudience)
	tokenString, _, err := codec.Mint("user-42", testScope)
	require.NoError(t, err)

	tampered := tokenString[:len(tokenString)-2] + "xx"
	_, validErr := codec.Validate(tampered)
	_, garbageErr := codec.Validate("garbage")
	require.Error(t, validErr)
	require.Error(t, garbageErr)

	var ve, ge *derrors.Error
	require.ErrorAs(t, validErr, &ve)
	require.ErrorAs(t, garbageErr, &ge)
	assert.Equal(t, ve.Message, ge.Message)
}
