package session

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choregate/internal/oauth/models"
)

func pendingRequest() models.AuthorizationRequest {
	return models.AuthorizationRequest{
		ClientID:            "choregate-mcp",
		RedirectURI:         "http://localhost:3000/callback",
		Scope:               "mcp:tools:read",
		State:               "abc123",
		CodeChallenge:       "challenge-value",
		CodeChallengeMethod: "S256",
	}
}

func TestSaveAndLoadPending(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, SavePending(ctx, store, "sid-1", pendingRequest()))

	got, ok, err := LoadPending(ctx, store, "sid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pendingRequest(), got)
}

func TestLoadPendingEmptySession(t *testing.T) {
	store := NewInMemoryStore()

	_, ok, err := LoadPending(context.Background(), store, "never-seen")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearPendingKeepsSubject(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sid-1", KeyUserID, "user-1"))
	require.NoError(t, SavePending(ctx, store, "sid-1", pendingRequest()))
	require.NoError(t, ClearPending(ctx, store, "sid-1"))

	_, ok, err := LoadPending(ctx, store, "sid-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// The logged-in subject survives the clear.
	subject, err := store.Get(ctx, "sid-1", KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestResumeURLRoundTrips(t *testing.T) {
	resume := ResumeURL(pendingRequest())

	u, err := url.Parse(resume)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "choregate-mcp", q.Get("client_id"))
	assert.Equal(t, "http://localhost:3000/callback", q.Get("redirect_uri"))
	assert.Equal(t, "mcp:tools:read", q.Get("scope"))
	assert.Equal(t, "abc123", q.Get("state"))
	assert.Equal(t, "challenge-value", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}
