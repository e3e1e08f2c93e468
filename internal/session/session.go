// Package session models the browser session as a key-value store scoped to
// a session ID carried in a cookie. The OAuth flow only depends on the Store
// capability; the cookie plumbing lives in Manager.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TTL bounds how long an idle browser session survives.
const TTL = 24 * time.Hour

// Keys written by the login surface and the authorization endpoint. The
// pending-OAuth set parks an authorization request while the user logs in.
const (
	KeyUserID      = "user_id"
	KeyAccountType = "account_type"

	KeyOAuthClientID            = "oauth_client_id"
	KeyOAuthRedirectURI         = "oauth_redirect_uri"
	KeyOAuthScope               = "oauth_scope"
	KeyOAuthState               = "oauth_state"
	KeyOAuthCodeChallenge       = "oauth_code_challenge"
	KeyOAuthCodeChallengeMethod = "oauth_code_challenge_method"
)

// Store is the injected session capability. Get returns
// sentinel.ErrNotFound (wrapped) when the key or session is absent.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, error)
	Set(ctx context.Context, sid, key, value string) error
	Delete(ctx context.Context, sid string) error
}

const cookieName = "choregate_session"

// Manager owns the session cookie. It does not touch session contents.
type Manager struct {
	secure bool
}

// NewManager creates a cookie manager; secure controls the cookie's Secure
// flag and should be true whenever the base URL is https.
func NewManager(secure bool) *Manager {
	return &Manager{secure: secure}
}

// SID returns the request's session ID, minting a new one (and setting the
// cookie) when the browser has none yet.
func (m *Manager) SID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(TTL / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
