package login

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choregate/internal/audit"
	"choregate/internal/oauth/models"
	"choregate/internal/platform/metrics"
	"choregate/internal/session"
	"choregate/internal/user"
	"choregate/pkg/platform/sentinel"
	"choregate/pkg/testutil"
)

var testMetrics = metrics.New()

const testAdminPassword = "hunter2-but-long-enough"

type fixture struct {
	router   *chi.Mux
	users    *user.InMemoryStore
	sessions *session.InMemoryStore
	sink     *audit.MemorySink
}

// recorder publishes straight into the sink so tests need no worker.
type directPublisher struct{ sink *audit.MemorySink }

func (p directPublisher) Publish(event audit.Event) {
	_ = p.sink.Append(context.Background(), event)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:    user.NewInMemoryStore(),
		sessions: session.NewInMemoryStore(),
		sink:     audit.NewMemorySink(),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(f.users, f.sessions, session.NewManager(false), testMetrics,
		directPublisher{f.sink}, testAdminPassword, logger)
	f.router = chi.NewRouter()
	h.Register(f.router)
	return f
}

func (f *fixture) addUser(t *testing.T, username, password string, accountType user.AccountType) user.User {
	t.Helper()
	hash, err := user.HashPassword(password)
	require.NoError(t, err)
	u := user.User{
		ID:           "id-" + username,
		Username:     username,
		PasswordHash: hash,
		AccountType:  accountType,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.users.Save(context.Background(), u))
	return u
}

func sessionCookie(t *testing.T, rr interface{ Result() *http.Response }) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "choregate_session" {
			return c
		}
	}
	t.Fatal("expected a session cookie")
	return nil
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "dana", "s3cret-enough", user.AccountTypeParent)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"username": "dana", "password": "s3cret-enough"})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[loginResponse](t, rr)
	assert.Equal(t, "id-dana", resp.SubjectID)
	assert.Empty(t, resp.Resume)

	// Subject and account type are bound to the session.
	cookie := sessionCookie(t, rr)
	subject, err := f.sessions.Get(context.Background(), cookie.Value, session.KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "id-dana", subject)
	accountType, err := f.sessions.Get(context.Background(), cookie.Value, session.KeyAccountType)
	require.NoError(t, err)
	assert.Equal(t, "parent", accountType)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionLoginSucceeded, events[0].Action)
	assert.Equal(t, "id-dana", events[0].Subject)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "dana", "s3cret-enough", user.AccountTypeParent)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"username": "dana", "password": "nope"})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionLoginFailed, events[0].Action)
}

func TestLoginUnknownUserSameShapeAsWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "dana", "s3cret-enough", user.AccountTypeParent)

	known := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"username": "dana", "password": "nope"}))
	unknown := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"username": "nobody", "password": "nope"}))

	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestLoginAdminBootstrap(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"username": "admin", "password": testAdminPassword})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[loginResponse](t, rr)
	assert.Equal(t, AdminSubjectID, resp.SubjectID)
}

func TestLoginAdminWrongPassword(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"username": "admin", "password": "guess"})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestLoginMissingFields(t *testing.T) {
	f := newFixture(t)

	for name, body := range map[string]map[string]string{
		"no username": {"password": "x"},
		"no password": {"username": "dana"},
	} {
		t.Run(name, func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/login", body))
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
		})
	}
}

func TestLoginReturnsResumeURLForParkedFlow(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "dana", "s3cret-enough", user.AccountTypeParent)

	// Park an authorization request the way the authorize endpoint would.
	sid := "sid-parked"
	require.NoError(t, session.SavePending(context.Background(), f.sessions, sid, models.AuthorizationRequest{
		ClientID:            "choregate-mcp",
		RedirectURI:         "http://localhost:3000/callback",
		Scope:               "mcp:tools:read",
		State:               "abc123",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
	}))

	req := testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"username": "dana", "password": "s3cret-enough"})
	req.AddCookie(&http.Cookie{Name: "choregate_session", Value: sid})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[loginResponse](t, rr)
	assert.Contains(t, resp.Resume, "/oauth/authorize?")
	assert.Contains(t, resp.Resume, "state=abc123")
}

func TestPendingEndpoint(t *testing.T) {
	f := newFixture(t)

	sid := "sid-parked"
	require.NoError(t, session.SavePending(context.Background(), f.sessions, sid, models.AuthorizationRequest{
		ClientID: "choregate-mcp", RedirectURI: "http://localhost:3000/callback",
		Scope: "mcp:tools:read", State: "abc123",
		CodeChallenge: "challenge", CodeChallengeMethod: "S256",
	}))

	req := httptest.NewRequest(http.MethodGet, "/login/pending", nil)
	req.AddCookie(&http.Cookie{Name: "choregate_session", Value: sid})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[loginResponse](t, rr)
	assert.Contains(t, resp.Resume, "/oauth/authorize?")
}

func TestPendingEndpointWithoutParkedFlow(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/login/pending", nil)
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[loginResponse](t, rr)
	assert.Empty(t, resp.Resume)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	sid := "sid-1"
	require.NoError(t, f.sessions.Set(context.Background(), sid, session.KeyUserID, "id-dana"))

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "choregate_session", Value: sid})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusNoContent)

	_, err := f.sessions.Get(context.Background(), sid, session.KeyUserID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
