// Package handler exposes the browser-facing authorization endpoint, the
// back-channel token endpoint, and the well-known discovery documents.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"choregate/internal/oauth/models"
	"choregate/internal/platform/middleware"
	"choregate/internal/session"
	"choregate/pkg/platform/sentinel"
)

// FlowService drives code issuance and exchange.
type FlowService interface {
	IssueCode(ctx context.Context, req models.AuthorizationRequest, subjectID string) (string, error)
	Exchange(ctx context.Context, req models.TokenRequest) (*models.TokenResult, error)
}

// Handler handles the OAuth endpoints.
type Handler struct {
	logger   *slog.Logger
	flow     FlowService
	sessions session.Store
	cookies  *session.Manager
	clientID string
	baseURL  string
	scopes   []string
	loginURL string
}

// New creates an OAuth Handler for the pre-shared client.
func New(flow FlowService, sessions session.Store, cookies *session.Manager, clientID, baseURL string, scopes []string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		flow:     flow,
		sessions: sessions,
		cookies:  cookies,
		clientID: clientID,
		baseURL:  baseURL,
		scopes:   scopes,
		loginURL: "/login",
	}
}

// Register mounts the OAuth routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/.well-known/oauth-authorization-server", h.handleAuthorizationServerMetadata)
	r.Get("/.well-known/oauth-protected-resource", h.handleProtectedResourceMetadata)
	r.Get("/oauth/authorize", h.handleAuthorize)
	r.Post("/oauth/token", h.handleToken)
}

// handleAuthorize is the browser half of the flow. Without an authenticated
// session the request parameters are parked in the session and the user is
// sent to the login surface; with one, a code is issued and the user agent
// redirected back to the client. Consent is auto-approved for the pre-shared
// client.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := authorizationRequestFromQuery(r.URL.Query())
	if err := req.Validate(); err != nil {
		// Malformed parameters fail before any session or store interaction.
		h.writeFlowError(ctx, w, err)
		return
	}
	if req.ClientID != h.clientID {
		// An unknown client is rejected outright, never parked for login.
		h.writeFlowError(ctx, w, models.NewFlowError(models.ErrInvalidRequest, "unknown client_id"))
		return
	}

	sid := h.cookies.SID(w, r)

	subjectID, err := h.sessions.Get(ctx, sid, session.KeyUserID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		h.logger.ErrorContext(ctx, "session read failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		h.writeFlowError(ctx, w, models.WrapFlowError(err, models.ErrServerError, "session unavailable"))
		return
	}

	if subjectID == "" {
		// Park the request and send the browser to log in. The login surface
		// resumes the flow by re-invoking this endpoint with the remembered
		// parameters.
		if err := session.SavePending(ctx, h.sessions, sid, req); err != nil {
			h.logger.ErrorContext(ctx, "failed to park authorization request",
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
			h.writeFlowError(ctx, w, models.WrapFlowError(err, models.ErrServerError, "session unavailable"))
			return
		}
		http.Redirect(w, r, h.loginURL, http.StatusFound)
		return
	}

	code, err := h.flow.IssueCode(ctx, req, subjectID)
	if err != nil {
		h.writeFlowError(ctx, w, err)
		return
	}

	if err := session.ClearPending(ctx, h.sessions, sid); err != nil {
		h.logger.WarnContext(ctx, "failed to clear pending authorization request",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}

	redirect, err := callbackURL(req.RedirectURI, code, req.State)
	if err != nil {
		h.writeFlowError(ctx, w, models.WrapFlowError(err, models.ErrInvalidRequest, "unparseable redirect_uri"))
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// handleToken is the back-channel half: a pure, session-free exchange
// authenticated by PKCE rather than a client secret.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.writeFlowError(ctx, w, models.NewFlowError(models.ErrInvalidRequest, "malformed form body"))
		return
	}

	req := models.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		ClientID:     r.PostFormValue("client_id"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
	}

	result, err := h.flow.Exchange(ctx, req)
	if err != nil {
		h.writeFlowError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode token response",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
}

func (h *Handler) handleAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	doc := models.AuthorizationServerMetadata{
		Issuer:                        h.baseURL,
		AuthorizationEndpoint:         h.baseURL + "/oauth/authorize",
		TokenEndpoint:                 h.baseURL + "/oauth/token",
		CodeChallengeMethodsSupported: []string{models.CodeChallengeMethodS256},
		GrantTypesSupported:           []string{models.GrantTypeAuthorizationCode},
		ResponseTypesSupported:        []string{"code"},
		ScopesSupported:               h.scopes,
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	doc := models.ProtectedResourceMetadata{
		Resource:             h.baseURL + "/mcp",
		AuthorizationServers: []string{h.baseURL},
	}
	writeJSON(w, http.StatusOK, doc)
}

// writeFlowError translates protocol errors into the OAuth JSON error shape.
// Server errors stay opaque: detail is logged, never returned.
func (h *Handler) writeFlowError(ctx context.Context, w http.ResponseWriter, err error) {
	var flowErr *models.FlowError
	if !errors.As(err, &flowErr) {
		flowErr = models.WrapFlowError(err, models.ErrServerError, "internal error")
	}

	if flowErr.Code == models.ErrServerError {
		h.logger.ErrorContext(ctx, "oauth server error",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": string(models.ErrServerError),
		})
		return
	}

	h.logger.WarnContext(ctx, "oauth request rejected",
		"error_code", string(flowErr.Code),
		"error", err,
		"request_id", middleware.GetRequestID(ctx),
	)
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             string(flowErr.Code),
		"error_description": flowErr.Description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func authorizationRequestFromQuery(q url.Values) models.AuthorizationRequest {
	return models.AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}
}

// callbackURL appends code and state to the client's redirect URI without
// clobbering any query parameters it already carries.
func callbackURL(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
