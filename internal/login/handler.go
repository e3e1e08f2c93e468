// Package login is the credential-facing surface the authorization endpoint
// redirects to. The actual login UI is rendered elsewhere; these endpoints
// verify credentials, bind the subject to the browser session, and tell the
// UI where to resume a parked OAuth flow.
package login

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"choregate/internal/audit"
	"choregate/internal/platform/metrics"
	"choregate/internal/platform/middleware"
	"choregate/internal/session"
	"choregate/internal/user"
	derrors "choregate/pkg/domain-errors"
	"choregate/pkg/platform/sentinel"
)

// AdminSubjectID is the bootstrap subject authenticated against the
// configured admin password rather than the user store.
const AdminSubjectID = "admin"

// Handler handles login, logout, and pending-flow lookup.
type Handler struct {
	logger        *slog.Logger
	users         user.Store
	sessions      session.Store
	cookies       *session.Manager
	metrics       *metrics.Metrics
	auditor       audit.Publisher
	adminPassword string
}

// New creates a login Handler. adminPassword may be empty, which disables
// the bootstrap admin login.
func New(users user.Store, sessions session.Store, cookies *session.Manager, m *metrics.Metrics, auditor audit.Publisher, adminPassword string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:        logger,
		users:         users,
		sessions:      sessions,
		cookies:       cookies,
		metrics:       m,
		auditor:       auditor,
		adminPassword: adminPassword,
	}
}

// Register mounts the login routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Get("/login/pending", h.handlePending)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SubjectID string `json:"subject_id"`
	// Resume is the /oauth/authorize URL to re-enter when a parked OAuth
	// request is waiting in the session, empty otherwise.
	Resume string `json:"resume,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	if !govalidator.StringLength(req.Username, "1", "255") || req.Password == "" {
		writeError(w, derrors.New(derrors.CodeBadRequest, "username and password are required"))
		return
	}

	subjectID, accountType, err := h.authenticate(r, req)
	if err != nil {
		if derrors.Is(err, derrors.CodeUnauthorized) {
			h.metrics.LoginAttempts.WithLabelValues("failure").Inc()
			h.auditor.Publish(audit.Event{
				Action:    audit.ActionLoginFailed,
				Subject:   req.Username,
				RequestID: middleware.GetRequestID(ctx),
			})
			writeError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "login failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, derrors.New(derrors.CodeInternal, "login unavailable"))
		return
	}

	sid := h.cookies.SID(w, r)
	if err := h.sessions.Set(ctx, sid, session.KeyUserID, subjectID); err != nil {
		h.logger.ErrorContext(ctx, "session write failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, derrors.New(derrors.CodeInternal, "session unavailable"))
		return
	}
	if err := h.sessions.Set(ctx, sid, session.KeyAccountType, string(accountType)); err != nil {
		h.logger.ErrorContext(ctx, "session write failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, derrors.New(derrors.CodeInternal, "session unavailable"))
		return
	}

	h.metrics.LoginAttempts.WithLabelValues("success").Inc()
	h.auditor.Publish(audit.Event{
		Action:    audit.ActionLoginSucceeded,
		Subject:   subjectID,
		RequestID: middleware.GetRequestID(ctx),
	})

	resp := loginResponse{SubjectID: subjectID}
	if pending, ok, err := session.LoadPending(ctx, h.sessions, sid); err == nil && ok {
		resp.Resume = session.ResumeURL(pending)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// handlePending lets the login UI ask whether an OAuth flow is waiting to be
// resumed after a login completed on another tab or path.
func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := h.cookies.SID(w, r)

	pending, ok, err := session.LoadPending(ctx, h.sessions, sid)
	if err != nil {
		h.logger.ErrorContext(ctx, "session read failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, derrors.New(derrors.CodeInternal, "session unavailable"))
		return
	}

	resp := loginResponse{}
	if ok {
		resp.Resume = session.ResumeURL(pending)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := h.cookies.SID(w, r)
	if err := h.sessions.Delete(ctx, sid); err != nil {
		h.logger.ErrorContext(ctx, "session delete failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, derrors.New(derrors.CodeInternal, "session unavailable"))
		return
	}
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// authenticate resolves credentials to a subject. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (h *Handler) authenticate(r *http.Request, req loginRequest) (string, user.AccountType, error) {
	if req.Username == AdminSubjectID {
		if h.adminPassword == "" {
			return "", "", derrors.New(derrors.CodeUnauthorized, "invalid credentials")
		}
		if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.adminPassword)) != 1 {
			return "", "", derrors.New(derrors.CodeUnauthorized, "invalid credentials")
		}
		return AdminSubjectID, user.AccountTypeAdmin, nil
	}

	u, err := h.users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", "", derrors.New(derrors.CodeUnauthorized, "invalid credentials")
		}
		return "", "", err
	}

	ok, err := user.VerifyPassword(req.Password, u.PasswordHash)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", derrors.New(derrors.CodeUnauthorized, "invalid credentials")
	}
	return u.ID, u.AccountType, nil
}

// writeError keeps the login surface's error envelope consistent with the
// rest of the API.
func writeError(w http.ResponseWriter, err error) {
	code := derrors.GetCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(derrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(code)})
}
