package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"choregate/internal/platform/middleware"
	derrors "choregate/pkg/domain-errors"
	"choregate/pkg/platform/sentinel"
)

const (
	// ScopeRead allows listing tasks and reading ledgers.
	ScopeRead = "mcp:tools:read"
	// ScopeWrite allows creating and completing tasks.
	ScopeWrite = "mcp:tools:write"
)

// Handler exposes the task and ledger API. It assumes the token middleware
// already ran and put the subject and scope on the request context.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a task Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the task routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tasks", h.handleList)
	r.Post("/tasks", h.handleCreate)
	r.Get("/tasks/{taskID}", h.handleGet)
	r.Post("/tasks/{taskID}/complete", h.handleComplete)
	r.Get("/kids/{kidID}/balance", h.handleBalance)
	r.Get("/kids/{kidID}/ledger", h.handleLedger)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !h.requireScope(w, r, ScopeRead) {
		return
	}

	out, err := h.service.List(r.Context(), r.URL.Query().Get("assigned_to"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.requireScope(w, r, ScopeWrite) {
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	t, err := h.service.Create(r.Context(), middleware.GetSubject(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if !h.requireScope(w, r, ScopeRead) {
		return
	}

	t, err := h.service.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	if !h.requireScope(w, r, ScopeWrite) {
		return
	}

	t, err := h.service.Complete(r.Context(), middleware.GetSubject(r.Context()), chi.URLParam(r, "taskID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	if !h.requireScope(w, r, ScopeRead) {
		return
	}

	b, err := h.service.Balance(r.Context(), chi.URLParam(r, "kidID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	if !h.requireScope(w, r, ScopeRead) {
		return
	}

	entries, err := h.service.Ledger(r.Context(), chi.URLParam(r, "kidID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// requireScope answers 403 and returns false when the token's scope does not
// include the required one.
func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request, required string) bool {
	for _, s := range strings.Fields(middleware.GetScope(r.Context())) {
		if s == required {
			return true
		}
	}
	writeJSON(w, http.StatusForbidden, map[string]string{
		"error":             "insufficient_scope",
		"error_description": "token scope does not allow this operation",
	})
	return false
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already_completed"})
	case derrors.Is(err, derrors.CodeBadRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_request",
			"error_description": err.Error(),
		})
	default:
		h.logger.ErrorContext(r.Context(), "task request failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
