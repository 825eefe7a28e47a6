package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/neologin/backend/internal/middleware"
	"github.com/neologin/backend/internal/models"
)

type PostTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      string `json:"reward"`
}

type AssignRequest struct {
	UserID string `json:"user_id"`
}

type MyTasksResponse struct {
	Active    *models.Task   `json:"active,omitempty"`
	Pending   []*models.Task `json:"pending"`
	Completed []*models.Task `json:"completed"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Post creates a task; it waits for admin approval before showing up in
// the marketplace.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req PostTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	t, err := h.svc.Post(r.Context(), ident.AccountID, req.Title, req.Description, req.Reward)
	if err != nil {
		h.log.Error("post task", "error", err)
		http.Error(w, `{"error":"could not create task"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Available(r.Context())
	if err != nil {
		h.log.Error("list available tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	lists, err := h.svc.Mine(r.Context(), ident.AccountID)
	if err != nil {
		h.log.Error("list my tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, MyTasksResponse{
		Active:    lists.Active,
		Pending:   lists.Pending,
		Completed: lists.Completed,
	})
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.userTaskAction(w, r, h.svc.Accept)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.userTaskAction(w, r, h.svc.Activate)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.userTaskAction(w, r, h.svc.Complete)
}

// Approve is admin-only; the router chains it behind RequireAdmin.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDFromPath(r)
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	h.writeActionResult(w, h.svc.Approve(r.Context(), taskID))
}

// Assign is admin-only.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDFromPath(r)
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	h.writeActionResult(w, h.svc.Assign(r.Context(), taskID, userID))
}

// Remove is admin-only.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDFromPath(r)
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	h.writeActionResult(w, h.svc.Remove(r.Context(), taskID))
}

// ListPendingApproval is admin-only.
func (h *Handler) ListPendingApproval(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.PendingApproval(r.Context())
	if err != nil {
		h.log.Error("list pending tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListAll is admin-only.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.All(r.Context())
	if err != nil {
		h.log.Error("list all tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) userTaskAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID, taskID uuid.UUID) error) {
	ident := middleware.IdentityFromCtx(r.Context())
	if ident == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, err := taskIDFromPath(r)
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	h.writeActionResult(w, action(r.Context(), ident.AccountID, taskID))
}

func taskIDFromPath(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeActionResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotAvailable),
		errors.Is(err, ErrNotAssignee), errors.Is(err, ErrCompleted):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
	default:
		h.log.Error("task action", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
