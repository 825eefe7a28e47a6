package reset

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/neologin/backend/internal/auth"
)

type RequestResetRequest struct {
	Email string `json:"email"`
}

type VerifyResetRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type messageResponse struct {
	Message string `json:"message"`
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

// RequestReset issues an OTP for the account. The code itself never appears
// in the response; it travels through the delivery collaborator.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req RequestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, auth.ErrorResponse{Error: "missing email"})
		return
	}
	_, err := h.svc.RequestReset(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		var lockErr *auth.LockedError
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, auth.ErrorResponse{Error: err.Error()})
		case errors.As(err, &lockErr):
			writeJSON(w, http.StatusLocked, auth.ErrorResponse{Error: lockErr.Error()})
		default:
			h.log.Error("request reset failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, auth.ErrorResponse{Error: "reset request failed"})
		}
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "OTP sent"})
}

// VerifyReset submits the OTP with the new password.
func (h *Handler) VerifyReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req VerifyResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.OTP == "" {
		writeJSON(w, http.StatusBadRequest, auth.ErrorResponse{Error: "missing email or OTP"})
		return
	}
	err := h.svc.VerifyAndReset(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.OTP), req.NewPassword, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, auth.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrInvalidOTP):
			writeJSON(w, http.StatusUnauthorized, auth.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrExpiredOTP):
			writeJSON(w, http.StatusGone, auth.ErrorResponse{Error: err.Error()})
		case errors.Is(err, auth.ErrPasswordPolicy):
			writeJSON(w, http.StatusBadRequest, auth.ErrorResponse{Error: err.Error(), ClearFields: []string{"new_password"}})
		case errors.Is(err, auth.ErrPasswordMismatch):
			writeJSON(w, http.StatusBadRequest, auth.ErrorResponse{Error: err.Error(), ClearFields: []string{"new_password", "confirm_password"}})
		default:
			h.log.Error("verify reset failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, auth.ErrorResponse{Error: "reset failed"})
		}
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password updated successfully"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
