package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/neologin/backend/internal/models"
)

type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	DOB             string `json:"dob"`
	Gender          string `json:"gender"`
	Mobile          string `json:"mobile"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type AccountResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mobile    string `json:"mobile"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
}

type LoginResponse struct {
	Token        string          `json:"token"`
	Account      AccountResponse `json:"account"`
	AdminWarning bool            `json:"admin_warning,omitempty"`
}

// ErrorResponse is the failure envelope. ClearFields tells the client which
// form fields to blank before the user retries.
type ErrorResponse struct {
	Error             string   `json:"error"`
	ClearFields       []string `json:"clear_fields,omitempty"`
	RemainingAttempts *int     `json:"remaining_attempts,omitempty"`
	LockSeconds       *int     `json:"lock_seconds,omitempty"`
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

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	acc, err := h.svc.Register(r.Context(), RegisterInput{
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		DOB:             strings.TrimSpace(req.DOB),
		Gender:          strings.TrimSpace(req.Gender),
		Mobile:          strings.TrimSpace(req.Mobile),
		Email:           strings.TrimSpace(req.Email),
		Username:        strings.TrimSpace(req.Username),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.writeRegisterError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountToResponse(acc))
}

func (h *Handler) writeRegisterError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	var dErr *DuplicateError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: vErr.Message, ClearFields: vErr.Fields})
	case errors.As(err, &dErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: dErr.Error(), ClearFields: dErr.Fields})
	case errors.Is(err, ErrPasswordPolicy):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), ClearFields: []string{"password"}})
	case errors.Is(err, ErrPasswordMismatch):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), ClearFields: []string{"password", "confirm_password"}})
	default:
		h.log.Error("register failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "registration failed"})
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Identifier == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing identifier or password"})
		return
	}
	sess, err := h.svc.Login(r.Context(), strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:        sess.Token,
		Account:      accountToResponse(sess.Account),
		AdminWarning: sess.AdminWarning,
	})
}

func (h *Handler) writeLoginError(w http.ResponseWriter, err error) {
	var lockErr *LockedError
	var pwErr *WrongPasswordError
	switch {
	case errors.As(err, &lockErr):
		secs := int(lockErr.Remaining.Seconds())
		writeJSON(w, http.StatusLocked, ErrorResponse{Error: lockErr.Error(), LockSeconds: &secs})
	case errors.As(err, &pwErr):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: pwErr.Error(), RemainingAttempts: &pwErr.Remaining})
	case errors.Is(err, ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
	}
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := bearerToken(r)
	if raw == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
		return
	}
	if err := h.svc.Logout(r.Context(), raw); err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func accountToResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Mobile:    a.Mobile,
		Email:     a.Email,
		Username:  a.Username,
		IsAdmin:   a.IsAdmin,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
