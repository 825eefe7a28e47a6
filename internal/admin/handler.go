// Package admin exposes the account-management operations behind the admin
// role gate. Every route here is chained behind RequireSession and
// RequireAdmin; the handlers re-read the identity from the context and never
// mutate anything without it.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/neologin/backend/internal/auth"
	"github.com/neologin/backend/internal/middleware"
	"github.com/neologin/backend/internal/models"
)

// Store is the account persistence surface the admin handlers need.
// repository.AccountRepo satisfies it.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	ListAdmins(ctx context.Context) ([]*models.Account, error)
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error
	SetReported(ctx context.Context, id uuid.UUID, reported bool) error
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) error
	UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName string) error
	UpdateGender(ctx context.Context, id uuid.UUID, gender string) error
	UpdateRecovery(ctx context.Context, id uuid.UUID, email, mobile string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Uniqueness is the subset of the auth repository used to re-check identity
// fields before an admin edit.
type Uniqueness interface {
	ExistsEmail(ctx context.Context, email string) (bool, error)
	ExistsMobile(ctx context.Context, mobile string) (bool, error)
	ExistsUsername(ctx context.Context, username string) (bool, error)
}

type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender"`
	Mobile    string `json:"mobile"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	Reported  bool   `json:"reported"`
}

type UpdateUsernameRequest struct {
	Username string `json:"username"`
}

type UpdateNameRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type UpdateGenderRequest struct {
	Gender string `json:"gender"`
}

type UpdateRecoveryRequest struct {
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

type Handler struct {
	store  Store
	unique Uniqueness
	log    *slog.Logger
}

func NewHandler(store Store, unique Uniqueness, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, unique: unique, log: log}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.List(r.Context())
	if err != nil {
		h.internal(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaries(accounts))
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAdmins(r.Context())
	if err != nil {
		h.internal(w, "list admins", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaries(accounts))
}

// Promote grants the admin role.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	if err := h.store.SetAdmin(r.Context(), id, true); err != nil {
		h.internal(w, "promote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Demote removes the admin role. Admins cannot demote themselves.
func (h *Handler) Demote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	if h.isSelf(r, id) {
		http.Error(w, `{"error":"cannot change your own role"}`, http.StatusConflict)
		return
	}
	if err := h.store.SetAdmin(r.Context(), id, false); err != nil {
		h.internal(w, "demote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report flags another admin for misconduct. The flag is surfaced to that
// admin once at their next login.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	if h.isSelf(r, id) {
		http.Error(w, `{"error":"cannot report yourself"}`, http.StatusConflict)
		return
	}
	target, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.internal(w, "report", err)
		return
	}
	if target == nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	if !target.IsAdmin {
		http.Error(w, `{"error":"only admins can be reported"}`, http.StatusConflict)
		return
	}
	if err := h.store.SetReported(r.Context(), id, true); err != nil {
		h.internal(w, "report", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser removes an account. Tasks referencing it keep their dangling
// references; task history outlives its author.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	if h.isSelf(r, id) {
		http.Error(w, `{"error":"cannot delete your own account"}`, http.StatusConflict)
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.internal(w, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	var req UpdateUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		http.Error(w, `{"error":"username is required"}`, http.StatusBadRequest)
		return
	}
	taken, err := h.unique.ExistsUsername(r.Context(), username)
	if err != nil {
		h.internal(w, "update username", err)
		return
	}
	if taken {
		http.Error(w, `{"error":"username already exists"}`, http.StatusConflict)
		return
	}
	if err := h.store.UpdateUsername(r.Context(), id, username); err != nil {
		h.internal(w, "update username", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateName(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	var req UpdateNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		http.Error(w, `{"error":"first and last name are required"}`, http.StatusBadRequest)
		return
	}
	if err := h.store.UpdateName(r.Context(), id, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)); err != nil {
		h.internal(w, "update name", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateGender(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	var req UpdateGenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.store.UpdateGender(r.Context(), id, strings.TrimSpace(req.Gender)); err != nil {
		h.internal(w, "update gender", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateRecovery replaces the contact fields, re-checking uniqueness and
// the mobile format.
func (h *Handler) UpdateRecovery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}
	var req UpdateRecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(req.Email)
	mobile := strings.TrimSpace(req.Mobile)
	if email == "" || mobile == "" {
		http.Error(w, `{"error":"email and mobile are required"}`, http.StatusBadRequest)
		return
	}
	if !auth.ValidMobile(mobile) {
		http.Error(w, `{"error":"mobile number must be 10 digits and start with 6, 7, 8, or 9"}`, http.StatusBadRequest)
		return
	}
	current, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.internal(w, "update recovery", err)
		return
	}
	if current == nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	if email != current.Email {
		taken, err := h.unique.ExistsEmail(r.Context(), email)
		if err != nil {
			h.internal(w, "update recovery", err)
			return
		}
		if taken {
			http.Error(w, `{"error":"email ID already exists"}`, http.StatusConflict)
			return
		}
	}
	if mobile != current.Mobile {
		taken, err := h.unique.ExistsMobile(r.Context(), mobile)
		if err != nil {
			h.internal(w, "update recovery", err)
			return
		}
		if taken {
			http.Error(w, `{"error":"mobile number already exists"}`, http.StatusConflict)
			return
		}
	}
	if err := h.store.UpdateRecovery(r.Context(), id, email, mobile); err != nil {
		h.internal(w, "update recovery", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) targetID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) isSelf(r *http.Request, id uuid.UUID) bool {
	ident := middleware.IdentityFromCtx(r.Context())
	return ident != nil && ident.AccountID == id
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.log.Error(op, "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func toSummaries(accounts []*models.Account) []UserSummary {
	out := make([]UserSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, UserSummary{
			ID:        a.ID.String(),
			FirstName: a.FirstName,
			LastName:  a.LastName,
			DOB:       a.DOB,
			Gender:    a.Gender,
			Mobile:    a.Mobile,
			Email:     a.Email,
			Username:  a.Username,
			IsAdmin:   a.IsAdmin,
			Reported:  a.Reported,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
