package router

import (
	"net/http"

	"github.com/neologin/backend/internal/admin"
	"github.com/neologin/backend/internal/auth"
	"github.com/neologin/backend/internal/middleware"
	"github.com/neologin/backend/internal/reset"
	"github.com/neologin/backend/internal/tasks"
)

// New returns an http.Handler that serves the API under /api/v1.
// Middleware chain for protected routes: RequireSession -> handler, with
// RequireAdmin added for the admin surface.
func New(
	authHandler *auth.Handler,
	resetHandler *reset.Handler,
	taskHandler *tasks.Handler,
	adminHandler *admin.Handler,
	validator middleware.TokenValidator,
	loader middleware.AccountLoader,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	session := middleware.RequireSession(validator, loader)
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return session(middleware.RequireAdmin(h))
	}

	// Public
	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)
	mux.HandleFunc("POST "+base+"/auth/forgot-password", resetHandler.RequestReset)
	mux.HandleFunc("POST "+base+"/auth/verify-otp", resetHandler.VerifyReset)

	// Session-gated
	mux.Handle("POST "+base+"/auth/logout", session(http.HandlerFunc(authHandler.Logout)))

	mux.Handle("POST "+base+"/tasks", session(http.HandlerFunc(taskHandler.Post)))
	mux.Handle("GET "+base+"/tasks/available", session(http.HandlerFunc(taskHandler.ListAvailable)))
	mux.Handle("GET "+base+"/tasks/mine", session(http.HandlerFunc(taskHandler.Mine)))
	mux.Handle("POST "+base+"/tasks/{id}/accept", session(http.HandlerFunc(taskHandler.Accept)))
	mux.Handle("POST "+base+"/tasks/{id}/activate", session(http.HandlerFunc(taskHandler.Activate)))
	mux.Handle("POST "+base+"/tasks/{id}/complete", session(http.HandlerFunc(taskHandler.Complete)))

	// Admin: task moderation
	mux.Handle("GET "+base+"/admin/tasks", adminOnly(taskHandler.ListAll))
	mux.Handle("GET "+base+"/admin/tasks/pending", adminOnly(taskHandler.ListPendingApproval))
	mux.Handle("POST "+base+"/admin/tasks/{id}/approve", adminOnly(taskHandler.Approve))
	mux.Handle("POST "+base+"/admin/tasks/{id}/assign", adminOnly(taskHandler.Assign))
	mux.Handle("DELETE "+base+"/admin/tasks/{id}", adminOnly(taskHandler.Remove))

	// Admin: account management
	mux.Handle("GET "+base+"/admin/users", adminOnly(adminHandler.ListUsers))
	mux.Handle("GET "+base+"/admin/admins", adminOnly(adminHandler.ListAdmins))
	mux.Handle("POST "+base+"/admin/users/{id}/promote", adminOnly(adminHandler.Promote))
	mux.Handle("POST "+base+"/admin/users/{id}/demote", adminOnly(adminHandler.Demote))
	mux.Handle("POST "+base+"/admin/users/{id}/report", adminOnly(adminHandler.Report))
	mux.Handle("DELETE "+base+"/admin/users/{id}", adminOnly(adminHandler.DeleteUser))
	mux.Handle("PUT "+base+"/admin/users/{id}/username", adminOnly(adminHandler.UpdateUsername))
	mux.Handle("PUT "+base+"/admin/users/{id}/name", adminOnly(adminHandler.UpdateName))
	mux.Handle("PUT "+base+"/admin/users/{id}/gender", adminOnly(adminHandler.UpdateGender))
	mux.Handle("PUT "+base+"/admin/users/{id}/recovery", adminOnly(adminHandler.UpdateRecovery))

	return mux
}
