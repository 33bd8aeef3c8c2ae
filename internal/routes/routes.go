package routes

import (
	"net/http"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/handlers"
	"github.com/BradenHooton/landmark/internal/middleware"
	"github.com/BradenHooton/landmark/internal/models"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Admins    *handlers.AdminHandler
	Inquiries *handlers.InquiryHandler
	Health    http.HandlerFunc
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, guard *auth.Guard, ipConfig *pkghttp.IPConfig) {
	router.Get("/health", h.Health)

	// Public
	router.With(middleware.RateLimitByIP(middleware.LoginRateLimit(), ipConfig)).Post("/auth/login", h.Auth.Login)
	router.With(middleware.RateLimitByIP(middleware.RefreshRateLimit(), ipConfig)).Post("/auth/refresh", h.Auth.Refresh)
	router.Post("/auth/logout", h.Auth.Logout)
	router.With(middleware.RateLimitByIP(middleware.InquiryRateLimit(), ipConfig)).Post("/inquiries", h.Inquiries.Create)

	router.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)

		r.Get("/auth/verify", h.Auth.Verify)
		r.Put("/auth/profile", h.Auth.UpdateProfile)
		r.Put("/auth/change-password", h.Auth.ChangePassword)
		r.Post("/auth/2fa/setup", h.Auth.SetupTwoFactor)
		r.Post("/auth/2fa/enable", h.Auth.EnableTwoFactor)
		r.Post("/auth/2fa/disable", h.Auth.DisableTwoFactor)

		r.Route("/admins", func(r chi.Router) {
			r.Use(guard.RequirePermission(models.PermManageAdmins))
			r.Get("/", h.Admins.List)
			r.Post("/", h.Admins.Create)
			r.Get("/{id}", h.Admins.Get)
			r.Put("/{id}/status", h.Admins.SetStatus)
			r.Post("/{id}/unlock", h.Admins.Unlock)
		})

		r.With(guard.RequirePermission(models.PermViewAnalytics)).Get("/inquiries/stats", h.Inquiries.Stats)

		r.Group(func(r chi.Router) {
			r.Use(guard.RequirePermission(models.PermViewInquiries))
			r.Get("/inquiries", h.Inquiries.List)
			r.Get("/inquiries/{id}", h.Inquiries.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.RequirePermission(models.PermManageInquiries))
			r.Put("/inquiries/{id}", h.Inquiries.Update)
			r.Delete("/inquiries/{id}", h.Inquiries.Delete)
			r.Post("/inquiries/{id}/follow-ups", h.Inquiries.AddFollowUp)
		})
	})
}
