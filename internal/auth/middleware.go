package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/landmark/internal/models"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
)

type contextKey string

const adminContextKey contextKey = "admin"

// AdminVerifier resolves a bearer token to a live, active admin.
type AdminVerifier interface {
	Verify(ctx context.Context, accessToken string) (*models.Admin, error)
}

// Guard gates protected routes. Authenticate must run before the
// RequirePermission and RequireRole middlewares.
type Guard struct {
	verifier AdminVerifier
	logger   *slog.Logger
}

func NewGuard(verifier AdminVerifier, logger *slog.Logger) *Guard {
	return &Guard{verifier: verifier, logger: logger}
}

// Authenticate resolves the acting admin or answers 401.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := pkghttp.BearerToken(r)
		if !ok {
			pkghttp.WriteUnauthorized(w, "authentication required")
			return
		}

		admin, err := g.verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, models.ErrUnauthenticated) {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			g.logger.Error("failed to verify access token", slog.String("error", err.Error()))
			pkghttp.WriteInternalError(w, "internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
	})
}

// RequirePermission answers 403 unless the admin holds perm. super_admin always passes.
func (g *Guard) RequirePermission(perm string) func(http.Handler) http.Handler {
	return g.require(func(admin *models.Admin) bool {
		return models.HasPermission(admin.Role, admin.Permissions, perm)
	})
}

// RequireRole answers 403 unless the admin's role is one of roles.
func (g *Guard) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return g.require(func(admin *models.Admin) bool {
		return models.HasRole(admin.Role, roles...)
	})
}

func (g *Guard) require(allowed func(*models.Admin) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin := AdminFromContext(r.Context())
			if admin == nil {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}
			if !allowed(admin) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithAdmin stores the acting admin on ctx.
func WithAdmin(ctx context.Context, admin *models.Admin) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

// AdminFromContext returns the admin placed by Authenticate, or nil.
func AdminFromContext(ctx context.Context) *models.Admin {
	admin, _ := ctx.Value(adminContextKey).(*models.Admin)
	return admin
}
