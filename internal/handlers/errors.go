package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/models"
	pkgauth "github.com/BradenHooton/landmark/pkg/auth"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
)

// writeServiceError maps the error taxonomy onto HTTP. Anything unrecognised
// is logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var pwErr *pkgauth.PasswordValidationError

	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "invalid email or password")
	case errors.Is(err, models.ErrTwoFactorRequired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "two_factor_required", "two-factor code required")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteLocked(w, "too many failed attempts, try again later")
	case errors.Is(err, models.ErrAccountDisabled):
		pkghttp.WriteError(w, http.StatusForbidden, "account_disabled", "account is disabled")
	case errors.Is(err, models.ErrUnauthenticated), errors.Is(err, models.ErrTokenReplay):
		pkghttp.WriteUnauthorized(w, "invalid or expired token")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "insufficient permissions")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, err.Error())
	case errors.As(err, &pwErr):
		pkghttp.WriteBadRequest(w, pwErr.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrTOTPDisabled):
		pkghttp.WriteError(w, http.StatusNotImplemented, "not_configured", err.Error())
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		pkghttp.WriteInternalError(w, "internal server error")
	}
}
