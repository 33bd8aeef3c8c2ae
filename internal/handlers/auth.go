package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/BradenHooton/landmark/internal/services"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
)

// AuthServiceInterface is the session lifecycle as the HTTP layer sees it.
type AuthServiceInterface interface {
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string, meta services.RequestMeta) error
	UpdateProfile(ctx context.Context, adminID, name, email string) (*models.AdminProfile, error)
	ChangePassword(ctx context.Context, adminID, current, next string, meta services.RequestMeta) error
	SetupTwoFactor(ctx context.Context, adminID string) (*auth.TOTPSetup, error)
	EnableTwoFactor(ctx context.Context, adminID, code string) error
	DisableTwoFactor(ctx context.Context, adminID, password string) error
}

type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, ipConfig: ipConfig, logger: logger}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=128"`
	TOTPCode string `json:"totpCode,omitempty" validate:"omitempty,len=6,numeric"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type TwoFactorDisableRequest struct {
	Password string `json:"password" validate:"required"`
}

// AdminResponse wraps a profile as {"admin": ...}.
type AdminResponse struct {
	Admin *models.AdminProfile `json:"admin"`
}

func (h *AuthHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		TOTPCode: req.TOTPCode,
		Meta:     h.meta(r),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, result)
}

// Verify handles GET /auth/verify; the guard has already resolved the admin.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	admin := auth.AdminFromContext(r.Context())
	if admin == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, AdminResponse{Admin: admin.Profile()})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteUnauthorized(w, "refresh token required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken, h.meta(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout. It always succeeds for a well-formed request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		// an unreadable body names no token to forget
		pkghttp.WriteSuccessMessage(w, http.StatusOK, "logged out")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, h.meta(r)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccessMessage(w, http.StatusOK, "logged out")
}

// UpdateProfile handles PUT /auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	admin := auth.AdminFromContext(r.Context())

	var req UpdateProfileRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), admin.ID, req.Name, req.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, AdminResponse{Admin: profile})
}

// ChangePassword handles PUT /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	admin := auth.AdminFromContext(r.Context())

	var req ChangePasswordRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), admin.ID, req.CurrentPassword, req.NewPassword, h.meta(r)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccessMessage(w, http.StatusOK, "password changed, please sign in again")
}

// SetupTwoFactor handles POST /auth/2fa/setup
func (h *AuthHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	admin := auth.AdminFromContext(r.Context())

	setup, err := h.service.SetupTwoFactor(r.Context(), admin.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, setup)
}

// EnableTwoFactor handles POST /auth/2fa/enable
func (h *AuthHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	admin := auth.AdminFromContext(r.Context())

	var req TwoFactorCodeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.EnableTwoFactor(r.Context(), admin.ID, req.Code); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccessMessage(w, http.StatusOK, "two-factor authentication enabled")
}

// DisableTwoFactor handles POST /auth/2fa/disable
func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	admin := auth.AdminFromContext(r.Context())

	var req TwoFactorDisableRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.DisableTwoFactor(r.Context(), admin.ID, req.Password); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccessMessage(w, http.StatusOK, "two-factor authentication disabled")
}
