package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/BradenHooton/landmark/internal/services"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface is account management as the HTTP layer sees it.
type AdminServiceInterface interface {
	List(ctx context.Context, limit, offset int) ([]*models.AdminProfile, error)
	Get(ctx context.Context, id string) (*models.AdminProfile, error)
	Create(ctx context.Context, actor *models.Admin, in services.CreateAdminInput) (*models.AdminProfile, error)
	SetActive(ctx context.Context, actor *models.Admin, id string, active bool) error
	Unlock(ctx context.Context, actor *models.Admin, id string) error
}

type AdminHandler struct {
	service AdminServiceInterface
	logger  *slog.Logger
}

func NewAdminHandler(service AdminServiceInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

type CreateAdminRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required"`
	Role        string   `json:"role" validate:"required,oneof=super_admin admin editor"`
	Permissions []string `json:"permissions,omitempty" validate:"omitempty,dive,permission"`
}

type SetStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// queryInt reads a non-negative integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// List handles GET /admins
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.service.List(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, admins)
}

// Get handles GET /admins/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, AdminResponse{Admin: profile})
}

// Create handles POST /admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAdminRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	profile, err := h.service.Create(r.Context(), auth.AdminFromContext(r.Context()), services.CreateAdminInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusCreated, AdminResponse{Admin: profile})
}

// SetStatus handles PUT /admins/{id}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.SetActive(r.Context(), auth.AdminFromContext(r.Context()), chi.URLParam(r, "id"), *req.IsActive); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccessMessage(w, http.StatusOK, "status updated")
}

// Unlock handles POST /admins/{id}/unlock
func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unlock(r.Context(), auth.AdminFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccessMessage(w, http.StatusOK, "account unlocked")
}
