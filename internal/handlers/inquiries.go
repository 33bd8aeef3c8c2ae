package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/BradenHooton/landmark/internal/services"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
	"github.com/go-chi/chi/v5"
)

// InquiryServiceInterface is lead handling as the HTTP layer sees it.
type InquiryServiceInterface interface {
	Create(ctx context.Context, actor *models.Admin, in services.CreateInquiryInput) (*models.Inquiry, error)
	Get(ctx context.Context, id string) (*models.Inquiry, error)
	List(ctx context.Context, filter models.InquiryFilter) (*services.InquiryPage, error)
	Update(ctx context.Context, id string, in services.UpdateInquiryInput) (*models.Inquiry, error)
	AddFollowUp(ctx context.Context, actor *models.Admin, id, note string) (*models.Inquiry, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (map[string]int64, error)
}

type InquiryHandler struct {
	service InquiryServiceInterface
	logger  *slog.Logger
}

func NewInquiryHandler(service InquiryServiceInterface, logger *slog.Logger) *InquiryHandler {
	return &InquiryHandler{service: service, logger: logger}
}

type CreateInquiryRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,mobile"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Message  string `json:"message,omitempty" validate:"max=2000"`
	Source   string `json:"source,omitempty" validate:"omitempty,oneof=website landing phone walk_in social other"`
	Platform string `json:"platform,omitempty" validate:"max=50"`
}

type UpdateInquiryRequest struct {
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified closed lost"`
	Priority   *string `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
	AssignedTo *string `json:"assignedTo,omitempty" validate:"omitempty,uuid"`
}

// ListInquiriesQuery holds the GET /inquiries filters.
type ListInquiriesQuery struct {
	Status     string `json:"status" validate:"omitempty,oneof=new contacted qualified closed lost"`
	Priority   string `json:"priority" validate:"omitempty,oneof=low normal high"`
	Source     string `json:"source" validate:"omitempty,oneof=website landing phone walk_in social other"`
	AssignedTo string `json:"assignedTo" validate:"omitempty,uuid"`
}

type FollowUpRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// Create handles POST /inquiries. The route is public; a bearer-authenticated
// caller is recorded as creator when present.
func (h *InquiryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInquiryRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	inq, err := h.service.Create(r.Context(), auth.AdminFromContext(r.Context()), services.CreateInquiryInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Message:  req.Message,
		Source:   req.Source,
		Platform: req.Platform,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusCreated, inq)
}

// List handles GET /inquiries
func (h *InquiryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := ListInquiriesQuery{
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		Source:     q.Get("source"),
		AssignedTo: q.Get("assignedTo"),
	}
	if err := ValidateRequest(&query); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	page, err := h.service.List(r.Context(), models.InquiryFilter{
		Status:     query.Status,
		Priority:   query.Priority,
		Source:     query.Source,
		AssignedTo: query.AssignedTo,
		Limit:      queryInt(r, "limit", 20),
		Offset:     queryInt(r, "offset", 0),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, page)
}

// Get handles GET /inquiries/{id}
func (h *InquiryHandler) Get(w http.ResponseWriter, r *http.Request) {
	inq, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, inq)
}

// Update handles PUT /inquiries/{id}
func (h *InquiryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateInquiryRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	inq, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), services.UpdateInquiryInput{
		Status:     req.Status,
		Priority:   req.Priority,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, inq)
}

// AddFollowUp handles POST /inquiries/{id}/follow-ups
func (h *InquiryHandler) AddFollowUp(w http.ResponseWriter, r *http.Request) {
	var req FollowUpRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	inq, err := h.service.AddFollowUp(r.Context(), auth.AdminFromContext(r.Context()), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusCreated, inq)
}

// Delete handles DELETE /inquiries/{id}
func (h *InquiryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccessMessage(w, http.StatusOK, "inquiry deleted")
}

// Stats handles GET /inquiries/stats
func (h *InquiryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, stats)
}
