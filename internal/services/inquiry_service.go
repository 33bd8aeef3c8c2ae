package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/landmark/internal/models"
)

// InquiryRepository persists leads.
type InquiryRepository interface {
	Create(ctx context.Context, inq *models.Inquiry) (*models.Inquiry, error)
	GetByID(ctx context.Context, id string) (*models.Inquiry, error)
	List(ctx context.Context, filter models.InquiryFilter) ([]*models.Inquiry, int64, error)
	Update(ctx context.Context, inq *models.Inquiry) (*models.Inquiry, error)
	AddFollowUp(ctx context.Context, id string, entry models.FollowUp) (*models.Inquiry, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// CreateInquiryInput is what the public form or a staff member submits.
type CreateInquiryInput struct {
	Name     string
	Phone    string
	Email    string
	Message  string
	Source   string
	Platform string
}

// UpdateInquiryInput carries staff edits. Nil fields are left unchanged; an
// empty AssignedTo clears the assignment.
type UpdateInquiryInput struct {
	Status     *string
	Priority   *string
	Notes      *string
	AssignedTo *string
}

// InquiryPage is one page of leads.
type InquiryPage struct {
	Items  []*models.Inquiry `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type InquiryService struct {
	repo     InquiryRepository
	notifier InquiryNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewInquiryService(repo InquiryRepository, notifier InquiryNotifier, logger *slog.Logger) *InquiryService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &InquiryService{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Create stores a lead. actor is nil for the public form. A failed staff
// notification is logged, never returned; the lead is already saved.
func (s *InquiryService) Create(ctx context.Context, actor *models.Admin, in CreateInquiryInput) (*models.Inquiry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", models.ErrBadRequest)
	}

	phone := models.NormalizePhone(in.Phone)
	if !models.IsValidMobile(phone) {
		return nil, fmt.Errorf("phone must be a valid mobile number: %w", models.ErrBadRequest)
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = models.SourceWebsite
	}
	if !models.IsValidSource(source) {
		return nil, fmt.Errorf("unknown source %q: %w", source, models.ErrBadRequest)
	}

	inq := &models.Inquiry{
		Name:     name,
		Phone:    phone,
		Email:    optional(strings.ToLower(in.Email)),
		Message:  optional(in.Message),
		Source:   source,
		Platform: optional(in.Platform),
		Status:   models.InquiryStatusNew,
		Priority: models.PriorityNormal,
	}
	if actor != nil {
		inq.CreatedBy = &actor.ID
	}

	created, err := s.repo.Create(ctx, inq)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyNewInquiry(ctx, created); err != nil {
		s.logger.Warn("new inquiry saved but staff were not notified",
			slog.String("inquiry_id", created.ID),
			slog.String("error", err.Error()),
		)
	}

	return created, nil
}

func (s *InquiryService) Get(ctx context.Context, id string) (*models.Inquiry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *InquiryService) List(ctx context.Context, filter models.InquiryFilter) (*InquiryPage, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !models.IsValidInquiryStatus(filter.Status) {
		return nil, fmt.Errorf("unknown status %q: %w", filter.Status, models.ErrBadRequest)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &InquiryPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *InquiryService) Update(ctx context.Context, id string, in UpdateInquiryInput) (*models.Inquiry, error) {
	inq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Status != nil {
		if !models.IsValidInquiryStatus(*in.Status) {
			return nil, fmt.Errorf("unknown status %q: %w", *in.Status, models.ErrBadRequest)
		}
		inq.Status = *in.Status
	}
	if in.Priority != nil {
		if !models.IsValidPriority(*in.Priority) {
			return nil, fmt.Errorf("unknown priority %q: %w", *in.Priority, models.ErrBadRequest)
		}
		inq.Priority = *in.Priority
	}
	if in.Notes != nil {
		inq.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.AssignedTo != nil {
		inq.AssignedTo = optional(*in.AssignedTo)
	}

	return s.repo.Update(ctx, inq)
}

// AddFollowUp appends a contact note attributed to actor.
func (s *InquiryService) AddFollowUp(ctx context.Context, actor *models.Admin, id, note string) (*models.Inquiry, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("note is required: %w", models.ErrBadRequest)
	}

	return s.repo.AddFollowUp(ctx, id, models.FollowUp{
		Note:      note,
		AdminID:   actor.ID,
		CreatedAt: s.now().UTC(),
	})
}

func (s *InquiryService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Stats returns lead counts per status, with zero entries for unseen statuses.
func (s *InquiryService) Stats(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, status := range []string{
		models.InquiryStatusNew, models.InquiryStatusContacted, models.InquiryStatusQualified,
		models.InquiryStatusClosed, models.InquiryStatusLost,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}
