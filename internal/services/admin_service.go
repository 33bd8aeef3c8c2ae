package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/landmark/internal/models"
	pkgauth "github.com/BradenHooton/landmark/pkg/auth"
	pkglogger "github.com/BradenHooton/landmark/pkg/logger"
)

// CreateAdminInput describes a new back-office account. Nil Permissions means
// the role's default bundle.
type CreateAdminInput struct {
	Name        string
	Email       string
	Password    string
	Role        string
	Permissions []string
}

// AdminService manages back-office accounts on behalf of an acting admin.
type AdminService struct {
	admins     AdminRepository
	tokens     RefreshTokenRepository
	bcryptCost int
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
}

func NewAdminService(admins AdminRepository, tokens RefreshTokenRepository, bcryptCost int, logger *slog.Logger, audit *pkglogger.AuditLogger) *AdminService {
	if bcryptCost == 0 {
		bcryptCost = pkgauth.DefaultBcryptCost
	}
	return &AdminService{
		admins:     admins,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
		audit:      audit,
	}
}

func (s *AdminService) List(ctx context.Context, limit, offset int) ([]*models.AdminProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	admins, err := s.admins.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	profiles := make([]*models.AdminProfile, 0, len(admins))
	for _, a := range admins {
		profiles = append(profiles, a.Profile())
	}
	return profiles, nil
}

func (s *AdminService) Get(ctx context.Context, id string) (*models.AdminProfile, error) {
	admin, err := s.admins.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return admin.Profile(), nil
}

// Create adds an account. Only a super_admin may create another super_admin.
// actor is nil when called from the operator CLI.
func (s *AdminService) Create(ctx context.Context, actor *models.Admin, in CreateAdminInput) (*models.AdminProfile, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return nil, fmt.Errorf("name and email are required: %w", models.ErrBadRequest)
	}
	if !models.IsValidRole(in.Role) {
		return nil, fmt.Errorf("unknown role %q: %w", in.Role, models.ErrBadRequest)
	}
	if in.Role == models.RoleSuperAdmin && actor != nil && actor.Role != models.RoleSuperAdmin {
		return nil, models.ErrForbidden
	}

	perms := in.Permissions
	if perms == nil {
		perms = models.DefaultPermissions(in.Role)
	}
	if err := models.ValidatePermissions(perms); err != nil {
		return nil, fmt.Errorf("unknown permission: %w", err)
	}

	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := pkgauth.HashPasswordWithCost(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	admin, err := s.admins.Create(ctx, &models.Admin{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Permissions:  perms,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}

	s.auditChange(actor, admin.ID, "created")
	return admin.Profile(), nil
}

// SetActive enables or disables an account. Disabling revokes its refresh
// tokens; outstanding access tokens stop verifying at once because Verify
// reloads the admin.
func (s *AdminService) SetActive(ctx context.Context, actor *models.Admin, id string, active bool) error {
	target, err := s.admins.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := canManage(actor, target); err != nil {
		return err
	}

	if !active {
		if actor != nil && actor.ID == id {
			return fmt.Errorf("cannot deactivate your own account: %w", models.ErrBadRequest)
		}
		if target.Role == models.RoleSuperAdmin && target.IsActive {
			count, err := s.admins.CountActiveByRole(ctx, models.RoleSuperAdmin)
			if err != nil {
				return err
			}
			if count <= 1 {
				return fmt.Errorf("cannot deactivate the last super admin: %w", models.ErrConflict)
			}
		}
	}

	if err := s.admins.SetActive(ctx, id, active); err != nil {
		return err
	}

	if !active {
		if _, err := s.tokens.DeleteAllForAdmin(ctx, id); err != nil {
			return fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
		s.auditChange(actor, id, "deactivated")
	} else {
		s.auditChange(actor, id, "activated")
	}
	return nil
}

// Unlock lifts a lockout before it expires.
func (s *AdminService) Unlock(ctx context.Context, actor *models.Admin, id string) error {
	target, err := s.admins.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := canManage(actor, target); err != nil {
		return err
	}

	if err := s.admins.Unlock(ctx, id); err != nil {
		return err
	}
	s.auditChange(actor, id, "unlocked")
	return nil
}

// canManage mirrors the Create rule: only a super_admin may change the state
// of a super_admin account. A nil actor is the operator CLI.
func canManage(actor, target *models.Admin) error {
	if target.Role == models.RoleSuperAdmin && actor != nil && actor.Role != models.RoleSuperAdmin {
		return models.ErrForbidden
	}
	return nil
}

func (s *AdminService) auditChange(actor *models.Admin, targetID, action string) {
	meta := map[string]string{"target_admin_id": targetID, "action": action}
	event := pkglogger.AuditEvent{
		EventType: pkglogger.EventAdminChange,
		Success:   true,
		Metadata:  meta,
	}
	if actor != nil {
		event.AdminID = actor.ID
	} else {
		meta["actor"] = "cli"
	}
	s.audit.Log(event)
}
