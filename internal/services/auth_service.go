package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/models"
	pkgauth "github.com/BradenHooton/landmark/pkg/auth"
	pkglogger "github.com/BradenHooton/landmark/pkg/logger"
)

// AdminRepository is the credential store as seen by the auth and admin services.
type AdminRepository interface {
	GetByID(ctx context.Context, id string) (*models.Admin, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	List(ctx context.Context, limit, offset int) ([]*models.Admin, error)
	Create(ctx context.Context, admin *models.Admin) (*models.Admin, error)
	UpdateProfile(ctx context.Context, id, name, email string) (*models.Admin, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	RecordFailedAttempt(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.Admin, error)
	ResetFailures(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	SetTwoFactor(ctx context.Context, id string, secret []byte, enabled bool) error
	CountActiveByRole(ctx context.Context, role string) (int64, error)
}

// RefreshTokenRepository persists refresh token hashes.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Rotate(ctx context.Context, oldHash string, next *models.RefreshToken, authorize func(ctx context.Context, adminID string) error) error
	Delete(ctx context.Context, tokenHash string) error
	DeleteAllForAdmin(ctx context.Context, adminID string) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// LockoutPolicy configures failed-login handling.
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	BcryptCost        int
}

// DefaultLockoutPolicy is 5 failures then a 2 hour cooldown.
var DefaultLockoutPolicy = LockoutPolicy{
	MaxFailedAttempts: 5,
	LockoutDuration:   2 * time.Hour,
	BcryptCost:        pkgauth.DefaultBcryptCost,
}

// RequestMeta carries caller details for audit lines.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LoginInput is the credential set presented to Login.
type LoginInput struct {
	Email    string
	Password string
	TOTPCode string
	Meta     RequestMeta
}

// LoginResult is the admin profile plus a fresh token pair.
type LoginResult struct {
	Admin *models.AdminProfile `json:"admin"`
	models.TokenPair
}

// AuthService owns the session lifecycle: login, verify, refresh and logout.
type AuthService struct {
	admins AdminRepository
	tokens RefreshTokenRepository
	issuer *auth.TokenIssuer
	totp   *auth.TOTPManager
	timing *auth.TimingDelay
	policy LockoutPolicy
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
	now    func() time.Time
}

func NewAuthService(
	admins AdminRepository,
	tokens RefreshTokenRepository,
	issuer *auth.TokenIssuer,
	policy LockoutPolicy,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *AuthService {
	if policy.BcryptCost == 0 {
		policy.BcryptCost = pkgauth.DefaultBcryptCost
	}
	return &AuthService{
		admins: admins,
		tokens: tokens,
		issuer: issuer,
		policy: policy,
		logger: logger,
		audit:  audit,
		now:    time.Now,
	}
}

// WithTOTP enables two-factor operations.
func (s *AuthService) WithTOTP(tm *auth.TOTPManager) *AuthService {
	s.totp = tm
	return s
}

// WithTimingDelay pads failed logins.
func (s *AuthService) WithTimingDelay(td *auth.TimingDelay) *AuthService {
	s.timing = td
	return s
}

// Login authenticates by email and password (plus a TOTP code when enrolled).
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	start := time.Now()
	email := strings.ToLower(strings.TrimSpace(in.Email))

	fail := func(admin *models.Admin, reason string, err error) (*LoginResult, error) {
		event := pkglogger.AuditEvent{
			EventType:     pkglogger.EventLogin,
			Email:         email,
			IPAddress:     in.Meta.IPAddress,
			UserAgent:     in.Meta.UserAgent,
			FailureReason: reason,
		}
		if admin != nil {
			event.AdminID = admin.ID
		}
		s.audit.Log(event)
		s.timing.WaitFrom(ctx, start, false)
		return nil, err
	}

	if email == "" || in.Password == "" {
		pkgauth.BurnCompare(in.Password)
		return fail(nil, "missing_credentials", models.ErrInvalidCredentials)
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.BurnCompare(in.Password)
			return fail(nil, "invalid_credentials", models.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}

	if admin.IsLocked(s.now()) {
		return fail(admin, "account_locked", models.ErrAccountLocked)
	}

	if !pkgauth.VerifyPassword(admin.PasswordHash, in.Password) {
		if err := s.recordFailure(ctx, admin, in.Meta); err != nil {
			return nil, err
		}
		return fail(admin, "invalid_credentials", models.ErrInvalidCredentials)
	}

	if admin.TwoFactorEnabled {
		if in.TOTPCode == "" {
			return fail(admin, "two_factor_required", models.ErrTwoFactorRequired)
		}
		if s.totp == nil {
			return nil, fmt.Errorf("admin %s has two-factor enabled but no key is configured: %w", admin.ID, auth.ErrTOTPDisabled)
		}
		ok, err := s.totp.Validate(admin.TwoFactorSecret, in.TOTPCode, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to check two-factor code: %w", err)
		}
		if !ok {
			if err := s.recordFailure(ctx, admin, in.Meta); err != nil {
				return nil, err
			}
			return fail(admin, "invalid_two_factor_code", models.ErrInvalidCredentials)
		}
	}

	if !admin.IsActive {
		if err := s.admins.Unlock(ctx, admin.ID); err != nil {
			return nil, fmt.Errorf("failed to reset login failures: %w", err)
		}
		return fail(admin, "account_disabled", models.ErrAccountDisabled)
	}

	if err := s.admins.ResetFailures(ctx, admin.ID); err != nil {
		return nil, fmt.Errorf("failed to reset login failures: %w", err)
	}
	now := s.now()
	admin.LoginAttempts = 0
	admin.LockoutUntil = nil
	admin.LastLogin = &now

	pair, err := s.issuePair(ctx, admin.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		AdminID:   admin.ID,
		Email:     email,
		IPAddress: in.Meta.IPAddress,
		UserAgent: in.Meta.UserAgent,
		Success:   true,
	})

	return &LoginResult{Admin: admin.Profile(), TokenPair: *pair}, nil
}

// recordFailure bumps the counter and audits a lockout when this failure caused one.
func (s *AuthService) recordFailure(ctx context.Context, admin *models.Admin, meta RequestMeta) error {
	updated, err := s.admins.RecordFailedAttempt(ctx, admin.ID, s.policy.MaxFailedAttempts, s.policy.LockoutDuration)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	if updated.IsLocked(s.now()) {
		s.logger.Warn("admin locked out after repeated failures",
			slog.String("admin_id", admin.ID),
			slog.Int("attempts", updated.LoginAttempts),
		)
		s.audit.Log(pkglogger.AuditEvent{
			EventType: pkglogger.EventLockout,
			AdminID:   admin.ID,
			Email:     admin.Email,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Success:   true,
			Metadata:  map[string]string{"attempts": fmt.Sprint(updated.LoginAttempts)},
		})
	}
	return nil
}

// issuePair signs an access token and persists a new refresh token for adminID.
func (s *AuthService) issuePair(ctx context.Context, adminID string) (*models.TokenPair, error) {
	access, accessExp, err := s.issuer.IssueAccessToken(adminID)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Create(ctx, &models.RefreshToken{
		AdminID:   adminID,
		TokenHash: auth.HashRefreshToken(refresh),
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

// Verify resolves an access token to an active admin. Any token or account
// problem is reported as ErrUnauthenticated; store failures pass through.
func (s *AuthService) Verify(ctx context.Context, accessToken string) (*models.Admin, error) {
	adminID, err := s.issuer.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, models.ErrUnauthenticated
	}

	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}

	if !admin.IsActive {
		return nil, models.ErrUnauthenticated
	}
	return admin, nil
}

// Refresh consumes refreshToken and returns a new pair. A token that is
// unknown, expired, already rotated or owned by an inactive admin yields
// ErrTokenReplay.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, models.ErrTokenReplay
	}

	nextToken, nextExp, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, err
	}
	next := &models.RefreshToken{
		TokenHash: auth.HashRefreshToken(nextToken),
		ExpiresAt: nextExp,
	}

	var access string
	var accessExp time.Time
	err = s.tokens.Rotate(ctx, auth.HashRefreshToken(refreshToken), next, func(ctx context.Context, adminID string) error {
		admin, err := s.admins.GetByID(ctx, adminID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrTokenReplay
			}
			return err
		}
		if !admin.IsActive {
			return models.ErrTokenReplay
		}

		access, accessExp, err = s.issuer.IssueAccessToken(adminID)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrTokenReplay) {
			s.audit.Log(pkglogger.AuditEvent{
				EventType:     pkglogger.EventRefresh,
				IPAddress:     meta.IPAddress,
				UserAgent:     meta.UserAgent,
				FailureReason: "token_not_on_file",
			})
			return nil, models.ErrTokenReplay
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventRefresh,
		AdminID:   next.AdminID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &models.TokenPair{
		AccessToken:           access,
		RefreshToken:          nextToken,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: nextExp,
	}, nil
}

// Logout forgets refreshToken. Unknown or empty tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, meta RequestMeta) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.tokens.Delete(ctx, auth.HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventLogout,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// UpdateProfile changes an admin's own name and email.
func (s *AuthService) UpdateProfile(ctx context.Context, adminID, name, email string) (*models.AdminProfile, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, fmt.Errorf("name and email are required: %w", models.ErrBadRequest)
	}

	admin, err := s.admins.UpdateProfile(ctx, adminID, name, email)
	if err != nil {
		return nil, err
	}
	return admin.Profile(), nil
}

// ChangePassword replaces the password and signs the admin out everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, adminID, current, next string, meta RequestMeta) error {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return err
	}

	if !pkgauth.VerifyPassword(admin.PasswordHash, current) {
		s.audit.Log(pkglogger.AuditEvent{
			EventType:     pkglogger.EventPasswordChange,
			AdminID:       adminID,
			IPAddress:     meta.IPAddress,
			FailureReason: "wrong_current_password",
		})
		return models.ErrInvalidCredentials
	}

	if err := pkgauth.ValidatePassword(next); err != nil {
		return err
	}

	hash, err := pkgauth.HashPasswordWithCost(next, s.policy.BcryptCost)
	if err != nil {
		return err
	}

	if err := s.admins.UpdatePassword(ctx, adminID, hash); err != nil {
		return err
	}

	revoked, err := s.tokens.DeleteAllForAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordChange,
		AdminID:   adminID,
		IPAddress: meta.IPAddress,
		Success:   true,
		Metadata:  map[string]string{"revoked_tokens": fmt.Sprint(revoked)},
	})
	return nil
}

// SetupTwoFactor stores a fresh, not yet enabled, secret and returns enrolment data.
func (s *AuthService) SetupTwoFactor(ctx context.Context, adminID string) (*auth.TOTPSetup, error) {
	if s.totp == nil {
		return nil, auth.ErrTOTPDisabled
	}

	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.TwoFactorEnabled {
		return nil, fmt.Errorf("two-factor already enabled: %w", models.ErrConflict)
	}

	setup, err := s.totp.Setup(admin.Email)
	if err != nil {
		return nil, err
	}

	if err := s.admins.SetTwoFactor(ctx, adminID, setup.Sealed, false); err != nil {
		return nil, err
	}
	return setup, nil
}

// EnableTwoFactor confirms enrolment with a code from the authenticator.
func (s *AuthService) EnableTwoFactor(ctx context.Context, adminID, code string) error {
	if s.totp == nil {
		return auth.ErrTOTPDisabled
	}

	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.TwoFactorEnabled {
		return fmt.Errorf("two-factor already enabled: %w", models.ErrConflict)
	}
	if len(admin.TwoFactorSecret) == 0 {
		return fmt.Errorf("two-factor setup has not been started: %w", models.ErrBadRequest)
	}

	ok, err := s.totp.Validate(admin.TwoFactorSecret, code, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidCredentials
	}

	if err := s.admins.SetTwoFactor(ctx, adminID, admin.TwoFactorSecret, true); err != nil {
		return err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventTwoFactor,
		AdminID:   adminID,
		Success:   true,
		Metadata:  map[string]string{"action": "enabled"},
	})
	return nil
}

// DisableTwoFactor requires the current password.
func (s *AuthService) DisableTwoFactor(ctx context.Context, adminID, password string) error {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if !pkgauth.VerifyPassword(admin.PasswordHash, password) {
		return models.ErrInvalidCredentials
	}

	if err := s.admins.SetTwoFactor(ctx, adminID, nil, false); err != nil {
		return err
	}

	s.audit.Log(pkglogger.AuditEvent{
		EventType: pkglogger.EventTwoFactor,
		AdminID:   adminID,
		Success:   true,
		Metadata:  map[string]string{"action": "disabled"},
	})
	return nil
}
