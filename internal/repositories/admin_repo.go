package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/landmark/internal/database"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const adminColumns = `id, name, email, password_hash, role, permissions, is_active, last_login,
	login_attempts, lockout_until, two_factor_enabled, two_factor_secret, created_at, updated_at`

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(db *database.DB) *AdminRepository {
	return &AdminRepository{pool: db.Pool}
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAdminRow(scanner rowScanner) (*models.Admin, error) {
	var admin models.Admin
	var permissions []string

	err := scanner.Scan(
		&admin.ID, &admin.Name, &admin.Email, &admin.PasswordHash, &admin.Role,
		pq.Array(&permissions), &admin.IsActive, &admin.LastLogin,
		&admin.LoginAttempts, &admin.LockoutUntil, &admin.TwoFactorEnabled, &admin.TwoFactorSecret,
		&admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if permissions == nil {
		permissions = []string{}
	}
	admin.Permissions = permissions

	return &admin, nil
}

func scanAdminRows(rows pgx.Rows) ([]*models.Admin, error) {
	defer rows.Close()

	admins := make([]*models.Admin, 0)
	for rows.Next() {
		admin, err := scanAdminRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, admin)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return admins, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`
	return scanAdminRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively.
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE lower(email) = lower($1)`
	return scanAdminRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *AdminRepository) List(ctx context.Context, limit, offset int) ([]*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	return scanAdminRows(rows)
}

func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) (*models.Admin, error) {
	if admin.Permissions == nil {
		admin.Permissions = []string{}
	}

	query := `
		INSERT INTO admins (name, email, password_hash, role, permissions, is_active)
		VALUES ($1, lower($2), $3, $4, $5, $6)
		RETURNING ` + adminColumns

	return scanAdminRow(r.pool.QueryRow(ctx, query,
		admin.Name, strings.TrimSpace(admin.Email), admin.PasswordHash, admin.Role,
		pq.Array(admin.Permissions), admin.IsActive,
	))
}

func (r *AdminRepository) UpdateProfile(ctx context.Context, id, name, email string) (*models.Admin, error) {
	query := `
		UPDATE admins SET name = $1, email = lower($2), updated_at = NOW()
		WHERE id = $3
		RETURNING ` + adminColumns

	return scanAdminRow(r.pool.QueryRow(ctx, query, name, strings.TrimSpace(email), id))
}

func (r *AdminRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE admins SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	return r.execOne(ctx, query, passwordHash, id)
}

func (r *AdminRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE admins SET is_active = $1, updated_at = NOW() WHERE id = $2`
	return r.execOne(ctx, query, active, id)
}

// RecordFailedAttempt bumps the failure counter in one statement. A lock
// whose expiry has passed restarts the count at 1; reaching threshold with no
// live lock sets lockout_until = now + lockout. Every CASE reads the pre-update
// row, so concurrent failures serialise on the row lock without lost updates.
func (r *AdminRepository) RecordFailedAttempt(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.Admin, error) {
	query := `
		UPDATE admins SET
			login_attempts = CASE
				WHEN lockout_until IS NOT NULL AND lockout_until <= NOW() THEN 1
				ELSE login_attempts + 1
			END,
			lockout_until = CASE
				WHEN lockout_until IS NOT NULL AND lockout_until > NOW() THEN lockout_until
				WHEN lockout_until IS NOT NULL AND lockout_until <= NOW() THEN
					CASE WHEN 1 >= $2 THEN NOW() + ($3::bigint * INTERVAL '1 millisecond') ELSE NULL END
				WHEN login_attempts + 1 >= $2 THEN NOW() + ($3::bigint * INTERVAL '1 millisecond')
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + adminColumns

	return scanAdminRow(r.pool.QueryRow(ctx, query, id, threshold, lockout.Milliseconds()))
}

// ResetFailures clears the counter and any lock, and stamps last_login.
func (r *AdminRepository) ResetFailures(ctx context.Context, id string) error {
	query := `
		UPDATE admins SET login_attempts = 0, lockout_until = NULL, last_login = NOW(), updated_at = NOW()
		WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// Unlock clears a lockout without touching last_login.
func (r *AdminRepository) Unlock(ctx context.Context, id string) error {
	query := `UPDATE admins SET login_attempts = 0, lockout_until = NULL, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// SetTwoFactor stores the encrypted secret and the enabled flag together.
func (r *AdminRepository) SetTwoFactor(ctx context.Context, id string, secret []byte, enabled bool) error {
	query := `UPDATE admins SET two_factor_secret = $1, two_factor_enabled = $2, updated_at = NOW() WHERE id = $3`
	return r.execOne(ctx, query, secret, enabled, id)
}

// CountActiveByRole is used to refuse deactivating the last super admin.
func (r *AdminRepository) CountActiveByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins WHERE role = $1 AND is_active`, role).Scan(&count)
	return count, database.MapPostgresError(err)
}

func (r *AdminRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
