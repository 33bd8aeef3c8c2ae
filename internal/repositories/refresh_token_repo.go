package repositories

import (
	"context"
	"errors"

	"github.com/BradenHooton/landmark/internal/database"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/jackc/pgx/v5"
)

type RefreshTokenRepository struct {
	db *database.DB
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create persists a refresh token hash for an admin.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO admin_refresh_tokens (admin_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.Pool.QueryRow(ctx, query, token.AdminID, token.TokenHash, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	return database.MapPostgresError(err)
}

// Rotate consumes oldHash and stores next in the same transaction.
// Only one caller can delete a given row, so a presented token is honoured
// at most once; the loser of a race and any replay get ErrTokenReplay.
// authorize runs between the delete and the insert with the owning admin id;
// an error from it rolls the whole rotation back.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *models.RefreshToken, authorize func(ctx context.Context, adminID string) error) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var adminID string
		err := tx.QueryRow(ctx, `
			DELETE FROM admin_refresh_tokens
			WHERE token_hash = $1 AND expires_at > NOW()
			RETURNING admin_id`, oldHash).Scan(&adminID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrTokenReplay
			}
			return database.MapPostgresError(err)
		}

		if authorize != nil {
			if err := authorize(ctx, adminID); err != nil {
				return err
			}
		}

		next.AdminID = adminID
		err = tx.QueryRow(ctx, `
			INSERT INTO admin_refresh_tokens (admin_id, token_hash, expires_at)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`, adminID, next.TokenHash, next.ExpiresAt).
			Scan(&next.ID, &next.CreatedAt)
		return database.MapPostgresError(err)
	})
}

// Delete removes a token by hash. Unknown hashes are not an error.
func (r *RefreshTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM admin_refresh_tokens WHERE token_hash = $1`, tokenHash)
	return database.MapPostgresError(err)
}

// DeleteAllForAdmin revokes every outstanding refresh token of an admin.
func (r *RefreshTokenRepository) DeleteAllForAdmin(ctx context.Context, adminID string) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM admin_refresh_tokens WHERE admin_id = $1`, adminID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// CleanupExpired purges tokens past their expiry.
func (r *RefreshTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM admin_refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
