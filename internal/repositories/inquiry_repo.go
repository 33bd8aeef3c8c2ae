package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BradenHooton/landmark/internal/database"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const inquiryColumns = `id, name, phone, email, message, source, platform, status, priority, notes,
	follow_ups, assigned_to, created_by, created_at, updated_at`

type InquiryRepository struct {
	pool *pgxpool.Pool
}

func NewInquiryRepository(db *database.DB) *InquiryRepository {
	return &InquiryRepository{pool: db.Pool}
}

func scanInquiryRow(scanner rowScanner) (*models.Inquiry, error) {
	var inq models.Inquiry
	err := scanner.Scan(
		&inq.ID, &inq.Name, &inq.Phone, &inq.Email, &inq.Message, &inq.Source, &inq.Platform,
		&inq.Status, &inq.Priority, &inq.Notes, &inq.FollowUps, &inq.AssignedTo, &inq.CreatedBy,
		&inq.CreatedAt, &inq.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if inq.FollowUps == nil {
		inq.FollowUps = models.FollowUps{}
	}
	return &inq, nil
}

func (r *InquiryRepository) Create(ctx context.Context, inq *models.Inquiry) (*models.Inquiry, error) {
	query := `
		INSERT INTO inquiries (name, phone, email, message, source, platform, status, priority, notes, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + inquiryColumns

	return scanInquiryRow(r.pool.QueryRow(ctx, query,
		inq.Name, inq.Phone, inq.Email, inq.Message, inq.Source, inq.Platform,
		inq.Status, inq.Priority, inq.Notes, inq.AssignedTo, inq.CreatedBy,
	))
}

func (r *InquiryRepository) GetByID(ctx context.Context, id string) (*models.Inquiry, error) {
	query := `SELECT ` + inquiryColumns + ` FROM inquiries WHERE id = $1`
	return scanInquiryRow(r.pool.QueryRow(ctx, query, id))
}

// List returns one page matching filter and the total match count.
func (r *InquiryRepository) List(ctx context.Context, filter models.InquiryFilter) ([]*models.Inquiry, int64, error) {
	var conds []string
	var args []interface{}

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("status", filter.Status)
	add("priority", filter.Priority)
	add("source", filter.Source)
	add("assigned_to", filter.AssignedTo)

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inquiries`+where, args...).Scan(&total); err != nil {
		return nil, 0, database.MapPostgresError(err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM inquiries%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		inquiryColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query inquiries: %w", err)
	}
	defer rows.Close()

	inquiries := make([]*models.Inquiry, 0)
	for rows.Next() {
		inq, err := scanInquiryRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan inquiry: %w", err)
		}
		inquiries = append(inquiries, inq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return inquiries, total, nil
}

// Update writes the staff-editable fields.
func (r *InquiryRepository) Update(ctx context.Context, inq *models.Inquiry) (*models.Inquiry, error) {
	query := `
		UPDATE inquiries SET status = $1, priority = $2, notes = $3, assigned_to = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + inquiryColumns

	return scanInquiryRow(r.pool.QueryRow(ctx, query,
		inq.Status, inq.Priority, inq.Notes, inq.AssignedTo, inq.ID,
	))
}

// AddFollowUp appends to the JSONB log in place.
func (r *InquiryRepository) AddFollowUp(ctx context.Context, id string, entry models.FollowUp) (*models.Inquiry, error) {
	payload, err := json.Marshal([]models.FollowUp{entry})
	if err != nil {
		return nil, fmt.Errorf("failed to encode follow-up: %w", err)
	}

	query := `
		UPDATE inquiries SET follow_ups = follow_ups || $1::jsonb, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + inquiryColumns

	return scanInquiryRow(r.pool.QueryRow(ctx, query, string(payload), id))
}

func (r *InquiryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM inquiries WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountByStatus backs the inquiry funnel summary.
func (r *InquiryRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM inquiries GROUP BY status`)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
