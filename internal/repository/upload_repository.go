package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"modelhub/internal/domain"
)

type UploadRepository struct {
	db *sqlx.DB
}

func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) Create(ctx context.Context, upload *domain.Upload) error {
	query := `
        INSERT INTO uploads (owner_id, name)
        VALUES ($1, $2)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, upload.OwnerID, upload.Name).
		Scan(&upload.ID, &upload.CreatedAt)
	if err != nil {
		// Уникальность имени в рамках владельца обеспечивает базовый constraint
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrNameTaken
		}
		return fmt.Errorf("failed to create upload: %w", err)
	}

	return nil
}

func (r *UploadRepository) GetByID(ctx context.Context, id int64) (*domain.Upload, error) {
	var upload domain.Upload
	query := `SELECT * FROM uploads WHERE id = $1`

	err := r.db.GetContext(ctx, &upload, query, id)
	if err != nil {
		return nil, err
	}

	return &upload, nil
}

// ListByOwner возвращает модели пользователя вместе со счетчиками версий
func (r *UploadRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.UploadWithCounts, error) {
	query := `
        SELECT
            u.id, u.owner_id, u.name, u.created_at,
            COUNT(v.uuid)                                                                AS total,
            COUNT(v.uuid) FILTER (WHERE v.is_active AND NOT v.is_deleted AND v.status = 'PASS') AS active,
            COUNT(v.uuid) FILTER (WHERE NOT v.is_deleted AND v.status = 'PASS')          AS available,
            COUNT(v.uuid) FILTER (WHERE NOT v.is_deleted AND v.status = 'FAIL')          AS failed,
            COUNT(v.uuid) FILTER (WHERE v.is_deleted)                                    AS deleted
        FROM uploads u
        LEFT JOIN versions v ON v.upload_id = u.id
        WHERE u.owner_id = $1
        GROUP BY u.id
        ORDER BY u.created_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	uploads := make([]domain.UploadWithCounts, 0)
	for rows.Next() {
		var u domain.UploadWithCounts
		err := rows.Scan(
			&u.ID, &u.OwnerID, &u.Name, &u.CreatedAt,
			&u.Counts.Total, &u.Counts.Active, &u.Counts.Available,
			&u.Counts.Failed, &u.Counts.Deleted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload row: %w", err)
		}
		uploads = append(uploads, u)
	}

	return uploads, rows.Err()
}

func (r *UploadRepository) Delete(ctx context.Context, id int64) error {
	// Версии удаляются каскадом на уровне базы
	_, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}
