package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"modelhub/internal/domain"
)

type VersionRepository struct {
	db *sqlx.DB
}

func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create вставляет новую версию со статусом PENDING. Номер версии
// назначается внутри транзакции под блокировкой строки модели, чтобы
// два параллельных создания не получили один номер
func (r *VersionRepository) Create(ctx context.Context, version *domain.ModelVersion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Сериализуем назначение номеров в рамках одной модели
	var uploadID int64
	err = tx.GetContext(ctx, &uploadID, `SELECT id FROM uploads WHERE id = $1 FOR UPDATE`, version.UploadID)
	if err != nil {
		return fmt.Errorf("failed to lock upload row: %w", err)
	}

	query := `
        INSERT INTO versions (
            uuid, upload_id, version_number, tag, category, information,
            status, model_hash, predict_hash, schema_hash
        )
        VALUES (
            $1, $2,
            (SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE upload_id = $2),
            $3, $4, $5, $6, $7, $8, $9
        )
        RETURNING version_number, created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		version.UUID,
		version.UploadID,
		version.Tag,
		version.Category,
		version.Information,
		version.Status,
		version.ModelHash,
		version.PredictHash,
		version.SchemaHash,
	).Scan(&version.VersionNumber, &version.CreatedAt, &version.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return tx.Commit()
}

func (r *VersionRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	var version domain.ModelVersion
	query := `SELECT * FROM versions WHERE uuid = $1`

	err := r.db.GetContext(ctx, &version, query, id)
	if err != nil {
		return nil, err
	}

	return &version, nil
}

func (r *VersionRepository) ListByUpload(ctx context.Context, uploadID int64) ([]domain.ModelVersion, error) {
	var versions []domain.ModelVersion
	query := `SELECT * FROM versions WHERE upload_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &versions, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get versions: %w", err)
	}

	return versions, nil
}

// ListNonDeleted возвращает все неудаленные версии всех моделей.
// Используется проверкой дубликатов при загрузке
func (r *VersionRepository) ListNonDeleted(ctx context.Context) ([]domain.ModelVersion, error) {
	var versions []domain.ModelVersion
	query := `SELECT * FROM versions WHERE NOT is_deleted`

	err := r.db.SelectContext(ctx, &versions, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	return versions, nil
}

// ListDeleted возвращает удаленные версии для повторной зачистки файлов
func (r *VersionRepository) ListDeleted(ctx context.Context) ([]domain.ModelVersion, error) {
	var versions []domain.ModelVersion
	query := `SELECT * FROM versions WHERE is_deleted`

	err := r.db.SelectContext(ctx, &versions, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted versions: %w", err)
	}

	return versions, nil
}

// SetValidation сохраняет вердикт валидации
func (r *VersionRepository) SetValidation(ctx context.Context, id uuid.UUID, status, log string) error {
	query := `
        UPDATE versions
        SET status = $1,
            log = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $3`

	_, err := r.db.ExecContext(ctx, query, status, log, id)
	if err != nil {
		return fmt.Errorf("failed to update validation result: %w", err)
	}
	return nil
}

// UpdateArtifacts заменяет артефакты версии при повторной попытке:
// хеши и категория обновляются, статус сбрасывается в PENDING, лог очищается
func (r *VersionRepository) UpdateArtifacts(ctx context.Context, version *domain.ModelVersion) error {
	query := `
        UPDATE versions
        SET category = $1,
            information = $2,
            status = $3,
            log = '',
            model_hash = $4,
            predict_hash = $5,
            schema_hash = $6,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $7`

	_, err := r.db.ExecContext(
		ctx,
		query,
		version.Category,
		version.Information,
		version.Status,
		version.ModelHash,
		version.PredictHash,
		version.SchemaHash,
		version.UUID,
	)
	if err != nil {
		return fmt.Errorf("failed to update version artifacts: %w", err)
	}
	return nil
}

func (r *VersionRepository) UpdateInformation(ctx context.Context, id uuid.UUID, tag, information string) error {
	query := `
        UPDATE versions
        SET tag = $1,
            information = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $3`

	_, err := r.db.ExecContext(ctx, query, tag, information, id)
	if err != nil {
		return fmt.Errorf("failed to update version information: %w", err)
	}
	return nil
}

// Activate снимает активность со всех версий модели и включает одну
// в рамках одной транзакции, сохраняя инвариант единственной активной версии
func (r *VersionRepository) Activate(ctx context.Context, uploadID int64, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE versions SET is_active = FALSE WHERE upload_id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("failed to deactivate versions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE versions
        SET is_active = TRUE,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND status = 'PASS' AND NOT is_deleted`, id)
	if err != nil {
		return fmt.Errorf("failed to activate version: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotPassing
	}

	return tx.Commit()
}

func (r *VersionRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE versions
        SET is_active = FALSE,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate version: %w", err)
	}
	return nil
}

// SoftDelete помечает версию удаленной. Запись остается в базе
func (r *VersionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE versions
        SET is_deleted = TRUE,
            deleted_at = CURRENT_TIMESTAMP,
            is_active = FALSE,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete version: %w", err)
	}
	return nil
}

// CountNonDeletedSiblings считает неудаленные версии модели, кроме указанной
func (r *VersionRepository) CountNonDeletedSiblings(ctx context.Context, uploadID int64, exclude uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM versions WHERE upload_id = $1 AND NOT is_deleted AND uuid != $2`

	err := r.db.GetContext(ctx, &count, query, uploadID, exclude)
	if err != nil {
		return 0, fmt.Errorf("failed to count siblings: %w", err)
	}
	return count, nil
}

func (r *VersionRepository) CountNonDeleted(ctx context.Context, uploadID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM versions WHERE upload_id = $1 AND NOT is_deleted`

	err := r.db.GetContext(ctx, &count, query, uploadID)
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return count, nil
}

// IncrementUses увеличивает счетчик ручных запусков версии
func (r *VersionRepository) IncrementUses(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE versions SET num_uses = num_uses + 1 WHERE uuid = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return nil
}
