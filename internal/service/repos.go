package service

import (
	"context"

	"github.com/google/uuid"

	"modelhub/internal/domain"
)

// Интерфейсы хранилища, реализуемые internal/repository

type UploadRepo interface {
	Create(ctx context.Context, upload *domain.Upload) error
	GetByID(ctx context.Context, id int64) (*domain.Upload, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.UploadWithCounts, error)
	Delete(ctx context.Context, id int64) error
}

type VersionRepo interface {
	Create(ctx context.Context, version *domain.ModelVersion) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error)
	ListByUpload(ctx context.Context, uploadID int64) ([]domain.ModelVersion, error)
	ListNonDeleted(ctx context.Context) ([]domain.ModelVersion, error)
	ListDeleted(ctx context.Context) ([]domain.ModelVersion, error)
	SetValidation(ctx context.Context, id uuid.UUID, status, log string) error
	UpdateArtifacts(ctx context.Context, version *domain.ModelVersion) error
	UpdateInformation(ctx context.Context, id uuid.UUID, tag, information string) error
	Activate(ctx context.Context, uploadID int64, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	CountNonDeletedSiblings(ctx context.Context, uploadID int64, exclude uuid.UUID) (int, error)
	CountNonDeleted(ctx context.Context, uploadID int64) (int, error)
	IncrementUses(ctx context.Context, id uuid.UUID) error
}
