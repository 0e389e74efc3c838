package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"modelhub/internal/domain"
	"modelhub/internal/service/media"
	"modelhub/internal/service/s3"
)

// UploadService управляет логическими моделями. Модель можно удалить
// только когда у нее не осталось неудаленных версий
type UploadService struct {
	uploadRepo  UploadRepo
	versionRepo VersionRepo
	media       *media.Store
	archive     s3.Storage
	uploadDir   string
}

func NewUploadService(
	uploadRepo UploadRepo,
	versionRepo VersionRepo,
	mediaStore *media.Store,
	archive s3.Storage,
	uploadDir string,
) *UploadService {
	return &UploadService{
		uploadRepo:  uploadRepo,
		versionRepo: versionRepo,
		media:       mediaStore,
		archive:     archive,
		uploadDir:   uploadDir,
	}
}

func (s *UploadService) Create(ctx context.Context, ownerID, name string) (*domain.Upload, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidName)
	}
	// Имя модели участвует в путях канонического дерева
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}

	upload := &domain.Upload{
		OwnerID: ownerID,
		Name:    name,
	}

	if err := s.uploadRepo.Create(ctx, upload); err != nil {
		return nil, err
	}

	return upload, nil
}

func (s *UploadService) List(ctx context.Context, ownerID string) ([]domain.UploadWithCounts, error) {
	return s.uploadRepo.ListByOwner(ctx, ownerID)
}

// Get возвращает модель и все ее версии
func (s *UploadService) Get(ctx context.Context, id int64, userID string, staff bool) (*domain.Upload, []domain.ModelVersion, error) {
	upload, err := s.uploadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}

	if upload.OwnerID != userID && !staff {
		return nil, nil, domain.ErrAccessDenied
	}

	versions, err := s.versionRepo.ListByUpload(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return upload, versions, nil
}

// Delete удаляет модель вместе с ее материализованным деревом.
// Файловая зачистка выполняется по возможности и не блокирует
// удаление логической записи
func (s *UploadService) Delete(ctx context.Context, id int64, userID string, staff bool) error {
	upload, err := s.uploadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	if upload.OwnerID != userID && !staff {
		return domain.ErrAccessDenied
	}

	remaining, err := s.versionRepo.CountNonDeleted(ctx, id)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return domain.ErrHasVersions
	}

	// Зачищаем загруженные файлы и архив по всем версиям, включая
	// давно удаленные
	versions, err := s.versionRepo.ListByUpload(ctx, id)
	if err != nil {
		return err
	}
	for _, v := range versions {
		stagingDir := filepath.Join(s.uploadDir, v.UUID.String())
		if err := os.RemoveAll(stagingDir); err != nil {
			log.Printf("warning: failed to remove staging dir for %s: %v", v.UUID, err)
		}
		if s.archive != nil {
			for _, name := range []string{domain.ModelFileName, domain.PredictFileName, domain.SchemaFileName} {
				key := archiveKey(v.Category, upload.Name, v.VersionNumber, name)
				if err := s.archive.DeleteObject(key); err != nil {
					log.Printf("warning: failed to delete archived object %s: %v", key, err)
				}
			}
		}
	}

	// Категория старых версий может быть неизвестна, дерево модели
	// удаляется по всем категориям
	s.media.RemoveUpload(upload.Name)

	return s.uploadRepo.Delete(ctx, id)
}
