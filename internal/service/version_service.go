package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"modelhub/internal/checksum"
	"modelhub/internal/domain"
	"modelhub/internal/service/media"
	"modelhub/internal/service/runner"
	"modelhub/internal/service/s3"
	"modelhub/internal/service/validator"
)

// VersionService управляет жизненным циклом версий: создание с проверкой
// дубликатов, валидация, повтор, активация, мягкое удаление и ручные запуски
type VersionService struct {
	uploadRepo  UploadRepo
	versionRepo VersionRepo
	engine      *validator.Engine
	runner      *runner.Runner
	media       *media.Store
	archive     s3.Storage // может быть nil, архив опционален
	uploadDir   string
}

func NewVersionService(
	uploadRepo UploadRepo,
	versionRepo VersionRepo,
	engine *validator.Engine,
	run *runner.Runner,
	mediaStore *media.Store,
	archive s3.Storage,
	uploadDir string,
) *VersionService {
	return &VersionService{
		uploadRepo:  uploadRepo,
		versionRepo: versionRepo,
		engine:      engine,
		runner:      run,
		media:       mediaStore,
		archive:     archive,
		uploadDir:   uploadDir,
	}
}

// Create создает версию в статусе PENDING, прогоняет валидацию и
// сохраняет вердикт. FAIL валидации — не ошибка: версия возвращается
// со статусом FAIL и диагностикой в логе
func (s *VersionService) Create(
	ctx context.Context,
	uploadID int64,
	userID string,
	staff bool,
	tag, category, information string,
	bundle domain.ArtifactBundle,
) (*domain.ModelVersion, error) {
	upload, err := s.getOwnedUpload(ctx, uploadID, userID, staff)
	if err != nil {
		return nil, err
	}

	if !domain.ValidCategory(category) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCategory, category)
	}

	// Хешируем входящие артефакты и ищем идентичный бандл
	modelHash := checksum.Bytes(bundle.Model)
	predictHash := checksum.Bytes(bundle.Predict)
	schemaHash := checksum.Bytes(bundle.Schema)

	dup, err := s.isDuplicate(ctx, modelHash, predictHash, schemaHash)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, domain.ErrDuplicateBundle
	}

	version := &domain.ModelVersion{
		UUID:        uuid.New(),
		UploadID:    uploadID,
		Tag:         tag,
		Category:    category,
		Information: information,
		Status:      domain.StatusPending,
		ModelHash:   modelHash,
		PredictHash: predictHash,
		SchemaHash:  schemaHash,
	}

	if err := s.versionRepo.Create(ctx, version); err != nil {
		return nil, err
	}

	if err := s.stageBundle(version.UUID, bundle); err != nil {
		return nil, fmt.Errorf("failed to store artifacts: %w", err)
	}

	return s.validateAndSave(ctx, version, upload.Name)
}

// Retry заменяет артефакты проваленной версии и валидирует ее заново.
// Номер версии и тег сохраняются
func (s *VersionService) Retry(
	ctx context.Context,
	versionID uuid.UUID,
	userID string,
	staff bool,
	category, information string,
	bundle domain.ArtifactBundle,
) (*domain.ModelVersion, error) {
	version, upload, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	if err != nil {
		return nil, err
	}

	if version.IsDeleted || version.Status != domain.StatusFail {
		return nil, domain.ErrNotRetryable
	}

	if !domain.ValidCategory(category) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCategory, category)
	}

	modelHash := checksum.Bytes(bundle.Model)
	predictHash := checksum.Bytes(bundle.Predict)
	schemaHash := checksum.Bytes(bundle.Schema)

	dup, err := s.isDuplicate(ctx, modelHash, predictHash, schemaHash)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, domain.ErrDuplicateBundle
	}

	version.Category = category
	version.Information = information
	version.Status = domain.StatusPending
	version.Log = ""
	version.ModelHash = modelHash
	version.PredictHash = predictHash
	version.SchemaHash = schemaHash

	if err := s.versionRepo.UpdateArtifacts(ctx, version); err != nil {
		return nil, err
	}

	if err := s.stageBundle(version.UUID, bundle); err != nil {
		return nil, fmt.Errorf("failed to store artifacts: %w", err)
	}

	return s.validateAndSave(ctx, version, upload.Name)
}

func (s *VersionService) validateAndSave(ctx context.Context, version *domain.ModelVersion, uploadName string) (*domain.ModelVersion, error) {
	s.engine.Validate(ctx, version, uploadName, s.stagingDir(version.UUID))

	if err := s.versionRepo.SetValidation(ctx, version.UUID, version.Status, version.Log); err != nil {
		return nil, err
	}

	if version.Status == domain.StatusPass {
		s.archiveBundle(uploadName, version)
	}

	return version, nil
}

// Get возвращает версию с проверкой доступа
func (s *VersionService) Get(ctx context.Context, versionID uuid.UUID, userID string, staff bool) (*domain.ModelVersion, error) {
	version, _, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	return version, err
}

// Activate атомарно снимает активность с остальных версий модели и
// включает указанную
func (s *VersionService) Activate(ctx context.Context, versionID uuid.UUID, userID string, staff bool) error {
	version, _, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	if err != nil {
		return err
	}

	if version.IsDeleted {
		return domain.ErrDeleted
	}
	if version.Status != domain.StatusPass {
		return domain.ErrNotPassing
	}

	return s.versionRepo.Activate(ctx, version.UploadID, version.UUID)
}

// Deactivate выводит версию из активного состояния
func (s *VersionService) Deactivate(ctx context.Context, versionID uuid.UUID, userID string, staff bool) error {
	version, _, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	if err != nil {
		return err
	}

	if version.IsDeleted {
		return domain.ErrDeleted
	}

	return s.versionRepo.Deactivate(ctx, version.UUID)
}

// SoftDelete помечает версию удаленной и зачищает ее файлы. Удаление
// активной версии при живых соседях заблокировано: сначала нужно
// активировать другую версию
func (s *VersionService) SoftDelete(ctx context.Context, versionID uuid.UUID, userID string, staff bool) error {
	version, upload, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	if err != nil {
		return err
	}

	if version.IsDeleted {
		return nil
	}

	if version.IsActive {
		siblings, err := s.versionRepo.CountNonDeletedSiblings(ctx, version.UploadID, version.UUID)
		if err != nil {
			return err
		}
		if siblings > 0 {
			return domain.ErrActiveWithSiblings
		}
	}

	if err := s.versionRepo.SoftDelete(ctx, version.UUID); err != nil {
		return err
	}

	// Логическое удаление зафиксировано; файловая зачистка не должна
	// его блокировать
	s.removeFiles(upload.Name, version)

	return nil
}

// UpdateInformation редактирует тег и описание версии. Поле nil
// означает "не менять": можно править описание, не трогая тег
func (s *VersionService) UpdateInformation(ctx context.Context, versionID uuid.UUID, userID string, staff bool, tag, information *string) error {
	version, _, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	if err != nil {
		return err
	}

	if version.IsDeleted {
		return domain.ErrDeleted
	}

	newTag := version.Tag
	if tag != nil {
		newTag = *tag
	}
	newInformation := version.Information
	if information != nil {
		newInformation = *information
	}

	return s.versionRepo.UpdateInformation(ctx, version.UUID, newTag, newInformation)
}

// Test выполняет ручной запуск точки входа с входом, заданным
// вызывающим, минуя синтез по схеме. Успешный запуск увеличивает
// счетчик использований
func (s *VersionService) Test(ctx context.Context, versionID uuid.UUID, userID string, staff bool, input any) (*domain.TestResult, error) {
	version, _, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	if err != nil {
		return nil, err
	}

	if version.IsDeleted {
		return nil, domain.ErrDeleted
	}

	dir := s.stagingDir(version.UUID)
	output, _, err := s.runner.RunEntryPoint(
		ctx,
		dir,
		filepath.Join(dir, domain.PredictFileName),
		filepath.Join(dir, domain.ModelFileName),
		input,
	)
	if err != nil {
		return &domain.TestResult{Status: "error", Error: err.Error()}, nil
	}

	if err := s.versionRepo.IncrementUses(ctx, version.UUID); err != nil {
		log.Printf("warning: failed to increment usage counter for %s: %v", version.UUID, err)
	}

	return &domain.TestResult{Status: "ok", Output: output}, nil
}

// OpenArtifact открывает один из файлов бандла версии для выдачи.
// Сначала ищется промежуточная копия на диске, затем архив
func (s *VersionService) OpenArtifact(ctx context.Context, versionID uuid.UUID, userID string, staff bool, fileName string) (io.ReadCloser, error) {
	switch fileName {
	case domain.ModelFileName, domain.PredictFileName, domain.SchemaFileName:
	default:
		return nil, domain.ErrNotFound
	}

	version, upload, err := s.getOwnedVersion(ctx, versionID, userID, staff)
	if err != nil {
		return nil, err
	}
	if version.IsDeleted {
		return nil, domain.ErrDeleted
	}

	f, err := os.Open(filepath.Join(s.stagingDir(version.UUID), fileName))
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	if s.archive != nil {
		key := archiveKey(version.Category, upload.Name, version.VersionNumber, fileName)
		obj, err := s.archive.GetObject(ctx, key)
		if err == nil {
			return obj, nil
		}
	}

	return nil, domain.ErrNotFound
}

// CleanupDeleted повторно зачищает файлы удаленных версий. Запускается
// фоновым тикером; операция идемпотентна, отсутствующие каталоги — не ошибка
func (s *VersionService) CleanupDeleted(ctx context.Context) error {
	versions, err := s.versionRepo.ListDeleted(ctx)
	if err != nil {
		return fmt.Errorf("failed to list deleted versions: %w", err)
	}

	names := make(map[int64]string)
	for _, v := range versions {
		name, ok := names[v.UploadID]
		if !ok {
			upload, err := s.uploadRepo.GetByID(ctx, v.UploadID)
			if err != nil {
				continue
			}
			name = upload.Name
			names[v.UploadID] = name
		}
		s.removeFiles(name, &v)
	}

	return nil
}

// isDuplicate сверяет три входящих хеша с артефактами каждой неудаленной
// версии. Хеши пересчитываются с диска, а не берутся из базы, чтобы
// переживать правки файлов в обход сервиса
func (s *VersionService) isDuplicate(ctx context.Context, modelHash, predictHash, schemaHash string) (bool, error) {
	versions, err := s.versionRepo.ListNonDeleted(ctx)
	if err != nil {
		return false, err
	}

	for _, v := range versions {
		dir := s.stagingDir(v.UUID)

		mh, err := checksum.File(filepath.Join(dir, domain.ModelFileName))
		if err != nil || mh != modelHash {
			continue
		}
		ph, err := checksum.File(filepath.Join(dir, domain.PredictFileName))
		if err != nil || ph != predictHash {
			continue
		}
		sh, err := checksum.File(filepath.Join(dir, domain.SchemaFileName))
		if err != nil || sh != schemaHash {
			continue
		}

		return true, nil
	}

	return false, nil
}

func (s *VersionService) stagingDir(id uuid.UUID) string {
	return filepath.Join(s.uploadDir, id.String())
}

func (s *VersionService) stageBundle(id uuid.UUID, bundle domain.ArtifactBundle) error {
	dir := s.stagingDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := map[string][]byte{
		domain.ModelFileName:   bundle.Model,
		domain.PredictFileName: bundle.Predict,
		domain.SchemaFileName:  bundle.Schema,
	}
	for name, data := range files {
		if data == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}

	return nil
}

// removeFiles удаляет загруженные и материализованные файлы версии,
// а также архивные объекты. Все шаги выполняются по возможности
func (s *VersionService) removeFiles(uploadName string, version *domain.ModelVersion) {
	if err := os.RemoveAll(s.stagingDir(version.UUID)); err != nil {
		log.Printf("warning: failed to remove staging dir for %s: %v", version.UUID, err)
	}

	s.media.RemoveVersion(version.Category, uploadName, version.VersionNumber)

	if s.archive != nil {
		for _, name := range []string{domain.ModelFileName, domain.PredictFileName, domain.SchemaFileName} {
			key := archiveKey(version.Category, uploadName, version.VersionNumber, name)
			if err := s.archive.DeleteObject(key); err != nil {
				log.Printf("warning: failed to delete archived object %s: %v", key, err)
			}
		}
	}
}

// archiveBundle выгружает прошедший валидацию бандл в архивное хранилище
func (s *VersionService) archiveBundle(uploadName string, version *domain.ModelVersion) {
	if s.archive == nil {
		return
	}

	dir := s.stagingDir(version.UUID)
	for _, name := range []string{domain.ModelFileName, domain.PredictFileName, domain.SchemaFileName} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		key := archiveKey(version.Category, uploadName, version.VersionNumber, name)
		if err := s.archive.UploadBytes(key, data); err != nil {
			log.Printf("warning: failed to archive %s: %v", key, err)
		}
	}
}

func archiveKey(category, uploadName string, versionNumber int, fileName string) string {
	return fmt.Sprintf("model_artifacts/%s/%s/v%d/%s", category, uploadName, versionNumber, fileName)
}

func (s *VersionService) getOwnedUpload(ctx context.Context, uploadID int64, userID string, staff bool) (*domain.Upload, error) {
	upload, err := s.uploadRepo.GetByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if upload.OwnerID != userID && !staff {
		return nil, domain.ErrAccessDenied
	}
	return upload, nil
}

func (s *VersionService) getOwnedVersion(ctx context.Context, versionID uuid.UUID, userID string, staff bool) (*domain.ModelVersion, *domain.Upload, error) {
	version, err := s.versionRepo.GetByUUID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}

	upload, err := s.uploadRepo.GetByID(ctx, version.UploadID)
	if err != nil {
		return nil, nil, err
	}

	if upload.OwnerID != userID && !staff {
		return nil, nil, domain.ErrAccessDenied
	}

	return version, upload, nil
}
