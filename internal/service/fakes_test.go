package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelhub/internal/domain"
)

// Хранилища в памяти, повторяющие контракт internal/repository

type fakeUploadRepo struct {
	mu      sync.Mutex
	nextID  int64
	uploads map[int64]*domain.Upload
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{uploads: make(map[int64]*domain.Upload)}
}

func (r *fakeUploadRepo) Create(_ context.Context, upload *domain.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.uploads {
		if u.OwnerID == upload.OwnerID && u.Name == upload.Name {
			return domain.ErrNameTaken
		}
	}

	r.nextID++
	upload.ID = r.nextID
	upload.CreatedAt = time.Now()
	cp := *upload
	r.uploads[upload.ID] = &cp
	return nil
}

func (r *fakeUploadRepo) GetByID(_ context.Context, id int64) (*domain.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.uploads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUploadRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.UploadWithCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.UploadWithCounts
	for _, u := range r.uploads {
		if u.OwnerID == ownerID {
			out = append(out, domain.UploadWithCounts{Upload: *u})
		}
	}
	return out, nil
}

func (r *fakeUploadRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.uploads[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.uploads, id)
	return nil
}

type fakeVersionRepo struct {
	mu       sync.Mutex
	versions map[uuid.UUID]*domain.ModelVersion
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{versions: make(map[uuid.UUID]*domain.ModelVersion)}
}

func (r *fakeVersionRepo) Create(_ context.Context, version *domain.ModelVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	max := 0
	for _, v := range r.versions {
		if v.UploadID == version.UploadID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	version.VersionNumber = max + 1
	version.CreatedAt = time.Now()
	version.UpdatedAt = version.CreatedAt

	cp := *version
	r.versions[version.UUID] = &cp
	return nil
}

func (r *fakeVersionRepo) GetByUUID(_ context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *v
	return &cp, nil
}

func (r *fakeVersionRepo) ListByUpload(_ context.Context, uploadID int64) ([]domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.ModelVersion
	for _, v := range r.versions {
		if v.UploadID == uploadID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *fakeVersionRepo) ListNonDeleted(_ context.Context) ([]domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.ModelVersion
	for _, v := range r.versions {
		if !v.IsDeleted {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *fakeVersionRepo) ListDeleted(_ context.Context) ([]domain.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.ModelVersion
	for _, v := range r.versions {
		if v.IsDeleted {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *fakeVersionRepo) SetValidation(_ context.Context, id uuid.UUID, status, log string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return sql.ErrNoRows
	}
	v.Status = status
	v.Log = log
	v.UpdatedAt = time.Now()
	return nil
}

func (r *fakeVersionRepo) UpdateArtifacts(_ context.Context, version *domain.ModelVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[version.UUID]
	if !ok {
		return sql.ErrNoRows
	}
	v.Category = version.Category
	v.Information = version.Information
	v.Status = version.Status
	v.Log = ""
	v.ModelHash = version.ModelHash
	v.PredictHash = version.PredictHash
	v.SchemaHash = version.SchemaHash
	v.UpdatedAt = time.Now()
	return nil
}

func (r *fakeVersionRepo) UpdateInformation(_ context.Context, id uuid.UUID, tag, information string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return sql.ErrNoRows
	}
	v.Tag = tag
	v.Information = information
	v.UpdatedAt = time.Now()
	return nil
}

func (r *fakeVersionRepo) Activate(_ context.Context, uploadID int64, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.versions[id]
	if !ok || target.Status != domain.StatusPass || target.IsDeleted {
		return domain.ErrNotPassing
	}

	for _, v := range r.versions {
		if v.UploadID == uploadID {
			v.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (r *fakeVersionRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return sql.ErrNoRows
	}
	v.IsActive = false
	return nil
}

func (r *fakeVersionRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	v.IsDeleted = true
	v.DeletedAt = &now
	v.IsActive = false
	return nil
}

func (r *fakeVersionRepo) CountNonDeletedSiblings(_ context.Context, uploadID int64, exclude uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, v := range r.versions {
		if v.UploadID == uploadID && v.UUID != exclude && !v.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeVersionRepo) CountNonDeleted(_ context.Context, uploadID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, v := range r.versions {
		if v.UploadID == uploadID && !v.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeVersionRepo) IncrementUses(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.versions[id]
	if !ok {
		return sql.ErrNoRows
	}
	v.NumUses++
	return nil
}
