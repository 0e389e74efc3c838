package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelhub/internal/domain"
)

func TestUploadCreateValidatesName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "a/b", `a\b`, ".", ".."} {
		_, err := f.uploads.Create(ctx, "alice", name)
		assert.ErrorIs(t, err, domain.ErrInvalidName, "name %q", name)
	}

	upload, err := f.uploads.Create(ctx, "alice", "  my-model  ")
	require.NoError(t, err)
	assert.Equal(t, "my-model", upload.Name)
}

func TestUploadCreateNameTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uploads.Create(ctx, "alice", "demo")
	require.NoError(t, err)

	_, err = f.uploads.Create(ctx, "alice", "demo")
	require.ErrorIs(t, err, domain.ErrNameTaken)

	// у другого пользователя имя свободно
	_, err = f.uploads.Create(ctx, "bob", "demo")
	require.NoError(t, err)
}

func TestUploadGetWithVersions(t *testing.T) {
	f := newFixture(t)
	upload := f.newUpload(t, "alice", "demo")
	ctx := context.Background()

	_, err := f.versions.Create(ctx, upload.ID, "alice", false,
		"", "sentiment", "", bundle("model", passingPredict, contractSchema))
	require.NoError(t, err)

	got, versions, err := f.uploads.Get(ctx, upload.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	require.Len(t, versions, 1)

	_, _, err = f.uploads.Get(ctx, upload.ID, "bob", false)
	require.ErrorIs(t, err, domain.ErrAccessDenied)

	_, _, err = f.uploads.Get(ctx, 9999, "alice", false)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUploadDeleteBlockedByVersions(t *testing.T) {
	f := newFixture(t)
	upload := f.newUpload(t, "alice", "demo")
	ctx := context.Background()

	v, err := f.versions.Create(ctx, upload.ID, "alice", false,
		"", "sentiment", "", bundle("model", passingPredict, contractSchema))
	require.NoError(t, err)

	require.ErrorIs(t, f.uploads.Delete(ctx, upload.ID, "alice", false), domain.ErrHasVersions)

	// после мягкого удаления последней версии модель можно удалить
	require.NoError(t, f.versions.SoftDelete(ctx, v.UUID, "alice", false))
	require.NoError(t, f.uploads.Delete(ctx, upload.ID, "alice", false))

	_, _, err = f.uploads.Get(ctx, upload.ID, "alice", false)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUploadDeleteNotFound(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.uploads.Delete(context.Background(), 42, "alice", false), domain.ErrNotFound)
}
