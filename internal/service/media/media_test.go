package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelhub/internal/domain"
)

func writeStaging(t *testing.T, dir string, names ...string) map[string][]byte {
	t.Helper()
	contents := map[string][]byte{}
	for _, name := range names {
		data := []byte("content of " + name)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
		contents[name] = data
	}
	return contents
}

func TestMaterializeRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	staging := t.TempDir()
	contents := writeStaging(t, staging,
		domain.ModelFileName, domain.PredictFileName, domain.SchemaFileName)

	require.NoError(t, store.Materialize("sentiment", "my-model", 1, staging))

	dir := store.VersionDir("sentiment", "my-model", 1)
	for name, want := range contents {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, "artifact %s must round-trip byte-identical", name)
	}
}

func TestMaterializeSkipsMissingArtifacts(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	staging := t.TempDir()
	writeStaging(t, staging, domain.PredictFileName, domain.SchemaFileName)

	require.NoError(t, store.Materialize("sentiment", "partial", 2, staging))

	dir := store.VersionDir("sentiment", "partial", 2)
	_, err = os.Stat(filepath.Join(dir, domain.ModelFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, domain.PredictFileName))
	assert.NoError(t, err)
}

func TestMaterializeIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	staging := t.TempDir()
	writeStaging(t, staging, domain.SchemaFileName)

	require.NoError(t, store.Materialize("recommendation", "m", 1, staging))
	require.NoError(t, store.Materialize("recommendation", "m", 1, staging))
}

func TestRemoveVersion(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	staging := t.TempDir()
	writeStaging(t, staging, domain.ModelFileName)
	require.NoError(t, store.Materialize("sentiment", "gone", 3, staging))

	store.RemoveVersion("sentiment", "gone", 3)
	_, err = os.Stat(store.VersionDir("sentiment", "gone", 3))
	assert.True(t, os.IsNotExist(err))

	// повторное удаление не должно падать
	store.RemoveVersion("sentiment", "gone", 3)
}

func TestRemoveUploadAllCategories(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	staging := t.TempDir()
	writeStaging(t, staging, domain.SchemaFileName)

	// одна и та же модель в двух категориях (категория старых версий могла отличаться)
	require.NoError(t, store.Materialize("sentiment", "multi", 1, staging))
	require.NoError(t, store.Materialize("text-classification", "multi", 2, staging))

	store.RemoveUpload("multi")

	for _, category := range domain.Categories {
		_, err := os.Stat(filepath.Join(store.root, category, "multi"))
		assert.True(t, os.IsNotExist(err), "category %s must be removed", category)
	}
}
