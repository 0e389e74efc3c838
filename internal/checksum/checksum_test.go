package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	// sha256("hello") — известное значение
	digest, err := Reader(bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", digest)
}

func TestBytesMatchesReader(t *testing.T) {
	data := []byte("model bytes")
	fromReader, err := Reader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, fromReader, Bytes(data))
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input":{}}`), 0o644))

	digest, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, Bytes([]byte(`{"input":{}}`)), digest)
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "no-such-file"))
	assert.Error(t, err)
}
