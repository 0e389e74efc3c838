package validator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelhub/internal/domain"
	"modelhub/internal/service/media"
	"modelhub/internal/service/runner"
)

const floatContractSchema = `{
	"input": {"x1": "float", "x2": "int"},
	"output": {"prediction": "float"}
}`

func newTestEngine(t *testing.T, m *media.Store, strictPartial bool) *Engine {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	return NewEngine(runner.NewRunner("python3", 30*time.Second), m, strictPartial)
}

func stageArtifacts(t *testing.T, predictCode, schema string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ModelFileName), []byte("model blob"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.PredictFileName), []byte(predictCode), 0o644))
	if schema != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, domain.SchemaFileName), []byte(schema), 0o644))
	}
	return dir
}

func testVersion() *domain.ModelVersion {
	return &domain.ModelVersion{
		UUID:          uuid.New(),
		VersionNumber: 1,
		Category:      "sentiment",
		Status:        domain.StatusPending,
	}
}

func TestValidatePass(t *testing.T) {
	e := newTestEngine(t, nil, false)
	dir := stageArtifacts(t, `
def predict(data):
    return {"prediction": data["x1"] + data["x2"]}
`, floatContractSchema)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusPass, version.Status)
	assert.Contains(t, version.Log, "Validation Successful")
	assert.Contains(t, version.Log, `"x1": 1.0`)
	assert.Contains(t, version.Log, `"x2": 42`)
	assert.Contains(t, version.Log, `"prediction": 43.0`)
}

func TestValidateWrongOutputType(t *testing.T) {
	e := newTestEngine(t, nil, false)
	dir := stageArtifacts(t, `
def predict(data):
    return {"prediction": "positive"}
`, floatContractSchema)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusFail, version.Status)
	assert.Contains(t, version.Log, "Validation Failed")
	assert.Contains(t, version.Log, "wrong type for 'prediction': expected float, got str")
}

func TestValidateMissingOutputKey(t *testing.T) {
	e := newTestEngine(t, nil, false)
	dir := stageArtifacts(t, `
def predict(data):
    return {"score": 0.5}
`, floatContractSchema)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusFail, version.Status)
	assert.Contains(t, version.Log, "missing key in output: prediction")
}

func TestValidateNoSchemaFile(t *testing.T) {
	e := newTestEngine(t, nil, false)
	dir := stageArtifacts(t, `
def predict(data):
    return {"prediction": 1.0}
`, "")

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusFail, version.Status)
	assert.Contains(t, version.Log, "no schema file provided")
}

func TestValidatePredictionError(t *testing.T) {
	e := newTestEngine(t, nil, false)
	dir := stageArtifacts(t, `
def predict(data):
    return {"error": "model not warmed up"}
`, floatContractSchema)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusFail, version.Status)
	assert.Contains(t, version.Log, "prediction error: model not warmed up")
}

func TestValidateMixedContractSkipsCheck(t *testing.T) {
	// Контракт с нераспознанным типом не проверяется целиком:
	// несовпадение str против float не дает FAIL
	e := newTestEngine(t, nil, false)
	dir := stageArtifacts(t, `
def predict(data):
    return {"prediction": "positive"}
`, `{
		"input": {"x1": "float"},
		"output": {"prediction": "float", "details": {"nested": "object"}}
	}`)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusPass, version.Status)
}

func TestValidateMixedContractStrictPartial(t *testing.T) {
	e := newTestEngine(t, nil, true)
	dir := stageArtifacts(t, `
def predict(data):
    return {"prediction": "positive"}
`, `{
		"input": {"x1": "float"},
		"output": {"prediction": "float", "details": {"nested": "object"}}
	}`)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusFail, version.Status)
	assert.Contains(t, version.Log, "wrong type for 'prediction'")
}

func TestValidateTimeoutFails(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	e := NewEngine(runner.NewRunner("python3", 2*time.Second), nil, false)
	dir := stageArtifacts(t, `
import time

def predict(data):
    time.sleep(60)
    return {"prediction": 1.0}
`, floatContractSchema)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	assert.Equal(t, domain.StatusFail, version.Status)
	assert.Contains(t, version.Log, "timed out")
}

func TestValidateMaterializesOnPass(t *testing.T) {
	store, err := media.NewStore(t.TempDir())
	require.NoError(t, err)
	e := newTestEngine(t, store, false)
	dir := stageArtifacts(t, `
def predict(data):
    return {"prediction": 1.0}
`, floatContractSchema)

	version := testVersion()
	e.Validate(context.Background(), version, "demo", dir)

	require.Equal(t, domain.StatusPass, version.Status)
	canonical := store.VersionDir(version.Category, "demo", version.VersionNumber)
	for _, name := range []string{domain.ModelFileName, domain.PredictFileName, domain.SchemaFileName} {
		_, err := os.Stat(filepath.Join(canonical, name))
		assert.NoError(t, err, name)
	}
}
