package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"modelhub/internal/domain"
	"modelhub/internal/service/media"
	"modelhub/internal/service/runner"
)

// Типы контракта, проверяемые строго
var strictTypes = map[string]bool{"float": true, "int": true, "str": true, "bool": true}

// Engine выполняет одну попытку валидации версии: PENDING -> PASS|FAIL.
// Любой сбой валидации — это данные (статус FAIL и диагностика в логе),
// а не ошибка вызывающему
type Engine struct {
	runner *runner.Runner
	media  *media.Store

	// strictPartial включает проверку распознанной части смешанного
	// контракта. По умолчанию смешанный контракт не проверяется вовсе:
	// частичная проверка неоднозначной схемы дает вводящие в
	// заблуждение вердикты
	strictPartial bool
}

func NewEngine(r *runner.Runner, m *media.Store, strictPartial bool) *Engine {
	return &Engine{
		runner:        r,
		media:         m,
		strictPartial: strictPartial,
	}
}

// Validate мутирует статус и лог версии на месте; сохранение записи —
// обязанность вызывающего. На PASS артефакты материализуются в
// каноническое дерево
func (e *Engine) Validate(ctx context.Context, version *domain.ModelVersion, uploadName, stagingDir string) {
	input, output, err := e.attempt(ctx, version, uploadName, stagingDir)
	if err != nil {
		version.Status = domain.StatusFail
		version.Log = fmt.Sprintf("Validation Failed\n\n%v", err)
		return
	}

	version.Status = domain.StatusPass
	version.Log = passLog(input, output)
}

func (e *Engine) attempt(ctx context.Context, version *domain.ModelVersion, uploadName, stagingDir string) (map[string]any, map[string]any, error) {
	schemaPath := filepath.Join(stagingDir, domain.SchemaFileName)
	raw, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("no schema file provided")
	}

	input, contract := Synthesize(raw)

	predictPath := filepath.Join(stagingDir, domain.PredictFileName)
	modelPath := filepath.Join(stagingDir, domain.ModelFileName)

	output, _, err := e.runner.RunEntryPoint(ctx, stagingDir, predictPath, modelPath, input)
	if err != nil {
		return input, nil, err
	}

	// Модуль вернул ошибку без полезной нагрузки
	if errVal, ok := output["error"]; ok && output["prediction"] == nil {
		return input, output, fmt.Errorf("prediction error: %v", errVal)
	}

	if typed := e.strictKeys(contract); typed != nil {
		if err := checkOutput(output, typed); err != nil {
			return input, output, err
		}
	}

	if err := e.materialize(version, uploadName, stagingDir); err != nil {
		return input, output, err
	}

	return input, output, nil
}

func (e *Engine) materialize(version *domain.ModelVersion, uploadName, stagingDir string) error {
	if e.media == nil {
		return nil
	}
	if err := e.media.Materialize(version.Category, uploadName, version.VersionNumber, stagingDir); err != nil {
		log.Printf("[validator] failed to materialize version %s: %v", version.UUID, err)
		return fmt.Errorf("failed to materialize artifacts: %w", err)
	}
	return nil
}

// strictKeys возвращает проверяемую часть контракта либо nil, если
// проверку нужно пропустить. Контракт проверяется целиком или никак,
// если только не включен strictPartial
func (e *Engine) strictKeys(contract map[string]any) map[string]string {
	if len(contract) == 0 {
		return nil
	}

	typed := make(map[string]string, len(contract))
	mixed := false
	for key, v := range contract {
		s, ok := v.(string)
		if !ok || !strictTypes[s] {
			mixed = true
			continue
		}
		typed[key] = s
	}

	if mixed && !e.strictPartial {
		return nil
	}
	if len(typed) == 0 {
		return nil
	}
	return typed
}

func checkOutput(output map[string]any, typed map[string]string) error {
	for key, typ := range typed {
		v, ok := output[key]
		if !ok {
			return fmt.Errorf("missing key in output: %s", key)
		}
		if got := runner.TypeName(v); got != typ {
			return fmt.Errorf("wrong type for '%s': expected %s, got %s", key, typ, got)
		}
	}
	return nil
}

func passLog(input, output map[string]any) string {
	in, _ := json.MarshalIndent(input, "", "  ")
	out, _ := json.MarshalIndent(output, "", "  ")
	return fmt.Sprintf(
		"Validation Successful\n\nINPUT (from schema):\n%s\n\nOUTPUT (from predict()):\n%s",
		in, out,
	)
}
