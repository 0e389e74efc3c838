package runner

import (
	"bytes"
	"context"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Пользовательский модуль predict.py исполняется в отдельном процессе
// интерпретатора через встроенный harness. Процессная граница заменяет
// загрузку кода внутрь нашего процесса, а рабочий каталог передается
// явно вместо смены каталога всего процесса

//go:embed harness.py
var harnessSource []byte

var (
	ErrModuleLoad        = errors.New("failed to load predict module")
	ErrEntryPointMissing = errors.New("predict() function missing in predict.py")
	ErrUnsupportedArity  = errors.New("unsupported predict() signature")
	ErrInvalidOutput     = errors.New("predict() must return an object")
	ErrInvoke            = errors.New("predict() raised an exception")
	ErrTimeout           = errors.New("predict() execution timed out")
)

// Конвенции вызова точки входа
const (
	convInput      = "input"       // predict(input)
	convPathInput  = "path_input"  // predict(model_path, input)
	convPathOnly   = "path_only"   // повтор для arity 1: predict(model_path)
	convModelInput = "model_input" // повтор для arity 2: predict(model_obj, input)
)

type Runner struct {
	python  string
	timeout time.Duration
}

func NewRunner(python string, timeout time.Duration) *Runner {
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Runner{python: python, timeout: timeout}
}

// Inspect загружает модуль и возвращает число параметров точки входа
func (r *Runner) Inspect(ctx context.Context, dir, predictPath string) (int, error) {
	res, err := r.run(ctx, dir, []string{"inspect", predictPath}, nil)
	if err != nil {
		return 0, err
	}

	if ok, _ := res["ok"].(bool); !ok {
		return 0, harnessError(res)
	}

	params, ok := res["params"].(json.Number)
	if !ok {
		return 0, fmt.Errorf("unexpected harness response: %v", res)
	}
	n, err := params.Int64()
	if err != nil {
		return 0, fmt.Errorf("unexpected parameter count: %w", err)
	}

	return int(n), nil
}

// RunEntryPoint вызывает predict() с числом аргументов, соответствующим
// его сигнатуре. Если модуль сообщил характерную ошибку передачи пути
// вместо потока ("no attribute 'seek'"), выполняется один повтор с
// альтернативной конвенцией; ошибки повтора глотаются и наружу уходит
// исходный результат
func (r *Runner) RunEntryPoint(ctx context.Context, dir, predictPath, modelPath string, input any) (map[string]any, int, error) {
	arity, err := r.Inspect(ctx, dir, predictPath)
	if err != nil {
		return nil, 0, err
	}

	if arity != 1 && arity != 2 {
		return nil, arity, fmt.Errorf("%w: predict() has %d parameters, expected 1 or 2", ErrUnsupportedArity, arity)
	}

	var out any
	if arity == 1 {
		out, err = r.invoke(ctx, dir, predictPath, modelPath, convInput, input)
	} else {
		out, err = r.invoke(ctx, dir, predictPath, modelPath, convPathInput, input)
	}
	if err != nil {
		return nil, arity, err
	}

	if isSeekError(out) {
		var retried any
		var retryErr error
		if arity == 1 {
			retried, retryErr = r.invoke(ctx, dir, predictPath, modelPath, convPathOnly, nil)
		} else {
			retried, retryErr = r.invoke(ctx, dir, predictPath, modelPath, convModelInput, input)
		}
		if retryErr == nil {
			out = retried
		}
	}

	result, ok := out.(map[string]any)
	if !ok {
		return nil, arity, fmt.Errorf("%w, got %s", ErrInvalidOutput, TypeName(out))
	}

	return result, arity, nil
}

func (r *Runner) invoke(ctx context.Context, dir, predictPath, modelPath, convention string, input any) (any, error) {
	stdin, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}

	res, err := r.run(ctx, dir, []string{"invoke", predictPath, modelPath, convention}, stdin)
	if err != nil {
		return nil, err
	}

	if ok, _ := res["ok"].(bool); !ok {
		return nil, harnessError(res)
	}

	return res["result"], nil
}

// run запускает harness в каталоге артефактов и разбирает его ответ
func (r *Runner) run(ctx context.Context, dir string, args []string, stdin []byte) (map[string]any, error) {
	harness, err := os.CreateTemp("", "modelhub-harness-*.py")
	if err != nil {
		return nil, fmt.Errorf("failed to create harness file: %w", err)
	}
	defer os.Remove(harness.Name())

	if _, err := harness.Write(harnessSource); err != nil {
		harness.Close()
		return nil, fmt.Errorf("failed to write harness file: %w", err)
	}
	if err := harness.Close(); err != nil {
		return nil, fmt.Errorf("failed to close harness file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.python, append([]string{harness.Name()}, args...)...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		}
		return nil, fmt.Errorf("harness failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(stdout.Bytes())))
	dec.UseNumber()

	var res map[string]any
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode harness response: %w", err)
	}

	return res, nil
}

// harnessError переводит структурированный ответ harness в типизированную ошибку
func harnessError(res map[string]any) error {
	kind, _ := res["kind"].(string)
	msg, _ := res["error"].(string)
	trace, _ := res["trace"].(string)

	switch kind {
	case "missing_entry_point":
		return ErrEntryPointMissing
	case "load_error":
		return fmt.Errorf("%w: %s\n%s", ErrModuleLoad, msg, trace)
	case "invoke_error":
		return fmt.Errorf("%w: %s\n%s", ErrInvoke, msg, trace)
	default:
		return fmt.Errorf("harness error: %s", msg)
	}
}

// isSeekError распознает сообщение библиотеки загрузки модели о том,
// что вместо потока ей передали путь
func isSeekError(out any) bool {
	m, ok := out.(map[string]any)
	if !ok {
		return false
	}
	errVal, ok := m["error"]
	if !ok {
		return false
	}
	return strings.Contains(fmt.Sprint(errVal), "no attribute 'seek'")
}

// TypeName возвращает имя типа значения в терминах словаря схем
func TypeName(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return "str"
	case bool:
		return "bool"
	case json.Number:
		if isIntegerLiteral(t) {
			return "int"
		}
		return "float"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isIntegerLiteral(n json.Number) bool {
	s := n.String()
	return !strings.ContainsAny(s, ".eE")
}
