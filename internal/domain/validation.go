package domain

// ValidationResult — транзиентный результат одной попытки валидации.
// В базе сохраняются только Status и Log версии
type ValidationResult struct {
	Status string         `json:"status"`
	Input  map[string]any `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`
	Log    string         `json:"log"`
}

// TestResult — результат ручного запуска точки входа с пользовательским входом
type TestResult struct {
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
	Trace  string         `json:"trace,omitempty"`
}

// BatchTestResult — результат ручного запуска со списком входов
type BatchTestResult struct {
	Status  string       `json:"status"`
	Batch   bool         `json:"batch"`
	Outputs []TestResult `json:"outputs"`
}
