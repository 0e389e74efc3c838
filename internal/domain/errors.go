package domain

import "errors"

// Ошибки жизненного цикла. Это отклоненные операции, а не результаты
// валидации: валидационный FAIL сохраняется в статусе версии и ошибкой
// не является
var (
	ErrNotFound           = errors.New("not found")
	ErrNameTaken          = errors.New("a model with this name already exists")
	ErrDuplicateBundle    = errors.New("an identical model/predict/schema bundle is already present")
	ErrNotPassing         = errors.New("cannot activate a version that has not passed validation")
	ErrDeleted            = errors.New("version is deleted")
	ErrActiveWithSiblings = errors.New("cannot delete active version while other versions exist, activate another version first")
	ErrNotRetryable       = errors.New("only a failed version can be retried")
	ErrHasVersions        = errors.New("cannot delete a model that still has versions")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidName        = errors.New("invalid model name")
	ErrInvalidCategory    = errors.New("unknown category")
)
