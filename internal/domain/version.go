package domain

import (
	"time"

	"github.com/google/uuid"
)

// Статусы валидации версии
const (
	StatusPending = "PENDING"
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
)

// Categories — фиксированный набор категорий, используемый для
// разметки путей в хранилище артефактов
var Categories = []string{"sentiment", "recommendation", "text-classification"}

// Канонические имена файлов артефактов внутри каталога версии
const (
	ModelFileName   = "model.pt"
	PredictFileName = "predict.py"
	SchemaFileName  = "schema.json"
)

// ModelVersion представляет одну версию модели: три артефакта,
// статус валидации и флаги жизненного цикла
type ModelVersion struct {
	UUID          uuid.UUID  `json:"uuid" db:"uuid"`
	UploadID      int64      `json:"upload_id" db:"upload_id"`
	VersionNumber int        `json:"version_number" db:"version_number"`
	Tag           string     `json:"tag" db:"tag"`
	Category      string     `json:"category" db:"category"`
	Information   string     `json:"information" db:"information"`
	Status        string     `json:"status" db:"status"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	IsDeleted     bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	Log           string     `json:"log" db:"log"`
	NumUses       int        `json:"num_uses" db:"num_uses"`
	ModelHash     string     `json:"model_hash" db:"model_hash"`
	PredictHash   string     `json:"predict_hash" db:"predict_hash"`
	SchemaHash    string     `json:"schema_hash" db:"schema_hash"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// ArtifactBundle содержит три входящих артефакта версии
type ArtifactBundle struct {
	Model   []byte
	Predict []byte
	Schema  []byte
}

// ValidCategory проверяет, что категория входит в фиксированный набор
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
