package domain

import (
	"time"
)

// Upload представляет логическую модель, которой принадлежат версии
type Upload struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// VersionCounts содержит счетчики версий модели для дашбордов
type VersionCounts struct {
	Total     int `json:"total" db:"total"`
	Active    int `json:"active" db:"active"`
	Available int `json:"available" db:"available"`
	Failed    int `json:"failed" db:"failed"`
	Deleted   int `json:"deleted" db:"deleted"`
}

// UploadWithCounts возвращается списком моделей вместе со счетчиками
type UploadWithCounts struct {
	Upload
	Counts VersionCounts `json:"version_counts"`
}
