package s3

import (
	"context"
	"io"
)

// S3Object определяет интерфейс для объектов S3
type S3Object interface {
	io.ReadCloser
	ContentLength() int64
}

// s3Object реализует интерфейс S3Object
type s3Object struct {
	io.ReadCloser
	contentLength int64
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

// Storage определяет интерфейс архивного хранилища бандлов артефактов.
// Архив не участвует в валидации и удалениях напрямую: все операции
// с ним выполняются по возможности и не блокируют жизненный цикл
type Storage interface {
	UploadBytes(key string, data []byte) error
	GetObject(ctx context.Context, key string) (S3Object, error)
	DeleteObject(key string) error
}
