package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"modelhub/internal/domain"
)

// Store раскладывает прошедшие валидацию артефакты в каноническое дерево
//
//	{MediaDir}/{category}/{model-name}/v{N}/{model.pt,predict.py,schema.json}
//
// Это единственный долговременный внешний формат сервиса
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("media root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &Store{root: root}, nil
}

// VersionDir возвращает канонический каталог версии
func (s *Store) VersionDir(category, uploadName string, versionNumber int) string {
	return filepath.Join(s.root, category, uploadName, fmt.Sprintf("v%d", versionNumber))
}

// Materialize копирует присутствующие артефакты из каталога загрузки в
// каноническое дерево. Создание каталога идемпотентно, отсутствующие
// артефакты пропускаются
func (s *Store) Materialize(category, uploadName string, versionNumber int, stagingDir string) error {
	targetDir := s.VersionDir(category, uploadName, versionNumber)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create version dir: %w", err)
	}

	for _, name := range []string{domain.ModelFileName, domain.PredictFileName, domain.SchemaFileName} {
		src := filepath.Join(stagingDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(targetDir, name)); err != nil {
			return fmt.Errorf("failed to materialize %s: %w", name, err)
		}
	}

	return nil
}

// RemoveVersion удаляет каталог версии. Ошибки ввода-вывода не
// распространяются: логическое удаление не должно блокироваться
// отсутствующим файлом
func (s *Store) RemoveVersion(category, uploadName string, versionNumber int) {
	dir := s.VersionDir(category, uploadName, versionNumber)
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("[media] warning: failed to remove version dir %s: %v", dir, err)
	}
}

// RemoveUpload удаляет каталоги модели во всех известных категориях.
// Категория давно удаленных версий может быть неизвестна, поэтому
// перебираем весь фиксированный набор
func (s *Store) RemoveUpload(uploadName string) {
	for _, category := range domain.Categories {
		dir := filepath.Join(s.root, category, uploadName)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[media] warning: failed to remove upload dir %s: %v", dir, err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
