// Package session - файловое хранилище сессий генерации.
// Одна сессия - один JSON файл; запись всегда copy-on-write:
// временный файл, fsync, атомарный rename. Упавшая правка оставляет
// прежний файл нетронутым.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"slide-server/internal/models"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store управляет файлами сессий в одном каталоге.
// Правки одной сессии сериализуются: мьютекс на путь внутри процесса
// плюс flock на файле для защиты от соседних процессов.
type Store struct {
	dir    string
	logger *zap.Logger

	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

// NewStore создает хранилище в каталоге dir (каталог создается при необходимости).
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions dir %s: %w", dir, err)
	}
	return &Store{
		dir:       dir,
		logger:    logger.Named("session_store"),
		pathLocks: make(map[string]*sync.Mutex),
	}, nil
}

// NewSessionID генерирует новый непрозрачный идентификатор сессии.
func NewSessionID() string {
	return uuid.NewString()
}

// Path возвращает путь файла сессии по идентификатору.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Load читает сессию по идентификатору.
func (s *Store) Load(sessionID string) (*models.Session, error) {
	return LoadPath(s.Path(sessionID))
}

// LoadPath читает сессию из произвольного файла (CLI передает путь напрямую).
func LoadPath(path string) (*models.Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, path)
		}
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session file %s: %w", path, err)
	}
	return &sess, nil
}

// Save записывает новую сессию атомарно. Используется путем генерации
// после успешной сборки презентации.
func (s *Store) Save(sess *models.Session) error {
	if sess.SessionID == "" {
		sess.SessionID = NewSessionID()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	if sess.Version == 0 {
		sess.Version = 1
	}

	path := s.Path(sess.SessionID)
	if err := writeAtomic(path, sess); err != nil {
		return err
	}
	s.logger.Info("Сессия сохранена",
		zap.String("session_id", sess.SessionID),
		zap.String("path", path),
		zap.Int("slides", len(sess.Slides)))
	return nil
}

// UpdatePath атомарно модифицирует сессию в файле path: под эксклюзивной
// блокировкой перечитывает текущее состояние, применяет fn, увеличивает
// Version и переписывает файл. Ошибка fn оставляет файл без изменений.
func (s *Store) UpdatePath(path string, fn func(*models.Session) error) (*models.Session, error) {
	pathLock := s.lockFor(path)
	pathLock.Lock()
	defer pathLock.Unlock()

	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock session file %s: %w", path, err)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.Warn("Не удалось снять блокировку файла сессии", zap.String("path", path), zap.Error(err))
		}
	}()

	// Перечитываем под блокировкой: параллельная правка могла изменить файл
	sess, err := LoadPath(path)
	if err != nil {
		return nil, err
	}
	expectedVersion := sess.Version

	if err := fn(sess); err != nil {
		return nil, err
	}

	// Защита от потерянного обновления: fn не должен трогать Version
	if sess.Version != expectedVersion {
		return nil, fmt.Errorf("%w: version changed during update", models.ErrSessionConflict)
	}
	sess.Version++
	sess.UpdatedAt = time.Now().UTC()

	if err := writeAtomic(path, sess); err != nil {
		return nil, err
	}
	s.logger.Info("Сессия обновлена",
		zap.String("session_id", sess.SessionID),
		zap.Int64("version", sess.Version))
	return sess, nil
}

func (s *Store) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.pathLocks[path]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.pathLocks[path] = l
	return l
}

// writeAtomic пишет сессию во временный файл рядом с целевым,
// делает fsync и атомарно переименовывает.
func writeAtomic(path string, sess *models.Session) error {
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op после успешного rename

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename session file: %w", err)
	}
	return nil
}
