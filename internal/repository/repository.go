package repository

import (
	"context"
	"errors"

	"slide-server/internal/models"
)

// ErrRunNotFound - запись журнала с таким идентификатором отсутствует.
var ErrRunNotFound = errors.New("run record not found")

// RunRepository определяет методы для работы с журналом запусков пайплайна.
type RunRepository interface {
	Save(ctx context.Context, record *models.GenerationRecord) error
	GetByID(ctx context.Context, id string) (*models.GenerationRecord, error)
	ListBySessionID(ctx context.Context, sessionID string) ([]*models.GenerationRecord, error)
}
