package repository

import (
	"context"
	"errors"
	"fmt"

	"slide-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// postgresRunRepository реализует RunRepository для PostgreSQL.
type postgresRunRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRunRepository создает репозиторий журнала запусков.
func NewPostgresRunRepository(db *pgxpool.Pool, logger *zap.Logger) RunRepository {
	return &postgresRunRepository{db: db, logger: logger.Named("run_repository")}
}

// Save сохраняет запись журнала. Повторная запись с тем же id перезаписывает
// статусные поля (upsert) - воркер может дописать завершение запуска.
func (r *postgresRunRepository) Save(ctx context.Context, record *models.GenerationRecord) error {
	query := `
        INSERT INTO generation_runs
        (id, kind, session_id, topic, status, message, output_path, total_slides, processing_time_ms, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO UPDATE SET
            session_id = EXCLUDED.session_id,
            status = EXCLUDED.status,
            message = EXCLUDED.message,
            output_path = EXCLUDED.output_path,
            total_slides = EXCLUDED.total_slides,
            processing_time_ms = EXCLUDED.processing_time_ms,
            completed_at = EXCLUDED.completed_at;
    `
	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.Kind,
		record.SessionID,
		record.Topic,
		record.Status,
		record.Message,
		record.OutputPath,
		record.TotalSlides,
		record.ProcessingTimeMS,
		record.CreatedAt,
		record.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Ошибка сохранения записи журнала запусков",
			zap.String("run_id", record.ID), zap.Error(err))
		return fmt.Errorf("ошибка сохранения записи журнала '%s': %w", record.ID, err)
	}

	r.logger.Debug("Запись журнала запусков сохранена", zap.String("run_id", record.ID))
	return nil
}

// GetByID возвращает запись журнала по идентификатору запуска.
func (r *postgresRunRepository) GetByID(ctx context.Context, id string) (*models.GenerationRecord, error) {
	var record models.GenerationRecord
	query := `SELECT * FROM generation_runs WHERE id = $1`
	if err := pgxscan.Get(ctx, r.db, &record, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("ошибка чтения записи журнала '%s': %w", id, err)
	}
	return &record, nil
}

// ListBySessionID возвращает все запуски (генерация и правки) одной сессии.
func (r *postgresRunRepository) ListBySessionID(ctx context.Context, sessionID string) ([]*models.GenerationRecord, error) {
	var records []*models.GenerationRecord
	query := `SELECT * FROM generation_runs WHERE session_id = $1 ORDER BY created_at`
	if err := pgxscan.Select(ctx, r.db, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала сессии '%s': %w", sessionID, err)
	}
	return records, nil
}
