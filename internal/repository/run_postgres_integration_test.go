package repository_test // Используем _test пакет для изоляции

import (
	"context"
	"testing"
	"time"

	"slide-server/internal/database"
	"slide-server/internal/models"
	"slide-server/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RunRepositorySuite поднимает PostgreSQL в контейнере и гоняет репозиторий
// журнала запусков по реальной схеме.
type RunRepositorySuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	repo        repository.RunRepository
}

func (s *RunRepositorySuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get postgres connection string")

	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	require.NoError(s.T(), database.ApplyMigrations(s.pool), "Failed to apply migrations")

	s.repo = repository.NewPostgresRunRepository(s.pool, zap.NewNop())
}

func (s *RunRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *RunRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE generation_runs")
	require.NoError(s.T(), err, "Failed to truncate generation_runs table")
}

func TestRunRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RunRepositorySuite))
}

func (s *RunRepositorySuite) testRecord(id, sessionID string) *models.GenerationRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.GenerationRecord{
		ID:               id,
		Kind:             models.RunKindGenerate,
		SessionID:        sessionID,
		Topic:            "AI в производстве",
		Status:           models.StatusSuccess,
		Message:          "Presentation generated successfully",
		OutputPath:       "/tmp/deck.pptx",
		TotalSlides:      9,
		ProcessingTimeMS: 4200,
		CreatedAt:        now,
		CompletedAt:      &now,
	}
}

func (s *RunRepositorySuite) TestSaveAndGetByID() {
	t := s.T()
	record := s.testRecord("run-1", "sess-1")

	require.NoError(t, s.repo.Save(s.ctx, record))

	got, err := s.repo.GetByID(s.ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, record.ID, got.ID)
	require.Equal(t, record.Kind, got.Kind)
	require.Equal(t, record.SessionID, got.SessionID)
	require.Equal(t, record.Status, got.Status)
	require.Equal(t, record.Message, got.Message)
	require.Equal(t, record.TotalSlides, got.TotalSlides)
	require.Equal(t, record.ProcessingTimeMS, got.ProcessingTimeMS)
	require.NotNil(t, got.CompletedAt)
}

func (s *RunRepositorySuite) TestSaveIsUpsert() {
	t := s.T()
	record := s.testRecord("run-upsert", "sess-1")
	require.NoError(t, s.repo.Save(s.ctx, record))

	// Повторная запись с тем же id дописывает статусные поля
	record.Status = models.StatusError
	record.Message = "Failed to generate presentation"
	record.TotalSlides = 0
	require.NoError(t, s.repo.Save(s.ctx, record))

	got, err := s.repo.GetByID(s.ctx, "run-upsert")
	require.NoError(t, err)
	require.Equal(t, models.StatusError, got.Status)
	require.Equal(t, "Failed to generate presentation", got.Message)
	require.Equal(t, 0, got.TotalSlides)
}

func (s *RunRepositorySuite) TestGetByID_NotFound() {
	t := s.T()
	_, err := s.repo.GetByID(s.ctx, "no-such-run")
	require.ErrorIs(t, err, repository.ErrRunNotFound)
}

func (s *RunRepositorySuite) TestListBySessionID() {
	t := s.T()

	first := s.testRecord("run-a", "sess-list")
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	second := s.testRecord("run-b", "sess-list")
	second.Kind = models.RunKindEdit
	second.CreatedAt = time.Now().UTC().Add(-1 * time.Minute)
	other := s.testRecord("run-c", "sess-other")

	require.NoError(t, s.repo.Save(s.ctx, first))
	require.NoError(t, s.repo.Save(s.ctx, second))
	require.NoError(t, s.repo.Save(s.ctx, other))

	records, err := s.repo.ListBySessionID(s.ctx, "sess-list")
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Сортировка по времени создания
	require.Equal(t, "run-a", records[0].ID)
	require.Equal(t, "run-b", records[1].ID)

	empty, err := s.repo.ListBySessionID(s.ctx, "sess-unknown")
	require.NoError(t, err)
	require.Empty(t, empty)
}
