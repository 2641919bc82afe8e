package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"slide-server/internal/app"
	"slide-server/internal/config"
	"slide-server/internal/database"
	"slide-server/internal/logger"
	"slide-server/internal/messaging"
	"slide-server/internal/models"
	"slide-server/internal/orchestrator"
	"slide-server/internal/repository"
	pkgdatabase "slide-server/pkg/database"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	log.Println("Запуск воркера генерации презентаций...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogFormat})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer zapLogger.Sync()

	go startMetricsServer(cfg.WorkerMetricsPort, zapLogger)

	pipeline, err := app.BuildPipeline(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось собрать пайплайн генерации", zap.Error(err))
	}

	var runs repository.RunRepository
	if cfg.DatabaseEnabled() {
		db, err := pkgdatabase.New(context.Background(), pkgdatabase.Config{
			DSN:         cfg.GetDSN(),
			MaxConns:    int32(cfg.DBMaxConns),
			IdleTimeout: cfg.DBIdleTimeout,
		})
		if err != nil {
			zapLogger.Fatal("Не удалось подключиться к PostgreSQL",
				zap.String("dsn", cfg.GetMaskedDSN()), zap.Error(err))
		}
		defer db.Close()

		if err := database.ApplyMigrations(db.Pool); err != nil {
			zapLogger.Fatal("Не удалось применить миграции", zap.Error(err))
		}
		runs = repository.NewPostgresRunRepository(db.Pool, zapLogger)
	}

	conn, err := messaging.ConnectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer conn.Close()
	zapLogger.Info("Успешное подключение к RabbitMQ")

	ch, err := conn.Channel()
	if err != nil {
		zapLogger.Fatal("Не удалось открыть канал RabbitMQ", zap.Error(err))
	}
	defer ch.Close()

	notifier, err := messaging.NewRabbitMQNotifier(ch, cfg.NotifyQueueName)
	if err != nil {
		zapLogger.Fatal("Не удалось создать notifier", zap.Error(err))
	}

	handler := &taskHandler{
		generator: pipeline.Generator,
		editor:    pipeline.Editor,
		notifier:  notifier,
		runs:      runs,
		outputDir: cfg.OutputDir,
		logger:    zapLogger.Named("worker"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := messaging.NewTaskConsumer(conn, cfg.TaskQueueName, handler.handle, zapLogger)
	if err := consumer.Start(ctx); err != nil {
		zapLogger.Fatal("Не удалось запустить консьюмера задач", zap.Error(err))
	}

	zapLogger.Info("Воркер запущен, ожидание задач. Для выхода нажмите CTRL+C")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Получен сигнал завершения, остановка воркера...")

	cancel()
	if err := consumer.Stop(); err != nil {
		zapLogger.Error("Ошибка остановки консьюмера", zap.Error(err))
	}
	zapLogger.Info("Воркер остановлен")
}

// taskHandler выполняет задачи из очереди и публикует уведомления о результате.
type taskHandler struct {
	generator *orchestrator.Generator
	editor    *orchestrator.Editor
	notifier  messaging.Notifier
	runs      repository.RunRepository
	outputDir string
	logger    *zap.Logger
}

// handle обрабатывает одну задачу. Ошибка возвращается только при сбое
// уведомления: результат пайплайна (включая ошибочный конверт) - это
// нормальное завершение задачи.
func (h *taskHandler) handle(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	start := time.Now()

	var envelope models.Envelope
	switch payload.Kind {
	case messaging.TaskKindGenerate:
		outputPath := payload.OutputPath
		if outputPath == "" {
			outputPath = filepath.Join(h.outputDir, payload.TaskID+".pptx")
		}
		envelope = h.generator.Generate(ctx, orchestrator.GenerationRequest{
			Brief:      payload.Brief,
			OutputPath: outputPath,
			Parallel:   payload.Parallel,
			PDF:        payload.PDF,
		})
	case messaging.TaskKindEdit:
		envelope = h.editor.Edit(ctx, orchestrator.EditRequest{
			SessionPath:     payload.SessionPath,
			SectionIndex:    payload.SectionIndex,
			SlideIndex:      payload.SlideIndex,
			Instruction:     payload.Instruction,
			MergeOutputPath: payload.MergeOutputPath,
		})
	default:
		envelope = models.NewErrorEnvelope("Unknown task kind: " + payload.Kind)
	}

	h.saveRun(payload, envelope, start)

	notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.notifier.Notify(notifyCtx, messaging.NotificationPayload{
		TaskID:   payload.TaskID,
		Kind:     payload.Kind,
		Status:   envelope.Status,
		Envelope: envelope,
	})
}

func (h *taskHandler) saveRun(payload messaging.GenerationTaskPayload, envelope models.Envelope, start time.Time) {
	if h.runs == nil {
		return
	}
	record := models.NewRunRecord(uuid.NewString(), payload.Kind, payload.Brief.Topic, envelope, start)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.runs.Save(ctx, record); err != nil {
		h.logger.Error("Не удалось сохранить запись журнала запусков",
			zap.String("task_id", payload.TaskID), zap.Error(err))
	}
}

// startMetricsServer поднимает HTTP-сервер для /metrics и /health.
func startMetricsServer(port string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	logger.Info("Запуск HTTP-сервера метрик", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Fatal("Ошибка запуска сервера метрик", zap.Error(err))
	}
}
