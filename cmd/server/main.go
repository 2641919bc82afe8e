package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slide-server/internal/api"
	"slide-server/internal/app"
	"slide-server/internal/config"
	"slide-server/internal/database"
	"slide-server/internal/logger"
	"slide-server/internal/repository"
	pkgdatabase "slide-server/pkg/database"
	"slide-server/pkg/taskmanager"

	"go.uber.org/zap"
)

func main() {
	// Стандартный log для самых ранних ошибок, до инициализации zap
	log.Println("Запуск сервера генерации презентаций...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogFormat})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Логгер инициализирован", zap.String("logLevel", cfg.LogLevel))

	pipeline, err := app.BuildPipeline(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось собрать пайплайн генерации", zap.Error(err))
	}

	// Журнал запусков в PostgreSQL опционален
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
		zapLogger.Info("Журнал запусков в PostgreSQL включен")
	} else {
		zapLogger.Info("PostgreSQL не настроен, журнал запусков выключен")
	}

	tm, err := taskmanager.New(taskmanager.Config{MaxTasks: cfg.MaxActiveTasks})
	if err != nil {
		zapLogger.Fatal("Не удалось создать менеджер задач", zap.Error(err))
	}

	// Периодическая уборка завершенных задач
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.TaskRetention)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tm.CleanupTasks(cfg.TaskRetention)
			case <-cleanupDone:
				return
			}
		}
	}()

	handler := api.NewPresentationHandler(
		pipeline.Generator,
		pipeline.Editor,
		pipeline.Sessions,
		pipeline.Renderer,
		runs,
		tm,
		cfg.OutputDir,
		zapLogger,
	)
	router := api.NewRouter(cfg, handler, zapLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zapLogger.Info("HTTP сервер запускается", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Получен сигнал завершения, начинаем остановку сервера...")
	close(cleanupDone)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Ошибка при остановке HTTP сервера", zap.Error(err))
	}
	if err := tm.Shutdown(ctx); err != nil {
		zapLogger.Warn("Не все задачи завершились до таймаута", zap.Error(err))
	}

	zapLogger.Info("Сервер успешно остановлен")
}
