// slidegen - CLI генерации презентаций. Результат (конверт JSON) печатается
// в stdout, весь лог уходит в stderr. Код выхода 0 при успехе, 1 при ошибке.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"slide-server/internal/app"
	"slide-server/internal/config"
	"slide-server/internal/logger"
	"slide-server/internal/models"
	"slide-server/internal/orchestrator"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cliFlags struct {
	topic    string
	audience string
	duration int
	purpose  string
	template string
	output   string
	parallel bool
	pdf      bool

	edit            bool
	sessionPath     string
	sectionIndex    int
	slideIndex      int
	editPrompt      string
	mergeOutputPath string
}

func newRootCmd(flags *cliFlags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "slidegen",
		Short:         "Генерация презентаций и правка отдельных слайдов",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *flags)
		},
	}

	rootCmd.Flags().StringVar(&flags.topic, "topic", "", "тема презентации")
	rootCmd.Flags().StringVar(&flags.audience, "audience", "", "целевая аудитория")
	rootCmd.Flags().IntVar(&flags.duration, "duration", 0, "длительность выступления в минутах")
	rootCmd.Flags().StringVar(&flags.purpose, "purpose", "", "цель презентации")
	rootCmd.Flags().StringVar(&flags.template, "template", "", "имя шаблона оформления")
	rootCmd.Flags().StringVar(&flags.output, "output", "", "путь итоговой презентации")
	rootCmd.Flags().BoolVar(&flags.parallel, "parallel", true, "параллельная генерация слайдов")
	rootCmd.Flags().BoolVar(&flags.pdf, "pdf", true, "дополнительно конвертировать в PDF")

	rootCmd.Flags().BoolVar(&flags.edit, "edit", false, "режим правки одного слайда")
	rootCmd.Flags().StringVar(&flags.sessionPath, "session-path", "", "путь к файлу сессии")
	rootCmd.Flags().IntVar(&flags.sectionIndex, "section-index", -1, "индекс секции правимого слайда")
	rootCmd.Flags().IntVar(&flags.slideIndex, "slide-index", -1, "индекс слайда внутри секции")
	rootCmd.Flags().StringVar(&flags.editPrompt, "edit-prompt", "", "инструкция правки")
	rootCmd.Flags().StringVar(&flags.mergeOutputPath, "merge-output-path", "", "путь презентации после вклейки (пусто = перезаписать)")

	return rootCmd
}

func main() {
	var flags cliFlags
	rootCmd := newRootCmd(&flags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags cliFlags) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Лог строго в stderr: stdout зарезервирован под конверт результата
	zapLogger, err := logger.NewStderr(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	pipeline, err := app.BuildPipeline(cfg, zapLogger)
	if err != nil {
		return err
	}

	var envelope models.Envelope
	if flags.edit {
		envelope = runEdit(ctx, pipeline, flags)
	} else {
		envelope = runGenerate(ctx, pipeline, cfg, flags, zapLogger)
	}

	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if envelope.Status == models.StatusError {
		os.Exit(1)
	}
	return nil
}

func runGenerate(ctx context.Context, pipeline *app.Pipeline, cfg *config.Config, flags cliFlags, log *zap.Logger) models.Envelope {
	outputPath := flags.output
	if outputPath == "" {
		outputPath = filepath.Join(cfg.OutputDir, uuid.NewString()+".pptx")
		log.Info("Путь вывода не задан, сгенерирован", zap.String("output", outputPath))
	}

	return pipeline.Generator.Generate(ctx, orchestrator.GenerationRequest{
		Brief: models.Brief{
			Topic:             flags.topic,
			Audience:          flags.audience,
			DurationMinutes:   flags.duration,
			Purpose:           flags.purpose,
			TemplateReference: flags.template,
		},
		OutputPath: outputPath,
		Parallel:   flags.parallel,
		PDF:        flags.pdf,
	})
}

func runEdit(ctx context.Context, pipeline *app.Pipeline, flags cliFlags) models.Envelope {
	if flags.sessionPath == "" || flags.editPrompt == "" {
		return models.NewErrorEnvelope("Flags --session-path and --edit-prompt are required in edit mode")
	}

	return pipeline.Editor.Edit(ctx, orchestrator.EditRequest{
		SessionPath:     flags.sessionPath,
		SectionIndex:    flags.sectionIndex,
		SlideIndex:      flags.slideIndex,
		Instruction:     flags.editPrompt,
		MergeOutputPath: flags.mergeOutputPath,
	})
}
