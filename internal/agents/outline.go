package agents

import (
	"context"
	"fmt"

	"slide-server/internal/models"
	"slide-server/internal/schemas"
	"slide-server/internal/service"

	"go.uber.org/zap"
)

const stageOutline = "outline"

// OutlineAgent превращает бриф в структурированный план презентации:
// упорядоченные секции с заготовками слайдов.
type OutlineAgent struct {
	ai      service.AIClient
	prompts *service.PromptProvider
	logger  *zap.Logger
	opts    Options
}

// NewOutlineAgent создает агента синтеза плана.
func NewOutlineAgent(ai service.AIClient, prompts *service.PromptProvider, logger *zap.Logger, opts Options) *OutlineAgent {
	return &OutlineAgent{
		ai:      ai,
		prompts: prompts,
		logger:  logger.Named("outline_agent"),
		opts:    opts.withDefaults(),
	}
}

// outlinePromptData - данные для шаблона промпта плана.
type outlinePromptData struct {
	Topic            string
	Audience         string
	DurationMinutes  int
	Purpose          string
	SectionCount     int
	SlidesPerSection int
}

// Synthesize генерирует план для брифа. sectionCount и slidesPerSection -
// эвристика от длительности, передается оркестратором.
func (a *OutlineAgent) Synthesize(ctx context.Context, brief models.Brief, sectionCount, slidesPerSection int) (*models.Outline, error) {
	systemPrompt, err := a.prompts.Render(service.OutlinePromptFile, outlinePromptData{
		Topic:            brief.Topic,
		Audience:         brief.Audience,
		DurationMinutes:  brief.DurationMinutes,
		Purpose:          brief.Purpose,
		SectionCount:     sectionCount,
		SlidesPerSection: slidesPerSection,
	})
	if err != nil {
		return nil, fmt.Errorf("outline prompt: %w", err)
	}

	systemPrompt = a.opts.boundPrompt(a.logger, stageOutline, systemPrompt)
	userInput := fmt.Sprintf("Create a presentation outline about: %s", brief.Topic)

	var outline *models.Outline
	genErr := withRetry(ctx, a.logger, a.opts, stageOutline, func(ctx context.Context) error {
		response, _, err := a.ai.GenerateText(ctx, stageOutline, systemPrompt, userInput, a.params())
		if err != nil {
			return err
		}
		parsed, err := schemas.ParseOutline(response)
		if err != nil {
			return err
		}
		outline = parsed
		return nil
	})
	if genErr != nil {
		return nil, genErr
	}

	a.logger.Info("План сгенерирован",
		zap.String("title", outline.Title),
		zap.Int("sections", len(outline.Sections)),
		zap.Int("total_slides", outline.TotalSlides()))
	return outline, nil
}

func (a *OutlineAgent) params() service.GenerationParams {
	temp := 0.7
	maxTokens := a.opts.MaxTokens
	return service.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}
}
