package agents

import (
	"context"
	"fmt"
	"strings"

	"slide-server/internal/models"
	"slide-server/internal/schemas"
	"slide-server/internal/service"

	"go.uber.org/zap"
)

const stageDiagram = "diagram"

// Виды диаграмм, которые умеет просить генератор.
const (
	DiagramTypeFlowchart = "flowchart"
	DiagramTypeChart     = "chart"
)

// chartKeywords - ключевые слова, по которым контент слайда распознается
// как числовой график, а не блок-схема.
var chartKeywords = []string{
	"chart", "graph", "statistics", "percentage", "trend",
	"comparison", "data", "growth", "decline", "rate",
}

// DiagramAgent генерирует mermaid-разметку диаграммы для слайда,
// запросившего ее (has_diagrams). Строго best-effort: любая ошибка
// деградирует слайд до версии без диаграммы.
type DiagramAgent struct {
	ai      service.AIClient
	prompts *service.PromptProvider
	logger  *zap.Logger
	opts    Options
}

// NewDiagramAgent создает агента диаграмм.
func NewDiagramAgent(ai service.AIClient, prompts *service.PromptProvider, logger *zap.Logger, opts Options) *DiagramAgent {
	return &DiagramAgent{
		ai:      ai,
		prompts: prompts,
		logger:  logger.Named("diagram_agent"),
		opts:    opts.withDefaults(),
	}
}

// DetectDiagramType выбирает вид диаграммы по контенту и ключевым словам слайда.
func DetectDiagramType(slide models.SlideContent) string {
	haystack := strings.ToLower(slide.Title + " " + strings.Join(slide.Content, " ") + " " + strings.Join(slide.Keywords, " "))
	for _, kw := range chartKeywords {
		if strings.Contains(haystack, kw) {
			return DiagramTypeChart
		}
	}
	return DiagramTypeFlowchart
}

// diagramPromptData - данные для шаблона промпта диаграммы.
type diagramPromptData struct {
	SlideTitle  string
	Content     string
	DiagramType string
}

// Enrich генерирует диаграмму для слайда. Если слайд диаграмму не запрашивал,
// возвращает его без изменений. Ошибка генерации возвращается вызывающему,
// который деградирует слайд (флаг сбрасывается, пайплайн продолжается).
func (a *DiagramAgent) Enrich(ctx context.Context, slide models.SlideContent) (models.SlideContent, error) {
	if !slide.HasDiagrams {
		return slide, nil
	}

	diagramType := DetectDiagramType(slide)
	systemPrompt, err := a.prompts.Render(service.DiagramPromptFile, diagramPromptData{
		SlideTitle:  slide.Title,
		Content:     strings.Join(slide.Content, "\n- "),
		DiagramType: diagramType,
	})
	if err != nil {
		return slide, fmt.Errorf("diagram prompt: %w", err)
	}

	systemPrompt = a.opts.boundPrompt(a.logger, stageDiagram, systemPrompt)
	userInput := fmt.Sprintf("Generate a mermaid %s diagram for the slide %q.", diagramType, slide.Title)

	var spec *models.DiagramSpec
	genErr := withRetry(ctx, a.logger, a.opts, stageDiagram, func(ctx context.Context) error {
		response, _, err := a.ai.GenerateText(ctx, stageDiagram, systemPrompt, userInput, a.params())
		if err != nil {
			return err
		}
		parsed, err := schemas.ParseDiagram(response, diagramType)
		if err != nil {
			return err
		}
		spec = parsed
		return nil
	})
	if genErr != nil {
		return slide, genErr
	}

	slide.Diagram = spec
	a.logger.Debug("Диаграмма сгенерирована",
		zap.Int("section_index", slide.SectionIndex),
		zap.Int("slide_index", slide.SlideIndexInSection),
		zap.String("type", diagramType))
	return slide, nil
}

func (a *DiagramAgent) params() service.GenerationParams {
	temp := 0.3 // Диаграммы требуют строгой разметки, температуру держим низкой
	maxTokens := a.opts.MaxTokens
	return service.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}
}
