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

const (
	stageSlideContent = "slide_content"
	stageSlideEdit    = "edit"
)

// SlideContentAgent разворачивает заготовку слайда в полный контент.
// Каждый вызов чист относительно входов: агент безопасно вызывается
// конкурентно для разных заготовок.
type SlideContentAgent struct {
	ai      service.AIClient
	prompts *service.PromptProvider
	logger  *zap.Logger
	opts    Options
}

// NewSlideContentAgent создает агента контента слайдов.
func NewSlideContentAgent(ai service.AIClient, prompts *service.PromptProvider, logger *zap.Logger, opts Options) *SlideContentAgent {
	return &SlideContentAgent{
		ai:      ai,
		prompts: prompts,
		logger:  logger.Named("slide_content_agent"),
		opts:    opts.withDefaults(),
	}
}

// slidePromptData - данные для шаблона промпта контента слайда.
type slidePromptData struct {
	Topic            string
	Audience         string
	Purpose          string
	PresentationName string
	SectionTitle     string
	SlideTitle       string
	TalkingPoints    string
}

// Expand генерирует полный контент слайда из заготовки и контекста плана.
func (a *SlideContentAgent) Expand(ctx context.Context, brief models.Brief, outlineTitle string, section models.Section, stub models.SlideStub) (*models.SlideContent, error) {
	systemPrompt, err := a.prompts.Render(service.SlideContentPromptFile, slidePromptData{
		Topic:            brief.Topic,
		Audience:         brief.Audience,
		Purpose:          brief.Purpose,
		PresentationName: outlineTitle,
		SectionTitle:     section.Title,
		SlideTitle:       stub.Title,
		TalkingPoints:    strings.Join(stub.TalkingPoints, "\n- "),
	})
	if err != nil {
		return nil, fmt.Errorf("slide content prompt: %w", err)
	}

	userInput := fmt.Sprintf("Expand the slide %q (section %q) into full slide content.", stub.Title, section.Title)

	return a.generate(ctx, stageSlideContent, systemPrompt, userInput, section.Index, stub.Index)
}

// editPromptData - данные для шаблона промпта правки слайда.
type editPromptData struct {
	Topic           string
	Audience        string
	Purpose         string
	SlideTitle      string
	CurrentContent  string
	CurrentNotes    string
	EditInstruction string
}

// Edit перегенерирует контент одного слайда по инструкции пользователя.
// Прежний контент передается модели как контекст; новый контент целиком
// заменяет старый по тому же адресу.
func (a *SlideContentAgent) Edit(ctx context.Context, brief models.Brief, current models.SlideContent, instruction string) (*models.SlideContent, error) {
	systemPrompt, err := a.prompts.Render(service.SlideEditPromptFile, editPromptData{
		Topic:           brief.Topic,
		Audience:        brief.Audience,
		Purpose:         brief.Purpose,
		SlideTitle:      current.Title,
		CurrentContent:  strings.Join(current.Content, "\n- "),
		CurrentNotes:    current.Notes,
		EditInstruction: instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("slide edit prompt: %w", err)
	}

	userInput := fmt.Sprintf("Rewrite the slide %q following the instruction: %s", current.Title, instruction)

	return a.generate(ctx, stageSlideEdit, systemPrompt, userInput, current.SectionIndex, current.SlideIndexInSection)
}

func (a *SlideContentAgent) generate(ctx context.Context, stage, systemPrompt, userInput string, sectionIndex, slideIndex int) (*models.SlideContent, error) {
	systemPrompt = a.opts.boundPrompt(a.logger, stage, systemPrompt)

	var content *models.SlideContent
	genErr := withRetry(ctx, a.logger, a.opts, stage, func(ctx context.Context) error {
		response, _, err := a.ai.GenerateText(ctx, stage, systemPrompt, userInput, a.params())
		if err != nil {
			return err
		}
		parsed, err := schemas.ParseSlideContent(response, sectionIndex, slideIndex)
		if err != nil {
			return err
		}
		content = parsed
		return nil
	})
	if genErr != nil {
		return nil, genErr
	}

	a.logger.Debug("Контент слайда сгенерирован",
		zap.Int("section_index", sectionIndex),
		zap.Int("slide_index", slideIndex),
		zap.String("title", content.Title))
	return content, nil
}

func (a *SlideContentAgent) params() service.GenerationParams {
	temp := 0.7
	maxTokens := a.opts.MaxTokens
	return service.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}
}
