package agents_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slide-server/internal/agents"
	"slide-server/internal/mocks"
	"slide-server/internal/models"
	"slide-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupPrompts создает временный каталог с минимальными шаблонами промптов.
func setupPrompts(t *testing.T) *service.PromptProvider {
	dir := t.TempDir()
	files := map[string]string{
		service.OutlinePromptFile:      "Outline for {{.Topic}} ({{.SectionCount}} sections, {{.SlidesPerSection}} slides each)",
		service.SlideContentPromptFile: "Slide {{.SlideTitle}} in {{.SectionTitle}} about {{.Topic}}",
		service.SlideEditPromptFile:    "Edit {{.SlideTitle}}: {{.EditInstruction}}",
		service.DiagramPromptFile:      "Diagram {{.DiagramType}} for {{.SlideTitle}}",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return service.NewPromptProvider(dir)
}

func fastOpts() agents.Options {
	return agents.Options{MaxAttempts: 2, BaseRetryDelay: time.Millisecond}
}

const outlineResponse = `{
  "title": "Deck",
  "sections": [
    {"title": "Intro", "slides": [{"title": "Hello", "talking_points": ["a"]}]}
  ]
}`

func TestOutlineAgent_Synthesize(t *testing.T) {
	prompts := setupPrompts(t)
	brief := models.Brief{Topic: "Go", Audience: "devs", DurationMinutes: 15, Purpose: "inform"}

	t.Run("success on first attempt", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "outline", mock.Anything, mock.Anything, mock.Anything,
		).Return(outlineResponse, service.UsageInfo{}, nil).Once()

		agent := agents.NewOutlineAgent(mockAI, prompts, zap.NewNop(), fastOpts())
		outline, err := agent.Synthesize(context.Background(), brief, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, "Deck", outline.Title)
		require.Len(t, outline.Sections, 1)
		mockAI.AssertExpectations(t)
	})

	t.Run("retries after transient failure", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "outline", mock.Anything, mock.Anything, mock.Anything,
		).Return("", service.UsageInfo{}, errors.New("timeout")).Once()
		mockAI.On("GenerateText",
			mock.Anything, "outline", mock.Anything, mock.Anything, mock.Anything,
		).Return(outlineResponse, service.UsageInfo{}, nil).Once()

		agent := agents.NewOutlineAgent(mockAI, prompts, zap.NewNop(), fastOpts())
		outline, err := agent.Synthesize(context.Background(), brief, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, "Deck", outline.Title)
		mockAI.AssertExpectations(t)
	})

	t.Run("malformed response counts as failed attempt", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "outline", mock.Anything, mock.Anything, mock.Anything,
		).Return("это не JSON", service.UsageInfo{}, nil).Twice()

		agent := agents.NewOutlineAgent(mockAI, prompts, zap.NewNop(), fastOpts())
		_, err := agent.Synthesize(context.Background(), brief, 3, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrMalformedResponse)
		mockAI.AssertExpectations(t)
	})
}

const slideResponse = `{
  "title": "Hello",
  "content": ["point one", "point two"],
  "notes": "say hi",
  "keywords": ["go"],
  "has_images": false,
  "has_diagrams": true
}`

func TestSlideContentAgent(t *testing.T) {
	prompts := setupPrompts(t)
	brief := models.Brief{Topic: "Go", Audience: "devs", DurationMinutes: 15, Purpose: "inform"}

	t.Run("expand", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "slide_content", mock.Anything, mock.Anything, mock.Anything,
		).Return(slideResponse, service.UsageInfo{}, nil).Once()

		agent := agents.NewSlideContentAgent(mockAI, prompts, zap.NewNop(), fastOpts())
		section := models.Section{Index: 1, Title: "Body"}
		stub := models.SlideStub{Index: 2, Title: "Hello", TalkingPoints: []string{"a"}}

		slide, err := agent.Expand(context.Background(), brief, "Deck", section, stub)
		require.NoError(t, err)
		assert.Equal(t, 1, slide.SectionIndex)
		assert.Equal(t, 2, slide.SlideIndexInSection)
		assert.True(t, slide.HasDiagrams)
		mockAI.AssertExpectations(t)
	})

	t.Run("system prompt trimmed to context budget", func(t *testing.T) {
		// Шаблон, разворачивающий все тезисы: на длинной заготовке промпт
		// без усечения выходит далеко за бюджет
		dir := t.TempDir()
		template := "Slide {{.SlideTitle}} about {{.Topic}}:\n- {{.TalkingPoints}}"
		require.NoError(t, os.WriteFile(filepath.Join(dir, service.SlideContentPromptFile), []byte(template), 0o644))
		bigPrompts := service.NewPromptProvider(dir)

		var sentPrompt string
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "slide_content", mock.Anything, mock.Anything, mock.Anything,
		).Run(func(args mock.Arguments) {
			sentPrompt = args.String(2)
		}).Return(slideResponse, service.UsageInfo{}, nil).Once()

		opts := fastOpts()
		opts.Model = "gpt-4o-mini"
		opts.ContextLimit = 60

		points := make([]string, 200)
		for i := range points {
			points[i] = "очень подробный тезис о производственном процессе"
		}
		stub := models.SlideStub{Index: 0, Title: "Hello", TalkingPoints: points}

		agent := agents.NewSlideContentAgent(mockAI, bigPrompts, zap.NewNop(), opts)
		_, err := agent.Expand(context.Background(), brief, "Deck", models.Section{Index: 0, Title: "Body"}, stub)
		require.NoError(t, err)

		// До генератора дошел промпт в пределах бюджета, с сохраненным началом
		assert.LessOrEqual(t, service.CountTokens(opts.Model, sentPrompt), opts.ContextLimit)
		assert.True(t, strings.HasPrefix(sentPrompt, "Slide Hello about Go"))
		mockAI.AssertExpectations(t)
	})

	t.Run("edit keeps slide address", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "edit", mock.Anything, mock.Anything, mock.Anything,
		).Return(slideResponse, service.UsageInfo{}, nil).Once()

		agent := agents.NewSlideContentAgent(mockAI, prompts, zap.NewNop(), fastOpts())
		current := models.SlideContent{SectionIndex: 0, SlideIndexInSection: 1, Title: "Old", Content: []string{"x"}}

		slide, err := agent.Edit(context.Background(), brief, current, "сделай короче")
		require.NoError(t, err)
		assert.Equal(t, 0, slide.SectionIndex)
		assert.Equal(t, 1, slide.SlideIndexInSection)
		assert.Equal(t, "Hello", slide.Title)
		mockAI.AssertExpectations(t)
	})
}

func TestDetectDiagramType(t *testing.T) {
	flow := models.SlideContent{Title: "Процесс деплоя", Content: []string{"шаг 1", "шаг 2"}}
	assert.Equal(t, agents.DiagramTypeFlowchart, agents.DetectDiagramType(flow))

	chart := models.SlideContent{Title: "Adoption statistics", Content: []string{"growth 40%"}}
	assert.Equal(t, agents.DiagramTypeChart, agents.DetectDiagramType(chart))

	byKeyword := models.SlideContent{Title: "Результаты", Keywords: []string{"comparison"}}
	assert.Equal(t, agents.DiagramTypeChart, agents.DetectDiagramType(byKeyword))
}

func TestDiagramAgent_Enrich(t *testing.T) {
	prompts := setupPrompts(t)

	t.Run("skips slides without diagram flag", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		agent := agents.NewDiagramAgent(mockAI, prompts, zap.NewNop(), fastOpts())

		slide := models.SlideContent{Title: "Plain", HasDiagrams: false}
		enriched, err := agent.Enrich(context.Background(), slide)
		require.NoError(t, err)
		assert.Nil(t, enriched.Diagram)
		// Генератор не вызывался вовсе
		mockAI.AssertNotCalled(t, "GenerateText")
	})

	t.Run("attaches generated diagram", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "diagram", mock.Anything, mock.Anything, mock.Anything,
		).Return("```mermaid\nflowchart TD\n  A-->B\n```", service.UsageInfo{}, nil).Once()

		agent := agents.NewDiagramAgent(mockAI, prompts, zap.NewNop(), fastOpts())
		slide := models.SlideContent{Title: "Процесс", Content: []string{"шаги"}, HasDiagrams: true}

		enriched, err := agent.Enrich(context.Background(), slide)
		require.NoError(t, err)
		require.NotNil(t, enriched.Diagram)
		assert.Equal(t, agents.DiagramTypeFlowchart, enriched.Diagram.Type)
		assert.Contains(t, enriched.Diagram.Source, "flowchart TD")
		mockAI.AssertExpectations(t)
	})

	t.Run("returns error after exhausted retries", func(t *testing.T) {
		mockAI := mocks.NewMockAIClient(t)
		mockAI.On("GenerateText",
			mock.Anything, "diagram", mock.Anything, mock.Anything, mock.Anything,
		).Return("", service.UsageInfo{}, errors.New("unavailable")).Twice()

		agent := agents.NewDiagramAgent(mockAI, prompts, zap.NewNop(), fastOpts())
		slide := models.SlideContent{Title: "Процесс", HasDiagrams: true}

		_, err := agent.Enrich(context.Background(), slide)
		require.Error(t, err)
		mockAI.AssertExpectations(t)
	})
}

func TestImageAgent_Enrich(t *testing.T) {
	t.Run("skips slides without image flag", func(t *testing.T) {
		searcher := mocks.NewMockImageSearcher(t)
		agent := agents.NewImageAgent(searcher, zap.NewNop())

		slide := models.SlideContent{Title: "Plain", HasImages: false}
		enriched, err := agent.Enrich(context.Background(), slide)
		require.NoError(t, err)
		assert.Nil(t, enriched.Image)
		searcher.AssertNotCalled(t, "SearchImages")
	})

	t.Run("picks first result with url", func(t *testing.T) {
		searcher := mocks.NewMockImageSearcher(t)
		searcher.On("SearchImages", mock.Anything, mock.Anything, mock.Anything).
			Return([]models.ImageReference{
				{URL: "", Title: "broken"},
				{URL: "https://img.example/1.png", Title: "ok"},
			}, nil).Once()

		agent := agents.NewImageAgent(searcher, zap.NewNop())
		slide := models.SlideContent{Title: "Завод", HasImages: true, Keywords: []string{"factory"}}

		enriched, err := agent.Enrich(context.Background(), slide)
		require.NoError(t, err)
		require.NotNil(t, enriched.Image)
		assert.Equal(t, "https://img.example/1.png", enriched.Image.URL)
		searcher.AssertExpectations(t)
	})

	t.Run("nil searcher degrades", func(t *testing.T) {
		agent := agents.NewImageAgent(nil, zap.NewNop())
		slide := models.SlideContent{Title: "Завод", HasImages: true}
		_, err := agent.Enrich(context.Background(), slide)
		require.Error(t, err)
	})
}
