package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"slide-server/internal/mocks"
	"slide-server/internal/models"
	"slide-server/internal/orchestrator"
	"slide-server/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testBrief полностью заполнен, чтобы нормализация не меняла его.
func testBrief() models.Brief {
	return models.Brief{
		Topic:             "AI в производстве",
		Audience:          "инженеры",
		DurationMinutes:   15,
		Purpose:           "inform",
		TemplateReference: "modern",
	}
}

// testOutline строит план 3 секции по 3 слайда.
func testOutline() *models.Outline {
	outline := &models.Outline{Title: "Deck"}
	for s := 0; s < 3; s++ {
		section := models.Section{Index: s, Title: fmt.Sprintf("Section %d", s)}
		for p := 0; p < 3; p++ {
			section.SlideStubs = append(section.SlideStubs, models.SlideStub{
				Index: p,
				Title: fmt.Sprintf("Slide %d-%d", s, p),
			})
		}
		outline.Sections = append(outline.Sections, section)
	}
	return outline
}

func slideFor(s, p int) *models.SlideContent {
	return &models.SlideContent{
		SectionIndex:        s,
		SlideIndexInSection: p,
		Title:               fmt.Sprintf("Slide %d-%d", s, p),
		Content:             []string{"point"},
	}
}

type generatorFixture struct {
	outliner *mocks.MockOutlineSynthesizer
	expander *mocks.MockContentExpander
	renderer *mocks.MockRenderer
	store    *session.Store
	gen      *orchestrator.Generator
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	store, err := session.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	f := &generatorFixture{
		outliner: mocks.NewMockOutlineSynthesizer(t),
		expander: mocks.NewMockContentExpander(t),
		renderer: mocks.NewMockRenderer(t),
		store:    store,
	}
	f.gen = orchestrator.NewGenerator(
		f.outliner,
		f.expander,
		mocks.PassthroughEnricher{},
		mocks.PassthroughEnricher{},
		f.renderer,
		store,
		orchestrator.GeneratorConfig{
			MaxWorkers:       4,
			SlidesPerSection: 3,
			SectionCount:     func(int) int { return 3 },
			WorkDir:          t.TempDir(),
		},
		zap.NewNop(),
	)
	return f
}

// expectAllExpansions настраивает успешное разворачивание всех заготовок плана.
func (f *generatorFixture) expectAllExpansions(brief models.Brief, outline *models.Outline) {
	for _, section := range outline.Sections {
		for _, stub := range section.SlideStubs {
			f.expander.On("Expand", mock.Anything, brief, outline.Title, section, stub).
				Return(slideFor(section.Index, stub.Index), nil).Once()
		}
	}
}

func (f *generatorFixture) expectAssembly(outputPath string) {
	f.renderer.On("ListTemplates", mock.Anything).Return([]string{"modern", "classic"}, nil).Once()
	f.renderer.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, _ models.SlideContent, slidePath string) string {
			return slidePath
		}, nil)
	f.renderer.On("MergeSlides", mock.Anything, mock.Anything, outputPath).Return(nil).Once()
}

func TestGenerator_Generate_Success(t *testing.T) {
	f := newGeneratorFixture(t)
	brief := testBrief()
	outline := testOutline()
	outputPath := t.TempDir() + "/deck.pptx"

	f.outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	f.expectAllExpansions(brief, outline)
	f.expectAssembly(outputPath)

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: outputPath,
		Parallel:   true,
	})

	require.Equal(t, models.StatusSuccess, envelope.Status)
	assert.Equal(t, "Presentation generated successfully", envelope.Message)

	data, ok := envelope.Data.(models.GenerationData)
	require.True(t, ok)
	require.Len(t, data.Slides, 9)
	assert.Equal(t, 9, data.Metadata.TotalSlides)
	assert.True(t, data.Metadata.ParallelProcessing)

	// Порядок и глобальные индексы детерминированы независимо от
	// порядка завершения параллельных задач
	for i, slide := range data.Slides {
		assert.Equal(t, i, slide.GlobalSlideIndex)
		assert.Equal(t, i/3, slide.SectionIndex)
		assert.Equal(t, i%3, slide.SlideIndexInSection)
	}

	// Сессия сохранена и загружается обратно
	saved, err := session.LoadPath(data.SessionPath)
	require.NoError(t, err)
	assert.Equal(t, data.SessionID, saved.SessionID)
	assert.Len(t, saved.Slides, 9)
	assert.Equal(t, outputPath, saved.OutputPath)

	f.outliner.AssertExpectations(t)
	f.expander.AssertExpectations(t)
	f.renderer.AssertExpectations(t)
}

func TestGenerator_Generate_SequentialMatchesParallel(t *testing.T) {
	f := newGeneratorFixture(t)
	brief := testBrief()
	outline := testOutline()
	outputPath := t.TempDir() + "/deck.pptx"

	f.outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	f.expectAllExpansions(brief, outline)
	f.expectAssembly(outputPath)

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: outputPath,
		Parallel:   false,
	})

	require.Equal(t, models.StatusSuccess, envelope.Status)
	data := envelope.Data.(models.GenerationData)
	assert.Len(t, data.Slides, 9)
	assert.False(t, data.Metadata.ParallelProcessing)
}

func TestGenerator_Generate_OutlineFailure(t *testing.T) {
	f := newGeneratorFixture(t)
	brief := testBrief()

	f.outliner.On("Synthesize", mock.Anything, brief, 3, 3).
		Return(nil, errors.New("provider down")).Once()

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: "/tmp/deck.pptx",
	})

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Equal(t, "Failed to generate presentation outline", envelope.Message)
	assert.Equal(t, struct{}{}, envelope.Data)
	f.expander.AssertNotCalled(t, "Expand")
}

func TestGenerator_Generate_AllSlidesFail(t *testing.T) {
	f := newGeneratorFixture(t)
	brief := testBrief()
	outline := testOutline()

	f.outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	f.expander.On("Expand", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("bad response"))

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: "/tmp/deck.pptx",
		Parallel:   true,
	})

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Equal(t, "Failed to generate any valid slides", envelope.Message)
	// До сборки дело не дошло
	f.renderer.AssertNotCalled(t, "ListTemplates")
	f.renderer.AssertNotCalled(t, "MergeSlides")
}

func TestGenerator_Generate_PartialSlideFailure(t *testing.T) {
	f := newGeneratorFixture(t)
	brief := testBrief()
	outline := testOutline()
	outputPath := t.TempDir() + "/deck.pptx"

	// Слайд (1,1) не разворачивается, остальные успешны
	for _, section := range outline.Sections {
		for _, stub := range section.SlideStubs {
			if section.Index == 1 && stub.Index == 1 {
				f.expander.On("Expand", mock.Anything, brief, outline.Title, section, stub).
					Return(nil, errors.New("malformed")).Once()
				continue
			}
			f.expander.On("Expand", mock.Anything, brief, outline.Title, section, stub).
				Return(slideFor(section.Index, stub.Index), nil).Once()
		}
	}
	f.outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	f.expectAssembly(outputPath)

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: outputPath,
		Parallel:   true,
	})

	require.Equal(t, models.StatusSuccess, envelope.Status)
	data := envelope.Data.(models.GenerationData)
	require.Len(t, data.Slides, 8)

	// Глобальные индексы непрерывны, пропуск закрыт
	for i, slide := range data.Slides {
		assert.Equal(t, i, slide.GlobalSlideIndex)
		assert.False(t, slide.SectionIndex == 1 && slide.SlideIndexInSection == 1)
	}
}

func TestGenerator_Generate_UnknownTemplate(t *testing.T) {
	f := newGeneratorFixture(t)
	brief := testBrief()
	brief.TemplateReference = "nonexistent"
	outline := testOutline()

	f.outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	f.expectAllExpansions(brief, outline)
	f.renderer.On("ListTemplates", mock.Anything).Return([]string{"modern", "classic"}, nil).Once()

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: "/tmp/deck.pptx",
	})

	// Неизвестный шаблон - жесткая ошибка, не тихий fallback
	require.Equal(t, models.StatusError, envelope.Status)
	assert.Contains(t, envelope.Message, "Failed to generate presentation")
	f.renderer.AssertNotCalled(t, "RenderSlide")
}

func TestGenerator_Generate_MergeFailure(t *testing.T) {
	f := newGeneratorFixture(t)
	brief := testBrief()
	outline := testOutline()
	outputPath := t.TempDir() + "/deck.pptx"

	f.outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	f.expectAllExpansions(brief, outline)
	f.renderer.On("ListTemplates", mock.Anything).Return([]string{"modern"}, nil).Once()
	f.renderer.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, _ models.SlideContent, slidePath string) string {
			return slidePath
		}, nil)
	f.renderer.On("MergeSlides", mock.Anything, mock.Anything, outputPath).
		Return(errors.New("renderer crashed")).Once()

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: outputPath,
	})

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Contains(t, envelope.Message, "Failed to merge presentation slides")
	assert.Contains(t, envelope.Message, "renderer crashed")
}

func TestGenerator_Generate_InvalidBrief(t *testing.T) {
	f := newGeneratorFixture(t)

	envelope := f.gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief: models.Brief{Topic: "", DurationMinutes: 10},
	})

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Contains(t, envelope.Message, "Failed to generate presentation")
	f.outliner.AssertNotCalled(t, "Synthesize")
}

func TestGenerator_Generate_EnrichmentDegrades(t *testing.T) {
	store, err := session.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	outliner := mocks.NewMockOutlineSynthesizer(t)
	expander := mocks.NewMockContentExpander(t)
	rend := mocks.NewMockRenderer(t)

	// Агент диаграмм всегда падает - слайды деградируют, генерация продолжается
	failingDiagram := mocks.NewMockEnricher(t)
	failingDiagram.On("Enrich", mock.Anything, mock.Anything).
		Return(models.SlideContent{}, errors.New("diagram backend down"))

	gen := orchestrator.NewGenerator(
		outliner, expander, failingDiagram, mocks.PassthroughEnricher{}, rend, store,
		orchestrator.GeneratorConfig{
			MaxWorkers:       2,
			SlidesPerSection: 3,
			SectionCount:     func(int) int { return 3 },
			WorkDir:          t.TempDir(),
		},
		zap.NewNop(),
	)

	brief := testBrief()
	outline := testOutline()
	outputPath := t.TempDir() + "/deck.pptx"

	outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	for _, section := range outline.Sections {
		for _, stub := range section.SlideStubs {
			slide := slideFor(section.Index, stub.Index)
			slide.HasDiagrams = true
			expander.On("Expand", mock.Anything, brief, outline.Title, section, stub).
				Return(slide, nil).Once()
		}
	}
	rend.On("ListTemplates", mock.Anything).Return([]string{"modern"}, nil).Once()
	rend.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, _ models.SlideContent, slidePath string) string {
			return slidePath
		}, nil)
	rend.On("MergeSlides", mock.Anything, mock.Anything, outputPath).Return(nil).Once()

	envelope := gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: outputPath,
	})

	require.Equal(t, models.StatusSuccess, envelope.Status)
	data := envelope.Data.(models.GenerationData)
	for _, slide := range data.Slides {
		assert.False(t, slide.HasDiagrams, "деградировавший слайд не должен заявлять диаграмму")
		assert.Nil(t, slide.Diagram)
	}
}

func TestGenerator_Generate_SessionSaveFailure(t *testing.T) {
	// Каталог сессий делаем файлом, чтобы запись гарантированно упала
	dir := t.TempDir()
	store, err := session.NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a dir"), 0o644))

	outliner := mocks.NewMockOutlineSynthesizer(t)
	expander := mocks.NewMockContentExpander(t)
	rend := mocks.NewMockRenderer(t)

	gen := orchestrator.NewGenerator(
		outliner, expander, mocks.PassthroughEnricher{}, mocks.PassthroughEnricher{}, rend, store,
		orchestrator.GeneratorConfig{
			SlidesPerSection: 3,
			SectionCount:     func(int) int { return 3 },
			WorkDir:          t.TempDir(),
		},
		zap.NewNop(),
	)

	brief := testBrief()
	outline := testOutline()
	outputPath := t.TempDir() + "/deck.pptx"

	outliner.On("Synthesize", mock.Anything, brief, 3, 3).Return(outline, nil).Once()
	for _, section := range outline.Sections {
		for _, stub := range section.SlideStubs {
			expander.On("Expand", mock.Anything, brief, outline.Title, section, stub).
				Return(slideFor(section.Index, stub.Index), nil).Once()
		}
	}
	rend.On("ListTemplates", mock.Anything).Return([]string{"modern"}, nil).Once()
	rend.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, _ models.SlideContent, slidePath string) string {
			return slidePath
		}, nil)
	rend.On("MergeSlides", mock.Anything, mock.Anything, outputPath).Return(nil).Once()

	envelope := gen.Generate(context.Background(), orchestrator.GenerationRequest{
		Brief:      brief,
		OutputPath: outputPath,
	})

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Contains(t, envelope.Message, "Failed to generate presentation")
}
