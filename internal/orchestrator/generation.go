// Package orchestrator - конечные автоматы генерации презентации и правки
// одного слайда. Все внешние способности (синтез плана, контент, обогащение,
// сборка) передаются интерфейсами при конструировании, без глобальных реестров.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"slide-server/internal/models"
	"slide-server/internal/renderer"
	"slide-server/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Состояния автомата генерации. FAILED достижим из любого состояния.
type generationState string

const (
	stateBriefReceived   generationState = "BRIEF_RECEIVED"
	stateOutlineReady    generationState = "OUTLINE_READY"
	stateSlidesExpanding generationState = "SLIDES_EXPANDING"
	stateSlidesEnriching generationState = "SLIDES_ENRICHING"
	stateAssembling      generationState = "ASSEMBLING"
	stateDone            generationState = "DONE"
	stateFailed          generationState = "FAILED"
)

// OutlineSynthesizer - способность синтеза плана.
type OutlineSynthesizer interface {
	Synthesize(ctx context.Context, brief models.Brief, sectionCount, slidesPerSection int) (*models.Outline, error)
}

// ContentExpander - способность генерации и правки контента слайда.
type ContentExpander interface {
	Expand(ctx context.Context, brief models.Brief, outlineTitle string, section models.Section, stub models.SlideStub) (*models.SlideContent, error)
	Edit(ctx context.Context, brief models.Brief, current models.SlideContent, instruction string) (*models.SlideContent, error)
}

// Enricher - best-effort обогащение слайда (диаграмма или изображение).
type Enricher interface {
	Enrich(ctx context.Context, slide models.SlideContent) (models.SlideContent, error)
}

// SessionSaver - сохранение сессии после успешной сборки.
type SessionSaver interface {
	Save(sess *models.Session) error
	Path(sessionID string) string
}

// GenerationRequest - один запуск генерации.
type GenerationRequest struct {
	Brief      models.Brief
	OutputPath string
	Parallel   bool
	PDF        bool
}

// GeneratorConfig - настройки оркестратора генерации.
type GeneratorConfig struct {
	MaxWorkers       int
	SlidesPerSection int
	SectionCount     func(durationMinutes int) int
	WorkDir          string // каталог для пер-слайдовых артефактов рендера
}

// Generator проводит запуск генерации через все стадии до DONE либо FAILED.
type Generator struct {
	outliner OutlineSynthesizer
	expander ContentExpander
	diagram  Enricher
	image    Enricher
	renderer renderer.Renderer
	sessions SessionSaver
	cfg      GeneratorConfig
	logger   *zap.Logger
}

// NewGenerator создает оркестратор генерации.
func NewGenerator(
	outliner OutlineSynthesizer,
	expander ContentExpander,
	diagram Enricher,
	image Enricher,
	rend renderer.Renderer,
	sessions SessionSaver,
	cfg GeneratorConfig,
	logger *zap.Logger,
) *Generator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.SlidesPerSection <= 0 {
		cfg.SlidesPerSection = 3
	}
	if cfg.SectionCount == nil {
		cfg.SectionCount = func(minutes int) int {
			n := minutes / 5
			if n < 3 {
				n = 3
			}
			if n > 8 {
				n = 8
			}
			return n
		}
	}
	return &Generator{
		outliner: outliner,
		expander: expander,
		diagram:  diagram,
		image:    image,
		renderer: rend,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.Named("generator"),
	}
}

// Generate выполняет полный запуск генерации и всегда возвращает конверт:
// полный успех либо полная ошибка, промежуточных состояний наружу нет.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) models.Envelope {
	start := time.Now()
	envelope := g.run(ctx, req)
	generationDuration.Observe(time.Since(start).Seconds())
	generationsTotal.With(prometheus.Labels{"status": envelope.Status}).Inc()
	return envelope
}

func (g *Generator) run(ctx context.Context, req GenerationRequest) models.Envelope {
	state := stateBriefReceived
	log := g.logger.With(zap.String("topic", req.Brief.Topic))

	if err := req.Brief.Validate(); err != nil {
		return g.fail(log, state, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err))
	}
	brief := req.Brief.Normalized()

	// BRIEF_RECEIVED -> OUTLINE_READY
	sections := g.cfg.SectionCount(brief.DurationMinutes)
	outline, err := g.outliner.Synthesize(ctx, brief, sections, g.cfg.SlidesPerSection)
	if err != nil {
		log.Error("Синтез плана не удался", zap.Error(err))
		return g.fail(log, state, models.ErrOutlineFailed)
	}
	state = g.transition(log, state, stateOutlineReady)

	// OUTLINE_READY -> SLIDES_EXPANDING
	state = g.transition(log, state, stateSlidesExpanding)
	slides := g.expandSlides(ctx, brief, outline, req.Parallel)
	if len(slides) == 0 {
		return g.fail(log, state, models.ErrNoValidSlides)
	}

	// SLIDES_EXPANDING -> SLIDES_ENRICHING
	state = g.transition(log, state, stateSlidesEnriching)
	slides = g.enrichSlides(ctx, slides)

	// SLIDES_ENRICHING -> ASSEMBLING
	// Глобальные индексы пересчитываются непрерывно по выжившим слайдам.
	models.RecomputeGlobalIndexes(slides)
	state = g.transition(log, state, stateAssembling)

	if err := g.assemble(ctx, brief.TemplateReference, slides, req.OutputPath); err != nil {
		if errors.Is(err, models.ErrUnknownTemplate) {
			return g.fail(log, state, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err))
		}
		return g.fail(log, state, fmt.Errorf("%w: %v", models.ErrAssemblyFailed, err))
	}

	pdfPath := ""
	if req.PDF {
		// Конвертация в PDF best-effort: презентация уже собрана
		pdfPath = pdfPathFor(req.OutputPath)
		if err := g.renderer.ConvertToPDF(ctx, req.OutputPath, pdfPath); err != nil {
			log.Warn("Конвертация в PDF не удалась", zap.Error(err))
			pdfPath = ""
		}
	}

	// ASSEMBLING -> DONE: сохраняем сессию и строим успешный конверт
	sess := &models.Session{
		SessionID:         session.NewSessionID(),
		Brief:             brief,
		Outline:           *outline,
		Slides:            slides,
		TemplateReference: brief.TemplateReference,
		OutputPath:        req.OutputPath,
	}
	if err := g.sessions.Save(sess); err != nil {
		return g.fail(log, state, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err))
	}
	g.transition(log, state, stateDone)

	data := models.GenerationData{
		SessionID:        sess.SessionID,
		Outline:          *outline,
		Slides:           slides,
		PresentationPath: req.OutputPath,
		PDFPath:          pdfPath,
		SessionPath:      g.sessions.Path(sess.SessionID),
		Metadata: models.GenerationMeta{
			Topic:              brief.Topic,
			Audience:           brief.Audience,
			Duration:           brief.DurationMinutes,
			Purpose:            brief.Purpose,
			TotalSlides:        len(slides),
			ParallelProcessing: req.Parallel,
		},
	}
	return models.NewSuccessEnvelope("Presentation generated successfully", data)
}

// expandResult - результат одной задачи разворачивания заготовки.
type expandResult struct {
	content *models.SlideContent
	err     error
}

// expandSlides разворачивает все заготовки плана: параллельно через пул
// воркеров либо последовательно. Пер-слайдовые ошибки собираются, а не
// прерывают соседние задачи.
func (g *Generator) expandSlides(ctx context.Context, brief models.Brief, outline *models.Outline, parallel bool) []models.SlideContent {
	type job struct {
		section models.Section
		stub    models.SlideStub
	}

	var jobs []job
	for _, section := range outline.Sections {
		for _, stub := range section.SlideStubs {
			jobs = append(jobs, job{section: section, stub: stub})
		}
	}

	results := make([]expandResult, len(jobs))
	runOne := func(i int) {
		content, err := g.expander.Expand(ctx, brief, outline.Title, jobs[i].section, jobs[i].stub)
		results[i] = expandResult{content: content, err: err}
	}

	if parallel {
		sem := make(chan struct{}, g.cfg.MaxWorkers)
		var wg sync.WaitGroup
		for i := range jobs {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				runOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range jobs {
			runOne(i)
		}
	}

	var slides []models.SlideContent
	for i, res := range results {
		if res.err != nil {
			// Отбрасываем слайд, остальная колода продолжает собираться
			slideExpansionsTotal.With(prometheus.Labels{"status": "failed"}).Inc()
			g.logger.Warn("Слайд не развернут, отброшен",
				zap.Int("section_index", jobs[i].section.Index),
				zap.Int("slide_index", jobs[i].stub.Index),
				zap.Error(res.err))
			continue
		}
		slideExpansionsTotal.With(prometheus.Labels{"status": "success"}).Inc()
		slides = append(slides, *res.content)
	}
	return slides
}

// enrichSlides прогоняет обоих агентов обогащения по каждому слайду.
// Диаграмма и изображение независимы и идут конкурентно, но обе должны
// завершиться (или деградировать) до передачи слайда сборке.
func (g *Generator) enrichSlides(ctx context.Context, slides []models.SlideContent) []models.SlideContent {
	for i := range slides {
		var wg sync.WaitGroup
		var diagramSlide, imageSlide models.SlideContent
		var diagramErr, imageErr error

		wg.Add(2)
		go func(s models.SlideContent) {
			defer wg.Done()
			diagramSlide, diagramErr = g.diagram.Enrich(ctx, s)
		}(slides[i])
		go func(s models.SlideContent) {
			defer wg.Done()
			imageSlide, imageErr = g.image.Enrich(ctx, s)
		}(slides[i])
		wg.Wait()

		// Сливаем независимые результаты обратно в один слайд
		if diagramErr != nil {
			slides[i].HasDiagrams = false
			enrichmentsTotal.With(prometheus.Labels{"agent": "diagram", "status": "degraded"}).Inc()
			g.logger.Warn("Обогащение диаграммой деградировало",
				zap.Int("global_index", slides[i].GlobalSlideIndex), zap.Error(diagramErr))
		} else {
			slides[i].Diagram = diagramSlide.Diagram
			slides[i].HasDiagrams = diagramSlide.HasDiagrams && diagramSlide.Diagram != nil
			enrichmentsTotal.With(prometheus.Labels{"agent": "diagram", "status": enrichStatus(slides[i].HasDiagrams)}).Inc()
		}
		if imageErr != nil {
			slides[i].HasImages = false
			enrichmentsTotal.With(prometheus.Labels{"agent": "image", "status": "degraded"}).Inc()
			g.logger.Warn("Обогащение изображением деградировало",
				zap.Int("global_index", slides[i].GlobalSlideIndex), zap.Error(imageErr))
		} else {
			slides[i].Image = imageSlide.Image
			slides[i].HasImages = imageSlide.HasImages && imageSlide.Image != nil
			enrichmentsTotal.With(prometheus.Labels{"agent": "image", "status": enrichStatus(slides[i].HasImages)}).Inc()
		}
	}
	return slides
}

func enrichStatus(enriched bool) string {
	if enriched {
		return "success"
	}
	return "skipped"
}

// assemble проверяет шаблон, рендерит каждый слайд в отдельный файл
// во временном каталоге и собирает их в итоговую презентацию.
func (g *Generator) assemble(ctx context.Context, template string, slides []models.SlideContent, outputPath string) error {
	templates, err := g.renderer.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if !containsTemplate(templates, template) {
		// Неизвестный шаблон - жесткая ошибка, не тихий fallback
		return fmt.Errorf("%w: %q", models.ErrUnknownTemplate, template)
	}

	workDir, err := os.MkdirTemp(g.cfg.WorkDir, "slides-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	slidePaths := make([]string, 0, len(slides))
	for _, slide := range slides {
		slidePath := filepath.Join(workDir, fmt.Sprintf("slide_%03d.pptx", slide.GlobalSlideIndex))
		rendered, err := g.renderer.RenderSlide(ctx, template, slide, slidePath)
		if err != nil {
			return fmt.Errorf("failed to render slide %d: %w", slide.GlobalSlideIndex, err)
		}
		slidePaths = append(slidePaths, rendered)
	}

	if err := g.renderer.MergeSlides(ctx, slidePaths, outputPath); err != nil {
		return err
	}
	return nil
}

func containsTemplate(templates []string, name string) bool {
	for _, t := range templates {
		if t == name {
			return true
		}
	}
	return false
}

// pdfPathFor выводит путь PDF из пути презентации.
func pdfPathFor(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".pdf"
}

func (g *Generator) transition(log *zap.Logger, from, to generationState) generationState {
	log.Info("Переход стадии генерации", zap.String("from", string(from)), zap.String("to", string(to)))
	return to
}

// fail строит конверт ошибки. Текст ошибки и есть пользовательское сообщение.
func (g *Generator) fail(log *zap.Logger, state generationState, err error) models.Envelope {
	log.Error("Генерация завершилась ошибкой",
		zap.String("state", string(state)),
		zap.Error(err))
	return models.NewErrorEnvelope(err.Error())
}
