package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"slide-server/internal/models"
	"slide-server/internal/renderer"
	"slide-server/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Состояния автомата правки. FAILED достижим из любого состояния.
type editState string

const (
	stateRequestReceived   editState = "REQUEST_RECEIVED"
	stateSessionLoaded     editState = "SESSION_LOADED"
	stateSlideLocated      editState = "SLIDE_LOCATED"
	stateContentRegenerate editState = "CONTENT_REGENERATED"
	stateSlideRendered     editState = "SLIDE_RENDERED"
	stateMerged            editState = "MERGED"
)

// SessionUpdater - атомарная модификация файла сессии.
type SessionUpdater interface {
	UpdatePath(path string, fn func(*models.Session) error) (*models.Session, error)
}

// EditRequest - один запрос правки одного слайда.
type EditRequest struct {
	SessionPath     string
	SectionIndex    int
	SlideIndex      int
	Instruction     string
	MergeOutputPath string // пусто = перезаписать output_path сессии
}

// EditorConfig - настройки оркестратора правки.
type EditorConfig struct {
	WorkDir string
}

// Editor выполняет локализованную правку одного слайда: перегенерация
// контента, рендер одного слайда и вклейка его в готовую презентацию
// без перерендера остальных.
type Editor struct {
	expander ContentExpander
	diagram  Enricher
	image    Enricher
	renderer renderer.Renderer
	sessions SessionUpdater
	cfg      EditorConfig
	logger   *zap.Logger
}

// NewEditor создает оркестратор правки.
func NewEditor(
	expander ContentExpander,
	diagram Enricher,
	image Enricher,
	rend renderer.Renderer,
	sessions SessionUpdater,
	cfg EditorConfig,
	logger *zap.Logger,
) *Editor {
	return &Editor{
		expander: expander,
		diagram:  diagram,
		image:    image,
		renderer: rend,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.Named("editor"),
	}
}

// Edit выполняет полный цикл правки и всегда возвращает конверт.
// Любая ошибка до слияния оставляет и файл сессии, и презентацию нетронутыми.
func (e *Editor) Edit(ctx context.Context, req EditRequest) models.Envelope {
	envelope := e.run(ctx, req)
	editsTotal.With(prometheus.Labels{"status": envelope.Status}).Inc()
	return envelope
}

func (e *Editor) run(ctx context.Context, req EditRequest) models.Envelope {
	state := stateRequestReceived
	log := e.logger.With(
		zap.String("session_path", req.SessionPath),
		zap.Int("section_index", req.SectionIndex),
		zap.Int("slide_index", req.SlideIndex))

	// REQUEST_RECEIVED -> SESSION_LOADED
	sess, err := session.LoadPath(req.SessionPath)
	if err != nil {
		return e.fail(log, state, fmt.Errorf("%w: %v", models.ErrEditFailed, err))
	}
	state = e.transition(log, state, stateSessionLoaded)

	// SESSION_LOADED -> SLIDE_LOCATED
	current, err := sess.FindSlide(req.SectionIndex, req.SlideIndex)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidSlideAddress):
			return e.fail(log, state, models.ErrInvalidSlideAddress)
		case errors.Is(err, models.ErrSlideNotFound):
			return e.fail(log, state, models.ErrSlideNotFound)
		default:
			return e.fail(log, state, fmt.Errorf("%w: %v", models.ErrEditFailed, err))
		}
	}
	state = e.transition(log, state, stateSlideLocated)

	// SLIDE_LOCATED -> CONTENT_REGENERATED
	newContent, err := e.expander.Edit(ctx, sess.Brief, *current, req.Instruction)
	if err != nil {
		log.Error("Перегенерация контента слайда не удалась", zap.Error(err))
		return e.fail(log, state, models.ErrNewSlideContent)
	}
	newContent.GlobalSlideIndex = current.GlobalSlideIndex
	state = e.transition(log, state, stateContentRegenerate)

	// CONTENT_REGENERATED -> SLIDE_RENDERED
	// Новый контент может снова запросить обогащение - прогоняем best-effort.
	enriched := e.reEnrich(ctx, *newContent)
	slidePath, err := e.renderSlide(ctx, sess.TemplateReference, enriched)
	if err != nil {
		log.Error("Рендер нового слайда не удался", zap.Error(err))
		return e.fail(log, state, models.ErrNewSlideRender)
	}
	state = e.transition(log, state, stateSlideRendered)

	// SLIDE_RENDERED -> MERGED
	mergedPath := req.MergeOutputPath
	if mergedPath == "" {
		mergedPath = sess.OutputPath
	}
	if err := e.renderer.ReplaceSlide(ctx, sess.OutputPath, slidePath, enriched.GlobalSlideIndex, mergedPath); err != nil {
		return e.fail(log, state, fmt.Errorf("%w: %v", models.ErrEditFailed, err))
	}

	// Презентация слита - фиксируем новый контент в сессии атомарно.
	// Если запись сессии не удастся, презентация уже содержит новый слайд,
	// а сессия - прежний контент: гарантия целостности распространяется
	// на файл сессии, повторная правка того же адреса перезатрет вклейку.
	if _, err := e.sessions.UpdatePath(req.SessionPath, func(s *models.Session) error {
		if err := s.ReplaceSlide(enriched); err != nil {
			return err
		}
		if req.MergeOutputPath != "" {
			s.OutputPath = mergedPath
		}
		return nil
	}); err != nil {
		return e.fail(log, state, fmt.Errorf("%w: %v", models.ErrEditFailed, err))
	}
	e.transition(log, state, stateMerged)

	data := models.EditData{
		SectionIndex:           req.SectionIndex,
		SlideIndex:             req.SlideIndex,
		NewContent:             enriched,
		SlidePath:              slidePath,
		MergedPresentationPath: mergedPath,
	}
	return models.NewSuccessEnvelope("Slide edited successfully", data)
}

// reEnrich прогоняет агентов обогащения по новому контенту.
// Ошибки деградируют флаги, но не прерывают правку.
func (e *Editor) reEnrich(ctx context.Context, slide models.SlideContent) models.SlideContent {
	if enriched, err := e.diagram.Enrich(ctx, slide); err != nil {
		slide.HasDiagrams = false
		e.logger.Warn("Обогащение диаграммой при правке деградировало", zap.Error(err))
	} else {
		slide.Diagram = enriched.Diagram
		slide.HasDiagrams = enriched.HasDiagrams && enriched.Diagram != nil
	}
	if enriched, err := e.image.Enrich(ctx, slide); err != nil {
		slide.HasImages = false
		e.logger.Warn("Обогащение изображением при правке деградировало", zap.Error(err))
	} else {
		slide.Image = enriched.Image
		slide.HasImages = enriched.HasImages && enriched.Image != nil
	}
	return slide
}

// renderSlide рендерит один слайд в отдельный файл в рабочем каталоге.
func (e *Editor) renderSlide(ctx context.Context, template string, slide models.SlideContent) (string, error) {
	workDir, err := os.MkdirTemp(e.cfg.WorkDir, "slide-edit-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	slidePath := filepath.Join(workDir, fmt.Sprintf("slide_%d_%d.pptx", slide.SectionIndex, slide.SlideIndexInSection))
	return e.renderer.RenderSlide(ctx, template, slide, slidePath)
}

func (e *Editor) transition(log *zap.Logger, from, to editState) editState {
	log.Info("Переход стадии правки", zap.String("from", string(from)), zap.String("to", string(to)))
	return to
}

func (e *Editor) fail(log *zap.Logger, state editState, err error) models.Envelope {
	log.Error("Правка слайда завершилась ошибкой",
		zap.String("state", string(state)),
		zap.Error(err))
	return models.NewErrorEnvelope(err.Error())
}
