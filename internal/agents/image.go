package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"slide-server/internal/models"

	"go.uber.org/zap"
)

// ErrNoImageFound - поиск не вернул ни одного подходящего изображения.
var ErrNoImageFound = errors.New("no suitable image found")

// ImageSearcher - внешний сервис поиска изображений (SearXNG).
type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, limit int) ([]models.ImageReference, error)
}

// ImageAgent подбирает изображение для слайда, запросившего его (has_images).
// Строго best-effort: отсутствие поисковика или пустая выдача деградируют
// слайд до версии без изображения.
type ImageAgent struct {
	searcher ImageSearcher
	logger   *zap.Logger
}

// NewImageAgent создает агента изображений. searcher может быть nil -
// тогда агент всегда деградирует.
func NewImageAgent(searcher ImageSearcher, logger *zap.Logger) *ImageAgent {
	return &ImageAgent{
		searcher: searcher,
		logger:   logger.Named("image_agent"),
	}
}

// Enrich подбирает изображение для слайда. Ошибка возвращается вызывающему,
// который сбрасывает флаг и продолжает пайплайн.
func (a *ImageAgent) Enrich(ctx context.Context, slide models.SlideContent) (models.SlideContent, error) {
	if !slide.HasImages {
		return slide, nil
	}
	if a.searcher == nil {
		return slide, fmt.Errorf("image search is not configured")
	}

	query := buildImageQuery(slide)
	results, err := a.searcher.SearchImages(ctx, query, 5)
	if err != nil {
		return slide, fmt.Errorf("image search %q: %w", query, err)
	}
	for _, r := range results {
		if r.URL != "" {
			slide.Image = &r
			a.logger.Debug("Изображение подобрано",
				zap.Int("section_index", slide.SectionIndex),
				zap.Int("slide_index", slide.SlideIndexInSection),
				zap.String("query", query),
				zap.String("url", r.URL))
			return slide, nil
		}
	}
	return slide, fmt.Errorf("%w for query %q", ErrNoImageFound, query)
}

// buildImageQuery составляет поисковый запрос из заголовка и ключевых слов слайда.
func buildImageQuery(slide models.SlideContent) string {
	parts := []string{slide.Title}
	for i, kw := range slide.Keywords {
		if i >= 3 {
			break
		}
		parts = append(parts, kw)
	}
	return strings.Join(parts, " ")
}
