// Package renderer - клиент внешнего сервиса сборки документа презентации.
// Сам бинарный формат контейнера слайдов пайплайн не знает: рендерер получает
// структурированный контент и пути, возвращает файлы.
package renderer

import (
	"context"

	"slide-server/internal/models"
)

// Renderer - операции внешнего сервиса сборки.
type Renderer interface {
	// ListTemplates возвращает имена известных шаблонов оформления.
	ListTemplates(ctx context.Context) ([]string, error)
	// RenderSlide рендерит один слайд в отдельный файл и возвращает его путь.
	RenderSlide(ctx context.Context, template string, slide models.SlideContent, outputPath string) (string, error)
	// MergeSlides собирает упорядоченные файлы слайдов в одну презентацию.
	MergeSlides(ctx context.Context, slidePaths []string, outputPath string) error
	// ReplaceSlide заменяет слайд на позиции slideIndex в готовой презентации
	// на отдельный файл слайда, не трогая остальные слайды.
	ReplaceSlide(ctx context.Context, presentationPath, slidePath string, slideIndex int, outputPath string) error
	// ConvertToPDF конвертирует презентацию в PDF.
	ConvertToPDF(ctx context.Context, presentationPath, outputPath string) error
}
