package models

import "sort"

// DiagramSpec - сгенерированное описание диаграммы для слайда.
// Source содержит разметку (mermaid), Type - вид диаграммы (flowchart, chart и т.д.).
type DiagramSpec struct {
	Type   string `json:"type"`
	Source string `json:"source"`
}

// ImageReference - ссылка на подобранное изображение для слайда.
type ImageReference struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// SlideContent - полное содержимое одного слайда.
// Создается экспандером контента и целиком заменяется при правке слайда.
// Инвариант: GlobalSlideIndex всегда равен числу слайдов во всех предыдущих
// секциях плюс SlideIndexInSection; пересчитывается при любой замене состава
// слайдов (см. RecomputeGlobalIndexes).
type SlideContent struct {
	SectionIndex        int             `json:"section_index"`
	SlideIndexInSection int             `json:"slide_index_in_section"`
	GlobalSlideIndex    int             `json:"global_slide_index"`
	Title               string          `json:"title"`
	Content             []string        `json:"content"`
	Notes               string          `json:"notes"`
	Keywords            []string        `json:"keywords"`
	HasImages           bool            `json:"has_images"`
	HasDiagrams         bool            `json:"has_diagrams"`
	Diagram             *DiagramSpec    `json:"diagram,omitempty"`
	Image               *ImageReference `json:"image,omitempty"`
}

// Address возвращает адрес слайда (секция, слайд в секции).
func (s *SlideContent) Address() (int, int) {
	return s.SectionIndex, s.SlideIndexInSection
}

// SortSlides упорядочивает слайды по (section_index, slide_index_in_section).
// Порядок завершения параллельных задач значения не имеет - финальный порядок
// всегда выводится из индексов заготовок.
func SortSlides(slides []SlideContent) {
	sort.Slice(slides, func(i, j int) bool {
		if slides[i].SectionIndex != slides[j].SectionIndex {
			return slides[i].SectionIndex < slides[j].SectionIndex
		}
		return slides[i].SlideIndexInSection < slides[j].SlideIndexInSection
	})
}

// RecomputeGlobalIndexes сортирует слайды и присваивает непрерывные глобальные
// индексы 0..N-1 по выжившим слайдам. Пропуски от отброшенных слайдов
// закрываются, а не остаются пустыми.
func RecomputeGlobalIndexes(slides []SlideContent) {
	SortSlides(slides)
	for i := range slides {
		slides[i].GlobalSlideIndex = i
	}
}
