package models

import (
	"fmt"
	"time"
)

// Session - единственная долговременная запись, переживающая запуск генерации.
// Создается после успешной сборки презентации; каждая успешная правка
// перечитывает, модифицирует и атомарно перезаписывает файл сессии целиком.
type Session struct {
	SessionID         string         `json:"session_id"`
	Version           int64          `json:"version"`
	Brief             Brief          `json:"brief"`
	Outline           Outline        `json:"outline"`
	Slides            []SlideContent `json:"slides"`
	TemplateReference string         `json:"template_reference"`
	OutputPath        string         `json:"output_path"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// ValidateAddress проверяет, что (sectionIndex, slideIndex) попадает в границы
// плана сессии. Возвращает ErrInvalidSlideAddress при выходе за границы.
func (s *Session) ValidateAddress(sectionIndex, slideIndex int) error {
	if sectionIndex < 0 || sectionIndex >= len(s.Outline.Sections) {
		return fmt.Errorf("%w: section %d of %d", ErrInvalidSlideAddress, sectionIndex, len(s.Outline.Sections))
	}
	section := s.Outline.Sections[sectionIndex]
	if slideIndex < 0 || slideIndex >= len(section.SlideStubs) {
		return fmt.Errorf("%w: slide %d of %d in section %d", ErrInvalidSlideAddress, slideIndex, len(section.SlideStubs), sectionIndex)
	}
	return nil
}

// FindSlide ищет сохраненный контент слайда по адресу.
// Адрес в границах плана, но без сохраненного контента (слайд был отброшен
// при генерации) - это ErrSlideNotFound, отличная от невалидного адреса ошибка.
func (s *Session) FindSlide(sectionIndex, slideIndex int) (*SlideContent, error) {
	if err := s.ValidateAddress(sectionIndex, slideIndex); err != nil {
		return nil, err
	}
	for i := range s.Slides {
		if sec, idx := s.Slides[i].Address(); sec == sectionIndex && idx == slideIndex {
			return &s.Slides[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no stored content at (%d, %d)", ErrSlideNotFound, sectionIndex, slideIndex)
}

// ReplaceSlide заменяет контент слайда по его адресу и пересчитывает
// глобальные индексы. Возвращает ErrSlideNotFound, если такого адреса
// в сохраненных слайдах нет.
func (s *Session) ReplaceSlide(content SlideContent) error {
	targetSec, targetIdx := content.Address()
	for i := range s.Slides {
		if sec, idx := s.Slides[i].Address(); sec == targetSec && idx == targetIdx {
			s.Slides[i] = content
			RecomputeGlobalIndexes(s.Slides)
			return nil
		}
	}
	return fmt.Errorf("%w: no stored content at (%d, %d)", ErrSlideNotFound, content.SectionIndex, content.SlideIndexInSection)
}
