// Package schemas - строгая граница парсинга и валидации ответов текстового
// генератора. Любое несоответствие ожидаемой схеме превращается в типизированную
// ошибку здесь и не проникает глубже в пайплайн.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"

	"slide-server/internal/models"
)

// ExtractJSON вырезает JSON из ответа модели: снимает markdown-ограждения
// и отбрасывает текст вокруг первого сбалансированного объекта.
func ExtractJSON(text string) string {
	text = stripCodeFence(text)
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return strings.TrimSpace(text)
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		// Ответ оборван до закрывающей скобки - добиваем баланс
		return balanceJSON(strings.TrimSpace(text[start:]))
	}
	return text[start : end+1]
}

// balanceJSON дозакрывает несбалансированные скобки в конце оборванного
// ответа. Скобки внутри строковых литералов не считаются.
func balanceJSON(payload string) string {
	if payload == "" {
		return payload
	}

	var curly, square int
	inString := false
	escaped := false
	for _, char := range payload {
		if char == '"' && !escaped {
			inString = !inString
		}
		if !inString {
			switch char {
			case '{':
				curly++
			case '}':
				curly--
			case '[':
				square++
			case ']':
				square--
			}
		}
		escaped = char == '\\' && !escaped
	}

	if square > 0 {
		payload += strings.Repeat("]", square)
	}
	if curly > 0 {
		payload += strings.Repeat("}", curly)
	}
	return payload
}

// stripCodeFence снимает обрамление ```lang ... ``` если оно есть.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Отрезаем метку языка на первой строке (json, mermaid и т.п.)
	if idx := strings.IndexByte(text, '\n'); idx != -1 {
		firstLine := strings.TrimSpace(text[:idx])
		if len(firstLine) <= 12 && !strings.ContainsAny(firstLine, "{}[]") {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// rawOutline - ожидаемая форма JSON-ответа синтезатора плана.
type rawOutline struct {
	Title    string `json:"title"`
	Sections []struct {
		Title  string `json:"title"`
		Slides []struct {
			Title         string      `json:"title"`
			TalkingPoints stringsList `json:"talking_points"`
		} `json:"slides"`
	} `json:"sections"`
}

// ParseOutline разбирает ответ синтезатора плана в Outline.
// Индексы секций и заготовок присваиваются позиционно.
func ParseOutline(responseText string) (*models.Outline, error) {
	payload := ExtractJSON(responseText)
	var raw rawOutline
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: outline JSON decode: %v", models.ErrMalformedResponse, err)
	}
	if raw.Title == "" {
		return nil, fmt.Errorf("%w: outline has no title", models.ErrMalformedResponse)
	}
	if len(raw.Sections) == 0 {
		return nil, fmt.Errorf("%w: outline has no sections", models.ErrMalformedResponse)
	}

	outline := &models.Outline{Title: raw.Title}
	for si, rs := range raw.Sections {
		if rs.Title == "" {
			return nil, fmt.Errorf("%w: section %d has no title", models.ErrMalformedResponse, si)
		}
		if len(rs.Slides) == 0 {
			return nil, fmt.Errorf("%w: section %d has no slides", models.ErrMalformedResponse, si)
		}
		section := models.Section{Index: si, Title: rs.Title}
		for pi, rp := range rs.Slides {
			if rp.Title == "" {
				return nil, fmt.Errorf("%w: slide %d in section %d has no title", models.ErrMalformedResponse, pi, si)
			}
			section.SlideStubs = append(section.SlideStubs, models.SlideStub{
				Index:         pi,
				Title:         rp.Title,
				TalkingPoints: rp.TalkingPoints,
			})
		}
		outline.Sections = append(outline.Sections, section)
	}
	return outline, nil
}

// rawSlideContent - ожидаемая форма JSON-ответа экспандера контента слайда.
type rawSlideContent struct {
	Title       string      `json:"title"`
	Content     stringsList `json:"content"`
	Notes       string      `json:"notes"`
	Keywords    stringsList `json:"keywords"`
	HasImages   bool        `json:"has_images"`
	HasDiagrams bool        `json:"has_diagrams"`
}

// ParseSlideContent разбирает ответ экспандера в SlideContent для адреса
// (sectionIndex, slideIndex). Глобальный индекс здесь не заполняется -
// его пересчитывает оркестратор по выжившим слайдам.
func ParseSlideContent(responseText string, sectionIndex, slideIndex int) (*models.SlideContent, error) {
	payload := ExtractJSON(responseText)
	var raw rawSlideContent
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: slide content JSON decode: %v", models.ErrMalformedResponse, err)
	}
	if raw.Title == "" {
		return nil, fmt.Errorf("%w: slide content has no title", models.ErrMalformedResponse)
	}
	if len(raw.Content) == 0 {
		return nil, fmt.Errorf("%w: slide content has no body", models.ErrMalformedResponse)
	}
	return &models.SlideContent{
		SectionIndex:        sectionIndex,
		SlideIndexInSection: slideIndex,
		Title:               raw.Title,
		Content:             raw.Content,
		Notes:               raw.Notes,
		Keywords:            dedupe(raw.Keywords),
		HasImages:           raw.HasImages,
		HasDiagrams:         raw.HasDiagrams,
	}, nil
}

// ParseDiagram разбирает ответ генератора диаграмм: mermaid-разметка,
// возможно в markdown-ограждении.
func ParseDiagram(responseText, diagramType string) (*models.DiagramSpec, error) {
	source := stripCodeFence(responseText)
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty diagram source", models.ErrMalformedResponse)
	}
	return &models.DiagramSpec{Type: diagramType, Source: source}, nil
}

// stringsList принимает как строку, так и список строк.
// Модели возвращают content то одним абзацем, то списком пунктов -
// нормализуем к упорядоченному списку строк.
type stringsList []string

func (l *stringsList) UnmarshalJSON(data []byte) error {
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		*l = trimEmpty(asList)
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("expected string or list of strings")
	}
	*l = trimEmpty(strings.Split(asString, "\n"))
	return nil
}

func trimEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
