package models

import "errors"

// Фиксированный словарь ошибок пайплайна. Тексты этих ошибок - внешний
// контракт: они попадают в message конверта ответа как есть (для ошибок
// с деталями - через обертку fmt.Errorf("%w: ...")).
var (
	// Путь генерации.
	ErrOutlineFailed    = errors.New("Failed to generate presentation outline")
	ErrNoValidSlides    = errors.New("Failed to generate any valid slides")
	ErrAssemblyFailed   = errors.New("Failed to merge presentation slides")
	ErrGenerationFailed = errors.New("Failed to generate presentation")

	// Путь правки одного слайда.
	ErrInvalidSlideAddress = errors.New("Invalid section or slide index")
	ErrSlideNotFound       = errors.New("Slide or section not found")
	ErrNewSlideContent     = errors.New("Failed to generate new slide content")
	ErrNewSlideRender      = errors.New("Failed to generate new slide")
	ErrEditFailed          = errors.New("Error editing slide")

	// Внутренние ошибки, не входящие в пользовательский словарь.
	ErrInvalidBrief      = errors.New("invalid brief")
	ErrSessionNotFound   = errors.New("session file not found")
	ErrSessionConflict   = errors.New("session was modified concurrently")
	ErrUnknownTemplate   = errors.New("unknown presentation template")
	ErrMalformedResponse = errors.New("malformed generation response")
)
