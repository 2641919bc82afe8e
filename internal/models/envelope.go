package models

// Статусы внешнего конверта ответа.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope - единый внешний конверт обоих режимов (генерация и правка).
// Никогда не персистится, всегда строится заново на каждый вызов.
// Для ошибок Data - всегда пустой объект.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// GenerationMeta - метаданные успешного запуска генерации.
type GenerationMeta struct {
	Topic              string `json:"topic"`
	Audience           string `json:"audience"`
	Duration           int    `json:"duration"`
	Purpose            string `json:"purpose"`
	TotalSlides        int    `json:"total_slides"`
	ParallelProcessing bool   `json:"parallel_processing"`
}

// GenerationData - полезная нагрузка успешного конверта генерации.
type GenerationData struct {
	SessionID        string         `json:"session_id"`
	Outline          Outline        `json:"outline"`
	Slides           []SlideContent `json:"slides"`
	PresentationPath string         `json:"presentation_path"`
	PDFPath          string         `json:"pdf_path,omitempty"`
	SessionPath      string         `json:"session_path"`
	Metadata         GenerationMeta `json:"metadata"`
}

// EditData - полезная нагрузка успешного конверта правки одного слайда.
type EditData struct {
	SectionIndex           int          `json:"section_index"`
	SlideIndex             int          `json:"slide_index"`
	NewContent             SlideContent `json:"new_content"`
	SlidePath              string       `json:"slide_path"`
	MergedPresentationPath string       `json:"merged_presentation_path"`
}

// NewSuccessEnvelope строит успешный конверт с данными.
func NewSuccessEnvelope(message string, data any) Envelope {
	return Envelope{Status: StatusSuccess, Message: message, Data: data}
}

// NewErrorEnvelope строит конверт ошибки. Data по контракту - пустой объект.
func NewErrorEnvelope(message string) Envelope {
	return Envelope{Status: StatusError, Message: message, Data: struct{}{}}
}
