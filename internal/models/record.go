package models

import "time"

// Виды запусков пайплайна для журнала.
const (
	RunKindGenerate = "generate"
	RunKindEdit     = "edit"
)

// GenerationRecord - одна строка журнала запусков генерации/правки.
// Журнал ведется в PostgreSQL, когда база настроена; на семантику
// пайплайна он не влияет.
type GenerationRecord struct {
	ID               string     `db:"id"`
	Kind             string     `db:"kind"`
	SessionID        string     `db:"session_id"`
	Topic            string     `db:"topic"`
	Status           string     `db:"status"`
	Message          string     `db:"message"`
	OutputPath       string     `db:"output_path"`
	TotalSlides      int        `db:"total_slides"`
	ProcessingTimeMS int64      `db:"processing_time_ms"`
	CreatedAt        time.Time  `db:"created_at"`
	CompletedAt      *time.Time `db:"completed_at"`
}

// NewRunRecord собирает строку журнала из конверта результата запуска.
func NewRunRecord(id, kind, topic string, envelope Envelope, start time.Time) *GenerationRecord {
	now := time.Now()
	record := &GenerationRecord{
		ID:               id,
		Kind:             kind,
		Topic:            topic,
		Status:           envelope.Status,
		Message:          envelope.Message,
		ProcessingTimeMS: now.Sub(start).Milliseconds(),
		CreatedAt:        start,
		CompletedAt:      &now,
	}
	if data, ok := envelope.Data.(GenerationData); ok {
		record.SessionID = data.SessionID
		record.OutputPath = data.PresentationPath
		record.TotalSlides = data.Metadata.TotalSlides
	}
	if data, ok := envelope.Data.(EditData); ok {
		record.OutputPath = data.MergedPresentationPath
	}
	return record
}
