// Package messaging - очереди задач генерации и уведомлений о завершении
// поверх RabbitMQ.
package messaging

import "slide-server/internal/models"

// Вид задачи в очереди.
const (
	TaskKindGenerate = "generate"
	TaskKindEdit     = "edit"
)

// GenerationTaskPayload - одна задача из очереди presentation_tasks.
// Для kind=generate заполняется Brief и Output*, для kind=edit - Edit-поля.
type GenerationTaskPayload struct {
	TaskID string       `json:"task_id"`
	Kind   string       `json:"kind"`
	Brief  models.Brief `json:"brief,omitempty"`

	OutputPath string `json:"output_path,omitempty"`
	Parallel   bool   `json:"parallel,omitempty"`
	PDF        bool   `json:"pdf,omitempty"`

	SessionPath     string `json:"session_path,omitempty"`
	SectionIndex    int    `json:"section_index,omitempty"`
	SlideIndex      int    `json:"slide_index,omitempty"`
	Instruction     string `json:"instruction,omitempty"`
	MergeOutputPath string `json:"merge_output_path,omitempty"`
}

// NotificationPayload - уведомление о завершении задачи.
// Envelope несет тот же результат, что получил бы синхронный вызов.
type NotificationPayload struct {
	TaskID   string          `json:"task_id"`
	Kind     string          `json:"kind"`
	Status   string          `json:"status"`
	Envelope models.Envelope `json:"envelope"`
}
