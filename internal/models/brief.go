package models

import "fmt"

// Значения по умолчанию для свободных текстовых полей брифа.
// Пустые audience/purpose допустимы — подставляем нейтральные значения.
const (
	DefaultAudience = "general audience"
	DefaultPurpose  = "inform"
)

// Brief - входные параметры одного запуска генерации презентации.
// Неизменяем после создания: все стадии пайплайна читают его как контекст.
type Brief struct {
	Topic             string `json:"topic"`
	Audience          string `json:"audience"`
	DurationMinutes   int    `json:"duration_minutes"`
	Purpose           string `json:"purpose"`
	TemplateReference string `json:"template_reference"`
}

// Validate проверяет жесткие ограничения брифа.
// Topic обязателен, длительность должна быть положительной.
func (b Brief) Validate() error {
	if b.Topic == "" {
		return fmt.Errorf("%w: topic must not be empty", ErrInvalidBrief)
	}
	if b.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be a positive number of minutes", ErrInvalidBrief)
	}
	return nil
}

// Normalized возвращает копию брифа с заполненными значениями по умолчанию
// для пустых audience/purpose.
func (b Brief) Normalized() Brief {
	if b.Audience == "" {
		b.Audience = DefaultAudience
	}
	if b.Purpose == "" {
		b.Purpose = DefaultPurpose
	}
	return b
}
