package agents

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"slide-server/internal/service"

	"go.uber.org/zap"
)

// Options - общие настройки ретраев и генерации для агентов.
type Options struct {
	MaxAttempts    int
	BaseRetryDelay time.Duration
	MaxTokens      int
	Model          string // имя модели для токенизатора
	ContextLimit   int    // бюджет токенов системного промпта, 0 = без усечения
}

// withDefaults подставляет безопасные значения вместо нулевых.
func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseRetryDelay <= 0 {
		o.BaseRetryDelay = time.Second
	}
	return o
}

// boundPrompt усекает системный промпт до бюджета контекста модели.
// Промпт длиннее окна модели провайдер отвергает целиком, поэтому хвост
// (обычно самые дальние тезисы) режется еще до отправки.
func (o Options) boundPrompt(logger *zap.Logger, stage, prompt string) string {
	if o.ContextLimit <= 0 {
		return prompt
	}
	trimmed := service.TrimToTokenBudget(o.Model, prompt, o.ContextLimit)
	if len(trimmed) < len(prompt) {
		logger.Warn("Системный промпт усечен до бюджета контекста",
			zap.String("stage", stage),
			zap.Int("budget_tokens", o.ContextLimit),
			zap.Int("original_bytes", len(prompt)),
			zap.Int("trimmed_bytes", len(trimmed)))
	}
	return trimmed
}

// withRetry выполняет op с экспоненциальной задержкой и джиттером между
// попытками. Возвращает ошибку последней попытки после исчерпания бюджета.
func withRetry(ctx context.Context, logger *zap.Logger, opts Options, stage string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			// Экспоненциальная задержка с джиттером +/-10%
			delay := float64(opts.BaseRetryDelay) * math.Pow(2, float64(attempt-2))
			jitter := delay * 0.1
			delay += jitter * (rand.Float64()*2 - 1)

			logger.Warn("Повтор запроса к генератору",
				zap.String("stage", stage),
				zap.Int("attempt", attempt),
				zap.Duration("delay", time.Duration(delay)),
				zap.Error(lastErr))

			select {
			case <-time.After(time.Duration(delay)):
			case <-ctx.Done():
				return fmt.Errorf("retry interrupted: %w", ctx.Err())
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", opts.MaxAttempts, lastErr)
}
