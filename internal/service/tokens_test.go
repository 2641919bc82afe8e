package service_test

import (
	"strings"
	"testing"

	"slide-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenModel = "gpt-4o-mini"

func TestCountTokens(t *testing.T) {
	assert.Zero(t, service.CountTokens(tokenModel, ""))
	assert.Greater(t, service.CountTokens(tokenModel, "Сделай презентацию про внедрение AI в производстве"), 0)

	// Неизвестная модель не роняет подсчет
	assert.Greater(t, service.CountTokens("ollama/something-local", "hello world, this is a prompt"), 0)
}

func TestTrimToTokenBudget(t *testing.T) {
	t.Run("under budget is unchanged", func(t *testing.T) {
		text := "короткий промпт"
		assert.Equal(t, text, service.TrimToTokenBudget(tokenModel, text, 10000))
	})

	t.Run("zero budget is unchanged", func(t *testing.T) {
		text := strings.Repeat("строка контекста\n", 50)
		assert.Equal(t, text, service.TrimToTokenBudget(tokenModel, text, 0))
	})

	t.Run("trims trailing lines to fit", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 200; i++ {
			b.WriteString("another line of prompt context that costs tokens\n")
		}
		text := b.String()
		budget := 50

		trimmed := service.TrimToTokenBudget(tokenModel, text, budget)
		require.Less(t, len(trimmed), len(text))
		assert.True(t, strings.HasPrefix(text, trimmed), "усечение должно быть префиксом исходного текста")
		assert.LessOrEqual(t, service.CountTokens(tokenModel, trimmed), budget)
	})
}
