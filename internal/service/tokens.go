package service

import (
	"log"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding используется, когда tiktoken не знает модель
// (OpenRouter-модели, Ollama и т.п.).
const fallbackEncoding = "cl100k_base"

// encodingFor возвращает токенизатор для модели с fallback на cl100k_base.
func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	tke, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return tke, nil
	}
	return tiktoken.GetEncoding(fallbackEncoding)
}

// CountTokens возвращает число токенов текста для заданной модели.
// При недоступном токенизаторе возвращает грубую оценку len/4.
func CountTokens(model, text string) int {
	tke, err := encodingFor(model)
	if err != nil {
		log.Printf("[WARN] Токенизатор для модели %s недоступен: %v. Оцениваю по длине.", model, err)
		return len(text) / 4
	}
	return len(tke.Encode(text, nil, nil))
}

// TrimToTokenBudget усекает текст до бюджета токенов, отрезая конец по строкам.
// Используется для удержания контекста промпта в пределах окна модели.
func TrimToTokenBudget(model, text string, budget int) string {
	if budget <= 0 || CountTokens(model, text) <= budget {
		return text
	}
	lines := strings.Split(text, "\n")
	for len(lines) > 1 {
		lines = lines[:len(lines)-1]
		candidate := strings.Join(lines, "\n")
		if CountTokens(model, candidate) <= budget {
			return candidate
		}
	}
	// Одна строка длиннее бюджета - режем по символам
	runes := []rune(text)
	for len(runes) > 0 && CountTokens(model, string(runes)) > budget {
		cut := len(runes) / 4
		if cut == 0 {
			cut = 1
		}
		runes = runes[:len(runes)-cut]
	}
	return string(runes)
}

// estimateUsage оценивает использование токенов локально, когда провайдер
// не вернул блок usage.
func estimateUsage(model, prompt, completion string) UsageInfo {
	promptTokens := CountTokens(model, prompt)
	completionTokens := CountTokens(model, completion)
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		EstimatedCostUSD: calculateCost(promptTokens, completionTokens),
	}
}
