// Package app - сборка пайплайна генерации из конфигурации.
// Общая точка для всех бинарников: CLI, HTTP сервера и воркера очереди.
package app

import (
	"slide-server/internal/agents"
	"slide-server/internal/config"
	"slide-server/internal/orchestrator"
	"slide-server/internal/renderer"
	"slide-server/internal/search"
	"slide-server/internal/service"
	"slide-server/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pipeline - собранные оркестраторы пайплайна и их разделяемые зависимости.
type Pipeline struct {
	Generator *orchestrator.Generator
	Editor    *orchestrator.Editor
	Sessions  *session.Store
	Renderer  renderer.Renderer
}

// BuildPipeline собирает пайплайн генерации: AI клиент, агенты, рендерер,
// хранилище сессий и оба оркестратора.
func BuildPipeline(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	aiClient, err := service.NewAIClient(cfg)
	if err != nil {
		return nil, err
	}

	prompts := service.NewPromptProvider(cfg.PromptsDir)
	opts := agents.Options{
		MaxAttempts:    cfg.AIMaxAttempts,
		BaseRetryDelay: cfg.AIBaseRetryDelay,
		MaxTokens:      cfg.AIMaxTokens,
		Model:          cfg.AIModel,
		ContextLimit:   cfg.AIContextLimit,
	}

	outline := agents.NewOutlineAgent(aiClient, prompts, logger, opts)
	content := agents.NewSlideContentAgent(aiClient, prompts, logger, opts)
	diagram := agents.NewDiagramAgent(aiClient, prompts, logger, opts)

	// Поиск изображений опционален: без SearXNG агент деградирует флаги
	var searcher agents.ImageSearcher
	if cfg.SearxURL != "" {
		var searchOpts []search.Option
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
			searchOpts = append(searchOpts, search.WithCache(rdb, cfg.SearchCacheTTL))
		}
		searcher = search.NewClient(cfg.SearxURL, cfg.SearxTimeout, cfg.SearxSafeSearch, logger, searchOpts...)
	}
	image := agents.NewImageAgent(searcher, logger)

	rend := renderer.NewHTTPClient(cfg.RendererURL, cfg.RendererTimeout, logger)

	sessions, err := session.NewStore(cfg.SessionsDir, logger)
	if err != nil {
		return nil, err
	}

	generator := orchestrator.NewGenerator(outline, content, diagram, image, rend, sessions,
		orchestrator.GeneratorConfig{
			MaxWorkers:       cfg.MaxSlideWorkers,
			SlidesPerSection: cfg.SlidesPerSection,
			SectionCount:     cfg.SectionCount,
		}, logger)

	editor := orchestrator.NewEditor(content, diagram, image, rend, sessions,
		orchestrator.EditorConfig{}, logger)

	return &Pipeline{
		Generator: generator,
		Editor:    editor,
		Sessions:  sessions,
		Renderer:  rend,
	}, nil
}
