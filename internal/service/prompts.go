package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
)

// Имена файлов промптов в каталоге промптов.
const (
	OutlinePromptFile      = "outline.md"
	SlideContentPromptFile = "slide_content.md"
	SlideEditPromptFile    = "slide_edit.md"
	DiagramPromptFile      = "diagram.md"
)

// PromptProvider загружает шаблоны промптов с диска и кэширует
// распарсенные шаблоны в памяти. Промпты редактируются без пересборки бинаря.
type PromptProvider struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewPromptProvider создает провайдер промптов для каталога dir.
func NewPromptProvider(dir string) *PromptProvider {
	return &PromptProvider{
		dir:   dir,
		cache: make(map[string]*template.Template),
	}
}

// Raw возвращает сырое содержимое файла промпта.
func (p *PromptProvider) Raw(filename string) (string, error) {
	filePath := filepath.Join(p.dir, filename)
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", filePath, err)
	}
	return string(content), nil
}

// Render загружает шаблон промпта и подставляет данные.
func (p *PromptProvider) Render(filename string, data any) (string, error) {
	tmpl, err := p.load(filename)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", filename, err)
	}
	return sb.String(), nil
}

func (p *PromptProvider) load(filename string) (*template.Template, error) {
	p.mu.RLock()
	tmpl, ok := p.cache[filename]
	p.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	raw, err := p.Raw(filename)
	if err != nil {
		return nil, err
	}
	tmpl, err = template.New(filename).Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template %s: %w", filename, err)
	}

	p.mu.Lock()
	p.cache[filename] = tmpl
	p.mu.Unlock()
	return tmpl, nil
}
