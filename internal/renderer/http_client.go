package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"slide-server/internal/models"

	"go.uber.org/zap"
)

// httpClient реализует Renderer поверх HTTP JSON API сервиса сборки.
// Файлы передаются путями на общем томе, а не телом запроса.
type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient создает HTTP клиента рендерера.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) Renderer {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("renderer"),
	}
}

type renderSlideRequest struct {
	Template   string              `json:"template"`
	Slide      models.SlideContent `json:"slide"`
	OutputPath string              `json:"output_path"`
}

type mergeRequest struct {
	SlidePaths []string `json:"slide_paths"`
	OutputPath string   `json:"output_path"`
}

type replaceRequest struct {
	PresentationPath string `json:"presentation_path"`
	SlidePath        string `json:"slide_path"`
	SlideIndex       int    `json:"slide_index"`
	OutputPath       string `json:"output_path"`
}

type pdfRequest struct {
	PresentationPath string `json:"presentation_path"`
	OutputPath       string `json:"output_path"`
}

type pathResponse struct {
	Path string `json:"path"`
}

type templatesResponse struct {
	Templates []string `json:"templates"`
}

func (c *httpClient) ListTemplates(ctx context.Context) ([]string, error) {
	var resp templatesResponse
	if err := c.do(ctx, http.MethodGet, "/templates", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

func (c *httpClient) RenderSlide(ctx context.Context, template string, slide models.SlideContent, outputPath string) (string, error) {
	req := renderSlideRequest{Template: template, Slide: slide, OutputPath: outputPath}
	var resp pathResponse
	if err := c.do(ctx, http.MethodPost, "/slides/render", req, &resp); err != nil {
		return "", err
	}
	if resp.Path == "" {
		resp.Path = outputPath
	}
	return resp.Path, nil
}

func (c *httpClient) MergeSlides(ctx context.Context, slidePaths []string, outputPath string) error {
	req := mergeRequest{SlidePaths: slidePaths, OutputPath: outputPath}
	return c.do(ctx, http.MethodPost, "/presentations/merge", req, nil)
}

func (c *httpClient) ReplaceSlide(ctx context.Context, presentationPath, slidePath string, slideIndex int, outputPath string) error {
	req := replaceRequest{
		PresentationPath: presentationPath,
		SlidePath:        slidePath,
		SlideIndex:       slideIndex,
		OutputPath:       outputPath,
	}
	return c.do(ctx, http.MethodPost, "/presentations/replace", req, nil)
}

func (c *httpClient) ConvertToPDF(ctx context.Context, presentationPath, outputPath string) error {
	req := pdfRequest{PresentationPath: presentationPath, OutputPath: outputPath}
	return c.do(ctx, http.MethodPost, "/presentations/pdf", req, nil)
}

// do выполняет запрос к рендереру и декодирует JSON-ответ в out (если не nil).
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("renderer request encode: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("renderer request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("renderer request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Запрос к рендереру выполнен",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("renderer %s %s returned status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("renderer response decode: %w", err)
		}
	}
	return nil
}
