// Package search - клиент SearXNG для подбора изображений
// с необязательным кэшем результатов в Redis.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"slide-server/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// searxResponse - релевантная часть JSON-ответа SearXNG.
type searxResponse struct {
	Results []struct {
		Title  string `json:"title"`
		ImgSrc string `json:"img_src"`
		URL    string `json:"url"`
	} `json:"results"`
}

// Client - HTTP клиент SearXNG.
type Client struct {
	baseURL    string
	safeSearch int
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// Option настраивает клиента.
type Option func(*Client)

// WithCache включает кэширование результатов в Redis.
func WithCache(rdb *redis.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = rdb
		c.cacheTTL = ttl
	}
}

// NewClient создает клиента SearXNG.
func NewClient(baseURL string, timeout time.Duration, safeSearch int, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		safeSearch: safeSearch,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("searx"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchImages выполняет поиск изображений по запросу.
// Результаты кэшируются по нормализованному запросу, если кэш настроен.
func (c *Client) SearchImages(ctx context.Context, query string, limit int) ([]models.ImageReference, error) {
	if cached, ok := c.fromCache(ctx, query); ok {
		c.logger.Debug("Результаты поиска взяты из кэша", zap.String("query", query))
		return truncate(cached, limit), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("categories", "images")
	params.Set("format", "json")
	params.Set("safesearch", strconv.Itoa(c.safeSearch))
	params.Set("pageno", "1")

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("searx request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searx request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("searx returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("searx response decode: %w", err)
	}

	results := make([]models.ImageReference, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.ImgSrc == "" {
			continue
		}
		results = append(results, models.ImageReference{
			URL:       r.ImgSrc,
			Title:     r.Title,
			SourceURL: r.URL,
		})
	}

	c.toCache(ctx, query, results)
	return truncate(results, limit), nil
}

func (c *Client) cacheKey(query string) string {
	return "searx:images:" + query
}

func (c *Client) fromCache(ctx context.Context, query string) ([]models.ImageReference, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, c.cacheKey(query)).Bytes()
	if err != nil {
		return nil, false
	}
	var results []models.ImageReference
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *Client) toCache(ctx context.Context, query string, results []models.ImageReference) {
	if c.cache == nil || len(results) == 0 {
		return
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(query), raw, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("Не удалось записать результаты поиска в кэш", zap.Error(err))
	}
}

func truncate(results []models.ImageReference, limit int) []models.ImageReference {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
