package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meal-recommender/internal/core/cache"
	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrNoImage 圖片服務沒有符合的結果
var ErrNoImage = errors.New("no image found")

// Resolver 以食譜標題查詢縮圖網址
type Resolver interface {
	ResolveImage(ctx context.Context, title string) (string, error)
}

// 不同圖片服務的回應格式
var urlPaths = []string{
	"photos.0.src.medium",
	"results.0.urls.small",
	"hits.0.webformatURL",
	"url",
}

// Client 圖片搜尋客戶端
type Client struct {
	client *resty.Client
	cache  *cache.ImageCache
}

// NewClient 創建圖片搜尋客戶端，imageCache 可為 nil
func NewClient(cfg *config.ImageConfig, imageCache *cache.ImageCache) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", cfg.APIKey)
	}

	return &Client{
		client: client,
		cache:  imageCache,
	}
}

// ResolveImage 先查 Redis，未命中再呼叫圖片服務並寫回
func (c *Client) ResolveImage(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrNoImage
	}

	if url, err := c.cache.Get(ctx, title); err == nil {
		common.LogCacheHit("image", title)
		return url, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		common.LogWarn("Image cache lookup failed", zap.Error(err))
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":    title,
			"per_page": "1",
		}).
		Get("/search")
	if err != nil {
		return "", fmt.Errorf("image search: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("image search returned status %d", resp.StatusCode())
	}

	url := extractURL(resp.Body())
	common.LogDebug("圖片查詢完成",
		zap.String("title", title),
		zap.Bool("found", url != ""),
		zap.Duration("耗時", time.Since(start)),
	)
	if url == "" {
		return "", ErrNoImage
	}

	if err := c.cache.Set(ctx, title, url); err != nil {
		common.LogWarn("Image cache write failed", zap.Error(err))
	}
	return url, nil
}

func extractURL(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	doc := gjson.ParseBytes(body)
	for _, path := range urlPaths {
		if s := strings.TrimSpace(doc.Get(path).String()); s != "" {
			return s
		}
	}
	return ""
}
