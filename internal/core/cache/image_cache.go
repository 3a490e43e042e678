package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 快取中沒有資料
var ErrCacheMiss = errors.New("cache miss")

// ImageCache 以 Redis 保存食譜標題對應的圖片網址，跨行程共用
type ImageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewImageCache 創建圖片網址快取，client 為 nil 時所有查詢皆未命中
func NewImageCache(client *redis.Client, ttl time.Duration) *ImageCache {
	return &ImageCache{
		client: client,
		ttl:    ttl,
	}
}

// Get 查詢圖片網址
func (c *ImageCache) Get(ctx context.Context, title string) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrCacheMiss
	}

	url, err := c.client.Get(ctx, imageKey(title)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get image cache: %w", err)
	}
	return url, nil
}

// Set 保存圖片網址
func (c *ImageCache) Set(ctx context.Context, title, url string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Set(ctx, imageKey(title), url, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set image cache: %w", err)
	}
	return nil
}

// imageKey 生成緩存鍵
func imageKey(title string) string {
	return fmt.Sprintf("image:url:%s", strings.ToLower(strings.TrimSpace(title)))
}
