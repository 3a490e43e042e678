package cache

import (
	"sync"

	"meal-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// CandidateCache 行程範圍的候選食譜快取，生命週期等同行程
// 同一 ID 寫入的值相同，因此重複寫入不影響結果
type CandidateCache struct {
	mu           sync.RWMutex
	pool         []common.CandidateRecipe
	populated    bool
	instructions map[string][]string
	details      map[string]common.RecipeInfo
	stats        cacheStats
}

// cacheStats 快取統計
type cacheStats struct {
	hits         int64
	misses       int64
	pagesFetched int
	pagesFailed  int
}

// PoolStats 候選池填充結果
type PoolStats struct {
	PagesFetched int
	PagesFailed  int
}

// NewCandidateCache 創建候選食譜快取
func NewCandidateCache() *CandidateCache {
	return &CandidateCache{
		instructions: make(map[string][]string),
		details:      make(map[string]common.RecipeInfo),
	}
}

// Pool 回傳候選池副本，尚未填充時 ok 為 false
func (c *CandidateCache) Pool() ([]common.CandidateRecipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.populated {
		return nil, false
	}
	out := make([]common.CandidateRecipe, len(c.pool))
	copy(out, c.pool)
	return out, true
}

// SetPool 設定候選池，空池不視為已填充，下次請求會重試
func (c *CandidateCache) SetPool(recipes []common.CandidateRecipe, stats PoolStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pool = make([]common.CandidateRecipe, len(recipes))
	copy(c.pool, recipes)
	c.populated = len(recipes) > 0
	c.stats.pagesFetched = stats.PagesFetched
	c.stats.pagesFailed = stats.PagesFailed

	common.LogInfo("候選池已更新",
		zap.Int("食譜數", len(recipes)),
		zap.Int("成功頁數", stats.PagesFetched),
		zap.Int("失敗頁數", stats.PagesFailed),
	)
}

// Lookup 以 ID 在候選池中查找
func (c *CandidateCache) Lookup(id string) (common.CandidateRecipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.pool {
		if r.ID == id {
			return r, true
		}
	}
	return common.CandidateRecipe{}, false
}

// Instructions 取得已快取的步驟
func (c *CandidateCache) Instructions(id string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	steps, ok := c.instructions[id]
	c.record("instructions", id, ok)
	return steps, ok
}

// StoreInstructions 快取步驟
func (c *CandidateCache) StoreInstructions(id string, steps []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instructions[id] = steps
}

// Details 取得已快取的食材與營養素
func (c *CandidateCache) Details(id string) (common.RecipeInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.details[id]
	c.record("details", id, ok)
	return info, ok
}

// StoreDetails 快取食材與營養素
func (c *CandidateCache) StoreDetails(id string, info common.RecipeInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[id] = info
}

// record 呼叫端需持有寫鎖
func (c *CandidateCache) record(tier, id string, hit bool) {
	if hit {
		c.stats.hits++
		common.LogCacheHit(tier, id)
		return
	}
	c.stats.misses++
	common.LogCacheMiss(tier, id)
}

// GetStats 獲取快取統計信息
func (c *CandidateCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hitRatio := 0.0
	if total := c.stats.hits + c.stats.misses; total > 0 {
		hitRatio = float64(c.stats.hits) / float64(total)
	}

	return map[string]interface{}{
		"pool_size":     len(c.pool),
		"instructions":  len(c.instructions),
		"details":       len(c.details),
		"hits":          c.stats.hits,
		"misses":        c.stats.misses,
		"hit_ratio":     hitRatio,
		"pages_fetched": c.stats.pagesFetched,
		"pages_failed":  c.stats.pagesFailed,
	}
}

// Close 清空快取
func (c *CandidateCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	common.LogInfo("候選快取已關閉",
		zap.Int64("命中次數", c.stats.hits),
		zap.Int64("未命中次數", c.stats.misses),
	)
	c.pool = nil
	c.populated = false
	c.instructions = make(map[string][]string)
	c.details = make(map[string]common.RecipeInfo)
	return nil
}
