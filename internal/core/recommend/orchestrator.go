package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meal-recommender/internal/core/cache"
	"meal-recommender/internal/core/image"
	"meal-recommender/internal/core/nutrition"
	"meal-recommender/internal/core/store"
	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// 詳細資料來源
const (
	SourceStore    = "store"
	SourceCache    = "cache"
	SourceProvider = "provider"
)

// Options 推薦流程參數
type Options struct {
	PageSize        int
	MaxPages        int
	PageDelay       time.Duration
	PopulateTimeout time.Duration
	SearchLimit     int
	MinTargetedPool int
	Rank            RankOptions
}

// OptionsFromConfig 由設定建立推薦流程參數
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PageSize:        cfg.Provider.PageSize,
		MaxPages:        cfg.Provider.MaxPages,
		PageDelay:       cfg.Provider.PageDelay,
		PopulateTimeout: cfg.Provider.PopulateTimeout,
		SearchLimit:     cfg.Provider.SearchLimit,
		MinTargetedPool: cfg.Recommend.MinTargetedPool,
		Rank: RankOptions{
			TopN:             cfg.Recommend.TopN,
			MinStrictResults: cfg.Recommend.MinStrictResults,
		},
	}
}

// Recommendation 一次推薦的結果
type Recommendation struct {
	Candidates        []common.ScoredCandidate `json:"candidates"`
	Ceiling           int                      `json:"ceiling"`
	Relaxed           bool                     `json:"relaxed"`
	TargetedExclusive bool                     `json:"targeted_exclusive"`
	PoolSize          int                      `json:"pool_size"`
}

// Empty 放寬條件後仍沒有候選
func (r *Recommendation) Empty() bool {
	return len(r.Candidates) == 0
}

// Orchestrator 推薦流程的唯一入口
type Orchestrator struct {
	provider nutrition.Provider
	store    store.RecipeStore
	cache    *cache.CandidateCache
	images   *image.Sidecar
	opts     Options

	fill   singleflight.Group
	imgMu  sync.RWMutex
	imgMap map[string]string
}

// NewOrchestrator 創建推薦流程；recipeStore 與 images 可為 nil
func NewOrchestrator(provider nutrition.Provider, recipeStore store.RecipeStore, candidates *cache.CandidateCache, images *image.Sidecar, opts Options) *Orchestrator {
	if candidates == nil {
		candidates = cache.NewCandidateCache()
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &Orchestrator{
		provider: provider,
		store:    recipeStore,
		cache:    candidates,
		images:   images,
		opts:     opts,
		imgMap:   make(map[string]string),
	}
}

// Cache 行程快取
func (o *Orchestrator) Cache() *cache.CandidateCache {
	return o.cache
}

// GetRecommendations 依偏好與健康滑桿產生排序後的前 N 筆候選
func (o *Orchestrator) GetRecommendations(ctx context.Context, profile common.PreferenceProfile, hp common.HealthPreference) (*Recommendation, error) {
	return o.recommend(ctx, profile, hp, nil)
}

func (o *Orchestrator) recommend(ctx context.Context, profile common.PreferenceProfile, hp common.HealthPreference, onImages image.Callback) (*Recommendation, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}

	general, err := o.ensurePool(ctx)
	if err != nil {
		return nil, err
	}

	pool := general
	exclusive := false
	if q, ok := TargetedQuery(profile.TasteBias, o.opts.SearchLimit); ok {
		targeted, err := o.provider.SearchByIngredientsAndCategories(ctx, q)
		if err != nil {
			common.LogWarn("Targeted search failed, using general pool",
				zap.String("taste", string(profile.TasteBias)),
				zap.Error(err),
			)
		}
		targeted = Backfill(targeted, general)
		pool, exclusive = MergeTargeted(targeted, general, o.opts.MinTargetedPool)
	}

	res := Rank(pool, profile, hp, o.opts.Rank)
	rec := &Recommendation{
		Candidates:        res.Candidates,
		Ceiling:           res.Ceiling,
		Relaxed:           res.Relaxed,
		TargetedExclusive: exclusive,
		PoolSize:          len(pool),
	}

	common.LogInfo("推薦完成",
		zap.Int("pool", len(pool)),
		zap.Int("results", len(rec.Candidates)),
		zap.Int("ceiling", rec.Ceiling),
		zap.Bool("relaxed", rec.Relaxed),
		zap.Bool("targeted_exclusive", exclusive),
	)

	o.dispatchImages(rec.Candidates, onImages)
	return rec, nil
}

// ensurePool 候選池為空時分頁填充，同時只會有一個填充流程
// 填充不綁定呼叫端的 ctx，呼叫端取消只結束自己的等待
func (o *Orchestrator) ensurePool(ctx context.Context) ([]common.CandidateRecipe, error) {
	if pool, ok := o.cache.Pool(); ok {
		return pool, nil
	}

	ch := o.fill.DoChan("pool", func() (interface{}, error) {
		if pool, ok := o.cache.Pool(); ok {
			return pool, nil
		}
		fillCtx := context.WithoutCancel(ctx)
		if o.opts.PopulateTimeout > 0 {
			var cancel context.CancelFunc
			fillCtx, cancel = context.WithTimeout(fillCtx, o.opts.PopulateTimeout)
			defer cancel()
		}
		return o.populate(fillCtx)
	})

	select {
	case <-ctx.Done():
		return nil, common.ErrServiceUnavailable.Wrap(fmt.Errorf("waiting for recipe pool: %w", ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			common.LogDebug("Joined in-flight pool population")
		}
		return res.Val.([]common.CandidateRecipe), nil
	}
}

// populate 逐頁抓取，頁與頁之間固定間隔；失敗的頁直接略過
// 因逾時中斷的結果只回給本次呼叫，不寫入快取，下次呼叫重新填充
func (o *Orchestrator) populate(ctx context.Context) ([]common.CandidateRecipe, error) {
	limit := rate.Inf
	if o.opts.PageDelay > 0 {
		limit = rate.Every(o.opts.PageDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		pool        []common.CandidateRecipe
		stats       cache.PoolStats
		seen        = make(map[string]struct{})
		interrupted bool
	)

	start := time.Now()
	for page := 1; page <= o.opts.MaxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			common.LogWarn("Pool population interrupted", zap.Int("page", page), zap.Error(err))
			interrupted = true
			break
		}

		result, err := o.provider.ListRecipes(ctx, page, o.opts.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				common.LogWarn("Pool population interrupted", zap.Int("page", page), zap.Error(err))
				interrupted = true
				break
			}
			stats.PagesFailed++
			common.LogWarn("Recipe page skipped", zap.Int("page", page), zap.Error(err))
			continue
		}
		stats.PagesFetched++

		for _, r := range result.Recipes {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			pool = append(pool, r)
		}
		if result.Last() {
			break
		}
	}

	if interrupted {
		common.LogWarn("候選池未完成，不寫入快取",
			zap.Int("recipes", len(pool)),
			zap.Int("pages_fetched", stats.PagesFetched),
			zap.Duration("耗時", time.Since(start)),
		)
		return pool, nil
	}

	o.cache.SetPool(pool, stats)
	common.LogInfo("候選池填充完成",
		zap.Int("recipes", len(pool)),
		zap.Int("pages_fetched", stats.PagesFetched),
		zap.Int("pages_failed", stats.PagesFailed),
		zap.Duration("耗時", time.Since(start)),
	)
	return pool, nil
}

// dispatchImages 非同步查縮圖，不阻塞排序結果
func (o *Orchestrator) dispatchImages(candidates []common.ScoredCandidate, onImages image.Callback) {
	if o.images == nil || len(candidates) == 0 {
		return
	}

	batch := make([]image.Candidate, len(candidates))
	for i, c := range candidates {
		batch[i] = image.Candidate{ID: c.ID, Title: c.Title}
	}

	err := o.images.Dispatch(batch, func(images map[string]string) {
		o.imgMu.Lock()
		for id, url := range images {
			if url != o.images.Placeholder() {
				o.imgMap[id] = url
			}
		}
		o.imgMu.Unlock()

		if onImages != nil {
			onImages(images)
		}
	})
	if err != nil {
		common.LogDebug("Image dispatch skipped", zap.Error(err))
	}
}

// Image 已解析的縮圖，未解析時回傳佔位圖
func (o *Orchestrator) Image(id string) string {
	o.imgMu.RLock()
	url, ok := o.imgMap[id]
	o.imgMu.RUnlock()
	if ok {
		return url
	}
	if o.images != nil {
		return o.images.Placeholder()
	}
	return ""
}

// ResolveDetail 依 食譜庫 → 行程快取 → 供應商 的順序解析完整食譜並寫回
func (o *Orchestrator) ResolveDetail(ctx context.Context, id string) (*common.RecipeDetail, error) {
	if id == "" {
		return nil, common.NewValidationError("recipe id is required")
	}
	candidate, known := o.cache.Lookup(id)

	if detail, ok := o.fromStore(ctx, id, candidate, known); ok {
		return o.finish(detail), nil
	}

	var (
		steps      []string
		info       common.RecipeInfo
		fromRemote bool
		mu         sync.Mutex
	)

	var g errgroup.Group
	g.Go(func() error {
		if cached, ok := o.cache.Instructions(id); ok {
			steps = cached
			return nil
		}
		fetched, err := o.provider.GetInstructions(ctx, id)
		if err != nil {
			common.LogWarn("Instructions unavailable", zap.String("recipe_id", id), zap.Error(err))
			return nil
		}
		o.cache.StoreInstructions(id, fetched)
		steps = fetched
		mu.Lock()
		fromRemote = true
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		if cached, ok := o.cache.Details(id); ok {
			info = cached
			return nil
		}
		fetched, err := o.provider.GetDetails(ctx, id)
		if err != nil {
			common.LogWarn("Details unavailable", zap.String("recipe_id", id), zap.Error(err))
			return nil
		}
		o.cache.StoreDetails(id, *fetched)
		info = *fetched
		mu.Lock()
		fromRemote = true
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if !known && len(steps) == 0 && len(info.Ingredients) == 0 && info.Title == "" {
		return nil, common.ErrRecipeNotFound
	}

	detail := common.RecipeDetail{
		ID:           id,
		Title:        info.Title,
		Instructions: steps,
		Ingredients:  info.Ingredients,
		Macros:       info.Macros,
		PrepTime:     info.PrepTime,
		CookTime:     info.CookTime,
		Servings:     info.Servings,
		Region:       info.Region,
		Continent:    info.Continent,
		Source:       SourceCache,
	}
	if fromRemote {
		detail.Source = SourceProvider
	}
	if detail.Instructions == nil {
		detail.Instructions = []string{}
	}
	if detail.Ingredients == nil {
		detail.Ingredients = []common.Ingredient{}
	}
	if known {
		backfillDetail(&detail, candidate)
	}

	o.writeBack(ctx, detail)
	return o.finish(detail), nil
}

// fromStore 食譜庫命中且有步驟時直接回傳
func (o *Orchestrator) fromStore(ctx context.Context, id string, candidate common.CandidateRecipe, known bool) (common.RecipeDetail, bool) {
	if o.store == nil {
		return common.RecipeDetail{}, false
	}

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.LogCacheMiss(SourceStore, id)
		} else {
			common.LogWarn("Store lookup failed", zap.String("recipe_id", id), zap.Error(err))
		}
		return common.RecipeDetail{}, false
	}
	if len(rec.Instructions) == 0 {
		return common.RecipeDetail{}, false
	}

	common.LogCacheHit(SourceStore, id)
	detail := rec.Detail()
	detail.Source = SourceStore
	if detail.Ingredients == nil {
		detail.Ingredients = []common.Ingredient{}
	}
	if known {
		backfillDetail(&detail, candidate)
	}
	return detail, true
}

// backfillDetail 以候選資料補齊為零的欄位
func backfillDetail(d *common.RecipeDetail, c common.CandidateRecipe) {
	if d.Title == "" {
		d.Title = c.Title
	}
	if d.Macros.Calories == 0 {
		d.Macros.Calories = c.Calories
	}
	if d.Macros.Protein == 0 {
		d.Macros.Protein = c.Protein
	}
	if d.PrepTime == 0 {
		d.PrepTime = c.PrepTime
	}
	if d.Region == "" {
		d.Region = c.Region
	}
}

// writeBack 寫回失敗只記錄，不影響使用者看到的結果
func (o *Orchestrator) writeBack(ctx context.Context, d common.RecipeDetail) {
	if o.store == nil || (len(d.Instructions) == 0 && len(d.Ingredients) == 0) {
		return
	}
	if err := o.store.Upsert(ctx, store.NewRecord(d)); err != nil {
		common.LogWarn("Recipe write-back failed",
			zap.String("recipe_id", d.ID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) finish(d common.RecipeDetail) *common.RecipeDetail {
	d.HealthScore = HealthScore(d.Macros)
	d.HealthLabel = HealthLabel(d.HealthScore)
	d.IngredientLines = common.IngredientPhrases(d.Ingredients)
	if d.Image == "" {
		d.Image = o.Image(d.ID)
	}
	return &d
}
