package search

import (
	"context"
	"errors"
	"math"
	"strings"

	"meal-recommender/internal/core/cache"
	"meal-recommender/internal/core/recommend"
	"meal-recommender/internal/core/store"
	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Provider 搜尋需要的供應商操作
type Provider interface {
	SearchByTitle(ctx context.Context, title string) ([]common.CandidateRecipe, error)
	SearchByCuisine(ctx context.Context, region string, pageSize int) ([]common.CandidateRecipe, error)
	GetDetails(ctx context.Context, id string) (*common.RecipeInfo, error)
}

// Store 搜尋需要的食譜庫操作
type Store interface {
	GetMany(ctx context.Context, recipeIDs []string) ([]store.RecipeRecord, error)
	FindByTitle(ctx context.Context, title string) (*store.RecipeRecord, error)
	Upsert(ctx context.Context, rec *store.RecipeRecord) error
}

// DetailResolver 解析完整食譜
type DetailResolver interface {
	ResolveDetail(ctx context.Context, id string) (*common.RecipeDetail, error)
}

// Options 搜尋參數
type Options struct {
	CuisinePageSize   int
	DetailConcurrency int
}

// OptionsFromConfig 由設定建立搜尋參數
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CuisinePageSize:   cfg.Search.CuisinePageSize,
		DetailConcurrency: cfg.Search.DetailConcurrency,
	}
}

// Result 搜尋結果的單筆摘要
type Result struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Region      string        `json:"region,omitempty"`
	Macros      common.Macros `json:"macros"`
	CookTime    int           `json:"cook_time"`
	PrepTime    int           `json:"prep_time"`
	Servings    int           `json:"servings"`
	HealthScore int           `json:"health_score"`
	HealthLabel string        `json:"health_label"`
	Source      string        `json:"source"`
}

// Response 搜尋回應
type Response struct {
	Query   string   `json:"query"`
	Cuisine string   `json:"cuisine,omitempty"`
	Intent  Intent   `json:"intent"`
	Results []Result `json:"results"`
}

// Service 自由文字搜尋與標題查詢
type Service struct {
	provider Provider
	store    Store
	cache    *cache.CandidateCache
	resolver DetailResolver
	opts     Options
}

// NewService 創建搜尋服務；candidates 為 nil 時不共用詳細資料快取
func NewService(provider Provider, recipeStore Store, candidates *cache.CandidateCache, resolver DetailResolver, opts Options) *Service {
	if opts.CuisinePageSize <= 0 {
		opts.CuisinePageSize = 10
	}
	if opts.DetailConcurrency <= 0 {
		opts.DetailConcurrency = 8
	}
	return &Service{
		provider: provider,
		store:    recipeStore,
		cache:    candidates,
		resolver: resolver,
		opts:     opts,
	}
}

// Search 解析查詢意圖，有食物名稱時以標題搜尋，否則以料理區域搜尋；
// 食譜庫已有的直接使用，只向供應商補抓缺少的並寫回
func (s *Service) Search(ctx context.Context, query, cuisine string) (*Response, error) {
	query = strings.TrimSpace(query)
	cuisine = strings.TrimSpace(cuisine)
	intent := ParseIntent(query)

	var (
		found []common.CandidateRecipe
		err   error
	)
	switch {
	case intent.FoodName != "":
		found, err = s.provider.SearchByTitle(ctx, intent.FoodName)
	case cuisine != "":
		found, err = s.provider.SearchByCuisine(ctx, cuisine, s.opts.CuisinePageSize)
	default:
		return nil, common.NewValidationError("query with a food name or cuisine is required")
	}
	if err != nil {
		return nil, err
	}
	found = dedupe(found)

	results := s.collect(ctx, found)
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if matches(r, intent) {
			filtered = append(filtered, r)
		}
	}

	common.LogInfo("搜尋完成",
		zap.String("query", query),
		zap.String("food", intent.FoodName),
		zap.String("cuisine", cuisine),
		zap.Int("found", len(found)),
		zap.Int("resolved", len(results)),
		zap.Int("results", len(filtered)),
	)

	return &Response{
		Query:   query,
		Cuisine: cuisine,
		Intent:  intent,
		Results: filtered,
	}, nil
}

// collect 依供應商順序組合結果：食譜庫命中優先，其餘平行抓詳細資料，失敗的略過
func (s *Service) collect(ctx context.Context, found []common.CandidateRecipe) []Result {
	if len(found) == 0 {
		return nil
	}

	stored := s.lookupStored(ctx, found)

	slots := make([]*Result, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.DetailConcurrency)
	for i, c := range found {
		if rec, ok := stored[c.ID]; ok {
			common.LogCacheHit(recommend.SourceStore, c.ID)
			r := fromRecord(rec)
			slots[i] = &r
			continue
		}

		i, c := i, c
		g.Go(func() error {
			info, source, ok := s.details(gctx, c.ID)
			if !ok {
				return nil
			}
			s.writeBack(gctx, c, info)
			r := fromInfo(c, info, source)
			slots[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Result, 0, len(found))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// lookupStored 批次查食譜庫，失敗時全部當作未命中
func (s *Service) lookupStored(ctx context.Context, found []common.CandidateRecipe) map[string]store.RecipeRecord {
	stored := make(map[string]store.RecipeRecord)
	if s.store == nil {
		return stored
	}

	ids := make([]string, len(found))
	for i, c := range found {
		ids[i] = c.ID
	}
	recs, err := s.store.GetMany(ctx, ids)
	if err != nil {
		common.LogWarn("Store batch lookup failed", zap.Int("ids", len(ids)), zap.Error(err))
		return stored
	}
	for _, rec := range recs {
		stored[rec.RecipeID] = rec
	}
	return stored
}

// details 行程快取優先，再問供應商
func (s *Service) details(ctx context.Context, id string) (common.RecipeInfo, string, bool) {
	if s.cache != nil {
		if info, ok := s.cache.Details(id); ok {
			return info, recommend.SourceCache, true
		}
	}

	info, err := s.provider.GetDetails(ctx, id)
	if err != nil {
		common.LogWarn("Search detail unavailable", zap.String("recipe_id", id), zap.Error(err))
		return common.RecipeInfo{}, "", false
	}
	if s.cache != nil {
		s.cache.StoreDetails(id, *info)
	}
	return *info, recommend.SourceProvider, true
}

// writeBack 沒有食材的資料不寫回；步驟留待選取時補齊
func (s *Service) writeBack(ctx context.Context, c common.CandidateRecipe, info common.RecipeInfo) {
	if s.store == nil || len(info.Ingredients) == 0 {
		return
	}

	detail := common.RecipeDetail{
		ID:          c.ID,
		Title:       firstNonEmpty(c.Title, info.Title),
		Ingredients: info.Ingredients,
		Macros:      info.Macros,
		PrepTime:    firstPositive(info.PrepTime, c.PrepTime),
		CookTime:    firstPositive(info.CookTime, c.CookTime),
		Servings:    info.Servings,
		Region:      firstNonEmpty(info.Region, c.Region),
		Continent:   info.Continent,
	}
	if err := s.store.Upsert(ctx, store.NewRecord(detail)); err != nil {
		common.LogWarn("Search write-back failed", zap.String("recipe_id", c.ID), zap.Error(err))
	}
}

// ResolveByTitle 食譜庫中有食材的同名食譜優先，否則取供應商標題搜尋的第一筆
func (s *Service) ResolveByTitle(ctx context.Context, title string) (*common.RecipeDetail, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, common.NewValidationError("title is required")
	}

	var id, fallbackTitle string
	if s.store != nil {
		rec, err := s.store.FindByTitle(ctx, title)
		switch {
		case err == nil && len(rec.Ingredients) > 0:
			common.LogCacheHit(recommend.SourceStore, rec.RecipeID)
			id, fallbackTitle = rec.RecipeID, rec.Name
		case err != nil && !errors.Is(err, store.ErrNotFound):
			common.LogWarn("Store title lookup failed", zap.String("title", title), zap.Error(err))
		}
	}

	if id == "" {
		found, err := s.provider.SearchByTitle(ctx, title)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, common.ErrRecipeNotFound
		}
		id, fallbackTitle = found[0].ID, found[0].Title
	}

	detail, err := s.resolver.ResolveDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Title == "" {
		detail.Title = fallbackTitle
	}
	return detail, nil
}

func fromRecord(rec store.RecipeRecord) Result {
	return newResult(rec.RecipeID, rec.Name, rec.Region, common.Macros{
		Calories: rec.Calories,
		Protein:  rec.Protein,
		Carbs:    rec.Carbs,
		Fat:      rec.Fat,
	}, rec.CookTime, rec.PrepTime, rec.Servings, recommend.SourceStore)
}

func fromInfo(c common.CandidateRecipe, info common.RecipeInfo, source string) Result {
	m := info.Macros
	if m.Calories == 0 {
		m.Calories = c.Calories
	}
	if m.Protein == 0 {
		m.Protein = c.Protein
	}
	return newResult(c.ID, firstNonEmpty(c.Title, info.Title), firstNonEmpty(c.Region, info.Region), m,
		firstPositive(c.CookTime, info.CookTime), firstPositive(c.PrepTime, info.PrepTime), info.Servings, source)
}

// newResult 健康分數以原始數值計算，顯示的營養素取整數
func newResult(id, title, region string, m common.Macros, cookTime, prepTime, servings int, source string) Result {
	score := recommend.HealthScore(m)
	return Result{
		ID:     id,
		Title:  title,
		Region: region,
		Macros: common.Macros{
			Calories: math.Round(m.Calories),
			Protein:  math.Round(m.Protein),
			Carbs:    math.Round(m.Carbs),
			Fat:      math.Round(m.Fat),
		},
		CookTime:    cookTime,
		PrepTime:    prepTime,
		Servings:    servings,
		HealthScore: score,
		HealthLabel: recommend.HealthLabel(score),
		Source:      source,
	}
}

// matches 套用意圖中的數值條件；烹調時間未知（0）時不排除
func matches(r Result, in Intent) bool {
	if in.MaxTime > 0 && r.CookTime > in.MaxTime {
		return false
	}
	if in.MaxCalories > 0 && r.Macros.Calories > in.MaxCalories {
		return false
	}
	if in.MinCalories > 0 && r.Macros.Calories < in.MinCalories {
		return false
	}
	if in.MinProtein > 0 && r.Macros.Protein < in.MinProtein {
		return false
	}
	return true
}

func dedupe(found []common.CandidateRecipe) []common.CandidateRecipe {
	seen := make(map[string]struct{}, len(found))
	out := found[:0:0]
	for _, c := range found {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
