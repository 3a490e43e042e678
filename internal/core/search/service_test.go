package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"meal-recommender/internal/core/cache"
	"meal-recommender/internal/core/nutrition"
	"meal-recommender/internal/core/recommend"
	"meal-recommender/internal/core/store"
	"meal-recommender/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	_ Provider       = (*nutrition.Client)(nil)
	_ Store          = (*store.Store)(nil)
	_ DetailResolver = (*recommend.Orchestrator)(nil)
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SearchByTitle(ctx context.Context, title string) ([]common.CandidateRecipe, error) {
	args := m.Called(ctx, title)
	recipes, _ := args.Get(0).([]common.CandidateRecipe)
	return recipes, args.Error(1)
}

func (m *mockProvider) SearchByCuisine(ctx context.Context, region string, pageSize int) ([]common.CandidateRecipe, error) {
	args := m.Called(ctx, region, pageSize)
	recipes, _ := args.Get(0).([]common.CandidateRecipe)
	return recipes, args.Error(1)
}

func (m *mockProvider) GetDetails(ctx context.Context, id string) (*common.RecipeInfo, error) {
	args := m.Called(ctx, id)
	info, _ := args.Get(0).(*common.RecipeInfo)
	return info, args.Error(1)
}

type resolverFunc func(ctx context.Context, id string) (*common.RecipeDetail, error)

func (f resolverFunc) ResolveDetail(ctx context.Context, id string) (*common.RecipeDetail, error) {
	return f(ctx, id)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "recipes.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := store.New(db)
	require.NoError(t, s.Migrate())
	return s
}

func info(id string, calories, protein float64) *common.RecipeInfo {
	return &common.RecipeInfo{
		ID:          id,
		Macros:      common.Macros{Calories: calories, Protein: protein},
		Ingredients: []common.Ingredient{{Name: "chicken", Quantity: "200", Unit: "g", Phrase: "200 g chicken"}},
	}
}

func chickenCandidates() []common.CandidateRecipe {
	return []common.CandidateRecipe{
		{ID: "1", Title: "Chicken Salad", CookTime: 20},
		{ID: "2", Title: "Chicken Pie", CookTime: 45},
		{ID: "1", Title: "Chicken Salad"},
	}
}

func TestSearch_StoreHitsSkipProvider(t *testing.T) {
	ctx := context.Background()
	recipeStore := newTestStore(t)
	require.NoError(t, recipeStore.Upsert(ctx, store.NewRecord(common.RecipeDetail{
		ID:     "1",
		Title:  "Chicken Salad",
		Macros: common.Macros{Calories: 250.4, Protein: 25},
	})))

	provider := &mockProvider{}
	provider.On("SearchByTitle", mock.Anything, "chicken").Return(chickenCandidates(), nil)
	provider.On("GetDetails", mock.Anything, "2").Return(info("2", 400, 30), nil).Once()

	candidates := cache.NewCandidateCache()
	svc := NewService(provider, recipeStore, candidates, nil, Options{})

	resp, err := svc.Search(ctx, "high protein chicken", "")
	require.NoError(t, err)
	assert.Equal(t, "chicken", resp.Intent.FoodName)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "1", resp.Results[0].ID)
	assert.Equal(t, "store", resp.Results[0].Source)
	assert.Equal(t, 250.0, resp.Results[0].Macros.Calories)

	assert.Equal(t, "2", resp.Results[1].ID)
	assert.Equal(t, "provider", resp.Results[1].Source)
	assert.Equal(t, "Chicken Pie", resp.Results[1].Title)
	assert.Equal(t, 45, resp.Results[1].CookTime)
	assert.Equal(t, 90, resp.Results[1].HealthScore)

	provider.AssertNotCalled(t, "GetDetails", mock.Anything, "1")

	// 缺少的食譜已寫回並放進行程快取
	rec, err := recipeStore.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Chicken Pie", rec.Name)
	assert.Equal(t, 45, rec.CookTime)
	_, ok := candidates.Details("2")
	assert.True(t, ok)
}

func TestSearch_AppliesIntentFilters(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	provider.On("SearchByTitle", mock.Anything, "chicken").Return(chickenCandidates(), nil)
	provider.On("GetDetails", mock.Anything, "1").Return(info("1", 250, 22), nil).Once()
	provider.On("GetDetails", mock.Anything, "2").Return(info("2", 450, 35), nil).Once()

	svc := NewService(provider, newTestStore(t), nil, nil, Options{DetailConcurrency: 2})

	resp, err := svc.Search(ctx, "chicken under 300 calories", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "1", resp.Results[0].ID)

	// 第二次搜尋由食譜庫提供，不再呼叫供應商
	resp, err = svc.Search(ctx, "chicken 30 min", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "1", resp.Results[0].ID)
	assert.Equal(t, "store", resp.Results[0].Source)

	provider.AssertNumberOfCalls(t, "GetDetails", 2)
}

func TestSearch_CuisineWithoutFoodName(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchByCuisine", mock.Anything, "Indian", 10).Return([]common.CandidateRecipe{}, nil).Once()

	svc := NewService(provider, newTestStore(t), nil, nil, Options{})
	resp, err := svc.Search(context.Background(), "under 300 calories", "Indian")
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 300.0, resp.Intent.MaxCalories)
	provider.AssertExpectations(t)
}

func TestSearch_RequiresFoodNameOrCuisine(t *testing.T) {
	svc := NewService(&mockProvider{}, nil, nil, nil, Options{})

	_, err := svc.Search(context.Background(), "under 300 calories", "")
	assert.True(t, common.IsValidationError(err))
}

func TestSearch_DetailFailureSkipsRecipe(t *testing.T) {
	ctx := context.Background()
	recipeStore := newTestStore(t)
	provider := &mockProvider{}
	provider.On("SearchByTitle", mock.Anything, "chicken").Return(chickenCandidates(), nil)
	provider.On("GetDetails", mock.Anything, "1").Return(info("1", 250, 22), nil)
	provider.On("GetDetails", mock.Anything, "2").Return(nil, common.ErrProviderUnavailable)

	svc := NewService(provider, recipeStore, nil, nil, Options{})
	resp, err := svc.Search(ctx, "chicken", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "1", resp.Results[0].ID)

	_, err = recipeStore.Get(ctx, "2")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSearch_ProviderFailure(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchByTitle", mock.Anything, "ramen").Return(nil, common.ErrProviderUnavailable)

	svc := NewService(provider, nil, nil, nil, Options{})
	_, err := svc.Search(context.Background(), "ramen", "")
	assert.True(t, errors.Is(err, common.ErrProviderUnavailable))
}

func TestResolveByTitle_StoreFirst(t *testing.T) {
	ctx := context.Background()
	recipeStore := newTestStore(t)
	require.NoError(t, recipeStore.Upsert(ctx, store.NewRecord(common.RecipeDetail{
		ID:          "2610",
		Title:       "Lentil Soup",
		Ingredients: []common.Ingredient{{Name: "lentils"}},
	})))

	var resolved string
	resolver := resolverFunc(func(ctx context.Context, id string) (*common.RecipeDetail, error) {
		resolved = id
		return &common.RecipeDetail{ID: id, Title: "Lentil Soup"}, nil
	})

	provider := &mockProvider{}
	svc := NewService(provider, recipeStore, nil, resolver, Options{})

	detail, err := svc.ResolveByTitle(ctx, "lentil")
	require.NoError(t, err)
	assert.Equal(t, "2610", resolved)
	assert.Equal(t, "Lentil Soup", detail.Title)
	provider.AssertNotCalled(t, "SearchByTitle", mock.Anything, mock.Anything)
}

func TestResolveByTitle_FallsBackToProvider(t *testing.T) {
	ctx := context.Background()
	recipeStore := newTestStore(t)
	// 沒有食材的紀錄不算命中
	require.NoError(t, recipeStore.Upsert(ctx, store.NewRecord(common.RecipeDetail{ID: "5", Title: "Pho Noodles"})))

	provider := &mockProvider{}
	provider.On("SearchByTitle", mock.Anything, "pho").
		Return([]common.CandidateRecipe{{ID: "9", Title: "Pho Bo"}, {ID: "10", Title: "Pho Ga"}}, nil).Once()

	resolver := resolverFunc(func(ctx context.Context, id string) (*common.RecipeDetail, error) {
		return &common.RecipeDetail{ID: id}, nil
	})

	svc := NewService(provider, recipeStore, nil, resolver, Options{})
	detail, err := svc.ResolveByTitle(ctx, "pho")
	require.NoError(t, err)
	assert.Equal(t, "9", detail.ID)
	assert.Equal(t, "Pho Bo", detail.Title)
}

func TestResolveByTitle_NotFound(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SearchByTitle", mock.Anything, "zzz").Return([]common.CandidateRecipe{}, nil)

	svc := NewService(provider, nil, nil, nil, Options{})

	_, err := svc.ResolveByTitle(context.Background(), "zzz")
	assert.True(t, errors.Is(err, common.ErrRecipeNotFound))

	_, err = svc.ResolveByTitle(context.Background(), " ")
	assert.True(t, common.IsValidationError(err))
}
