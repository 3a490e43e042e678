package recommend

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"meal-recommender/internal/core/nutrition"
	"meal-recommender/internal/core/store"
	"meal-recommender/internal/pkg/common"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ListRecipes(ctx context.Context, page, pageSize int) (*nutrition.RecipePage, error) {
	args := m.Called(ctx, page, pageSize)
	p, _ := args.Get(0).(*nutrition.RecipePage)
	return p, args.Error(1)
}

func (m *mockProvider) GetInstructions(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	steps, _ := args.Get(0).([]string)
	return steps, args.Error(1)
}

func (m *mockProvider) GetDetails(ctx context.Context, id string) (*common.RecipeInfo, error) {
	args := m.Called(ctx, id)
	info, _ := args.Get(0).(*common.RecipeInfo)
	return info, args.Error(1)
}

func (m *mockProvider) SearchByIngredientsAndCategories(ctx context.Context, q nutrition.SearchQuery) ([]common.CandidateRecipe, error) {
	args := m.Called(ctx, q)
	recipes, _ := args.Get(0).([]common.CandidateRecipe)
	return recipes, args.Error(1)
}

// failingStore 寫入一律失敗
type failingStore struct{}

func (failingStore) Get(ctx context.Context, recipeID string) (*store.RecipeRecord, error) {
	return nil, store.ErrNotFound
}

func (failingStore) Upsert(ctx context.Context, rec *store.RecipeRecord) error {
	return common.ErrStoreWriteFailed.Wrap(fmt.Errorf("disk full"))
}

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "recipes.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := store.New(db)
	require.NoError(t, s.Migrate())
	return s
}

func testOptions() Options {
	return Options{
		PageSize:        100,
		MaxPages:        5,
		SearchLimit:     50,
		MinTargetedPool: 5,
		Rank:            DefaultRankOptions(),
	}
}

// makeRecipes 產生 n 筆符合一般偏好的候選
func makeRecipes(prefix string, n int) []common.CandidateRecipe {
	out := make([]common.CandidateRecipe, n)
	for i := range out {
		out[i] = common.CandidateRecipe{
			ID:       fmt.Sprintf("%s%d", prefix, i),
			Title:    fmt.Sprintf("Recipe %s%d", prefix, i),
			Calories: 300 + float64(i),
			Protein:  20 + float64(i%10),
			PrepTime: 20,
		}
	}
	return out
}

func broadProfile() common.PreferenceProfile {
	return common.PreferenceProfile{CalorieRange: common.CalorieRange{Min: 100, Max: 800}}
}
