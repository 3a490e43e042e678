package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"meal-recommender/internal/core/search"
	"meal-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{}

func (fakeProvider) SearchByTitle(ctx context.Context, title string) ([]common.CandidateRecipe, error) {
	if title == "nothing" {
		return nil, nil
	}
	return []common.CandidateRecipe{{ID: "3", Title: "Tofu Stir Fry", CookTime: 15}}, nil
}

func (fakeProvider) SearchByCuisine(ctx context.Context, region string, pageSize int) ([]common.CandidateRecipe, error) {
	return nil, common.ErrProviderUnavailable
}

func (fakeProvider) GetDetails(ctx context.Context, id string) (*common.RecipeInfo, error) {
	return &common.RecipeInfo{ID: id, Macros: common.Macros{Calories: 320, Protein: 18}}, nil
}

type fakeResolver struct{}

func (fakeResolver) ResolveDetail(ctx context.Context, id string) (*common.RecipeDetail, error) {
	return &common.RecipeDetail{ID: id, Instructions: []string{"Stir"}}, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := search.NewService(fakeProvider{}, nil, nil, fakeResolver{}, search.Options{})
	h := NewHandler(svc, false)

	r := gin.New()
	r.GET("/search", h.HandleSearch)
	r.GET("/search/title", h.HandleByTitle)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandleSearch(t *testing.T) {
	r := newTestRouter()

	w := get(r, "/search?q=quick+tofu+20+min")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp search.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tofu", resp.Intent.FoodName)
	assert.Equal(t, 20, resp.Intent.MaxTime)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Tofu Stir Fry", resp.Results[0].Title)

	w = get(r, "/search?q=under+300+cal")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/search?cuisine=Thai")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodeProviderUnavailable)
}

func TestHandleByTitle(t *testing.T) {
	r := newTestRouter()

	w := get(r, "/search/title?title=tofu")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail common.RecipeDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "3", detail.ID)
	assert.Equal(t, "Tofu Stir Fry", detail.Title)

	w = get(r, "/search/title?title=nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(r, "/search/title")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
