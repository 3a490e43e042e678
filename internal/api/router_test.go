package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meal-recommender/internal/api/handlers/health"
	"meal-recommender/internal/core/nutrition"
	"meal-recommender/internal/core/recommend"
	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyProvider struct{}

func (emptyProvider) ListRecipes(ctx context.Context, page, pageSize int) (*nutrition.RecipePage, error) {
	return &nutrition.RecipePage{Page: page, TotalPages: 1}, nil
}

func (emptyProvider) GetInstructions(ctx context.Context, id string) ([]string, error) {
	return nil, common.ErrProviderUnavailable
}

func (emptyProvider) GetDetails(ctx context.Context, id string) (*common.RecipeInfo, error) {
	return nil, common.ErrProviderUnavailable
}

func (emptyProvider) SearchByIngredientsAndCategories(ctx context.Context, q nutrition.SearchQuery) ([]common.CandidateRecipe, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Version: "test", Debug: true},
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 100, Window: time.Minute},
	}
}

func testDeps(t *testing.T, checks map[string]health.Pinger) Dependencies {
	t.Helper()
	orch := recommend.NewOrchestrator(emptyProvider{}, nil, nil, nil, recommend.Options{
		PageSize: 10, MaxPages: 1, Rank: recommend.DefaultRankOptions(),
	})
	registry := recommend.NewRegistry(orch, 0)
	t.Cleanup(registry.Close)
	return Dependencies{Orchestrator: orch, Registry: registry, Checks: checks}
}

func TestSetupRouter_RequiresCore(t *testing.T) {
	_, err := SetupRouter(testConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestSetupRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, err := SetupRouter(testConfig(), testDeps(t, map[string]health.Pinger{
		"store": func(ctx context.Context) error { return errors.New("down") },
	}))
	require.NoError(t, err)

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/live", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/v1/sessions", "", http.StatusCreated},
		{http.MethodGet, "/api/v1/sessions/missing", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/recommendations", `{"profile":{"calorie_range":{"min":0,"max":500}},"health_preference":50}`, http.StatusOK},
		{http.MethodGet, "/api/v1/recipes/7", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRequestTimeout_WritesGatewayTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestTimeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_TIMEOUT")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
