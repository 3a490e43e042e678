package nutrition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	endpointRecipesInfo  = "/recipe/recipesinfo"
	endpointInstructions = "/instructions/{id}"
	endpointDetails      = "/search-recipe/{id}"
	endpointSearch       = "/recipe-by-ingredient/by-ingredients-categories-title"
	endpointByTitle      = "/recipe-bytitle/recipeByTitle"
	endpointCuisine      = "/recipes_cuisine/cuisine/{region}"
)

// Provider 營養資料供應商介面，所有呼叫皆為冪等讀取，不重試
type Provider interface {
	ListRecipes(ctx context.Context, page, pageSize int) (*RecipePage, error)
	GetInstructions(ctx context.Context, id string) ([]string, error)
	GetDetails(ctx context.Context, id string) (*common.RecipeInfo, error)
	SearchByIngredientsAndCategories(ctx context.Context, q SearchQuery) ([]common.CandidateRecipe, error)
}

// RecipePage 清單分頁結果
type RecipePage struct {
	Recipes    []common.CandidateRecipe
	Page       int
	TotalPages int // 0 表示供應商未回報
}

// Last 是否為最後一頁
func (p *RecipePage) Last() bool {
	return p.TotalPages > 0 && p.Page >= p.TotalPages
}

// SearchQuery 食材與分類搜尋條件
type SearchQuery struct {
	Include    []string
	Exclude    []string
	Categories []string
	Page       int
	Limit      int
}

// Client 營養資料供應商客戶端
type Client struct {
	config *config.ProviderConfig
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
}

// NewClient 創建供應商客戶端
func NewClient(cfg *config.ProviderConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	c := &Client{
		config: cfg,
		client: client,
	}
	if cfg.BreakerEnabled {
		c.cb = newBreaker("nutrition-provider")
	}
	return c
}

// newBreaker 供應商斷路器：至少 10 次請求且失敗率 >= 60% 時打開
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			common.LogWarn("Circuit breaker state transition",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// 呼叫端取消不算供應商失敗
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// get 發送 GET 請求，非 2xx 或網路錯誤皆視為 ProviderUnavailable
func (c *Client) get(ctx context.Context, endpoint string, build func(*resty.Request)) ([]byte, error) {
	call := func() ([]byte, error) {
		req := c.client.R().SetContext(ctx)
		if build != nil {
			build(req)
		}
		resp, err := req.Get(endpoint)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", endpoint, err)
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode())
		}
		return resp.Body(), nil
	}

	start := time.Now()
	var (
		body []byte
		err  error
	)
	if c.cb != nil {
		body, err = c.cb.Execute(call)
	} else {
		body, err = call()
	}
	common.LogProviderCall(endpoint, time.Since(start), err)

	if err != nil {
		return nil, common.ErrProviderUnavailable.Wrap(err)
	}
	if len(body) > 0 && !gjson.ValidBytes(body) {
		return nil, common.ErrProviderUnavailable.Wrap(fmt.Errorf("%s returned malformed JSON", endpoint))
	}
	return body, nil
}

// ListRecipes 取得單頁食譜清單
func (c *Client) ListRecipes(ctx context.Context, page, pageSize int) (*RecipePage, error) {
	body, err := c.get(ctx, endpointRecipesInfo, func(r *resty.Request) {
		r.SetQueryParams(map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(pageSize),
		})
	})
	if err != nil {
		return nil, err
	}

	pagination := newRecord(gjson.GetBytes(body, "payload.pagination"))
	return &RecipePage{
		Recipes:    parseCandidates(body),
		Page:       page,
		TotalPages: pagination.intOrZero("totalPages", "total_pages", "last_page"),
	}, nil
}

// GetInstructions 取得食譜步驟
func (c *Client) GetInstructions(ctx context.Context, id string) ([]string, error) {
	body, err := c.get(ctx, endpointInstructions, func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
	if err != nil {
		return nil, err
	}
	return parseInstructions(body), nil
}

// GetDetails 取得食譜食材與營養素
func (c *Client) GetDetails(ctx context.Context, id string) (*common.RecipeInfo, error) {
	body, err := c.get(ctx, endpointDetails, func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
	if err != nil {
		return nil, err
	}
	info := parseRecipeInfo(id, body)
	return &info, nil
}

// SearchByIngredientsAndCategories 以食材與分類做定向搜尋
func (c *Client) SearchByIngredientsAndCategories(ctx context.Context, q SearchQuery) ([]common.CandidateRecipe, error) {
	page := q.Page
	if page <= 0 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = c.config.SearchLimit
	}

	body, err := c.get(ctx, endpointSearch, func(r *resty.Request) {
		params := map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		}
		if len(q.Include) > 0 {
			params["includeIngredients"] = strings.Join(q.Include, ",")
		}
		if len(q.Exclude) > 0 {
			params["excludeIngredients"] = strings.Join(q.Exclude, ",")
		}
		if len(q.Categories) > 0 {
			params["includeCategories"] = strings.Join(q.Categories, ",")
		}
		r.SetQueryParams(params)
	})
	if err != nil {
		return nil, err
	}
	return parseCandidates(body), nil
}

// SearchByTitle 以標題關鍵字搜尋
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]common.CandidateRecipe, error) {
	body, err := c.get(ctx, endpointByTitle, func(r *resty.Request) {
		r.SetQueryParam("title", title)
	})
	if err != nil {
		return nil, err
	}
	return parseCandidates(body), nil
}

// SearchByCuisine 依料理區域取第一頁
func (c *Client) SearchByCuisine(ctx context.Context, region string, pageSize int) ([]common.CandidateRecipe, error) {
	body, err := c.get(ctx, endpointCuisine, func(r *resty.Request) {
		r.SetPathParam("region", region)
		r.SetQueryParams(map[string]string{
			"field":     "total_time",
			"min":       "0",
			"max":       "1000",
			"page":      "1",
			"page_size": strconv.Itoa(pageSize),
		})
	})
	if err != nil {
		return nil, err
	}
	return parseCandidates(body), nil
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
