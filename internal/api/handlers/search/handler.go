package search

import (
	"net/http"

	"meal-recommender/internal/core/search"
	"meal-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 搜尋處理程序
type Handler struct {
	svc   *search.Service
	debug bool
}

// NewHandler 創建搜尋處理程序
func NewHandler(svc *search.Service, debug bool) *Handler {
	return &Handler{svc: svc, debug: debug}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, resp := common.ToResponse(err, h.debug)
	_ = c.Error(err)
	common.LogDebug("Search request failed",
		zap.String("request_id", requestid.Get(c)),
		zap.String("code", resp.Code),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(status, resp)
}

// HandleSearch GET /search?q=&cuisine=
func (h *Handler) HandleSearch(c *gin.Context) {
	resp, err := h.svc.Search(c.Request.Context(), c.Query("q"), c.Query("cuisine"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleByTitle GET /search/title?title=
func (h *Handler) HandleByTitle(c *gin.Context) {
	detail, err := h.svc.ResolveByTitle(c.Request.Context(), c.Query("title"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
