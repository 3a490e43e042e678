package recommend

import (
	"net/http"

	"meal-recommender/internal/core/profile"
	"meal-recommender/internal/core/recommend"
	"meal-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecommendationRequest 推薦請求；profile 與 answers 擇一提供
type RecommendationRequest struct {
	Profile          *common.PreferenceProfile `json:"profile,omitempty"`
	Answers          map[string]string         `json:"answers,omitempty"`
	HealthPreference *int                      `json:"health_preference" binding:"required"`
}

// preference 解析請求中的偏好與滑桿
func (r *RecommendationRequest) preference() (common.PreferenceProfile, common.HealthPreference, error) {
	hp := common.HealthPreference(*r.HealthPreference)
	switch {
	case r.Profile != nil:
		return *r.Profile, hp, nil
	case len(r.Answers) > 0:
		return profile.FromAnswers(r.Answers), hp, nil
	default:
		return common.PreferenceProfile{}, hp, common.NewValidationError("profile or answers is required")
	}
}

// SessionResponse 建立工作階段的回應
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// ImagesResponse 縮圖回應
type ImagesResponse struct {
	SessionID string            `json:"session_id"`
	Images    map[string]string `json:"images"`
}

// Handler 推薦處理程序
type Handler struct {
	orch     *recommend.Orchestrator
	registry *recommend.Registry
	debug    bool
}

// NewHandler 創建推薦處理程序
func NewHandler(orch *recommend.Orchestrator, registry *recommend.Registry, debug bool) *Handler {
	return &Handler{
		orch:     orch,
		registry: registry,
		debug:    debug,
	}
}

// respondError 統一錯誤回應
func (h *Handler) respondError(c *gin.Context, err error) {
	status, resp := common.ToResponse(err, h.debug)
	_ = c.Error(err)
	common.LogDebug("Request failed",
		zap.String("request_id", requestid.Get(c)),
		zap.String("code", resp.Code),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(status, resp)
}

func (h *Handler) bindRecommendation(c *gin.Context) (common.PreferenceProfile, common.HealthPreference, bool) {
	var req RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, common.NewValidationError("invalid request format: "+err.Error()))
		return common.PreferenceProfile{}, 0, false
	}
	p, hp, err := req.preference()
	if err != nil {
		h.respondError(c, err)
		return common.PreferenceProfile{}, 0, false
	}
	return p, hp, true
}

// HandleRecommendations 無狀態推薦
func (h *Handler) HandleRecommendations(c *gin.Context) {
	p, hp, ok := h.bindRecommendation(c)
	if !ok {
		return
	}

	rec, err := h.orch.GetRecommendations(c.Request.Context(), p, hp)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleCreateSession 建立推薦工作階段
func (h *Handler) HandleCreateSession(c *gin.Context) {
	s := h.registry.Create()
	common.LogInfo("工作階段已建立",
		zap.String("session_id", s.ID),
		zap.String("request_id", requestid.Get(c)),
	)
	c.JSON(http.StatusCreated, SessionResponse{SessionID: s.ID})
}

// HandleSessionRecommendations 工作階段內重新計算推薦，較舊的請求回傳 409
func (h *Handler) HandleSessionRecommendations(c *gin.Context) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	p, hp, ok := h.bindRecommendation(c)
	if !ok {
		return
	}

	snap, err := s.Recommend(c.Request.Context(), p, hp)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleSessionSnapshot 目前工作階段快照
func (h *Handler) HandleSessionSnapshot(c *gin.Context) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// HandleSessionImages 目前結果的縮圖
func (h *Handler) HandleSessionImages(c *gin.Context) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ImagesResponse{SessionID: s.ID, Images: s.Images()})
}

// HandleSessionRecipe 工作階段內選取食譜
func (h *Handler) HandleSessionRecipe(c *gin.Context) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	detail, err := s.Select(c.Request.Context(), c.Param("recipe_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// HandleRecipe 無狀態解析完整食譜
func (h *Handler) HandleRecipe(c *gin.Context) {
	detail, err := h.orch.ResolveDetail(c.Request.Context(), c.Param("recipe_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
