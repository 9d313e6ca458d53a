package handlers

import (
	"context"

	"carb-estimator/internal/core/analysis"
	"carb-estimator/internal/core/carb"
	"carb-estimator/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Analyzer 分析服務
type Analyzer interface {
	Analyze(ctx context.Context, req *analysis.Request) (*analysis.Analysis, error)
	DecodeRaw(profile, text string) (*analysis.Analysis, error)
}

// MealRequest 餐點照片分析
type MealRequest struct {
	Images []string `json:"images" binding:"required,min=1"`
	Note   string   `json:"note,omitempty"`
}

// RecipeRequest 食譜分析：照片、網址或文字擇一以上
type RecipeRequest struct {
	Images []string `json:"images,omitempty"`
	Note   string   `json:"note,omitempty"`
	URL    string   `json:"url,omitempty"`
}

// DecodeRequest 開發用：直接解碼模型文字
type DecodeRequest struct {
	Text string `json:"text" binding:"required"`
}

// AnalysisHandler 分析處理器
type AnalysisHandler struct {
	svc   Analyzer
	debug bool
}

// NewAnalysisHandler 創建分析處理器
func NewAnalysisHandler(svc Analyzer, debug bool) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, debug: debug}
}

// AnalyzeMeal POST /api/v1/analyze/meal
func (h *AnalysisHandler) AnalyzeMeal(c *gin.Context) {
	var req MealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, h.debug)
		return
	}

	common.LogInfo("Meal analysis request",
		zap.String("request_id", requestid.Get(c)),
		zap.Strings("image_kinds", imageKinds(req.Images)),
		zap.Bool("has_note", req.Note != ""),
	)

	h.analyze(c, &analysis.Request{
		Profile: carb.Meal.Name,
		Images:  req.Images,
		Note:    req.Note,
	})
}

// AnalyzeRecipe POST /api/v1/analyze/recipe
func (h *AnalysisHandler) AnalyzeRecipe(c *gin.Context) {
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, h.debug)
		return
	}

	common.LogInfo("Recipe analysis request",
		zap.String("request_id", requestid.Get(c)),
		zap.Strings("image_kinds", imageKinds(req.Images)),
		zap.String("url", req.URL),
		zap.Bool("has_note", req.Note != ""),
	)

	h.analyze(c, &analysis.Request{
		Profile: carb.Recipe.Name,
		Images:  req.Images,
		Note:    req.Note,
		URL:     req.URL,
	})
}

func (h *AnalysisHandler) analyze(c *gin.Context, req *analysis.Request) {
	result, err := h.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, h.debug)
		return
	}
	writeAnalysis(c, result)
}

// Decode POST /api/v1/decode/:profile
func (h *AnalysisHandler) Decode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, h.debug)
		return
	}

	result, err := h.svc.DecodeRaw(c.Param("profile"), req.Text)
	if err != nil {
		writeError(c, err, h.debug)
		return
	}
	writeAnalysis(c, result)
}
