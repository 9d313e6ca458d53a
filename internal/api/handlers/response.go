package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"carb-estimator/internal/core/analysis"
	"carb-estimator/internal/core/carb"
	"carb-estimator/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OutcomeResponse 分析結果的 HTTP 表示
type OutcomeResponse struct {
	ID              string               `json:"id,omitempty"`
	Kind            carb.Kind            `json:"kind"`
	Value           *carb.AnalysisResult `json:"value,omitempty"`
	Reason          carb.ReasonCode      `json:"reason,omitempty"`
	ConfidenceLabel string               `json:"confidenceLabel,omitempty"`
	CarbsPerPortion *float64             `json:"carbsPerPortion,omitempty"`
	Code            string               `json:"code,omitempty"`
	Message         string               `json:"message,omitempty"`
	Model           string               `json:"model,omitempty"`
	CacheHit        bool                 `json:"cacheHit,omitempty"`
}

// writeAnalysis result / noContent 回 200，decodeFailure 回 502
func writeAnalysis(c *gin.Context, a *analysis.Analysis) {
	resp := OutcomeResponse{
		ID:       a.ID,
		Kind:     a.Outcome.Kind,
		Model:    a.Model,
		CacheHit: a.CacheHit,
	}

	switch a.Outcome.Kind {
	case carb.KindResult:
		resp.Value = a.Outcome.Result
		resp.ConfidenceLabel = a.ConfidenceLabel
		if a.Outcome.Result.PortionsCount > 0 {
			perPortion := a.Outcome.Result.CarbsPerPortion()
			resp.CarbsPerPortion = &perPortion
		}
		c.JSON(http.StatusOK, resp)
	case carb.KindNoContent:
		resp.Reason = a.Outcome.Reason
		c.JSON(http.StatusOK, resp)
	default:
		resp.Code = common.ErrAnalysisFailed.Code
		resp.Message = "The model response could not be read. Please try again."
		c.JSON(common.ErrAnalysisFailed.Status, resp)
	}
}

// writeError 將錯誤轉為 common.ErrorResponse
func writeError(c *gin.Context, err error, debug bool) {
	status := http.StatusInternalServerError
	resp := common.ErrorResponse{
		Code:    common.ErrInternalError.Code,
		Message: common.ErrInternalError.Message,
	}

	if ce, ok := common.AsCustomError(err); ok {
		status = ce.Status
		resp.Code = ce.Code
		resp.Message = ce.Message
	}
	switch {
	case common.IsValidationError(err):
		status = http.StatusBadRequest
		resp.Code = common.ErrInvalidRequest.Code
		resp.Message = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status = common.ErrGatewayTimeout.Status
		resp.Code = common.ErrGatewayTimeout.Code
		resp.Message = common.ErrGatewayTimeout.Message
	}

	if debug {
		resp.Details = err.Error()
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", requestid.Get(c)),
	}
	if status >= http.StatusInternalServerError {
		common.LogError("Request failed", fields...)
	} else {
		common.LogWarn("Request rejected", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// bindError 請求格式錯誤
func bindError(c *gin.Context, err error, debug bool) {
	writeError(c, common.NewValidationError("invalid request format: "+err.Error()), debug)
}

// imageKinds 圖片來源種類，只用於日誌，不輸出內容
func imageKinds(images []string) []string {
	kinds := make([]string, len(images))
	for i, img := range images {
		switch {
		case strings.HasPrefix(img, "http://"), strings.HasPrefix(img, "https://"):
			kinds[i] = "url"
		case strings.HasPrefix(img, "data:image/"):
			header, _, _ := strings.Cut(img, ";base64,")
			kinds[i] = "data_uri_" + strings.TrimPrefix(header, "data:image/")
		default:
			kinds[i] = "unknown_format"
		}
	}
	return kinds
}
