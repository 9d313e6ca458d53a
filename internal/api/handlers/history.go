package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"carb-estimator/internal/core/carb"
	"carb-estimator/internal/core/history"
	"carb-estimator/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 100

// HistoryReader 讀取分析紀錄
type HistoryReader interface {
	Get(ctx context.Context, id string) (*history.Entry, error)
	List(ctx context.Context, profile string, limit int) ([]*history.Entry, error)
}

// HistoryEntry 紀錄的 HTTP 表示
type HistoryEntry struct {
	*history.Entry
	ConfidenceLabel string   `json:"confidenceLabel"`
	CarbsPerPortion *float64 `json:"carbsPerPortion,omitempty"`
}

// HistoryHandler 分析紀錄處理器
type HistoryHandler struct {
	store HistoryReader
	debug bool
}

// NewHistoryHandler 創建紀錄處理器
func NewHistoryHandler(store HistoryReader, debug bool) *HistoryHandler {
	return &HistoryHandler{store: store, debug: debug}
}

// List GET /api/v1/history?profile=&limit=
func (h *HistoryHandler) List(c *gin.Context) {
	profile := c.Query("profile")
	if profile != "" {
		p, ok := carb.Lookup(profile)
		if !ok {
			writeError(c, common.ErrUnknownProfile, h.debug)
			return
		}
		profile = p.Name
	}

	limit := history.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(c, common.NewValidationError("limit must be between 1 and 100"), h.debug)
			return
		}
		limit = n
	}

	entries, err := h.store.List(c.Request.Context(), profile, limit)
	if err != nil {
		writeError(c, err, h.debug)
		return
	}

	items := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		items[i] = toHistoryEntry(e)
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// Get GET /api/v1/history/:id
func (h *HistoryHandler) Get(c *gin.Context) {
	entry, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(c, common.ErrHistoryNotFound.Wrap(err), h.debug)
		return
	}
	if err != nil {
		writeError(c, err, h.debug)
		return
	}
	c.JSON(http.StatusOK, toHistoryEntry(entry))
}

func toHistoryEntry(e *history.Entry) HistoryEntry {
	out := HistoryEntry{
		Entry:           e,
		ConfidenceLabel: carb.ConfidenceLabel(e.Result.Confidence),
	}
	if e.Result.PortionsCount > 0 {
		perPortion := e.Result.CarbsPerPortion()
		out.CarbsPerPortion = &perPortion
	}
	return out
}
