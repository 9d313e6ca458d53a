package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"carb-estimator/internal/core/carb"
	"carb-estimator/internal/core/history"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newHistoryRouter(t *testing.T) (*gin.Engine, *history.Store) {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := NewHistoryHandler(store, false)
	r := gin.New()
	r.GET("/history", h.List)
	r.GET("/history/:id", h.Get)
	return r, store
}

func getJSON(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestHistoryListAndGet(t *testing.T) {
	t.Parallel()
	r, store := newHistoryRouter(t)
	ctx := context.Background()

	meal := carb.Decode(`{"totalCarbGrams":40,"confidence":8,"summary":"Toast"}`, carb.Meal)
	recipe := carb.Decode(`{"totalCarbGrams":90,"confidence":4,"servings":3,"recipeName":"Soup"}`, carb.Recipe)
	require.NoError(t, store.Save(ctx, &history.Entry{ID: "meal-1", Profile: "meal", Result: meal.Result}))
	require.NoError(t, store.Save(ctx, &history.Entry{ID: "recipe-1", Profile: "recipe", Result: recipe.Result}))

	w, body := getJSON(t, r, "/history")
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, body["count"])

	w, body = getJSON(t, r, "/history?profile=Recipe&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, body["count"])
	item := body["items"].([]interface{})[0].(map[string]interface{})
	require.Equal(t, "recipe-1", item["id"])
	require.Equal(t, "Low confidence", item["confidenceLabel"])
	require.EqualValues(t, 30, item["carbsPerPortion"])

	w, body = getJSON(t, r, "/history/meal-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "meal", body["profile"])
	require.Equal(t, "Standard confidence", body["confidenceLabel"])
	require.NotContains(t, body, "carbsPerPortion")
	require.EqualValues(t, 40, body["result"].(map[string]interface{})["totalCarbGrams"])
}

func TestHistoryErrors(t *testing.T) {
	t.Parallel()
	r, _ := newHistoryRouter(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{name: "missing entry", path: "/history/nope", wantStatus: http.StatusNotFound, wantCode: "HISTORY_NOT_FOUND"},
		{name: "unknown profile", path: "/history?profile=snack", wantStatus: http.StatusBadRequest, wantCode: "UNKNOWN_PROFILE"},
		{name: "bad limit", path: "/history?limit=abc", wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "limit too large", path: "/history?limit=1000", wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, body := getJSON(t, r, tt.path)
			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantCode, body["code"])
		})
	}
}
