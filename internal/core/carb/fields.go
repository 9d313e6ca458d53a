package carb

import (
	"encoding/json"
	"math"
)

// maxMagnitude 可精確表示的最大整數；絕對值更大的數字視同不存在
const maxMagnitude = 1 << 53

// object 解析後的 JSON 物件（數字為 json.Number）
type object = map[string]any

// extractNumber 依序嘗試別名，回傳第一個型別為 JSON 數字的值。
// 數字字串（"12"）不轉換，視同不存在。
func extractNumber(obj object, aliases []string) (float64, bool) {
	for _, key := range aliases {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if f, ok := asNumber(raw); ok {
			return f, true
		}
	}
	return 0, false
}

func asNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.Abs(f) > maxMagnitude {
		return 0, false
	}
	return f, true
}

// extractString 依序嘗試別名，回傳第一個字串值
func extractString(obj object, aliases []string) (string, bool) {
	for _, key := range aliases {
		if s, ok := obj[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

// extractBool 依序嘗試別名，回傳第一個布林值
func extractBool(obj object, aliases []string) (bool, bool) {
	for _, key := range aliases {
		if b, ok := obj[key].(bool); ok {
			return b, true
		}
	}
	return false, false
}

// extractList 回傳第一個值為陣列的別名；都沒有時為空列表
func extractList(obj object, aliases []string) ([]any, bool) {
	for _, key := range aliases {
		if list, ok := obj[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// roundHalfAway 四捨五入（遠離零），結果限制在 ±maxMagnitude
func roundHalfAway(f float64) int {
	switch {
	case f > maxMagnitude:
		return maxMagnitude
	case f < -maxMagnitude:
		return -maxMagnitude
	}
	return int(math.Round(f))
}

// addSaturating 相加並限制在 ±maxMagnitude，避免溢位
func addSaturating(a, b int) int {
	sum := a + b
	switch {
	case sum > maxMagnitude:
		return maxMagnitude
	case sum < -maxMagnitude:
		return -maxMagnitude
	}
	return sum
}
