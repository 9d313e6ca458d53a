package carb

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field 正規欄位名稱（輸出時唯一使用的名稱）
type Field string

const (
	FieldDescription          Field = "description"
	FieldEstimatedWeightGrams Field = "estimatedWeightGrams"
	FieldCarbPercentage       Field = "carbPercentage"
	FieldCarbContentGrams     Field = "carbContentGrams"

	FieldTotalCarbGrams Field = "totalCarbGrams"
	FieldConfidence     Field = "confidence"
	FieldSummaryText    Field = "summaryText"
	FieldPortionsCount  Field = "portionsCount"
)

// Component 單一食物/食材的估算
type Component struct {
	Description          string `json:"description"`
	EstimatedWeightGrams int    `json:"estimatedWeightGrams"`
	CarbPercentage       int    `json:"carbPercentage"`
	CarbContentGrams     int    `json:"carbContentGrams"`
}

// AnalysisResult 正規化後的分析結果
type AnalysisResult struct {
	Components     []Component `json:"components"`
	TotalCarbGrams int         `json:"totalCarbGrams"`
	Confidence     int         `json:"confidence"`
	SummaryText    string      `json:"summaryText"`
	// 只有食譜有份數；餐點為 0 並在序列化時省略
	PortionsCount int `json:"portionsCount,omitempty"`
}

// CarbsPerPortion 每份淨碳水（僅供顯示，不序列化）
func (r *AnalysisResult) CarbsPerPortion() float64 {
	portions := r.PortionsCount
	if portions <= 0 {
		portions = 1
	}
	return float64(r.TotalCarbGrams) / float64(portions)
}

// ComponentCarbSum 元件淨碳水總和，超出範圍時飽和而非溢位
func (r *AnalysisResult) ComponentCarbSum() int {
	sum := 0
	for _, c := range r.Components {
		sum = addSaturating(sum, c.CarbContentGrams)
	}
	return sum
}

// ReasonCode 無內容原因
type ReasonCode string

const (
	ReasonNotARecipe     ReasonCode = "not_a_recipe"
	ReasonInaccessible   ReasonCode = "inaccessible"
	ReasonNoFoodDetected ReasonCode = "no_food_detected"
	ReasonUnspecified    ReasonCode = "unspecified"
)

// Valid 是否為已知原因
func (r ReasonCode) Valid() bool {
	switch r {
	case ReasonNotARecipe, ReasonInaccessible, ReasonNoFoodDetected, ReasonUnspecified:
		return true
	}
	return false
}

// ParseReasonCode 對應模型回傳的 contentError，未知值一律為 unspecified
func ParseReasonCode(s string) ReasonCode {
	code := ReasonCode(strings.ToLower(strings.TrimSpace(s)))
	if code.Valid() {
		return code
	}
	return ReasonUnspecified
}

// NoContentSignal 模型明確表示沒有可分析內容
type NoContentSignal struct {
	Reason ReasonCode `json:"reason"`
}

// Kind 分析結果分類
type Kind string

const (
	KindResult        Kind = "result"
	KindNoContent     Kind = "noContent"
	KindDecodeFailure Kind = "decodeFailure"
)

// Outcome 三選一：Result / NoContent / DecodeFailure
type Outcome struct {
	Kind   Kind
	Result *AnalysisResult
	Reason ReasonCode
	// 只在 DecodeFailure 時有值，用於日誌，呼叫端只依 Kind 分流
	Err error
}

// ResultOutcome 建立成功結果
func ResultOutcome(r *AnalysisResult) Outcome {
	return Outcome{Kind: KindResult, Result: r}
}

// NoContentOutcome 建立無內容結果
func NoContentOutcome(reason ReasonCode) Outcome {
	return Outcome{Kind: KindNoContent, Reason: reason}
}

// DecodeFailureOutcome 建立解析失敗結果
func DecodeFailureOutcome(err error) Outcome {
	return Outcome{Kind: KindDecodeFailure, Err: err}
}

// NoContent 取得無內容訊號
func (o Outcome) NoContent() (NoContentSignal, bool) {
	if o.Kind != KindNoContent {
		return NoContentSignal{}, false
	}
	return NoContentSignal{Reason: o.Reason}, true
}

type outcomeJSON struct {
	Kind   Kind            `json:"kind"`
	Value  *AnalysisResult `json:"value,omitempty"`
	Reason ReasonCode      `json:"reason,omitempty"`
}

// MarshalJSON 輸出 {kind, value} / {kind, reason} / {kind}
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{Kind: o.Kind}
	switch o.Kind {
	case KindResult:
		out.Value = o.Result
	case KindNoContent:
		out.Reason = o.Reason
	case KindDecodeFailure:
	default:
		return nil, fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON 讀回 MarshalJSON 的格式
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var in outcomeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case KindResult:
		if in.Value == nil {
			return fmt.Errorf("result outcome without value")
		}
		if in.Value.Components == nil {
			in.Value.Components = []Component{}
		}
		*o = ResultOutcome(in.Value)
	case KindNoContent:
		*o = NoContentOutcome(ParseReasonCode(string(in.Reason)))
	case KindDecodeFailure:
		*o = DecodeFailureOutcome(nil)
	default:
		return fmt.Errorf("unknown outcome kind %q", in.Kind)
	}
	return nil
}
