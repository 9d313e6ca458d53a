package carb

// ConfidenceLevel 顯示用信心等級
type ConfidenceLevel string

const (
	ConfidenceStandard ConfidenceLevel = "standard"
	ConfidenceLow      ConfidenceLevel = "low"
)

// standardConfidenceFloor 大於此值為 standard
const standardConfidenceFloor = 5

// LevelOf confidence > 5 為 standard，其餘為 low
func LevelOf(confidence int) ConfidenceLevel {
	if confidence > standardConfidenceFloor {
		return ConfidenceStandard
	}
	return ConfidenceLow
}

// Label 使用者看到的文字
func (l ConfidenceLevel) Label() string {
	if l == ConfidenceStandard {
		return "Standard confidence"
	}
	return "Low confidence"
}

// ConfidenceLabel 直接由分數取得顯示文字
func ConfidenceLabel(confidence int) string {
	return LevelOf(confidence).Label()
}
