package carb

import "strings"

const fence = "```"

// Sanitize 去除 markdown 程式碼區塊標記，擷取第一個 { 到最後一個 }。
// 找不到時回傳修剪後的文字，交給下一步解析失敗。
func Sanitize(text string) string {
	txt := strings.TrimSpace(text)
	if strings.HasPrefix(txt, fence) {
		txt = strings.ReplaceAll(txt, fence+"json", "")
		txt = strings.ReplaceAll(txt, fence, "")
		txt = strings.TrimSpace(txt)
	}
	if start, end := strings.Index(txt, "{"), strings.LastIndex(txt, "}"); start != -1 && end != -1 && end > start {
		return txt[start : end+1]
	}
	return txt
}

// firstBalancedObject 回傳第一個括號平衡的 {...}，字串內的括號與跳脫字元不計
func firstBalancedObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
