package carb

// Normalize 將已解析的 JSON 物件轉成結果或無內容訊號。
// 欄位缺漏一律套用預設值或推算，不會失敗。
func Normalize(obj map[string]any, p *Profile) Outcome {
	if flagged, _ := extractBool(obj, []string{p.NoContentField}); flagged {
		reason := p.DefaultReason
		if s, ok := extractString(obj, p.ReasonAliases); ok {
			reason = ParseReasonCode(s)
		}
		return NoContentOutcome(reason)
	}

	result := &AnalysisResult{
		Components: extractComponents(obj, p),
	}

	if total, ok := extractNumber(obj, p.TopLevelFieldAliases[FieldTotalCarbGrams]); ok {
		result.TotalCarbGrams = roundHalfAway(total)
	} else {
		result.TotalCarbGrams = result.ComponentCarbSum()
	}

	// 不夾限範圍，超出 0-9 的值照原樣交給顯示層
	if confidence, ok := extractNumber(obj, p.TopLevelFieldAliases[FieldConfidence]); ok {
		result.Confidence = roundHalfAway(confidence)
	}

	if summary, ok := extractString(obj, p.TopLevelFieldAliases[FieldSummaryText]); ok {
		result.SummaryText = summary
	}

	if p.HasPortions() {
		result.PortionsCount = 1
		if portions, ok := extractNumber(obj, p.TopLevelFieldAliases[FieldPortionsCount]); ok {
			if n := roundHalfAway(portions); n > 0 {
				result.PortionsCount = n
			}
		}
	}

	return ResultOutcome(result)
}

func extractComponents(obj object, p *Profile) []Component {
	list, _ := extractList(obj, p.ComponentListAliases)
	components := make([]Component, 0, len(list))
	for _, item := range list {
		// 非物件元素不是品項，略過
		elem, ok := item.(map[string]any)
		if !ok {
			continue
		}
		components = append(components, buildComponent(elem, p.ComponentFieldAliases))
	}
	return components
}

func buildComponent(elem object, aliases map[Field][]string) Component {
	description, _ := extractString(elem, aliases[FieldDescription])
	weight, _ := extractNumber(elem, aliases[FieldEstimatedWeightGrams])
	percentage, _ := extractNumber(elem, aliases[FieldCarbPercentage])

	carbs, ok := extractNumber(elem, aliases[FieldCarbContentGrams])
	if !ok {
		carbs = weight * percentage / 100
	}

	return Component{
		Description:          description,
		EstimatedWeightGrams: roundHalfAway(weight),
		CarbPercentage:       roundHalfAway(percentage),
		CarbContentGrams:     roundHalfAway(carbs),
	}
}
