package carb

import (
	"fmt"
	"sort"
	"strings"
)

// NoContentField 無內容旗標的鍵名
const NoContentField = "noContent"

// Profile 描述如何解讀某一種模型回應（餐點或食譜）。
// 內建的 Meal / Recipe 為唯讀資料，不要修改。
type Profile struct {
	Name                  string
	ComponentListAliases  []string
	ComponentFieldAliases map[Field][]string
	TopLevelFieldAliases  map[Field][]string
	NoContentField        string
	ReasonAliases         []string
	DefaultReason         ReasonCode
}

// HasPortions 是否解析份數
func (p *Profile) HasPortions() bool {
	_, ok := p.TopLevelFieldAliases[FieldPortionsCount]
	return ok
}

func (p *Profile) String() string {
	return p.Name
}

var (
	componentFieldAliases = map[Field][]string{
		FieldDescription:          {"description"},
		FieldEstimatedWeightGrams: {"estimatedWeightGrams", "estimatedWeight", "weightGrams", "weight", "grams"},
		FieldCarbPercentage:       {"carbPercentage", "carbPercent", "carbsPercent", "carb_pct"},
		FieldCarbContentGrams:     {"carbContentGrams", "carbGrams", "netCarbs", "netCarbGrams", "carbs", "carbohydrates"},
	}

	componentListAliases = []string{"components", "items", "ingredients"}
	totalCarbAliases     = []string{"totalCarbGrams", "totalCarbs", "totalNetCarbs", "netCarbs"}
	confidenceAliases    = []string{"confidence", "confidenceScore", "confidenceLevel"}
	reasonAliases        = []string{"contentError"}
)

// Meal 餐點照片分析
var Meal = &Profile{
	Name:                  "meal",
	ComponentListAliases:  componentListAliases,
	ComponentFieldAliases: componentFieldAliases,
	TopLevelFieldAliases: map[Field][]string{
		FieldTotalCarbGrams: totalCarbAliases,
		FieldConfidence:     confidenceAliases,
		FieldSummaryText:    {"mealSummary", "summary", "mealDescription", "description"},
	},
	NoContentField: NoContentField,
	ReasonAliases:  reasonAliases,
	DefaultReason:  ReasonNoFoodDetected,
}

// Recipe 食譜分析
var Recipe = &Profile{
	Name:                  "recipe",
	ComponentListAliases:  componentListAliases,
	ComponentFieldAliases: componentFieldAliases,
	TopLevelFieldAliases: map[Field][]string{
		FieldTotalCarbGrams: totalCarbAliases,
		FieldConfidence:     confidenceAliases,
		FieldSummaryText:    {"recipeDescription", "description", "recipeName", "summary"},
		FieldPortionsCount:  {"portionsCount", "portions", "servings", "servingCount"},
	},
	NoContentField: NoContentField,
	ReasonAliases:  reasonAliases,
	DefaultReason:  ReasonNotARecipe,
}

// Profiles 所有內建 profile
func Profiles() []*Profile {
	return []*Profile{Meal, Recipe}
}

// Lookup 依名稱取得 profile（不分大小寫）
func Lookup(name string) (*Profile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range Profiles() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

var (
	requiredComponentFields = []Field{FieldDescription, FieldEstimatedWeightGrams, FieldCarbPercentage, FieldCarbContentGrams}
	requiredTopLevelFields  = []Field{FieldTotalCarbGrams, FieldConfidence, FieldSummaryText}
)

// Validate 檢查別名表：必填欄位皆有別名、別名非空、同一層級內（含同一列表）別名不重複
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.NoContentField == "" {
		return fmt.Errorf("profile %s: no-content field is required", p.Name)
	}
	if !p.DefaultReason.Valid() {
		return fmt.Errorf("profile %s: invalid default reason %q", p.Name, p.DefaultReason)
	}
	if len(p.ComponentListAliases) == 0 {
		return fmt.Errorf("profile %s: component list aliases are empty", p.Name)
	}
	for _, f := range requiredComponentFields {
		if len(p.ComponentFieldAliases[f]) == 0 {
			return fmt.Errorf("profile %s: component field %s has no aliases", p.Name, f)
		}
	}
	for _, f := range requiredTopLevelFields {
		if len(p.TopLevelFieldAliases[f]) == 0 {
			return fmt.Errorf("profile %s: field %s has no aliases", p.Name, f)
		}
	}

	if err := checkScope(p.Name, "component", p.ComponentFieldAliases, nil); err != nil {
		return err
	}
	// 頂層：純量欄位、元件列表、無內容旗標與原因共用同一個鍵空間
	extra := map[string][]string{
		"components":   p.ComponentListAliases,
		"noContent":    {p.NoContentField},
		"contentError": p.ReasonAliases,
	}
	return checkScope(p.Name, "top-level", p.TopLevelFieldAliases, extra)
}

func checkScope(profile, scope string, fields map[Field][]string, extra map[string][]string) error {
	owners := make(map[string]string)
	claim := func(owner string, aliases []string) error {
		for _, alias := range aliases {
			if alias == "" {
				return fmt.Errorf("profile %s: %s field %s has an empty alias", profile, scope, owner)
			}
			if prev, ok := owners[alias]; ok {
				if prev == owner {
					return fmt.Errorf("profile %s: %s field %s lists alias %q twice", profile, scope, owner, alias)
				}
				return fmt.Errorf("profile %s: %s alias %q shared by %s and %s", profile, scope, alias, prev, owner)
			}
			owners[alias] = owner
		}
		return nil
	}

	// 排序後檢查，錯誤訊息才穩定
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	sort.Strings(names)
	for _, name := range names {
		if err := claim(name, fields[Field(name)]); err != nil {
			return err
		}
	}

	extraNames := make([]string, 0, len(extra))
	for name := range extra {
		extraNames = append(extraNames, name)
	}
	sort.Strings(extraNames)
	for _, name := range extraNames {
		if err := claim(name, extra[name]); err != nil {
			return err
		}
	}
	return nil
}
