package analysis

import (
	"fmt"
	"strings"

	"carb-estimator/internal/core/carb"
)

const mealSystemPrompt = `You are a nutrition expert specializing in net carbohydrate counting for diabetes management.
Look at the meal photo(s) and estimate every visible food item.

IMPORTANT: Always respond with valid JSON only, in this exact format:
{
  "components": [
    {
      "description": "specific food item name",
      "estimatedWeightGrams": [number],
      "carbPercentage": [number, net carbs per 100 g],
      "carbContentGrams": [number]
    }
  ],
  "totalCarbGrams": [number],
  "confidence": [integer 0-9],
  "mealSummary": "short description of the meal"
}

If the image does not show food, respond with {"noContent": true, "contentError": "no_food_detected"}.`

const recipeSystemPrompt = `You are a nutrition expert specializing in net carbohydrate counting for diabetes management.
Read the recipe and estimate the net carbohydrates of every ingredient for the whole recipe.

IMPORTANT: Always respond with valid JSON only, in this exact format:
{
  "components": [
    {
      "description": "ingredient with quantity",
      "estimatedWeightGrams": [number],
      "carbPercentage": [number, net carbs per 100 g],
      "carbContentGrams": [number]
    }
  ],
  "totalCarbGrams": [number, whole recipe],
  "confidence": [integer 0-9],
  "recipeDescription": "recipe name",
  "portionsCount": [integer, number of servings the recipe makes]
}

If the input is not a recipe, respond with {"noContent": true, "contentError": "not_a_recipe"}.
If the recipe page could not be read, respond with {"noContent": true, "contentError": "inaccessible"}.`

// systemPrompt 依 profile 取得系統提示詞
func systemPrompt(p *carb.Profile) string {
	if p.HasPortions() {
		return recipeSystemPrompt
	}
	return mealSystemPrompt
}

// userPrompt 組合使用者訊息：圖片說明、頁面文字與備註
func userPrompt(p *carb.Profile, imageCount int, pageURL, pageText, note string) string {
	var sb strings.Builder
	if p.HasPortions() {
		switch {
		case pageText != "":
			fmt.Fprintf(&sb, "Analyze the recipe from %s.\n\nPage text:\n%s\n", pageURL, pageText)
		case imageCount > 0:
			fmt.Fprintf(&sb, "Analyze the recipe shown in the %d attached image(s).\n", imageCount)
		default:
			sb.WriteString("Analyze the recipe below.\n")
		}
	} else {
		fmt.Fprintf(&sb, "Analyze the meal shown in the %d attached image(s) and calculate net carbohydrates.\n", imageCount)
	}

	if note = strings.TrimSpace(note); note != "" {
		fmt.Fprintf(&sb, "\nAdditional information from the user: %q\n", note)
	}
	return sb.String()
}
