package profile

import (
	"strings"

	"meal-recommender/internal/pkg/common"
)

// 測驗題目 ID
const (
	QuestionMood    = "mood"
	QuestionTexture = "texture"
	QuestionTaste   = "taste"
	QuestionHunger  = "hunger"
	QuestionDiet    = "diet"
)

// HighProteinTarget 選擇高蛋白時的蛋白質目標（克）
const HighProteinTarget = 30.0

var (
	defaultRange = common.CalorieRange{Min: 250, Max: 700}

	hungerRanges = map[string]common.CalorieRange{
		"light snack": {Min: 150, Max: 400},
		"small meal":  {Min: 300, Max: 600},
		"full meal":   {Min: 500, Max: 900},
	}

	dietFilters = map[string]common.DietFilter{
		"vegan":        common.DietVegan,
		"vegetarian":   common.DietVegetarian,
		"high protein": common.DietHighProtein,
	}

	tasteBiases = map[string]common.TasteBias{
		"sweet":  common.TasteSweet,
		"savory": common.TasteSavory,
	}

	moodPrepTimes = map[string]int{
		"tired":     30,
		"stressed":  30,
		"energetic": 60,
	}
)

func normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// FromAnswers 將測驗答案轉為偏好設定，未知答案使用預設值
func FromAnswers(answers map[string]string) common.PreferenceProfile {
	p := common.PreferenceProfile{CalorieRange: defaultRange}

	if r, ok := hungerRanges[normalize(answers[QuestionHunger])]; ok {
		p.CalorieRange = r
	}

	if diet, ok := dietFilters[normalize(answers[QuestionDiet])]; ok {
		p.DietFilter = diet
		if diet == common.DietHighProtein {
			target := HighProteinTarget
			p.ProteinTarget = &target
		}
	}

	if bias, ok := tasteBiases[normalize(answers[QuestionTaste])]; ok {
		p.TasteBias = bias
	}

	if minutes, ok := moodPrepTimes[normalize(answers[QuestionMood])]; ok {
		p.MaxPrepTime = &minutes
	}

	return p
}
