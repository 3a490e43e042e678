package common

import (
	"fmt"
	"strings"
)

// DietFilter 飲食過濾條件
type DietFilter string

const (
	DietNone        DietFilter = ""
	DietVegan       DietFilter = "vegan"
	DietVegetarian  DietFilter = "vegetarian"
	DietHighProtein DietFilter = "high-protein"
)

// TasteBias 口味偏好
type TasteBias string

const (
	TasteNone   TasteBias = ""
	TasteSweet  TasteBias = "sweet"
	TasteSavory TasteBias = "savory"
)

// Opposite 回傳相反的口味
func (t TasteBias) Opposite() TasteBias {
	switch t {
	case TasteSweet:
		return TasteSavory
	case TasteSavory:
		return TasteSweet
	default:
		return TasteNone
	}
}

// CalorieRange 熱量範圍
type CalorieRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PreferenceProfile 測驗產生的偏好設定，測驗完成後不再變動
type PreferenceProfile struct {
	CalorieRange  CalorieRange `json:"calorie_range"`
	ProteinTarget *float64     `json:"protein_target,omitempty"`
	MaxPrepTime   *int         `json:"max_prep_time,omitempty"`
	DietFilter    DietFilter   `json:"diet_filter,omitempty"`
	TasteBias     TasteBias    `json:"taste_bias,omitempty"`
}

// Validate 驗證偏好設定
func (p PreferenceProfile) Validate() error {
	if p.CalorieRange.Min < 0 || p.CalorieRange.Max < 0 {
		return NewValidationError("calorie range must not be negative")
	}
	if p.CalorieRange.Min > p.CalorieRange.Max {
		return NewValidationError(fmt.Sprintf("calorie range min %.0f exceeds max %.0f", p.CalorieRange.Min, p.CalorieRange.Max))
	}
	if p.ProteinTarget != nil && *p.ProteinTarget < 0 {
		return NewValidationError("protein target must not be negative")
	}
	if p.MaxPrepTime != nil && *p.MaxPrepTime < 0 {
		return NewValidationError("max prep time must not be negative")
	}
	switch p.DietFilter {
	case DietNone, DietVegan, DietVegetarian, DietHighProtein:
	default:
		return NewValidationError(fmt.Sprintf("unknown diet filter %q", p.DietFilter))
	}
	switch p.TasteBias {
	case TasteNone, TasteSweet, TasteSavory:
	default:
		return NewValidationError(fmt.Sprintf("unknown taste bias %q", p.TasteBias))
	}
	return nil
}

// HealthPreference 健康偏好滑桿 0..100
type HealthPreference int

// Validate 驗證滑桿數值
func (h HealthPreference) Validate() error {
	if h < 0 || h > 100 {
		return NewValidationError(fmt.Sprintf("health preference %d outside 0..100", int(h)))
	}
	return nil
}

// CandidateRecipe 供應商正規化後的候選食譜
type CandidateRecipe struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	PrepTime     int     `json:"prep_time"`
	CookTime     int     `json:"cook_time,omitempty"`
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	Region       string  `json:"region"`
	IsVegan      bool    `json:"is_vegan"`
	IsVegetarian bool    `json:"is_vegetarian"`
}

// ScoredCandidate 附帶分數的候選食譜
type ScoredCandidate struct {
	CandidateRecipe
	Score float64 `json:"score"`
}

// Ingredient 食材
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Phrase   string `json:"phrase"`
}

// IngredientPhrases 取出每個食材的顯示字串
func IngredientPhrases(ingredients []Ingredient) []string {
	phrases := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		phrase := strings.TrimSpace(ing.Phrase)
		if phrase == "" {
			phrase = strings.TrimSpace(strings.Join(strings.Fields(ing.Quantity+" "+ing.Unit+" "+ing.Name), " "))
		}
		if phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	return phrases
}

// Macros 營養素
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// RecipeInfo 單一食譜詳細資料（食材與營養素）
type RecipeInfo struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Ingredients []Ingredient `json:"ingredients"`
	Macros      Macros       `json:"macros"`
	CookTime    int          `json:"cook_time"`
	PrepTime    int          `json:"prep_time"`
	Servings    int          `json:"servings"`
	Region      string       `json:"region"`
	Continent   string       `json:"continent"`
}

// RecipeDetail 使用者選取後解析出的完整食譜
type RecipeDetail struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Instructions    []string     `json:"instructions"`
	Ingredients     []Ingredient `json:"ingredients"`
	IngredientLines []string     `json:"ingredient_lines"`
	Macros          Macros       `json:"macros"`
	PrepTime        int          `json:"prep_time"`
	CookTime        int          `json:"cook_time"`
	Servings        int          `json:"servings"`
	Region          string       `json:"region"`
	Continent       string       `json:"continent"`
	HealthScore     int          `json:"health_score"`
	HealthLabel     string       `json:"health_label"`
	Image           string       `json:"image,omitempty"`
	Source          string       `json:"source"`
}
