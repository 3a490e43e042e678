package recommend

import (
	"meal-recommender/internal/core/nutrition"
	"meal-recommender/internal/pkg/common"
)

// tasteList 口味對應的食材與分類清單
type tasteList struct {
	Ingredients []string
	Categories  []string
}

var tasteLists = map[common.TasteBias]tasteList{
	common.TasteSweet: {
		Ingredients: []string{"sugar", "honey", "chocolate", "vanilla", "maple syrup", "cinnamon"},
		Categories:  []string{"Dessert", "Baked Goods", "Sweets"},
	},
	common.TasteSavory: {
		Ingredients: []string{"garlic", "onion", "cheese", "soy sauce", "chicken"},
		Categories:  []string{"Main Course", "Soup", "Appetizer"},
	},
}

// TargetedQuery 口味偏好的定向搜尋條件，排除相反口味的食材
func TargetedQuery(bias common.TasteBias, limit int) (nutrition.SearchQuery, bool) {
	list, ok := tasteLists[bias]
	if !ok {
		return nutrition.SearchQuery{}, false
	}
	return nutrition.SearchQuery{
		Include:    list.Ingredients,
		Exclude:    tasteLists[bias.Opposite()].Ingredients,
		Categories: list.Categories,
		Page:       1,
		Limit:      limit,
	}, true
}

// Backfill 定向搜尋缺少營養欄位，以一般候選池同 ID 的資料補齊
func Backfill(targeted, general []common.CandidateRecipe) []common.CandidateRecipe {
	byID := make(map[string]common.CandidateRecipe, len(general))
	for _, g := range general {
		byID[g.ID] = g
	}

	out := make([]common.CandidateRecipe, len(targeted))
	for i, t := range targeted {
		if g, ok := byID[t.ID]; ok {
			if t.Calories == 0 {
				t.Calories = g.Calories
			}
			if t.Protein == 0 {
				t.Protein = g.Protein
			}
			if t.PrepTime == 0 {
				t.PrepTime = g.PrepTime
			}
			if t.Region == "" {
				t.Region = g.Region
			}
			if t.Title == "" {
				t.Title = g.Title
			}
			t.IsVegan = t.IsVegan || g.IsVegan
			t.IsVegetarian = t.IsVegetarian || g.IsVegetarian
		}
		out[i] = t
	}
	return out
}

// MergeTargeted 定向結果達門檻時單獨使用，否則接上一般候選池（去除重複 ID）
func MergeTargeted(targeted, general []common.CandidateRecipe, minTargeted int) (merged []common.CandidateRecipe, exclusive bool) {
	if len(targeted) >= minTargeted && len(targeted) > 0 {
		return targeted, true
	}

	seen := make(map[string]struct{}, len(targeted))
	merged = make([]common.CandidateRecipe, 0, len(targeted)+len(general))
	for _, t := range targeted {
		seen[t.ID] = struct{}{}
		merged = append(merged, t)
	}
	for _, g := range general {
		if _, dup := seen[g.ID]; dup {
			continue
		}
		merged = append(merged, g)
	}
	return merged, false
}
