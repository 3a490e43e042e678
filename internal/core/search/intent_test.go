package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"high protein chicken under 500 calories", Intent{FoodName: "chicken", MinProtein: 20, MaxCalories: 500}},
		{"quick pasta 30 min", Intent{FoodName: "pasta", MaxTime: 30}},
		{"Lasagna in 2 hours", Intent{FoodName: "lasagna in", MaxTime: 120}},
		{"salad around 400 kcal", Intent{FoodName: "salad", MinCalories: 350, MaxCalories: 450}},
		{"soup 300-500 calories", Intent{FoodName: "soup", MinCalories: 300, MaxCalories: 500}},
		{"soup 300 to 500 cal", Intent{FoodName: "soup", MinCalories: 300, MaxCalories: 500}},
		{"low cal soup", Intent{FoodName: "soup", MaxCalories: 300}},
		{"light meal", Intent{MaxCalories: 300}},
		{"low calorie curry under 250 kcal", Intent{FoodName: "curry", MaxCalories: 250}},
		{"protein-packed bowl", Intent{FoodName: "bowl", MinProtein: 20}},
		{"under 300 cal", Intent{MaxCalories: 300}},
		{"Pie", Intent{FoodName: "pie"}},
		{"ox", Intent{}},
		{"   ", Intent{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIntent(tt.query))
		})
	}
}

func TestIntentHasFilters(t *testing.T) {
	assert.False(t, Intent{FoodName: "pasta"}.HasFilters())
	assert.True(t, Intent{MaxTime: 15}.HasFilters())
	assert.True(t, Intent{MinProtein: 20}.HasFilters())
}
