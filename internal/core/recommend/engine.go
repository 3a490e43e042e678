package recommend

import (
	"math"
	"sort"

	"meal-recommender/internal/pkg/common"
)

// 熱量上限滑桿的兩端
const (
	MinCalorieLimit = 250
	MaxCalorieLimit = 900
)

const (
	DefaultProteinTarget = 25.0
	DefaultMaxPrepTime   = 999
	HighProteinThreshold = 25.0

	relaxedCalorieSlack = 150
	relaxedPrepSlack    = 15

	proteinWeight = 0.6
	calorieWeight = 0.4
)

// RankOptions 排序參數
type RankOptions struct {
	TopN             int
	MinStrictResults int
}

// DefaultRankOptions 預設排序參數
func DefaultRankOptions() RankOptions {
	return RankOptions{TopN: 12, MinStrictResults: 10}
}

// RankResult 排序結果
type RankResult struct {
	Candidates []common.ScoredCandidate
	Ceiling    int
	Relaxed    bool
	// Considered 進入過濾前的候選數
	Considered int
}

// EffectiveCeiling 由健康偏好推得的熱量上限，偏好越健康上限越低
func EffectiveCeiling(hp common.HealthPreference) int {
	h := common.Clamp(float64(hp), 0, 100)
	return int(math.Round(MaxCalorieLimit - h/100*(MaxCalorieLimit-MinCalorieLimit)))
}

// DietMatches 飲食過濾，未知的過濾條件一律放行
func DietMatches(c common.CandidateRecipe, p common.PreferenceProfile) bool {
	switch p.DietFilter {
	case common.DietVegan:
		return c.IsVegan
	case common.DietVegetarian:
		return c.IsVegetarian
	case common.DietHighProtein:
		return c.Protein >= HighProteinThreshold
	default:
		return true
	}
}

func maxPrepTime(p common.PreferenceProfile) int {
	if p.MaxPrepTime == nil {
		return DefaultMaxPrepTime
	}
	return *p.MaxPrepTime
}

// calorieUpper 嚴格上限；熱量範圍未設上限時只受滑桿限制
func calorieUpper(p common.PreferenceProfile, ceiling int) float64 {
	upper := float64(ceiling)
	if p.CalorieRange.Max > 0 && p.CalorieRange.Max < upper {
		upper = p.CalorieRange.Max
	}
	return upper
}

// StrictFilter 嚴格過濾：熱量落在 [min, min(max, 上限)]，熱量未知則放行
func StrictFilter(pool []common.CandidateRecipe, p common.PreferenceProfile, hp common.HealthPreference) []common.CandidateRecipe {
	upper := calorieUpper(p, EffectiveCeiling(hp))
	maxPrep := maxPrepTime(p)

	out := make([]common.CandidateRecipe, 0, len(pool))
	for _, c := range pool {
		calOK := c.Calories <= 0 || (c.Calories >= p.CalorieRange.Min && c.Calories <= upper)
		if calOK && c.PrepTime <= maxPrep && DietMatches(c, p) {
			out = append(out, c)
		}
	}
	return out
}

// RelaxedFilter 放寬過濾：熱量 <= 上限+150，準備時間 <= 上限+15
func RelaxedFilter(pool []common.CandidateRecipe, p common.PreferenceProfile, hp common.HealthPreference) []common.CandidateRecipe {
	upper := float64(EffectiveCeiling(hp) + relaxedCalorieSlack)
	maxPrep := maxPrepTime(p) + relaxedPrepSlack

	out := make([]common.CandidateRecipe, 0, len(pool))
	for _, c := range pool {
		calOK := c.Calories <= 0 || c.Calories <= upper
		if calOK && c.PrepTime <= maxPrep && DietMatches(c, p) {
			out = append(out, c)
		}
	}
	return out
}

// closeness 1 - |v-target|/target，target 為 0 時為中性分數 0
func closeness(v, target float64) float64 {
	if target == 0 {
		return 0
	}
	return 1 - math.Abs(v-target)/target
}

// Score 加權分數：0.6 蛋白質接近度 + 0.4 熱量接近度
func Score(c common.CandidateRecipe, p common.PreferenceProfile) float64 {
	target := DefaultProteinTarget
	if p.ProteinTarget != nil {
		target = *p.ProteinTarget
	}
	midpoint := (p.CalorieRange.Min + p.CalorieRange.Max) / 2

	return proteinWeight*closeness(c.Protein, target) + calorieWeight*closeness(c.Calories, midpoint)
}

// Rank 先嚴格過濾，不足時改用放寬結果（不混用），計分後取前 N
func Rank(pool []common.CandidateRecipe, p common.PreferenceProfile, hp common.HealthPreference, opts RankOptions) RankResult {
	res := RankResult{
		Ceiling:    EffectiveCeiling(hp),
		Considered: len(pool),
	}

	filtered := StrictFilter(pool, p, hp)
	if len(filtered) < opts.MinStrictResults {
		filtered = RelaxedFilter(pool, p, hp)
		res.Relaxed = true
	}

	scored := make([]common.ScoredCandidate, len(filtered))
	for i, c := range filtered {
		scored[i] = common.ScoredCandidate{CandidateRecipe: c, Score: Score(c, p)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if opts.TopN > 0 && len(scored) > opts.TopN {
		scored = scored[:opts.TopN]
	}
	res.Candidates = scored
	return res
}

// HealthScore 詳細頁健康分數 0..100
func HealthScore(m common.Macros) int {
	calScore := math.Max(0, 100-m.Calories/8)
	protScore := math.Min(m.Protein*2, 40)
	return int(math.Round(common.Clamp(calScore+protScore, 0, 100)))
}

// HealthLabel 健康分數標籤
func HealthLabel(score int) string {
	switch {
	case score >= 75:
		return "Very Healthy"
	case score >= 50:
		return "Balanced"
	default:
		return "Indulgent"
	}
}

// SliderLabel 滑桿位置標籤
func SliderLabel(hp common.HealthPreference) string {
	switch {
	case hp >= 70:
		return "healthy"
	case hp <= 30:
		return "indulgent"
	default:
		return "balanced"
	}
}
