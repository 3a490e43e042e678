package search

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// 健康關鍵字對應的條件
const (
	lowCalorieMax     = 300
	highProteinMin    = 20
	approxCalorieSpan = 50
	minFoodNameLength = 3
)

// Intent 自由文字解析出的搜尋條件，零值表示不限制
type Intent struct {
	FoodName    string  `json:"food_name,omitempty"`
	MaxTime     int     `json:"max_time,omitempty"` // 分鐘，比對烹調時間
	MinCalories float64 `json:"min_calories,omitempty"`
	MaxCalories float64 `json:"max_calories,omitempty"`
	MinProtein  float64 `json:"min_protein,omitempty"`
}

// HasFilters 是否有任何數值條件
func (i Intent) HasFilters() bool {
	return i.MaxTime > 0 || i.MinCalories > 0 || i.MaxCalories > 0 || i.MinProtein > 0
}

// 較長的單位放前面，避免 "calories" 只吃掉 "cal"
var (
	timePattern   = regexp.MustCompile(`(\d+)\s*(minutes|minute|mins|min|hours|hour)`)
	underPattern  = regexp.MustCompile(`(under|below|less than)\s*(\d+)\s*(calories|kcal|cal)`)
	rangePattern  = regexp.MustCompile(`(\d+)\s*(to|-)\s*(\d+)\s*(calories|kcal|cal)`)
	approxPattern = regexp.MustCompile(`(around|about|approximately|approx)\s*(\d+)\s*(calories|kcal|cal)`)
	statPattern   = regexp.MustCompile(`\d+\s*(calories|kcal|cal|healthy|good|health)`)
	numberPattern = regexp.MustCompile(`\b\d+\b`)

	keywordPattern = regexp.MustCompile(`\b(protein-packed|low|cal|calorie|calories|high|protein|rich|under|below|less|than|around|about|approximately|approx|meal|meals|healthy|light|quick|fast)\b`)
)

// ParseIntent 解析時間、熱量與蛋白質條件，以及剩下的食物名稱
func ParseIntent(query string) Intent {
	lower := strings.ToLower(strings.TrimSpace(query))
	var in Intent
	if lower == "" {
		return in
	}

	if strings.Contains(lower, "low cal") || strings.Contains(lower, "light meal") {
		in.MaxCalories = lowCalorieMax
	}
	if strings.Contains(lower, "high protein") ||
		strings.Contains(lower, "protein rich") ||
		strings.Contains(lower, "protein-packed") {
		in.MinProtein = highProteinMin
	}

	// 明確的熱量數字覆蓋健康關鍵字
	if m := underPattern.FindStringSubmatch(lower); m != nil {
		in.MaxCalories = atof(m[2])
	} else if m := rangePattern.FindStringSubmatch(lower); m != nil {
		in.MinCalories = atof(m[1])
		in.MaxCalories = atof(m[3])
	} else if m := approxPattern.FindStringSubmatch(lower); m != nil {
		v := atof(m[2])
		in.MinCalories = max(0, v-approxCalorieSpan)
		in.MaxCalories = v + approxCalorieSpan
	}

	if m := timePattern.FindStringSubmatch(lower); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "hour") {
			minutes *= 60
		}
		in.MaxTime = minutes
	}

	in.FoodName = foodName(lower)
	return in
}

// foodName 去掉熱量與時間片語、數字與健康關鍵字後剩下的文字，太短視為沒有
func foodName(lower string) string {
	cleaned := lower
	for _, p := range []*regexp.Regexp{underPattern, rangePattern, approxPattern, timePattern, statPattern, numberPattern} {
		cleaned = p.ReplaceAllString(cleaned, " ")
	}
	cleaned = keywordPattern.ReplaceAllString(cleaned, " ")

	words := strings.FieldsFunc(cleaned, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	name := strings.Join(words, " ")
	if len(name) < minFoodNameLength {
		return ""
	}
	return name
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
