package nutrition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meal-recommender/internal/pkg/common"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	// ErrFieldMissing 欄位不存在或為 null
	ErrFieldMissing = errors.New("field missing")
	// ErrFieldInvalid 欄位存在但無法解析
	ErrFieldInvalid = errors.New("field invalid")
)

// ParseError 欄位解析錯誤
type ParseError struct {
	Field  string
	Raw    string
	Reason error
}

func (e *ParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %v (%q)", e.Field, e.Reason, e.Raw)
}

func (e *ParseError) Unwrap() error {
	return e.Reason
}

// record 供應商回傳的單筆資料，鍵名含空白與括號，因此以 map 取值
type record map[string]gjson.Result

func newRecord(r gjson.Result) record {
	if !r.IsObject() {
		return record{}
	}
	return record(r.Map())
}

// ParseNumber 解析數值欄位，區分缺少與格式錯誤
func ParseNumber(field string, r gjson.Result) (float64, error) {
	switch r.Type {
	case gjson.Null:
		return 0, &ParseError{Field: field, Reason: ErrFieldMissing}
	case gjson.Number:
		return r.Num, nil
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			return 0, &ParseError{Field: field, Reason: ErrFieldMissing}
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, &ParseError{Field: field, Raw: r.Str, Reason: ErrFieldInvalid}
		}
		return v, nil
	default:
		return 0, &ParseError{Field: field, Raw: r.Raw, Reason: ErrFieldInvalid}
	}
}

// number 依序嘗試多個鍵名，全部缺少時回傳 ErrFieldMissing
func (rec record) number(keys ...string) (float64, error) {
	var lastErr error
	for _, key := range keys {
		v, err := ParseNumber(key, rec[key])
		if err == nil {
			return v, nil
		}
		if lastErr == nil || errors.Is(lastErr, ErrFieldMissing) {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = &ParseError{Field: strings.Join(keys, "|"), Reason: ErrFieldMissing}
	}
	return 0, lastErr
}

// numberOrZero 缺少時為 0；格式錯誤時同樣為 0，但記錄除錯日誌
func (rec record) numberOrZero(keys ...string) float64 {
	v, err := rec.number(keys...)
	if err != nil {
		if errors.Is(err, ErrFieldInvalid) {
			common.LogDebug("Invalid numeric field", zap.Error(err))
		}
		return 0
	}
	return v
}

func (rec record) intOrZero(keys ...string) int {
	return int(rec.numberOrZero(keys...))
}

// flag 供應商以 0/1（數字或字串）表示布林
func (rec record) flag(key string) bool {
	v, err := ParseNumber(key, rec[key])
	if err != nil {
		return rec[key].Type == gjson.True
	}
	return v == 1
}

// text 取字串欄位，數字會轉為字串，缺少為空字串
func (rec record) text(keys ...string) string {
	for _, key := range keys {
		r := rec[key]
		switch r.Type {
		case gjson.String:
			if s := strings.TrimSpace(r.Str); s != "" {
				return s
			}
		case gjson.Number:
			return r.Raw
		}
	}
	return ""
}

// firstArray 從多個候選路徑取第一個存在的陣列
func firstArray(doc gjson.Result, paths ...string) []gjson.Result {
	for _, path := range paths {
		r := doc.Get(path)
		if r.IsArray() {
			return r.Array()
		}
	}
	return nil
}

// parseCandidate 正規化單筆食譜清單資料
func parseCandidate(r gjson.Result) (common.CandidateRecipe, bool) {
	rec := newRecord(r)
	id := rec.text("Recipe_id", "recipe_id", "id")
	if id == "" {
		return common.CandidateRecipe{}, false
	}
	return common.CandidateRecipe{
		ID:       id,
		Title:    rec.text("Recipe_title", "recipe_title", "title", "name"),
		PrepTime: rec.intOrZero("prep_time", "prepTime"),
		CookTime: rec.intOrZero("cook_time", "cookTime"),
		Calories: rec.numberOrZero("Calories", "Energy (kcal)", "calories"),
		Protein:  rec.numberOrZero("Protein (g)", "protein"),
		Region:   rec.text("Region", "region"),
		IsVegan:  rec.flag("vegan"),
		IsVegetarian: rec.flag("ovo_vegetarian") ||
			rec.flag("lacto_vegetarian") ||
			rec.flag("ovo_lacto_vegetarian"),
	}, true
}

// parseCandidates 解析清單回應，容忍 payload.data 與 data 兩種外層
func parseCandidates(body []byte) []common.CandidateRecipe {
	doc := gjson.ParseBytes(body)
	items := firstArray(doc, "payload.data", "data", "recipes")
	out := make([]common.CandidateRecipe, 0, len(items))
	for _, item := range items {
		if c, ok := parseCandidate(item); ok {
			out = append(out, c)
		}
	}
	return out
}

// parseInstructions 解析步驟清單
func parseInstructions(body []byte) []string {
	doc := gjson.ParseBytes(body)
	steps := firstArray(doc, "steps", "payload.steps", "instructions")
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		var s string
		if step.IsObject() {
			s = newRecord(step).text("step", "text", "instruction")
		} else {
			s = strings.TrimSpace(step.String())
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseRecipeInfo 解析單一食譜詳細資料
func parseRecipeInfo(id string, body []byte) common.RecipeInfo {
	doc := gjson.ParseBytes(body)
	rec := newRecord(doc.Get("recipe"))

	info := common.RecipeInfo{
		ID:    id,
		Title: rec.text("Recipe_title", "recipe_title", "title"),
		Macros: common.Macros{
			Calories: rec.numberOrZero("Energy (kcal)", "Calories", "calories"),
			Protein:  rec.numberOrZero("Protein (g)", "protein"),
			Carbs:    rec.numberOrZero("Carbohydrate, by difference (g)", "carbs"),
			Fat:      rec.numberOrZero("Total lipid (fat) (g)", "fat"),
		},
		CookTime:  rec.intOrZero("cook_time"),
		PrepTime:  rec.intOrZero("prep_time"),
		Servings:  rec.intOrZero("servings"),
		Region:    rec.text("Region", "region"),
		Continent: rec.text("Continent", "continent"),
	}

	items := firstArray(doc, "ingredients", "payload.ingredients")
	info.Ingredients = make([]common.Ingredient, 0, len(items))
	for _, item := range items {
		ing := newRecord(item)
		name := ing.text("ingredient", "name")
		if name == "" {
			continue
		}
		quantity := ing.text("quantity")
		if quantity == "" {
			quantity = "0"
		}
		phrase := ing.text("ingredient_Phrase", "phrase")
		if phrase == "" {
			phrase = name
		}
		info.Ingredients = append(info.Ingredients, common.Ingredient{
			Name:     name,
			Quantity: quantity,
			Unit:     ing.text("unit"),
			Phrase:   phrase,
		})
	}

	return info
}
