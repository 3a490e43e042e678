package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"meal-recommender/internal/pkg/common"
)

// StringList 以 JSON 陣列存放的有序字串清單
type StringList []string

// Value 實作 driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 實作 sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	*l = StringList{}
	data, err := scanBytes(value)
	if err != nil || len(data) == 0 {
		return err
	}
	return json.Unmarshal(data, l)
}

// IngredientList 以 JSON 陣列存放的食材清單
type IngredientList []common.Ingredient

// Value 實作 driver.Valuer
func (l IngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 實作 sql.Scanner
func (l *IngredientList) Scan(value interface{}) error {
	*l = IngredientList{}
	data, err := scanBytes(value)
	if err != nil || len(data) == 0 {
		return err
	}
	return json.Unmarshal(data, l)
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}

// RecipeRecord recipes 資料表
type RecipeRecord struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	RecipeID     string         `gorm:"column:recipe_id;size:64;uniqueIndex;not null" json:"recipe_id"`
	Name         string         `gorm:"size:255" json:"name"`
	Calories     float64        `json:"calories"`
	Protein      float64        `json:"protein"`
	Carbs        float64        `json:"carbs"`
	Fat          float64        `json:"fat"`
	CookTime     int            `json:"cook_time"`
	PrepTime     int            `json:"prep_time"`
	Servings     int            `json:"servings"`
	Region       string         `gorm:"size:100" json:"region"`
	Continent    string         `gorm:"size:100" json:"continent"`
	Instructions StringList     `gorm:"type:text" json:"instructions"`
	Ingredients  IngredientList `gorm:"type:text" json:"ingredients"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName 指定資料表名稱
func (RecipeRecord) TableName() string {
	return "recipes"
}

// NewRecord 由解析完成的食譜建立資料列
func NewRecord(d common.RecipeDetail) *RecipeRecord {
	return &RecipeRecord{
		RecipeID:     d.ID,
		Name:         d.Title,
		Calories:     d.Macros.Calories,
		Protein:      d.Macros.Protein,
		Carbs:        d.Macros.Carbs,
		Fat:          d.Macros.Fat,
		CookTime:     d.CookTime,
		PrepTime:     d.PrepTime,
		Servings:     d.Servings,
		Region:       d.Region,
		Continent:    d.Continent,
		Instructions: StringList(d.Instructions),
		Ingredients:  IngredientList(d.Ingredients),
	}
}

// Detail 轉回領域模型，健康分數由呼叫端計算
func (r *RecipeRecord) Detail() common.RecipeDetail {
	return common.RecipeDetail{
		ID:           r.RecipeID,
		Title:        r.Name,
		Instructions: []string(r.Instructions),
		Ingredients:  []common.Ingredient(r.Ingredients),
		Macros: common.Macros{
			Calories: r.Calories,
			Protein:  r.Protein,
			Carbs:    r.Carbs,
			Fat:      r.Fat,
		},
		PrepTime:  r.PrepTime,
		CookTime:  r.CookTime,
		Servings:  r.Servings,
		Region:    r.Region,
		Continent: r.Continent,
	}
}
