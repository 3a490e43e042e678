package store

import (
	"context"
	"errors"
	"strings"

	"meal-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 食譜庫中沒有該食譜
var ErrNotFound = errors.New("recipe not in store")

// RecipeStore 跨工作階段的持久化食譜庫
type RecipeStore interface {
	Get(ctx context.Context, recipeID string) (*RecipeRecord, error)
	Upsert(ctx context.Context, rec *RecipeRecord) error
}

// Store gorm 實作
type Store struct {
	db *gorm.DB
}

// New 創建食譜庫
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate 建立或更新 recipes 資料表
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&RecipeRecord{})
}

// Get 以食譜 ID 查詢，不存在時回傳 ErrNotFound
func (s *Store) Get(ctx context.Context, recipeID string) (*RecipeRecord, error) {
	var rec RecipeRecord
	err := s.db.WithContext(ctx).Where("recipe_id = ?", recipeID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// GetMany 批次查詢，不存在的 ID 直接略過
func (s *Store) GetMany(ctx context.Context, recipeIDs []string) ([]RecipeRecord, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}
	var recs []RecipeRecord
	if err := s.db.WithContext(ctx).Where("recipe_id IN ?", recipeIDs).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// FindByTitle 名稱包含關鍵字（不分大小寫）的第一筆
func (s *Store) FindByTitle(ctx context.Context, title string) (*RecipeRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrNotFound
	}

	pattern := "%" + likeEscaper.Replace(strings.ToLower(title)) + "%"
	var rec RecipeRecord
	err := s.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern).
		Order("id").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Upsert 以 recipe_id 衝突時覆寫所有欄位
func (s *Store) Upsert(ctx context.Context, rec *RecipeRecord) error {
	if rec.RecipeID == "" {
		return common.ErrStoreWriteFailed.Wrap(errors.New("empty recipe id"))
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipe_id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return common.ErrStoreWriteFailed.Wrap(err)
	}

	common.LogDebug("食譜已寫回",
		zap.String("recipe_id", rec.RecipeID),
		zap.Int("instructions", len(rec.Instructions)),
		zap.Int("ingredients", len(rec.Ingredients)),
	)
	return nil
}
