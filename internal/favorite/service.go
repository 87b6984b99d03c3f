// Package favorite はお気に入りレシピの管理を提供する。
// 登録可否と件数上限はユーザーの機能セットに従う。
package favorite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/repository"
)

// RecipeLookup はIDでレシピの存在を確認する。該当がない場合はnil, nilを返す。
type RecipeLookup interface {
	RecipeByID(ctx context.Context, id string) (*model.Recipe, error)
}

// Service はお気に入りのサービス層。
type Service struct {
	favRepo repository.FavoriteRepository
	recipes RecipeLookup
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(favRepo repository.FavoriteRepository, recipes RecipeLookup) *Service {
	return &Service{
		favRepo: favRepo,
		recipes: recipes,
		now:     time.Now,
	}
}

// List はユーザーの有効なお気に入りを新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Favorite, error) {
	favs, err := s.favRepo.ListByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	return favs, nil
}

// Add はレシピをお気に入りに登録する。
// すでに有効な登録がある場合は件数を消費せずにその登録を返す。
// 保存期間が有限のプランではexpires_atに現在時刻＋保存日数を設定する。
func (s *Service) Add(ctx context.Context, userID, recipeID string, features model.FeatureSet) (*model.Favorite, error) {
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, model.NewInvalidRequestError()
	}
	if !features.CanSaveFavorites {
		return nil, model.NewFavoritesNotAllowedError()
	}

	recipe, err := s.recipes.RecipeByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, model.NewRecipeNotFoundError(recipeID)
	}

	now := s.now()

	existing, err := s.favRepo.FindByUserAndRecipe(ctx, userID, recipeID)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの検索に失敗しました: %w", err)
	}
	if existing != nil && (existing.ExpiresAt == nil || existing.ExpiresAt.After(now)) {
		return existing, nil
	}

	if features.MaxFavorites != nil {
		count, err := s.favRepo.CountByUserID(ctx, userID, now)
		if err != nil {
			return nil, fmt.Errorf("お気に入り数の取得に失敗しました: %w", err)
		}
		if count >= *features.MaxFavorites {
			return nil, model.NewFavoritesLimitError(*features.MaxFavorites)
		}
	}

	fav := &model.Favorite{
		ID:        uuid.New().String(),
		UserID:    userID,
		RecipeID:  recipeID,
		CreatedAt: now,
	}
	if days, ok := features.StorageDays(); ok {
		expiresAt := now.AddDate(0, 0, days)
		fav.ExpiresAt = &expiresAt
	}

	if err := s.favRepo.Create(ctx, fav); err != nil {
		return nil, fmt.Errorf("お気に入りの作成に失敗しました: %w", err)
	}

	return fav, nil
}

// Remove はお気に入りを解除する。登録がない場合はFAVORITE_NOT_FOUNDを返す。
func (s *Service) Remove(ctx context.Context, userID, recipeID string) error {
	deleted, err := s.favRepo.Delete(ctx, userID, recipeID)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewFavoriteNotFoundError(recipeID)
	}
	return nil
}
