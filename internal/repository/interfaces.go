// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/mealbox/internal/model"
)

// ProfileRepository はアプリ固有のユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Upsert はプロフィールを作成または更新する。
	// CreatedAtとUpdatedAtはDBが採番した値で上書きされる。
	Upsert(ctx context.Context, profile *model.Profile) error
}

// UserSubscriptionRepository はユーザーとプランの紐付けの永続化インターフェース。
type UserSubscriptionRepository interface {
	// FindActiveByUserID はstatus = 'active' の購読を取得する。見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.UserSubscription, error)
}

// FavoriteRepository はお気に入りの永続化インターフェース。
type FavoriteRepository interface {
	// ListByUserID はnow時点で有効なお気に入りを新しい順に返す。
	ListByUserID(ctx context.Context, userID string, now time.Time) ([]*model.Favorite, error)

	// CountByUserID はnow時点で有効なお気に入りの件数を返す。
	CountByUserID(ctx context.Context, userID string, now time.Time) (int, error)

	// FindByUserAndRecipe はユーザーとレシピでお気に入りを検索する。期限切れの行も返す。
	// 見つからない場合はnilを返す。
	FindByUserAndRecipe(ctx context.Context, userID, recipeID string) (*model.Favorite, error)

	// Create はお気に入りを作成する。同じレシピの期限切れ行が残っている場合は
	// その行の作成日時と期限を置き換え、既存のIDをfavorite.IDに書き戻す。
	Create(ctx context.Context, favorite *model.Favorite) error

	// Delete はお気に入りを削除する。削除対象が存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, userID, recipeID string) (bool, error)

	// DeleteExpired はexpires_atがnow以前のお気に入りを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
