package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mealbox/internal/model"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// ListByUserID はnow時点で有効なお気に入りを新しい順に返す。
func (r *PostgresFavoriteRepo) ListByUserID(ctx context.Context, userID string, now time.Time) ([]*model.Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, recipe_id, created_at, expires_at
		 FROM favorites
		 WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
		 ORDER BY created_at DESC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	favorites := []*model.Favorite{}
	for rows.Next() {
		fav, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の走査に失敗しました: %w", err)
	}
	return favorites, nil
}

// CountByUserID はnow時点で有効なお気に入りの件数を返す。
func (r *PostgresFavoriteRepo) CountByUserID(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites
		 WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		userID, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("お気に入り数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// FindByUserAndRecipe はユーザーとレシピでお気に入りを検索する。見つからない場合はnilを返す。
func (r *PostgresFavoriteRepo) FindByUserAndRecipe(ctx context.Context, userID, recipeID string) (*model.Favorite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, recipe_id, created_at, expires_at
		 FROM favorites WHERE user_id = $1 AND recipe_id = $2`,
		userID, recipeID,
	)
	fav, err := scanFavorite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("お気に入りの検索に失敗しました: %w", err)
	}
	return fav, nil
}

// Create はお気に入りを作成する。期限切れの同一行は置き換える。
func (r *PostgresFavoriteRepo) Create(ctx context.Context, fav *model.Favorite) error {
	var expiresAt sql.NullTime
	if fav.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *fav.ExpiresAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO favorites (id, user_id, recipe_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, recipe_id) DO UPDATE SET
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at
		 RETURNING id`,
		fav.ID, fav.UserID, fav.RecipeID, fav.CreatedAt, expiresAt,
	).Scan(&fav.ID)
	if err != nil {
		return fmt.Errorf("お気に入りの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はお気に入りを削除する。
func (r *PostgresFavoriteRepo) Delete(ctx context.Context, userID, recipeID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND recipe_id = $2`,
		userID, recipeID,
	)
	if err != nil {
		return false, fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// DeleteExpired は期限切れのお気に入りを削除し、削除件数を返す。
func (r *PostgresFavoriteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れお気に入りの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFavorite(s rowScanner) (*model.Favorite, error) {
	fav := &model.Favorite{}
	var expiresAt sql.NullTime
	if err := s.Scan(&fav.ID, &fav.UserID, &fav.RecipeID, &fav.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		fav.ExpiresAt = &t
	}
	return fav, nil
}

var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
