package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/mealbox/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, household_size, dietary_prefs, created_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &p.HouseholdSize, pq.Array(&p.DietaryPrefs), &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	return p, nil
}

// Upsert はプロフィールを作成または更新する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	prefs := p.DietaryPrefs
	if prefs == nil {
		prefs = []string{}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (user_id, display_name, household_size, dietary_prefs)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     display_name = EXCLUDED.display_name,
		     household_size = EXCLUDED.household_size,
		     dietary_prefs = EXCLUDED.dietary_prefs,
		     updated_at = now()
		 RETURNING created_at, updated_at`,
		p.UserID, p.DisplayName, p.HouseholdSize, pq.Array(prefs),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}

	p.DietaryPrefs = prefs
	return nil
}

// コンパイル時にインターフェースの実装を検証する。
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
