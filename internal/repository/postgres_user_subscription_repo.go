package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mealbox/internal/model"
)

// PostgresUserSubscriptionRepo はPostgreSQLを使用したユーザー購読リポジトリ。
type PostgresUserSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresUserSubscriptionRepo はPostgresUserSubscriptionRepoを生成する。
func NewPostgresUserSubscriptionRepo(db *sql.DB) *PostgresUserSubscriptionRepo {
	return &PostgresUserSubscriptionRepo{db: db}
}

// FindActiveByUserID は有効な購読を取得する。見つからない場合はnilを返す。
func (r *PostgresUserSubscriptionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.UserSubscription, error) {
	sub := &model.UserSubscription{}
	var periodEnd sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, tier_slug, status, current_period_end, created_at, updated_at
		 FROM user_subscriptions WHERE user_id = $1 AND status = $2`,
		userID, model.SubscriptionStatusActive,
	).Scan(&sub.UserID, &sub.TierSlug, &sub.Status, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー購読の取得に失敗しました: %w", err)
	}

	if periodEnd.Valid {
		t := periodEnd.Time
		sub.CurrentPeriodEnd = &t
	}

	return sub, nil
}

var _ UserSubscriptionRepository = (*PostgresUserSubscriptionRepo)(nil)
