// Package cleanup は期限切れお気に入りの自動削除ジョブを提供する。
// 保存期間が有限のプランで登録されたお気に入りは、expires_atを過ぎると
// 一覧からは除外されるが行は残るため、定期バッチで物理削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// defaultInterval は間隔が指定されなかった場合の実行間隔。
const defaultInterval = 24 * time.Hour

// ExpiredDeleter は期限切れのお気に入りを削除するインターフェース。
// repository.PostgresFavoriteRepo が満たす。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は期限切れお気に入りの自動削除ジョブ。
// 冪等な削除処理のため、何度実行しても結果は変わらない。
type CleanupJob struct {
	favorites ExpiredDeleter
	logger    *slog.Logger
	now       func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(favorites ExpiredDeleter, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		favorites: favorites,
		logger:    logger,
		now:       time.Now,
	}
}

// Run はexpires_atが現在時刻以前のお気に入りを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now()

	deletedCount, err := j.favorites.DeleteExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("お気に入りクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		return fmt.Errorf("お気に入りクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("お気に入りクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("お気に入りクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("お気に入りクリーンアップを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
