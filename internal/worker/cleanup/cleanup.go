// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 有効期限を過ぎたセッション行を定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPruner は期限切れセッションの削除を抽象化するインターフェース。
// identity.SessionRepositoryを受け付けることができる。
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions SessionPruner
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
	}
}

// Run は期限切れセッションを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("セッションクリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
