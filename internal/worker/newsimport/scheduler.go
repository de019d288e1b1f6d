// Package newsimport は外部フィードからのお知らせ取り込みを定期実行する。
package newsimport

import (
	"context"
	"log/slog"
	"time"
)

// FeedImporter はお知らせ取り込みの実行インターフェース。
// news.Importerを抽象化してテスタビリティを向上させる。
type FeedImporter interface {
	Import(ctx context.Context, feedURL string) (int, error)
}

// ImportRecorder は取り込み結果の計測フック。
// metrics.Collectorを受け付けることができる。
type ImportRecorder interface {
	RecordImportSuccess()
	RecordImportFailure()
	RecordImportLatency(duration time.Duration)
	RecordImportedItems(count int)
}

// Scheduler はお知らせ取り込みのスケジューリングを行う。
// 定期ティッカーで設定されたフィードURLの取り込みを実行する。
type Scheduler struct {
	importer FeedImporter
	recorder ImportRecorder
	logger   *slog.Logger
	feedURL  string
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(importer FeedImporter, recorder ImportRecorder, logger *slog.Logger, feedURL string) *Scheduler {
	return &Scheduler{
		importer: importer,
		recorder: recorder,
		logger:   logger,
		feedURL:  feedURL,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// フィードURLが未設定の場合は何もせずに終了する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if s.feedURL == "" {
		s.logger.Info("お知らせフィードURLが未設定のため取り込みをスキップします")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("お知らせ取り込みスケジューラを開始しました",
		slog.String("feed_url", s.feedURL),
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("お知らせ取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はお知らせ取り込みを1回実行し、結果を計測に記録する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	imported, err := s.importer.Import(ctx, s.feedURL)
	s.recorder.RecordImportLatency(time.Since(start))

	if err != nil {
		s.recorder.RecordImportFailure()
		s.logger.Error("お知らせ取り込みに失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return
	}

	s.recorder.RecordImportSuccess()
	s.recorder.RecordImportedItems(imported)
}
