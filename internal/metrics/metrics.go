// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は同期リポジトリとフィード取り込みのメトリクスを収集する。
// syncstate.Recorderを実装する。
type Collector struct {
	snapshots     *prometheus.CounterVec
	syncErrors    *prometheus.CounterVec
	droppedDocs   *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
	importSuccess prometheus.Counter
	importFail    prometheus.Counter
	importLatency prometheus.Histogram
	importedItems prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_sync_snapshots_total",
			Help: "ドメイン別のSuccess状態配信の合計数",
		}, []string{"domain"}),
		syncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_sync_errors_total",
			Help: "ドメイン別のError状態配信の合計数",
		}, []string{"domain"}),
		droppedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_sync_dropped_docs_total",
			Help: "必須フィールド欠落で除外したドキュメントの合計数",
		}, []string{"domain"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "campushub_sync_subscriptions_active",
			Help: "ドメイン別のアクティブなストア購読数",
		}, []string{"domain"}),
		importSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campushub_news_import_success_total",
			Help: "お知らせフィード取り込み成功の合計数",
		}),
		importFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campushub_news_import_fail_total",
			Help: "お知らせフィード取り込み失敗の合計数",
		}),
		importLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campushub_news_import_latency_seconds",
			Help:    "お知らせフィード取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		importedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campushub_news_imported_items_total",
			Help: "取り込まれたお知らせ記事の合計数",
		}),
	}

	reg.MustRegister(
		c.snapshots,
		c.syncErrors,
		c.droppedDocs,
		c.subscriptions,
		c.importSuccess,
		c.importFail,
		c.importLatency,
		c.importedItems,
	)

	return c
}

// RecordSnapshot はSuccess状態の配信を記録する。
func (c *Collector) RecordSnapshot(domain string) {
	c.snapshots.WithLabelValues(domain).Inc()
}

// RecordSyncError はError状態の配信を記録する。
func (c *Collector) RecordSyncError(domain string) {
	c.syncErrors.WithLabelValues(domain).Inc()
}

// RecordDroppedDocs は必須フィールド欠落で除外したドキュメント数を記録する。
func (c *Collector) RecordDroppedDocs(domain string, n int) {
	c.droppedDocs.WithLabelValues(domain).Add(float64(n))
}

// SubscriptionStarted はストア購読の開始を記録する。
func (c *Collector) SubscriptionStarted(domain string) {
	c.subscriptions.WithLabelValues(domain).Inc()
}

// SubscriptionStopped はストア購読の終了を記録する。
func (c *Collector) SubscriptionStopped(domain string) {
	c.subscriptions.WithLabelValues(domain).Dec()
}

// RecordImportSuccess はフィード取り込み成功を記録する。
func (c *Collector) RecordImportSuccess() {
	c.importSuccess.Inc()
}

// RecordImportFailure はフィード取り込み失敗を記録する。
func (c *Collector) RecordImportFailure() {
	c.importFail.Inc()
}

// RecordImportLatency はフィード取り込みのレイテンシを記録する。
func (c *Collector) RecordImportLatency(duration time.Duration) {
	c.importLatency.Observe(duration.Seconds())
}

// RecordImportedItems は取り込まれた記事数を記録する。
func (c *Collector) RecordImportedItems(count int) {
	c.importedItems.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
