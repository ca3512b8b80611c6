// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordRefreshSuccess(sourceID string)
	RecordRefreshFailure(sourceID string, reason string)
	RecordRefreshLatency(duration time.Duration)
	RecordItemsIngested(count int)
	RecordEnrichFailure(sourceID string)
	RecordDigestCreated(userID string)
	RecordDigestItemCount(count int)
	RecordItemsDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	refreshSuccess prometheus.Counter
	refreshFail    prometheus.Counter
	refreshLatency prometheus.Histogram
	itemsIngested  prometheus.Counter
	enrichFail     prometheus.Counter
	digestsCreated prometheus.Counter
	digestItems    prometheus.Histogram
	itemsDeleted   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_refresh_success_total",
			Help: "ソース更新成功の合計数",
		}),
		refreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_refresh_fail_total",
			Help: "ソース更新失敗の合計数",
		}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "digestman_refresh_latency_seconds",
			Help:    "ソース更新のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_items_ingested_total",
			Help: "取り込まれた記事の合計数",
		}),
		enrichFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_enrich_fail_total",
			Help: "本文抽出失敗の合計数",
		}),
		digestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_digests_created_total",
			Help: "生成されたダイジェストの合計数",
		}),
		digestItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "digestman_digest_item_count",
			Help:    "ダイジェストに含まれた記事数",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "digestman_items_deleted_total",
			Help: "クリーンアップで削除された記事の合計数",
		}),
	}

	reg.MustRegister(
		c.refreshSuccess,
		c.refreshFail,
		c.refreshLatency,
		c.itemsIngested,
		c.enrichFail,
		c.digestsCreated,
		c.digestItems,
		c.itemsDeleted,
	)

	return c
}

// RecordRefreshSuccess はソース更新成功を記録する。
func (c *Collector) RecordRefreshSuccess(sourceID string) {
	c.refreshSuccess.Inc()
}

// RecordRefreshFailure はソース更新失敗を記録する。
func (c *Collector) RecordRefreshFailure(sourceID string, reason string) {
	c.refreshFail.Inc()
}

// RecordRefreshLatency はソース更新のレイテンシを記録する。
func (c *Collector) RecordRefreshLatency(duration time.Duration) {
	c.refreshLatency.Observe(duration.Seconds())
}

// RecordItemsIngested は取り込まれた記事数を記録する。
func (c *Collector) RecordItemsIngested(count int) {
	c.itemsIngested.Add(float64(count))
}

// RecordEnrichFailure は本文抽出失敗を記録する。
func (c *Collector) RecordEnrichFailure(sourceID string) {
	c.enrichFail.Inc()
}

// RecordDigestCreated はダイジェスト生成を記録する。
func (c *Collector) RecordDigestCreated(userID string) {
	c.digestsCreated.Inc()
}

// RecordDigestItemCount はダイジェストに含まれた記事数を記録する。
func (c *Collector) RecordDigestItemCount(count int) {
	c.digestItems.Observe(float64(count))
}

// RecordItemsDeleted はクリーンアップで削除された記事数を記録する。
func (c *Collector) RecordItemsDeleted(count int64) {
	c.itemsDeleted.Add(float64(count))
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
