// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordRecommendSuccess(userID string)
	RecordRecommendFailure(userID string, reason string)
	RecordRecommendCycleDuration(duration time.Duration)
	RecordThumbnailFetchSuccess()
	RecordThumbnailFetchFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	recommendSuccess prometheus.Counter
	recommendFail    prometheus.Counter
	cycleDuration    prometheus.Histogram
	thumbnailSuccess prometheus.Counter
	thumbnailFail    prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recommendSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manabu_recommend_success_total",
			Help: "学習推薦生成成功の合計数",
		}),
		recommendFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manabu_recommend_fail_total",
			Help: "学習推薦生成失敗の合計数",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "manabu_recommend_cycle_duration_seconds",
			Help:    "推薦生成サイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		thumbnailSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manabu_thumbnail_fetch_success_total",
			Help: "サムネイル取得成功の合計数",
		}),
		thumbnailFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manabu_thumbnail_fetch_fail_total",
			Help: "サムネイル取得失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "manabu_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.recommendSuccess,
		c.recommendFail,
		c.cycleDuration,
		c.thumbnailSuccess,
		c.thumbnailFail,
		c.httpStatus,
	)

	return c
}

// RecordRecommendSuccess はユーザー1人分の推薦生成成功を記録する。
func (c *Collector) RecordRecommendSuccess(userID string) {
	c.recommendSuccess.Inc()
}

// RecordRecommendFailure はユーザー1人分の推薦生成失敗を記録する。
func (c *Collector) RecordRecommendFailure(userID string, reason string) {
	c.recommendFail.Inc()
}

// RecordRecommendCycleDuration は推薦生成サイクルの所要時間を記録する。
func (c *Collector) RecordRecommendCycleDuration(duration time.Duration) {
	c.cycleDuration.Observe(duration.Seconds())
}

// RecordThumbnailFetchSuccess はサムネイル取得成功を記録する。
func (c *Collector) RecordThumbnailFetchSuccess() {
	c.thumbnailSuccess.Inc()
}

// RecordThumbnailFetchFailure はサムネイル取得失敗を記録する。
func (c *Collector) RecordThumbnailFetchFailure() {
	c.thumbnailFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
