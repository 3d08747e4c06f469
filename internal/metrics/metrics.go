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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordInstallSuccess(application string)
	RecordInstallFailure(application string, reason string)
	RecordRollback()
	RecordHTTPStatus(statusCode int)
	RecordHelmLatency(operation string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	installSuccess prometheus.Counter
	installFail    *prometheus.CounterVec
	rollbacks      prometheus.Counter
	httpStatus     *prometheus.CounterVec
	helmLatency    *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		installSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helmgate_install_success_total",
			Help: "インスタンスインストール成功の合計数",
		}),
		installFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helmgate_install_fail_total",
			Help: "インスタンスインストール失敗の合計数（失敗理由別）",
		}, []string{"reason"}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helmgate_rollback_total",
			Help: "補償ロールバックの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helmgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		helmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helmgate_helm_latency_seconds",
			Help:    "helm呼び出しのレイテンシ（秒、操作別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.installSuccess,
		c.installFail,
		c.rollbacks,
		c.httpStatus,
		c.helmLatency,
	)

	return c
}

// RecordInstallSuccess はインストール成功を記録する。
func (c *Collector) RecordInstallSuccess(application string) {
	c.installSuccess.Inc()
}

// RecordInstallFailure はインストール失敗を記録する。
func (c *Collector) RecordInstallFailure(application string, reason string) {
	c.installFail.WithLabelValues(reason).Inc()
}

// RecordRollback は補償ロールバックの実行を記録する。
func (c *Collector) RecordRollback() {
	c.rollbacks.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHelmLatency はhelm呼び出しのレイテンシを記録する。
func (c *Collector) RecordHelmLatency(operation string, duration time.Duration) {
	c.helmLatency.WithLabelValues(operation).Observe(duration.Seconds())
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

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
