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
// 各ストアやサービス層から利用する。
type MetricsCollector interface {
	RecordSessionValidation(result string)
	RecordSignOut(reason string)
	RecordProfileLookup(result string)
	RecordEntitlementResolution(source string)
	RecordCartMutation(op string)
	RecordStaleResult(category string)
	RecordUpstreamStatus(service string, statusCode int)
	RecordContentLatency(duration time.Duration)
	SetActiveDevices(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionValidations     *prometheus.CounterVec
	signOuts               *prometheus.CounterVec
	profileLookups         *prometheus.CounterVec
	entitlementResolutions *prometheus.CounterVec
	cartMutations          *prometheus.CounterVec
	staleResults           *prometheus.CounterVec
	upstreamStatus         *prometheus.CounterVec
	contentLatency         prometheus.Histogram
	activeDevices          prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealbox_session_validations_total",
			Help: "セッション検証の結果別件数",
		}, []string{"result"}),
		signOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealbox_sign_outs_total",
			Help: "サインアウトの理由別件数",
		}, []string{"reason"}),
		profileLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealbox_profile_lookups_total",
			Help: "プロフィール検索の結果別件数",
		}, []string{"result"}),
		entitlementResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealbox_entitlement_resolutions_total",
			Help: "機能セット解決の取得元別件数",
		}, []string{"source"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealbox_cart_mutations_total",
			Help: "カート操作の種別件数",
		}, []string{"op"}),
		staleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealbox_stale_results_total",
			Help: "後続リクエストに追い越されて破棄された結果の件数",
		}, []string{"category"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealbox_upstream_status_total",
			Help: "外部サービスのHTTPステータスコード別のレスポンス数",
		}, []string{"service", "status_code"}),
		contentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mealbox_content_request_seconds",
			Help:    "CMSクエリのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		activeDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mealbox_active_devices",
			Help: "状態を保持しているデバイス数",
		}),
	}

	reg.MustRegister(
		c.sessionValidations,
		c.signOuts,
		c.profileLookups,
		c.entitlementResolutions,
		c.cartMutations,
		c.staleResults,
		c.upstreamStatus,
		c.contentLatency,
		c.activeDevices,
	)

	return c
}

// RecordSessionValidation はセッション検証の結果（valid, invalid, error）を記録する。
func (c *Collector) RecordSessionValidation(result string) {
	c.sessionValidations.WithLabelValues(result).Inc()
}

// RecordSignOut はサインアウトを理由付きで記録する。
func (c *Collector) RecordSignOut(reason string) {
	c.signOuts.WithLabelValues(reason).Inc()
}

// RecordProfileLookup はプロフィール検索の結果（present, missing, error）を記録する。
func (c *Collector) RecordProfileLookup(result string) {
	c.profileLookups.WithLabelValues(result).Inc()
}

// RecordEntitlementResolution は機能セットの取得元（tier, default）を記録する。
func (c *Collector) RecordEntitlementResolution(source string) {
	c.entitlementResolutions.WithLabelValues(source).Inc()
}

// RecordCartMutation はカート操作を記録する。
func (c *Collector) RecordCartMutation(op string) {
	c.cartMutations.WithLabelValues(op).Inc()
}

// RecordStaleResult は破棄された古い結果を記録する。
func (c *Collector) RecordStaleResult(category string) {
	c.staleResults.WithLabelValues(category).Inc()
}

// RecordUpstreamStatus は外部サービスのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(service string, statusCode int) {
	c.upstreamStatus.WithLabelValues(service, strconv.Itoa(statusCode)).Inc()
}

// RecordContentLatency はCMSクエリのレイテンシを記録する。
func (c *Collector) RecordContentLatency(duration time.Duration) {
	c.contentLatency.Observe(duration.Seconds())
}

// SetActiveDevices はアクティブなデバイス数を設定する。
func (c *Collector) SetActiveDevices(count int) {
	c.activeDevices.Set(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクス不要なテストやツールで使う。
type Nop struct{}

func (Nop) RecordSessionValidation(string)     {}
func (Nop) RecordSignOut(string)               {}
func (Nop) RecordProfileLookup(string)         {}
func (Nop) RecordEntitlementResolution(string) {}
func (Nop) RecordCartMutation(string)          {}
func (Nop) RecordStaleResult(string)           {}
func (Nop) RecordUpstreamStatus(string, int)   {}
func (Nop) RecordContentLatency(time.Duration) {}
func (Nop) SetActiveDevices(int)               {}

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
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
