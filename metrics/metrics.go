// Package metrics 定义 bookrec 的 Prometheus 指标，通过 promauto 注册到默认 registry，
// 由 server 在 /metrics 暴露。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 推荐路径
const (
	PathCF       = "cf"
	PathFallback = "fallback"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrec_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_recommendations_total",
			Help: "Recommendation requests served, by path (cf or fallback)",
		},
		[]string{"path"},
	)

	TrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookrec_train_duration_seconds",
			Help:    "Duration of similarity model training",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	ModelItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookrec_model_items",
			Help: "Number of items in the serving similarity model",
		},
	)

	ModelUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookrec_model_users",
			Help: "Number of users in the serving similarity model",
		},
	)

	CatalogErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_catalog_errors_total",
			Help: "Failed calls to the external book catalog, by operation",
		},
		[]string{"op"},
	)

	CatalogCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_catalog_cache_total",
			Help: "Catalog cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)
)

// RecordHTTPRequest 记录一次 HTTP 请求。
func RecordHTTPRequest(route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordTrain 记录一次训练及其产出的模型规模。
func RecordTrain(duration time.Duration, users, items int) {
	TrainDuration.Observe(duration.Seconds())
	ModelUsers.Set(float64(users))
	ModelItems.Set(float64(items))
}

// RecordRecommendation 记录一次推荐走的路径。
func RecordRecommendation(path string) {
	Recommendations.WithLabelValues(path).Inc()
}

// RecordCatalogError 记录书目服务调用失败。
func RecordCatalogError(op string) {
	CatalogErrors.WithLabelValues(op).Inc()
}

// RecordCacheLookup 记录书目缓存命中情况。
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CatalogCache.WithLabelValues(result).Inc()
}
