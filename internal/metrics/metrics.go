package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IntentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvfdash_intents_total",
		Help: "Total user intents dispatched to the orchestrator loop",
	}, []string{"intent"})
	ViewRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvfdash_view_requests_total",
		Help: "Total fetch issuances per logical view",
	}, []string{"view"})
	ViewStaleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvfdash_view_stale_total",
		Help: "Responses discarded because a newer generation was issued",
	}, []string{"view"})
	ViewFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvfdash_view_fail_total",
		Help: "Current-generation responses that ended in a network or status error",
	}, []string{"view"})
	ViewEmptyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvfdash_view_empty_total",
		Help: "Current-generation responses carrying zero renderable items",
	}, []string{"view"})
	ViewDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dvfdash_view_duration_ms",
		Help:    "Fetch duration per view in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"view"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dvfdash_cache_hits_total",
		Help: "Aggregate payload cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dvfdash_cache_misses_total",
		Help: "Aggregate payload cache misses",
	})
)

func init() {
	prometheus.MustRegister(IntentsTotal)
	prometheus.MustRegister(ViewRequestsTotal)
	prometheus.MustRegister(ViewStaleTotal)
	prometheus.MustRegister(ViewFailTotal)
	prometheus.MustRegister(ViewEmptyTotal)
	prometheus.MustRegister(ViewDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// 文档注释：返回 Prometheus 指标处理器
// 背景：统一暴露注册指标到 /metrics 路径，在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
