package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "research"

var (
	// LLMCalls LLM 调用次数，result: ok / error / retry
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total number of LLM calls.",
	}, []string{"result"})

	// LLMDuration LLM 单次调用耗时
	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Duration of LLM calls.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"result"})

	// SearchCalls 搜索调用次数
	SearchCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "calls_total",
		Help:      "Total number of search provider calls.",
	}, []string{"provider", "result"})

	// CacheLookups 搜索缓存命中情况，result: hit / miss / error
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search_cache",
		Name:      "lookups_total",
		Help:      "Search cache lookups.",
	}, []string{"result"})

	// Reports 研报生成次数
	Reports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "generated_total",
		Help:      "Research reports generated by kind and status.",
	}, []string{"kind", "status"})
)

// Result 把 error 映射为标签值
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
