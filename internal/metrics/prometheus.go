package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aqualens_chat_duration_seconds",
			Help:    "Chat request processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqualens_chat_total",
			Help: "Total number of chat requests processed",
		},
		[]string{"status"},
	)

	ForecastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqualens_forecast_total",
			Help: "Total number of forecast attempts",
		},
		[]string{"status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqualens_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	VectorResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aqualens_vector_results_count",
			Help:    "Number of document search results per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	DataResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aqualens_data_results_count",
			Help:    "Number of measurement rows matched per query",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqualens_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqualens_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aqualens_documents_processed_total",
			Help: "Total documents ingested",
		},
	)

	CircuitBreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aqualens_circuit_breaker_open",
			Help: "1 when the named circuit breaker is open, 0 otherwise",
		},
		[]string{"name"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(ForecastTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(VectorResultsCount)
	prometheus.MustRegister(DataResultsCount)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(CircuitBreakerOpen)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
