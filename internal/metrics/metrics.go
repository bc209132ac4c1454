package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alphabot"

var (
	// ProviderCalls counts dispatcher calls by protocol and outcome (ok, fallback, error).
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Language model calls by protocol and outcome.",
	}, []string{"protocol", "outcome"})

	ProviderRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_token_retries_total",
		Help:      "Structured calls retried after hitting the output token cap.",
	})

	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_call_duration_seconds",
		Help:      "Wall time of language model calls, retries included.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"protocol"})

	// NewsLookups counts news summary attempts by outcome (disabled, empty, hit, error).
	NewsLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "news_lookups_total",
		Help:      "News summary lookups by outcome.",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
