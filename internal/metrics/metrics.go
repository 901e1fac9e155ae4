// Package metrics expone contadores Prometheus de sesiones, respuestas y HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implementa service.SessionObserver y responder.Observer.
type Collector struct {
	sessions      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	responses     *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	httpLatency   prometheus.Histogram
	cacheHits     *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitterlink_session_events_total",
			Help: "Session lifecycle events (started, ended, expired).",
		}, []string{"event"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitterlink_responder_verifications_total",
			Help: "Responder verification outcomes.",
		}, []string{"outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitterlink_responder_responses_total",
			Help: "Submitted babysitter responses by status.",
		}, []string{"status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitterlink_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitterlink_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitterlink_babysitter_cache_total",
			Help: "Babysitter list cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.sessions,
		c.verifications,
		c.responses,
		c.httpStatus,
		c.httpLatency,
		c.cacheHits,
	)
	return c
}

func (c *Collector) ObserveSession(event string) {
	c.sessions.WithLabelValues(event).Inc()
}

func (c *Collector) ObserveVerification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveResponse(status string) {
	c.responses.WithLabelValues(status).Inc()
}

// ObserveCache registra un acierto o fallo de la caché de niñeras.
func (c *Collector) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheHits.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTP(statusCode int, latency time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(latency.Seconds())
}

// Handler devuelve el handler de scrape para /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
