package monitoring

import (
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes gateway-level metrics. It implements
// ports.StatsRecorder so core services stay free of prometheus imports.
type PrometheusCollector struct {
	sessionsActive prometheus.Gauge
	viewersActive  prometheus.Gauge

	sessionsStarted  *prometheus.CounterVec
	sessionsEnded    *prometheus.CounterVec
	artifactRequests *prometheus.CounterVec
	tokenRejections  prometheus.Counter
	fallbacks        *prometheus.CounterVec

	spawnDuration   prometheus.Histogram
	sessionLifetime prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamgate_sessions_active",
			Help: "Number of registered stream sessions",
		}),

		viewersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamgate_viewers_active",
			Help: "Number of attached viewers across all sessions",
		}),

		sessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_sessions_started_total",
			Help: "Stream sessions started",
		}, []string{"store_id", "protocol"}),

		sessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_sessions_ended_total",
			Help: "Stream sessions torn down, by reason",
		}, []string{"store_id", "reason"}),

		artifactRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_artifact_requests_total",
			Help: "Playlist/segment/snapshot requests, by outcome",
		}, []string{"artifact", "status"}),

		tokenRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_token_rejections_total",
			Help: "Stream token validations that failed closed",
		}),

		fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamgate_protocol_fallback_total",
			Help: "Requests served by a substituted pipeline",
		}, []string{"requested"}),

		spawnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamgate_transcoder_spawn_seconds",
			Help:    "Time from spawn to first output artifact",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		sessionLifetime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamgate_session_lifetime_seconds",
			Help:    "Session duration from start to teardown",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

func (p *PrometheusCollector) SessionStarted(storeID domain.StoreID, protocol domain.Protocol) {
	p.sessionsActive.Inc()
	p.sessionsStarted.WithLabelValues(string(storeID), string(protocol)).Inc()
}

func (p *PrometheusCollector) SessionEnded(storeID domain.StoreID, protocol domain.Protocol, reason string, lifetime time.Duration) {
	p.sessionsActive.Dec()
	p.sessionsEnded.WithLabelValues(string(storeID), reason).Inc()
	p.sessionLifetime.Observe(lifetime.Seconds())
}

func (p *PrometheusCollector) ViewerJoined() {
	p.viewersActive.Inc()
}

func (p *PrometheusCollector) ViewerLeft() {
	p.viewersActive.Dec()
}

func (p *PrometheusCollector) ProtocolFallback(requested domain.Protocol) {
	p.fallbacks.WithLabelValues(string(requested)).Inc()
}

func (p *PrometheusCollector) ArtifactServed(artifact, status string) {
	p.artifactRequests.WithLabelValues(artifact, status).Inc()
}

func (p *PrometheusCollector) TokenRejected() {
	p.tokenRejections.Inc()
}

func (p *PrometheusCollector) SpawnDuration(d time.Duration) {
	p.spawnDuration.Observe(d.Seconds())
}

var _ ports.StatsRecorder = (*PrometheusCollector)(nil)

// NopStats is a no-op StatsRecorder for tests.
type NopStats struct{}

func (NopStats) SessionStarted(domain.StoreID, domain.Protocol)                      {}
func (NopStats) SessionEnded(domain.StoreID, domain.Protocol, string, time.Duration) {}
func (NopStats) ViewerJoined()                                                       {}
func (NopStats) ViewerLeft()                                                         {}
func (NopStats) ProtocolFallback(domain.Protocol)                                    {}
func (NopStats) ArtifactServed(string, string)                                       {}
func (NopStats) TokenRejected()                                                      {}
func (NopStats) SpawnDuration(time.Duration)                                         {}
