package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the API. Each instance owns its
// registry so tests can build servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Registrations   prometheus.Counter
	Logins          *prometheus.CounterVec
	OTPsSent        prometheus.Counter
	LikesToggled    *prometheus.CounterVec
	PlaysLogged     prometheus.Counter
	SongsIngested   *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	RateLimited     prometheus.Counter
}

// New creates a new metrics instance
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_http_requests_total",
			Help: "The total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moodtune_http_request_duration_seconds",
			Help:    "The duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "moodtune_registrations_total",
			Help: "The total number of successful registrations",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_logins_total",
			Help: "The total number of login attempts by method and result",
		}, []string{"method", "result"}),
		OTPsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "moodtune_otps_sent_total",
			Help: "The total number of OTP messages handed to the mailer",
		}),
		LikesToggled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_likes_toggled_total",
			Help: "The total number of like toggles by direction",
		}, []string{"action"}),
		PlaysLogged: factory.NewCounter(prometheus.CounterOpts{
			Name: "moodtune_plays_logged_total",
			Help: "The total number of plays logged",
		}),
		SongsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_songs_ingested_total",
			Help: "The total number of songs added by source",
		}, []string{"source"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtune_playlist_cache_lookups_total",
			Help: "Playlist cache lookups by result",
		}, []string{"result"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "moodtune_rate_limited_total",
			Help: "The total number of requests rejected by the rate limiter",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records a finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CacheHit counts a playlist cache hit or miss.
func (m *Metrics) CacheHit(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}
