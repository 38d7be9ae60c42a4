package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "letsbefriends"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "transitions_total",
			Help:      "Booking status transitions by target status and acting role.",
		},
		[]string{"to", "role"},
	)

	bookingSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "sweeps_total",
			Help:      "Expired booking sweeps by outcome.",
		},
		[]string{"success"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	providerCircuit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "provider_circuit_state",
			Help:      "1 for the current payment provider breaker state.",
		},
		[]string{"state"},
	)

	nearbyQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "nearby_queries_total",
			Help:      "Nearby discovery queries by kind and cache result.",
		},
		[]string{"kind", "cache"},
	)

	nearbyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "nearby_scan_duration_seconds",
			Help:      "Duration of uncached nearby scans.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"kind"},
	)

	realtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open realtime subscriptions.",
		},
	)

	realtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Realtime events by type and delivery result.",
		},
		[]string{"type", "result"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications created by type.",
		},
		[]string{"type"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		bookingTransitions,
		bookingSweeps,
		webhookEvents,
		providerCircuit,
		nearbyQueries,
		nearbyDuration,
		notificationsSent,
		realtimeConnections,
		realtimeEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight and DecInFlight track concurrent requests.
func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled request. path should be a route
// template so label cardinality stays bounded.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBookingTransition counts a booking status change.
func RecordBookingTransition(to, role string) {
	bookingTransitions.WithLabelValues(to, role).Inc()
}

// RecordBookingSweep counts a sweeper run.
func RecordBookingSweep(success bool) {
	result := "false"
	if success {
		result = "true"
	}
	bookingSweeps.WithLabelValues(result).Inc()
}

// RecordWebhookEvent counts a payment webhook by outcome
// (paid, failed, ignored, unknown_reference, rejected).
func RecordWebhookEvent(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	webhookEvents.WithLabelValues(outcome).Inc()
}

// SetProviderCircuit marks state as the active breaker position.
func SetProviderCircuit(state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		providerCircuit.WithLabelValues(s).Set(v)
	}
}

// RecordNearbyQuery counts a discovery query; scan is zero for cache hits.
func RecordNearbyQuery(kind string, cacheHit bool, scan time.Duration) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	nearbyQueries.WithLabelValues(kind, cache).Inc()
	if !cacheHit {
		nearbyDuration.WithLabelValues(kind).Observe(scan.Seconds())
	}
}

// RecordNotifications counts created notifications.
func RecordNotifications(kind string, n int) {
	if n <= 0 {
		return
	}
	notificationsSent.WithLabelValues(kind).Add(float64(n))
}

// RealtimeConnected adjusts the open subscription gauge by delta.
func RealtimeConnected(delta int) {
	realtimeConnections.Add(float64(delta))
}

// RecordRealtimeEvent counts one queued or dropped push.
func RecordRealtimeEvent(kind string, queued bool) {
	result := "dropped"
	if queued {
		result = "queued"
	}
	realtimeEvents.WithLabelValues(kind, result).Inc()
}
