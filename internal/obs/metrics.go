package obs

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adzb_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adzb_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adzb_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adzb_realtime_connections",
		Help: "Current number of open realtime websocket connections.",
	})

	realtimeEventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adzb_realtime_snapshots_delivered_total",
			Help: "Mirror snapshots pushed to websocket clients.",
		},
		[]string{"table"},
	)

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adzb_negotiation_emails_total",
			Help: "Negotiation emails submitted, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers the collectors in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		realtimeConnections,
		realtimeEventsDelivered,
		emailsSent,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// RouteFunc returns the route pattern of a served request. Raw paths carry
// slugs and ids and would explode label cardinality.
type RouteFunc func(*http.Request) string

// Instrument records request count, latency and in-flight gauge.
func Instrument(next http.Handler, route RouteFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		label := "unmatched"
		if route != nil {
			if pattern := route(r); pattern != "" {
				label = pattern
			}
		}
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, label, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, label, status).Inc()
	})
}

func RealtimeConnected()    { realtimeConnections.Inc() }
func RealtimeDisconnected() { realtimeConnections.Dec() }

func SnapshotDelivered(table string) {
	realtimeEventsDelivered.WithLabelValues(table).Inc()
}

func EmailSent(outcome string) {
	emailsSent.WithLabelValues(outcome).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the instrumented writer.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
