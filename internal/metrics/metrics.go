package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smflab"

var (
	once sync.Once

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Count of committed mutations by action.",
		},
		[]string{"action"},
	)

	forbidden = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forbidden_total",
			Help:      "Count of actions denied by the role policy.",
		},
		[]string{"action", "role"},
	)

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Count of availability checks by result.",
		},
		[]string{"result"},
	)

	blocksCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_created_total",
			Help:      "Count of facility blocks created by type.",
		},
		[]string{"type"},
	)

	kpiGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi",
			Help:      "Last computed dashboard KPIs.",
		},
		[]string{"name"},
	)

	holidayCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holiday_cache_total",
			Help:      "Holiday cache lookups by result.",
		},
		[]string{"result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Manager notifications by outcome.",
		},
		[]string{"status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			mutations,
			forbidden,
			availabilityChecks,
			blocksCreated,
			kpiGauge,
			holidayCache,
			notifications,
			httpRequests,
			httpDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncMutation(action string) {
	mutations.WithLabelValues(action).Inc()
}

func IncForbidden(action, role string) {
	forbidden.WithLabelValues(action, role).Inc()
}

func IncAvailabilityCheck(available bool) {
	result := "conflict"
	if available {
		result = "available"
	}
	availabilityChecks.WithLabelValues(result).Inc()
}

func IncBlockCreated(blockType string) {
	blocksCreated.WithLabelValues(blockType).Inc()
}

// SetKPIs publishes the dashboard figures.
func SetKPIs(ongoing, planned, utilization, bookedDays int) {
	kpiGauge.WithLabelValues("ongoing").Set(float64(ongoing))
	kpiGauge.WithLabelValues("planned").Set(float64(planned))
	kpiGauge.WithLabelValues("utilization_percent").Set(float64(utilization))
	kpiGauge.WithLabelValues("booked_days_30").Set(float64(bookedDays))
}

func IncHolidayCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	holidayCache.WithLabelValues(result).Inc()
}

func IncNotification(status string) {
	notifications.WithLabelValues(status).Inc()
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
