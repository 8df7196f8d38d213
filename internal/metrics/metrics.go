package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ReservationItems counts reserve attempts per item by result code.
	ReservationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_reservation_items_total",
			Help: "Reserve attempts per item, labelled by result code",
		},
		[]string{"code"},
	)
	HoldsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_holds_released_total",
			Help: "Holds deleted without a sale, labelled by reason",
		},
		[]string{"reason"},
	)
	HoldsConverted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_holds_converted_total",
			Help: "Holds converted into sales",
		},
	)
	UnitsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_units_sold_total",
			Help: "Units taken out of physical stock by conversion",
		},
	)
	HoldsTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_transfer_items_total",
			Help: "Transfer items, labelled by whether existing holds were reused",
		},
		[]string{"mode"},
	)
	DriftCorrections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_reserved_drift_corrections_total",
			Help: "Times reserved_stock was rewritten to match the live holds",
		},
	)
	CleanupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inventory_cleanup_duration_seconds",
			Help:    "Duration of one expiry cleanup pass",
			Buckets: prometheus.DefBuckets,
		},
	)
	CleanupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_cleanup_errors_total",
			Help: "Cleanup passes that ended with a storage error",
		},
	)
)

func NormalizePath(p string) string {
	p = strings.TrimPrefix(p, "/api/v1")
	p = strings.TrimPrefix(p, "/")
	if idx := strings.Index(p, "/"); idx >= 0 {
		p = p[:idx]
	}
	if p == "" {
		return "root"
	}
	return p
}

func Middleware(c *fiber.Ctx) error {
	if c.Path() == "/metrics" {
		return c.Next()
	}
	start := time.Now()
	err := c.Next()
	duration := time.Since(start).Seconds()

	status := c.Response().StatusCode()
	if fe, ok := err.(*fiber.Error); ok {
		status = fe.Code
	}
	path := NormalizePath(c.Path())
	RequestTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(c.Method(), path).Observe(duration)
	return err
}
