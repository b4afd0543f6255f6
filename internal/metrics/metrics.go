package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const routeLabelKey ctxKey = "metrics_route"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbooking_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtbooking_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	bookingOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbooking_booking_operations_total",
		Help: "Booking operations by outcome category.",
	}, []string{"operation", "outcome"})

	compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbooking_compensations_total",
		Help: "Calendar events deleted because the projection write failed.",
	}, []string{"result"})

	shareTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbooking_payment_share_transitions_total",
		Help: "Payment share state transitions.",
	}, []string{"to", "reason"})

	passRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbooking_pass_runs_total",
		Help: "Scheduled pass ticks by result (ran, skipped).",
	}, []string{"pass", "result"})

	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtbooking_pass_duration_seconds",
		Help:    "Histogram of scheduled pass durations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	calendarLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtbooking_calendar_latency_seconds",
		Help:    "Histogram of calendar store call latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})
)

// Middleware records request metrics and stores the route pattern in the
// request context for downstream instrumentation.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			req := c.Request()
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), routeLabelKey, route)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			httpRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BookingOp counts one orchestrator call. outcome is "ok" or an error
// category.
func BookingOp(operation, outcome string) {
	bookingOps.WithLabelValues(operation, outcome).Inc()
}

// Compensation counts a compensating delete; ok reports whether it worked.
func Compensation(ok bool) {
	result := "deleted"
	if !ok {
		result = "failed"
	}
	compensations.WithLabelValues(result).Inc()
}

// ShareTransition counts a payment share moving to state.
func ShareTransition(to, reason string) {
	shareTransitions.WithLabelValues(to, reason).Inc()
}

// PassRan records a completed pass tick.
func PassRan(pass string, started time.Time) {
	passRuns.WithLabelValues(pass, "ran").Inc()
	passDuration.WithLabelValues(pass).Observe(time.Since(started).Seconds())
}

// PassSkipped records a tick dropped because the previous one was running.
func PassSkipped(pass string) {
	passRuns.WithLabelValues(pass, "skipped").Inc()
}

// ObserveCalendar records calendar latency for operation, labelled with
// the request route when there is one.
func ObserveCalendar(ctx context.Context, operation string, start time.Time) {
	calendarLatency.WithLabelValues(operation, routeFromContext(ctx)).Observe(time.Since(start).Seconds())
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeLabelKey).(string); ok && route != "" {
		return route
	}
	return "background"
}
