// Package metrics exports authcard activity and HTTP traffic to
// Prometheus.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	authcard "github.com/goliatone/go-authcard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Collector records activity events and request latencies.
type Collector struct {
	events          *prometheus.CounterVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ authcard.ActivitySink = (*Collector)(nil)

// New registers the authcard collectors on reg. livePages, when set,
// backs a gauge of pages held in memory.
func New(reg prometheus.Registerer, livePages func() int) (*Collector, error) {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcard",
			Name:      "activity_events_total",
			Help:      "Count of card activity events by type",
		}, []string{"event"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authcard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
	}

	collectors := []prometheus.Collector{c.events, c.requestTotal, c.requestDuration}
	if livePages != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "authcard",
			Name:      "live_pages",
			Help:      "Pages currently held in memory",
		}, func() float64 { return float64(livePages()) }))
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Record implements authcard.ActivitySink.
func (c *Collector) Record(_ context.Context, event authcard.ActivityEvent) error {
	c.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// Middleware observes every request handled by the app.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			if ferr, ok := err.(*fiber.Error); ok {
				status = ferr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		labels := prometheus.Labels{
			"method": ctx.Method(),
			"route":  ctx.Route().Path,
			"status": strconv.Itoa(status),
		}
		c.requestTotal.With(labels).Inc()
		c.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
