// Package metrics exposes Prometheus counters for request lifecycle events
// and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/staff-approvals/internal/application/dispatcher"
	"github.com/garyjia/staff-approvals/internal/domain/event"
)

const namespace = "staff_approvals"

// Recorder holds the service metrics on its own registry
type Recorder struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewRecorder creates a recorder with Go and process collectors registered
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Request lifecycle events by type and category",
		}, []string{"type", "category"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Approver decisions by role and resulting request status",
		}, []string{"role", "status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Subscribe counts every dispatched event
func (r *Recorder) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(dispatcher.AllEvents, "metrics", r.HandleEvent)
}

// HandleEvent is a dispatcher.Handler
func (r *Recorder) HandleEvent(ctx context.Context, evt *event.Event) error {
	r.events.WithLabelValues(evt.Type.String(), evt.GetPayloadString(event.KeyCategory)).Inc()

	switch evt.Type {
	case event.TypeStepApproved, event.TypeRequestApproved, event.TypeRequestRejected:
		r.decisions.WithLabelValues(evt.GetPayloadString(event.KeyRole), evt.GetPayloadString(event.KeyStatus)).Inc()
	}
	return nil
}

// Middleware records count and latency per matched route
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
