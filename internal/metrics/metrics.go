// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records application metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	taskMutations *prometheus.CounterVec
	wsConnections prometheus.Gauge
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		taskMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_task_mutations_total",
			Help: "Total task mutations by kind.",
		}, []string{"kind"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskboard_ws_connections",
			Help: "Currently open websocket connections.",
		}),
	}

	c.registry.MustRegister(c.httpRequests, c.taskMutations, c.wsConnections)
	return c
}

// RecordTaskMutation counts one create/update/delete.
func (c *Collector) RecordTaskMutation(kind string) {
	c.taskMutations.WithLabelValues(kind).Inc()
}

// WSConnected increments the open-connection gauge.
func (c *Collector) WSConnected() {
	c.wsConnections.Inc()
}

// WSDisconnected decrements the open-connection gauge.
func (c *Collector) WSDisconnected() {
	c.wsConnections.Dec()
}

// Middleware records per-request counters keyed by the route pattern, not
// the raw path, to keep cardinality bounded.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			err := next(ec)

			path := ec.Path()
			if path == "" {
				path = ec.Request().URL.Path
			}
			c.httpRequests.WithLabelValues(
				ec.Request().Method,
				path,
				strconv.Itoa(ec.Response().Status),
			).Inc()

			return err
		}
	}
}

// Handler exposes the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
