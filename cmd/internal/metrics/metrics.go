// Package metrics exposes client runtime counters in Prometheus format.
//
// Every method is safe on a nil *Collector, so components take one optionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat_client"

// Collector owns a private registry and the runtime's metrics.
type Collector struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	replays      prometheus.Counter
	refreshes    *prometheus.CounterVec
	refreshJoins prometheus.Counter
	logouts      prometheus.Counter

	connState  prometheus.Gauge
	reconnects prometheus.Counter
	frames     *prometheus.CounterVec
	duplicates prometheus.Counter
	sendDrops  prometheus.Counter
}

// New builds a Collector with Go runtime and process collectors registered.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests sent, by response status class.",
		}, []string{"class"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "replays_total",
			Help: "Requests replayed after a credential refresh.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "refreshes_total",
			Help: "Credential refresh flights, by result.",
		}, []string{"result"}),
		refreshJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "refresh_joins_total",
			Help: "Requests that waited on a refresh started by another request.",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "forced_logouts_total",
			Help: "Logout signals emitted after a rejected refresh.",
		}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "connection_state",
			Help: "Current connection state (0 idle, 1 connecting, 2 open, 3 closing, 4 closed).",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after an unexpected close.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "frames_total",
			Help: "Inbound frames dispatched, by action.",
		}, []string{"action"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "duplicate_frames_total",
			Help: "Inbound new_message frames dropped as already seen.",
		}),
		sendDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "send_drops_total",
			Help: "Outbound messages dropped because the connection was not open or rate limited.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requests, c.replays, c.refreshes, c.refreshJoins, c.logouts,
		c.connState, c.reconnects, c.frames, c.duplicates, c.sendDrops,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one HTTP exchange.
func (c *Collector) ObserveRequest(class string) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(class).Inc()
}

// ObserveReplay counts one replayed request.
func (c *Collector) ObserveReplay() {
	if c == nil {
		return
	}
	c.replays.Inc()
}

// ObserveRefresh counts one finished refresh flight.
func (c *Collector) ObserveRefresh(ok bool) {
	if c == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	c.refreshes.WithLabelValues(result).Inc()
}

// ObserveRefreshJoin counts a request that joined an open refresh window.
func (c *Collector) ObserveRefreshJoin() {
	if c == nil {
		return
	}
	c.refreshJoins.Inc()
}

// ObserveLogout counts a forced logout.
func (c *Collector) ObserveLogout() {
	if c == nil {
		return
	}
	c.logouts.Inc()
}

// SetConnectionState records the realtime state as its ordinal.
func (c *Collector) SetConnectionState(v int) {
	if c == nil {
		return
	}
	c.connState.Set(float64(v))
}

// ObserveReconnect counts a scheduled reconnect.
func (c *Collector) ObserveReconnect() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

// ObserveFrame counts one dispatched inbound frame.
func (c *Collector) ObserveFrame(action string) {
	if c == nil {
		return
	}
	c.frames.WithLabelValues(action).Inc()
}

// ObserveDuplicate counts one deduplicated frame.
func (c *Collector) ObserveDuplicate() {
	if c == nil {
		return
	}
	c.duplicates.Inc()
}

// ObserveSendDrop counts one dropped outbound message.
func (c *Collector) ObserveSendDrop() {
	if c == nil {
		return
	}
	c.sendDrops.Inc()
}
