// Package metrics provides Prometheus metrics for the binding and an optional
// HTTP endpoint to expose them.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/thesyncim/libgodatachannel/internal/handle"
)

// Collector holds the binding's metrics. The zero value is not usable; a nil
// *Collector is, and records nothing.
type Collector struct {
	handlesLive        prometheus.Gauge
	resolutionFailures prometheus.Counter
	eventsDispatched   *prometheus.CounterVec
	eventsDropped      *prometheus.CounterVec
	deferredTeardowns  prometheus.Counter
}

var _ handle.Observer = (*Collector)(nil)

// New creates the collectors and registers them with reg. A nil reg skips
// registration. Collectors already registered with reg are reused, so
// several APIs can share one registry.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		handlesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libdatachannel_handles_live",
			Help: "Current number of registered wrapper objects.",
		}),
		resolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libdatachannel_resolution_failures_total",
			Help: "Callbacks whose token no longer resolved to a live object.",
		}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libdatachannel_events_dispatched_total",
			Help: "Engine callbacks delivered to application handlers.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libdatachannel_events_dropped_total",
			Help: "Engine callbacks dropped because the target was disposed.",
		}, []string{"kind"}),
		deferredTeardowns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libdatachannel_deferred_teardowns_total",
			Help: "Native teardowns moved off a callback goroutine.",
		}),
	}
	if reg == nil {
		return c
	}

	c.handlesLive = register(reg, c.handlesLive)
	c.resolutionFailures = register(reg, c.resolutionFailures)
	c.eventsDispatched = register(reg, c.eventsDispatched)
	c.eventsDropped = register(reg, c.eventsDropped)
	c.deferredTeardowns = register(reg, c.deferredTeardowns)
	return c
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) T {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		log.Warn().Str("module", "metrics").Err(err).Msg("metric registration failed")
	}
	return col
}

// Registered implements handle.Observer.
func (c *Collector) Registered() {
	if c == nil {
		return
	}
	c.handlesLive.Inc()
}

// Released implements handle.Observer.
func (c *Collector) Released() {
	if c == nil {
		return
	}
	c.handlesLive.Dec()
}

// Missed implements handle.Observer.
func (c *Collector) Missed(handle.Token) {
	if c == nil {
		return
	}
	c.resolutionFailures.Inc()
}

// Dispatched counts a delivered callback of kind.
func (c *Collector) Dispatched(kind string) {
	if c == nil {
		return
	}
	c.eventsDispatched.WithLabelValues(kind).Inc()
}

// Dropped counts a callback of kind that arrived for a disposed object.
func (c *Collector) Dropped(kind string) {
	if c == nil {
		return
	}
	c.eventsDropped.WithLabelValues(kind).Inc()
}

// Deferred counts a teardown moved to a worker goroutine.
func (c *Collector) Deferred() {
	if c == nil {
		return
	}
	c.deferredTeardowns.Inc()
}

// Server exposes a Prometheus gatherer over HTTP.
type Server struct {
	httpServer *http.Server
	addr       string
}

// Default values for the metrics endpoint.
const (
	DefaultAddr = ":9090"
	DefaultPath = "/metrics"
)

// NewServer serves g at DefaultPath on addr. An empty addr uses DefaultAddr.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	mux := http.NewServeMux()
	mux.Handle(DefaultPath, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		log.Info().Str("module", "metrics").Str("addr", s.addr).Str("path", DefaultPath).Msg("starting metrics server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Str("module", "metrics").Err(err).Msg("metrics server failed")
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	log.Info().Str("module", "metrics").Str("addr", s.addr).Msg("stopping metrics server")
	return s.httpServer.Close()
}

// Handler returns the HTTP handler, for mounting on an existing server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
