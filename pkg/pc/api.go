// Package pc provides a PeerConnection API backed by libdatachannel.
//
// Every wrapper object is registered in a handle registry and its token is
// stored on the native object as the user pointer. Native callbacks resolve
// the token back to the wrapper, which drops the event if it has already
// been closed. Objects are released explicitly with Close; there are no
// finalizers.
package pc

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/thesyncim/libgodatachannel/internal/engine"
	"github.com/thesyncim/libgodatachannel/internal/ffi"
	"github.com/thesyncim/libgodatachannel/internal/handle"
	"github.com/thesyncim/libgodatachannel/internal/metrics"
)

// getString retries a bounded number of times when the value grows between
// the size probe and the read.
const getStringAttempts = 3

// API binds one engine to its callback dispatcher. Objects created through
// an API must not be mixed with another API.
type API struct {
	engine   engine.Engine
	registry *handle.Registry
	log      zerolog.Logger
	metrics  *metrics.Collector

	// teardown tracks native deletes moved off a callback goroutine.
	teardown conc.WaitGroup
	closed   atomic.Bool

	registerer prometheus.Registerer
	logLevel   LogLevel
	logEnabled bool
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *API) { a.log = l }
}

// WithRegisterer registers the binding's metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(a *API) { a.registerer = r }
}

// WithLogLevel forwards native log lines at or above level to the logger.
func WithLogLevel(level LogLevel) Option {
	return func(a *API) {
		a.logLevel = level
		a.logEnabled = level != LogNone
	}
}

// NewAPI binds eng. It must be the only API bound to eng.
func NewAPI(eng engine.Engine, opts ...Option) *API {
	a := &API{
		engine: eng,
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With().Str("module", "pc").Logger()
	a.metrics = metrics.New(a.registerer)
	a.registry = handle.NewRegistry(handle.WithObserver(a.metrics))

	eng.Bind(dispatcher{api: a})
	if a.logEnabled {
		eng.InitLogger(a.logLevel, true)
	}
	return a
}

var (
	defaultAPI     *API
	defaultAPIErr  error
	defaultAPIOnce sync.Once
)

// DefaultAPI loads libdatachannel on first use and returns the shared API.
func DefaultAPI() (*API, error) {
	defaultAPIOnce.Do(func() {
		eng, err := ffi.New()
		if err != nil {
			defaultAPIErr = err
			return
		}
		defaultAPI = NewAPI(eng)
	})
	return defaultAPI, defaultAPIErr
}

// NewPeerConnection creates a peer connection on the default API.
func NewPeerConnection(config Configuration) (*PeerConnection, error) {
	api, err := DefaultAPI()
	if err != nil {
		return nil, err
	}
	return api.NewPeerConnection(config)
}

// Close waits for pending teardowns and releases global engine resources.
// Every PeerConnection must be closed first.
func (a *API) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r := a.teardown.WaitAndRecover(); r != nil {
		a.log.Error().Err(r.AsError()).Msg("deferred teardown panicked")
	}
	a.engine.Cleanup()
	if n := a.registry.Len(); n > 0 {
		a.log.Warn().Int("live", n).Msg("api closed with live objects")
	}
	return nil
}

// runTeardown runs fn inline, or on a tracked goroutine when deferred is set.
// Native deletes wait for running callbacks, so a delete issued from one of
// the object's own callbacks must not run on that goroutine.
func (a *API) runTeardown(fn func() error, deferred bool) error {
	if !deferred {
		return fn()
	}
	a.metrics.Deferred()
	a.teardown.Go(func() {
		if err := fn(); err != nil {
			a.log.Warn().Err(err).Msg("deferred teardown failed")
		}
	})
	return nil
}

// getString reads a string property with the caller-allocated buffer
// convention: probe the size, allocate, read.
func (a *API) getString(id int, prop engine.StringProperty) (string, error) {
	for range getStringAttempts {
		size, err := a.engine.GetString(id, prop, nil)
		if err != nil {
			return "", err
		}
		buf := make([]byte, size)
		if _, err := a.engine.GetString(id, prop, buf); err != nil {
			if errors.Is(err, engine.ErrBufferTooSmall) {
				continue
			}
			return "", err
		}
		return ffi.CStringToGo(buf), nil
	}
	return "", ErrBufferTooSmall
}
