package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.Registered()
	c.Registered()
	c.Released()
	c.Missed(7)
	c.Dispatched("message")
	c.Dispatched("message")
	c.Dropped("open")
	c.Deferred()

	assert.Equal(t, 1.0, promtest.ToFloat64(c.handlesLive))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.resolutionFailures))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.eventsDispatched.WithLabelValues("message")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.eventsDropped.WithLabelValues("open")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.deferredTeardowns))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Registered()
		c.Released()
		c.Missed(1)
		c.Dispatched("open")
		c.Dropped("open")
		c.Deferred()
	})
}

func TestSharedRegistryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)

	a.Registered()
	b.Registered()

	assert.Equal(t, 2.0, promtest.ToFloat64(a.handlesLive))
	n, err := promtest.GatherAndCount(reg, "libdatachannel_handles_live")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUnregisteredCollector(t *testing.T) {
	c := New(nil)
	c.Dispatched("state_change")
	assert.Equal(t, 1.0, promtest.ToFloat64(c.eventsDispatched.WithLabelValues("state_change")))
}

func TestServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.Deferred()

	s := NewServer("", reg)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", DefaultPath, nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "libdatachannel_deferred_teardowns_total 1"))
}
