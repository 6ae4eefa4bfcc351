package pc

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/thesyncim/libgodatachannel/internal/engine"
)

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		in   engine.LogLevel
		want zerolog.Level
	}{
		{engine.LogFatal, zerolog.ErrorLevel},
		{engine.LogError, zerolog.ErrorLevel},
		{engine.LogWarning, zerolog.WarnLevel},
		{engine.LogInfo, zerolog.InfoLevel},
		{engine.LogDebug, zerolog.DebugLevel},
		{engine.LogVerbose, zerolog.TraceLevel},
		{engine.LogNone, zerolog.NoLevel},
	}
	for _, tt := range tests {
		if got := zerologLevel(tt.in); got != tt.want {
			t.Errorf("zerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNativeLogForwarding(t *testing.T) {
	var logs logBuffer
	_, eng := newTestAPI(t, WithLogger(zerolog.New(&logs)), WithLogLevel(LogInfo))

	if !eng.EmitLog(engine.LogWarning, "ice failed") {
		t.Fatal("log callback not enabled")
	}
	if eng.EmitLog(engine.LogDebug, "too verbose") {
		t.Error("log below the configured level was forwarded")
	}

	out := logs.String()
	for _, want := range []string{`"level":"warn"`, `"source":"libdatachannel"`, `"message":"ice failed"`, `"module":"pc"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestCallbackForWrongObject(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)
	dc := createDataChannel(t, pc, "data")

	var opened counter
	dc.OnOpen(opened.inc)

	// a data channel token on a peer connection event and vice versa
	eng.Events().OnStateChange(pc.ID(), eng.Token(dc.ID()), engine.StateConnected)
	eng.Events().OnOpen(dc.ID(), eng.Token(pc.ID()))
	eng.Events().OnPLI(dc.ID(), eng.Token(dc.ID()))

	if pc.ConnectionState() != PeerConnectionStateNew {
		t.Errorf("state changed through a foreign token: %v", pc.ConnectionState())
	}
	if opened.get() != 0 {
		t.Error("open delivered through a foreign token")
	}
}

func TestDispatchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	api, eng := newTestAPI(t, WithRegisterer(reg))

	pc, err := api.NewPeerConnection(Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	dc := createDataChannel(t, pc, "data")
	id, token := dc.ID(), eng.Token(dc.ID())

	eng.EmitOpen(id)
	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	eng.Events().OnOpen(id, token)

	got, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	values := make(map[string]float64)
	for _, mf := range got {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}

	if values["libdatachannel_events_dispatched_total"] != 1 {
		t.Errorf("dispatched = %v, want 1", values["libdatachannel_events_dispatched_total"])
	}
	if values["libdatachannel_resolution_failures_total"] != 1 {
		t.Errorf("resolution failures = %v, want 1", values["libdatachannel_resolution_failures_total"])
	}
	if values["libdatachannel_handles_live"] != 0 {
		t.Errorf("live handles = %v, want 0", values["libdatachannel_handles_live"])
	}
	if n, err := promtest.GatherAndCount(reg, "libdatachannel_events_dispatched_total"); err != nil || n != 1 {
		t.Errorf("dispatched series = %d, %v; want 1", n, err)
	}
}
