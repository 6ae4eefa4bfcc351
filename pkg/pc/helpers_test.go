package pc

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thesyncim/libgodatachannel/internal/testutil"
)

const waitTimeout = 2 * time.Second

// newTestAPI returns an API over a fresh fake engine. The API is closed when
// the test ends, which waits for deferred teardowns.
func newTestAPI(t *testing.T, opts ...Option) (*API, *testutil.FakeEngine) {
	t.Helper()
	eng := testutil.NewFakeEngine()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	api := NewAPI(eng, opts...)
	t.Cleanup(func() { api.Close() })
	return api, eng
}

func newTestPeerConnection(t *testing.T) (*PeerConnection, *API, *testutil.FakeEngine) {
	t.Helper()
	api, eng := newTestAPI(t)
	pc, err := api.NewPeerConnection(Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	t.Cleanup(func() { pc.Close() })
	return pc, api, eng
}

func createDataChannel(t *testing.T, pc *PeerConnection, label string) *DataChannel {
	t.Helper()
	dc, err := pc.CreateDataChannel(label, nil)
	if err != nil {
		t.Fatalf("CreateDataChannel(%q): %v", label, err)
	}
	return dc
}

// counter counts handler invocations from any goroutine.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
