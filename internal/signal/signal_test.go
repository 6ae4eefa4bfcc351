package signal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/libgodatachannel/pkg/pc"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func wsURL(srv *httptest.Server, room string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + room
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := c.Receive(ctx)
	require.NoError(t, err)
	return m
}

func TestMessageConversions(t *testing.T) {
	offer := DescriptionMessage(pc.SessionDescription{Type: pc.SDPTypeOffer, SDP: "v=0\r\n"})
	assert.Equal(t, TypeOffer, offer.Type)

	desc, err := offer.Description()
	require.NoError(t, err)
	assert.Equal(t, pc.SDPTypeOffer, desc.Type)
	assert.Equal(t, "v=0\r\n", desc.SDP)

	cand := CandidateMessage(pc.ICECandidate{Candidate: "candidate:1", SDPMid: "0"})
	got, err := cand.ICECandidate()
	require.NoError(t, err)
	assert.Equal(t, "0", got.SDPMid)

	_, err = cand.Description()
	assert.Error(t, err)
	_, err = offer.ICECandidate()
	assert.Error(t, err)

	b, err := json.Marshal(Message{Type: TypeReady})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ready"}`, string(b))
}

func TestRelayPairsPeers(t *testing.T) {
	relay := NewRelay()
	srv := httptest.NewServer(relay)
	defer srv.Close()

	a := dial(t, wsURL(srv, "lobby"))
	b := dial(t, wsURL(srv, "lobby"))

	assert.Equal(t, TypeReady, receive(t, a).Type)
	assert.Equal(t, TypeReady, receive(t, b).Type)

	offer := Message{Type: TypeOffer, SDP: "v=0\r\n"}
	require.NoError(t, a.Send(offer))
	assert.Equal(t, offer, receive(t, b))

	cand := Message{Type: TypeCandidate, Candidate: "candidate:1", Mid: "0"}
	require.NoError(t, b.Send(cand))
	assert.Equal(t, cand, receive(t, a))

	require.NoError(t, a.Close())
	assert.Equal(t, TypeBye, receive(t, b).Type)
	assert.Eventually(t, func() bool { return relay.RoomSize("lobby") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRelayRefusesThirdPeer(t *testing.T) {
	relay := NewRelay()
	srv := httptest.NewServer(relay)
	defer srv.Close()

	a := dial(t, wsURL(srv, "full"))
	dial(t, wsURL(srv, "full"))
	receive(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, wsURL(srv, "full"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestRelayRoomsAreIsolated(t *testing.T) {
	relay := NewRelay()
	srv := httptest.NewServer(relay)
	defer srv.Close()

	a := dial(t, wsURL(srv, "one"))
	b := dial(t, wsURL(srv, "two"))
	assert.Eventually(t, func() bool {
		return relay.RoomSize("one") == 1 && relay.RoomSize("two") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Send(Message{Type: TypeOffer, SDP: "x"}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := b.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientReceiveAfterServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := dial(t, wsURL(srv, "gone"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "relay_test_total", Help: "test"}))

	relay := NewRelay()
	srv := httptest.NewServer(NewRouter(relay, reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "relay_test_total")

	a := dial(t, wsURL(srv, "lobby"))
	dial(t, wsURL(srv, "lobby"))
	assert.Equal(t, TypeReady, receive(t, a).Type)

	resp, err = http.Get(srv.URL + "/rooms/lobby")
	require.NoError(t, err)
	var status struct {
		Room  string `json:"room"`
		Peers int    `json:"peers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "lobby", status.Room)
	assert.Equal(t, 2, status.Peers)
}

func TestRelayJoinRacesLeave(t *testing.T) {
	relay := NewRelay()
	newPeer := func() *peer { return &peer{room: "race", send: make(chan []byte, sendQueue)} }

	for range 200 {
		a, b := newPeer(), newPeer()
		require.True(t, relay.join(a))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.True(t, relay.join(b))
		}()
		go func() {
			defer wg.Done()
			relay.leave(a)
		}()
		wg.Wait()

		assert.Equal(t, 1, relay.RoomSize("race"))
		relay.leave(b)
		assert.Equal(t, 0, relay.RoomSize("race"))
	}
}
