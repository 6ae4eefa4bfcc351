package pc

import (
	"errors"
	"sync"
	"testing"

	"github.com/thesyncim/libgodatachannel/internal/engine"
	"github.com/thesyncim/libgodatachannel/internal/testutil"
)

const videoSection = "m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:video\r\n" +
	"a=sendrecv\r\n" +
	"a=rtpmap:96 VP8/90000\r\n"

func TestNewPeerConnection(t *testing.T) {
	api, eng := newTestAPI(t)

	pc, err := api.NewPeerConnection(Configuration{
		ICEServers:     []ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}},
		PortRangeBegin: 10000,
		PortRangeEnd:   20000,
		MaxMessageSize: 1 << 20,
	})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer pc.Close()

	cfg := eng.Config(pc.ID())
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0] != "stun:stun.example.com:3478" {
		t.Errorf("engine ICE servers = %v", cfg.ICEServers)
	}
	if cfg.PortRangeBegin != 10000 || cfg.PortRangeEnd != 20000 {
		t.Errorf("engine port range = %d-%d", cfg.PortRangeBegin, cfg.PortRangeEnd)
	}
	for _, kind := range peerCallbacks {
		if !eng.CallbackEnabled(pc.ID(), kind) {
			t.Errorf("%s callback not registered", kind)
		}
	}
	if pc.ConnectionState() != PeerConnectionStateNew ||
		pc.GatheringState() != ICEGatheringStateNew ||
		pc.SignalingState() != SignalingStateStable {
		t.Errorf("initial states = %v/%v/%v", pc.ConnectionState(), pc.GatheringState(), pc.SignalingState())
	}
	if got := pc.MaxMessageSize(); got != 1<<20 {
		t.Errorf("MaxMessageSize() = %d", got)
	}
}

func TestNewPeerConnectionErrors(t *testing.T) {
	api, eng := newTestAPI(t)

	if _, err := api.NewPeerConnection(Configuration{PortRangeBegin: 2000, PortRangeEnd: 1000}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("inverted port range error = %v, want ErrInvalidArgument", err)
	}

	eng.FailNext("CreatePeerConnection", engine.ErrFailure)
	if _, err := api.NewPeerConnection(Configuration{}); !errors.Is(err, ErrFailure) {
		t.Errorf("engine failure error = %v, want ErrFailure", err)
	}

	eng.FailNext("SetCallback", engine.ErrInvalidArgument)
	if _, err := api.NewPeerConnection(Configuration{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("callback failure error = %v, want ErrInvalidArgument", err)
	}
	if eng.Live() != 0 {
		t.Errorf("failed create left %d engine objects", eng.Live())
	}
	if n := api.registry.Len(); n != 0 {
		t.Errorf("failed create left %d registrations", n)
	}
}

func TestChildMembership(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)

	a := createDataChannel(t, pc, "a")
	b := createDataChannel(t, pc, "b")
	tr, err := pc.AddTrack(videoSection)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	if dcs := pc.DataChannels(); len(dcs) != 2 || dcs[0] != a || dcs[1] != b {
		t.Errorf("DataChannels() = %v, want [a b]", dcs)
	}
	if trs := pc.Tracks(); len(trs) != 1 || trs[0] != tr {
		t.Errorf("Tracks() = %v", trs)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if dcs := pc.DataChannels(); len(dcs) != 1 || dcs[0] != b {
		t.Errorf("DataChannels() after close = %v, want [b]", dcs)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close track: %v", err)
	}
	if len(pc.Tracks()) != 0 {
		t.Error("closed track still listed")
	}
	if eng.Exists(a.ID()) || eng.Exists(tr.ID()) {
		t.Error("closed children still exist in the engine")
	}
}

func TestCreateChildErrors(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)

	eng.FailNext("CreateDataChannel", engine.ErrInvalidArgument)
	if _, err := pc.CreateDataChannel("x", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CreateDataChannel error = %v, want ErrInvalidArgument", err)
	}

	tests := []struct {
		name string
		desc string
	}{
		{"no mid", "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=rtpmap:111 opus/48000/2\r\n"},
		{"two sections", videoSection + "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=mid:audio\r\n"},
		{"garbage", "not sdp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := pc.AddTrack(tt.desc); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("AddTrack error = %v, want ErrInvalidArgument", err)
			}
		})
	}
	if eng.Calls("AddTrack") != 0 {
		t.Error("invalid descriptions reached the engine")
	}

	if _, err := pc.AddTrackWithInit(&TrackInit{Codec: CodecOpus}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("AddTrackWithInit without mid = %v, want ErrInvalidArgument", err)
	}
	if len(pc.DataChannels()) != 0 || len(pc.Tracks()) != 0 {
		t.Error("failed creates left children")
	}
}

func TestCreateOnClosedPeerConnection(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)
	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := pc.CreateDataChannel("x", nil); !errors.Is(err, ErrPeerConnectionClosed) {
		t.Errorf("CreateDataChannel error = %v, want ErrPeerConnectionClosed", err)
	}
	if _, err := pc.AddTrack(videoSection); !errors.Is(err, ErrUsage) {
		t.Errorf("AddTrack error = %v, want ErrUsage", err)
	}
	if err := pc.SetLocalDescription(SDPTypeOffer); !errors.Is(err, ErrUsage) {
		t.Errorf("SetLocalDescription error = %v, want ErrUsage", err)
	}
	if eng.Calls("CreateDataChannel") != 0 {
		t.Error("create reached the engine after Close")
	}
}

func TestStateEvents(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)

	var states []PeerConnectionState
	var gathering []ICEGatheringState
	var signaling []SignalingState
	pc.OnStateChange(func(s PeerConnectionState) { states = append(states, s) })
	pc.OnGatheringStateChange(func(s ICEGatheringState) { gathering = append(gathering, s) })
	pc.OnSignalingStateChange(func(s SignalingState) { signaling = append(signaling, s) })

	eng.EmitStateChange(pc.ID(), engine.StateConnecting)
	eng.EmitStateChange(pc.ID(), engine.StateConnected)
	eng.EmitGatheringStateChange(pc.ID(), engine.GatheringComplete)
	eng.EmitSignalingStateChange(pc.ID(), engine.SignalingHaveLocalOffer)

	if pc.ConnectionState() != PeerConnectionStateConnected {
		t.Errorf("ConnectionState() = %v", pc.ConnectionState())
	}
	if pc.GatheringState() != ICEGatheringStateComplete {
		t.Errorf("GatheringState() = %v", pc.GatheringState())
	}
	if pc.SignalingState() != SignalingStateHaveLocalOffer {
		t.Errorf("SignalingState() = %v", pc.SignalingState())
	}
	if len(states) != 2 || states[1] != PeerConnectionStateConnected {
		t.Errorf("state events = %v", states)
	}
	if len(gathering) != 1 || len(signaling) != 1 {
		t.Errorf("gathering events = %v, signaling events = %v", gathering, signaling)
	}
}

func TestNegotiation(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)

	var local []SessionDescription
	var candidates []ICECandidate
	pc.OnLocalDescription(func(d SessionDescription) { local = append(local, d) })
	pc.OnLocalCandidate(func(c ICECandidate) { candidates = append(candidates, c) })

	if _, err := pc.LocalDescription(); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("LocalDescription before negotiation = %v, want ErrNotAvailable", err)
	}

	offer, err := pc.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.Type != SDPTypeOffer || offer.SDP == "" {
		t.Errorf("CreateOffer() = %+v", offer)
	}

	eng.EmitLocalDescription(pc.ID(), "v=0\r\n", "offer")
	eng.EmitLocalCandidate(pc.ID(), "a=candidate:1 1 UDP 2122317823 192.168.1.2 5000 typ host", "0")
	if len(local) != 1 || local[0].Type != SDPTypeOffer {
		t.Errorf("local description events = %+v", local)
	}
	if len(candidates) != 1 || candidates[0].SDPMid != "0" {
		t.Errorf("candidate events = %+v", candidates)
	}

	answer := SessionDescription{Type: SDPTypeAnswer, SDP: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n"}
	if err := pc.SetRemoteDescription(answer); err != nil {
		t.Fatalf("SetRemoteDescription: %v", err)
	}
	remote, err := pc.RemoteDescription()
	if err != nil || remote != answer {
		t.Errorf("RemoteDescription() = %+v, %v", remote, err)
	}
	if err := pc.SetRemoteDescription(SessionDescription{Type: SDPTypeAnswer}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty remote description = %v, want ErrInvalidArgument", err)
	}

	if err := pc.AddRemoteCandidate(ICECandidate{Candidate: "candidate:1 1 UDP 1 10.0.0.1 5000 typ host", SDPMid: "0"}); err != nil {
		t.Errorf("AddRemoteCandidate: %v", err)
	}
	if err := pc.AddRemoteCandidate(ICECandidate{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty candidate = %v, want ErrInvalidArgument", err)
	}
}

func TestConnectionQueries(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)

	if _, err := pc.SelectedCandidatePair(); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("SelectedCandidatePair before connect = %v, want ErrNotAvailable", err)
	}
	eng.SetSelectedPair(pc.ID(), "a=candidate:local", "a=candidate:remote-longer")
	pair, err := pc.SelectedCandidatePair()
	if err != nil {
		t.Fatalf("SelectedCandidatePair: %v", err)
	}
	if pair.Local != "a=candidate:local" || pair.Remote != "a=candidate:remote-longer" {
		t.Errorf("SelectedCandidatePair() = %+v", pair)
	}

	eng.SetString(pc.ID(), engine.PropLocalAddress, "192.168.1.2:5000")
	eng.SetString(pc.ID(), engine.PropRemoteAddress, "10.0.0.1:6000")
	if addr, err := pc.LocalAddress(); err != nil || addr != "192.168.1.2:5000" {
		t.Errorf("LocalAddress() = %q, %v", addr, err)
	}
	if addr, err := pc.RemoteAddress(); err != nil || addr != "10.0.0.1:6000" {
		t.Errorf("RemoteAddress() = %q, %v", addr, err)
	}
	if n, err := pc.RemoteMaxMessageSize(); err != nil || n != defaultMaxMessageSize {
		t.Errorf("RemoteMaxMessageSize() = %d, %v", n, err)
	}
	if got := pc.MaxMessageSize(); got != defaultMaxMessageSize {
		t.Errorf("MaxMessageSize() = %d", got)
	}

	if err := pc.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if eng.Calls("ClosePeerConnection") != 1 {
		t.Error("Shutdown did not close the engine peer connection")
	}
}

func TestRemoteDataChannel(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)

	var got *DataChannel
	var listed bool
	pc.OnDataChannel(func(dc *DataChannel) {
		got = dc
		for _, d := range pc.DataChannels() {
			listed = listed || d == dc
		}
	})

	id := eng.EmitDataChannel(pc.ID(), "remote")
	if got == nil {
		t.Fatal("OnDataChannel did not fire")
	}
	if !listed {
		t.Error("channel not in DataChannels() when OnDataChannel fired")
	}
	if got.ID() != id {
		t.Errorf("channel id = %d, want %d", got.ID(), id)
	}
	if label, err := got.Label(); err != nil || label != "remote" {
		t.Errorf("Label() = %q, %v", label, err)
	}
	if eng.Token(id) == eng.Token(pc.ID()) {
		t.Error("pushed channel still carries the peer connection token")
	}

	var opened counter
	got.OnOpen(opened.inc)
	eng.EmitOpen(id)
	if opened.get() != 1 {
		t.Errorf("open fired %d times on pushed channel", opened.get())
	}
}

func TestRemoteTrack(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)

	var got *Track
	pc.OnTrack(func(tr *Track) { got = tr })
	eng.EmitTrack(pc.ID(), videoSection)

	if got == nil {
		t.Fatal("OnTrack did not fire")
	}
	if trs := pc.Tracks(); len(trs) != 1 || trs[0] != got {
		t.Errorf("Tracks() = %v", trs)
	}
	if mid, err := got.Mid(); err != nil || mid != "video" {
		t.Errorf("Mid() = %q, %v", mid, err)
	}
	if dir, err := got.Direction(); err != nil || dir != DirectionRecvOnly {
		t.Errorf("Direction() = %v, %v", dir, err)
	}
}

func TestChildPushedAfterClose(t *testing.T) {
	pc, _, eng := newTestPeerConnection(t)
	pcID, token := pc.ID(), eng.Token(pc.ID())

	var pushed counter
	pc.OnDataChannel(func(*DataChannel) { pushed.inc() })
	pc.OnTrack(func(*Track) { pushed.inc() })

	early := eng.NewRemoteDataChannel(pcID, "early")
	late := eng.NewRemoteDataChannel(pcID, "late")
	lateTrack := eng.NewRemoteTrack(pcID, videoSection)

	pc.OnSignalingStateChange(func(SignalingState) {
		if err := pc.Close(); err != nil {
			t.Errorf("Close from handler: %v", err)
		}
		eng.Events().OnDataChannel(pcID, token, early)
	})
	eng.EmitSignalingStateChange(pcID, engine.SignalingHaveRemoteOffer)

	eng.Events().OnDataChannel(pcID, token, late)
	eng.Events().OnTrack(pcID, token, lateTrack)

	for _, id := range []int{early, late, lateTrack} {
		id := id
		testutil.Eventually(t, waitTimeout, func() bool { return !eng.Exists(id) }, "pushed child deleted")
	}
	if pushed.get() != 0 {
		t.Errorf("OnDataChannel/OnTrack fired %d times after Close", pushed.get())
	}
	if len(pc.DataChannels()) != 0 || len(pc.Tracks()) != 0 {
		t.Error("children adopted after Close")
	}
}

func TestCloseCascade(t *testing.T) {
	pc, api, eng := newTestPeerConnection(t)
	pcID := pc.ID()

	dcs := []*DataChannel{createDataChannel(t, pc, "a"), createDataChannel(t, pc, "b")}
	tr, err := pc.AddTrack(videoSection)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	remote := eng.EmitDataChannel(pcID, "remote")
	eng.EmitStateChange(pcID, engine.StateConnected)
	eng.EmitGatheringStateChange(pcID, engine.GatheringComplete)
	eng.EmitSignalingStateChange(pcID, engine.SignalingHaveLocalOffer)

	ids := []int{dcs[0].ID(), dcs[1].ID(), tr.ID(), remote}

	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if pc.ConnectionState() != PeerConnectionStateClosed ||
		pc.GatheringState() != ICEGatheringStateNew ||
		pc.SignalingState() != SignalingStateStable {
		t.Errorf("states after Close = %v/%v/%v", pc.ConnectionState(), pc.GatheringState(), pc.SignalingState())
	}
	for _, id := range append(ids, pcID) {
		if got := eng.DeleteCount(id); got != 1 {
			t.Errorf("id %d deleted %d times, want 1", id, got)
		}
	}
	for _, dc := range dcs {
		if err := dc.Send([]byte{1}); !errors.Is(err, ErrUsage) {
			t.Errorf("Send on cascaded child = %v, want ErrUsage", err)
		}
		if err := dc.Close(); err != nil {
			t.Errorf("Close on cascaded child: %v", err)
		}
	}
	if len(pc.DataChannels()) != 0 || len(pc.Tracks()) != 0 {
		t.Error("children listed after Close")
	}
	if eng.Live() != 0 {
		t.Errorf("%d engine objects left", eng.Live())
	}
	if n := api.registry.Len(); n != 0 {
		t.Errorf("%d registrations left", n)
	}
}

func TestCloseCascadeConcurrentCallbacks(t *testing.T) {
	pc, api, eng := newTestPeerConnection(t)

	const channels = 8
	var delivered counter
	ids := make([]int, channels)
	tokens := make([]uintptr, channels)
	for i := range ids {
		dc := createDataChannel(t, pc, "load")
		ids[i], tokens[i] = dc.ID(), eng.Token(dc.ID())
		dc.OnOpen(delivered.inc)
		if _, err := dc.OnMessage(func([]byte, bool) { delivered.inc() }); err != nil {
			t.Fatalf("OnMessage: %v", err)
		}
	}

	ev := eng.Events()
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(id int, token uintptr) {
			defer wg.Done()
			<-start
			for range 200 {
				ev.OnMessage(id, token, []byte("m"), true)
				ev.OnOpen(id, token)
			}
		}(ids[i], tokens[i])
	}

	close(start)
	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
	if err := api.Close(); err != nil {
		t.Fatalf("API.Close: %v", err)
	}

	if pc.ConnectionState() != PeerConnectionStateClosed ||
		pc.GatheringState() != ICEGatheringStateNew ||
		pc.SignalingState() != SignalingStateStable {
		t.Errorf("states after Close = %v/%v/%v", pc.ConnectionState(), pc.GatheringState(), pc.SignalingState())
	}
	for _, id := range ids {
		if got := eng.DeleteCount(id); got != 1 {
			t.Errorf("channel %d deleted %d times, want 1", id, got)
		}
	}

	after := delivered.get()
	for i := range ids {
		ev.OnMessage(ids[i], tokens[i], []byte("late"), true)
		ev.OnOpen(ids[i], tokens[i])
	}
	if got := delivered.get(); got != after {
		t.Errorf("%d events delivered after Close", got-after)
	}
}

// A channel "data" gets engine id 3 on peer connection A. After A is closed
// the engine reuses id 3; a replayed callback with the old token must reach
// neither the old nor the new channel.
func TestStaleTokenReplay(t *testing.T) {
	api, eng := newTestAPI(t)

	a, err := api.NewPeerConnection(Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	eng.SetNextID(3)
	dc := createDataChannel(t, a, "data")
	if dc.ID() != 3 {
		t.Fatalf("channel id = %d, want 3", dc.ID())
	}
	staleToken := eng.Token(3)

	var oldOpen counter
	dc.OnOpen(oldOpen.inc)
	eng.EmitOpen(3)
	if oldOpen.get() != 1 {
		t.Fatalf("open fired %d times, want 1", oldOpen.get())
	}
	if !dc.IsOpen() {
		t.Error("IsOpen() = false after open")
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	eng.Events().OnOpen(3, staleToken)
	if oldOpen.get() != 1 {
		t.Errorf("replayed open reached the closed channel")
	}

	b, err := api.NewPeerConnection(Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	defer b.Close()
	eng.SetNextID(3)
	reused := createDataChannel(t, b, "other")
	if reused.ID() != 3 {
		t.Fatalf("reused id = %d, want 3", reused.ID())
	}
	var newOpen counter
	reused.OnOpen(newOpen.inc)

	eng.Events().OnOpen(3, staleToken)
	if oldOpen.get() != 1 || newOpen.get() != 0 {
		t.Errorf("stale token delivered: old=%d new=%d", oldOpen.get(), newOpen.get())
	}
	eng.EmitOpen(3)
	if newOpen.get() != 1 {
		t.Errorf("current token delivered %d opens, want 1", newOpen.get())
	}
}

func TestAPIClose(t *testing.T) {
	api, eng := newTestAPI(t, WithLogLevel(LogWarning))

	if level, enabled := eng.LogSettings(); level != LogWarning || !enabled {
		t.Errorf("InitLogger(%v, %v), want warning enabled", level, enabled)
	}
	pc, err := api.NewPeerConnection(Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := api.Close(); err != nil {
		t.Fatalf("API.Close: %v", err)
	}
	if !eng.CleanedUp() {
		t.Error("engine not cleaned up")
	}
	if _, err := api.NewPeerConnection(Configuration{}); !errors.Is(err, ErrUsage) {
		t.Errorf("NewPeerConnection after API.Close = %v, want ErrUsage", err)
	}
}
