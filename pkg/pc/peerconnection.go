package pc

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/thesyncim/libgodatachannel/internal/engine"
	"github.com/thesyncim/libgodatachannel/internal/ffi"
	"github.com/thesyncim/libgodatachannel/internal/handle"
)

// defaultMaxMessageSize is the engine's SCTP default.
const defaultMaxMessageSize = 262144

// peerCallbacks are registered for the whole life of a PeerConnection.
var peerCallbacks = []engine.CallbackKind{
	engine.CallbackLocalDescription,
	engine.CallbackLocalCandidate,
	engine.CallbackStateChange,
	engine.CallbackGatheringStateChange,
	engine.CallbackSignalingStateChange,
	engine.CallbackDataChannel,
	engine.CallbackTrack,
}

// PeerConnection owns the data channels and tracks created on it or pushed
// by the remote peer. Closing it closes every child.
type PeerConnection struct {
	api    *API
	id     int
	token  handle.Token
	config Configuration

	mu       sync.Mutex
	closed   atomic.Bool
	inflight atomic.Int32

	// guarded by mu, written only by engine callbacks and Close
	state     PeerConnectionState
	gathering ICEGatheringState
	signaling SignalingState

	// guarded by mu, never reassigned
	dataChannels map[int]*DataChannel
	tracks       map[int]*Track

	onLocalDescription     handlerSet[func(SessionDescription)]
	onLocalCandidate       handlerSet[func(ICECandidate)]
	onStateChange          handlerSet[func(PeerConnectionState)]
	onGatheringStateChange handlerSet[func(ICEGatheringState)]
	onSignalingStateChange handlerSet[func(SignalingState)]
	onDataChannel          handlerSet[func(*DataChannel)]
	onTrack                handlerSet[func(*Track)]
}

// NewPeerConnection creates a peer connection bound to a.
func (a *API) NewPeerConnection(config Configuration) (*PeerConnection, error) {
	if a.closed.Load() {
		return nil, fmt.Errorf("%w: api closed", ErrUsage)
	}
	ec, err := config.toEngine()
	if err != nil {
		return nil, err
	}
	id, err := a.engine.CreatePeerConnection(ec)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc := &PeerConnection{
		api:          a,
		id:           id,
		config:       config,
		state:        PeerConnectionStateNew,
		gathering:    ICEGatheringStateNew,
		signaling:    SignalingStateStable,
		dataChannels: make(map[int]*DataChannel),
		tracks:       make(map[int]*Track),
	}
	pc.token = a.registry.Register(pc)
	a.engine.SetUserPointer(id, uintptr(pc.token))

	for _, kind := range peerCallbacks {
		if err := a.engine.SetCallback(id, kind, true); err != nil {
			pc.closed.Store(true)
			err = fmt.Errorf("enable %s callback: %w", kind, err)
			if derr := a.engine.DeletePeerConnection(id); derr != nil {
				err = errors.Join(err, derr)
			}
			a.registry.Release(pc.token)
			return nil, err
		}
	}

	a.log.Debug().Int("engine_id", id).Msg("peer connection created")
	return pc, nil
}

// ID returns the engine id.
func (pc *PeerConnection) ID() int { return pc.id }

func (pc *PeerConnection) active() error {
	if pc.closed.Load() {
		return ErrPeerConnectionClosed
	}
	return nil
}

// dispatch runs fn unless the peer connection is closed and reports whether
// it ran.
func (pc *PeerConnection) dispatch(kind engine.CallbackKind, fn func()) bool {
	pc.inflight.Add(1)
	defer pc.inflight.Add(-1)

	if pc.closed.Load() {
		pc.api.metrics.Dropped(kind.String())
		return false
	}
	pc.api.metrics.Dispatched(kind.String())
	fn()
	return true
}

// ConnectionState returns the last state reported by the engine.
func (pc *PeerConnection) ConnectionState() PeerConnectionState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

// GatheringState returns the ICE gathering state.
func (pc *PeerConnection) GatheringState() ICEGatheringState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.gathering
}

// SignalingState returns the signaling state.
func (pc *PeerConnection) SignalingState() SignalingState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.signaling
}

func (pc *PeerConnection) handleStateChange(state PeerConnectionState) {
	pc.mu.Lock()
	if pc.closed.Load() {
		pc.mu.Unlock()
		return
	}
	pc.state = state
	pc.mu.Unlock()

	for _, h := range pc.onStateChange.snapshot() {
		h(state)
	}
}

func (pc *PeerConnection) handleGatheringStateChange(state ICEGatheringState) {
	pc.mu.Lock()
	if pc.closed.Load() {
		pc.mu.Unlock()
		return
	}
	pc.gathering = state
	pc.mu.Unlock()

	for _, h := range pc.onGatheringStateChange.snapshot() {
		h(state)
	}
}

func (pc *PeerConnection) handleSignalingStateChange(state SignalingState) {
	pc.mu.Lock()
	if pc.closed.Load() {
		pc.mu.Unlock()
		return
	}
	pc.signaling = state
	pc.mu.Unlock()

	for _, h := range pc.onSignalingStateChange.snapshot() {
		h(state)
	}
}

// handleDataChannel wraps a channel opened by the remote peer. Membership is
// visible before OnDataChannel handlers run.
func (pc *PeerConnection) handleDataChannel(id int) {
	dc, err := newDataChannel(pc.api, pc, id)
	if err != nil {
		pc.api.log.Error().Err(err).Int("engine_id", id).Msg("attach remote data channel")
		pc.api.runTeardown(func() error { return dc.teardown(false) }, true)
		return
	}
	if !pc.adopt(&dc.channel, func() { pc.dataChannels[id] = dc }) {
		return
	}
	for _, h := range pc.onDataChannel.snapshot() {
		h(dc)
	}
}

func (pc *PeerConnection) handleTrack(id int) {
	t, err := newTrack(pc.api, pc, id)
	if err != nil {
		pc.api.log.Error().Err(err).Int("engine_id", id).Msg("attach remote track")
		pc.api.runTeardown(func() error { return t.teardown(false) }, true)
		return
	}
	if !pc.adopt(&t.channel, func() { pc.tracks[id] = t }) {
		return
	}
	for _, h := range pc.onTrack.snapshot() {
		h(t)
	}
}

// adopt runs add under the lock unless the peer connection has been closed,
// in which case c is released instead.
func (pc *PeerConnection) adopt(c *channel, add func()) bool {
	pc.mu.Lock()
	if !pc.closed.Load() {
		add()
		pc.mu.Unlock()
		return true
	}
	pc.mu.Unlock()

	if teardown, ok := c.dispose(); ok {
		pc.api.runTeardown(teardown, true)
	}
	return false
}

// discardPushed deletes a child the engine pushed after Close.
func (pc *PeerConnection) discardPushed(kind engine.CallbackKind, id int) {
	pc.api.log.Debug().Str("event", kind.String()).Int("engine_id", id).Msg("discarding child pushed after close")
	del := pc.api.engine.DeleteDataChannel
	if kind == engine.CallbackTrack {
		del = pc.api.engine.DeleteTrack
	}
	pc.api.runTeardown(func() error { return del(id) }, true)
}

func (pc *PeerConnection) removeChild(c *channel) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if dc, ok := pc.dataChannels[c.id]; ok && &dc.channel == c {
		delete(pc.dataChannels, c.id)
	}
	if t, ok := pc.tracks[c.id]; ok && &t.channel == c {
		delete(pc.tracks, c.id)
	}
}

// CreateDataChannel creates a data channel. A nil init selects a reliable,
// ordered channel with a stream chosen by the engine.
func (pc *PeerConnection) CreateDataChannel(label string, init *DataChannelInit) (*DataChannel, error) {
	if err := pc.active(); err != nil {
		return nil, err
	}
	id, err := pc.api.engine.CreateDataChannel(pc.id, label, init)
	if err != nil {
		return nil, fmt.Errorf("create data channel %q: %w", label, err)
	}
	dc, err := newDataChannel(pc.api, pc, id)
	if err != nil {
		return nil, errors.Join(err, pc.api.runTeardown(func() error { return dc.teardown(false) }, pc.inflight.Load() > 0))
	}
	dc.label.set(label)
	if !pc.adopt(&dc.channel, func() { pc.dataChannels[id] = dc }) {
		return nil, ErrPeerConnectionClosed
	}
	return dc, nil
}

// AddTrack adds a track from a single SDP media section, which must carry
// an a=mid attribute.
func (pc *PeerConnection) AddTrack(mediaDescription string) (*Track, error) {
	if err := pc.active(); err != nil {
		return nil, err
	}
	if _, err := parseMediaDescription(mediaDescription); err != nil {
		return nil, err
	}
	id, err := pc.api.engine.AddTrack(pc.id, mediaDescription)
	if err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	t, err := pc.newLocalTrack(id)
	if err != nil {
		return nil, err
	}
	t.description.set(mediaDescription)
	return t, nil
}

// AddTrackWithInit adds a track described by init. Mid is required; an
// empty TrackID is replaced with a random one.
func (pc *PeerConnection) AddTrackWithInit(init *TrackInit) (*Track, error) {
	if err := pc.active(); err != nil {
		return nil, err
	}
	if init == nil || init.Mid == "" {
		return nil, fmt.Errorf("%w: track init without mid", ErrInvalidArgument)
	}
	ti := *init
	if ti.TrackID == "" {
		ti.TrackID = uuid.NewString()
	}
	id, err := pc.api.engine.AddTrackEx(pc.id, &ti)
	if err != nil {
		return nil, fmt.Errorf("add track %q: %w", ti.Mid, err)
	}
	t, err := pc.newLocalTrack(id)
	if err != nil {
		return nil, err
	}
	t.mid.set(ti.Mid)
	return t, nil
}

func (pc *PeerConnection) newLocalTrack(id int) (*Track, error) {
	t, err := newTrack(pc.api, pc, id)
	if err != nil {
		return nil, errors.Join(err, pc.api.runTeardown(func() error { return t.teardown(false) }, pc.inflight.Load() > 0))
	}
	if !pc.adopt(&t.channel, func() { pc.tracks[id] = t }) {
		return nil, ErrPeerConnectionClosed
	}
	return t, nil
}

// DataChannels returns the open data channels ordered by id.
func (pc *PeerConnection) DataChannels() []*DataChannel {
	pc.mu.Lock()
	out := make([]*DataChannel, 0, len(pc.dataChannels))
	for _, dc := range pc.dataChannels {
		out = append(out, dc)
	}
	pc.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Tracks returns the tracks ordered by id.
func (pc *PeerConnection) Tracks() []*Track {
	pc.mu.Lock()
	out := make([]*Track, 0, len(pc.tracks))
	for _, t := range pc.tracks {
		out = append(out, t)
	}
	pc.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// SetLocalDescription starts local negotiation. SDPTypeUnknown lets the
// engine pick offer or answer from the signaling state. The description is
// delivered through OnLocalDescription.
func (pc *PeerConnection) SetLocalDescription(typ SDPType) error {
	if err := pc.active(); err != nil {
		return err
	}
	var s string
	if typ != SDPTypeUnknown {
		s = typ.String()
	}
	return pc.api.engine.SetLocalDescription(pc.id, s)
}

// CreateOffer sets a local offer and returns it.
func (pc *PeerConnection) CreateOffer() (SessionDescription, error) {
	if err := pc.SetLocalDescription(SDPTypeOffer); err != nil {
		return SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	return pc.LocalDescription()
}

// CreateAnswer sets a local answer to the current remote offer and returns
// it.
func (pc *PeerConnection) CreateAnswer() (SessionDescription, error) {
	if err := pc.SetLocalDescription(SDPTypeAnswer); err != nil {
		return SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	return pc.LocalDescription()
}

// SetRemoteDescription applies the remote peer's description.
func (pc *PeerConnection) SetRemoteDescription(desc SessionDescription) error {
	if err := pc.active(); err != nil {
		return err
	}
	var typ string
	if desc.Type != SDPTypeUnknown {
		typ = desc.Type.String()
	}
	return pc.api.engine.SetRemoteDescription(pc.id, desc.SDP, typ)
}

// AddRemoteCandidate adds a trickled candidate from the remote peer.
func (pc *PeerConnection) AddRemoteCandidate(c ICECandidate) error {
	if err := pc.active(); err != nil {
		return err
	}
	return pc.api.engine.AddRemoteCandidate(pc.id, c.Candidate, c.SDPMid)
}

// LocalDescription returns the current local description. It fails with
// ErrNotAvailable before negotiation starts.
func (pc *PeerConnection) LocalDescription() (SessionDescription, error) {
	return pc.description(engine.PropLocalDescription, engine.PropLocalDescriptionType)
}

// RemoteDescription returns the current remote description.
func (pc *PeerConnection) RemoteDescription() (SessionDescription, error) {
	return pc.description(engine.PropRemoteDescription, engine.PropRemoteDescriptionType)
}

func (pc *PeerConnection) description(sdpProp, typeProp engine.StringProperty) (SessionDescription, error) {
	if err := pc.active(); err != nil {
		return SessionDescription{}, err
	}
	sdp, err := pc.api.getString(pc.id, sdpProp)
	if err != nil {
		return SessionDescription{}, err
	}
	typ, err := pc.api.getString(pc.id, typeProp)
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{Type: NewSDPType(typ), SDP: sdp}, nil
}

// LocalAddress returns the local address of the selected candidate.
func (pc *PeerConnection) LocalAddress() (string, error) {
	if err := pc.active(); err != nil {
		return "", err
	}
	return pc.api.getString(pc.id, engine.PropLocalAddress)
}

// RemoteAddress returns the remote address of the selected candidate.
func (pc *PeerConnection) RemoteAddress() (string, error) {
	if err := pc.active(); err != nil {
		return "", err
	}
	return pc.api.getString(pc.id, engine.PropRemoteAddress)
}

// SelectedCandidatePair returns the candidates ICE settled on.
func (pc *PeerConnection) SelectedCandidatePair() (CandidatePair, error) {
	if err := pc.active(); err != nil {
		return CandidatePair{}, err
	}
	for range getStringAttempts {
		size, err := pc.api.engine.SelectedCandidatePair(pc.id, nil, nil)
		if err != nil {
			return CandidatePair{}, err
		}
		local, remote := make([]byte, size), make([]byte, size)
		if _, err := pc.api.engine.SelectedCandidatePair(pc.id, local, remote); err != nil {
			if errors.Is(err, engine.ErrBufferTooSmall) {
				continue
			}
			return CandidatePair{}, err
		}
		return CandidatePair{Local: ffi.CStringToGo(local), Remote: ffi.CStringToGo(remote)}, nil
	}
	return CandidatePair{}, ErrBufferTooSmall
}

// MaxMessageSize returns the configured local maximum message size.
func (pc *PeerConnection) MaxMessageSize() int {
	if pc.config.MaxMessageSize > 0 {
		return pc.config.MaxMessageSize
	}
	return defaultMaxMessageSize
}

// RemoteMaxMessageSize returns the maximum message size the remote peer
// accepts.
func (pc *PeerConnection) RemoteMaxMessageSize() (int, error) {
	if err := pc.active(); err != nil {
		return 0, err
	}
	return pc.api.engine.RemoteMaxMessageSize(pc.id)
}

// OnLocalDescription registers a handler for local descriptions.
func (pc *PeerConnection) OnLocalDescription(fn func(SessionDescription)) (unsubscribe func()) {
	return pc.onLocalDescription.subscribe(fn)
}

// OnLocalCandidate registers a handler for gathered local candidates.
func (pc *PeerConnection) OnLocalCandidate(fn func(ICECandidate)) (unsubscribe func()) {
	return pc.onLocalCandidate.subscribe(fn)
}

// OnStateChange registers a handler for connection state changes.
func (pc *PeerConnection) OnStateChange(fn func(PeerConnectionState)) (unsubscribe func()) {
	return pc.onStateChange.subscribe(fn)
}

// OnGatheringStateChange registers a handler for gathering state changes.
func (pc *PeerConnection) OnGatheringStateChange(fn func(ICEGatheringState)) (unsubscribe func()) {
	return pc.onGatheringStateChange.subscribe(fn)
}

// OnSignalingStateChange registers a handler for signaling state changes.
func (pc *PeerConnection) OnSignalingStateChange(fn func(SignalingState)) (unsubscribe func()) {
	return pc.onSignalingStateChange.subscribe(fn)
}

// OnDataChannel registers a handler for channels opened by the remote peer.
// The channel is already listed by DataChannels when fn runs.
func (pc *PeerConnection) OnDataChannel(fn func(*DataChannel)) (unsubscribe func()) {
	return pc.onDataChannel.subscribe(fn)
}

// OnTrack registers a handler for tracks added by the remote peer.
func (pc *PeerConnection) OnTrack(fn func(*Track)) (unsubscribe func()) {
	return pc.onTrack.subscribe(fn)
}

// Shutdown closes the transport. The engine reports the closed state through
// OnStateChange; the object stays valid until Close.
func (pc *PeerConnection) Shutdown() error {
	if err := pc.active(); err != nil {
		return err
	}
	return pc.api.engine.ClosePeerConnection(pc.id)
}

// Close closes every child, then the peer connection. It is idempotent and
// may be called from any goroutine, including event handlers; in the latter
// case native teardown completes in the background and API.Close waits for
// it.
func (pc *PeerConnection) Close() error {
	pc.mu.Lock()
	if !pc.closed.CompareAndSwap(false, true) {
		pc.mu.Unlock()
		return nil
	}
	children := make([]*channel, 0, len(pc.dataChannels)+len(pc.tracks))
	for _, dc := range pc.dataChannels {
		children = append(children, &dc.channel)
	}
	for _, t := range pc.tracks {
		children = append(children, &t.channel)
	}
	clear(pc.dataChannels)
	clear(pc.tracks)
	pc.state = PeerConnectionStateClosed
	pc.gathering = ICEGatheringStateNew
	pc.signaling = SignalingStateStable
	pc.mu.Unlock()

	pc.clearHandlers()

	deferred := pc.inflight.Load() > 0
	teardowns := make([]func() error, 0, len(children))
	for _, c := range children {
		if teardown, ok := c.dispose(); ok {
			teardowns = append(teardowns, teardown)
		}
		if c.inflight.Load() > 0 {
			deferred = true
		}
	}

	pc.api.log.Debug().Int("engine_id", pc.id).Int("children", len(teardowns)).Bool("deferred", deferred).
		Msg("closing peer connection")

	return pc.api.runTeardown(func() error {
		var errs []error
		for _, teardown := range teardowns {
			if err := teardown(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := pc.api.engine.DeletePeerConnection(pc.id); err != nil {
			errs = append(errs, fmt.Errorf("delete peer connection %d: %w", pc.id, err))
		}
		pc.api.registry.Release(pc.token)
		return errors.Join(errs...)
	}, deferred)
}

func (pc *PeerConnection) clearHandlers() {
	pc.onLocalDescription.clear()
	pc.onLocalCandidate.clear()
	pc.onStateChange.clear()
	pc.onGatheringStateChange.clear()
	pc.onSignalingStateChange.clear()
	pc.onDataChannel.clear()
	pc.onTrack.clear()
}
