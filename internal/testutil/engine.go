package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/thesyncim/libgodatachannel/internal/engine"
)

type objectKind int

const (
	kindPeerConnection objectKind = iota
	kindDataChannel
	kindTrack
)

// FakeMessage is a message queued in or sent through the fake engine.
type FakeMessage struct {
	Data   []byte
	Binary bool
}

type fakeObject struct {
	kind      objectKind
	pc        int
	token     uintptr
	callbacks map[engine.CallbackKind]bool
	strings   map[engine.StringProperty]string

	// message callback enable/disable transitions
	messageToggles int

	queue     []FakeMessage
	sent      []FakeMessage
	open      bool
	closed    bool
	threshold int

	config      engine.Configuration
	reliability engine.Reliability
	stream      int
	direction   engine.Direction
	codec       engine.Codec
	packetizer  *engine.PacketizerInit
	chains      []string
	timestamp   uint32
	keyframes   int
	localPair   string
	remotePair  string
}

// FakeEngine is an in-memory engine.Engine. It never fires callbacks on its
// own; tests drive it through the Emit helpers or Events directly, which
// lets them deliver callbacks from arbitrary goroutines.
type FakeEngine struct {
	mu      sync.Mutex
	events  engine.Events
	next    int
	objects map[int]*fakeObject
	deletes map[int]int
	calls   map[string]int
	fail    map[string]error

	logLevel   engine.LogLevel
	logEnabled bool
	cleanedUp  bool
}

var _ engine.Engine = (*FakeEngine)(nil)

// NewFakeEngine returns an empty fake engine. Ids start at 1.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		next:    1,
		objects: make(map[int]*fakeObject),
		deletes: make(map[int]int),
		calls:   make(map[string]int),
		fail:    make(map[string]error),
	}
}

// --- Test controls ---

// SetNextID makes the next created object use id. The engine reuses ids
// after deletion, and tests use this to reproduce that.
func (f *FakeEngine) SetNextID(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = id
}

// FailNext makes the next call to op (a method name such as
// "CreateDataChannel") return err.
func (f *FakeEngine) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// Events returns the bound callback sink.
func (f *FakeEngine) Events() engine.Events {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

// Token returns the user pointer stored for id, or 0.
func (f *FakeEngine) Token(id int) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		return o.token
	}
	return 0
}

// Exists reports whether id is live in the engine.
func (f *FakeEngine) Exists(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[id]
	return ok
}

// Live returns the number of live engine objects.
func (f *FakeEngine) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// CallbackEnabled reports whether kind is registered on id.
func (f *FakeEngine) CallbackEnabled(id int, kind engine.CallbackKind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		return o.callbacks[kind]
	}
	return false
}

// MessageToggles returns how many times the message callback on id changed
// between registered and cleared.
func (f *FakeEngine) MessageToggles(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		return o.messageToggles
	}
	return 0
}

// DeleteCount returns how many successful Delete* calls targeted id.
func (f *FakeEngine) DeleteCount(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes[id]
}

// Calls returns how many times op was called.
func (f *FakeEngine) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Sent returns the messages sent on id.
func (f *FakeEngine) Sent(id int) []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		return append([]FakeMessage(nil), o.sent...)
	}
	return nil
}

// QueueMessage buffers a message for ReceiveMessage on id.
func (f *FakeEngine) QueueMessage(id int, data []byte, binary bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		o.queue = append(o.queue, FakeMessage{Data: append([]byte(nil), data...), Binary: binary})
	}
}

// SetString sets a string property reported by GetString.
func (f *FakeEngine) SetString(id int, prop engine.StringProperty, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		o.strings[prop] = value
	}
}

// SetOpen sets what IsOpen reports for id.
func (f *FakeEngine) SetOpen(id int, open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[id]; ok {
		o.open = open
	}
}

// SetSelectedPair sets the candidate pair reported for pc.
func (f *FakeEngine) SetSelectedPair(pc int, local, remote string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[pc]; ok {
		o.localPair, o.remotePair = local, remote
	}
}

// Config returns the configuration pc was created with.
func (f *FakeEngine) Config(pc int) engine.Configuration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[pc]; ok {
		return o.config
	}
	return engine.Configuration{}
}

// Packetizer returns the packetizer installed on tr, or nil.
func (f *FakeEngine) Packetizer(tr int) (engine.Codec, *engine.PacketizerInit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[tr]; ok {
		return o.codec, o.packetizer
	}
	return 0, nil
}

// Chains returns the RTCP handlers chained on tr, in order.
func (f *FakeEngine) Chains(tr int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[tr]; ok {
		return append([]string(nil), o.chains...)
	}
	return nil
}

// LogSettings returns the last InitLogger arguments.
func (f *FakeEngine) LogSettings() (engine.LogLevel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logLevel, f.logEnabled
}

// CleanedUp reports whether Cleanup was called.
func (f *FakeEngine) CleanedUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleanedUp
}

// --- Emit helpers ---

// emitTarget returns the sink and token for id when kind is registered.
func (f *FakeEngine) emitTarget(id int, kind engine.CallbackKind) (engine.Events, uintptr, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[id]
	if !ok || f.events == nil || !o.callbacks[kind] {
		return nil, 0, false
	}
	return f.events, o.token, true
}

// EmitOpen fires the open callback on id. It reports whether a callback was
// registered.
func (f *FakeEngine) EmitOpen(id int) bool {
	f.SetOpen(id, true)
	ev, token, ok := f.emitTarget(id, engine.CallbackOpen)
	if ok {
		ev.OnOpen(id, token)
	}
	return ok
}

// EmitClosed fires the closed callback on id.
func (f *FakeEngine) EmitClosed(id int) bool {
	f.mu.Lock()
	if o, ok := f.objects[id]; ok {
		o.open, o.closed = false, true
	}
	f.mu.Unlock()
	ev, token, ok := f.emitTarget(id, engine.CallbackClosed)
	if ok {
		ev.OnClosed(id, token)
	}
	return ok
}

// EmitError fires the error callback on id.
func (f *FakeEngine) EmitError(id int, message string) bool {
	ev, token, ok := f.emitTarget(id, engine.CallbackError)
	if ok {
		ev.OnError(id, token, message)
	}
	return ok
}

// EmitMessage delivers a message on id. Without a registered message
// callback the message is buffered for ReceiveMessage, as the engine does.
func (f *FakeEngine) EmitMessage(id int, data []byte, binary bool) bool {
	ev, token, ok := f.emitTarget(id, engine.CallbackMessage)
	if !ok {
		f.QueueMessage(id, data, binary)
		return false
	}
	ev.OnMessage(id, token, append([]byte(nil), data...), binary)
	return true
}

// EmitBufferedAmountLow fires the buffered-amount-low callback on id.
func (f *FakeEngine) EmitBufferedAmountLow(id int) bool {
	ev, token, ok := f.emitTarget(id, engine.CallbackBufferedAmountLow)
	if ok {
		ev.OnBufferedAmountLow(id, token)
	}
	return ok
}

// EmitAvailable fires the available callback on id.
func (f *FakeEngine) EmitAvailable(id int) bool {
	ev, token, ok := f.emitTarget(id, engine.CallbackAvailable)
	if ok {
		ev.OnAvailable(id, token)
	}
	return ok
}

// EmitLocalDescription records and fires a local description on pc.
func (f *FakeEngine) EmitLocalDescription(pc int, sdp, typ string) bool {
	f.SetString(pc, engine.PropLocalDescription, sdp)
	f.SetString(pc, engine.PropLocalDescriptionType, typ)
	ev, token, ok := f.emitTarget(pc, engine.CallbackLocalDescription)
	if ok {
		ev.OnLocalDescription(pc, token, sdp, typ)
	}
	return ok
}

// EmitLocalCandidate fires a local candidate on pc.
func (f *FakeEngine) EmitLocalCandidate(pc int, candidate, mid string) bool {
	ev, token, ok := f.emitTarget(pc, engine.CallbackLocalCandidate)
	if ok {
		ev.OnLocalCandidate(pc, token, candidate, mid)
	}
	return ok
}

// EmitStateChange fires a connection state change on pc.
func (f *FakeEngine) EmitStateChange(pc int, state engine.State) bool {
	ev, token, ok := f.emitTarget(pc, engine.CallbackStateChange)
	if ok {
		ev.OnStateChange(pc, token, state)
	}
	return ok
}

// EmitGatheringStateChange fires a gathering state change on pc.
func (f *FakeEngine) EmitGatheringStateChange(pc int, state engine.GatheringState) bool {
	ev, token, ok := f.emitTarget(pc, engine.CallbackGatheringStateChange)
	if ok {
		ev.OnGatheringStateChange(pc, token, state)
	}
	return ok
}

// EmitSignalingStateChange fires a signaling state change on pc.
func (f *FakeEngine) EmitSignalingStateChange(pc int, state engine.SignalingState) bool {
	ev, token, ok := f.emitTarget(pc, engine.CallbackSignalingStateChange)
	if ok {
		ev.OnSignalingStateChange(pc, token, state)
	}
	return ok
}

// NewRemoteDataChannel creates a data channel on pc as if the remote peer had
// opened it, without firing any callback. The channel inherits the peer
// connection's user pointer. It returns 0 if pc does not exist.
func (f *FakeEngine) NewRemoteDataChannel(pc int, label string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, ok := f.objects[pc]
	if !ok {
		return 0
	}
	dc := f.allocLocked(kindDataChannel, pc)
	o := f.objects[dc]
	o.token = parent.token
	o.strings[engine.PropDataChannelLabel] = label
	o.strings[engine.PropDataChannelProtocol] = ""
	o.open = true
	return dc
}

// NewRemoteTrack creates a receiving track on pc without firing any callback.
func (f *FakeEngine) NewRemoteTrack(pc int, mediaDescription string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, ok := f.objects[pc]
	if !ok {
		return 0
	}
	tr := f.allocLocked(kindTrack, pc)
	o := f.objects[tr]
	o.token = parent.token
	o.strings[engine.PropTrackDescription] = mediaDescription
	o.strings[engine.PropTrackMid] = midOf(mediaDescription)
	o.direction = engine.DirectionRecvOnly
	return tr
}

// EmitDataChannel creates a remote-opened data channel on pc and fires the
// data channel callback. It returns the new id.
func (f *FakeEngine) EmitDataChannel(pc int, label string) int {
	dc := f.NewRemoteDataChannel(pc, label)
	if dc == 0 {
		return 0
	}
	if ev, token, ok := f.emitTarget(pc, engine.CallbackDataChannel); ok {
		ev.OnDataChannel(pc, token, dc)
	}
	return dc
}

// EmitTrack creates a remote track on pc and fires the track callback.
func (f *FakeEngine) EmitTrack(pc int, mediaDescription string) int {
	tr := f.NewRemoteTrack(pc, mediaDescription)
	if tr == 0 {
		return 0
	}
	if ev, token, ok := f.emitTarget(pc, engine.CallbackTrack); ok {
		ev.OnTrack(pc, token, tr)
	}
	return tr
}

// EmitPLI fires the PLI handler on tr.
func (f *FakeEngine) EmitPLI(tr int) bool {
	ev, token, ok := f.emitTarget(tr, engine.CallbackPLI)
	if ok {
		ev.OnPLI(tr, token)
	}
	return ok
}

// EmitREMB fires the REMB handler on tr.
func (f *FakeEngine) EmitREMB(tr int, bitrate uint32) bool {
	ev, token, ok := f.emitTarget(tr, engine.CallbackREMB)
	if ok {
		ev.OnREMB(tr, token, bitrate)
	}
	return ok
}

// EmitLog fires the log callback when logging is enabled at level.
func (f *FakeEngine) EmitLog(level engine.LogLevel, message string) bool {
	f.mu.Lock()
	ev, enabled, threshold := f.events, f.logEnabled, f.logLevel
	f.mu.Unlock()
	if ev == nil || !enabled || level > threshold {
		return false
	}
	ev.OnLog(level, message)
	return true
}

// --- engine.Engine ---

// beginLocked counts a call to op and returns an injected failure, if any.
// f.mu must be held.
func (f *FakeEngine) beginLocked(op string) error {
	f.calls[op]++
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

func (f *FakeEngine) allocLocked(kind objectKind, pc int) int {
	id := f.next
	for {
		if _, taken := f.objects[id]; !taken {
			break
		}
		id++
	}
	f.next = id + 1
	f.objects[id] = &fakeObject{
		kind:      kind,
		pc:        pc,
		callbacks: make(map[engine.CallbackKind]bool),
		strings:   make(map[engine.StringProperty]string),
	}
	return id
}

func (f *FakeEngine) objectLocked(id int, kinds ...objectKind) (*fakeObject, error) {
	o, ok := f.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown id %d", engine.ErrInvalidArgument, id)
	}
	if len(kinds) == 0 {
		return o, nil
	}
	for _, k := range kinds {
		if o.kind == k {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d has the wrong type", engine.ErrInvalidArgument, id)
}

func (f *FakeEngine) Bind(ev engine.Events) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = ev
}

func (f *FakeEngine) InitLogger(level engine.LogLevel, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["InitLogger"]++
	f.logLevel, f.logEnabled = level, enabled
}

func (f *FakeEngine) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Cleanup"]++
	f.cleanedUp = true
}

func (f *FakeEngine) SetUserPointer(id int, token uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetUserPointer"]++
	if o, ok := f.objects[id]; ok {
		o.token = token
	}
}

func (f *FakeEngine) SetCallback(id int, kind engine.CallbackKind, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("SetCallback"); err != nil {
		return err
	}
	o, err := f.objectLocked(id)
	if err != nil {
		return err
	}
	switch kind {
	case engine.CallbackLocalDescription, engine.CallbackLocalCandidate, engine.CallbackStateChange,
		engine.CallbackGatheringStateChange, engine.CallbackSignalingStateChange,
		engine.CallbackDataChannel, engine.CallbackTrack:
		if o.kind != kindPeerConnection {
			return fmt.Errorf("%w: %s on a channel", engine.ErrInvalidArgument, kind)
		}
	case engine.CallbackPLI, engine.CallbackREMB:
		if o.kind != kindTrack {
			return fmt.Errorf("%w: %s on a non-track", engine.ErrInvalidArgument, kind)
		}
		if !enabled {
			// chain handlers cannot be removed
			return nil
		}
		o.chains = append(o.chains, kind.String())
	default:
		if o.kind == kindPeerConnection {
			return fmt.Errorf("%w: %s on a peer connection", engine.ErrInvalidArgument, kind)
		}
	}
	if kind == engine.CallbackMessage && o.callbacks[kind] != enabled {
		o.messageToggles++
	}
	o.callbacks[kind] = enabled
	return nil
}

func (f *FakeEngine) CreatePeerConnection(cfg *engine.Configuration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("CreatePeerConnection"); err != nil {
		return 0, err
	}
	id := f.allocLocked(kindPeerConnection, 0)
	if cfg != nil {
		f.objects[id].config = *cfg
	}
	return id, nil
}

func (f *FakeEngine) ClosePeerConnection(pc int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("ClosePeerConnection"); err != nil {
		return err
	}
	o, err := f.objectLocked(pc, kindPeerConnection)
	if err != nil {
		return err
	}
	o.closed = true
	return nil
}

func (f *FakeEngine) deleteLocked(op string, id int, kind objectKind) error {
	if err := f.beginLocked(op); err != nil {
		return err
	}
	if _, err := f.objectLocked(id, kind); err != nil {
		return err
	}
	delete(f.objects, id)
	f.deletes[id]++
	return nil
}

func (f *FakeEngine) DeletePeerConnection(pc int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteLocked("DeletePeerConnection", pc, kindPeerConnection)
}

func (f *FakeEngine) SetLocalDescription(pc int, typ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("SetLocalDescription"); err != nil {
		return err
	}
	o, err := f.objectLocked(pc, kindPeerConnection)
	if err != nil {
		return err
	}
	if typ == "" {
		typ = "offer"
	}
	o.strings[engine.PropLocalDescriptionType] = typ
	if _, ok := o.strings[engine.PropLocalDescription]; !ok {
		o.strings[engine.PropLocalDescription] = placeholderSDP
	}
	return nil
}

const placeholderSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func (f *FakeEngine) SetRemoteDescription(pc int, sdp, typ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("SetRemoteDescription"); err != nil {
		return err
	}
	o, err := f.objectLocked(pc, kindPeerConnection)
	if err != nil {
		return err
	}
	if sdp == "" {
		return fmt.Errorf("%w: empty description", engine.ErrInvalidArgument)
	}
	o.strings[engine.PropRemoteDescription] = sdp
	o.strings[engine.PropRemoteDescriptionType] = typ
	return nil
}

func (f *FakeEngine) AddRemoteCandidate(pc int, candidate, mid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("AddRemoteCandidate"); err != nil {
		return err
	}
	if _, err := f.objectLocked(pc, kindPeerConnection); err != nil {
		return err
	}
	if candidate == "" {
		return fmt.Errorf("%w: empty candidate", engine.ErrInvalidArgument)
	}
	return nil
}

// copyString mimics the engine's caller-allocated buffer convention.
func copyString(s string, buf []byte) (int, error) {
	need := len(s) + 1
	if buf == nil {
		return need, nil
	}
	if len(buf) < need {
		return 0, engine.ErrBufferTooSmall
	}
	copy(buf, s)
	buf[len(s)] = 0
	return need, nil
}

func (f *FakeEngine) SelectedCandidatePair(pc int, local, remote []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("SelectedCandidatePair"); err != nil {
		return 0, err
	}
	o, err := f.objectLocked(pc, kindPeerConnection)
	if err != nil {
		return 0, err
	}
	if o.localPair == "" {
		return 0, engine.ErrNotAvailable
	}
	l, err := copyString(o.localPair, local)
	if err != nil {
		return 0, err
	}
	r, err := copyString(o.remotePair, remote)
	if err != nil {
		return 0, err
	}
	return max(l, r), nil
}

func (f *FakeEngine) RemoteMaxMessageSize(pc int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.objectLocked(pc, kindPeerConnection); err != nil {
		return 0, err
	}
	return 262144, nil
}

func (f *FakeEngine) GetString(id int, prop engine.StringProperty, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("GetString"); err != nil {
		return 0, err
	}
	o, err := f.objectLocked(id)
	if err != nil {
		return 0, err
	}
	s, ok := o.strings[prop]
	if !ok {
		return 0, engine.ErrNotAvailable
	}
	return copyString(s, buf)
}

func (f *FakeEngine) CreateDataChannel(pc int, label string, init *engine.DataChannelInit) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("CreateDataChannel"); err != nil {
		return 0, err
	}
	if _, err := f.objectLocked(pc, kindPeerConnection); err != nil {
		return 0, err
	}
	id := f.allocLocked(kindDataChannel, pc)
	o := f.objects[id]
	o.strings[engine.PropDataChannelLabel] = label
	o.strings[engine.PropDataChannelProtocol] = ""
	o.stream = 2 * (id - 1)
	if init != nil {
		o.strings[engine.PropDataChannelProtocol] = init.Protocol
		o.reliability = init.Reliability
		if init.ManualStream {
			o.stream = int(init.Stream)
		}
	}
	return id, nil
}

func (f *FakeEngine) DeleteDataChannel(dc int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteLocked("DeleteDataChannel", dc, kindDataChannel)
}

func (f *FakeEngine) DataChannelStream(dc int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.objectLocked(dc, kindDataChannel)
	if err != nil {
		return 0, err
	}
	return o.stream, nil
}

func (f *FakeEngine) DataChannelReliability(dc int) (engine.Reliability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.objectLocked(dc, kindDataChannel)
	if err != nil {
		return engine.Reliability{}, err
	}
	return o.reliability, nil
}

func midOf(mediaDescription string) string {
	for _, line := range strings.Split(mediaDescription, "\n") {
		line = strings.TrimSpace(line)
		if mid, ok := strings.CutPrefix(line, "a=mid:"); ok {
			return mid
		}
	}
	return ""
}

func (f *FakeEngine) AddTrack(pc int, mediaDescription string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("AddTrack"); err != nil {
		return 0, err
	}
	if _, err := f.objectLocked(pc, kindPeerConnection); err != nil {
		return 0, err
	}
	id := f.allocLocked(kindTrack, pc)
	o := f.objects[id]
	o.strings[engine.PropTrackDescription] = mediaDescription
	o.strings[engine.PropTrackMid] = midOf(mediaDescription)
	o.direction = engine.DirectionSendRecv
	return id, nil
}

func (f *FakeEngine) AddTrackEx(pc int, init *engine.TrackInit) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("AddTrackEx"); err != nil {
		return 0, err
	}
	if _, err := f.objectLocked(pc, kindPeerConnection); err != nil {
		return 0, err
	}
	if init == nil || init.Mid == "" {
		return 0, fmt.Errorf("%w: track without mid", engine.ErrInvalidArgument)
	}
	id := f.allocLocked(kindTrack, pc)
	o := f.objects[id]
	o.strings[engine.PropTrackMid] = init.Mid
	o.strings[engine.PropTrackDescription] = fmt.Sprintf("m=%s 9 UDP/TLS/RTP/SAVPF %d\r\na=mid:%s\r\n",
		mediaKind(init.Codec), init.PayloadType, init.Mid)
	o.direction = init.Direction
	o.codec = init.Codec
	return id, nil
}

func mediaKind(c engine.Codec) string {
	if c >= engine.CodecOpus {
		return "audio"
	}
	return "video"
}

func (f *FakeEngine) DeleteTrack(tr int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteLocked("DeleteTrack", tr, kindTrack)
}

func (f *FakeEngine) TrackDirection(tr int) (engine.Direction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.objectLocked(tr, kindTrack)
	if err != nil {
		return engine.DirectionUnknown, err
	}
	return o.direction, nil
}

func (f *FakeEngine) SendMessage(id int, data []byte, binary bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("SendMessage"); err != nil {
		return err
	}
	o, err := f.objectLocked(id, kindDataChannel, kindTrack)
	if err != nil {
		return err
	}
	if o.closed {
		return engine.ErrFailure
	}
	o.sent = append(o.sent, FakeMessage{Data: append([]byte(nil), data...), Binary: binary})
	return nil
}

func (f *FakeEngine) ReceiveMessage(id int, buf []byte) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("ReceiveMessage"); err != nil {
		return 0, false, err
	}
	o, err := f.objectLocked(id, kindDataChannel, kindTrack)
	if err != nil {
		return 0, false, err
	}
	if len(o.queue) == 0 {
		return 0, false, engine.ErrNotAvailable
	}
	m := o.queue[0]
	need := len(m.Data)
	if !m.Binary {
		need++
	}
	if len(buf) < need {
		return need, m.Binary, engine.ErrBufferTooSmall
	}
	o.queue = o.queue[1:]
	n := copy(buf, m.Data)
	if !m.Binary {
		buf[n] = 0
	}
	return n, m.Binary, nil
}

func (f *FakeEngine) IsOpen(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[id]
	return ok && o.open
}

func (f *FakeEngine) IsClosed(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[id]
	return !ok || o.closed
}

func (f *FakeEngine) Close(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginLocked("Close"); err != nil {
		return err
	}
	o, err := f.objectLocked(id, kindDataChannel, kindTrack)
	if err != nil {
		return err
	}
	o.open, o.closed = false, true
	return nil
}

func (f *FakeEngine) MaxMessageSize(id int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.objectLocked(id, kindDataChannel, kindTrack); err != nil {
		return 0, err
	}
	return 65536, nil
}

func (f *FakeEngine) BufferedAmount(id int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.objectLocked(id, kindDataChannel, kindTrack)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range o.sent {
		total += len(m.Data)
	}
	return total, nil
}

func (f *FakeEngine) SetBufferedAmountLowThreshold(id int, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.objectLocked(id, kindDataChannel, kindTrack)
	if err != nil {
		return err
	}
	if amount < 0 {
		return engine.ErrInvalidArgument
	}
	o.threshold = amount
	return nil
}

func (f *FakeEngine) AvailableAmount(id int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.objectLocked(id, kindDataChannel, kindTrack)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range o.queue {
		total += len(m.Data)
	}
	return total, nil
}

func (f *FakeEngine) track(op string, tr int) (*fakeObject, error) {
	if err := f.beginLocked(op); err != nil {
		return nil, err
	}
	return f.objectLocked(tr, kindTrack)
}

func (f *FakeEngine) SetPacketizer(tr int, codec engine.Codec, init *engine.PacketizerInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track("SetPacketizer", tr)
	if err != nil {
		return err
	}
	if init == nil || init.ClockRate == 0 {
		return engine.ErrInvalidArgument
	}
	cp := *init
	o.codec, o.packetizer = codec, &cp
	o.timestamp = init.Timestamp
	return nil
}

func (f *FakeEngine) chain(op string, tr int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track(op, tr)
	if err != nil {
		return err
	}
	o.chains = append(o.chains, name)
	return nil
}

func (f *FakeEngine) ChainRTCPSRReporter(tr int) error {
	return f.chain("ChainRTCPSRReporter", tr, "SRReporter")
}

func (f *FakeEngine) ChainRTCPNackResponder(tr int, maxStoredPackets uint) error {
	return f.chain("ChainRTCPNackResponder", tr, fmt.Sprintf("NackResponder(%d)", maxStoredPackets))
}

func (f *FakeEngine) ChainRTCPReceivingSession(tr int) error {
	return f.chain("ChainRTCPReceivingSession", tr, "ReceivingSession")
}

func (f *FakeEngine) RequestKeyframe(tr int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track("RequestKeyframe", tr)
	if err != nil {
		return err
	}
	o.keyframes++
	return nil
}

func (f *FakeEngine) clockRateLocked(o *fakeObject) (uint32, error) {
	if o.packetizer == nil {
		return 0, engine.ErrFailure
	}
	return o.packetizer.ClockRate, nil
}

func (f *FakeEngine) TransformSecondsToTimestamp(tr int, seconds float64) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track("TransformSecondsToTimestamp", tr)
	if err != nil {
		return 0, err
	}
	rate, err := f.clockRateLocked(o)
	if err != nil {
		return 0, err
	}
	return uint32(seconds * float64(rate)), nil
}

func (f *FakeEngine) TransformTimestampToSeconds(tr int, timestamp uint32) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track("TransformTimestampToSeconds", tr)
	if err != nil {
		return 0, err
	}
	rate, err := f.clockRateLocked(o)
	if err != nil {
		return 0, err
	}
	return float64(timestamp) / float64(rate), nil
}

func (f *FakeEngine) CurrentTrackTimestamp(tr int) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track("CurrentTrackTimestamp", tr)
	if err != nil {
		return 0, err
	}
	if o.packetizer == nil {
		return 0, engine.ErrFailure
	}
	return o.timestamp, nil
}

func (f *FakeEngine) SetTrackRTPTimestamp(tr int, timestamp uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track("SetTrackRTPTimestamp", tr)
	if err != nil {
		return err
	}
	if o.packetizer == nil {
		return engine.ErrFailure
	}
	o.timestamp = timestamp
	return nil
}

func (f *FakeEngine) LastTrackSenderReportTimestamp(tr int) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.track("LastTrackSenderReportTimestamp", tr)
	if err != nil {
		return 0, err
	}
	if o.packetizer == nil {
		return 0, engine.ErrFailure
	}
	return o.timestamp, nil
}

func (f *FakeEngine) SetNeedsToSendRTCPSR(tr int) error {
	return f.chain("SetNeedsToSendRTCPSR", tr, "ForceSR")
}
