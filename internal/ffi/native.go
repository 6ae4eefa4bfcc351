package ffi

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/thesyncim/libgodatachannel/internal/engine"
)

// Native implements engine.Engine over the loaded libdatachannel.
// libdatachannel keeps global state, so every Native shares one library.
type Native struct{}

var _ engine.Engine = (*Native)(nil)

// New loads libdatachannel and returns the native engine.
func New() (*Native, error) {
	if err := LoadLibrary(); err != nil {
		return nil, err
	}
	initCallbacks()
	if rtcPreload != nil {
		rtcPreload()
	}
	return &Native{}, nil
}

func ready() error {
	if !libLoaded.Load() {
		return ErrLibraryNotLoaded
	}
	return nil
}

func call(rc int32) error {
	return engine.CodeError(rc)
}

func result(rc int32) (int, error) {
	return engine.Result(rc)
}

func optional(present bool, name string) error {
	if err := ready(); err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("%w: %s", ErrNotSupported, name)
	}
	return nil
}

// Bind routes every callback to ev.
func (n *Native) Bind(ev engine.Events) {
	bindSink(ev)
}

// InitLogger forwards native log lines at or above level to Events.OnLog.
func (n *Native) InitLogger(level engine.LogLevel, enabled bool) {
	if ready() != nil {
		return
	}
	var cb uintptr
	if enabled {
		initCallbacks()
		cb = logCallbackPtr
	}
	rtcInitLogger(int32(level), cb)
}

// Cleanup releases libdatachannel global resources. It blocks until every
// engine thread has stopped.
func (n *Native) Cleanup() {
	if ready() != nil {
		return
	}
	rtcCleanup()
}

func (n *Native) SetUserPointer(id int, token uintptr) {
	if ready() != nil {
		return
	}
	rtcSetUserPointer(int32(id), token)
}

// SetCallback installs or clears the trampoline for kind on id. PLI and REMB
// handlers are media chain elements and cannot be removed once chained.
func (n *Native) SetCallback(id int, kind engine.CallbackKind, enabled bool) error {
	if err := ready(); err != nil {
		return err
	}
	var cb uintptr
	if enabled {
		cb = callbackPtr(kind)
	}

	var fn func(int32, uintptr) int32
	switch kind {
	case engine.CallbackOpen:
		fn = rtcSetOpenCallback
	case engine.CallbackClosed:
		fn = rtcSetClosedCallback
	case engine.CallbackError:
		fn = rtcSetErrorCallback
	case engine.CallbackMessage:
		fn = rtcSetMessageCallback
	case engine.CallbackBufferedAmountLow:
		fn = rtcSetBufferedAmountLowCallback
	case engine.CallbackAvailable:
		fn = rtcSetAvailableCallback
	case engine.CallbackLocalDescription:
		fn = rtcSetLocalDescriptionCallback
	case engine.CallbackLocalCandidate:
		fn = rtcSetLocalCandidateCallback
	case engine.CallbackStateChange:
		fn = rtcSetStateChangeCallback
	case engine.CallbackGatheringStateChange:
		fn = rtcSetGatheringStateChangeCallback
	case engine.CallbackSignalingStateChange:
		fn = rtcSetSignalingStateChangeCallback
	case engine.CallbackDataChannel:
		fn = rtcSetDataChannelCallback
	case engine.CallbackTrack:
		fn = rtcSetTrackCallback
	case engine.CallbackPLI, engine.CallbackREMB:
		if !enabled {
			return nil
		}
		fn = rtcChainPliHandler
		if kind == engine.CallbackREMB {
			fn = rtcChainRembHandler
		}
		if fn == nil {
			return fmt.Errorf("%w: %s handler", ErrNotSupported, kind)
		}
	default:
		return fmt.Errorf("%w: callback kind %d", engine.ErrInvalidArgument, kind)
	}
	return call(fn(int32(id), cb))
}

func (n *Native) CreatePeerConnection(cfg *engine.Configuration) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	var arena cArena
	c := buildConfiguration(&arena, cfg)
	rc := rtcCreatePeerConnection(uintptr(unsafe.Pointer(c)))
	runtime.KeepAlive(c)
	runtime.KeepAlive(&arena)
	return result(rc)
}

func (n *Native) ClosePeerConnection(pc int) error {
	if err := ready(); err != nil {
		return err
	}
	return call(rtcClosePeerConnection(int32(pc)))
}

func (n *Native) DeletePeerConnection(pc int) error {
	if err := ready(); err != nil {
		return err
	}
	return call(rtcDeletePeerConnection(int32(pc)))
}

func (n *Native) SetLocalDescription(pc int, typ string) error {
	if err := ready(); err != nil {
		return err
	}
	// NULL lets the engine pick offer or answer from the signaling state.
	var ctyp []byte
	var ptyp *byte
	if typ != "" {
		ctyp = CString(typ)
		ptyp = &ctyp[0]
	}
	rc := rtcSetLocalDescription(int32(pc), ptyp)
	runtime.KeepAlive(ctyp)
	return call(rc)
}

func (n *Native) SetRemoteDescription(pc int, sdp, typ string) error {
	if err := ready(); err != nil {
		return err
	}
	csdp, ctyp := CString(sdp), CString(typ)
	rc := rtcSetRemoteDescription(int32(pc), &csdp[0], &ctyp[0])
	runtime.KeepAlive(csdp)
	runtime.KeepAlive(ctyp)
	return call(rc)
}

func (n *Native) AddRemoteCandidate(pc int, candidate, mid string) error {
	if err := ready(); err != nil {
		return err
	}
	ccand := CString(candidate)
	var cmid []byte
	var pmid *byte
	if mid != "" {
		cmid = CString(mid)
		pmid = &cmid[0]
	}
	rc := rtcAddRemoteCandidate(int32(pc), &ccand[0], pmid)
	runtime.KeepAlive(ccand)
	runtime.KeepAlive(cmid)
	return call(rc)
}

func (n *Native) SelectedCandidatePair(pc int, local, remote []byte) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	rc := rtcGetSelectedCandidatePair(int32(pc),
		ByteSlicePtr(local), int32(len(local)),
		ByteSlicePtr(remote), int32(len(remote)))
	runtime.KeepAlive(local)
	runtime.KeepAlive(remote)
	return result(rc)
}

func (n *Native) RemoteMaxMessageSize(pc int) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	return result(rtcGetRemoteMaxMessageSize(int32(pc)))
}

func stringGetter(prop engine.StringProperty) (func(int32, uintptr, int32) int32, error) {
	var fn func(int32, uintptr, int32) int32
	switch prop {
	case engine.PropLocalDescription:
		fn = rtcGetLocalDescription
	case engine.PropRemoteDescription:
		fn = rtcGetRemoteDescription
	case engine.PropLocalDescriptionType:
		fn = rtcGetLocalDescriptionType
	case engine.PropRemoteDescriptionType:
		fn = rtcGetRemoteDescriptionType
	case engine.PropLocalAddress:
		fn = rtcGetLocalAddress
	case engine.PropRemoteAddress:
		fn = rtcGetRemoteAddress
	case engine.PropDataChannelLabel:
		fn = rtcGetDataChannelLabel
	case engine.PropDataChannelProtocol:
		fn = rtcGetDataChannelProtocol
	case engine.PropTrackDescription:
		fn = rtcGetTrackDescription
	case engine.PropTrackMid:
		fn = rtcGetTrackMid
	default:
		return nil, fmt.Errorf("%w: string property %d", engine.ErrInvalidArgument, prop)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotSupported, prop)
	}
	return fn, nil
}

func (n *Native) GetString(id int, prop engine.StringProperty, buf []byte) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	fn, err := stringGetter(prop)
	if err != nil {
		return 0, err
	}
	rc := fn(int32(id), ByteSlicePtr(buf), int32(len(buf)))
	runtime.KeepAlive(buf)
	return result(rc)
}

func (n *Native) CreateDataChannel(pc int, label string, init *engine.DataChannelInit) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	var arena cArena
	c := buildDataChannelInit(&arena, init)
	clabel := CString(label)
	rc := rtcCreateDataChannelEx(int32(pc), &clabel[0], uintptr(unsafe.Pointer(c)))
	runtime.KeepAlive(clabel)
	runtime.KeepAlive(c)
	runtime.KeepAlive(&arena)
	return result(rc)
}

func (n *Native) DeleteDataChannel(dc int) error {
	if err := ready(); err != nil {
		return err
	}
	return call(rtcDeleteDataChannel(int32(dc)))
}

func (n *Native) DataChannelStream(dc int) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	return result(rtcGetDataChannelStream(int32(dc)))
}

func (n *Native) DataChannelReliability(dc int) (engine.Reliability, error) {
	if err := ready(); err != nil {
		return engine.Reliability{}, err
	}
	var c cReliability
	if err := call(rtcGetDataChannelReliability(int32(dc), uintptr(unsafe.Pointer(&c)))); err != nil {
		return engine.Reliability{}, err
	}
	return engine.Reliability{
		Unordered:         c.Unordered,
		Unreliable:        c.Unreliable,
		MaxPacketLifeTime: c.MaxPacketLifeTime,
		MaxRetransmits:    c.MaxRetransmits,
	}, nil
}

func (n *Native) AddTrack(pc int, mediaDescription string) (int, error) {
	if err := optional(rtcAddTrack != nil, "rtcAddTrack"); err != nil {
		return 0, err
	}
	csdp := CString(mediaDescription)
	rc := rtcAddTrack(int32(pc), &csdp[0])
	runtime.KeepAlive(csdp)
	return result(rc)
}

func (n *Native) AddTrackEx(pc int, init *engine.TrackInit) (int, error) {
	if err := optional(rtcAddTrackEx != nil, "rtcAddTrackEx"); err != nil {
		return 0, err
	}
	if init == nil {
		return 0, engine.ErrInvalidArgument
	}
	var arena cArena
	c := buildTrackInit(&arena, init)
	rc := rtcAddTrackEx(int32(pc), uintptr(unsafe.Pointer(c)))
	runtime.KeepAlive(c)
	runtime.KeepAlive(&arena)
	return result(rc)
}

func (n *Native) DeleteTrack(tr int) error {
	if err := optional(rtcDeleteTrack != nil, "rtcDeleteTrack"); err != nil {
		return err
	}
	return call(rtcDeleteTrack(int32(tr)))
}

func (n *Native) TrackDirection(tr int) (engine.Direction, error) {
	if err := optional(rtcGetTrackDirection != nil, "rtcGetTrackDirection"); err != nil {
		return engine.DirectionUnknown, err
	}
	var dir int32
	if err := call(rtcGetTrackDirection(int32(tr), uintptr(unsafe.Pointer(&dir)))); err != nil {
		return engine.DirectionUnknown, err
	}
	return engine.Direction(dir), nil
}

// SendMessage sends binary data as-is. Text is sent NUL-terminated with a
// negative size, which is how the engine marks string messages.
func (n *Native) SendMessage(id int, data []byte, binary bool) error {
	if err := ready(); err != nil {
		return err
	}
	if !binary {
		text := CString(string(data))
		rc := rtcSendMessage(int32(id), ByteSlicePtr(text), -1)
		runtime.KeepAlive(text)
		return call(rc)
	}
	rc := rtcSendMessage(int32(id), ByteSlicePtr(data), int32(len(data)))
	runtime.KeepAlive(data)
	return call(rc)
}

func (n *Native) ReceiveMessage(id int, buf []byte) (int, bool, error) {
	if err := ready(); err != nil {
		return 0, false, err
	}
	// A NULL buffer makes the engine report success and drop the message,
	// so an empty buf is probed through a one-byte scratch with size 0.
	var scratch [1]byte
	ptr := ByteSlicePtr(buf)
	if ptr == 0 {
		ptr = uintptr(unsafe.Pointer(&scratch[0]))
	}
	size := int32(len(buf))
	rc := rtcReceiveMessage(int32(id), ptr, uintptr(unsafe.Pointer(&size)))
	runtime.KeepAlive(buf)
	runtime.KeepAlive(&scratch)

	binary := size >= 0
	if !binary {
		size = -size
	}
	if err := call(rc); err != nil {
		// size is the required length on ErrBufferTooSmall
		return int(size), binary, err
	}
	if !binary && size > 0 {
		// exclude the terminator
		size--
	}
	return int(size), binary, nil
}

func (n *Native) IsOpen(id int) bool {
	if ready() != nil {
		return false
	}
	return rtcIsOpen(int32(id))
}

func (n *Native) IsClosed(id int) bool {
	if ready() != nil {
		return true
	}
	return rtcIsClosed(int32(id))
}

func (n *Native) Close(id int) error {
	if err := ready(); err != nil {
		return err
	}
	return call(rtcClose(int32(id)))
}

func (n *Native) MaxMessageSize(id int) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	return result(rtcGetMaxMessageSize(int32(id)))
}

func (n *Native) BufferedAmount(id int) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	return result(rtcGetBufferedAmount(int32(id)))
}

func (n *Native) SetBufferedAmountLowThreshold(id int, amount int) error {
	if err := ready(); err != nil {
		return err
	}
	return call(rtcSetBufferedAmountLowThreshold(int32(id), int32(amount)))
}

func (n *Native) AvailableAmount(id int) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	return result(rtcGetAvailableAmount(int32(id)))
}

func (n *Native) SetPacketizer(tr int, codec engine.Codec, init *engine.PacketizerInit) error {
	if init == nil {
		return engine.ErrInvalidArgument
	}
	var fn func(int32, uintptr) int32
	var name string
	switch codec {
	case engine.CodecH264:
		fn, name = rtcSetH264Packetizer, "rtcSetH264Packetizer"
	case engine.CodecH265:
		fn, name = rtcSetH265Packetizer, "rtcSetH265Packetizer"
	case engine.CodecAV1:
		fn, name = rtcSetAV1Packetizer, "rtcSetAV1Packetizer"
	case engine.CodecOpus:
		fn, name = rtcSetOpusPacketizer, "rtcSetOpusPacketizer"
	case engine.CodecAAC:
		fn, name = rtcSetAACPacketizer, "rtcSetAACPacketizer"
	default:
		return fmt.Errorf("%w: no packetizer for %s", engine.ErrInvalidArgument, codec)
	}
	if err := optional(fn != nil, name); err != nil {
		return err
	}
	var arena cArena
	c := buildPacketizerInit(&arena, init)
	rc := fn(int32(tr), uintptr(unsafe.Pointer(c)))
	runtime.KeepAlive(c)
	runtime.KeepAlive(&arena)
	return call(rc)
}

func (n *Native) ChainRTCPSRReporter(tr int) error {
	if err := optional(rtcChainRtcpSrReporter != nil, "rtcChainRtcpSrReporter"); err != nil {
		return err
	}
	return call(rtcChainRtcpSrReporter(int32(tr)))
}

func (n *Native) ChainRTCPNackResponder(tr int, maxStoredPackets uint) error {
	if err := optional(rtcChainRtcpNackResponder != nil, "rtcChainRtcpNackResponder"); err != nil {
		return err
	}
	return call(rtcChainRtcpNackResponder(int32(tr), uint32(maxStoredPackets)))
}

func (n *Native) ChainRTCPReceivingSession(tr int) error {
	if err := optional(rtcChainRtcpReceivingSession != nil, "rtcChainRtcpReceivingSession"); err != nil {
		return err
	}
	return call(rtcChainRtcpReceivingSession(int32(tr)))
}

func (n *Native) RequestKeyframe(tr int) error {
	if err := optional(rtcRequestKeyframe != nil, "rtcRequestKeyframe"); err != nil {
		return err
	}
	return call(rtcRequestKeyframe(int32(tr)))
}

func (n *Native) TransformSecondsToTimestamp(tr int, seconds float64) (uint32, error) {
	if err := optional(rtcTransformSecondsToTimestamp != nil, "rtcTransformSecondsToTimestamp"); err != nil {
		return 0, err
	}
	var ts uint32
	err := call(rtcTransformSecondsToTimestamp(int32(tr), seconds, uintptr(unsafe.Pointer(&ts))))
	return ts, err
}

func (n *Native) TransformTimestampToSeconds(tr int, timestamp uint32) (float64, error) {
	if err := optional(rtcTransformTimestampToSeconds != nil, "rtcTransformTimestampToSeconds"); err != nil {
		return 0, err
	}
	var seconds float64
	err := call(rtcTransformTimestampToSeconds(int32(tr), timestamp, uintptr(unsafe.Pointer(&seconds))))
	return seconds, err
}

func (n *Native) CurrentTrackTimestamp(tr int) (uint32, error) {
	if err := optional(rtcGetCurrentTrackTimestamp != nil, "rtcGetCurrentTrackTimestamp"); err != nil {
		return 0, err
	}
	var ts uint32
	err := call(rtcGetCurrentTrackTimestamp(int32(tr), uintptr(unsafe.Pointer(&ts))))
	return ts, err
}

func (n *Native) SetTrackRTPTimestamp(tr int, timestamp uint32) error {
	if err := optional(rtcSetTrackRtpTimestamp != nil, "rtcSetTrackRtpTimestamp"); err != nil {
		return err
	}
	return call(rtcSetTrackRtpTimestamp(int32(tr), timestamp))
}

func (n *Native) LastTrackSenderReportTimestamp(tr int) (uint32, error) {
	if err := optional(rtcGetLastTrackSenderReportTimestamp != nil, "rtcGetLastTrackSenderReportTimestamp"); err != nil {
		return 0, err
	}
	var ts uint32
	err := call(rtcGetLastTrackSenderReportTimestamp(int32(tr), uintptr(unsafe.Pointer(&ts))))
	return ts, err
}

func (n *Native) SetNeedsToSendRTCPSR(tr int) error {
	if err := optional(rtcSetNeedsToSendRtcpSr != nil, "rtcSetNeedsToSendRtcpSr"); err != nil {
		return err
	}
	return call(rtcSetNeedsToSendRtcpSr(int32(tr)))
}
