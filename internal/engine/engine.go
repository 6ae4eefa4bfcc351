// Package engine describes the boundary with the native WebRTC engine.
//
// The engine owns every protocol behavior. It hands out small integer ids for
// peer connections, data channels and tracks, delivers callbacks on its own
// threads, and returns negative error codes that CodeError translates into
// sentinel errors. Implementations live in internal/ffi (libdatachannel) and
// internal/testutil (in-memory fake).
package engine

// Engine is the set of native calls the binding depends on.
//
// Ids are only meaningful to the engine and are reused after deletion. Once a
// Delete* call returns, no new callback for that id is started.
type Engine interface {
	// Bind installs the sink that receives every callback. It must be called
	// before any object is created.
	Bind(ev Events)

	// InitLogger enables or disables native log forwarding to Events.OnLog.
	InitLogger(level LogLevel, enabled bool)

	// Cleanup releases global engine resources.
	Cleanup()

	// SetUserPointer stores the token returned on every callback for id.
	SetUserPointer(id int, token uintptr)

	// SetCallback registers (enabled) or clears (!enabled) the engine
	// callback slot kind on id.
	SetCallback(id int, kind CallbackKind, enabled bool) error

	CreatePeerConnection(cfg *Configuration) (int, error)
	ClosePeerConnection(pc int) error
	DeletePeerConnection(pc int) error
	SetLocalDescription(pc int, typ string) error
	SetRemoteDescription(pc int, sdp, typ string) error
	AddRemoteCandidate(pc int, candidate, mid string) error
	SelectedCandidatePair(pc int, local, remote []byte) (int, error)
	RemoteMaxMessageSize(pc int) (int, error)

	// GetString follows the caller-allocated buffer pattern. A nil buf
	// returns the required size including the terminator; a short buf fails
	// with ErrBufferTooSmall; success returns bytes written including the
	// terminator.
	GetString(id int, prop StringProperty, buf []byte) (int, error)

	CreateDataChannel(pc int, label string, init *DataChannelInit) (int, error)
	DeleteDataChannel(dc int) error
	DataChannelStream(dc int) (int, error)
	DataChannelReliability(dc int) (Reliability, error)

	AddTrack(pc int, mediaDescription string) (int, error)
	AddTrackEx(pc int, init *TrackInit) (int, error)
	DeleteTrack(tr int) error
	TrackDirection(tr int) (Direction, error)

	SendMessage(id int, data []byte, binary bool) error
	// ReceiveMessage copies the next buffered message into buf. It fails
	// with ErrNotAvailable when nothing is buffered and with
	// ErrBufferTooSmall, returning the required size, when buf is short.
	ReceiveMessage(id int, buf []byte) (n int, binary bool, err error)
	IsOpen(id int) bool
	IsClosed(id int) bool
	Close(id int) error
	MaxMessageSize(id int) (int, error)
	BufferedAmount(id int) (int, error)
	SetBufferedAmountLowThreshold(id int, amount int) error
	AvailableAmount(id int) (int, error)

	SetPacketizer(tr int, codec Codec, init *PacketizerInit) error
	ChainRTCPSRReporter(tr int) error
	ChainRTCPNackResponder(tr int, maxStoredPackets uint) error
	ChainRTCPReceivingSession(tr int) error
	RequestKeyframe(tr int) error
	TransformSecondsToTimestamp(tr int, seconds float64) (uint32, error)
	TransformTimestampToSeconds(tr int, timestamp uint32) (float64, error)
	CurrentTrackTimestamp(tr int) (uint32, error)
	SetTrackRTPTimestamp(tr int, timestamp uint32) error
	LastTrackSenderReportTimestamp(tr int) (uint32, error)
	SetNeedsToSendRTCPSR(tr int) error
}

// Events receives engine callbacks. Every method may be called on an engine
// thread concurrently with application calls. Each object callback carries
// the engine id and the token stored with SetUserPointer.
type Events interface {
	OnOpen(id int, token uintptr)
	OnClosed(id int, token uintptr)
	OnError(id int, token uintptr, message string)
	OnMessage(id int, token uintptr, data []byte, binary bool)
	OnBufferedAmountLow(id int, token uintptr)
	OnAvailable(id int, token uintptr)

	OnLocalDescription(pc int, token uintptr, sdp, typ string)
	OnLocalCandidate(pc int, token uintptr, candidate, mid string)
	OnStateChange(pc int, token uintptr, state State)
	OnGatheringStateChange(pc int, token uintptr, state GatheringState)
	OnSignalingStateChange(pc int, token uintptr, state SignalingState)
	OnDataChannel(pc int, token uintptr, dc int)
	OnTrack(pc int, token uintptr, tr int)

	OnPLI(tr int, token uintptr)
	OnREMB(tr int, token uintptr, bitrate uint32)

	OnLog(level LogLevel, message string)
}
