package engine

// State mirrors rtcState.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// GatheringState mirrors rtcGatheringState.
type GatheringState int32

const (
	GatheringNew GatheringState = iota
	GatheringInProgress
	GatheringComplete
)

func (s GatheringState) String() string {
	switch s {
	case GatheringNew:
		return "new"
	case GatheringInProgress:
		return "in-progress"
	case GatheringComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// SignalingState mirrors rtcSignalingState.
type SignalingState int32

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
	SignalingHaveLocalPranswer
	SignalingHaveRemotePranswer
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingHaveRemotePranswer:
		return "have-remote-pranswer"
	default:
		return "unknown"
	}
}

// LogLevel mirrors rtcLogLevel.
type LogLevel int32

const (
	LogNone LogLevel = iota
	LogFatal
	LogError
	LogWarning
	LogInfo
	LogDebug
	LogVerbose
)

func (l LogLevel) String() string {
	switch l {
	case LogNone:
		return "none"
	case LogFatal:
		return "fatal"
	case LogError:
		return "error"
	case LogWarning:
		return "warning"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	case LogVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// CertificateType mirrors rtcCertificateType.
type CertificateType int32

const (
	CertificateDefault CertificateType = iota
	CertificateECDSA
	CertificateRSA
)

// TransportPolicy mirrors rtcTransportPolicy.
type TransportPolicy int32

const (
	TransportPolicyAll TransportPolicy = iota
	TransportPolicyRelay
)

// Direction mirrors rtcDirection.
type Direction int32

const (
	DirectionUnknown Direction = iota
	DirectionSendOnly
	DirectionRecvOnly
	DirectionSendRecv
	DirectionInactive
)

func (d Direction) String() string {
	switch d {
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Codec mirrors rtcCodec.
type Codec int32

const (
	CodecH264 Codec = 0
	CodecVP8  Codec = 1
	CodecVP9  Codec = 2
	CodecH265 Codec = 3
	CodecAV1  Codec = 4
	CodecOpus Codec = 128
	CodecPCMU Codec = 129
	CodecPCMA Codec = 130
	CodecAAC  Codec = 131
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecVP8:
		return "VP8"
	case CodecVP9:
		return "VP9"
	case CodecH265:
		return "H265"
	case CodecAV1:
		return "AV1"
	case CodecOpus:
		return "opus"
	case CodecPCMU:
		return "PCMU"
	case CodecPCMA:
		return "PCMA"
	case CodecAAC:
		return "AAC"
	default:
		return "unknown"
	}
}

// NalUnitSeparator mirrors rtcNalUnitSeparator.
type NalUnitSeparator int32

const (
	NalSeparatorLength NalUnitSeparator = iota
	NalSeparatorLongStartSequence
	NalSeparatorShortStartSequence
	NalSeparatorStartSequence
)

// ObuPacketization mirrors rtcObuPacketization.
type ObuPacketization int32

const (
	ObuPacketizedObu ObuPacketization = iota
	ObuPacketizedTemporalUnit
)

// StringProperty selects a string accessor for GetString.
type StringProperty int

const (
	PropLocalDescription StringProperty = iota
	PropRemoteDescription
	PropLocalDescriptionType
	PropRemoteDescriptionType
	PropLocalAddress
	PropRemoteAddress
	PropDataChannelLabel
	PropDataChannelProtocol
	PropTrackDescription
	PropTrackMid
)

func (p StringProperty) String() string {
	switch p {
	case PropLocalDescription:
		return "local-description"
	case PropRemoteDescription:
		return "remote-description"
	case PropLocalDescriptionType:
		return "local-description-type"
	case PropRemoteDescriptionType:
		return "remote-description-type"
	case PropLocalAddress:
		return "local-address"
	case PropRemoteAddress:
		return "remote-address"
	case PropDataChannelLabel:
		return "label"
	case PropDataChannelProtocol:
		return "protocol"
	case PropTrackDescription:
		return "track-description"
	case PropTrackMid:
		return "mid"
	default:
		return "unknown"
	}
}

// CallbackKind selects an engine callback slot for SetCallback.
type CallbackKind int

const (
	CallbackOpen CallbackKind = iota
	CallbackClosed
	CallbackError
	CallbackMessage
	CallbackBufferedAmountLow
	CallbackAvailable
	CallbackLocalDescription
	CallbackLocalCandidate
	CallbackStateChange
	CallbackGatheringStateChange
	CallbackSignalingStateChange
	CallbackDataChannel
	CallbackTrack
	CallbackPLI
	CallbackREMB
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackOpen:
		return "open"
	case CallbackClosed:
		return "closed"
	case CallbackError:
		return "error"
	case CallbackMessage:
		return "message"
	case CallbackBufferedAmountLow:
		return "buffered-amount-low"
	case CallbackAvailable:
		return "available"
	case CallbackLocalDescription:
		return "local-description"
	case CallbackLocalCandidate:
		return "local-candidate"
	case CallbackStateChange:
		return "state-change"
	case CallbackGatheringStateChange:
		return "gathering-state-change"
	case CallbackSignalingStateChange:
		return "signaling-state-change"
	case CallbackDataChannel:
		return "data-channel"
	case CallbackTrack:
		return "track"
	case CallbackPLI:
		return "pli"
	case CallbackREMB:
		return "remb"
	default:
		return "unknown"
	}
}

// Configuration mirrors rtcConfiguration. ICE server entries use the
// engine's URL form, e.g. "turn:user:pass@host:3478?transport=udp".
type Configuration struct {
	ICEServers             []string
	ProxyServer            string
	BindAddress            string
	CertificateType        CertificateType
	ICETransportPolicy     TransportPolicy
	EnableICETCP           bool
	EnableICEUDPMux        bool
	DisableAutoNegotiation bool
	ForceMediaTransport    bool
	PortRangeBegin         uint16
	PortRangeEnd           uint16
	MTU                    int
	MaxMessageSize         int
}

// Reliability mirrors rtcReliability.
type Reliability struct {
	Unordered         bool
	Unreliable        bool
	MaxPacketLifeTime uint32 // milliseconds
	MaxRetransmits    uint32
}

// DataChannelInit mirrors rtcDataChannelInit.
type DataChannelInit struct {
	Reliability  Reliability
	Protocol     string
	Negotiated   bool
	ManualStream bool
	Stream       uint16
}

// TrackInit mirrors rtcTrackInit.
type TrackInit struct {
	Direction   Direction
	Codec       Codec
	PayloadType int
	SSRC        uint32
	Mid         string
	Name        string
	MsID        string
	TrackID     string
	Profile     string
}

// PacketizerInit mirrors rtcPacketizerInit.
type PacketizerInit struct {
	SSRC             uint32
	CName            string
	PayloadType      uint8
	ClockRate        uint32
	SequenceNumber   uint16
	Timestamp        uint32
	MaxFragmentSize  uint16
	NalSeparator     NalUnitSeparator
	ObuPacketization ObuPacketization
	PlayoutDelayID   uint8
	PlayoutDelayMin  uint16
	PlayoutDelayMax  uint16
}
