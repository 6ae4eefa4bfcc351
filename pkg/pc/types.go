package pc

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/pion/stun/v3"

	"github.com/thesyncim/libgodatachannel/internal/engine"
)

// PeerConnectionState represents the overall connection state.
type PeerConnectionState = engine.State

const (
	PeerConnectionStateNew          = engine.StateNew
	PeerConnectionStateConnecting   = engine.StateConnecting
	PeerConnectionStateConnected    = engine.StateConnected
	PeerConnectionStateDisconnected = engine.StateDisconnected
	PeerConnectionStateFailed       = engine.StateFailed
	PeerConnectionStateClosed       = engine.StateClosed
)

// ICEGatheringState represents the ICE gathering state.
type ICEGatheringState = engine.GatheringState

const (
	ICEGatheringStateNew        = engine.GatheringNew
	ICEGatheringStateInProgress = engine.GatheringInProgress
	ICEGatheringStateComplete   = engine.GatheringComplete
)

// SignalingState represents the signaling state.
type SignalingState = engine.SignalingState

const (
	SignalingStateStable             = engine.SignalingStable
	SignalingStateHaveLocalOffer     = engine.SignalingHaveLocalOffer
	SignalingStateHaveRemoteOffer    = engine.SignalingHaveRemoteOffer
	SignalingStateHaveLocalPranswer  = engine.SignalingHaveLocalPranswer
	SignalingStateHaveRemotePranswer = engine.SignalingHaveRemotePranswer
)

// Direction is a media direction.
type Direction = engine.Direction

const (
	DirectionUnknown  = engine.DirectionUnknown
	DirectionSendOnly = engine.DirectionSendOnly
	DirectionRecvOnly = engine.DirectionRecvOnly
	DirectionSendRecv = engine.DirectionSendRecv
	DirectionInactive = engine.DirectionInactive
)

// Codec identifies a media codec.
type Codec = engine.Codec

const (
	CodecH264 = engine.CodecH264
	CodecVP8  = engine.CodecVP8
	CodecVP9  = engine.CodecVP9
	CodecH265 = engine.CodecH265
	CodecAV1  = engine.CodecAV1
	CodecOpus = engine.CodecOpus
	CodecPCMU = engine.CodecPCMU
	CodecPCMA = engine.CodecPCMA
	CodecAAC  = engine.CodecAAC
)

// LogLevel selects native log verbosity.
type LogLevel = engine.LogLevel

const (
	LogNone    = engine.LogNone
	LogFatal   = engine.LogFatal
	LogError   = engine.LogError
	LogWarning = engine.LogWarning
	LogInfo    = engine.LogInfo
	LogDebug   = engine.LogDebug
	LogVerbose = engine.LogVerbose
)

// Option structs passed through to the engine unchanged.
type (
	Reliability     = engine.Reliability
	DataChannelInit = engine.DataChannelInit
	TrackInit       = engine.TrackInit
	PacketizerInit  = engine.PacketizerInit
	CertificateType = engine.CertificateType
	TransportPolicy = engine.TransportPolicy
)

const (
	CertificateDefault = engine.CertificateDefault
	CertificateECDSA   = engine.CertificateECDSA
	CertificateRSA     = engine.CertificateRSA

	TransportPolicyAll   = engine.TransportPolicyAll
	TransportPolicyRelay = engine.TransportPolicyRelay
)

// SDPType represents the type of session description.
type SDPType int

const (
	SDPTypeUnknown SDPType = iota
	SDPTypeOffer
	SDPTypePranswer
	SDPTypeAnswer
	SDPTypeRollback
)

func (t SDPType) String() string {
	switch t {
	case SDPTypeOffer:
		return "offer"
	case SDPTypePranswer:
		return "pranswer"
	case SDPTypeAnswer:
		return "answer"
	case SDPTypeRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// NewSDPType parses the engine's description type string.
func NewSDPType(s string) SDPType {
	switch s {
	case "offer":
		return SDPTypeOffer
	case "pranswer":
		return SDPTypePranswer
	case "answer":
		return SDPTypeAnswer
	case "rollback":
		return SDPTypeRollback
	default:
		return SDPTypeUnknown
	}
}

// SessionDescription represents an SDP session description.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidate represents an ICE candidate.
type ICECandidate struct {
	Candidate string
	SDPMid    string
}

// ICEServer represents an ICE server configuration.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// engineURLs converts s to the URL form the engine expects:
// [scheme:][username:password@]host[:port][?transport=udp|tcp].
func (s ICEServer) engineURLs() ([]string, error) {
	out := make([]string, 0, len(s.URLs))
	for _, raw := range s.URLs {
		u, err := stun.ParseURI(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: ice server %q: %v", ErrInvalidArgument, raw, err)
		}
		hostPort := net.JoinHostPort(u.Host, strconv.Itoa(u.Port))

		switch u.Scheme {
		case stun.SchemeTypeSTUN, stun.SchemeTypeSTUNS:
			out = append(out, u.Scheme.String()+":"+hostPort)
		default:
			v := u.Scheme.String() + ":"
			if s.Username != "" {
				v += url.UserPassword(s.Username, s.Credential).String() + "@"
			}
			proto := u.Proto
			if proto != stun.ProtoTypeUDP && proto != stun.ProtoTypeTCP {
				proto = stun.ProtoTypeUDP
				if u.Scheme == stun.SchemeTypeTURNS {
					proto = stun.ProtoTypeTCP
				}
			}
			v += hostPort + "?transport=" + proto.String()
			out = append(out, v)
		}
	}
	return out, nil
}

// Configuration for PeerConnection.
type Configuration struct {
	ICEServers         []ICEServer
	ProxyServer        string
	BindAddress        string
	CertificateType    CertificateType
	ICETransportPolicy TransportPolicy

	EnableICETCP           bool
	EnableICEUDPMux        bool
	DisableAutoNegotiation bool
	ForceMediaTransport    bool

	// Zero means the engine default.
	PortRangeBegin uint16
	PortRangeEnd   uint16
	MTU            int
	MaxMessageSize int
}

// DefaultConfiguration returns a configuration with a public STUN server.
func DefaultConfiguration() Configuration {
	return Configuration{
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func (c *Configuration) toEngine() (*engine.Configuration, error) {
	ec := &engine.Configuration{
		ProxyServer:            c.ProxyServer,
		BindAddress:            c.BindAddress,
		CertificateType:        c.CertificateType,
		ICETransportPolicy:     c.ICETransportPolicy,
		EnableICETCP:           c.EnableICETCP,
		EnableICEUDPMux:        c.EnableICEUDPMux,
		DisableAutoNegotiation: c.DisableAutoNegotiation,
		ForceMediaTransport:    c.ForceMediaTransport,
		PortRangeBegin:         c.PortRangeBegin,
		PortRangeEnd:           c.PortRangeEnd,
		MTU:                    c.MTU,
		MaxMessageSize:         c.MaxMessageSize,
	}
	if c.PortRangeEnd != 0 && c.PortRangeBegin > c.PortRangeEnd {
		return nil, fmt.Errorf("%w: port range %d-%d", ErrInvalidArgument, c.PortRangeBegin, c.PortRangeEnd)
	}
	for _, s := range c.ICEServers {
		urls, err := s.engineURLs()
		if err != nil {
			return nil, err
		}
		ec.ICEServers = append(ec.ICEServers, urls...)
	}
	return ec, nil
}

// CandidatePair is the selected local/remote candidate pair.
type CandidatePair struct {
	Local  string
	Remote string
}
