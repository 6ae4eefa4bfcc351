package ffi

import (
	"unsafe"

	"github.com/thesyncim/libgodatachannel/internal/engine"
)

// cConfiguration matches rtcConfiguration in rtc.h.
type cConfiguration struct {
	ICEServers             uintptr // const char **
	ICEServersCount        int32
	_                      [4]byte // padding
	ProxyServer            uintptr // C string
	BindAddress            uintptr // C string
	CertificateType        int32
	ICETransportPolicy     int32
	EnableICETCP           bool
	EnableICEUDPMux        bool
	DisableAutoNegotiation bool
	ForceMediaTransport    bool
	PortRangeBegin         uint16
	PortRangeEnd           uint16
	MTU                    int32
	MaxMessageSize         int32
}

// cReliability matches rtcReliability in rtc.h.
type cReliability struct {
	Unordered         bool
	Unreliable        bool
	_                 [2]byte // padding
	MaxPacketLifeTime uint32
	MaxRetransmits    uint32
}

// cDataChannelInit matches rtcDataChannelInit in rtc.h.
type cDataChannelInit struct {
	Reliability  cReliability
	_            [4]byte // padding
	Protocol     uintptr // C string
	Negotiated   bool
	ManualStream bool
	Stream       uint16
	_            [4]byte // padding
}

// cTrackInit matches rtcTrackInit in rtc.h.
type cTrackInit struct {
	Direction   int32
	Codec       int32
	PayloadType int32
	SSRC        uint32
	Mid         uintptr // C string
	Name        uintptr // C string
	MsID        uintptr // C string
	TrackID     uintptr // C string
	Profile     uintptr // C string
}

// cPacketizerInit matches rtcPacketizerInit in rtc.h.
type cPacketizerInit struct {
	SSRC             uint32
	_                [4]byte // padding
	CName            uintptr // C string
	PayloadType      uint8
	_                [3]byte // padding
	ClockRate        uint32
	SequenceNumber   uint16
	_                [2]byte // padding
	Timestamp        uint32
	MaxFragmentSize  uint16
	_                [2]byte // padding
	NalSeparator     int32
	ObuPacketization int32
	PlayoutDelayID   uint8
	_                [1]byte // padding
	PlayoutDelayMin  uint16
	PlayoutDelayMax  uint16
	_                [6]byte // padding
}

// cArena keeps Go-allocated C strings and arrays alive for the duration of a
// native call. Call runtime.KeepAlive on the arena after the call returns.
type cArena struct {
	bufs [][]byte
	ptrs [][]uintptr
}

// str returns a pointer to a NUL-terminated copy of s.
func (a *cArena) str(s string) uintptr {
	b := CString(s)
	a.bufs = append(a.bufs, b)
	return uintptr(unsafe.Pointer(&b[0]))
}

// optStr is str, except that an empty string becomes NULL.
func (a *cArena) optStr(s string) uintptr {
	if s == "" {
		return 0
	}
	return a.str(s)
}

// strArray returns a const char ** for ss, or 0 when ss is empty.
func (a *cArena) strArray(ss []string) uintptr {
	if len(ss) == 0 {
		return 0
	}
	arr := make([]uintptr, len(ss))
	for i, s := range ss {
		arr[i] = a.str(s)
	}
	a.ptrs = append(a.ptrs, arr)
	return uintptr(unsafe.Pointer(&arr[0]))
}

func buildConfiguration(a *cArena, cfg *engine.Configuration) *cConfiguration {
	c := &cConfiguration{}
	if cfg == nil {
		return c
	}
	c.ICEServers = a.strArray(cfg.ICEServers)
	c.ICEServersCount = int32(len(cfg.ICEServers))
	c.ProxyServer = a.optStr(cfg.ProxyServer)
	c.BindAddress = a.optStr(cfg.BindAddress)
	c.CertificateType = int32(cfg.CertificateType)
	c.ICETransportPolicy = int32(cfg.ICETransportPolicy)
	c.EnableICETCP = cfg.EnableICETCP
	c.EnableICEUDPMux = cfg.EnableICEUDPMux
	c.DisableAutoNegotiation = cfg.DisableAutoNegotiation
	c.ForceMediaTransport = cfg.ForceMediaTransport
	c.PortRangeBegin = cfg.PortRangeBegin
	c.PortRangeEnd = cfg.PortRangeEnd
	c.MTU = int32(cfg.MTU)
	c.MaxMessageSize = int32(cfg.MaxMessageSize)
	return c
}

func buildDataChannelInit(a *cArena, init *engine.DataChannelInit) *cDataChannelInit {
	c := &cDataChannelInit{}
	if init == nil {
		return c
	}
	c.Reliability = cReliability{
		Unordered:         init.Reliability.Unordered,
		Unreliable:        init.Reliability.Unreliable,
		MaxPacketLifeTime: init.Reliability.MaxPacketLifeTime,
		MaxRetransmits:    init.Reliability.MaxRetransmits,
	}
	c.Protocol = a.optStr(init.Protocol)
	c.Negotiated = init.Negotiated
	c.ManualStream = init.ManualStream
	c.Stream = init.Stream
	return c
}

func buildTrackInit(a *cArena, init *engine.TrackInit) *cTrackInit {
	return &cTrackInit{
		Direction:   int32(init.Direction),
		Codec:       int32(init.Codec),
		PayloadType: int32(init.PayloadType),
		SSRC:        init.SSRC,
		Mid:         a.optStr(init.Mid),
		Name:        a.optStr(init.Name),
		MsID:        a.optStr(init.MsID),
		TrackID:     a.optStr(init.TrackID),
		Profile:     a.optStr(init.Profile),
	}
}

func buildPacketizerInit(a *cArena, init *engine.PacketizerInit) *cPacketizerInit {
	return &cPacketizerInit{
		SSRC:             init.SSRC,
		CName:            a.optStr(init.CName),
		PayloadType:      init.PayloadType,
		ClockRate:        init.ClockRate,
		SequenceNumber:   init.SequenceNumber,
		Timestamp:        init.Timestamp,
		MaxFragmentSize:  init.MaxFragmentSize,
		NalSeparator:     int32(init.NalSeparator),
		ObuPacketization: int32(init.ObuPacketization),
		PlayoutDelayID:   init.PlayoutDelayID,
		PlayoutDelayMin:  init.PlayoutDelayMin,
		PlayoutDelayMax:  init.PlayoutDelayMax,
	}
}

// ByteSlicePtr returns a uintptr to the first element of a byte slice.
// Returns 0 if the slice is empty.
func ByteSlicePtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// CString allocates a null-terminated C string from a Go string.
// The caller is responsible for keeping the returned byte slice alive
// for as long as the C code needs it.
func CString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	b[len(s)] = 0
	return b
}

// CStringPtr returns a pointer to a null-terminated C string.
func CStringPtr(s string) *byte {
	b := CString(s)
	return &b[0]
}

// GoString copies a NUL-terminated C string into a Go string.
//
//go:nocheckptr
func GoString(p uintptr) string {
	if p == 0 {
		return ""
	}
	ptr := (*byte)(unsafe.Pointer(p))
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(ptr), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(ptr, n))
}

// GoBytes copies size bytes of C memory into a Go slice.
//
//go:nocheckptr
func GoBytes(p uintptr, size int) []byte {
	if p == 0 || size <= 0 {
		return []byte{}
	}
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(p)), size))
	return data
}

// CStringToGo converts a NUL-terminated buffer to a Go string.
func CStringToGo(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
