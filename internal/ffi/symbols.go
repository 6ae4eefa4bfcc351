package ffi

import (
	"fmt"
	"reflect"

	"github.com/ebitengine/purego"
)

// C signatures from rtc/rtc.h. int maps to int32, pointers to uintptr or *byte.
var (
	rtcInitLogger func(level int32, cb uintptr)
	rtcPreload    func()
	rtcCleanup    func()

	rtcSetUserPointer func(id int32, ptr uintptr)

	rtcCreatePeerConnection    func(config uintptr) int32
	rtcClosePeerConnection     func(pc int32) int32
	rtcDeletePeerConnection    func(pc int32) int32
	rtcSetLocalDescription     func(pc int32, typ *byte) int32
	rtcSetRemoteDescription    func(pc int32, sdp, typ *byte) int32
	rtcAddRemoteCandidate      func(pc int32, cand, mid *byte) int32
	rtcGetRemoteMaxMessageSize func(pc int32) int32

	rtcGetSelectedCandidatePair func(pc int32, local uintptr, localSize int32, remote uintptr, remoteSize int32) int32

	rtcGetLocalDescription      func(pc int32, buffer uintptr, size int32) int32
	rtcGetRemoteDescription     func(pc int32, buffer uintptr, size int32) int32
	rtcGetLocalDescriptionType  func(pc int32, buffer uintptr, size int32) int32
	rtcGetRemoteDescriptionType func(pc int32, buffer uintptr, size int32) int32
	rtcGetLocalAddress          func(pc int32, buffer uintptr, size int32) int32
	rtcGetRemoteAddress         func(pc int32, buffer uintptr, size int32) int32
	rtcGetDataChannelLabel      func(dc int32, buffer uintptr, size int32) int32
	rtcGetDataChannelProtocol   func(dc int32, buffer uintptr, size int32) int32
	rtcGetTrackDescription      func(tr int32, buffer uintptr, size int32) int32
	rtcGetTrackMid              func(tr int32, buffer uintptr, size int32) int32

	rtcSetLocalDescriptionCallback     func(pc int32, cb uintptr) int32
	rtcSetLocalCandidateCallback       func(pc int32, cb uintptr) int32
	rtcSetStateChangeCallback          func(pc int32, cb uintptr) int32
	rtcSetGatheringStateChangeCallback func(pc int32, cb uintptr) int32
	rtcSetSignalingStateChangeCallback func(pc int32, cb uintptr) int32
	rtcSetDataChannelCallback          func(pc int32, cb uintptr) int32
	rtcSetTrackCallback                func(pc int32, cb uintptr) int32
	rtcSetOpenCallback                 func(id int32, cb uintptr) int32
	rtcSetClosedCallback               func(id int32, cb uintptr) int32
	rtcSetErrorCallback                func(id int32, cb uintptr) int32
	rtcSetMessageCallback              func(id int32, cb uintptr) int32
	rtcSetBufferedAmountLowCallback    func(id int32, cb uintptr) int32
	rtcSetAvailableCallback            func(id int32, cb uintptr) int32

	rtcCreateDataChannelEx       func(pc int32, label *byte, init uintptr) int32
	rtcDeleteDataChannel         func(dc int32) int32
	rtcGetDataChannelStream      func(dc int32) int32
	rtcGetDataChannelReliability func(dc int32, reliability uintptr) int32

	rtcAddTrack          func(pc int32, mediaDescriptionSdp *byte) int32
	rtcAddTrackEx        func(pc int32, init uintptr) int32
	rtcDeleteTrack       func(tr int32) int32
	rtcGetTrackDirection func(tr int32, direction uintptr) int32

	rtcSendMessage                   func(id int32, data uintptr, size int32) int32
	rtcReceiveMessage                func(id int32, buffer uintptr, size uintptr) int32
	rtcIsOpen                        func(id int32) bool
	rtcIsClosed                      func(id int32) bool
	rtcClose                         func(id int32) int32
	rtcGetMaxMessageSize             func(id int32) int32
	rtcGetBufferedAmount             func(id int32) int32
	rtcSetBufferedAmountLowThreshold func(id int32, amount int32) int32
	rtcGetAvailableAmount            func(id int32) int32

	// Media (optional, absent when built with NO_MEDIA)
	rtcSetH264Packetizer                 func(tr int32, init uintptr) int32
	rtcSetH265Packetizer                 func(tr int32, init uintptr) int32
	rtcSetAV1Packetizer                  func(tr int32, init uintptr) int32
	rtcSetOpusPacketizer                 func(tr int32, init uintptr) int32
	rtcSetAACPacketizer                  func(tr int32, init uintptr) int32
	rtcChainRtcpReceivingSession         func(tr int32) int32
	rtcChainRtcpSrReporter               func(tr int32) int32
	rtcChainRtcpNackResponder            func(tr int32, maxStoredPacketsCount uint32) int32
	rtcChainPliHandler                   func(tr int32, cb uintptr) int32
	rtcChainRembHandler                  func(tr int32, cb uintptr) int32
	rtcRequestKeyframe                   func(tr int32) int32
	rtcTransformSecondsToTimestamp       func(id int32, seconds float64, timestamp uintptr) int32
	rtcTransformTimestampToSeconds       func(id int32, timestamp uint32, seconds uintptr) int32
	rtcGetCurrentTrackTimestamp          func(id int32, timestamp uintptr) int32
	rtcSetTrackRtpTimestamp              func(id int32, timestamp uint32) int32
	rtcGetLastTrackSenderReportTimestamp func(id int32, timestamp uintptr) int32
	rtcSetNeedsToSendRtcpSr              func(id int32) int32
)

type symbol struct {
	name     string
	fptr     any
	optional bool
}

func symbols() []symbol {
	return []symbol{
		{"rtcInitLogger", &rtcInitLogger, false},
		{"rtcPreload", &rtcPreload, true},
		{"rtcCleanup", &rtcCleanup, false},
		{"rtcSetUserPointer", &rtcSetUserPointer, false},

		{"rtcCreatePeerConnection", &rtcCreatePeerConnection, false},
		{"rtcClosePeerConnection", &rtcClosePeerConnection, false},
		{"rtcDeletePeerConnection", &rtcDeletePeerConnection, false},
		{"rtcSetLocalDescription", &rtcSetLocalDescription, false},
		{"rtcSetRemoteDescription", &rtcSetRemoteDescription, false},
		{"rtcAddRemoteCandidate", &rtcAddRemoteCandidate, false},
		{"rtcGetSelectedCandidatePair", &rtcGetSelectedCandidatePair, false},
		{"rtcGetRemoteMaxMessageSize", &rtcGetRemoteMaxMessageSize, false},

		{"rtcGetLocalDescription", &rtcGetLocalDescription, false},
		{"rtcGetRemoteDescription", &rtcGetRemoteDescription, false},
		{"rtcGetLocalDescriptionType", &rtcGetLocalDescriptionType, false},
		{"rtcGetRemoteDescriptionType", &rtcGetRemoteDescriptionType, false},
		{"rtcGetLocalAddress", &rtcGetLocalAddress, false},
		{"rtcGetRemoteAddress", &rtcGetRemoteAddress, false},
		{"rtcGetDataChannelLabel", &rtcGetDataChannelLabel, false},
		{"rtcGetDataChannelProtocol", &rtcGetDataChannelProtocol, false},
		{"rtcGetTrackDescription", &rtcGetTrackDescription, true},
		{"rtcGetTrackMid", &rtcGetTrackMid, true},

		{"rtcSetLocalDescriptionCallback", &rtcSetLocalDescriptionCallback, false},
		{"rtcSetLocalCandidateCallback", &rtcSetLocalCandidateCallback, false},
		{"rtcSetStateChangeCallback", &rtcSetStateChangeCallback, false},
		{"rtcSetGatheringStateChangeCallback", &rtcSetGatheringStateChangeCallback, false},
		{"rtcSetSignalingStateChangeCallback", &rtcSetSignalingStateChangeCallback, false},
		{"rtcSetDataChannelCallback", &rtcSetDataChannelCallback, false},
		{"rtcSetTrackCallback", &rtcSetTrackCallback, false},
		{"rtcSetOpenCallback", &rtcSetOpenCallback, false},
		{"rtcSetClosedCallback", &rtcSetClosedCallback, false},
		{"rtcSetErrorCallback", &rtcSetErrorCallback, false},
		{"rtcSetMessageCallback", &rtcSetMessageCallback, false},
		{"rtcSetBufferedAmountLowCallback", &rtcSetBufferedAmountLowCallback, false},
		{"rtcSetAvailableCallback", &rtcSetAvailableCallback, false},

		{"rtcCreateDataChannelEx", &rtcCreateDataChannelEx, false},
		{"rtcDeleteDataChannel", &rtcDeleteDataChannel, false},
		{"rtcGetDataChannelStream", &rtcGetDataChannelStream, false},
		{"rtcGetDataChannelReliability", &rtcGetDataChannelReliability, false},

		{"rtcAddTrack", &rtcAddTrack, true},
		{"rtcAddTrackEx", &rtcAddTrackEx, true},
		{"rtcDeleteTrack", &rtcDeleteTrack, true},
		{"rtcGetTrackDirection", &rtcGetTrackDirection, true},

		{"rtcSendMessage", &rtcSendMessage, false},
		{"rtcReceiveMessage", &rtcReceiveMessage, false},
		{"rtcIsOpen", &rtcIsOpen, false},
		{"rtcIsClosed", &rtcIsClosed, false},
		{"rtcClose", &rtcClose, false},
		{"rtcGetMaxMessageSize", &rtcGetMaxMessageSize, false},
		{"rtcGetBufferedAmount", &rtcGetBufferedAmount, false},
		{"rtcSetBufferedAmountLowThreshold", &rtcSetBufferedAmountLowThreshold, false},
		{"rtcGetAvailableAmount", &rtcGetAvailableAmount, false},

		{"rtcSetH264Packetizer", &rtcSetH264Packetizer, true},
		{"rtcSetH265Packetizer", &rtcSetH265Packetizer, true},
		{"rtcSetAV1Packetizer", &rtcSetAV1Packetizer, true},
		{"rtcSetOpusPacketizer", &rtcSetOpusPacketizer, true},
		{"rtcSetAACPacketizer", &rtcSetAACPacketizer, true},
		{"rtcChainRtcpReceivingSession", &rtcChainRtcpReceivingSession, true},
		{"rtcChainRtcpSrReporter", &rtcChainRtcpSrReporter, true},
		{"rtcChainRtcpNackResponder", &rtcChainRtcpNackResponder, true},
		{"rtcChainPliHandler", &rtcChainPliHandler, true},
		{"rtcChainRembHandler", &rtcChainRembHandler, true},
		{"rtcRequestKeyframe", &rtcRequestKeyframe, true},
		{"rtcTransformSecondsToTimestamp", &rtcTransformSecondsToTimestamp, true},
		{"rtcTransformTimestampToSeconds", &rtcTransformTimestampToSeconds, true},
		{"rtcGetCurrentTrackTimestamp", &rtcGetCurrentTrackTimestamp, true},
		{"rtcSetTrackRtpTimestamp", &rtcSetTrackRtpTimestamp, true},
		{"rtcGetLastTrackSenderReportTimestamp", &rtcGetLastTrackSenderReportTimestamp, true},
		{"rtcSetNeedsToSendRtcpSr", &rtcSetNeedsToSendRtcpSr, true},
	}
}

// registerFunctions binds every symbol from the loaded library. Missing
// optional symbols leave their function variable nil.
func registerFunctions() error {
	for _, s := range symbols() {
		addr, err := dlsymLibrary(libHandle, s.name)
		if err != nil || addr == 0 {
			if s.optional {
				continue
			}
			return fmt.Errorf("%w: %s", ErrSymbolNotFound, s.name)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return nil
}

// resetFunctions clears every bound function after the library is unloaded.
func resetFunctions() {
	for _, s := range symbols() {
		v := reflect.ValueOf(s.fptr).Elem()
		v.Set(reflect.Zero(v.Type()))
	}
}
