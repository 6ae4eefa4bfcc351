package pc

import (
	"github.com/rs/zerolog"

	"github.com/thesyncim/libgodatachannel/internal/engine"
	"github.com/thesyncim/libgodatachannel/internal/handle"
)

// dispatcher routes engine callbacks to wrapper objects. It runs on engine
// threads and never holds a lock that an application call may hold while
// calling into the engine.
type dispatcher struct {
	api *API
}

var _ engine.Events = dispatcher{}

func (d dispatcher) resolve(kind engine.CallbackKind, id int, token uintptr) any {
	obj, err := d.api.registry.Resolve(handle.Token(token))
	if err != nil {
		d.api.log.Error().Err(err).
			Str("event", kind.String()).
			Int("engine_id", id).
			Uint64("token", uint64(token)).
			Msg("dropping callback")
		return nil
	}
	return obj
}

func (d dispatcher) channel(kind engine.CallbackKind, id int, token uintptr) *channel {
	switch o := d.resolve(kind, id, token).(type) {
	case *DataChannel:
		return &o.channel
	case *Track:
		return &o.channel
	case nil:
		return nil
	default:
		d.api.log.Debug().Str("event", kind.String()).Int("engine_id", id).Msg("callback for non-channel object")
		return nil
	}
}

func (d dispatcher) peer(kind engine.CallbackKind, id int, token uintptr) *PeerConnection {
	switch o := d.resolve(kind, id, token).(type) {
	case *PeerConnection:
		return o
	case nil:
		return nil
	default:
		d.api.log.Debug().Str("event", kind.String()).Int("engine_id", id).Msg("callback for non-peer object")
		return nil
	}
}

func (d dispatcher) track(kind engine.CallbackKind, id int, token uintptr) *Track {
	switch o := d.resolve(kind, id, token).(type) {
	case *Track:
		return o
	case nil:
		return nil
	default:
		d.api.log.Debug().Str("event", kind.String()).Int("engine_id", id).Msg("callback for non-track object")
		return nil
	}
}

func (d dispatcher) OnOpen(id int, token uintptr) {
	if c := d.channel(engine.CallbackOpen, id, token); c != nil {
		c.dispatch(engine.CallbackOpen, func() {
			for _, h := range c.onOpen.snapshot() {
				h()
			}
		})
	}
}

func (d dispatcher) OnClosed(id int, token uintptr) {
	if c := d.channel(engine.CallbackClosed, id, token); c != nil {
		c.dispatch(engine.CallbackClosed, func() {
			for _, h := range c.onClosed.snapshot() {
				h()
			}
		})
	}
}

func (d dispatcher) OnError(id int, token uintptr, message string) {
	if c := d.channel(engine.CallbackError, id, token); c != nil {
		err := &ChannelError{ID: id, Message: message}
		c.dispatch(engine.CallbackError, func() {
			for _, h := range c.onError.snapshot() {
				h(err)
			}
		})
	}
}

func (d dispatcher) OnMessage(id int, token uintptr, data []byte, binary bool) {
	if c := d.channel(engine.CallbackMessage, id, token); c != nil {
		c.dispatch(engine.CallbackMessage, func() {
			for _, h := range c.onMessage.snapshot() {
				h(data, binary)
			}
		})
	}
}

func (d dispatcher) OnBufferedAmountLow(id int, token uintptr) {
	if c := d.channel(engine.CallbackBufferedAmountLow, id, token); c != nil {
		c.dispatch(engine.CallbackBufferedAmountLow, func() {
			for _, h := range c.onBufferedAmountLow.snapshot() {
				h()
			}
		})
	}
}

func (d dispatcher) OnAvailable(id int, token uintptr) {
	if c := d.channel(engine.CallbackAvailable, id, token); c != nil {
		c.dispatch(engine.CallbackAvailable, func() {
			for _, h := range c.onAvailable.snapshot() {
				h()
			}
		})
	}
}

func (d dispatcher) OnLocalDescription(pc int, token uintptr, sdp, typ string) {
	if p := d.peer(engine.CallbackLocalDescription, pc, token); p != nil {
		desc := SessionDescription{Type: NewSDPType(typ), SDP: sdp}
		p.dispatch(engine.CallbackLocalDescription, func() {
			for _, h := range p.onLocalDescription.snapshot() {
				h(desc)
			}
		})
	}
}

func (d dispatcher) OnLocalCandidate(pc int, token uintptr, candidate, mid string) {
	if p := d.peer(engine.CallbackLocalCandidate, pc, token); p != nil {
		cand := ICECandidate{Candidate: candidate, SDPMid: mid}
		p.dispatch(engine.CallbackLocalCandidate, func() {
			for _, h := range p.onLocalCandidate.snapshot() {
				h(cand)
			}
		})
	}
}

func (d dispatcher) OnStateChange(pc int, token uintptr, state engine.State) {
	if p := d.peer(engine.CallbackStateChange, pc, token); p != nil {
		p.dispatch(engine.CallbackStateChange, func() { p.handleStateChange(state) })
	}
}

func (d dispatcher) OnGatheringStateChange(pc int, token uintptr, state engine.GatheringState) {
	if p := d.peer(engine.CallbackGatheringStateChange, pc, token); p != nil {
		p.dispatch(engine.CallbackGatheringStateChange, func() { p.handleGatheringStateChange(state) })
	}
}

func (d dispatcher) OnSignalingStateChange(pc int, token uintptr, state engine.SignalingState) {
	if p := d.peer(engine.CallbackSignalingStateChange, pc, token); p != nil {
		p.dispatch(engine.CallbackSignalingStateChange, func() { p.handleSignalingStateChange(state) })
	}
}

func (d dispatcher) OnDataChannel(pc int, token uintptr, dc int) {
	p := d.peer(engine.CallbackDataChannel, pc, token)
	if p == nil {
		// Nothing owns the pushed channel.
		d.api.runTeardown(func() error { return d.api.engine.DeleteDataChannel(dc) }, true)
		return
	}
	if !p.dispatch(engine.CallbackDataChannel, func() { p.handleDataChannel(dc) }) {
		p.discardPushed(engine.CallbackDataChannel, dc)
	}
}

func (d dispatcher) OnTrack(pc int, token uintptr, tr int) {
	p := d.peer(engine.CallbackTrack, pc, token)
	if p == nil {
		d.api.runTeardown(func() error { return d.api.engine.DeleteTrack(tr) }, true)
		return
	}
	if !p.dispatch(engine.CallbackTrack, func() { p.handleTrack(tr) }) {
		p.discardPushed(engine.CallbackTrack, tr)
	}
}

func (d dispatcher) OnPLI(tr int, token uintptr) {
	if t := d.track(engine.CallbackPLI, tr, token); t != nil {
		t.dispatch(engine.CallbackPLI, func() {
			for _, h := range t.onPLI.snapshot() {
				h()
			}
		})
	}
}

func (d dispatcher) OnREMB(tr int, token uintptr, bitrate uint32) {
	if t := d.track(engine.CallbackREMB, tr, token); t != nil {
		t.dispatch(engine.CallbackREMB, func() {
			for _, h := range t.onREMB.snapshot() {
				h(bitrate)
			}
		})
	}
}

func (d dispatcher) OnLog(level engine.LogLevel, message string) {
	d.api.log.WithLevel(zerologLevel(level)).Str("source", "libdatachannel").Msg(message)
}

func zerologLevel(l engine.LogLevel) zerolog.Level {
	switch l {
	case engine.LogFatal, engine.LogError:
		return zerolog.ErrorLevel
	case engine.LogWarning:
		return zerolog.WarnLevel
	case engine.LogInfo:
		return zerolog.InfoLevel
	case engine.LogDebug:
		return zerolog.DebugLevel
	case engine.LogVerbose:
		return zerolog.TraceLevel
	default:
		return zerolog.NoLevel
	}
}
