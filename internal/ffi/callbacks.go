package ffi

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"
	"github.com/rs/zerolog/log"

	"github.com/thesyncim/libgodatachannel/internal/engine"
)

// safeCallback wraps a callback invocation with panic recovery.
// This prevents panics in Go code from unwinding through C stack frames,
// which would cause undefined behavior.
func safeCallback(kind engine.CallbackKind, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "ffi").Str("event", kind.String()).
				Interface("panic", r).Msg("panic recovered in callback")
		}
	}()
	fn()
}

type sinkHolder struct {
	ev engine.Events
}

// sink is the process-wide callback destination. libdatachannel callbacks
// are plain C function pointers, so one trampoline per kind serves every
// object and the per-object routing happens through the user pointer.
var sink atomic.Pointer[sinkHolder]

func bindSink(ev engine.Events) {
	sink.Store(&sinkHolder{ev: ev})
}

func currentSink() engine.Events {
	if h := sink.Load(); h != nil {
		return h.ev
	}
	return nil
}

// purego callback function pointers (must be kept alive)
var (
	callbackPtrs         [engine.CallbackREMB + 1]uintptr
	logCallbackPtr       uintptr
	callbacksInitialized bool
	callbackInitMu       sync.Mutex
)

// initCallbacks creates one trampoline per callback kind. purego callbacks
// can never be released, so they are created exactly once.
func initCallbacks() {
	callbackInitMu.Lock()
	defer callbackInitMu.Unlock()

	if callbacksInitialized {
		return
	}

	// NOTE: C uses 'int' (32-bit) for ids, sizes and enums, so we must use int32 to match
	callbackPtrs[engine.CallbackOpen] = purego.NewCallback(dispatchOpen)
	callbackPtrs[engine.CallbackClosed] = purego.NewCallback(dispatchClosed)
	callbackPtrs[engine.CallbackError] = purego.NewCallback(dispatchError)
	callbackPtrs[engine.CallbackMessage] = purego.NewCallback(dispatchMessage)
	callbackPtrs[engine.CallbackBufferedAmountLow] = purego.NewCallback(dispatchBufferedAmountLow)
	callbackPtrs[engine.CallbackAvailable] = purego.NewCallback(dispatchAvailable)
	callbackPtrs[engine.CallbackLocalDescription] = purego.NewCallback(dispatchLocalDescription)
	callbackPtrs[engine.CallbackLocalCandidate] = purego.NewCallback(dispatchLocalCandidate)
	callbackPtrs[engine.CallbackStateChange] = purego.NewCallback(dispatchStateChange)
	callbackPtrs[engine.CallbackGatheringStateChange] = purego.NewCallback(dispatchGatheringStateChange)
	callbackPtrs[engine.CallbackSignalingStateChange] = purego.NewCallback(dispatchSignalingStateChange)
	callbackPtrs[engine.CallbackDataChannel] = purego.NewCallback(dispatchDataChannel)
	callbackPtrs[engine.CallbackTrack] = purego.NewCallback(dispatchTrack)
	callbackPtrs[engine.CallbackPLI] = purego.NewCallback(dispatchPLI)
	callbackPtrs[engine.CallbackREMB] = purego.NewCallback(dispatchREMB)
	logCallbackPtr = purego.NewCallback(dispatchLog)

	callbacksInitialized = true
}

func callbackPtr(kind engine.CallbackKind) uintptr {
	initCallbacks()
	return callbackPtrs[kind]
}

// Signature: void(int id, void *ptr)
func dispatchOpen(id int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackOpen, func() { ev.OnOpen(int(id), ptr) })
	}
}

// Signature: void(int id, void *ptr)
func dispatchClosed(id int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackClosed, func() { ev.OnClosed(int(id), ptr) })
	}
}

// Signature: void(int id, const char *error, void *ptr)
func dispatchError(id int32, msg uintptr, ptr uintptr) {
	ev := currentSink()
	if ev == nil {
		return
	}
	text := GoString(msg)
	safeCallback(engine.CallbackError, func() { ev.OnError(int(id), ptr, text) })
}

// Signature: void(int id, const char *message, int size, void *ptr)
// A negative size marks a NUL-terminated text message.
func dispatchMessage(id int32, msg uintptr, size int32, ptr uintptr) {
	ev := currentSink()
	if ev == nil {
		return
	}

	// Copy data from C memory to Go slices (avoid holding pointers across calls)
	var data []byte
	binary := size >= 0
	if binary {
		data = GoBytes(msg, int(size))
	} else {
		data = []byte(GoString(msg))
	}

	safeCallback(engine.CallbackMessage, func() { ev.OnMessage(int(id), ptr, data, binary) })
}

// Signature: void(int id, void *ptr)
func dispatchBufferedAmountLow(id int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackBufferedAmountLow, func() { ev.OnBufferedAmountLow(int(id), ptr) })
	}
}

// Signature: void(int id, void *ptr)
func dispatchAvailable(id int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackAvailable, func() { ev.OnAvailable(int(id), ptr) })
	}
}

// Signature: void(int pc, const char *sdp, const char *type, void *ptr)
func dispatchLocalDescription(pc int32, sdp, typ uintptr, ptr uintptr) {
	ev := currentSink()
	if ev == nil {
		return
	}
	s, t := GoString(sdp), GoString(typ)
	safeCallback(engine.CallbackLocalDescription, func() { ev.OnLocalDescription(int(pc), ptr, s, t) })
}

// Signature: void(int pc, const char *cand, const char *mid, void *ptr)
func dispatchLocalCandidate(pc int32, cand, mid uintptr, ptr uintptr) {
	ev := currentSink()
	if ev == nil {
		return
	}
	c, m := GoString(cand), GoString(mid)
	safeCallback(engine.CallbackLocalCandidate, func() { ev.OnLocalCandidate(int(pc), ptr, c, m) })
}

// Signature: void(int pc, rtcState state, void *ptr)
func dispatchStateChange(pc int32, state int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackStateChange, func() { ev.OnStateChange(int(pc), ptr, engine.State(state)) })
	}
}

// Signature: void(int pc, rtcGatheringState state, void *ptr)
func dispatchGatheringStateChange(pc int32, state int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackGatheringStateChange, func() {
			ev.OnGatheringStateChange(int(pc), ptr, engine.GatheringState(state))
		})
	}
}

// Signature: void(int pc, rtcSignalingState state, void *ptr)
func dispatchSignalingStateChange(pc int32, state int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackSignalingStateChange, func() {
			ev.OnSignalingStateChange(int(pc), ptr, engine.SignalingState(state))
		})
	}
}

// Signature: void(int pc, int dc, void *ptr)
func dispatchDataChannel(pc int32, dc int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackDataChannel, func() { ev.OnDataChannel(int(pc), ptr, int(dc)) })
	}
}

// Signature: void(int pc, int tr, void *ptr)
func dispatchTrack(pc int32, tr int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackTrack, func() { ev.OnTrack(int(pc), ptr, int(tr)) })
	}
}

// Signature: void(int tr, void *ptr)
func dispatchPLI(tr int32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackPLI, func() { ev.OnPLI(int(tr), ptr) })
	}
}

// Signature: void(int tr, unsigned int bitrate, void *ptr)
func dispatchREMB(tr int32, bitrate uint32, ptr uintptr) {
	if ev := currentSink(); ev != nil {
		safeCallback(engine.CallbackREMB, func() { ev.OnREMB(int(tr), ptr, bitrate) })
	}
}

// logPanics counts panics recovered from the log callback.
var logPanics atomic.Uint64

// Signature: void(rtcLogLevel level, const char *message)
func dispatchLog(level int32, msg uintptr) {
	ev := currentSink()
	if ev == nil {
		return
	}
	text := GoString(msg)
	defer func() {
		// The sink forwards to zerolog, so reporting through it could panic
		// again; stderr is the fallback.
		if r := recover(); r != nil {
			logPanics.Add(1)
			fmt.Fprintf(os.Stderr, "libdatachannel: panic in log callback: %v\n", r)
		}
	}()
	ev.OnLog(engine.LogLevel(level), text)
}
