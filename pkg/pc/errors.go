package pc

import (
	"errors"
	"fmt"

	"github.com/thesyncim/libgodatachannel/internal/engine"
	"github.com/thesyncim/libgodatachannel/internal/handle"
)

// Engine errors. Every negative engine return is translated into one of
// these and supports errors.Is().
var (
	ErrInvalidArgument = engine.ErrInvalidArgument
	ErrFailure         = engine.ErrFailure
	ErrNotAvailable    = engine.ErrNotAvailable
	ErrBufferTooSmall  = engine.ErrBufferTooSmall
)

// Local errors
var (
	// ErrUsage reports a call that breaks the object's contract, such as
	// polling while a message handler is registered or using a closed object.
	ErrUsage = errors.New("usage error")

	// ErrPeerConnectionClosed is returned when creating a child on a closed
	// peer connection.
	ErrPeerConnectionClosed = fmt.Errorf("%w: peer connection closed", ErrUsage)

	// ErrResolutionFailure is logged when a callback token no longer maps to
	// a live object.
	ErrResolutionFailure = handle.ErrResolutionFailure
)

var errDisposed = fmt.Errorf("%w: object closed", ErrUsage)

// BufferTooSmallError carries the buffer size a receive needs.
type BufferTooSmallError struct {
	Required int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("buffer too small: %d bytes required", e.Required)
}

// Unwrap lets errors.Is match ErrBufferTooSmall.
func (e *BufferTooSmallError) Unwrap() error { return ErrBufferTooSmall }

// ChannelError is an error reported by the engine on a data channel or track.
// It is delivered to OnError handlers, never returned.
type ChannelError struct {
	ID      int
	Message string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %d: %s", e.ID, e.Message)
}
