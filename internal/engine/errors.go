package engine

import (
	"errors"
	"fmt"
)

// Error codes returned by the native engine (int32 to match C int).
const (
	CodeSuccess         int32 = 0
	CodeInvalidArgument int32 = -1
	CodeFailure         int32 = -2
	CodeNotAvailable    int32 = -3
	CodeBufferTooSmall  int32 = -4
)

// Engine error sentinels. These match the native error codes and support errors.Is().
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrFailure         = errors.New("engine failure")
	ErrNotAvailable    = errors.New("not available")
	ErrBufferTooSmall  = errors.New("buffer too small")
)

// CodeErr is an engine error code outside the documented set.
type CodeErr struct {
	Code int32
}

func (e *CodeErr) Error() string {
	return fmt.Sprintf("unknown engine error: %d", e.Code)
}

// Unwrap reports unknown codes as generic failures.
func (e *CodeErr) Unwrap() error { return ErrFailure }

// CodeError converts an engine return value to a Go error.
// Non-negative values are successful results and yield nil.
func CodeError(code int32) error {
	if code >= 0 {
		return nil
	}
	switch code {
	case CodeInvalidArgument:
		return ErrInvalidArgument
	case CodeFailure:
		return ErrFailure
	case CodeNotAvailable:
		return ErrNotAvailable
	case CodeBufferTooSmall:
		return ErrBufferTooSmall
	default:
		return &CodeErr{Code: code}
	}
}

// Result splits an engine return value into a non-negative result or an error.
func Result(code int32) (int, error) {
	if err := CodeError(code); err != nil {
		return 0, err
	}
	return int(code), nil
}
