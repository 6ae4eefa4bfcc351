// Package testutil provides shared test utilities for libgodatachannel tests.
package testutil

import (
	"testing"
	"time"

	"github.com/pion/rtp"

	"github.com/thesyncim/libgodatachannel/internal/ffi"
)

// SkipIfNoLibrary skips the test if libdatachannel is not available.
func SkipIfNoLibrary(t *testing.T) {
	t.Helper()
	if err := ffi.LoadLibrary(); err != nil {
		t.Skipf("libdatachannel not available: %v", err)
	}
}

// RequireLibrary fails the test if libdatachannel is not available.
func RequireLibrary(tb testing.TB) {
	tb.Helper()
	if err := ffi.LoadLibrary(); err != nil {
		tb.Fatalf("libdatachannel required: %v", err)
	}
}

// Eventually polls cond until it returns true or timeout elapses.
func Eventually(tb testing.TB, timeout time.Duration, cond func() bool, msg string) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("timed out after %v: %s", timeout, msg)
}

// CreateTestRTPPacket builds a marshalable RTP packet with a recognizable
// payload. The first payload byte carries the low byte of seq.
func CreateTestRTPPacket(ssrc uint32, seq uint16, payloadSize int) *rtp.Packet {
	payload := make([]byte, payloadSize)
	for i := range payload {
		payload[i] = byte(int(seq) + i)
	}
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 3000,
			SSRC:           ssrc,
			Marker:         true,
		},
		Payload: payload,
	}
}
