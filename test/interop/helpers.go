// Package interop runs libdatachannel peers against Pion peers over the
// loopback interface.
package interop

import (
	"sync"
	"testing"
	"time"

	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/thesyncim/libgodatachannel/internal/testutil"
	"github.com/thesyncim/libgodatachannel/pkg/pc"
)

const (
	negotiateTimeout = 10 * time.Second
	messageTimeout   = 5 * time.Second
)

// PeerPair is a libdatachannel peer and a Pion peer negotiated without
// trickle: each side waits for gathering to complete before sending its
// description.
type PeerPair struct {
	Lib  *pc.PeerConnection
	Pion *pionwebrtc.PeerConnection

	libConnected  chan struct{}
	pionConnected chan struct{}

	t *testing.T
}

// NewPeerPair creates both peers and closes them when the test ends.
func NewPeerPair(t *testing.T) *PeerPair {
	t.Helper()
	testutil.RequireLibrary(t)

	lib, err := pc.NewPeerConnection(pc.Configuration{DisableAutoNegotiation: true})
	if err != nil {
		t.Fatalf("libdatachannel NewPeerConnection: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	pion, err := pionwebrtc.NewPeerConnection(pionwebrtc.Configuration{})
	if err != nil {
		t.Fatalf("pion NewPeerConnection: %v", err)
	}
	t.Cleanup(func() { pion.Close() })

	pp := &PeerPair{
		Lib:           lib,
		Pion:          pion,
		libConnected:  make(chan struct{}),
		pionConnected: make(chan struct{}),
		t:             t,
	}

	var libOnce, pionOnce sync.Once
	lib.OnStateChange(func(s pc.PeerConnectionState) {
		if s == pc.PeerConnectionStateConnected {
			libOnce.Do(func() { close(pp.libConnected) })
		}
	})
	pion.OnConnectionStateChange(func(s pionwebrtc.PeerConnectionState) {
		if s == pionwebrtc.PeerConnectionStateConnected {
			pionOnce.Do(func() { close(pp.pionConnected) })
		}
	})
	return pp
}

// gatheringDone returns a channel closed once p finishes gathering.
func gatheringDone(p *pc.PeerConnection) <-chan struct{} {
	done := make(chan struct{})
	var once sync.Once
	p.OnGatheringStateChange(func(s pc.ICEGatheringState) {
		if s == pc.ICEGatheringStateComplete {
			once.Do(func() { close(done) })
		}
	})
	if p.GatheringState() == pc.ICEGatheringStateComplete {
		once.Do(func() { close(done) })
	}
	return done
}

func (pp *PeerPair) waitGathering(done <-chan struct{}) {
	pp.t.Helper()
	select {
	case <-done:
	case <-time.After(negotiateTimeout):
		pp.t.Fatal("libdatachannel gathering did not complete")
	}
}

// LibOffers negotiates with the libdatachannel peer as offerer.
func (pp *PeerPair) LibOffers() {
	pp.t.Helper()

	done := gatheringDone(pp.Lib)
	if _, err := pp.Lib.CreateOffer(); err != nil {
		pp.t.Fatalf("libdatachannel CreateOffer: %v", err)
	}
	pp.waitGathering(done)
	offer, err := pp.Lib.LocalDescription()
	if err != nil {
		pp.t.Fatalf("libdatachannel LocalDescription: %v", err)
	}

	if err := pp.Pion.SetRemoteDescription(offer.ToPion()); err != nil {
		pp.t.Fatalf("pion SetRemoteDescription: %v", err)
	}
	answer, err := pp.Pion.CreateAnswer(nil)
	if err != nil {
		pp.t.Fatalf("pion CreateAnswer: %v", err)
	}
	gathered := pionwebrtc.GatheringCompletePromise(pp.Pion)
	if err := pp.Pion.SetLocalDescription(answer); err != nil {
		pp.t.Fatalf("pion SetLocalDescription: %v", err)
	}
	<-gathered

	if err := pp.Lib.SetRemoteDescription(pc.SessionDescriptionFromPion(*pp.Pion.LocalDescription())); err != nil {
		pp.t.Fatalf("libdatachannel SetRemoteDescription: %v", err)
	}
}

// PionOffers negotiates with the Pion peer as offerer.
func (pp *PeerPair) PionOffers() {
	pp.t.Helper()

	offer, err := pp.Pion.CreateOffer(nil)
	if err != nil {
		pp.t.Fatalf("pion CreateOffer: %v", err)
	}
	gathered := pionwebrtc.GatheringCompletePromise(pp.Pion)
	if err := pp.Pion.SetLocalDescription(offer); err != nil {
		pp.t.Fatalf("pion SetLocalDescription: %v", err)
	}
	<-gathered

	if err := pp.Lib.SetRemoteDescription(pc.SessionDescriptionFromPion(*pp.Pion.LocalDescription())); err != nil {
		pp.t.Fatalf("libdatachannel SetRemoteDescription: %v", err)
	}
	done := gatheringDone(pp.Lib)
	if _, err := pp.Lib.CreateAnswer(); err != nil {
		pp.t.Fatalf("libdatachannel CreateAnswer: %v", err)
	}
	pp.waitGathering(done)
	answer, err := pp.Lib.LocalDescription()
	if err != nil {
		pp.t.Fatalf("libdatachannel LocalDescription: %v", err)
	}
	if err := pp.Pion.SetRemoteDescription(answer.ToPion()); err != nil {
		pp.t.Fatalf("pion SetRemoteDescription: %v", err)
	}
}

// WaitConnected waits for both peers to report connected.
func (pp *PeerPair) WaitConnected() {
	pp.t.Helper()
	for name, ch := range map[string]chan struct{}{"libdatachannel": pp.libConnected, "pion": pp.pionConnected} {
		select {
		case <-ch:
		case <-time.After(negotiateTimeout):
			pp.t.Fatalf("%s peer did not connect", name)
		}
	}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(messageTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}
