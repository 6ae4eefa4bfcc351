// Package signal exchanges session descriptions and ICE candidates between
// two peers over a websocket relay.
package signal

import (
	"fmt"

	"github.com/thesyncim/libgodatachannel/pkg/pc"
)

// Message types.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	// TypeReady is sent by the relay to both peers once a room is full.
	TypeReady = "ready"
	// TypeBye is sent by the relay when the other peer leaves.
	TypeBye = "bye"
)

// Message is the JSON envelope carried over the websocket.
type Message struct {
	Type      string `json:"type"`
	SDP       string `json:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Mid       string `json:"mid,omitempty"`
}

func DescriptionMessage(d pc.SessionDescription) Message {
	return Message{Type: d.Type.String(), SDP: d.SDP}
}

func CandidateMessage(c pc.ICECandidate) Message {
	return Message{Type: TypeCandidate, Candidate: c.Candidate, Mid: c.SDPMid}
}

// Description returns the session description carried by an offer or answer.
func (m Message) Description() (pc.SessionDescription, error) {
	switch m.Type {
	case TypeOffer, TypeAnswer:
		return pc.SessionDescription{Type: pc.NewSDPType(m.Type), SDP: m.SDP}, nil
	}
	return pc.SessionDescription{}, fmt.Errorf("signal: %q message carries no description", m.Type)
}

// ICECandidate returns the candidate carried by a candidate message.
func (m Message) ICECandidate() (pc.ICECandidate, error) {
	if m.Type != TypeCandidate {
		return pc.ICECandidate{}, fmt.Errorf("signal: %q message carries no candidate", m.Type)
	}
	return pc.ICECandidate{Candidate: m.Candidate, SDPMid: m.Mid}, nil
}
