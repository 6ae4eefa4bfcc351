package pc

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestSessionDescriptionPion(t *testing.T) {
	desc := SessionDescription{Type: SDPTypeAnswer, SDP: "v=0\r\n"}
	p := desc.ToPion()
	if p.Type != webrtc.SDPTypeAnswer || p.SDP != desc.SDP {
		t.Errorf("ToPion() = %+v", p)
	}
	if back := SessionDescriptionFromPion(p); back != desc {
		t.Errorf("SessionDescriptionFromPion() = %+v, want %+v", back, desc)
	}

	unknown := SessionDescription{SDP: "v=0\r\n"}.ToPion()
	if unknown.Type != webrtc.SDPTypeUnknown {
		t.Errorf("unknown type converted to %v", unknown.Type)
	}
}

func TestSessionDescriptionParse(t *testing.T) {
	body := sdpPreamble +
		"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
		"a=mid:0\r\n"
	parsed, err := SessionDescription{Type: SDPTypeOffer, SDP: body}.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.MediaDescriptions) != 1 || parsed.MediaDescriptions[0].MediaName.Media != "application" {
		t.Errorf("parsed media = %+v", parsed.MediaDescriptions)
	}

	if _, err := (SessionDescription{SDP: "garbage"}).Parse(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Parse(garbage) error = %v, want ErrInvalidArgument", err)
	}
}

func TestICECandidatePion(t *testing.T) {
	c := ICECandidate{Candidate: "a=candidate:1 1 UDP 2122317823 10.0.0.1 5000 typ host", SDPMid: "0"}
	p := c.ToPion()
	if p.Candidate != "candidate:1 1 UDP 2122317823 10.0.0.1 5000 typ host" {
		t.Errorf("ToPion().Candidate = %q", p.Candidate)
	}
	if p.SDPMid == nil || *p.SDPMid != "0" {
		t.Errorf("ToPion().SDPMid = %v", p.SDPMid)
	}

	back := ICECandidateFromPion(p)
	if back.SDPMid != "0" || back.Candidate != p.Candidate {
		t.Errorf("ICECandidateFromPion() = %+v", back)
	}

	if p := (ICECandidate{Candidate: "candidate:x"}).ToPion(); p.SDPMid != nil {
		t.Error("empty mid converted to a non-nil pointer")
	}
	if c := ICECandidateFromPion(webrtc.ICECandidateInit{Candidate: "candidate:x"}); c.SDPMid != "" {
		t.Errorf("nil mid converted to %q", c.SDPMid)
	}
}

func TestICEServersFromPion(t *testing.T) {
	servers := ICEServersFromPion([]webrtc.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "secret"},
	})
	if len(servers) != 2 {
		t.Fatalf("got %d servers", len(servers))
	}
	if servers[1].Username != "u" || servers[1].Credential != "secret" {
		t.Errorf("turn server = %+v", servers[1])
	}

	cfg := Configuration{ICEServers: servers}
	ec, err := cfg.toEngine()
	if err != nil {
		t.Fatalf("toEngine: %v", err)
	}
	want := []string{"stun:stun.example.com:3478", "turn:u:secret@turn.example.com:3478?transport=udp"}
	for i, w := range want {
		if ec.ICEServers[i] != w {
			t.Errorf("ICEServers[%d] = %q, want %q", i, ec.ICEServers[i], w)
		}
	}
}
