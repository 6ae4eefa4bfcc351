package pc

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// Conversions to and from pion/webrtc types, for applications that signal
// with a pion peer or reuse pion's signaling structs.

// ToPion converts d to a pion session description.
func (d SessionDescription) ToPion() webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(d.Type.String()),
		SDP:  d.SDP,
	}
}

// SessionDescriptionFromPion converts a pion session description.
func SessionDescriptionFromPion(d webrtc.SessionDescription) SessionDescription {
	return SessionDescription{
		Type: NewSDPType(d.Type.String()),
		SDP:  d.SDP,
	}
}

// Parse parses the SDP body.
func (d SessionDescription) Parse() (*sdp.SessionDescription, error) {
	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(d.SDP)); err != nil {
		return nil, fmt.Errorf("%w: parse sdp: %v", ErrInvalidArgument, err)
	}
	return parsed, nil
}

// ToPion converts c to a pion candidate init. The engine's "a=" attribute
// prefix is removed.
func (c ICECandidate) ToPion() webrtc.ICECandidateInit {
	init := webrtc.ICECandidateInit{
		Candidate: strings.TrimPrefix(c.Candidate, "a="),
	}
	if c.SDPMid != "" {
		mid := c.SDPMid
		init.SDPMid = &mid
	}
	return init
}

// ICECandidateFromPion converts a pion candidate init.
func ICECandidateFromPion(c webrtc.ICECandidateInit) ICECandidate {
	out := ICECandidate{Candidate: c.Candidate}
	if c.SDPMid != nil {
		out.SDPMid = *c.SDPMid
	}
	return out
}

// ICEServersFromPion converts pion ICE servers. Non-password credentials
// are dropped.
func ICEServersFromPion(servers []webrtc.ICEServer) []ICEServer {
	out := make([]ICEServer, 0, len(servers))
	for _, s := range servers {
		srv := ICEServer{
			URLs:     append([]string(nil), s.URLs...),
			Username: s.Username,
		}
		if cred, ok := any(s.Credential).(string); ok {
			srv.Credential = cred
		}
		out = append(out, srv)
	}
	return out
}
