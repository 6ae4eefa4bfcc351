package pc

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"

	"github.com/thesyncim/libgodatachannel/internal/engine"
)

// Track is a media track. Messages on a track are whole RTP or RTCP packets.
//
// Tracks are added with PeerConnection.AddTrack or pushed by the remote peer
// through OnTrack, and are closed with their PeerConnection.
type Track struct {
	channel

	description cached[string]
	mid         cached[string]
	direction   cached[Direction]

	// guarded by channel.mu; chain handlers cannot be removed once enabled
	pliEnabled  bool
	rembEnabled bool

	onPLI  handlerSet[func()]
	onREMB handlerSet[func(uint32)]
}

func newTrack(api *API, owner *PeerConnection, id int) (*Track, error) {
	t := &Track{}
	t.clearExtra = func() {
		t.onPLI.clear()
		t.onREMB.clear()
	}
	err := t.attach(api, owner, id, t, api.engine.DeleteTrack)
	return t, err
}

// Description returns the track's SDP media section.
func (t *Track) Description() (string, error) {
	return t.description.get(&t.channel, func() (string, error) {
		return t.api.getString(t.id, engine.PropTrackDescription)
	})
}

// MediaDescription parses Description.
func (t *Track) MediaDescription() (*sdp.MediaDescription, error) {
	desc, err := t.Description()
	if err != nil {
		return nil, err
	}
	return parseMediaDescription(desc)
}

// Mid returns the media stream identification.
func (t *Track) Mid() (string, error) {
	return t.mid.get(&t.channel, func() (string, error) {
		return t.api.getString(t.id, engine.PropTrackMid)
	})
}

// Direction returns the negotiated direction.
func (t *Track) Direction() (Direction, error) {
	return t.direction.get(&t.channel, func() (Direction, error) {
		return t.api.engine.TrackDirection(t.id)
	})
}

// OnPLI registers a handler for picture loss indications received from the
// remote peer. The first registration enables the PLI handler in the media
// chain.
func (t *Track) OnPLI(fn func()) (unsubscribe func(), err error) {
	if err := t.EnablePLIHandler(); err != nil {
		return nil, err
	}
	return t.onPLI.subscribe(fn), nil
}

// OnREMB registers a handler for receiver estimated maximum bitrate reports.
func (t *Track) OnREMB(fn func(bitrate uint32)) (unsubscribe func(), err error) {
	if err := t.EnableREMBHandler(); err != nil {
		return nil, err
	}
	return t.onREMB.subscribe(fn), nil
}

// EnablePLIHandler appends a PLI handler to the media chain. It is a no-op
// when already enabled.
func (t *Track) EnablePLIHandler() error {
	return t.enableChainHandler(engine.CallbackPLI, &t.pliEnabled)
}

// EnableREMBHandler appends a REMB handler to the media chain.
func (t *Track) EnableREMBHandler() error {
	return t.enableChainHandler(engine.CallbackREMB, &t.rembEnabled)
}

func (t *Track) enableChainHandler(kind engine.CallbackKind, enabled *bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.active(); err != nil {
		return err
	}
	if *enabled {
		return nil
	}
	if err := t.api.engine.SetCallback(t.id, kind, true); err != nil {
		return fmt.Errorf("enable %s handler: %w", kind, err)
	}
	*enabled = true
	return nil
}

// SetPacketizer installs an RTP packetizer for codec. An empty CName is
// replaced with a random one.
func (t *Track) SetPacketizer(codec Codec, init PacketizerInit) error {
	if err := t.active(); err != nil {
		return err
	}
	if init.CName == "" {
		init.CName = uuid.NewString()
	}
	return t.api.engine.SetPacketizer(t.id, codec, &init)
}

// ChainRTCPSRReporter appends an RTCP sender report generator.
func (t *Track) ChainRTCPSRReporter() error {
	if err := t.active(); err != nil {
		return err
	}
	return t.api.engine.ChainRTCPSRReporter(t.id)
}

// ChainRTCPNackResponder appends a NACK responder keeping up to
// maxStoredPackets packets for retransmission.
func (t *Track) ChainRTCPNackResponder(maxStoredPackets uint) error {
	if err := t.active(); err != nil {
		return err
	}
	return t.api.engine.ChainRTCPNackResponder(t.id, maxStoredPackets)
}

// ChainRTCPReceivingSession appends an RTCP receiving session.
func (t *Track) ChainRTCPReceivingSession() error {
	if err := t.active(); err != nil {
		return err
	}
	return t.api.engine.ChainRTCPReceivingSession(t.id)
}

// RequestKeyframe sends a PLI to the remote sender.
func (t *Track) RequestKeyframe() error {
	if err := t.active(); err != nil {
		return err
	}
	return t.api.engine.RequestKeyframe(t.id)
}

// SetNeedsToSendRTCPSR forces a sender report with the next packet.
func (t *Track) SetNeedsToSendRTCPSR() error {
	if err := t.active(); err != nil {
		return err
	}
	return t.api.engine.SetNeedsToSendRTCPSR(t.id)
}

// SecondsToTimestamp converts seconds to RTP clock units. It requires a
// packetizer.
func (t *Track) SecondsToTimestamp(seconds float64) (uint32, error) {
	if err := t.active(); err != nil {
		return 0, err
	}
	return t.api.engine.TransformSecondsToTimestamp(t.id, seconds)
}

// TimestampToSeconds converts RTP clock units to seconds.
func (t *Track) TimestampToSeconds(timestamp uint32) (float64, error) {
	if err := t.active(); err != nil {
		return 0, err
	}
	return t.api.engine.TransformTimestampToSeconds(t.id, timestamp)
}

// CurrentTimestamp returns the packetizer's current RTP timestamp.
func (t *Track) CurrentTimestamp() (uint32, error) {
	if err := t.active(); err != nil {
		return 0, err
	}
	return t.api.engine.CurrentTrackTimestamp(t.id)
}

// SetRTPTimestamp sets the packetizer's RTP timestamp.
func (t *Track) SetRTPTimestamp(timestamp uint32) error {
	if err := t.active(); err != nil {
		return err
	}
	return t.api.engine.SetTrackRTPTimestamp(t.id, timestamp)
}

// LastSenderReportTimestamp returns the RTP timestamp of the last sender
// report.
func (t *Track) LastSenderReportTimestamp() (uint32, error) {
	if err := t.active(); err != nil {
		return 0, err
	}
	return t.api.engine.LastTrackSenderReportTimestamp(t.id)
}

// WriteRTP marshals pkt and sends it on the track.
func (t *Track) WriteRTP(pkt *rtp.Packet) error {
	buf, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("marshal rtp: %w", err)
	}
	return t.Send(buf)
}

// WriteRTCP marshals pkts into one compound packet and sends it.
func (t *Track) WriteRTCP(pkts []rtcp.Packet) error {
	buf, err := rtcp.Marshal(pkts)
	if err != nil {
		return fmt.Errorf("marshal rtcp: %w", err)
	}
	return t.Send(buf)
}

// OnRTP registers a handler for incoming RTP packets. It counts as a message
// handler.
func (t *Track) OnRTP(fn func(pkt *rtp.Packet)) (unsubscribe func(), err error) {
	return t.OnMessage(func(data []byte, binary bool) {
		if !binary || isRTCP(data) {
			return
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(data); err != nil {
			t.api.log.Debug().Err(err).Int("engine_id", t.id).Msg("dropping malformed rtp packet")
			return
		}
		fn(pkt)
	})
}

// OnRTCP registers a handler for incoming RTCP packets.
func (t *Track) OnRTCP(fn func(pkts []rtcp.Packet)) (unsubscribe func(), err error) {
	return t.OnMessage(func(data []byte, binary bool) {
		if !binary || !isRTCP(data) {
			return
		}
		pkts, err := rtcp.Unmarshal(data)
		if err != nil {
			t.api.log.Debug().Err(err).Int("engine_id", t.id).Msg("dropping malformed rtcp packet")
			return
		}
		fn(pkts)
	})
}

// isRTCP demultiplexes RTP and RTCP sharing a transport (RFC 5761): RTCP
// packet types occupy 192-223 in the second byte.
func isRTCP(b []byte) bool {
	return len(b) >= 2 && b[1] >= 192 && b[1] <= 223
}

// sdpPreamble turns a lone media section into a parseable session.
const sdpPreamble = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

// parseMediaDescription parses a single SDP media section carrying a mid.
func parseMediaDescription(desc string) (*sdp.MediaDescription, error) {
	var b strings.Builder
	b.WriteString(sdpPreamble)
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(b.String())); err != nil {
		return nil, fmt.Errorf("%w: media description: %v", ErrInvalidArgument, err)
	}
	if len(sd.MediaDescriptions) != 1 {
		return nil, fmt.Errorf("%w: media description has %d media sections", ErrInvalidArgument, len(sd.MediaDescriptions))
	}
	md := sd.MediaDescriptions[0]
	if mid, ok := md.Attribute("mid"); !ok || mid == "" {
		return nil, fmt.Errorf("%w: media description without a=mid", ErrInvalidArgument)
	}
	return md, nil
}
