package pc

import (
	"github.com/thesyncim/libgodatachannel/internal/engine"
)

// DataChannel is a bidirectional SCTP message channel.
//
// A DataChannel is created with PeerConnection.CreateDataChannel or pushed
// by the remote peer through OnDataChannel. It belongs to its PeerConnection
// and is closed with it.
type DataChannel struct {
	channel

	label       cached[string]
	protocol    cached[string]
	reliability cached[Reliability]
}

func newDataChannel(api *API, owner *PeerConnection, id int) (*DataChannel, error) {
	dc := &DataChannel{}
	err := dc.attach(api, owner, id, dc, api.engine.DeleteDataChannel)
	return dc, err
}

// Label returns the channel label.
func (dc *DataChannel) Label() (string, error) {
	return dc.label.get(&dc.channel, func() (string, error) {
		return dc.api.getString(dc.id, engine.PropDataChannelLabel)
	})
}

// Protocol returns the sub-protocol negotiated for the channel.
func (dc *DataChannel) Protocol() (string, error) {
	return dc.protocol.get(&dc.channel, func() (string, error) {
		return dc.api.getString(dc.id, engine.PropDataChannelProtocol)
	})
}

// Reliability returns the channel's delivery guarantees.
func (dc *DataChannel) Reliability() (Reliability, error) {
	return dc.reliability.get(&dc.channel, func() (Reliability, error) {
		return dc.api.engine.DataChannelReliability(dc.id)
	})
}

// Stream returns the SCTP stream id.
func (dc *DataChannel) Stream() (int, error) {
	if err := dc.active(); err != nil {
		return 0, err
	}
	return dc.api.engine.DataChannelStream(dc.id)
}
