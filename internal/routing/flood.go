package routing

import (
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Flood is the simplest correct baseline router: every data packet is
// handed to the MAC in broadcast mode and every neighbor that hears it
// forwards it once (loop suppression happens at the node's forward
// dedupe, spec §4.6). It never reports NONE, so packets never sit in the
// waiting list, and it never learns anything from acks or neighbor-heard
// events — there is no table to update.
type Flood struct {
	changed scheduler.Signal
}

func NewFlood() *Flood {
	return &Flood{}
}

// NextHop always reports the route as known but with no specific relay;
// the feed loop reads the empty NodeID as "broadcast this" rather than
// addressing a unicast frame to nobody.
func (f *Flood) NextHop(packet.Packet, vtime.Time) (packet.NodeID, bool) {
	return "", true
}

func (f *Flood) OnNeighborHeard(packet.NodeID, SignalMetrics, vtime.Time) {}
func (f *Flood) OnAck(packet.ID, vtime.Time)                             {}
func (f *Flood) OnAckTimeout(packet.ID, vtime.Time)                      {}

func (f *Flood) Changed() *scheduler.Signal { return &f.changed }
