package routing

import (
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Static is a precomputed next-hop table, useful for deterministic tests
// and scenarios (spec §8's scenario 5 uses exactly this shape: a route
// that's unknown, then published at a later virtual time).
type Static struct {
	routes  map[packet.NodeID]packet.NodeID
	changed scheduler.Signal
}

func NewStatic() *Static {
	return &Static{routes: make(map[packet.NodeID]packet.NodeID)}
}

// Learn publishes a next hop for a destination and fires Changed so the
// feed loop re-examines its waiting list.
func (s *Static) Learn(destination, nextHop packet.NodeID) {
	s.routes[destination] = nextHop
	s.changed.Fire()
}

func (s *Static) NextHop(pkt packet.Packet, _ vtime.Time) (packet.NodeID, bool) {
	hop, ok := s.routes[pkt.Destination]
	return hop, ok
}

func (s *Static) OnNeighborHeard(packet.NodeID, SignalMetrics, vtime.Time) {}
func (s *Static) OnAck(packet.ID, vtime.Time)                             {}
func (s *Static) OnAckTimeout(packet.ID, vtime.Time)                      {}

func (s *Static) Changed() *scheduler.Signal { return &s.changed }
