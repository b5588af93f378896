// Package routing defines the routing plug-in interface from spec §6 and
// ships two reference implementations the core needs to run end to end:
// Flood (broadcast-forward-once, APRS-digipeater-style) and Static (a
// precomputed next-hop table for deterministic tests). Specific routing
// protocols (DSDV, greedy, Q-routing, OPAR, GRAd) are out of scope per
// spec §1 and live outside this module.
package routing

import (
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// SignalMetrics summarizes what a neighbor-heard event observed about the
// link, passed to Router.OnNeighborHeard.
type SignalMetrics struct {
	SINR float64
	RSSI float64
}

// Router is the routing plug-in interface from spec §6. Implementations
// own their routing table privately; the core only ever calls these five
// methods and subscribes to Changed.
type Router interface {
	// NextHop returns the next hop for pkt, or ok=false if unknown
	// (spec's NONE).
	NextHop(pkt packet.Packet, now vtime.Time) (hop packet.NodeID, ok bool)
	OnNeighborHeard(neighbor packet.NodeID, metrics SignalMetrics, now vtime.Time)
	OnAck(dataPacketID packet.ID, now vtime.Time)
	OnAckTimeout(dataPacketID packet.ID, now vtime.Time)
	// Changed fires whenever new routing information becomes available,
	// per §4.4's "Routing is expected to publish a change notification
	// when new routes become known."
	Changed() *scheduler.Signal
}
