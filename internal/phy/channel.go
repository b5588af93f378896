// Package phy implements the channel / physical layer primitive from spec
// §4.2: a pure broadcast fan-out that appends transmission records to
// every in-range receiver's inbox, with a pluggable admission policy per
// channel variant. The channel never decides collisions — that is
// internal/inbox's job.
package phy

import (
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// PositionSource reports a node's current position, read from its
// mobility plug-in (spec §6 "Mobility plug-in interface").
type PositionSource interface {
	Position(now vtime.Time) r3.Vector
}

// Sink receives transmission records on behalf of a node's inbox.
type Sink interface {
	Deliver(rec packet.TransmissionRecord)
}

// Policy decides, per receiver, whether a transmission is admitted into
// that receiver's inbox at all (spec §4.2's three channel variants).
// Admitted does not mean delivered: the resolver still runs SINR against
// whatever lands in the inbox.
type Policy interface {
	Admit(senderPos, receiverPos r3.Vector, txPower float64) bool
}

// LoS always admits: insertion is unconditional.
type LoS struct{}

func (LoS) Admit(r3.Vector, r3.Vector, float64) bool { return true }

// Probabilistic drops each receiver's insertion independently with
// probability LossProb, regardless of geometry.
type Probabilistic struct {
	LossProb float64
	Rng      *rand.Rand
}

func (p *Probabilistic) Admit(_, _ r3.Vector, _ float64) bool {
	if p.LossProb <= 0 {
		return true
	}
	if p.LossProb >= 1 {
		return false
	}
	return p.Rng.Float64() >= p.LossProb
}

// RangePathLoss suppresses insertion when the large-scale fading model
// predicts received power below the receiver's sensitivity.
type RangePathLoss struct {
	Model       PathLossModel
	Sensitivity float64 // watts
}

func (p RangePathLoss) Admit(senderPos, receiverPos r3.Vector, txPower float64) bool {
	return p.Model.ReceivedPower(txPower, senderPos, receiverPos) >= p.Sensitivity
}

type endpoint struct {
	id   packet.NodeID
	pos  PositionSource
	sink Sink
}

// Channel is the system's shared broadcast primitive (spec §4.2). One
// Channel instance is shared by reference across every node in a radio
// group; it holds no per-node mutable state beyond the registry itself,
// so concurrent producers never interleave writes to the same receiver's
// inbox (the scheduler's single-threaded discipline guarantees that).
type Channel struct {
	policy    Policy
	endpoints map[packet.NodeID]*endpoint
	order     []packet.NodeID // registration order, for deterministic fan-out
}

func NewChannel(policy Policy) *Channel {
	return &Channel{
		policy:    policy,
		endpoints: make(map[packet.NodeID]*endpoint),
	}
}

// Register adds a node as a potential sender/receiver on this channel.
func (c *Channel) Register(id packet.NodeID, pos PositionSource, sink Sink) {
	if _, exists := c.endpoints[id]; exists {
		return
	}
	c.endpoints[id] = &endpoint{id: id, pos: pos, sink: sink}
	c.order = append(c.order, id)
}

// BroadcastPut enumerates the reception set for pkt (every registered node
// other than the sender for broadcast mode, or the packet's recipients
// hint for unicast/multicast) and appends a TransmissionRecord to each
// admitted receiver's inbox, per spec §4.2.
func (c *Channel) BroadcastPut(now vtime.Time, pkt packet.Packet, sender packet.NodeID, txPower float64, duration vtime.Duration, mcs packet.MCS) {
	senderEP, ok := c.endpoints[sender]
	if !ok {
		return
	}
	senderPos := senderEP.pos.Position(now)
	end := now.Add(duration)

	for _, id := range c.recipients(pkt, sender) {
		ep := c.endpoints[id]
		if ep == nil {
			continue
		}
		receiverPos := ep.pos.Position(now)
		if !c.policy.Admit(senderPos, receiverPos, txPower) {
			continue
		}
		ep.sink.Deliver(packet.TransmissionRecord{
			Packet:      pkt,
			Sender:      sender,
			TransmitPow: txPower,
			MCS:         mcs,
			Start:       now,
			End:         end,
			SenderPos:   senderPos,
		})
	}
}

func (c *Channel) recipients(pkt packet.Packet, sender packet.NodeID) []packet.NodeID {
	if pkt.Mode == packet.ModeBroadcast || len(pkt.Recipients) == 0 {
		out := make([]packet.NodeID, 0, len(c.order))
		for _, id := range c.order {
			if id != sender {
				out = append(out, id)
			}
		}
		return out
	}
	out := make([]packet.NodeID, 0, len(pkt.Recipients))
	for _, id := range pkt.Recipients {
		if id != sender {
			out = append(out, id)
		}
	}
	return out
}
