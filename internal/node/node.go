// Package node composes one drone's full stack from spec §3-§4: mobility
// and energy plug-ins, a shared channel connection, the per-node inbox
// and resolver, the transmit pipeline, and a MAC instance, plus the
// forwarding logic that ties a resolved reception back into either an
// application delivery or a re-transmission.
package node

import (
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/aeromesh/aeromesh/internal/energy"
	"github.com/aeromesh/aeromesh/internal/inbox"
	"github.com/aeromesh/aeromesh/internal/mac"
	"github.com/aeromesh/aeromesh/internal/metrics"
	"github.com/aeromesh/aeromesh/internal/mobility"
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/phy"
	"github.com/aeromesh/aeromesh/internal/pipeline"
	"github.com/aeromesh/aeromesh/internal/routing"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// duplicateWindow bounds how long a forwarded packet's id is remembered
// for loop/duplicate suppression, the same tradeoff dedupe.go makes:
// long enough to catch a looped or re-heard copy, short enough that
// memory doesn't grow with run length.
var duplicateWindow = vtime.FromSeconds(30)

// macLayer is the slice of a MAC implementation a node needs: any of
// mac.CSMACA or mac.ALOHA satisfies it.
type macLayer interface {
	Transmit(pkt packet.Packet, release func())
	NotifyAck(ack packet.Packet, now vtime.Time) bool
}

// DeliveredFunc is invoked once per application-addressed Data packet
// that reaches its destination (spec §4 "delivered to destination").
type DeliveredFunc func(pkt packet.Packet, now vtime.Time)

// seenEntry records when a packet id was last forwarded, for the
// duplicate/loop suppression window.
type seenEntry struct {
	at vtime.Time
}

// Node is one simulated drone: the composition root for everything in
// spec §3 and §4 that lives "per node."
type Node struct {
	ID       packet.NodeID
	sched    *scheduler.Scheduler
	mobility mobility.Provider
	energy   energy.Provider
	router   routing.Router
	channel  *phy.Channel

	box      *inbox.Inbox
	resolver *inbox.Resolver

	queue   *pipeline.Queue
	waiting *pipeline.WaitingList
	slot    *scheduler.Slot
	feed    *pipeline.FeedLoop

	mac macLayer

	ttlDefault int
	seq        uint64

	seen  map[packet.ID]seenEntry
	heard map[packet.NodeID]vtime.Time

	lastFlightTick vtime.Time

	pendingCollision map[packet.ID]*pendingCollision
	collisionGrace   vtime.Duration

	onDelivered DeliveredFunc
	record      func(kind string, pkt packet.Packet, now vtime.Time)
}

// pendingCollision is a failed reception awaiting the retry grace period
// before it's counted as a genuine collision drop.
type pendingCollision struct {
	pkt packet.Packet
}

// Config bundles the per-node construction parameters that aren't
// already plug-ins (position source, energy model, router) or shared
// infrastructure (scheduler, channel).
type Config struct {
	ID         packet.NodeID
	Mobility   mobility.Provider
	Energy     energy.Provider
	Router     routing.Router
	Channel    *phy.Channel
	PathLoss   phy.PathLossModel
	Noise      float64
	ResolverTick vtime.Duration
	MaxAirTime   vtime.Duration
	FeedInterval vtime.Duration
	TTLDefault   int
	OnDelivered  DeliveredFunc
	// OnEvent reports non-delivery outcomes (collision, MAC failure,
	// energy exhaustion, TTL drop) for the metrics sink. Optional.
	OnEvent func(kind string, pkt packet.Packet, now vtime.Time)

	// MAC selects the protocol: "csmaca" (default) or "aloha".
	MAC       string
	MACConfig mac.Config
	TxPower   float64
	MCS       packet.MCS
	Rng       *rand.Rand
}

// New wires up every per-node component and starts its recurring tasks
// (resolver tick, feed loop). The node registers itself on the shared
// channel as part of construction.
func New(sched *scheduler.Scheduler, cfg Config) *Node {
	n := &Node{
		ID:          cfg.ID,
		sched:       sched,
		mobility:    cfg.Mobility,
		energy:      cfg.Energy,
		router:      cfg.Router,
		channel:     cfg.Channel,
		box:         &inbox.Inbox{},
		queue:       &pipeline.Queue{},
		waiting:     pipeline.NewWaitingList(),
		slot:        &scheduler.Slot{},
		ttlDefault:  cfg.TTLDefault,
		seen:        make(map[packet.ID]seenEntry),
		heard:       make(map[packet.NodeID]vtime.Time),
		pendingCollision: make(map[packet.ID]*pendingCollision),
		collisionGrace:   macRetryBudget(cfg.MACConfig),
		onDelivered: cfg.OnDelivered,
		record:      cfg.OnEvent,
	}

	n.resolver = inbox.NewResolver(sched, n.box, positionSource{n.mobility}, cfg.PathLoss, cfg.Noise, cfg.ResolverTick, cfg.MaxAirTime, n.onResolved)

	switch cfg.MAC {
	case "aloha":
		n.mac = mac.NewALOHA(sched, cfg.Channel, cfg.ID, cfg.MCS, cfg.TxPower, cfg.Energy, cfg.Rng, cfg.MACConfig, n.onMacResult)
	default:
		n.mac = mac.NewCSMACA(sched, n.box, cfg.Channel, cfg.ID, cfg.MCS, cfg.TxPower, cfg.Energy, cfg.Rng, cfg.MACConfig, n.onMacResult)
	}

	n.feed = pipeline.NewFeedLoop(sched, n.queue, n.waiting, n.slot, cfg.Router, n.mac, cfg.FeedInterval)

	cfg.Channel.Register(cfg.ID, positionSource{n.mobility}, n.box)

	n.router.Changed().Wait(n.onRoutingChanged)
	n.resolver.Start()
	n.feed.Start()
	n.startFlightTick(cfg.ResolverTick)

	return n
}

// startFlightTick drives energy.Provider.DebitFlight on the same cadence
// as the resolver tick, so staying airborne costs energy even on a node
// that never transmits.
func (n *Node) startFlightTick(interval vtime.Duration) {
	if interval <= 0 {
		return
	}
	n.lastFlightTick = n.sched.Now()
	n.scheduleFlightTick(interval)
}

func (n *Node) scheduleFlightTick(interval vtime.Duration) {
	n.sched.Schedule(interval, func() {
		now := n.sched.Now()
		n.energy.DebitFlight(now.Sub(n.lastFlightTick))
		n.lastFlightTick = now
		n.scheduleFlightTick(interval)
	})
}

type positionSource struct{ p mobility.Provider }

func (s positionSource) Position(now vtime.Time) r3.Vector { return s.p.Position(now) }

func (n *Node) onRoutingChanged() {
	n.feed.OnRoutingChanged()
	n.router.Changed().Wait(n.onRoutingChanged)
}

// Inject hands a freshly-originated application packet to the node's
// transmit pipeline. Source, CurrentHop, Created and Seq are stamped
// here so callers only need to fill in the addressing and payload size.
func (n *Node) Inject(pkt packet.Packet) {
	now := n.sched.Now()
	if pkt.ID == "" {
		pkt.ID = packet.NewID()
	}
	pkt.Source = n.ID
	pkt.CurrentHop = n.ID
	pkt.Created = now
	if pkt.TTL == 0 {
		pkt.TTL = n.ttlDefault
	}
	if pkt.Kind == packet.KindData {
		pkt.Seq = n.seq
		n.seq++
	}
	n.markSeen(pkt.ID, now)
	n.queue.Push(pkt)
}

func (n *Node) onMacResult(pkt packet.Packet, outcome mac.Outcome, now vtime.Time) {
	switch outcome {
	case mac.OutcomeDelivered:
		n.router.OnAck(pkt.ID, now)
	case mac.OutcomeMacFailure:
		n.router.OnAckTimeout(pkt.ID, now)
		n.emit(metrics.KindMacFailure, pkt, now)
	case mac.OutcomeEnergyExhausted:
		n.emit(metrics.KindEnergyExhausted, pkt, now)
	}
}

// onResolved is the inbox resolver's delivery callback: it fires once
// per judged reception, whether or not the SINR test passed and whether
// or not it's ultimately addressed to this node (spec §4.3 "resolved,
// regardless of addressing" hands off to the node for the addressing
// decision).
func (n *Node) onResolved(rec packet.TransmissionRecord, now vtime.Time, sinr float64) {
	if rec.Sender == n.ID {
		return
	}
	if !rec.Delivered {
		n.recordCollision(rec.Packet, now)
		return
	}

	n.router.OnNeighborHeard(rec.Sender, routing.SignalMetrics{SINR: sinr, RSSI: rec.TransmitPow}, now)
	n.heard[rec.Sender] = now

	pkt := rec.Packet
	switch pkt.Kind {
	case packet.KindAck:
		n.mac.NotifyAck(pkt, now)

	case packet.KindData:
		n.handleData(pkt, now)

	case packet.KindControl:
		// Control frames carry no further payload in this module;
		// the neighbor-heard bookkeeping above is their whole effect.
	}
}

// recordCollision holds a failed reception pending for collisionGrace
// before counting it as a collision drop, so a same-id retransmission
// that lands cleanly in the meantime (handleData clears the pending
// entry) isn't double-counted against the §8 conservation property.
func (n *Node) recordCollision(pkt packet.Packet, now vtime.Time) {
	pc := &pendingCollision{pkt: pkt}
	n.pendingCollision[pkt.ID] = pc
	n.sched.Schedule(n.collisionGrace, func() {
		if n.pendingCollision[pkt.ID] != pc {
			return
		}
		delete(n.pendingCollision, pkt.ID)
		n.emit(metrics.KindCollision, pc.pkt, n.sched.Now())
	})
}

// macRetryBudget bounds how long a single packet id's retry cycle can
// take end to end, so recordCollision's grace window outlasts every
// retransmission the sender might still make before giving up.
func macRetryBudget(cfg mac.Config) vtime.Duration {
	backoff := vtime.Duration(cfg.CWMax)*cfg.SlotTime + vtime.Duration(cfg.AlohaRetryScale)*vtime.Duration(cfg.RetryLimit)*cfg.SlotTime
	perAttempt := cfg.DIFS + backoff + cfg.SIFS + cfg.AckSlack + cfg.ResolverSlack
	return perAttempt * vtime.Duration(cfg.RetryLimit+2)
}

func (n *Node) emit(kind string, pkt packet.Packet, now vtime.Time) {
	if n.record != nil {
		n.record(kind, pkt, now)
	}
}

func (n *Node) addressedToMe(pkt packet.Packet) bool {
	switch pkt.Mode {
	case packet.ModeBroadcast:
		return true
	case packet.ModeUnicast:
		return pkt.Destination == n.ID
	case packet.ModeMulticast:
		if len(pkt.Recipients) == 0 {
			return true
		}
		for _, id := range pkt.Recipients {
			if id == n.ID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (n *Node) handleData(pkt packet.Packet, now vtime.Time) {
	delete(n.pendingCollision, pkt.ID)
	if n.isDuplicate(pkt.ID, now) {
		return
	}
	n.markSeen(pkt.ID, now)

	if pkt.Destination == n.ID {
		if pkt.Mode == packet.ModeUnicast {
			n.sendAck(pkt, now)
		}
		if n.onDelivered != nil {
			n.onDelivered(pkt, now)
		}
		return
	}

	if !n.addressedToMe(pkt) {
		return
	}
	if pkt.Mode == packet.ModeUnicast {
		n.sendAck(pkt, now)
	}
	n.forward(pkt, now)
}

// forward decrements TTL and re-queues a packet this node is relaying on
// behalf of someone else, dropping it once TTL is exhausted (spec §3's
// "dropped silently when TTL reaches zero").
func (n *Node) forward(pkt packet.Packet, now vtime.Time) {
	next := pkt.Clone()
	next.TTL--
	if next.TTL <= 0 {
		n.emit(metrics.KindDroppedTTL, next, now)
		return
	}
	next.CurrentHop = n.ID
	next.Retries = 0
	next.Hops++
	next.Recipients = nil
	n.queue.Push(next)
}

// sendAck builds an Ack for a just-received unicast Data packet and hands
// it to the feed loop's fast path after sifsSchedulingSlack. No SIFS wait
// is applied on the receiver side.
func (n *Node) sendAck(dataPkt packet.Packet, now vtime.Time) {
	ack := packet.Packet{
		ID:         packet.NewID(),
		Kind:       packet.KindAck,
		Mode:       packet.ModeUnicast,
		Source:     n.ID,
		CurrentHop: n.ID,
		Created:    now,
		SizeBits:   0,
		TTL:        1,
		AckFor:     dataPkt.ID,
		Target:     dataPkt.CurrentHop,
		Recipients: []packet.NodeID{dataPkt.CurrentHop},
	}
	n.sched.Schedule(sifsSchedulingSlack, func() {
		n.feed.SendAck(ack)
	})
}

// sifsSchedulingSlack is the scheduling gap before handing an ack to the
// buffer slot. It is zero, so the only gap between the data frame's end
// and the ack going on air is the receiver's resolver-tick latency; the
// sender's ack timeout budgets SIFS on top of that but nothing waits it.
const sifsSchedulingSlack = vtime.Duration(0)

func (n *Node) isDuplicate(id packet.ID, now vtime.Time) bool {
	entry, ok := n.seen[id]
	if !ok {
		return false
	}
	return now.Sub(entry.at) < duplicateWindow
}

func (n *Node) markSeen(id packet.ID, now vtime.Time) {
	n.seen[id] = seenEntry{at: now}
	if len(n.seen) > 4096 {
		n.evictStaleSeen(now)
	}
}

// evictStaleSeen bounds the dedupe table's memory the way dedupe.go
// bounds its fixed-size history array: drop anything outside the
// duplicate window rather than let the table grow with run length.
func (n *Node) evictStaleSeen(now vtime.Time) {
	for id, entry := range n.seen {
		if now.Sub(entry.at) >= duplicateWindow {
			delete(n.seen, id)
		}
	}
}

// LastHeard reports when neighbor was last heard from, for diagnostics
// and tests (mheard.go's "was recently heard" query, simplified to a
// single timestamp rather than a full station record).
func (n *Node) LastHeard(neighbor packet.NodeID) (vtime.Time, bool) {
	t, ok := n.heard[neighbor]
	return t, ok
}

// Position exposes the node's current location via its mobility plug-in.
func (n *Node) Position(now vtime.Time) r3.Vector { return n.mobility.Position(now) }

// EnergyRemaining exposes the node's remaining energy budget.
func (n *Node) EnergyRemaining() float64 { return n.energy.Remaining() }
