package mac

import (
	"math/rand"

	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/phy"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// alohaState mirrors CSMA/CA's machine minus the sensing/backoff phases:
// a transmission goes out immediately and the only wait is for its ack.
type alohaState int

const (
	alohaIdle alohaState = iota
	alohaAwaitAck
)

// ALOHA implements pure ALOHA: transmit on demand with no carrier sense,
// then on ack timeout retransmit after a randomized delay that grows with
// the attempt count (spec §4.5.2).
type ALOHA struct {
	sched   *scheduler.Scheduler
	channel *phy.Channel
	self    packet.NodeID
	mcs     packet.MCS
	txPower float64
	energy  EnergyDebitor
	rng     *rand.Rand
	cfg     Config
	onResult ResultFunc

	state    alohaState
	cur      packet.Packet
	release  func()
	attempts int

	pendingAckID packet.ID
	ackTimeout   scheduler.Handle
}

func NewALOHA(sched *scheduler.Scheduler, channel *phy.Channel, self packet.NodeID, mcs packet.MCS, txPower float64, energy EnergyDebitor, rng *rand.Rand, cfg Config, onResult ResultFunc) *ALOHA {
	return &ALOHA{
		sched: sched, channel: channel, self: self,
		mcs: mcs, txPower: txPower, energy: energy, rng: rng,
		cfg: cfg, onResult: onResult, state: alohaIdle,
	}
}

// Transmit implements pipeline.Transmitter. Acks use the same immediate
// fast path as CSMA/CA: no carrier sense, no retry expectation.
func (a *ALOHA) Transmit(pkt packet.Packet, release func()) {
	if pkt.Kind == packet.KindAck {
		a.sendImmediate(pkt, release, nil)
		return
	}
	a.cur = pkt
	a.release = release
	a.attempts = 0
	a.attempt()
}

func (a *ALOHA) attempt() {
	if a.energy.Remaining() <= 0 {
		a.finish(OutcomeEnergyExhausted)
		return
	}
	a.sendImmediate(a.cur, nil, a.afterTransmit)
}

func (a *ALOHA) sendImmediate(pkt packet.Packet, release func(), after func(start vtime.Time, duration vtime.Duration)) {
	now := a.sched.Now()
	duration := vtime.FromSeconds(a.mcs.AirTime(pkt.SizeBits))
	a.energy.DebitTransmit(pkt.SizeBits, a.txPower, duration)
	a.channel.BroadcastPut(now, pkt, a.self, a.txPower, duration, a.mcs)
	if release != nil {
		a.sched.Schedule(duration, release)
	}
	if after != nil {
		after(now, duration)
	}
}

func (a *ALOHA) afterTransmit(start vtime.Time, duration vtime.Duration) {
	if a.cur.Kind == packet.KindData && a.cur.Mode == packet.ModeUnicast {
		a.state = alohaAwaitAck
		a.pendingAckID = a.cur.ID
		ackAirTime := vtime.FromSeconds(a.mcs.AirTime(a.cfg.AckSizeBits))
		timeoutAt := start.Add(duration).Add(a.cfg.SIFS + ackAirTime + a.cfg.AckSlack + a.cfg.ResolverSlack)
		a.ackTimeout = a.sched.ScheduleAt(timeoutAt, a.onAckTimeout)
		return
	}
	a.sched.Schedule(duration, func() {
		a.finish(OutcomeSent)
	})
}

// NotifyAck implements AckNotifier.
func (a *ALOHA) NotifyAck(ack packet.Packet, now vtime.Time) bool {
	if a.state != alohaAwaitAck {
		return false
	}
	if ack.AckFor != a.pendingAckID || ack.Target != a.self {
		return false
	}
	a.ackTimeout.Cancel()
	a.pendingAckID = ""
	a.finish(OutcomeDelivered)
	return true
}

func (a *ALOHA) onAckTimeout() {
	if a.state != alohaAwaitAck {
		return
	}
	a.pendingAckID = ""
	a.attempts++
	if a.attempts > a.cfg.RetryLimit {
		a.finish(OutcomeMacFailure)
		return
	}
	window := a.cfg.AlohaRetryScale * a.attempts
	if window < 1 {
		window = 1
	}
	delay := vtime.Duration(a.rng.Intn(window+1)) * a.cfg.SlotTime
	a.sched.Schedule(delay, a.attempt)
}

func (a *ALOHA) finish(outcome Outcome) {
	a.state = alohaIdle
	pkt := a.cur
	release := a.release
	a.cur = packet.Packet{}
	a.release = nil
	if a.onResult != nil {
		a.onResult(pkt, outcome, a.sched.Now())
	}
	if release != nil {
		release()
	}
}
