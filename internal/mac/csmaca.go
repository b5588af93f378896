package mac

import (
	"math/rand"

	"github.com/aeromesh/aeromesh/internal/inbox"
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/phy"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// csmaState is the IDLE -> SENSING -> WAITING -> TX -> AWAIT_ACK ->
// DONE|RETRY machine from spec §4.5.1.
type csmaState int

const (
	csmaIdle csmaState = iota
	csmaSensing
	csmaWaiting
	csmaAwaitAck
)

// CSMACA implements carrier-sense multiple access with collision
// avoidance, without RTS/CTS, per spec §4.5.1. It handles exactly one
// packet at a time: the buffer slot already guarantees that, so the
// state machine needs no per-packet bookkeeping beyond a single "current
// attempt" record.
type CSMACA struct {
	sched   *scheduler.Scheduler
	box     *inbox.Inbox
	channel *phy.Channel
	self    packet.NodeID
	mcs     packet.MCS
	txPower float64
	energy  EnergyDebitor
	rng     *rand.Rand
	cfg     Config
	onResult ResultFunc

	state    csmaState
	cur      packet.Packet
	release  func()
	attempts int

	remaining   vtime.Duration
	armedAt     vtime.Time
	completion  scheduler.Handle
	activityW   scheduler.Waiter
	senseRecheck scheduler.Handle

	pendingAckID packet.ID
	ackTimeout   scheduler.Handle
}

func NewCSMACA(sched *scheduler.Scheduler, box *inbox.Inbox, channel *phy.Channel, self packet.NodeID, mcs packet.MCS, txPower float64, energy EnergyDebitor, rng *rand.Rand, cfg Config, onResult ResultFunc) *CSMACA {
	return &CSMACA{
		sched: sched, box: box, channel: channel, self: self,
		mcs: mcs, txPower: txPower, energy: energy, rng: rng,
		cfg: cfg, onResult: onResult, state: csmaIdle,
	}
}

// Transmit implements pipeline.Transmitter. The Ack fast path bypasses
// sensing and backoff entirely, per spec §4.5.1's receiver-side note.
func (c *CSMACA) Transmit(pkt packet.Packet, release func()) {
	if pkt.Kind == packet.KindAck {
		c.transmitFastPath(pkt, release)
		return
	}
	c.cur = pkt
	c.release = release
	c.attempts = 0
	c.beginAttempt()
}

func (c *CSMACA) transmitFastPath(pkt packet.Packet, release func()) {
	now := c.sched.Now()
	if c.energy.Remaining() <= 0 {
		release()
		return
	}
	duration := vtime.FromSeconds(c.mcs.AirTime(pkt.SizeBits))
	c.energy.DebitTransmit(pkt.SizeBits, c.txPower, duration)
	c.channel.BroadcastPut(now, pkt, c.self, c.txPower, duration, c.mcs)
	c.sched.Schedule(duration, release)
}

func (c *CSMACA) beginAttempt() {
	if c.energy.Remaining() <= 0 {
		c.finish(OutcomeEnergyExhausted)
		return
	}
	cw := c.cfg.CWMin << c.attempts
	if cw > c.cfg.CWMax || cw <= 0 {
		cw = c.cfg.CWMax
	}
	if cw < 1 {
		cw = 1
	}
	b := c.rng.Intn(cw)
	c.remaining = c.cfg.DIFS + vtime.Duration(b)*c.cfg.SlotTime
	c.enterSensing()
}

func (c *CSMACA) enterSensing() {
	c.state = csmaSensing
	now := c.sched.Now()
	if !c.box.Busy(now) {
		c.enterWaiting()
		return
	}
	idleAt := c.box.NextIdleAt(now)
	c.senseRecheck = c.sched.ScheduleAt(idleAt, c.recheckSensing)
}

func (c *CSMACA) recheckSensing() {
	if c.state != csmaSensing {
		return
	}
	now := c.sched.Now()
	if c.box.Busy(now) {
		idleAt := c.box.NextIdleAt(now)
		c.senseRecheck = c.sched.ScheduleAt(idleAt, c.recheckSensing)
		return
	}
	c.enterWaiting()
}

func (c *CSMACA) enterWaiting() {
	c.state = csmaWaiting
	c.armedAt = c.sched.Now()
	c.completion = c.sched.Schedule(c.remaining, c.onCountdownComplete)
	c.activityW = c.box.Activity.Wait(c.onActivityDuringCountdown)
}

// onActivityDuringCountdown freezes the remaining countdown at exactly
// the frozen remainder, per spec §8's backoff-freeze invariant, and
// returns to SENSING without redrawing the backoff.
func (c *CSMACA) onActivityDuringCountdown() {
	if c.state != csmaWaiting {
		return
	}
	now := c.sched.Now()
	if !c.box.Busy(now) {
		// Activity that doesn't overlap now (shouldn't normally happen,
		// since deliveries start at the current instant, but stay
		// correct if it does): re-register and keep waiting.
		c.activityW = c.box.Activity.Wait(c.onActivityDuringCountdown)
		return
	}
	c.completion.Cancel()
	elapsed := now.Sub(c.armedAt)
	c.remaining -= elapsed
	if c.remaining < 0 {
		c.remaining = 0
	}
	c.enterSensing()
}

func (c *CSMACA) onCountdownComplete() {
	if c.state != csmaWaiting {
		return
	}
	c.activityW.Cancel()
	c.transmit()
}

func (c *CSMACA) transmit() {
	now := c.sched.Now()
	duration := vtime.FromSeconds(c.mcs.AirTime(c.cur.SizeBits))
	c.energy.DebitTransmit(c.cur.SizeBits, c.txPower, duration)
	c.channel.BroadcastPut(now, c.cur, c.self, c.txPower, duration, c.mcs)

	if c.cur.Kind == packet.KindData && c.cur.Mode == packet.ModeUnicast {
		c.state = csmaAwaitAck
		c.pendingAckID = c.cur.ID
		txEnd := now.Add(duration)
		ackAirTime := vtime.FromSeconds(c.mcs.AirTime(c.cfg.AckSizeBits))
		timeoutAt := txEnd.Add(c.cfg.SIFS + ackAirTime + c.cfg.AckSlack + c.cfg.ResolverSlack)
		c.ackTimeout = c.sched.ScheduleAt(timeoutAt, c.onAckTimeout)
		return
	}

	c.sched.Schedule(duration, func() {
		c.finish(OutcomeSent)
	})
}

// NotifyAck implements AckNotifier.
func (c *CSMACA) NotifyAck(ack packet.Packet, now vtime.Time) bool {
	if c.state != csmaAwaitAck {
		return false
	}
	if ack.AckFor != c.pendingAckID || ack.Target != c.self {
		return false
	}
	c.ackTimeout.Cancel()
	c.pendingAckID = ""
	c.finish(OutcomeDelivered)
	return true
}

func (c *CSMACA) onAckTimeout() {
	if c.state != csmaAwaitAck {
		return
	}
	c.pendingAckID = ""
	c.attempts++
	if c.attempts > c.cfg.RetryLimit {
		c.finish(OutcomeMacFailure)
		return
	}
	c.beginAttempt()
}

func (c *CSMACA) finish(outcome Outcome) {
	c.state = csmaIdle
	pkt := c.cur
	release := c.release
	c.cur = packet.Packet{}
	c.release = nil
	if c.onResult != nil {
		c.onResult(pkt, outcome, c.sched.Now())
	}
	if release != nil {
		release()
	}
}
