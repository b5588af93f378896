package inbox

import (
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/phy"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// DeliveryFunc is invoked once per record as soon as the resolver judges
// it, whether or not it cleared the SINR threshold (rec.Delivered
// reports which). sinr is the linear (not dB) ratio the decision was
// made against, handed along so callers can feed link-quality metrics
// to routing without recomputing the path-loss math.
type DeliveryFunc func(rec packet.TransmissionRecord, now vtime.Time, sinr float64)

// Resolver runs the periodic per-node tick from spec §4.3: it prunes
// stale records, finds newly-completed ones, and for each computes SINR
// against every other record overlapping its air-time interval.
type Resolver struct {
	sched      *scheduler.Scheduler
	box        *Inbox
	selfPos    phy.PositionSource
	pathLoss   phy.PathLossModel
	noise      float64
	tick       vtime.Duration
	maxAirTime vtime.Duration
	onDeliver  DeliveryFunc

	stopped bool
}

func NewResolver(sched *scheduler.Scheduler, box *Inbox, selfPos phy.PositionSource, pathLoss phy.PathLossModel, noise float64, tick, maxAirTime vtime.Duration, onDeliver DeliveryFunc) *Resolver {
	return &Resolver{
		sched:      sched,
		box:        box,
		selfPos:    selfPos,
		pathLoss:   pathLoss,
		noise:      noise,
		tick:       tick,
		maxAirTime: maxAirTime,
		onDeliver:  onDeliver,
	}
}

// Start schedules the recurring resolver tick.
func (r *Resolver) Start() {
	r.scheduleNext()
}

// Stop cancels future ticks; already-scheduled callbacks that fire will
// see stopped and no-op.
func (r *Resolver) Stop() {
	r.stopped = true
}

func (r *Resolver) scheduleNext() {
	if r.stopped {
		return
	}
	r.sched.Schedule(r.tick, r.runTick)
}

func (r *Resolver) runTick() {
	if r.stopped {
		return
	}
	now := r.sched.Now()
	r.prune(now)
	r.resolveCompleted(now)
	r.scheduleNext()
}

// prune drops records whose air-time ended more than 2*maxAirTime ago, per
// spec §3's transmission-record lifecycle (kept long enough that the
// overlap test in resolveCompleted stays correct for anything that could
// still complete around the same instant).
func (r *Resolver) prune(now vtime.Time) {
	threshold := now.Add(-2 * r.maxAirTime)
	kept := r.box.records[:0]
	for _, rec := range r.box.records {
		if !rec.End.Before(threshold) {
			kept = append(kept, rec)
		}
	}
	r.box.records = kept
}

// resolveCompleted evaluates every record that has just completed
// (End <= now) and has not yet been resolved. Per §4.3's tie-breaking
// rule, each is judged independently against the full overlap set,
// including records that haven't completed yet.
func (r *Resolver) resolveCompleted(now vtime.Time) {
	self := r.selfPos.Position(now)
	for _, rec := range r.box.records {
		if rec.Resolved || rec.End > now {
			continue
		}
		rec.Resolved = true
		signal := r.pathLoss.ReceivedPower(rec.TransmitPow, rec.SenderPos, self)
		interference := 0.0
		for _, other := range r.box.records {
			if other == rec || !rec.Overlaps(*other) {
				continue
			}
			interference += r.pathLoss.ReceivedPower(other.TransmitPow, other.SenderPos, self)
		}
		sinr := signal / (r.noise + interference)
		threshold := rec.MCS.SINRThreshold
		if threshold <= 0 {
			threshold = 1.0
		}
		rec.Delivered = sinr >= threshold
		if r.onDeliver != nil {
			r.onDeliver(*rec, now, sinr)
		}
	}
}
