// Package inbox implements the per-node neighbor inbox and the periodic
// resolver that turns overlapping transmission records into delivered or
// collided packets (spec §3, §4.3).
package inbox

import (
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Inbox is the per-node log of in-flight and recently-completed
// transmission records used for carrier sense and collision resolution.
// It is written only by the channel (append, via Deliver) and read/pruned
// only by the Resolver; the scheduler's single-threaded discipline means
// those never interleave, so no locking is needed.
type Inbox struct {
	records []*packet.TransmissionRecord

	// Activity fires every time a new record is delivered, letting a MAC
	// state machine counting down in WAITING react immediately rather than
	// polling, per the §5 "event wait on medium-idle" suspension point.
	Activity scheduler.Signal
}

// Deliver appends a new transmission record. Implements phy.Sink.
func (b *Inbox) Deliver(rec packet.TransmissionRecord) {
	b.records = append(b.records, &rec)
	b.Activity.Fire()
}

// Busy reports whether the medium is occupied at instant now, i.e. any
// record's interval [Start, End) contains now — the carrier-sense
// primitive used by CSMA/CA (spec §4.5.1).
func (b *Inbox) Busy(now vtime.Time) bool {
	for _, r := range b.records {
		if r.Start <= now && now < r.End {
			return true
		}
	}
	return false
}

// NextIdleAt returns the latest End among the records busy at now (or now
// itself if none is). A record starting after now is not taken into
// account, so the medium may still be busy at the returned time. Used by
// the MAC's SENSING state to schedule a recheck rather than poll
// continuously.
func (b *Inbox) NextIdleAt(now vtime.Time) vtime.Time {
	latest := now
	for _, r := range b.records {
		if r.Start <= now && now < r.End && r.End > latest {
			latest = r.End
		}
	}
	return latest
}

// Records returns the live records, for the resolver and for tests.
func (b *Inbox) Records() []*packet.TransmissionRecord {
	return b.records
}

// Len reports how many records the inbox currently retains.
func (b *Inbox) Len() int { return len(b.records) }
