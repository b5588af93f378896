package mac

import (
	"math/rand"
	"testing"

	"pgregory.net/rapid"

	"github.com/aeromesh/aeromesh/internal/inbox"
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/phy"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// timestampingEnergy records the virtual time of every debit, so a test
// can observe exactly when a transmission actually went out without
// threading extra hooks through CSMACA itself.
type timestampingEnergy struct {
	sched *scheduler.Scheduler
	at    []vtime.Time
}

func (e *timestampingEnergy) DebitTransmit(int, float64, vtime.Duration) {
	e.at = append(e.at, e.sched.Now())
}
func (e *timestampingEnergy) Remaining() float64 { return 1e9 }

// firstAttemptTransmitTime runs a single CSMA/CA transmission of a
// broadcast Control packet (no ack wait, so the scenario ends at the
// first debit) under interruptCount unrelated third-party transmissions
// injected during the countdown, and returns when the node's own
// transmission actually happened.
func firstAttemptTransmitTime(seed int64, interruptCount int) vtime.Time {
	sched := scheduler.New()
	box := &inbox.Inbox{}
	ch := phy.NewChannel(phy.LoS{})
	energy := &timestampingEnergy{sched: sched}
	rng := rand.New(rand.NewSource(seed))

	c := NewCSMACA(sched, box, ch, "a", testMCS(), 1.0, energy, rng, testConfig(), nil)
	ch.Register("a", zeroPos{}, box)

	c.Transmit(packet.Packet{ID: "b1", Kind: packet.KindControl, Mode: packet.ModeBroadcast, SizeBits: 100}, func() {})

	for i := 0; i < interruptCount; i++ {
		at := vtime.FromSeconds(0.00002 * float64(i+1))
		sched.ScheduleAt(vtime.Zero.Add(at), func() {
			box.Deliver(packet.TransmissionRecord{
				Sender: "intruder",
				Start:  sched.Now(),
				End:    sched.Now().Add(vtime.FromSeconds(0.00001)),
			})
		})
	}

	sched.Run(vtime.FromSeconds(1))

	if len(energy.at) == 0 {
		return vtime.Zero
	}
	return energy.at[0]
}

// TestCSMACABackoffFreezeNeverAdvancesCompletion is the §8 backoff-freeze
// property: beginAttempt draws its backoff exactly once, before any
// interruption can occur, so injecting extra medium activity during the
// countdown can only push the eventual transmission later (or leave it
// unchanged if the interruptions land after the countdown already
// finished), never earlier.
func TestCSMACABackoffFreezeNeverAdvancesCompletion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Int64().Draw(rt, "seed")
		interruptCount := rapid.IntRange(0, 3).Draw(rt, "interrupts")

		baseline := firstAttemptTransmitTime(seed, 0)
		withInterrupts := firstAttemptTransmitTime(seed, interruptCount)

		if withInterrupts < baseline {
			rt.Fatalf("interruptions must never make the transmission happen earlier: baseline=%s interrupted=%s (interrupts=%d)",
				baseline, withInterrupts, interruptCount)
		}
	})
}
