package pipeline

import (
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Router is the subset of the routing plug-in interface (spec §6) the
// feed loop needs: a next-hop lookup. Defined locally so pipeline has no
// import dependency on the routing package; any routing.Router satisfies
// it structurally.
type Router interface {
	NextHop(pkt packet.Packet, now vtime.Time) (packet.NodeID, bool)
}

// Transmitter hands a dequeued, slot-holding packet to the MAC layer. The
// MAC calls release exactly once, on success or terminal failure, per
// spec §4.4's buffer-slot contract.
type Transmitter interface {
	Transmit(pkt packet.Packet, release func())
}

// FeedLoop is the cooperative per-node task from spec §4.4. It is driven
// by a recurring poll interval (the "sleeps a short configured interval
// between iterations" behaviour) plus an immediate wake on Queue.NotEmpty
// so a newly-enqueued packet isn't stuck behind a full poll period.
type FeedLoop struct {
	sched    *scheduler.Scheduler
	queue    *Queue
	waiting  *WaitingList
	slot     *scheduler.Slot
	router   Router
	tx       Transmitter
	interval vtime.Duration

	started bool
}

func NewFeedLoop(sched *scheduler.Scheduler, queue *Queue, waiting *WaitingList, slot *scheduler.Slot, router Router, tx Transmitter, interval vtime.Duration) *FeedLoop {
	return &FeedLoop{
		sched:    sched,
		queue:    queue,
		waiting:  waiting,
		slot:     slot,
		router:   router,
		tx:       tx,
		interval: interval,
	}
}

// Start begins the feed loop's recurring poll and subscribes to
// immediate enqueue wake-ups.
func (f *FeedLoop) Start() {
	if f.started {
		return
	}
	f.started = true
	f.scheduleTick()
	f.subscribeWake()
}

func (f *FeedLoop) subscribeWake() {
	f.queue.NotEmpty.Wait(func() {
		f.step()
		f.subscribeWake()
	})
}

func (f *FeedLoop) scheduleTick() {
	f.sched.Schedule(f.interval, func() {
		f.step()
		f.scheduleTick()
	})
}

// step inspects the queue head without dequeueing until a dispatch
// decision has been made, per spec §4.4.
func (f *FeedLoop) step() {
	pkt, ok := f.queue.Peek()
	if !ok {
		return
	}

	switch pkt.Kind {
	case packet.KindControl:
		f.queue.Pop()
		f.dispatch(pkt)

	case packet.KindData:
		now := f.sched.Now()
		nextHop, known := f.router.NextHop(pkt, now)
		if !known {
			f.queue.Pop()
			f.waiting.Put(pkt)
			return
		}
		f.queue.Pop()
		if pkt.Mode == packet.ModeUnicast {
			pkt = pkt.Clone()
			if nextHop == "" {
				// No specific relay known for this destination (Flood's
				// shape): broadcast it instead of addressing nobody.
				pkt.Mode = packet.ModeBroadcast
			} else {
				pkt.Recipients = []packet.NodeID{nextHop}
			}
		}
		f.dispatch(pkt)

	default:
		// Ack packets bypass the queue entirely (spec §4.4); if one
		// somehow lands here, dispatch it directly rather than drop it.
		f.queue.Pop()
		f.dispatch(pkt)
	}
}

func (f *FeedLoop) dispatch(pkt packet.Packet) {
	f.slot.Acquire(func(release func()) {
		f.tx.Transmit(pkt, release)
	})
}

// OnRoutingChanged moves every waiting-list entry whose next hop is now
// known back to the tail of the transmitting queue, per spec §4.4.
func (f *FeedLoop) OnRoutingChanged() {
	now := f.sched.Now()
	for _, pkt := range f.waiting.Snapshot() {
		if _, known := f.router.NextHop(pkt, now); known {
			f.waiting.Remove(pkt.ID)
			f.queue.Push(pkt)
		}
	}
}

// SendAck bypasses the transmitting queue and waiting list entirely,
// going straight for the buffer slot, per spec §4.4 ("Ack packets bypass
// the queue entirely and await the buffer slot directly").
func (f *FeedLoop) SendAck(ack packet.Packet) {
	f.dispatch(ack)
}
