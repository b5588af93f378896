// Package pipeline implements the per-node transmit pipeline from spec
// §4.4: the transmitting queue, the waiting list, the one-capacity buffer
// slot, and the feed loop that moves packets between them.
package pipeline

import (
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/scheduler"
)

// Queue is the FIFO transmitting queue from spec §3: unbounded, ordered,
// and holding a packet in at most one node's queue at a time (callers are
// responsible for that invariant — the queue itself only enforces FIFO
// order and head-without-dequeue peeking).
type Queue struct {
	items    []packet.Packet
	NotEmpty scheduler.Signal
}

// Push appends pkt to the tail and, if the queue was empty, fires
// NotEmpty to wake anything suspended waiting for work.
func (q *Queue) Push(pkt packet.Packet) {
	wasEmpty := len(q.items) == 0
	q.items = append(q.items, pkt)
	if wasEmpty {
		q.NotEmpty.Fire()
	}
}

// Peek returns the head packet without removing it.
func (q *Queue) Peek() (packet.Packet, bool) {
	if len(q.items) == 0 {
		return packet.Packet{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the head packet.
func (q *Queue) Pop() (packet.Packet, bool) {
	if len(q.items) == 0 {
		return packet.Packet{}, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

// Len reports the number of packets currently queued.
func (q *Queue) Len() int { return len(q.items) }

// WaitingList holds data packets whose next hop is currently unknown,
// keyed by packet id (spec §3).
type WaitingList struct {
	byID map[packet.ID]packet.Packet
}

func NewWaitingList() *WaitingList {
	return &WaitingList{byID: make(map[packet.ID]packet.Packet)}
}

func (w *WaitingList) Put(pkt packet.Packet) {
	w.byID[pkt.ID] = pkt
}

func (w *WaitingList) Remove(id packet.ID) {
	delete(w.byID, id)
}

func (w *WaitingList) Len() int { return len(w.byID) }

// Snapshot returns a copy of every waiting packet, ordered by packet id
// for deterministic iteration (map iteration order is not stable in Go).
// The list itself is left unchanged; callers Remove the ones they re-queue.
func (w *WaitingList) Snapshot() []packet.Packet {
	out := make([]packet.Packet, 0, len(w.byID))
	for _, p := range w.byID {
		out = append(out, p)
	}
	sortPacketsByID(out)
	return out
}

func sortPacketsByID(pkts []packet.Packet) {
	// Simple insertion sort: waiting lists are small (bounded by routing
	// convergence time, not traffic volume), so O(n^2) is irrelevant and
	// avoids pulling in sort for a handful of string comparisons.
	for i := 1; i < len(pkts); i++ {
		j := i
		for j > 0 && pkts[j-1].ID > pkts[j].ID {
			pkts[j-1], pkts[j] = pkts[j], pkts[j-1]
			j--
		}
	}
}
