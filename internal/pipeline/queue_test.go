package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeromesh/aeromesh/internal/packet"
)

func TestQueueFIFOOrder(t *testing.T) {
	var q Queue
	q.Push(packet.Packet{ID: "1"})
	q.Push(packet.Packet{ID: "2"})

	p, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, packet.ID("1"), p.ID)

	p, ok = q.Peek()
	assert.True(t, ok)
	assert.Equal(t, packet.ID("2"), p.ID)
	assert.Equal(t, 1, q.Len())
}

func TestQueuePopEmptyReportsFalse(t *testing.T) {
	var q Queue
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueFiresNotEmptyOnlyOnTransitionFromEmpty(t *testing.T) {
	var q Queue
	fires := 0
	q.NotEmpty.Wait(func() { fires++ })

	q.Push(packet.Packet{ID: "1"})
	assert.Equal(t, 1, fires)

	q.NotEmpty.Wait(func() { fires++ })
	q.Push(packet.Packet{ID: "2"})
	assert.Equal(t, 1, fires, "NotEmpty only fires the transition out of empty, not every push")
}

func TestWaitingListSnapshotIsOrderedAndClearsOnRemove(t *testing.T) {
	w := NewWaitingList()
	w.Put(packet.Packet{ID: "b"})
	w.Put(packet.Packet{ID: "a"})
	w.Put(packet.Packet{ID: "c"})

	snap := w.Snapshot()
	assert.Equal(t, []packet.ID{"a", "b", "c"}, []packet.ID{snap[0].ID, snap[1].ID, snap[2].ID})

	w.Remove("b")
	assert.Equal(t, 2, w.Len())
}
