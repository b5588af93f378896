package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/aeromesh/aeromesh/internal/vtime"
)

func TestRunOrdersByTimeThenInsertion(t *testing.T) {
	s := New()
	var order []string

	s.Schedule(vtime.FromSeconds(2), func() { order = append(order, "b") })
	s.Schedule(vtime.FromSeconds(1), func() { order = append(order, "a") })
	s.Schedule(vtime.FromSeconds(1), func() { order = append(order, "a2") })
	s.Schedule(vtime.FromSeconds(3), func() { order = append(order, "c") })

	s.Run(vtime.FromSeconds(10))

	assert.Equal(t, []string{"a", "a2", "b", "c"}, order)
}

func TestCancelSkipsTask(t *testing.T) {
	s := New()
	ran := false
	h := s.Schedule(vtime.FromSeconds(1), func() { ran = true })
	h.Cancel()

	s.Run(vtime.FromSeconds(10))

	assert.False(t, ran)
}

func TestScheduleAtClampsToNow(t *testing.T) {
	s := New()
	s.Run(vtime.FromSeconds(5))
	ran := false
	s.ScheduleAt(vtime.Zero.Add(vtime.FromSeconds(1)), func() { ran = true })
	s.Run(vtime.FromSeconds(6))
	assert.True(t, ran)
}

func TestRunStopsAtDeadline(t *testing.T) {
	s := New()
	ran := false
	s.Schedule(vtime.FromSeconds(100), func() { ran = true })

	s.Run(vtime.FromSeconds(10))

	assert.False(t, ran)
	assert.Equal(t, vtime.FromSeconds(10), s.Now().Sub(vtime.Zero))
	assert.True(t, s.Pending())
}

func TestStopDropsPendingEvents(t *testing.T) {
	s := New()
	s.Schedule(vtime.FromSeconds(1), func() {})
	s.Stop()
	assert.False(t, s.Pending())
}

// TestDeterministicReplay checks that running the same sequence of
// schedule calls against two fresh schedulers always produces the same
// fire order, the property the resolver and MAC state machines depend
// on for reproducible runs.
func TestDeterministicReplay(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		delays := rapid.SliceOfN(rapid.IntRange(0, 50), 1, 20).Draw(t, "delays")

		run := func() []int {
			s := New()
			var order []int
			for i, d := range delays {
				i := i
				s.Schedule(vtime.FromSeconds(float64(d)), func() { order = append(order, i) })
			}
			s.Run(vtime.FromSeconds(1000))
			return order
		}

		assert.Equal(t, run(), run())
	})
}
