package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestSinkAppendAndRecordsReturnsCopy(t *testing.T) {
	s := NewSink()
	s.Append(Record{Kind: KindGenerated, PacketID: "p1"})

	records := s.Records()
	assert.Len(t, records, 1)

	records[0].Kind = "mutated"
	assert.Equal(t, KindGenerated, s.Records()[0].Kind, "Records must return an independent copy")
}

// TestCollectorAggregatesDeliveredStats relies on Collect emitting its nine
// series in the fixed order Describe declares them in.
func TestCollectorAggregatesDeliveredStats(t *testing.T) {
	s := NewSink()
	s.Append(Record{Kind: KindGenerated})
	s.Append(Record{Kind: KindDelivered, DelaySeconds: 0.5, Hops: 2, SizeBits: 800})
	s.Append(Record{Kind: KindDelivered, DelaySeconds: 1.5, Hops: 1, SizeBits: 400})
	s.Append(Record{Kind: KindCollision})
	s.Append(Record{Kind: KindMacFailure})
	s.Append(Record{Kind: KindDroppedTTL})
	s.Append(Record{Kind: KindEnergyExhausted})

	c := NewCollector(s, prometheus.Labels{"run": "test"})
	values := collect(t, c)

	assert.Equal(t, []float64{
		1,   // generated
		2,   // delivered
		1,   // droppedTTL
		1,   // macFailure
		1,   // collisions
		1,   // energyExhausted
		2.0, // delaySeconds sum (0.5 + 1.5)
		3,   // hopCount sum (2 + 1)
		1200, // bytesDelivered sum (800 + 400)
	}, values)
}

func collect(t *testing.T, c prometheus.Collector) []float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var values []float64
	for m := range ch {
		var pb dto.Metric
		assert.NoError(t, m.Write(&pb))
		values = append(values, pb.GetCounter().GetValue())
	}
	return values
}
