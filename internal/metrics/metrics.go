// Package metrics implements the two observability surfaces spec §6
// names: an append-only per-event record sink (packet generated,
// delivered, dropped, collided, ...) and a Prometheus collector exposing
// aggregate counters derived from those events: one count per record
// kind, plus the summed delay, hop count and bits of delivered packets.
// Ratios such as PDR are not computed here.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Record is one append-only entry in the metrics sink (spec §6: "kind,
// packet_id, flow_id, now, extra"). DelaySeconds/Hops/SizeBits are only
// meaningful on KindDelivered records; Extra carries anything else
// worth keeping (e.g. which node observed the event) without widening
// this struct for every future kind.
type Record struct {
	Kind         string
	PacketID     packet.ID
	FlowID       packet.FlowID
	Now          vtime.Time
	DelaySeconds float64
	Hops         int
	SizeBits     int
	Extra        map[string]string
}

// Sink accumulates Records for the lifetime of a run. It never drops or
// rewrites an entry; callers needing summaries read Records() once the
// run is over.
type Sink struct {
	mu      sync.Mutex
	records []Record
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records returns a copy of every record appended so far.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

const (
	KindGenerated       = "generated"
	KindDelivered       = "delivered"
	KindDroppedTTL      = "dropped_ttl"
	KindMacFailure      = "mac_failure"
	KindCollision       = "collision"
	KindEnergyExhausted = "energy_exhausted"
)

// Collector exposes the sink's aggregate statistics as Prometheus
// metrics, following the same Describe/Collect shape as a counter-table
// collector: one prometheus.Desc per series, one Collect pass that
// replays the whole sink (cheap at simulator scale; this is an
// end-of-run/periodic scrape, not a hot path).
type Collector struct {
	sink *Sink

	generated       *prometheus.Desc
	delivered       *prometheus.Desc
	droppedTTL      *prometheus.Desc
	macFailure      *prometheus.Desc
	collisions      *prometheus.Desc
	energyExhausted *prometheus.Desc
	delaySeconds    *prometheus.Desc
	hopCount        *prometheus.Desc
	bytesDelivered  *prometheus.Desc
}

// NewCollector builds a Collector reading from sink. constLabels carries
// run-identifying labels (e.g. scenario name, seed) that are constant
// across every series this collector exposes.
func NewCollector(sink *Sink, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("aeromesh_"+name, help, nil, constLabels)
	}
	return &Collector{
		sink:            sink,
		generated:       desc("packets_generated_total", "Data packets originated by the traffic generator."),
		delivered:       desc("packets_delivered_total", "Data packets that reached their destination."),
		droppedTTL:      desc("packets_dropped_ttl_total", "Packets dropped after their TTL reached zero."),
		macFailure:      desc("mac_failures_total", "MAC-layer transmissions that exhausted their retry limit."),
		collisions:      desc("collisions_total", "Transmission records the resolver judged below the SINR threshold."),
		energyExhausted: desc("energy_exhausted_total", "Transmission attempts abandoned for lack of energy."),
		delaySeconds:    desc("delivery_delay_seconds_sum", "Sum of end-to-end delay over delivered packets, in seconds."),
		hopCount:        desc("delivery_hop_count_sum", "Sum of hop counts over delivered packets."),
		bytesDelivered:  desc("bytes_delivered_total", "Total payload bits delivered, counted in bits."),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.generated
	descs <- c.delivered
	descs <- c.droppedTTL
	descs <- c.macFailure
	descs <- c.collisions
	descs <- c.energyExhausted
	descs <- c.delaySeconds
	descs <- c.hopCount
	descs <- c.bytesDelivered
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var generated, delivered, droppedTTL, macFailure, collisions, energyExhausted float64
	var delaySum, hopSum, bitsSum float64

	for _, r := range c.sink.Records() {
		switch r.Kind {
		case KindGenerated:
			generated++
		case KindDelivered:
			delivered++
			delaySum += r.DelaySeconds
			hopSum += float64(r.Hops)
			bitsSum += float64(r.SizeBits)
		case KindDroppedTTL:
			droppedTTL++
		case KindMacFailure:
			macFailure++
		case KindCollision:
			collisions++
		case KindEnergyExhausted:
			energyExhausted++
		}
	}

	ch <- prometheus.MustNewConstMetric(c.generated, prometheus.CounterValue, generated)
	ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, delivered)
	ch <- prometheus.MustNewConstMetric(c.droppedTTL, prometheus.CounterValue, droppedTTL)
	ch <- prometheus.MustNewConstMetric(c.macFailure, prometheus.CounterValue, macFailure)
	ch <- prometheus.MustNewConstMetric(c.collisions, prometheus.CounterValue, collisions)
	ch <- prometheus.MustNewConstMetric(c.energyExhausted, prometheus.CounterValue, energyExhausted)
	ch <- prometheus.MustNewConstMetric(c.delaySeconds, prometheus.CounterValue, delaySum)
	ch <- prometheus.MustNewConstMetric(c.hopCount, prometheus.CounterValue, hopSum)
	ch <- prometheus.MustNewConstMetric(c.bytesDelivered, prometheus.CounterValue, bitsSum)
}
