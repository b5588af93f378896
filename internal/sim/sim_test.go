package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeromesh/aeromesh/internal/config"
	"github.com/aeromesh/aeromesh/internal/metrics"
	"github.com/aeromesh/aeromesh/internal/simlog"
)

func twoNodeConfig() *config.Config {
	cfg := &config.Config{
		Seed:      1,
		DurationS: 2,
		MCS:       "robust",
		TTLDefault: 4,
		Channels: []config.Channel{
			{Name: "c1", Policy: "los", NoiseFloor: 0.01, TxPowerW: 1.0},
		},
		Nodes: []config.Node{
			{ID: "a"},
			{ID: "b"},
		},
		Sessions: []config.Session{
			{Source: "a", Destination: "b", Mode: "unicast", SizeBits: 800, RateHz: 10, Arrival: "uniform", StartAt: 0, StopAt: 1},
		},
		MACConfig: config.MAC{
			Protocol:        "csmaca",
			DIFSUs:          50,
			SIFSUs:          20,
			SlotTimeUs:      10,
			CWMin:           4,
			CWMax:           64,
			RetryLimit:      3,
			AckSizeBits:     64,
			AckSlackUs:      10,
			AlohaRetryScale: 2,
		},
	}
	cfg.ResolverTickUs = 10
	cfg.MaxAirTimeUs = 100_000
	cfg.FeedIntervalUs = 50
	return cfg
}

func TestSimulatorRunDeliversGeneratedTraffic(t *testing.T) {
	cfg := twoNodeConfig()
	s, err := New(cfg, simlog.Default())
	assert.NoError(t, err)

	s.Run()

	sink, _ := s.Metrics()
	records := sink.Records()

	var generated, delivered int
	for _, r := range records {
		switch r.Kind {
		case metrics.KindGenerated:
			generated++
		case metrics.KindDelivered:
			delivered++
		}
	}

	assert.Greater(t, generated, 0, "traffic generator must have produced at least one packet")
	assert.Greater(t, delivered, 0, "a two-node LoS channel with a short hop should deliver at least one packet")
	assert.LessOrEqual(t, delivered, generated)
}

func TestSimulatorRejectsUnknownChannelPolicy(t *testing.T) {
	cfg := twoNodeConfig()
	cfg.Channels[0].Policy = "bogus"

	_, err := New(cfg, simlog.Default())

	assert.Error(t, err)
}

func TestSimulatorNodeLookup(t *testing.T) {
	cfg := twoNodeConfig()
	s, err := New(cfg, simlog.Default())
	assert.NoError(t, err)

	n, ok := s.Node("a")
	assert.True(t, ok)
	assert.Equal(t, "a", string(n.ID))

	_, ok = s.Node("ghost")
	assert.False(t, ok)
}
