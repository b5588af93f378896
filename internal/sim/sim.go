// Package sim assembles the simulator harness from spec §6: constructs
// the scheduler, channels, and drone nodes from a validated config,
// drives the traffic generator, and runs the event loop to completion.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aeromesh/aeromesh/internal/config"
	"github.com/aeromesh/aeromesh/internal/energy"
	"github.com/aeromesh/aeromesh/internal/mac"
	"github.com/aeromesh/aeromesh/internal/metrics"
	"github.com/aeromesh/aeromesh/internal/mobility"
	"github.com/aeromesh/aeromesh/internal/node"
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/phy"
	"github.com/aeromesh/aeromesh/internal/routing"
	"github.com/aeromesh/aeromesh/internal/scheduler"
	"github.com/aeromesh/aeromesh/internal/simlog"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Simulator owns every piece of one run: the event scheduler, the
// channels nodes share, the nodes themselves, the traffic generator
// state, and the metrics sink.
type Simulator struct {
	cfg    *config.Config
	sched  *scheduler.Scheduler
	log    *simlog.Logger
	rng    *rand.Rand
	mcs    packet.MCS

	channels map[string]*phy.Channel
	nodes    map[packet.NodeID]*node.Node

	sink      *metrics.Sink
	collector *metrics.Collector
}

// New builds every component from cfg but does not start the run; call
// Run to drain the event queue.
func New(cfg *config.Config, log *simlog.Logger) (*Simulator, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	mcs := packet.MCSRobust
	if cfg.MCS == "fast" {
		mcs = packet.MCSFast
	}

	sink := metrics.NewSink()

	s := &Simulator{
		cfg:       cfg,
		sched:     scheduler.New(),
		log:       log,
		rng:       rng,
		mcs:       mcs,
		channels:  make(map[string]*phy.Channel),
		nodes:     make(map[packet.NodeID]*node.Node),
		sink:      sink,
		collector: metrics.NewCollector(sink, prometheus.Labels{"seed": fmt.Sprintf("%d", cfg.Seed)}),
	}

	for _, ch := range cfg.Channels {
		policy, err := buildPolicy(ch, rng)
		if err != nil {
			return nil, err
		}
		s.channels[ch.Name] = phy.NewChannel(policy)
	}

	// Every node currently shares the first configured channel; multiple
	// radio groups would wire a per-node channel lookup here, but a
	// single shared medium covers every scenario spec §8 describes.
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("sim: no channels configured")
	}
	primaryChannel := s.channels[cfg.Channels[0].Name]
	txPower := cfg.Channels[0].TxPowerW
	noise := cfg.Channels[0].NoiseFloor

	macCfg := mac.Config{
		DIFS:            cfg.MACConfig.DIFS(),
		SIFS:            cfg.MACConfig.SIFS(),
		SlotTime:        cfg.MACConfig.SlotTime(),
		CWMin:           cfg.MACConfig.CWMin,
		CWMax:           cfg.MACConfig.CWMax,
		RetryLimit:      cfg.MACConfig.RetryLimit,
		AckSizeBits:     cfg.MACConfig.AckSizeBits,
		AckSlack:        cfg.MACConfig.AckSlack(),
		AlohaRetryScale: cfg.MACConfig.AlohaRetryScale,
		ResolverSlack:   cfg.ResolverTick() * 2,
	}

	for _, nc := range cfg.Nodes {
		id := packet.NodeID(nc.ID)
		s.nodes[id] = node.New(s.sched, node.Config{
			ID:           id,
			Mobility:     buildMobility(nc),
			Energy:       buildEnergy(nc),
			Router:       buildRouter(nc),
			Channel:      primaryChannel,
			PathLoss:     buildResolverPathLoss(cfg.Channels[0]),
			Noise:        noise,
			ResolverTick: cfg.ResolverTick(),
			MaxAirTime:   cfg.MaxAirTime(),
			FeedInterval: cfg.FeedInterval(),
			TTLDefault:   cfg.TTLDefault,
			OnDelivered:  s.onDelivered,
			OnEvent:      s.onEvent,
			MAC:          cfg.MACConfig.Protocol,
			MACConfig:    macCfg,
			TxPower:      txPower,
			MCS:          mcs,
			Rng:          rand.New(rand.NewSource(rng.Int63())),
		})
	}

	s.scheduleTraffic()

	return s, nil
}

func buildPolicy(ch config.Channel, rng *rand.Rand) (phy.Policy, error) {
	switch ch.Policy {
	case "los":
		return phy.LoS{}, nil
	case "probabilistic":
		return &phy.Probabilistic{LossProb: ch.LossProb, Rng: rand.New(rand.NewSource(rng.Int63()))}, nil
	case "range":
		return phy.RangePathLoss{
			Model:       phy.FreeSpace{Exponent: pathLossExponent(ch), ReferenceDistance: refDistance(ch)},
			Sensitivity: ch.Sensitivity,
		}, nil
	default:
		return nil, fmt.Errorf("sim: unknown channel policy %q", ch.Policy)
	}
}

func buildResolverPathLoss(ch config.Channel) phy.PathLossModel {
	if ch.Policy == "los" {
		return phy.AlwaysStrong{}
	}
	return phy.FreeSpace{Exponent: pathLossExponent(ch), ReferenceDistance: refDistance(ch)}
}

func pathLossExponent(ch config.Channel) float64 {
	if ch.PathLossExp <= 0 {
		return 2.0
	}
	return ch.PathLossExp
}

func refDistance(ch config.Channel) float64 {
	if ch.RefDistance <= 0 {
		return 1.0
	}
	return ch.RefDistance
}

func buildMobility(nc config.Node) mobility.Provider {
	start := r3.Vector{X: nc.X, Y: nc.Y, Z: nc.Z}
	if nc.Mobility == "waypoint" {
		return mobility.LinearWaypoint{
			Start:    start,
			Velocity: r3.Vector{X: nc.Vx, Y: nc.Vy, Z: nc.Vz},
			StartAt:  vtime.Zero,
		}
	}
	return mobility.Static{Pos: start}
}

func buildEnergy(nc config.Node) energy.Provider {
	if nc.Energy == "linear" {
		capacity := nc.EnergyCapacityJ
		if capacity <= 0 {
			capacity = 1e6
		}
		perBit := nc.EnergyJoulesPerBit
		if perBit <= 0 {
			perBit = 1e-6
		}
		flight := nc.EnergyFlightWatts
		if flight <= 0 {
			flight = 5.0
		}
		return energy.NewLinear(capacity, perBit, flight)
	}
	return energy.Unlimited{}
}

func buildRouter(nc config.Node) routing.Router {
	if nc.Routing == "static" {
		return routing.NewStatic()
	}
	return routing.NewFlood()
}

// onDelivered is every node's DeliveredFunc: it records the packet's
// end-to-end delay, hop count, and size into the metrics sink.
func (s *Simulator) onDelivered(pkt packet.Packet, now vtime.Time) {
	s.sink.Append(metrics.Record{
		Kind:         metrics.KindDelivered,
		PacketID:     pkt.ID,
		FlowID:       pkt.Flow,
		Now:          now,
		DelaySeconds: now.Sub(pkt.Created).Seconds(),
		Hops:         pkt.Hops,
		SizeBits:     pkt.SizeBits,
	})
}

// onEvent is every node's OnEvent hook: collisions, MAC failures,
// energy exhaustion, and TTL drops all land here as bare sink records.
func (s *Simulator) onEvent(kind string, pkt packet.Packet, now vtime.Time) {
	s.sink.Append(metrics.Record{
		Kind:     kind,
		PacketID: pkt.ID,
		FlowID:   pkt.Flow,
		Now:      now,
	})
}

// Run drains the event queue until the configured duration elapses.
func (s *Simulator) Run() {
	s.sched.Run(s.cfg.Duration())
}

// Metrics exposes the run's append-only sink and Prometheus collector.
func (s *Simulator) Metrics() (*metrics.Sink, *metrics.Collector) {
	return s.sink, s.collector
}

// Node looks up a constructed node by id, for tests and scenario setup
// that inject traffic directly.
func (s *Simulator) Node(id packet.NodeID) (*node.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}
