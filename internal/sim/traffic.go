package sim

import (
	"math"

	"github.com/aeromesh/aeromesh/internal/config"
	"github.com/aeromesh/aeromesh/internal/metrics"
	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// scheduleTraffic arms the traffic generator for every configured
// session: one recurring arrival process per session, running from its
// start offset to its stop offset.
func (s *Simulator) scheduleTraffic() {
	for i := range s.cfg.Sessions {
		sess := s.cfg.Sessions[i]
		flow := packet.FlowID(sess.Source + "->" + sess.Destination)
		s.sched.Schedule(vtime.FromSeconds(sess.StartAt), func() {
			s.emitArrival(sess, flow)
		})
	}
}

// emitArrival generates one Data packet for sess (if its source node
// exists and the stop deadline hasn't passed), then schedules the next
// arrival per the configured inter-arrival process.
func (s *Simulator) emitArrival(sess config.Session, flow packet.FlowID) {
	now := s.sched.Now()
	if sess.StopAt > 0 && now.Sub(vtime.Zero).Seconds() >= sess.StopAt {
		return
	}

	src, ok := s.nodes[packet.NodeID(sess.Source)]
	if ok {
		pkt := packet.Packet{
			ID:          packet.NewID(),
			Kind:        packet.KindData,
			Mode:        sessionMode(sess.Mode),
			Destination: packet.NodeID(sess.Destination),
			Flow:        flow,
			SizeBits:    sess.SizeBits,
		}
		src.Inject(pkt)
		s.sink.Append(metrics.Record{
			Kind:     metrics.KindGenerated,
			PacketID: pkt.ID,
			FlowID:   flow,
			Now:      now,
			SizeBits: sess.SizeBits,
		})
	}

	next := s.nextInterArrival(sess)
	s.sched.Schedule(next, func() {
		s.emitArrival(sess, flow)
	})
}

func sessionMode(m string) packet.Mode {
	switch m {
	case "broadcast":
		return packet.ModeBroadcast
	case "multicast":
		return packet.ModeMulticast
	default:
		return packet.ModeUnicast
	}
}

// nextInterArrival draws the delay until the session's next packet,
// either a fixed-mean uniform spread or a Poisson process's exponential
// inter-arrival time, per the configured arrival process.
func (s *Simulator) nextInterArrival(sess config.Session) vtime.Duration {
	mean := 1.0 / sess.RateHz
	if sess.Arrival == "poisson" {
		u := s.rng.Float64()
		if u <= 0 {
			u = 1e-9
		}
		return vtime.FromSeconds(-math.Log(u) * mean)
	}
	// Uniform: spread evenly over [0, 2*mean) so the long-run rate still
	// matches RateHz.
	return vtime.FromSeconds(s.rng.Float64() * 2 * mean)
}
