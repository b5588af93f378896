// Package mobility defines the mobility plug-in interface from spec §6
// and ships two deterministic reference implementations. Specific
// mobility models (Gauss-Markov, random walk/waypoint) are out of scope
// per spec §1 and plug in externally through this interface.
package mobility

import (
	"github.com/golang/geo/r3"

	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Provider is the mobility plug-in interface: a read-only, purely
// deterministic position function of virtual time (spec §6). The
// position_update_interval tick named in §6 is a hook for models that
// need to advance discrete internal state (e.g. redrawing a random walk
// target); the two reference implementations here are closed-form
// functions of time and need no ticking.
type Provider interface {
	Position(now vtime.Time) r3.Vector
}

// Static never moves.
type Static struct {
	Pos r3.Vector
}

func (s Static) Position(vtime.Time) r3.Vector { return s.Pos }

// LinearWaypoint moves at a constant velocity from a start position and
// start time, the simplest deterministic motion model: position is a
// closed-form function of elapsed virtual time, so no per-tick state
// mutation is needed to stay reproducible under replay.
type LinearWaypoint struct {
	Start    r3.Vector
	Velocity r3.Vector // meters per second
	StartAt  vtime.Time
}

func (l LinearWaypoint) Position(now vtime.Time) r3.Vector {
	elapsed := now.Sub(l.StartAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return l.Start.Add(l.Velocity.Mul(elapsed))
}
