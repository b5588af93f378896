package phy

import (
	"math"

	"github.com/golang/geo/r3"
)

// PathLossModel computes the power (in watts) a receiver at receiverPos
// observes for a transmission sent at txPower watts from senderPos. It is
// shared between the channel's admission policy (§4.2) and the inbox
// resolver's SINR computation (§4.3) so both layers of large-scale fading
// agree with each other.
type PathLossModel interface {
	ReceivedPower(txPower float64, senderPos, receiverPos r3.Vector) float64
}

// FreeSpace implements the standard log-distance path loss model:
//
//	Pr = Pt * (d0 / d)^n
//
// clamped at the reference distance so collocated nodes don't divide by
// zero or report power in excess of the transmit power.
type FreeSpace struct {
	// Exponent is the path loss exponent n; 2.0 is free-space, larger
	// values model obstructed/urban aerial corridors.
	Exponent float64
	// ReferenceDistance d0, in meters, below which the model saturates at
	// the transmit power.
	ReferenceDistance float64
}

func (m FreeSpace) ReceivedPower(txPower float64, senderPos, receiverPos r3.Vector) float64 {
	d := senderPos.Sub(receiverPos).Norm()
	d0 := m.ReferenceDistance
	if d0 <= 0 {
		d0 = 1.0
	}
	if d < d0 {
		d = d0
	}
	return txPower * math.Pow(d0/d, m.Exponent)
}

// AlwaysStrong is a degenerate model used by the LoS channel variant, where
// every in-range receiver is treated as receiving the full transmit power
// regardless of distance.
type AlwaysStrong struct{}

func (AlwaysStrong) ReceivedPower(txPower float64, _, _ r3.Vector) float64 {
	return txPower
}
