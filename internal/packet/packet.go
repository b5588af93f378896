// Package packet defines the wire-level data model shared across every
// layer of the stack: packet variants, identities, and the inbox
// transmission record (spec §3).
package packet

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/rs/xid"

	"github.com/aeromesh/aeromesh/internal/vtime"
)

// NodeID identifies a drone node. Node ids are assigned by the simulator
// harness at construction and are stable for the lifetime of a run.
type NodeID string

// FlowID identifies an application-layer session a data packet belongs to.
type FlowID string

// ID is a packet's unique identity, generated once at creation and carried
// unchanged through every hop and every retransmission.
type ID string

// NewID mints a fresh globally-unique packet id.
func NewID() ID {
	return ID(xid.New().String())
}

// Kind is the packet variant discriminator from spec §3.
type Kind int

const (
	KindData Kind = iota
	KindControl
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindControl:
		return "control"
	case KindAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Mode is the packet's transmission mode.
type Mode int

const (
	ModeUnicast Mode = iota
	ModeMulticast
	ModeBroadcast
)

func (m Mode) String() string {
	switch m {
	case ModeUnicast:
		return "unicast"
	case ModeMulticast:
		return "multicast"
	case ModeBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Packet is the common envelope for every variant described in spec §3.
// Data- and Ack-specific fields are zero-valued on the variants that don't
// use them.
type Packet struct {
	ID      ID
	Kind    Kind
	Mode    Mode
	Source  NodeID
	// CurrentHop is the id of the node that currently holds the packet for
	// forwarding; it changes as the packet is relayed.
	CurrentHop NodeID
	Created    vtime.Time
	SizeBits   int
	TTL        int
	Retries    int

	// Data-only.
	Destination NodeID
	Flow        FlowID
	Seq         uint64
	// Hops counts relays since origination, for delivery metrics; it
	// starts at zero and is incremented once per forward.
	Hops int

	// Ack-only.
	AckFor ID
	Target NodeID

	// Recipients restricts delivery for unicast/multicast sends; the
	// channel's broadcast-mode fan-out ignores this and targets every
	// node in range (spec §4.2).
	Recipients []NodeID
}

func (p Packet) String() string {
	return fmt.Sprintf("%s[%s %s->%s ttl=%d retries=%d]", p.Kind, p.ID, p.Source, p.CurrentHop, p.TTL, p.Retries)
}

// Clone returns a shallow copy safe to mutate independently (e.g. to
// decrement TTL when forwarding) without perturbing any other holder's
// view of the original packet.
func (p Packet) Clone() Packet {
	clone := p
	if len(p.Recipients) > 0 {
		clone.Recipients = append([]NodeID(nil), p.Recipients...)
	}
	return clone
}

// TransmissionRecord is an inbox entry: a snapshot of one node's view of a
// single over-the-air transmission, used by carrier sense and the
// collision resolver (spec §3, §4.3).
type TransmissionRecord struct {
	Packet      Packet
	Sender      NodeID
	TransmitPow float64 // watts
	MCS         MCS
	Start       vtime.Time
	End         vtime.Time
	SenderPos   r3.Vector

	// delivered/resolved are set once the resolver has made its call on
	// this record, so a record is never re-evaluated.
	Resolved  bool
	Delivered bool
}

// Overlaps reports whether the two records' air-time intervals share at
// least one instant, using inclusive interval intersection per §5.
func (r TransmissionRecord) Overlaps(other TransmissionRecord) bool {
	return r.Start <= other.End && other.Start <= r.End
}
