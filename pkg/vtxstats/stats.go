// Package vtxstats implements the counters and public snapshot spec.md
// §4.H requires, plus two optional exposition paths grounded on the rest of
// the retrieved pack: a github.com/prometheus/client_golang Collector
// (Collector, in collector.go) and a CBOR debug-snapshot codec. The
// counters themselves are go.uber.org/atomic values so every increment on
// the hot path is a single atomic op, never a lock.
package vtxstats

import "go.uber.org/atomic"

// Stats holds the live, atomically-updated counters for one TX or RX
// instance.
type Stats struct {
	TotalFrames      atomic.Uint64
	TotalIFrames     atomic.Uint64
	TotalPFrames     atomic.Uint64
	TotalPackets     atomic.Uint64
	TotalBytes       atomic.Uint64
	RetransPackets   atomic.Uint64
	LostPackets      atomic.Uint64
	DupPackets       atomic.Uint64
	IncompleteFrames atomic.Uint64
	DroppedFragments atomic.Uint64
}

// Snapshot is an immutable point-in-time copy of Stats, suitable for
// returning from a public GetStats operation, logging, or CBOR export.
type Snapshot struct {
	TotalFrames      uint64  `cbor:"total_frames"`
	TotalIFrames     uint64  `cbor:"total_i_frames"`
	TotalPFrames     uint64  `cbor:"total_p_frames"`
	TotalPackets     uint64  `cbor:"total_packets"`
	TotalBytes       uint64  `cbor:"total_bytes"`
	RetransPackets   uint64  `cbor:"retrans_packets"`
	LostPackets      uint64  `cbor:"lost_packets"`
	DupPackets       uint64  `cbor:"dup_packets"`
	IncompleteFrames uint64  `cbor:"incomplete_frames"`
	DroppedFragments uint64  `cbor:"dropped_fragments"`
	RetransRate      float64 `cbor:"retrans_rate"`
	LossRate         float64 `cbor:"loss_rate"`
}

// IncFrame records a completed/sent frame by type (I/P or other media).
func (s *Stats) IncFrame(isI, isP bool) {
	s.TotalFrames.Inc()
	if isI {
		s.TotalIFrames.Inc()
	}
	if isP {
		s.TotalPFrames.Inc()
	}
}

// IncPacket records one packet of n bytes crossing the wire (either
// direction).
func (s *Stats) IncPacket(n int) {
	s.TotalPackets.Inc()
	s.TotalBytes.Add(uint64(n))
}

// IncRetrans records one retransmitted packet.
func (s *Stats) IncRetrans() { s.RetransPackets.Inc() }

// IncLost records n packets inferred lost by a sequence-number gap.
func (s *Stats) IncLost(n uint64) { s.LostPackets.Add(n) }

// IncDup records one duplicate fragment or packet.
func (s *Stats) IncDup() { s.DupPackets.Inc() }

// IncIncomplete records one frame reaped before completion.
func (s *Stats) IncIncomplete() { s.IncompleteFrames.Inc() }

// IncDroppedFragment records one fragment abandoned after exhausting its
// retransmission budget.
func (s *Stats) IncDroppedFragment() { s.DroppedFragments.Inc() }

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() Snapshot {
	packets := s.TotalPackets.Load()
	retrans := s.RetransPackets.Load()
	lost := s.LostPackets.Load()

	snap := Snapshot{
		TotalFrames:      s.TotalFrames.Load(),
		TotalIFrames:     s.TotalIFrames.Load(),
		TotalPFrames:     s.TotalPFrames.Load(),
		TotalPackets:     packets,
		TotalBytes:       s.TotalBytes.Load(),
		RetransPackets:   retrans,
		LostPackets:      lost,
		DupPackets:       s.DupPackets.Load(),
		IncompleteFrames: s.IncompleteFrames.Load(),
		DroppedFragments: s.DroppedFragments.Load(),
	}
	if packets > 0 {
		snap.RetransRate = float64(retrans) / float64(packets)
		snap.LossRate = float64(lost) / float64(packets+lost)
	}
	return snap
}
