// Package framepool implements the reference-counted frame objects and the
// pools that back them: a media pool (512 KiB buffers), a control pool
// (128 B buffers), and the bitmap/descriptor sub-pools a frame's
// reassembly-or-retransmission state is returned to on release. Grounded on
// the teacher's lock-protected Session maps (source/protocol/raknet.go) and
// on original_source/src/vtx_mem.c's "retain the buffer, don't zero it"
// discipline.
package framepool

import (
	"go.uber.org/atomic"

	"github.com/rs/xid"
	"vtxgo/pkg/fragment"
	"vtxgo/pkg/wire"
)

// State is a Frame's lifecycle state.
type State int

const (
	StateFree State = iota
	StateReceiving
	StateComplete
	StateSending
)

// Frame is a reusable, reference-counted buffer plus either receiver-side
// reassembly state or sender-side retransmission state — never both at
// once, per spec.md §3's invariant.
type Frame struct {
	TraceID xid.ID // debug-only correlation id, never on the wire

	FrameID    uint16
	FrameType  wire.FrameType
	TotalFrags uint16

	Data []byte // fixed capacity, reused across acquire/release cycles
	Size int    // filled bytes

	Reassembly *fragment.Bitmap          // receiver use only
	Retrans    *fragment.DescriptorArray // sender use only, protected frames

	FirstRecvMS  int64
	LastRecvMS   int64
	SendTimeMS   int64
	RetransCount int

	State State

	refcount atomic.Int32
	pool     *Pool
}

// RecvFrags reports how many fragments have arrived so far, reading through
// to the reassembly bitmap; 0 if this frame has no bitmap installed.
func (f *Frame) RecvFrags() uint16 {
	if f.Reassembly == nil {
		return 0
	}
	return uint16(f.Reassembly.Received())
}

// Retain increments the reference count. Safe for concurrent use.
func (f *Frame) Retain() {
	f.refcount.Inc()
}

// Release decrements the reference count; on the 1->0 transition it keeps
// Data allocated and pushes the frame back onto its pool's free list exactly
// once. It does not return the frame's reassembly bitmap or descriptor array
// to a sub-pool: Manager.ReleaseReassembly and Manager.ReleaseProtectedSend
// do that before dropping the reference.
func (f *Frame) Release() {
	if f.refcount.Dec() == 0 {
		f.pool.reclaim(f)
	}
}

// RefCount returns the current reference count (for tests/diagnostics).
func (f *Frame) RefCount() int32 {
	return f.refcount.Load()
}
