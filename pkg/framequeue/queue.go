// Package framequeue implements the ordered, frame_id-keyed queues used by
// the receiver's reassembly queue and the sender's reliable-control queue:
// push-tail, pop-head, find-by-frame-id (linear scan), remove, and
// timeout-based reaping. Grounded on the teacher's Session.SendQueue /
// Session.RecoveryQueue handling (source/protocol/raknet.go), generalized
// from a plain slice to a single-lock-per-queue container keyed by
// frame_id.
package framequeue

import (
	"sync"

	"vtxgo/pkg/framepool"
)

// Queue is an insertion-ordered, frame_id-keyed list of *framepool.Frame.
// Push retains the frame (increments its refcount); Pop does not adjust the
// refcount (the caller takes ownership); Remove releases the queue's
// retain. All operations are serialized by a single lock.
type Queue struct {
	mu    sync.Mutex
	items []*framepool.Frame
}

// New constructs an empty queue.
func New() *Queue { return &Queue{} }

// PushTail appends f, retaining a reference on its behalf.
func (q *Queue) PushTail(f *framepool.Frame) {
	f.Retain()
	q.mu.Lock()
	q.items = append(q.items, f)
	q.mu.Unlock()
}

// PopHead removes and returns the oldest entry, or nil if the queue is
// empty. The queue's retain transfers to the caller; it does not release.
func (q *Queue) PopHead() *framepool.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	f := q.items[0]
	q.items = q.items[1:]
	return f
}

// FindByFrameID linearly scans for the entry with the given frame_id,
// returning nil if absent. Bounded by the number of outstanding frames, so
// the O(n) scan is acceptable per spec.md §3.
func (q *Queue) FindByFrameID(frameID uint16) *framepool.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, f := range q.items {
		if f.FrameID == frameID {
			return f
		}
	}
	return nil
}

// Remove deletes the entry with the given frame_id, if present, and
// releases the queue's retain on it. Reports whether an entry was removed.
func (q *Queue) Remove(frameID uint16) bool {
	q.mu.Lock()
	var removed *framepool.Frame
	for i, f := range q.items {
		if f.FrameID == frameID {
			removed = f
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	if removed != nil {
		removed.Release()
		return true
	}
	return false
}

// ReapTimeouts walks the queue and removes (releasing the retain on) every
// frame whose FirstRecvMS predates now-timeoutMS, invoking onReap for each
// one before its reference is dropped. Returns the count reaped.
func (q *Queue) ReapTimeouts(nowMS, timeoutMS int64, onReap func(*framepool.Frame)) int {
	q.mu.Lock()
	var kept []*framepool.Frame
	var reaped []*framepool.Frame
	cutoff := nowMS - timeoutMS
	for _, f := range q.items {
		if f.FirstRecvMS < cutoff {
			reaped = append(reaped, f)
		} else {
			kept = append(kept, f)
		}
	}
	q.items = kept
	q.mu.Unlock()

	for _, f := range reaped {
		if onReap != nil {
			onReap(f)
		}
		f.Release()
	}
	return len(reaped)
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the current items slice for read-only
// iteration (e.g. a poll loop scanning the reliable-control queue for
// retransmission without holding the lock across socket I/O).
func (q *Queue) Snapshot() []*framepool.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*framepool.Frame, len(q.items))
	copy(out, q.items)
	return out
}
