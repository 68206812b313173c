package framequeue

import (
	"testing"

	"vtxgo/pkg/framepool"
)

func TestPushPopOrder(t *testing.T) {
	pool := framepool.NewPool(framepool.ControlCapacity)
	q := New()

	f1 := pool.Acquire()
	f1.FrameID = 1
	f2 := pool.Acquire()
	f2.FrameID = 2
	q.PushTail(f1)
	q.PushTail(f2)

	got := q.PopHead()
	if got.FrameID != 1 {
		t.Fatalf("PopHead returned frame_id=%d, want 1", got.FrameID)
	}
	got.Release() // caller owns the popped reference
	f1.Release()  // drop the acquire-time reference too

	got = q.PopHead()
	if got.FrameID != 2 {
		t.Fatalf("PopHead returned frame_id=%d, want 2", got.FrameID)
	}
	got.Release()
	f2.Release()

	if q.PopHead() != nil {
		t.Fatal("expected empty queue")
	}
}

func TestFindAndRemove(t *testing.T) {
	pool := framepool.NewPool(framepool.ControlCapacity)
	q := New()

	f := pool.Acquire()
	f.FrameID = 42
	q.PushTail(f)

	found := q.FindByFrameID(42)
	if found == nil || found.FrameID != 42 {
		t.Fatal("FindByFrameID failed to locate entry")
	}

	if !q.Remove(42) {
		t.Fatal("Remove reported not-found for an existing entry")
	}
	if q.FindByFrameID(42) != nil {
		t.Fatal("entry still present after Remove")
	}
	f.Release() // drop the acquire-time reference

	_, free := pool.Stats()
	if free != 1 {
		t.Fatalf("pool free=%d, want 1 after queue released its retain", free)
	}
}

func TestReapTimeouts(t *testing.T) {
	pool := framepool.NewPool(framepool.ControlCapacity)
	q := New()

	stale := pool.Acquire()
	stale.FrameID = 1
	stale.FirstRecvMS = 0
	q.PushTail(stale)

	fresh := pool.Acquire()
	fresh.FrameID = 2
	fresh.FirstRecvMS = 1000
	q.PushTail(fresh)

	var reapedIDs []uint16
	n := q.ReapTimeouts(1100, 100, func(f *framepool.Frame) {
		reapedIDs = append(reapedIDs, f.FrameID)
	})
	if n != 1 || len(reapedIDs) != 1 || reapedIDs[0] != 1 {
		t.Fatalf("ReapTimeouts reaped %v, want [1]", reapedIDs)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len=%d, want 1", q.Len())
	}
	stale.Release()
	fresh.Release()
}
