package framepool

import (
	"sync"

	"github.com/rs/xid"
	"vtxgo/pkg/fragment"
)

// MediaCapacity and ControlCapacity are the two buffer sizes spec.md §3
// fixes for the two frame pools.
const (
	MediaCapacity   = 512 * 1024
	ControlCapacity = 128
)

// Pool is a lock-protected free list of fixed-capacity Frames. It expands
// (allocates a new Frame) whenever the free list is empty at Acquire time
// and never shrinks.
type Pool struct {
	capacity int
	mu       sync.Mutex
	free     []*Frame
	total    int
}

// NewPool constructs an empty pool for buffers of the given capacity.
func NewPool(capacity int) *Pool {
	return &Pool{capacity: capacity}
}

// Acquire returns a Frame with reference count 1, state Free, Data sized to
// the pool's capacity (reused, not zeroed, from a prior release) and
// reassembly/retransmission state cleared.
func (p *Pool) Acquire() *Frame {
	p.mu.Lock()
	var f *Frame
	if n := len(p.free); n > 0 {
		f = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		f = &Frame{Data: make([]byte, p.capacity), pool: p}
		p.total++
	}
	p.mu.Unlock()

	f.TraceID = xid.New()
	f.FrameID = 0
	f.FrameType = 0
	f.TotalFrags = 0
	f.Size = 0
	f.Reassembly = nil
	f.Retrans = nil
	f.FirstRecvMS = 0
	f.LastRecvMS = 0
	f.SendTimeMS = 0
	f.RetransCount = 0
	f.State = StateFree
	f.refcount.Store(1)
	return f
}

// reclaim is invoked exactly once per 1->0 refcount transition. The Data
// buffer is retained; any reassembly/retransmission state on the frame must
// already have been released to its own sub-pool by the caller before
// Release drops the last reference, since only the caller knows which slab
// pool owns a given DescriptorArray.
func (p *Pool) reclaim(f *Frame) {
	p.mu.Lock()
	p.free = append(p.free, f)
	p.mu.Unlock()
}

// Stats reports total allocated and currently-free Frame counts.
func (p *Pool) Stats() (total, free int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, len(p.free)
}

// BitmapPool is a small free list of reusable reassembly bitmaps, the
// receiver-side counterpart to fragment.SlabPool on the sender side.
type BitmapPool struct {
	mu   sync.Mutex
	free []*fragment.Bitmap
}

// NewBitmapPool constructs an empty bitmap pool.
func NewBitmapPool() *BitmapPool { return &BitmapPool{} }

// Acquire returns a bitmap reset for total fragments.
func (bp *BitmapPool) Acquire(total int) *fragment.Bitmap {
	bp.mu.Lock()
	var b *fragment.Bitmap
	if n := len(bp.free); n > 0 {
		b = bp.free[n-1]
		bp.free = bp.free[:n-1]
	}
	bp.mu.Unlock()

	if b == nil {
		b = fragment.NewBitmap(total)
	} else {
		b.Reset(total)
	}
	return b
}

// Release returns a bitmap to the free list.
func (bp *BitmapPool) Release(b *fragment.Bitmap) {
	if b == nil {
		return
	}
	bp.mu.Lock()
	bp.free = append(bp.free, b)
	bp.mu.Unlock()
}

// Manager bundles the media pool, control pool, bitmap pool, and
// fragment-descriptor slab pool spec.md §3 groups under "Pools", so callers
// acquire/release frames and their reassembly-or-retransmission state
// together without wiring four pools by hand.
type Manager struct {
	Media   *Pool
	Control *Pool
	Bitmaps *BitmapPool
	Slabs   *fragment.SlabPool
}

// NewManager constructs a Manager with fresh, empty pools.
func NewManager() *Manager {
	return &Manager{
		Media:   NewPool(MediaCapacity),
		Control: NewPool(ControlCapacity),
		Bitmaps: NewBitmapPool(),
		Slabs:   fragment.NewSlabPool(),
	}
}

// AcquireReassembly acquires a media-pool frame and installs a fresh
// reassembly bitmap sized to totalFrags, putting it in StateReceiving.
func (m *Manager) AcquireReassembly(totalFrags int) *Frame {
	f := m.Media.Acquire()
	f.Reassembly = m.Bitmaps.Acquire(totalFrags)
	f.State = StateReceiving
	return f
}

// AcquireProtectedSend acquires a media-pool frame and installs a fresh
// fragment-descriptor array sized to totalFrags, putting it in
// StateSending. Returns NO_MEMORY if totalFrags exceeds the largest slab
// bucket.
func (m *Manager) AcquireProtectedSend(totalFrags int) (*Frame, error) {
	f := m.Media.Acquire()
	arr, err := m.Slabs.Acquire(totalFrags)
	if err != nil {
		f.Release()
		return nil, err
	}
	f.Retrans = arr
	f.State = StateSending
	return f, nil
}

// ReleaseReassembly returns a receiver-side frame's bitmap to the bitmap
// pool and then drops the frame's own reference.
func (m *Manager) ReleaseReassembly(f *Frame) {
	if f.Reassembly != nil {
		m.Bitmaps.Release(f.Reassembly)
		f.Reassembly = nil
	}
	f.Release()
}

// ReleaseProtectedSend returns a sender-side frame's descriptor array to the
// slab pool and then drops the frame's own reference.
func (m *Manager) ReleaseProtectedSend(f *Frame) {
	if f.Retrans != nil {
		m.Slabs.Release(f.Retrans)
		f.Retrans = nil
	}
	f.Release()
}
