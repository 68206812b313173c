package fragment

import (
	"sync"

	"github.com/rs/xid"
	"vtxgo/pkg/vtxerr"
)

// Descriptor is the sender-side per-fragment ARQ record for one fragment of
// a protected (I/SPS/PPS) frame.
type Descriptor struct {
	FragIndex    uint16
	SeqNum       uint32 // sequence number of the most recent transmission
	SendTimeMS   int64
	RetransCount int
	Acked        bool
}

// bucketSizes are the slab capacities fragment-descriptor arrays are
// allocated from, per spec.md §4.C: the smallest bucket that can hold
// total_frags descriptors. 512 covers the largest legal frame (512 KiB at
// ~1384 B/fragment is ~379 fragments).
var bucketSizes = [...]int{1, 32, 128, 256, 512}

func bucketFor(n int) (int, error) {
	for _, b := range bucketSizes {
		if b >= n {
			return b, nil
		}
	}
	return 0, vtxerr.New(vtxerr.NoMemory, "fragment.bucketFor")
}

// DescriptorArray is a sender-side fragment-descriptor array sized to a
// specific frame's total_frags, backed by slab storage of capacity >= n.
type DescriptorArray struct {
	Descriptors []Descriptor
	bucket      int
	traceID     xid.ID
}

// Len returns the number of fragments this array tracks (<= slab capacity).
func (a *DescriptorArray) Len() int { return len(a.Descriptors) }

// TraceID is a debug-only correlation id stamped at acquire time; never
// serialized on the wire.
func (a *DescriptorArray) TraceID() xid.ID { return a.traceID }

// SlabPool is the five-bucket free-list pool for fragment-descriptor
// arrays described in spec.md §4.C. Concurrent Acquire/Release are
// serialized by a single mutex shared by all buckets; the pool expands (never shrinks)
// when a bucket's free list is empty at acquire time.
type SlabPool struct {
	mu   sync.Mutex
	free map[int][]*DescriptorArray
	// total/peak per bucket, for pool-balance property tests and stats.
	total map[int]int
}

// NewSlabPool constructs an empty slab pool; buckets expand on first use.
func NewSlabPool() *SlabPool {
	return &SlabPool{
		free:  make(map[int][]*DescriptorArray),
		total: make(map[int]int),
	}
}

// Acquire returns a DescriptorArray with n live Descriptor slots, backed by
// the smallest bucket capacity >= n. Returns NO_MEMORY if n exceeds the
// largest bucket (512).
func (p *SlabPool) Acquire(n int) (*DescriptorArray, error) {
	bucket, err := bucketFor(n)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.free[bucket]
	var arr *DescriptorArray
	if len(list) > 0 {
		arr = list[len(list)-1]
		p.free[bucket] = list[:len(list)-1]
	} else {
		arr = &DescriptorArray{bucket: bucket}
		p.total[bucket]++
	}
	arr.traceID = xid.New()
	if cap(arr.Descriptors) < n {
		arr.Descriptors = make([]Descriptor, n)
	} else {
		arr.Descriptors = arr.Descriptors[:n]
		for i := range arr.Descriptors {
			arr.Descriptors[i] = Descriptor{}
		}
	}
	return arr, nil
}

// Release returns a DescriptorArray to its bucket's free list.
func (p *SlabPool) Release(arr *DescriptorArray) {
	if arr == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[arr.bucket] = append(p.free[arr.bucket], arr)
}

// Stats reports, per bucket, the total allocated and currently-free counts.
func (p *SlabPool) Stats() map[int][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int][2]int, len(p.total))
	for bucket, total := range p.total {
		out[bucket] = [2]int{total, len(p.free[bucket])}
	}
	return out
}
