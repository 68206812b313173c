package fragment

import "testing"

func TestBucketSelection(t *testing.T) {
	cases := map[int]int{1: 1, 2: 32, 32: 32, 33: 128, 128: 128, 129: 256, 256: 256, 257: 512, 512: 512}
	for n, want := range cases {
		got, err := bucketFor(n)
		if err != nil {
			t.Fatalf("bucketFor(%d) error: %v", n, err)
		}
		if got != want {
			t.Errorf("bucketFor(%d) = %d, want %d", n, got, want)
		}
	}
	if _, err := bucketFor(513); err == nil {
		t.Error("expected NO_MEMORY for n > 512")
	}
}

func TestSlabPoolBalance(t *testing.T) {
	p := NewSlabPool()
	var held []*DescriptorArray
	for i := 0; i < 20; i++ {
		arr, err := p.Acquire(10)
		if err != nil {
			t.Fatal(err)
		}
		held = append(held, arr)
	}
	stats := p.Stats()
	total, free := stats[32][0], stats[32][1]
	if total != 20 || free != 0 {
		t.Fatalf("after 20 acquires: total=%d free=%d, want 20/0", total, free)
	}
	for _, arr := range held {
		p.Release(arr)
	}
	stats = p.Stats()
	total, free = stats[32][0], stats[32][1]
	if total != 20 || free != 20 {
		t.Fatalf("after releasing all: total=%d free=%d, want 20/20", total, free)
	}

	// Acquiring again must reuse the free list, not grow total.
	arr, _ := p.Acquire(5)
	stats = p.Stats()
	if stats[32][0] != 20 {
		t.Fatalf("pool grew on reuse: total=%d", stats[32][0])
	}
	p.Release(arr)
}

func TestBitmapCompletionAnyPermutation(t *testing.T) {
	order := []int{4, 0, 3, 1, 2}
	b := NewBitmap(5)
	for i, idx := range order {
		isNew := b.Mark(idx)
		if !isNew {
			t.Fatalf("unexpected duplicate at step %d", i)
		}
		wantComplete := i == len(order)-1
		if b.Complete() != wantComplete {
			t.Fatalf("step %d: Complete()=%v want %v", i, b.Complete(), wantComplete)
		}
	}
}

func TestBitmapDuplicateMark(t *testing.T) {
	b := NewBitmap(3)
	b.Mark(0)
	if b.Mark(0) {
		t.Error("re-marking index 0 should report not-new")
	}
	if b.Duplicates() != 1 {
		t.Errorf("Duplicates() = %d, want 1", b.Duplicates())
	}
	if b.Received() != 1 {
		t.Errorf("Received() = %d, want 1", b.Received())
	}
}
