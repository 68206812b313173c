package rx

import (
	"vtxgo/pkg/framepool"
	"vtxgo/pkg/wire"
)

// handleMediaFragment implements spec.md §4.G's media-receive path:
// locate-or-allocate the reassembly frame, accept the fragment into its
// bitmap, per-fragment ACK for I frames, and deliver on completion.
func (r *Receiver) handleMediaFragment(h wire.Header, payload []byte) {
	if int(h.TotalFrags) > maxFragmentsPerFrame {
		return // OVERFLOW: more fragments than the protocol's maximum frame allows
	}

	f := r.reassemblyQueue.FindByFrameID(h.FrameID)
	if f == nil {
		if int(h.PayloadSize) > framepool.MediaCapacity {
			return
		}
		f = r.pools.AcquireReassembly(int(h.TotalFrags))
		f.FrameID = h.FrameID
		f.FrameType = h.FrameType
		f.TotalFrags = h.TotalFrags
		f.FirstRecvMS = r.clock.NowMS()
		r.reassemblyQueue.PushTail(f)
		f.Release() // drop the acquire's own reference; the queue now holds the only one
	}

	maxPayload := int(r.cfg.MTU) - wire.HeaderSize
	offset := int(h.FragIndex) * maxPayload
	end := offset + len(payload)
	if end > len(f.Data) {
		return // OVERFLOW against the frame's buffer capacity
	}

	if !f.Reassembly.Mark(int(h.FragIndex)) {
		r.stats.IncDup()
		return
	}

	copy(f.Data[offset:end], payload)
	if end > f.Size {
		f.Size = end
	}
	f.LastRecvMS = r.clock.NowMS()

	if h.FrameType == wire.FrameI {
		_ = r.emitFragAck(h.FrameID, h.FragIndex)
	}

	if f.Reassembly.Complete() {
		r.completeFrame(f)
	}
}

// completeFrame delivers a fully-reassembled frame to the sink, updates
// the last-I-frame slot for I frames (not SPS/PPS), and removes the frame from the
// reassembly queue.
func (r *Receiver) completeFrame(f *framepool.Frame) {
	payload := make([]byte, f.Size)
	copy(payload, f.Data[:f.Size])
	frameType := f.FrameType
	isI := frameType == wire.FrameI

	if f.Reassembly != nil {
		r.pools.Bitmaps.Release(f.Reassembly)
		f.Reassembly = nil
	}

	if isI {
		f.Retain() // claim for the last-I-frame slot before the queue drops its own
	}
	r.reassemblyQueue.Remove(f.FrameID)
	if isI {
		r.swapLastIFrame(f)
	}

	r.stats.IncFrame(isI, frameType == wire.FrameP)
	r.dispatchFrame(payload, frameType)
}

// swapLastIFrame replaces the cached most-recently-completed I frame,
// releasing whichever frame previously held the slot.
func (r *Receiver) swapLastIFrame(f *framepool.Frame) {
	r.lastIMu.Lock()
	old := r.lastIFrame
	r.lastIFrame = f
	r.lastIMu.Unlock()
	if old != nil {
		old.Release()
	}
}
