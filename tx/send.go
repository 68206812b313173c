package tx

import (
	"vtxgo/pkg/fragment"
	"vtxgo/pkg/framepool"
	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/wire"
)

// Send queues data as a reliable USER control frame: allocated from the
// control pool, emitted once, and tracked in the reliable-control queue
// for whole-frame ARQ (spec.md §4.F).
func (t *Transmitter) Send(data []byte) error {
	if len(data) > maxControlPayload {
		return vtxerr.New(vtxerr.InvalidParam, "tx.Send")
	}
	if t.State() != StateConnected {
		return vtxerr.New(vtxerr.NotReady, "tx.Send")
	}

	f := t.pools.Control.Acquire()
	f.FrameID = t.nextFrameID()
	f.FrameType = wire.FrameUser
	f.Size = copy(f.Data, data)
	f.TotalFrags = 1
	f.State = framepool.StateSending

	now := t.clock.NowMS()
	f.SendTimeMS = now
	f.FirstRecvMS = now
	f.RetransCount = 0

	if err := t.emitControl(wire.FrameUser, f.FrameID, f.Data[:f.Size], 0); err != nil {
		f.Release()
		return err
	}
	t.reliableQueue.PushTail(f)
	f.Release() // drop the allocation's own reference; the queue retained its own
	return nil
}

// AllocMediaFrame acquires a media-pool buffer of the given frame type and
// size for the caller to fill before calling SendMedia. size must not
// exceed framepool.MediaCapacity.
func (t *Transmitter) AllocMediaFrame(frameType wire.FrameType, size int) (*framepool.Frame, error) {
	if size <= 0 || size > framepool.MediaCapacity {
		return nil, vtxerr.New(vtxerr.InvalidParam, "tx.AllocMediaFrame")
	}
	f := t.pools.Media.Acquire()
	f.FrameType = frameType
	f.Size = size
	return f, nil
}

// SendMedia fragments and emits f (spec.md §4.E/§4.F), consuming the
// caller's reference: I/SPS/PPS frames are tracked with per-fragment ARQ in
// the key-frame slot; P/A frames are fire-and-forget and released
// immediately after emission.
func (t *Transmitter) SendMedia(f *framepool.Frame) error {
	if t.State() != StateConnected {
		f.Release()
		return vtxerr.New(vtxerr.NotReady, "tx.SendMedia")
	}

	maxPayload := int(t.cfg.MTU) - wire.HeaderSize
	total, err := fragment.Count(f.Size, int(t.cfg.MTU), wire.HeaderSize)
	if err != nil {
		f.Release()
		return err
	}

	f.FrameID = t.nextFrameID()
	f.TotalFrags = uint16(total)
	now := t.clock.NowMS()

	protected := f.FrameType.IsKeyFrame()
	var arr *fragment.DescriptorArray
	if protected {
		arr, err = t.pools.Slabs.Acquire(total)
		if err != nil {
			f.Release()
			return err
		}
	}

	for i := 0; i < total; i++ {
		start, end := fragment.Range(i, maxPayload, f.Size)
		payload := f.Data[start:end]

		var flags uint8
		if i == total-1 {
			flags |= wire.FlagLastFrag
		}

		seq := t.nextSeq()
		h := wire.Header{
			SeqNum:      seq,
			FrameID:     f.FrameID,
			FrameType:   f.FrameType,
			Flags:       flags,
			FragIndex:   uint16(i),
			TotalFrags:  uint16(total),
			PayloadSize: uint16(len(payload)),
		}
		if err := t.emitTo(h, payload); err != nil {
			if protected {
				t.pools.Slabs.Release(arr)
			}
			f.Release()
			return err
		}

		if protected {
			arr.Descriptors[i] = fragment.Descriptor{
				FragIndex:  uint16(i),
				SeqNum:     seq,
				SendTimeMS: now,
			}
		}
	}

	t.stats.IncFrame(f.FrameType == wire.FrameI, f.FrameType == wire.FrameP)

	if !protected {
		f.Release()
		return nil
	}

	f.Retrans = arr
	f.State = framepool.StateSending
	f.SendTimeMS = now

	t.keyMu.Lock()
	old := t.keyFrame
	t.keyFrame = f
	t.keyMu.Unlock()

	if old != nil {
		t.pools.ReleaseProtectedSend(old)
	}
	return nil
}
