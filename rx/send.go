package rx

import (
	"vtxgo/pkg/framepool"
	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/wire"
)

// Send queues data as a reliable USER control frame, symmetric to tx's
// reliable-control mechanism (spec.md §4.G "Reliable control send").
func (r *Receiver) Send(data []byte) error {
	if len(data) > maxControlPayload {
		return vtxerr.New(vtxerr.InvalidParam, "rx.Send")
	}
	if r.State() != StateConnected {
		return vtxerr.New(vtxerr.NotReady, "rx.Send")
	}

	f := r.pools.Control.Acquire()
	f.FrameID = r.nextFrameID()
	f.FrameType = wire.FrameUser
	f.Size = copy(f.Data, data)
	f.TotalFrags = 1
	f.State = framepool.StateSending

	now := r.clock.NowMS()
	f.SendTimeMS = now
	f.FirstRecvMS = now
	f.RetransCount = 0

	if err := r.emitControl(wire.FrameUser, f.FrameID, f.Data[:f.Size], 0); err != nil {
		f.Release()
		return err
	}
	r.reliableQueue.PushTail(f)
	f.Release()
	return nil
}

// scanReliableRetransmit mirrors tx's reliable-control retransmission scan
// using the same timer policy (spec.md §4.G).
func (r *Receiver) scanReliableRetransmit(now int64) {
	for _, f := range r.reliableQueue.Snapshot() {
		if f.RetransCount >= r.cfg.DataMaxRetrans {
			r.reliableQueue.Remove(f.FrameID)
			continue
		}
		if now-f.SendTimeMS < int64(r.cfg.DataRetransTimeoutMS) {
			continue
		}
		f.RetransCount++
		f.SendTimeMS = now
		h := wire.Header{
			SeqNum:      r.nextSeq(),
			FrameID:     f.FrameID,
			FrameType:   wire.FrameUser,
			Flags:       wire.FlagRetrans,
			FragIndex:   0,
			TotalFrags:  1,
			PayloadSize: uint16(f.Size),
		}
		if err := r.emitTo(h, f.Data[:f.Size]); err == nil {
			r.stats.IncRetrans()
		}
	}
}
