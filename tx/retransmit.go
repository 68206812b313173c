package tx

import (
	"vtxgo/pkg/fragment"
	"vtxgo/pkg/wire"
)

type pendingResend struct {
	header  wire.Header
	payload []byte
}

// scanKeyFrameRetransmit walks the cached key frame's fragment descriptors
// (spec.md §4.F "Key-frame retransmission"): abandon fragments that
// exhausted their retry budget, resend fragments past their timeout. The
// key-frame lock is held only while reading/mutating descriptor state and
// copying fragment bytes; it is released before any socket write.
func (t *Transmitter) scanKeyFrameRetransmit(now int64) {
	t.keyMu.Lock()
	kf := t.keyFrame
	if kf == nil || kf.Retrans == nil {
		t.keyMu.Unlock()
		return
	}

	maxPayload := int(t.cfg.MTU) - wire.HeaderSize
	total := len(kf.Retrans.Descriptors)
	var resends []pendingResend
	var abandoned int

	for i := range kf.Retrans.Descriptors {
		d := &kf.Retrans.Descriptors[i]
		if d.Acked {
			continue
		}
		if d.RetransCount >= t.cfg.MaxRetrans {
			d.Acked = true // abandon: stop tracking, do not re-ACK
			abandoned++
			continue
		}
		if now-d.SendTimeMS < int64(t.cfg.RetransTimeoutMS) {
			continue
		}

		d.RetransCount++
		d.SendTimeMS = now
		d.SeqNum = t.nextSeq()

		start, end := fragment.Range(int(d.FragIndex), maxPayload, kf.Size)
		payload := make([]byte, end-start)
		copy(payload, kf.Data[start:end])

		var flags uint8 = wire.FlagRetrans
		if int(d.FragIndex) == total-1 {
			flags |= wire.FlagLastFrag
		}
		resends = append(resends, pendingResend{
			header: wire.Header{
				SeqNum:      d.SeqNum,
				FrameID:     kf.FrameID,
				FrameType:   kf.FrameType,
				Flags:       flags,
				FragIndex:   d.FragIndex,
				TotalFrags:  uint16(total),
				PayloadSize: uint16(len(payload)),
			},
			payload: payload,
		})
	}
	t.keyMu.Unlock()

	for i := 0; i < abandoned; i++ {
		t.stats.IncDroppedFragment()
	}
	for _, r := range resends {
		if err := t.emitTo(r.header, r.payload); err == nil {
			t.stats.IncRetrans()
		}
	}
}

// scanReliableRetransmit walks the reliable-control queue (spec.md §4.F
// "Reliable control (USER frames)"): drop entries past data_max_retrans,
// resend the rest past their timeout. Snapshot avoids holding the queue
// lock across socket writes.
func (t *Transmitter) scanReliableRetransmit(now int64) {
	for _, f := range t.reliableQueue.Snapshot() {
		if f.RetransCount >= t.cfg.DataMaxRetrans {
			t.reliableQueue.Remove(f.FrameID)
			continue
		}
		if now-f.SendTimeMS < int64(t.cfg.DataRetransTimeoutMS) {
			continue
		}
		f.RetransCount++
		f.SendTimeMS = now
		seq := t.nextSeq()
		h := wire.Header{
			SeqNum:      seq,
			FrameID:     f.FrameID,
			FrameType:   wire.FrameUser,
			Flags:       wire.FlagRetrans,
			FragIndex:   0,
			TotalFrags:  1,
			PayloadSize: uint16(f.Size),
		}
		if err := t.emitTo(h, f.Data[:f.Size]); err == nil {
			t.stats.IncRetrans()
		}
	}
}
