package tx

import (
	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/wire"
)

// nextSeq returns the next strictly-increasing (mod 2^32) sequence number
// for this endpoint, starting at 0.
func (t *Transmitter) nextSeq() uint32 {
	return t.seqNum.Add(1) - 1
}

// nextFrameID returns the next frame id from the per-endpoint monotonic
// counter, wrapping through u16 and skipping the reserved value 0.
func (t *Transmitter) nextFrameID() uint16 {
	for {
		id := uint16(t.frameIDCounter.Add(1))
		if id != 0 {
			return id
		}
	}
}

// emitTo serializes h+payload and writes it to addr, updating packet/byte
// counters. A fresh destination buffer is allocated per call rather than
// reused, since send-side calls may run concurrently with the poll-driven
// retransmission scan and dispatch path.
func (t *Transmitter) emitTo(h wire.Header, payload []byte) error {
	t.mu.RLock()
	addr := t.peerAddr
	t.mu.RUnlock()
	if addr == nil {
		return vtxerr.New(vtxerr.NotReady, "tx.emitTo")
	}
	buf := wire.Emit(h, payload, nil)
	n, err := t.conn.WriteToUDP(buf, addr)
	if err != nil {
		return vtxerr.Wrap(vtxerr.SocketSend, "tx.emitTo", err)
	}
	t.stats.IncPacket(n)
	return nil
}

// emitControl builds and sends a single-fragment control packet.
func (t *Transmitter) emitControl(frameType wire.FrameType, frameID uint16, payload []byte, flags uint8) error {
	h := wire.Header{
		SeqNum:      t.nextSeq(),
		FrameID:     frameID,
		FrameType:   frameType,
		Flags:       flags,
		FragIndex:   0,
		TotalFrags:  1,
		PayloadSize: uint16(len(payload)),
	}
	return t.emitTo(h, payload)
}
