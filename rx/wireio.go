package rx

import (
	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/wire"
)

func (r *Receiver) nextSeq() uint32 {
	return r.seqNum.Add(1) - 1
}

func (r *Receiver) nextFrameID() uint16 {
	for {
		id := uint16(r.frameIDCounter.Add(1))
		if id != 0 {
			return id
		}
	}
}

// emitTo serializes h+payload to the server address. A fresh buffer is
// allocated per call, since application-thread sends and poll-thread
// retransmission scans may run concurrently.
func (r *Receiver) emitTo(h wire.Header, payload []byte) error {
	if r.serverAddr == nil {
		return vtxerr.New(vtxerr.NotReady, "rx.emitTo")
	}
	buf := wire.Emit(h, payload, nil)
	n, err := r.conn.WriteToUDP(buf, r.serverAddr)
	if err != nil {
		return vtxerr.Wrap(vtxerr.SocketSend, "rx.emitTo", err)
	}
	r.stats.IncPacket(n)
	return nil
}

func (r *Receiver) emitControl(frameType wire.FrameType, frameID uint16, payload []byte, flags uint8) error {
	h := wire.Header{
		SeqNum:      r.nextSeq(),
		FrameID:     frameID,
		FrameType:   frameType,
		Flags:       flags,
		FragIndex:   0,
		TotalFrags:  1,
		PayloadSize: uint16(len(payload)),
	}
	return r.emitTo(h, payload)
}

func (r *Receiver) emitFragAck(frameID, fragIndex uint16) error {
	h := wire.Header{
		SeqNum:      r.nextSeq(),
		FrameID:     frameID,
		FrameType:   wire.FrameACK,
		FragIndex:   fragIndex,
		TotalFrags:  1,
		PayloadSize: 0,
	}
	return r.emitTo(h, nil)
}
