package rx

import (
	"vtxgo/pkg/wire"
)

// handleDatagram dispatches one parsed, CRC-verified packet (spec.md
// §4.G's handshake and media-receive rules).
func (r *Receiver) handleDatagram(h wire.Header, payload []byte) {
	state := r.State()

	if h.FrameID == 0 {
		switch h.FrameType {
		case wire.FrameConnected:
			r.handleConnected(state)
			return
		case wire.FrameACK:
			r.handleControlAck(state)
			return
		case wire.FrameDisconnect:
			r.handleDisconnect()
			return
		case wire.FrameHeartbeat:
			_ = r.emitControl(wire.FrameACK, 0, nil, 0)
			return
		}
	}

	if state != StateConnected {
		return
	}

	switch h.FrameType {
	case wire.FrameI, wire.FrameP, wire.FrameSPS, wire.FramePPS, wire.FrameA:
		r.handleMediaFragment(h, payload)
	case wire.FrameACK:
		r.reliableQueue.Remove(h.FrameID)
	case wire.FrameUser:
		_ = r.emitControl(wire.FrameACK, h.FrameID, nil, 0)
		r.dispatchData(payload)
	}
}

func (r *Receiver) handleConnected(state State) {
	switch state {
	case StateConnecting:
		r.mu.Lock()
		r.state = StateConnected
		now := r.clock.NowMS()
		r.lastHeartbeatSentMS = now
		r.lastHeartbeatAckMS = now
		r.mu.Unlock()
		_ = r.emitControl(wire.FrameACK, 0, nil, 0)
		r.dispatchConnect(true)
	case StateConnected:
		// Tolerate sender retransmission of CONNECTED.
		_ = r.emitControl(wire.FrameACK, 0, nil, 0)
	}
}

// handleControlAck treats an ACK(frame_id=0) as a heartbeat ack while
// CONNECTED.
func (r *Receiver) handleControlAck(state State) {
	if state != StateConnected {
		return
	}
	r.mu.Lock()
	r.lastHeartbeatAckMS = r.clock.NowMS()
	r.mu.Unlock()
}

func (r *Receiver) handleDisconnect() {
	r.mu.Lock()
	r.state = StateIdle
	r.mu.Unlock()
	r.releaseSession()
	r.dispatchConnect(false)
}
