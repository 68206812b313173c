package tx

import (
	"bytes"
	"net"

	"github.com/google/uuid"

	"vtxgo/pkg/vtxlog"
	"vtxgo/pkg/wire"
)

// handleDatagram dispatches one parsed, CRC-verified packet (spec.md
// §4.F's "Incoming packet dispatch (TX side)").
func (t *Transmitter) handleDatagram(h wire.Header, payload []byte, from *net.UDPAddr) {
	t.mu.RLock()
	state := t.state
	peer := t.peerAddr
	t.mu.RUnlock()

	if state == StateListening {
		if h.FrameType != wire.FrameConnect {
			return
		}
		t.mu.Lock()
		t.peerAddr = from
		t.sessionID = uuid.New()
		t.state = StateAwaitingConnect
		t.connectSendTimeMS = t.clock.NowMS()
		t.connectRetransCount = 0
		t.mu.Unlock()
		vtxlog.Infof("tx: CONNECT from %s session=%s", from, t.sessionID)
		_ = t.emitControl(wire.FrameConnected, 0, nil, 0)
		return
	}

	if peer == nil || from.String() != peer.String() {
		return
	}

	switch h.FrameType {
	case wire.FrameACK:
		t.handleAck(h)
	case wire.FrameConnect:
		// Idempotent: a peer that already completed the handshake may
		// re-send CONNECT if its own ACK was lost. Re-emit CONNECTED.
		if state == StateConnected {
			_ = t.emitControl(wire.FrameConnected, 0, nil, 0)
		}
	case wire.FrameDisconnect:
		_ = t.emitControl(wire.FrameACK, 0, nil, 0)
		t.mu.Lock()
		t.state = StateListening
		t.mu.Unlock()
		t.teardownSession()
	case wire.FrameHeartbeat:
		_ = t.emitControl(wire.FrameACK, 0, nil, 0)
		t.mu.Lock()
		t.lastHeartbeatMS = t.clock.NowMS()
		t.mu.Unlock()
	case wire.FrameStart:
		url := parseStartURL(payload)
		t.dispatchMedia(wire.FrameStart, url)
	case wire.FrameStop:
		t.dispatchMedia(wire.FrameStop, nil)
	case wire.FrameUser:
		_ = t.emitControl(wire.FrameACK, h.FrameID, nil, 0)
		t.dispatchData(payload)
	default:
		// Media frame types arriving at the transmitter are not part of
		// this protocol direction; drop silently.
	}
}

func (t *Transmitter) handleAck(h wire.Header) {
	if h.FrameID == 0 {
		t.mu.Lock()
		switch t.state {
		case StateAwaitingConnect:
			t.state = StateConnected
			t.lastHeartbeatMS = t.clock.NowMS()
		case StateConnected:
			t.lastHeartbeatMS = t.clock.NowMS()
		}
		t.mu.Unlock()
		return
	}

	if t.reliableQueue.Remove(h.FrameID) {
		return
	}

	t.keyMu.Lock()
	if t.keyFrame != nil && t.keyFrame.FrameID == h.FrameID && t.keyFrame.Retrans != nil {
		if int(h.FragIndex) < len(t.keyFrame.Retrans.Descriptors) {
			t.keyFrame.Retrans.Descriptors[h.FragIndex].Acked = true
		}
	}
	t.keyMu.Unlock()
}

// parseStartURL decodes a START payload as a zero-terminated ASCII string
// of at most maxStartURLLen bytes including the terminator. Returns nil if
// the payload is empty, unterminated, or over length (spec.md §6).
func parseStartURL(payload []byte) *string {
	if len(payload) == 0 || len(payload) > maxStartURLLen {
		return nil
	}
	idx := bytes.IndexByte(payload, 0)
	if idx < 0 {
		vtxlog.Warnf("tx: START payload missing zero terminator")
		return nil
	}
	s := string(payload[:idx])
	return &s
}
