package tx

import (
	"errors"
	"net"
	"time"

	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/wire"
)

// Poll reads and dispatches at most one datagram (spec.md §5: "receiver
// processes one datagram at a time per poll iteration"), then always runs
// the timer-driven housekeeping pass: connect-handshake retransmission,
// key-frame fragment retransmission, reliable-control retransmission, and
// heartbeat-liveness teardown. timeoutMS=0 returns immediately if nothing
// is pending. Reports whether a datagram was processed.
//
// Once a session terminates (peer DISCONNECT or heartbeat-liveness
// timeout), the next call returns vtxerr.Disconnected per spec.md §7, so a
// caller driving Poll in a loop observes the termination instead of Poll
// silently continuing to report (false, nil).
func (t *Transmitter) Poll(timeoutMS int64) (bool, error) {
	if t.shutdown.IsSet() {
		return false, vtxerr.New(vtxerr.InvalidParam, "tx.Poll")
	}

	if t.disconnectPending.IsSet() {
		t.disconnectPending.UnSet()
		return false, vtxerr.New(vtxerr.Disconnected, "tx.Poll")
	}

	had, err := t.pollOnce(timeoutMS)
	if err != nil {
		return had, err
	}

	now := t.clock.NowMS()
	t.scanHandshakeRetransmit(now)
	t.scanKeyFrameRetransmit(now)
	t.scanReliableRetransmit(now)
	t.checkHeartbeatLiveness(now)

	return had, nil
}

func (t *Transmitter) pollOnce(timeoutMS int64) (bool, error) {
	buf := make([]byte, t.cfg.MTU)
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return false, vtxerr.Wrap(vtxerr.SocketRecv, "tx.Poll", err)
	}

	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return false, nil
		}
		return false, nil
	}

	if t.dropSource.ShouldDrop() {
		return false, nil // simulated inbound loss (debug fault injection)
	}

	h, payload, err := wire.Parse(buf[:n], int(t.cfg.MTU))
	if err != nil {
		return false, nil // malformed/CRC-failed datagrams are dropped silently; no counter records them
	}
	t.stats.IncPacket(n)
	t.handleDatagram(h, payload, from)
	return true, nil
}

func (t *Transmitter) scanHandshakeRetransmit(now int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateAwaitingConnect {
		return
	}
	if now-t.connectSendTimeMS < int64(t.cfg.ConnectTimeoutMS) {
		return
	}
	if t.connectRetransCount >= t.cfg.ConnectMaxRetrans {
		t.state = StateListening
		t.peerAddr = nil
		return
	}
	t.connectRetransCount++
	t.connectSendTimeMS = now
	_ = t.emitControl(wire.FrameConnected, 0, nil, wire.FlagRetrans)
}

func (t *Transmitter) checkHeartbeatLiveness(now int64) {
	t.mu.Lock()
	connected := t.state == StateConnected
	stale := connected && now-t.lastHeartbeatMS >= int64(t.cfg.HeartbeatIntervalMS)*int64(t.cfg.HeartbeatMaxMiss)
	if stale {
		t.state = StateListening
	}
	t.mu.Unlock()

	if stale {
		t.teardownSession()
	}
}
