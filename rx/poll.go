package rx

import (
	"errors"
	"net"
	"time"

	"vtxgo/pkg/framepool"
	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/wire"
)

// Poll reads and dispatches at most one datagram, then runs the
// timer-driven housekeeping pass: reassembly-timeout reaping, reliable
// control retransmission, heartbeat emission, and (spec.md §9's optional,
// symmetrical liveness check) RX-side heartbeat-ack timeout.
func (r *Receiver) Poll(timeoutMS int64) (bool, error) {
	if r.shutdown.IsSet() {
		return false, vtxerr.New(vtxerr.InvalidParam, "rx.Poll")
	}

	had, err := r.pollOnce(timeoutMS)
	if err != nil {
		return had, err
	}

	now := r.clock.NowMS()
	r.reapReassembly(now)
	r.scanReliableRetransmit(now)
	r.maybeEmitHeartbeat(now)
	r.checkHeartbeatLiveness(now)

	return had, nil
}

func (r *Receiver) pollOnce(timeoutMS int64) (bool, error) {
	buf := make([]byte, r.cfg.MTU)
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return false, vtxerr.Wrap(vtxerr.SocketRecv, "rx.Poll", err)
	}

	n, from, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return false, nil
		}
		return false, nil
	}
	if r.serverAddr != nil && from.String() != r.serverAddr.String() {
		return false, nil
	}

	if r.dropSource.ShouldDrop() {
		return false, nil // simulated inbound loss (debug fault injection)
	}

	h, payload, err := wire.Parse(buf[:n], int(r.cfg.MTU))
	if err != nil {
		return false, nil
	}
	r.stats.IncPacket(n)
	r.trackSequence(h.SeqNum)
	r.handleDatagram(h, payload)
	return true, nil
}

// trackSequence implements spec.md §4.G's loss detection: every accepted
// packet with seq > last_recv_seq+1 adds the gap to the lost-packet
// counter.
func (r *Receiver) trackSequence(seq uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.haveLastRecvSeq {
		r.lastRecvSeq = seq
		r.haveLastRecvSeq = true
		return
	}
	if seq > r.lastRecvSeq+1 {
		r.stats.IncLost(uint64(seq - r.lastRecvSeq - 1))
	}
	r.lastRecvSeq = seq
}

func (r *Receiver) reapReassembly(now int64) {
	r.reassemblyQueue.ReapTimeouts(now, int64(r.cfg.FrameTimeoutMS), func(f *framepool.Frame) {
		if f.Reassembly != nil {
			r.pools.Bitmaps.Release(f.Reassembly)
			f.Reassembly = nil
		}
		r.stats.IncIncomplete()
	})
}

func (r *Receiver) maybeEmitHeartbeat(now int64) {
	r.mu.Lock()
	connected := r.state == StateConnected
	due := connected && now-r.lastHeartbeatSentMS >= int64(r.cfg.HeartbeatIntervalMS)
	if due {
		r.lastHeartbeatSentMS = now
	}
	r.mu.Unlock()

	if due {
		_ = r.emitControl(wire.FrameHeartbeat, 0, nil, 0)
	}
}

// checkHeartbeatLiveness is the RX-side mirror of tx's heartbeat-timeout
// teardown, an explicitly optional behavior per spec.md §9's open
// question: symmetrical liveness is desirable but not mandated by the
// source. Implemented here so a dead TX surfaces DISCONNECTED to RX
// callers instead of RX polling forever against a silent peer.
func (r *Receiver) checkHeartbeatLiveness(now int64) {
	r.mu.Lock()
	connected := r.state == StateConnected
	stale := connected && now-r.lastHeartbeatAckMS >= int64(r.cfg.HeartbeatIntervalMS)*int64(r.cfg.HeartbeatMaxMiss)
	if stale {
		r.state = StateIdle
	}
	r.mu.Unlock()

	if stale {
		r.releaseSession()
		r.dispatchConnect(false)
	}
}
