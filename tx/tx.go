package tx

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/tevino/abool"
	"go.uber.org/atomic"

	"vtxgo/pkg/framepool"
	"vtxgo/pkg/framequeue"
	"vtxgo/pkg/safehook"
	"vtxgo/pkg/vtxclock"
	"vtxgo/pkg/vtxconfig"
	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/vtxlog"
	"vtxgo/pkg/vtxstats"
	"vtxgo/pkg/wire"
)

// OnData delivers a USER control payload received from the peer.
type OnData func(data []byte)

// OnMedia delivers a START (url non-nil when present) or STOP request from
// the peer, or nil url on a DISCONNECT notification.
type OnMedia func(kind wire.FrameType, url *string)

const maxControlPayload = framepool.ControlCapacity
const maxStartURLLen = 100

// Transmitter is the server side of the transport: listens for a single
// peer's three-way handshake, sends media with per-fragment ARQ for key
// frames, and carries a bidirectional reliable control channel.
type Transmitter struct {
	cfg        vtxconfig.TXConfig
	onData     OnData
	onMedia    OnMedia
	clock      vtxclock.Clock
	dropSource vtxclock.DropSource

	conn *net.UDPConn

	mu                  sync.RWMutex
	state               State
	peerAddr            *net.UDPAddr
	sessionID           uuid.UUID
	lastHeartbeatMS     int64
	connectSendTimeMS   int64
	connectRetransCount int

	seqNum         atomic.Uint32
	frameIDCounter atomic.Uint32

	pools *framepool.Manager
	stats *vtxstats.Stats

	keyMu    sync.Mutex
	keyFrame *framepool.Frame

	reliableQueue *framequeue.Queue

	shutdown          *abool.AtomicBool
	disconnectPending *abool.AtomicBool
	wg                *conc.WaitGroup
}

// Create validates cfg (applying spec.md §6 defaults to zero fields) and
// constructs a Transmitter bound to neither state nor socket yet; call
// Listen to bind and start accepting a handshake.
func Create(cfg vtxconfig.TXConfig, onData OnData, onMedia OnMedia) (*Transmitter, error) {
	vtxconfig.ApplyDefaultsTX(&cfg)
	if err := vtxconfig.ValidateTX(cfg); err != nil {
		return nil, err
	}
	return &Transmitter{
		cfg:               cfg,
		onData:            onData,
		onMedia:           onMedia,
		clock:             vtxclock.System{},
		dropSource:        vtxclock.NoDrop{},
		state:             StateListening,
		pools:             framepool.NewManager(),
		stats:             &vtxstats.Stats{},
		reliableQueue:     framequeue.New(),
		shutdown:          abool.New(),
		disconnectPending: abool.New(),
		wg:                conc.NewWaitGroup(),
	}, nil
}

// Stats returns the live counters for Prometheus wiring or direct reads.
func (t *Transmitter) Stats() *vtxstats.Stats { return t.stats }

// SetClock overrides the transmitter's time source, for tests that need to
// drive retransmission/heartbeat timers deterministically.
func (t *Transmitter) SetClock(c vtxclock.Clock) { t.clock = c }

// SetDropSource installs a debug-only inbound-packet-drop simulator (e.g.
// vtxclock.RandomDrop), for soak tests that exercise ARQ/retransmission
// without a real lossy network. Defaults to vtxclock.NoDrop.
func (t *Transmitter) SetDropSource(d vtxclock.DropSource) { t.dropSource = d }

// State returns the transmitter's current connection state.
func (t *Transmitter) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// GetStats returns a point-in-time snapshot of the transmitter's counters.
func (t *Transmitter) GetStats() vtxstats.Snapshot {
	return t.stats.Snapshot()
}

// Listen binds the configured local UDP address and port, raising send and
// receive buffer sizes toward cfg.SendBufBytes (warning, not failing, if
// the OS refuses).
func (t *Transmitter) Listen() error {
	addr := &net.UDPAddr{IP: net.ParseIP(t.cfg.BindAddr), Port: int(t.cfg.BindPort)}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return vtxerr.Wrap(vtxerr.SocketBind, "tx.Listen", err)
	}
	if err := conn.SetWriteBuffer(int(t.cfg.SendBufBytes)); err != nil {
		vtxlog.Warnf("tx: SetWriteBuffer failed: %v", err)
	}
	if err := conn.SetReadBuffer(int(t.cfg.SendBufBytes)); err != nil {
		vtxlog.Warnf("tx: SetReadBuffer failed: %v", err)
	}
	t.conn = conn

	t.mu.Lock()
	t.state = StateListening
	t.mu.Unlock()

	vtxlog.Infof("tx: listening on %s", conn.LocalAddr())
	return nil
}

// Accept blocks, driving Poll internally, until the handshake reaches
// CONNECTED or timeoutMS elapses, per spec.md §5's "small sleep until a
// deadline" pattern. Returns TIMEOUT on exhaustion.
func (t *Transmitter) Accept(timeoutMS int64) error {
	deadline := t.clock.NowMS() + timeoutMS
	for {
		if t.State() == StateConnected {
			return nil
		}
		if t.clock.NowMS() >= deadline {
			return vtxerr.New(vtxerr.Timeout, "tx.Accept")
		}
		if _, err := t.Poll(1); err != nil {
			return err
		}
	}
}

// Close stops accepting new sends, best-effort notifies the peer, and
// drops the session back to LISTENING. Safe to call more than once.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	connected := t.state == StateConnected
	peer := t.peerAddr
	t.state = StateClosing
	t.mu.Unlock()

	if connected && peer != nil {
		_ = t.emitControl(wire.FrameDisconnect, 0, nil, 0)
	}

	t.releaseSession()

	t.mu.Lock()
	t.state = StateListening
	t.mu.Unlock()
	return nil
}

// Destroy releases all pooled resources and closes the socket. The
// Transmitter must not be used afterward.
func (t *Transmitter) Destroy() error {
	t.shutdown.Set()
	_ = t.Close()
	var err error
	if t.conn != nil {
		err = t.conn.Close()
	}
	t.wg.Wait()
	return err
}

// teardownSession latches disconnectPending (so the next Poll reports
// DISCONNECTED per spec.md §7) and notifies onMedia, then releases the
// session's pooled resources. Called on the received-DISCONNECT path and
// on heartbeat-liveness timeout; Close notifies the peer itself and does
// not go through here, since the local caller already knows it closed.
func (t *Transmitter) teardownSession() {
	t.disconnectPending.Set()
	t.dispatchMedia(wire.FrameDisconnect, nil)
	t.releaseSession()
}

// releaseSession drops the key-frame slot and drains the reliable-control
// queue, releasing every held frame reference. Called on DISCONNECT, on
// heartbeat-timeout teardown, and on Close.
func (t *Transmitter) releaseSession() {
	t.keyMu.Lock()
	if t.keyFrame != nil {
		t.pools.ReleaseProtectedSend(t.keyFrame)
		t.keyFrame = nil
	}
	t.keyMu.Unlock()

	for {
		f := t.reliableQueue.PopHead()
		if f == nil {
			break
		}
		f.Release()
	}

	t.mu.Lock()
	t.peerAddr = nil
	t.mu.Unlock()
}

func (t *Transmitter) dispatchData(data []byte) {
	if t.onData == nil {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	safehook.Run("tx.onData", func() { t.onData(cp) })
}

func (t *Transmitter) dispatchMedia(kind wire.FrameType, url *string) {
	if t.onMedia == nil {
		return
	}
	safehook.Run("tx.onMedia", func() { t.onMedia(kind, url) })
}
