package rx

import (
	"net"
	"sync"

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

// OnFrame delivers a completed media frame. data is only valid for the
// call's duration.
type OnFrame func(data []byte, frameType wire.FrameType)

// OnData delivers a USER control payload received from the peer.
type OnData func(data []byte)

// OnConnect delivers connection-state transitions (spec.md §6).
type OnConnect func(connected bool)

const maxControlPayload = framepool.ControlCapacity
const handshakeDeadlineMS = 5000
const maxFragmentsPerFrame = 512

// Receiver is the client side of the transport: connects to a single TX,
// reassembles media, and carries the bidirectional reliable control
// channel.
type Receiver struct {
	cfg        vtxconfig.RXConfig
	onFrame    OnFrame
	onData     OnData
	onConnect  OnConnect
	clock      vtxclock.Clock
	dropSource vtxclock.DropSource

	conn       *net.UDPConn
	serverAddr *net.UDPAddr

	mu                  sync.RWMutex
	state               State
	handshakeDeadlineMS int64
	lastRecvSeq         uint32
	haveLastRecvSeq     bool
	lastHeartbeatSentMS int64
	lastHeartbeatAckMS  int64

	seqNum         atomic.Uint32
	frameIDCounter atomic.Uint32

	pools *framepool.Manager
	stats *vtxstats.Stats

	reassemblyQueue *framequeue.Queue
	reliableQueue   *framequeue.Queue

	lastIMu    sync.Mutex
	lastIFrame *framepool.Frame

	shutdown *abool.AtomicBool
	wg       *conc.WaitGroup
}

// Create validates cfg (applying spec.md §6 defaults) and constructs a
// Receiver. Call Connect to bind a local socket and run the handshake.
func Create(cfg vtxconfig.RXConfig, onFrame OnFrame, onData OnData, onConnect OnConnect) (*Receiver, error) {
	vtxconfig.ApplyDefaultsRX(&cfg)
	if err := vtxconfig.ValidateRX(cfg); err != nil {
		return nil, err
	}
	return &Receiver{
		cfg:             cfg,
		onFrame:         onFrame,
		onData:          onData,
		onConnect:       onConnect,
		clock:           vtxclock.System{},
		dropSource:      vtxclock.NoDrop{},
		state:           StateIdle,
		pools:           framepool.NewManager(),
		stats:           &vtxstats.Stats{},
		reassemblyQueue: framequeue.New(),
		reliableQueue:   framequeue.New(),
		shutdown:        abool.New(),
		wg:              conc.NewWaitGroup(),
	}, nil
}

// State returns the receiver's current connection state.
func (r *Receiver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// GetStats returns a point-in-time snapshot of the receiver's counters.
func (r *Receiver) GetStats() vtxstats.Snapshot {
	return r.stats.Snapshot()
}

// SetClock overrides the receiver's time source, for tests that need to
// drive retransmission/heartbeat/reassembly timers deterministically.
func (r *Receiver) SetClock(c vtxclock.Clock) { r.clock = c }

// SetDropSource installs a debug-only inbound-packet-drop simulator (e.g.
// vtxclock.RandomDrop), for soak tests that exercise ARQ/retransmission
// without a real lossy network. Defaults to vtxclock.NoDrop.
func (r *Receiver) SetDropSource(d vtxclock.DropSource) { r.dropSource = d }

// Connect resolves serverAddr:serverPort, binds an ephemeral local socket,
// emits CONNECT(frame_id=0), and blocks until the handshake reaches
// CONNECTED or the 5 s deadline in spec.md §4.G expires (TIMEOUT).
func (r *Receiver) Connect() error {
	addr := &net.UDPAddr{IP: net.ParseIP(r.cfg.ServerAddr), Port: int(r.cfg.ServerPort)}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return vtxerr.Wrap(vtxerr.SocketCreate, "rx.Connect", err)
	}
	if err := conn.SetReadBuffer(int(r.cfg.RecvBufBytes)); err != nil {
		vtxlog.Warnf("rx: SetReadBuffer failed: %v", err)
	}
	r.conn = conn
	r.serverAddr = addr

	now := r.clock.NowMS()
	r.mu.Lock()
	r.state = StateConnecting
	r.handshakeDeadlineMS = now + handshakeDeadlineMS
	r.lastHeartbeatSentMS = now
	r.lastHeartbeatAckMS = now
	r.mu.Unlock()

	if err := r.emitControl(wire.FrameConnect, 0, nil, 0); err != nil {
		return err
	}

	for {
		if r.State() == StateConnected {
			return nil
		}
		r.mu.RLock()
		deadline := r.handshakeDeadlineMS
		r.mu.RUnlock()
		if r.clock.NowMS() >= deadline {
			r.mu.Lock()
			r.state = StateIdle
			r.mu.Unlock()
			return vtxerr.New(vtxerr.Timeout, "rx.Connect")
		}
		if _, err := r.Poll(1); err != nil {
			return err
		}
	}
}

// Start notifies the sender to begin streaming from url via a START
// packet, zero-terminated per spec.md §6's URL payload rule.
func (r *Receiver) Start(url string) error {
	payload := append([]byte(url), 0)
	if len(payload) > 100 {
		return vtxerr.New(vtxerr.InvalidParam, "rx.Start")
	}
	return r.emitControl(wire.FrameStart, 0, payload, 0)
}

// Stop notifies the sender to stop streaming (STOP).
func (r *Receiver) Stop() error {
	return r.emitControl(wire.FrameStop, 0, nil, 0)
}

// Close emits DISCONNECT best-effort and tears down session state. Safe to
// call more than once.
func (r *Receiver) Close() error {
	r.mu.Lock()
	connected := r.state == StateConnected
	r.state = StateIdle
	r.mu.Unlock()

	if connected {
		_ = r.emitControl(wire.FrameDisconnect, 0, nil, 0)
	}
	r.releaseSession()
	r.dispatchConnect(false)
	return nil
}

// Destroy releases all pooled resources and closes the socket.
func (r *Receiver) Destroy() error {
	r.shutdown.Set()
	_ = r.Close()
	var err error
	if r.conn != nil {
		err = r.conn.Close()
	}
	r.wg.Wait()
	return err
}

func (r *Receiver) releaseSession() {
	for {
		f := r.reassemblyQueue.PopHead()
		if f == nil {
			break
		}
		if f.Reassembly != nil {
			r.pools.Bitmaps.Release(f.Reassembly)
			f.Reassembly = nil
		}
		f.Release()
	}
	for {
		f := r.reliableQueue.PopHead()
		if f == nil {
			break
		}
		f.Release()
	}

	r.lastIMu.Lock()
	if r.lastIFrame != nil {
		r.lastIFrame.Release()
		r.lastIFrame = nil
	}
	r.lastIMu.Unlock()
}

func (r *Receiver) dispatchFrame(data []byte, frameType wire.FrameType) {
	if r.onFrame == nil {
		return
	}
	safehook.Run("rx.onFrame", func() { r.onFrame(data, frameType) })
}

func (r *Receiver) dispatchData(data []byte) {
	if r.onData == nil {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	safehook.Run("rx.onData", func() { r.onData(cp) })
}

func (r *Receiver) dispatchConnect(connected bool) {
	if r.onConnect == nil {
		return
	}
	safehook.Run("rx.onConnect", func() { r.onConnect(connected) })
}
