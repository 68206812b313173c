package rx

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtxgo/pkg/vtxclock"
	"vtxgo/pkg/vtxconfig"
	"vtxgo/pkg/wire"
)

type fakeClock struct{ ms int64 }

func newFakeClock(start int64) *fakeClock  { return &fakeClock{ms: start} }
func (c *fakeClock) NowMS() int64          { return c.ms }
func (c *fakeClock) Advance(deltaMS int64) { c.ms += deltaMS }

// newTestReceiver wires a real loopback socket (so fragment-ACK emission
// has somewhere to write) but sets CONNECTED state directly instead of
// running the real handshake, so timer-driven behavior can be exercised
// with a fake clock instead of real sleeps.
func newTestReceiver(t *testing.T, cfg vtxconfig.RXConfig, onFrame OnFrame) *Receiver {
	t.Helper()
	cfg.ServerAddr = "127.0.0.1"
	r, err := Create(cfg, onFrame, nil, nil)
	require.NoError(t, err)

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	r.conn = conn
	r.serverAddr = conn.LocalAddr().(*net.UDPAddr)
	r.mu.Lock()
	r.state = StateConnected
	r.mu.Unlock()

	return r
}

// TestMediaReassemblyAndDuplicate walks scenario 3's receive side: a
// 3-fragment I frame reassembles out of order, a repeat of an already-seen
// fragment counts as a duplicate without re-delivering, and on_frame fires
// exactly once.
func TestMediaReassemblyAndDuplicate(t *testing.T) {
	cfg := vtxconfig.RXConfig{MTU: 22} // maxPayload = 22-16 = 6
	var got []byte
	var gotType wire.FrameType
	calls := 0
	r := newTestReceiver(t, cfg, func(data []byte, ft wire.FrameType) {
		calls++
		got = append([]byte{}, data...)
		gotType = ft
	})

	data := []byte("ABCDEFGHIJKLMNOP") // 16 bytes -> ceil(16/6) = 3 fragments
	frags := [][]byte{data[0:6], data[6:12], data[12:16]}

	r.handleMediaFragment(wire.Header{FrameID: 7, FrameType: wire.FrameI, FragIndex: 0, TotalFrags: 3, PayloadSize: 6}, frags[0])
	r.handleMediaFragment(wire.Header{FrameID: 7, FrameType: wire.FrameI, FragIndex: 2, TotalFrags: 3, PayloadSize: 4}, frags[2])
	assert.Equal(t, 0, calls, "not complete until fragment 1 arrives")

	// duplicate of fragment 0 before the frame completes
	r.handleMediaFragment(wire.Header{FrameID: 7, FrameType: wire.FrameI, FragIndex: 0, TotalFrags: 3, PayloadSize: 6}, frags[0])
	assert.EqualValues(t, 1, r.GetStats().DupPackets)

	r.handleMediaFragment(wire.Header{FrameID: 7, FrameType: wire.FrameI, FragIndex: 1, TotalFrags: 3, PayloadSize: 6}, frags[1])
	require.Equal(t, 1, calls)
	assert.Equal(t, wire.FrameI, gotType)
	assert.Equal(t, data, got)

	// the reassembly queue entry should be gone and its bitmap released
	assert.Equal(t, 0, r.reassemblyQueue.Len())
}

// TestReassemblyTimeoutReaping walks scenario 4: an incomplete P frame is
// dropped once frame_timeout_ms elapses and counted.
func TestReassemblyTimeoutReaping(t *testing.T) {
	cfg := vtxconfig.RXConfig{MTU: 20, FrameTimeoutMS: 100}
	r := newTestReceiver(t, cfg, nil)
	clk := newFakeClock(0)
	r.SetClock(clk)

	r.handleMediaFragment(wire.Header{FrameID: 9, FrameType: wire.FrameP, FragIndex: 0, TotalFrags: 2, PayloadSize: 6}, []byte("ABCDEF"))
	require.Equal(t, 1, r.reassemblyQueue.Len())

	clk.Advance(50)
	r.reapReassembly(clk.NowMS())
	assert.Equal(t, 1, r.reassemblyQueue.Len(), "not yet timed out")

	clk.Advance(60)
	r.reapReassembly(clk.NowMS())
	assert.Equal(t, 0, r.reassemblyQueue.Len())
	assert.EqualValues(t, 1, r.GetStats().IncompleteFrames)
}

// TestLossDetection covers spec.md §4.G's sequence-gap loss counting.
func TestLossDetection(t *testing.T) {
	r := newTestReceiver(t, vtxconfig.RXConfig{}, nil)
	r.trackSequence(0)
	r.trackSequence(1)
	assert.EqualValues(t, 0, r.GetStats().LostPackets)

	r.trackSequence(5)
	assert.EqualValues(t, 3, r.GetStats().LostPackets)
}

// TestReliableControlRetransmission mirrors tx's equivalent: an unacked
// USER send is retransmitted and then dropped once exhausted.
func TestReliableControlRetransmission(t *testing.T) {
	cfg := vtxconfig.RXConfig{DataRetransTimeoutMS: 30, DataMaxRetrans: 1}
	r := newTestReceiver(t, cfg, nil)
	clk := newFakeClock(0)
	r.SetClock(clk)

	require.NoError(t, r.Send([]byte("hello")))
	assert.Equal(t, 1, r.reliableQueue.Len())

	clk.Advance(30)
	r.scanReliableRetransmit(clk.NowMS())
	assert.EqualValues(t, 1, r.GetStats().RetransPackets)

	clk.Advance(30)
	r.scanReliableRetransmit(clk.NowMS())
	assert.Equal(t, 0, r.reliableQueue.Len())
}

// TestHeartbeatLivenessTimeout covers the RX-side symmetrical liveness
// check decided in spec.md §9's open question.
func TestHeartbeatLivenessTimeout(t *testing.T) {
	cfg := vtxconfig.RXConfig{HeartbeatIntervalMS: 1000, HeartbeatMaxMiss: 2}
	connected := true
	r := newTestReceiver(t, cfg, nil)
	r.onConnect = func(ok bool) { connected = ok }
	clk := newFakeClock(0)
	r.SetClock(clk)

	clk.Advance(2001)
	r.checkHeartbeatLiveness(clk.NowMS())
	assert.Equal(t, StateIdle, r.State())
	assert.False(t, connected)
}

// TestDropSourceSimulatesInboundLoss covers spec.md §2-B's debug-only
// fault-injection collaborator on the RX side: a DropSource reporting
// every packet lost prevents the handshake ACK from ever being observed.
func TestDropSourceSimulatesInboundLoss(t *testing.T) {
	cfg := vtxconfig.RXConfig{ServerAddr: "127.0.0.1"}
	r, err := Create(cfg, nil, nil, nil)
	require.NoError(t, err)

	serverSock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSock.Close() })

	clientSock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSock.Close() })

	r.conn = clientSock
	r.serverAddr = serverSock.LocalAddr().(*net.UDPAddr)
	r.mu.Lock()
	r.state = StateConnecting
	r.mu.Unlock()
	r.SetDropSource(vtxclock.NewRandomDrop(1.0, 1))

	h := wire.Header{FrameType: wire.FrameConnected, TotalFrags: 1}
	buf := wire.Emit(h, nil, nil)
	_, err = serverSock.WriteToUDP(buf, clientSock.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	_, err = r.Poll(50)
	require.NoError(t, err)
	assert.Equal(t, StateConnecting, r.State(), "dropped CONNECTED must not complete the handshake")
}
