package tx

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtxgo/pkg/vtxclock"
	"vtxgo/pkg/vtxconfig"
	"vtxgo/pkg/vtxerr"
	"vtxgo/pkg/wire"
)

type fakeClock struct{ ms int64 }

func newFakeClock(start int64) *fakeClock  { return &fakeClock{ms: start} }
func (c *fakeClock) NowMS() int64          { return c.ms }
func (c *fakeClock) Advance(deltaMS int64) { c.ms += deltaMS }

func newTestTransmitter(t *testing.T, cfg vtxconfig.TXConfig) *Transmitter {
	t.Helper()
	cfg.BindAddr = "127.0.0.1"
	transmitter, err := Create(cfg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, transmitter.Listen())
	t.Cleanup(func() { _ = transmitter.Destroy() })
	return transmitter
}

// TestHandshakeSuccessAndHeartbeatTimeout walks scenario 1 and 6 of the
// spec's literal end-to-end scenarios without a real peer socket: the
// dispatch entry points are exercised directly, and time is driven by a
// fake clock instead of real sleeps.
func TestHandshakeSuccessAndHeartbeatTimeout(t *testing.T) {
	transmitter := newTestTransmitter(t, vtxconfig.TXConfig{})
	clk := newFakeClock(1_000)
	transmitter.SetClock(clk)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40000}

	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameConnect, TotalFrags: 1}, nil, peer)
	assert.Equal(t, StateAwaitingConnect, transmitter.State())

	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameACK, TotalFrags: 1}, nil, peer)
	assert.Equal(t, StateConnected, transmitter.State())

	clk.Advance(int64(transmitter.cfg.HeartbeatIntervalMS)*int64(transmitter.cfg.HeartbeatMaxMiss) + 1)
	transmitter.checkHeartbeatLiveness(clk.NowMS())
	assert.Equal(t, StateListening, transmitter.State())
}

// TestConnectRetransmissionExhaustion walks scenario 2: a dropped
// CONNECTED is retransmitted until connect_max_retrans is exhausted.
func TestConnectRetransmissionExhaustion(t *testing.T) {
	cfg := vtxconfig.TXConfig{ConnectTimeoutMS: 100, ConnectMaxRetrans: 3}
	transmitter := newTestTransmitter(t, cfg)
	clk := newFakeClock(0)
	transmitter.SetClock(clk)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40001}
	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameConnect, TotalFrags: 1}, nil, peer)
	require.Equal(t, StateAwaitingConnect, transmitter.State())

	for i := 0; i < 3; i++ {
		clk.Advance(int64(cfg.ConnectTimeoutMS))
		transmitter.scanHandshakeRetransmit(clk.NowMS())
		require.Equal(t, StateAwaitingConnect, transmitter.State())
	}

	clk.Advance(int64(cfg.ConnectTimeoutMS))
	transmitter.scanHandshakeRetransmit(clk.NowMS())
	assert.Equal(t, StateListening, transmitter.State())
}

// TestKeyFrameRetransmissionThenAbandon walks scenario 3's retransmission
// side in isolation: with no peer ACKing, a key-frame fragment is resent
// until max_retrans is exhausted, then abandoned and counted.
func TestKeyFrameRetransmissionThenAbandon(t *testing.T) {
	cfg := vtxconfig.TXConfig{RetransTimeoutMS: 5, MaxRetrans: 2}
	transmitter := newTestTransmitter(t, cfg)
	clk := newFakeClock(0)
	transmitter.SetClock(clk)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40002}
	transmitter.mu.Lock()
	transmitter.state = StateConnected
	transmitter.peerAddr = peer
	transmitter.mu.Unlock()

	f, err := transmitter.AllocMediaFrame(wire.FrameI, 10)
	require.NoError(t, err)
	copy(f.Data, []byte("0123456789"))
	require.NoError(t, transmitter.SendMedia(f))

	clk.Advance(10)
	transmitter.scanKeyFrameRetransmit(clk.NowMS())
	assert.EqualValues(t, 1, transmitter.GetStats().RetransPackets)

	clk.Advance(10)
	transmitter.scanKeyFrameRetransmit(clk.NowMS())
	assert.EqualValues(t, 2, transmitter.GetStats().RetransPackets)

	clk.Advance(10)
	transmitter.scanKeyFrameRetransmit(clk.NowMS())
	assert.EqualValues(t, 1, transmitter.GetStats().DroppedFragments)
	assert.EqualValues(t, 2, transmitter.GetStats().RetransPackets, "no further resend once abandoned")
}

// TestReliableControlRetransmission walks scenario 5's send side: an
// unacked USER frame is retransmitted past data_retrans_timeout_ms and
// dropped once data_max_retrans is exhausted.
func TestReliableControlRetransmission(t *testing.T) {
	cfg := vtxconfig.TXConfig{DataRetransTimeoutMS: 30, DataMaxRetrans: 1}
	transmitter := newTestTransmitter(t, cfg)
	clk := newFakeClock(0)
	transmitter.SetClock(clk)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40003}
	transmitter.mu.Lock()
	transmitter.state = StateConnected
	transmitter.peerAddr = peer
	transmitter.mu.Unlock()

	require.NoError(t, transmitter.Send([]byte("hello")))
	assert.Equal(t, 1, transmitter.reliableQueue.Len())

	clk.Advance(30)
	transmitter.scanReliableRetransmit(clk.NowMS())
	assert.EqualValues(t, 1, transmitter.GetStats().RetransPackets)

	clk.Advance(30)
	transmitter.scanReliableRetransmit(clk.NowMS())
	assert.Equal(t, 0, transmitter.reliableQueue.Len(), "dropped after exhausting data_max_retrans")
}

// TestAckRemovesReliableControlEntry confirms an ACK for the USER frame's
// id removes it from the reliable-control queue without a retransmission.
func TestAckRemovesReliableControlEntry(t *testing.T) {
	cfg := vtxconfig.TXConfig{DataRetransTimeoutMS: 30, DataMaxRetrans: 3}
	transmitter := newTestTransmitter(t, cfg)
	clk := newFakeClock(0)
	transmitter.SetClock(clk)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40004}
	transmitter.mu.Lock()
	transmitter.state = StateConnected
	transmitter.peerAddr = peer
	transmitter.mu.Unlock()

	require.NoError(t, transmitter.Send([]byte("hi")))
	require.Equal(t, 1, transmitter.reliableQueue.Len())

	f := transmitter.reliableQueue.Snapshot()[0]
	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameACK, FrameID: f.FrameID, TotalFrags: 1}, nil, peer)
	assert.Equal(t, 0, transmitter.reliableQueue.Len())
}

// TestStartURLParsing covers the zero-terminated/overlong URL rule from
// spec.md §6.
func TestStartURLParsing(t *testing.T) {
	s := parseStartURL([]byte("rtsp://host/path\x00"))
	require.NotNil(t, s)
	assert.Equal(t, "rtsp://host/path", *s)

	assert.Nil(t, parseStartURL([]byte("no-terminator")))
	assert.Nil(t, parseStartURL(nil))
}

// TestPollReportsDisconnectedAfterPeerDisconnect covers spec.md §7: once a
// session terminates, the next Poll call surfaces DISCONNECTED instead of
// silently reporting (false, nil) forever after.
func TestPollReportsDisconnectedAfterPeerDisconnect(t *testing.T) {
	transmitter := newTestTransmitter(t, vtxconfig.TXConfig{})
	clk := newFakeClock(0)
	transmitter.SetClock(clk)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40005}
	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameConnect, TotalFrags: 1}, nil, peer)
	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameACK, TotalFrags: 1}, nil, peer)
	require.Equal(t, StateConnected, transmitter.State())

	var gotKind wire.FrameType
	var gotURL *string
	transmitter.onMedia = func(kind wire.FrameType, url *string) { gotKind = kind; gotURL = url }

	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameDisconnect, TotalFrags: 1}, nil, peer)
	assert.Equal(t, wire.FrameDisconnect, gotKind)
	assert.Nil(t, gotURL)

	_, err := transmitter.Poll(1)
	require.Error(t, err)
	assert.True(t, vtxerr.Is(err, vtxerr.Disconnected))

	// the flag is latched, not sticky: the next poll is clean again.
	_, err = transmitter.Poll(1)
	assert.False(t, vtxerr.Is(err, vtxerr.Disconnected))
}

// TestPollReportsDisconnectedAfterHeartbeatTimeout covers the same §7
// contract on the heartbeat-liveness teardown path.
func TestPollReportsDisconnectedAfterHeartbeatTimeout(t *testing.T) {
	transmitter := newTestTransmitter(t, vtxconfig.TXConfig{})
	clk := newFakeClock(1_000)
	transmitter.SetClock(clk)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40006}
	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameConnect, TotalFrags: 1}, nil, peer)
	transmitter.handleDatagram(wire.Header{FrameType: wire.FrameACK, TotalFrags: 1}, nil, peer)

	var gotKind wire.FrameType
	transmitter.onMedia = func(kind wire.FrameType, url *string) { gotKind = kind }

	clk.Advance(int64(transmitter.cfg.HeartbeatIntervalMS)*int64(transmitter.cfg.HeartbeatMaxMiss) + 1)
	transmitter.checkHeartbeatLiveness(clk.NowMS())
	assert.Equal(t, StateListening, transmitter.State())
	assert.Equal(t, wire.FrameDisconnect, gotKind)

	_, err := transmitter.Poll(1)
	assert.True(t, vtxerr.Is(err, vtxerr.Disconnected))
}

// TestDropSourceSimulatesInboundLoss covers spec.md §2-B's debug-only
// fault-injection collaborator: a DropSource reporting every packet lost
// prevents the handshake from ever completing.
func TestDropSourceSimulatesInboundLoss(t *testing.T) {
	transmitter := newTestTransmitter(t, vtxconfig.TXConfig{})
	transmitter.SetDropSource(vtxclock.NewRandomDrop(1.0, 1))

	client, err := net.DialUDP("udp4", nil, transmitter.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	h := wire.Header{FrameType: wire.FrameConnect, TotalFrags: 1}
	buf := wire.Emit(h, nil, nil)
	_, err = client.Write(buf)
	require.NoError(t, err)

	_, err = transmitter.Poll(50)
	require.NoError(t, err)
	assert.Equal(t, StateListening, transmitter.State(), "dropped CONNECT must not advance the handshake")
}
