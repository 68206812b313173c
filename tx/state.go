// Package tx implements the transmitter half of the transport: the server
// side of the three-way handshake, media send with per-fragment ARQ for key
// frames, reliable control send, heartbeat liveness, and the stats/control
// surface. Grounded on the teacher's Server/RakNetHandler pairing
// (source/server/server.go, source/protocol/raknet.go): a bound UDP socket,
// a caller-driven read/dispatch loop, and session state protected by a
// single mutex, generalized from SA-MP's one-server-many-sessions shape to
// spec.md §4.F's one-server-one-session-at-a-time handshake.
package tx

// State is one of the transmitter's connection states (spec.md §4.F).
type State int

const (
	StateListening State = iota
	StateAwaitingConnect
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateAwaitingConnect:
		return "AWAITING_CONNECT"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}
