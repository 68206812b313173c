// Package vtxclock supplies the monotonic millisecond clock the transport
// consumes as an external collaborator (spec.md §1), plus an optional
// debug-only drop-rate source for fault injection in tests. Neither the
// teacher nor the rest of the retrieved pack carries a time/RNG
// abstraction library for this; both are thin enough that the standard
// library (time, math/rand) is the idiomatic choice here rather than
// reaching for a dependency that would only wrap two calls.
package vtxclock

import (
	"math/rand"
	"time"
)

// Clock yields the monotonic millisecond timestamps the state machines
// stamp send/recv times with. A fixed Clock lets tests drive timeouts
// deterministically instead of racing wall-clock sleeps.
type Clock interface {
	NowMS() int64
}

// System is the production Clock, backed by time.Now().
type System struct{}

// processStart anchors System's readings; time.Since measures from it on
// Go's monotonic clock.
var processStart = time.Now()

// NowMS returns the milliseconds elapsed since the package was initialized,
// read from the monotonic clock, so wall-clock adjustments do not move it.
func (System) NowMS() int64 { return time.Since(processStart).Milliseconds() }

// DropSource decides, for debug builds, whether an outbound or inbound
// packet should be simulated as lost. Production code always uses NoDrop.
type DropSource interface {
	ShouldDrop() bool
}

// NoDrop never drops a packet.
type NoDrop struct{}

// ShouldDrop always reports false.
func (NoDrop) ShouldDrop() bool { return false }

// RandomDrop drops a fraction of packets at random, for soak tests that
// exercise the ARQ/retransmission paths without a real lossy network.
type RandomDrop struct {
	rnd  *rand.Rand
	rate float64
}

// NewRandomDrop constructs a RandomDrop with the given drop probability in
// [0, 1], seeded deterministically from seed.
func NewRandomDrop(rate float64, seed int64) *RandomDrop {
	return &RandomDrop{rnd: rand.New(rand.NewSource(seed)), rate: rate}
}

// ShouldDrop reports true with probability rate.
func (d *RandomDrop) ShouldDrop() bool {
	if d.rate <= 0 {
		return false
	}
	return d.rnd.Float64() < d.rate
}
