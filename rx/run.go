package rx

import (
	"vtxgo/pkg/vtxlog"
)

// defaultPollTimeoutMS bounds how long Run's background loop blocks in a
// single Poll call, so shutdown is observed promptly.
const defaultPollTimeoutMS = 50

// Run starts a background goroutine that drives Poll in a loop until
// Destroy is called, mirroring tx.Transmitter.Run: supervised by a
// conc.WaitGroup so a panic in the poll/dispatch path surfaces on Wait
// rather than crashing the process silently.
func (r *Receiver) Run() {
	r.wg.Go(func() {
		for !r.shutdown.IsSet() {
			if _, err := r.Poll(defaultPollTimeoutMS); err != nil {
				vtxlog.Warnf("rx: poll loop stopped: %v", err)
				return
			}
		}
	})
}

// Wait blocks until the background poll loop started by Run has exited,
// re-raising any panic it caught. A no-op if Run was never called.
func (r *Receiver) Wait() {
	r.wg.Wait()
}
