package tx

import (
	"vtxgo/pkg/vtxlog"
)

// defaultPollTimeoutMS bounds how long Run's background loop blocks in a
// single Poll call, so shutdown is observed promptly.
const defaultPollTimeoutMS = 50

// Run starts a background goroutine that drives Poll in a loop until
// Destroy is called or Poll returns an error (including the DISCONNECTED
// that Poll reports once after a session ends). It is supervised by a conc.WaitGroup, so a panic
// escaping the poll/dispatch path surfaces on Wait instead of crashing the
// process silently; Destroy calls Wait itself, so callers that only ever
// use Run+Destroy never need to call it directly. Callers that prefer to
// drive Poll themselves (e.g. from an existing event loop) can ignore Run
// entirely.
func (t *Transmitter) Run() {
	t.wg.Go(func() {
		for !t.shutdown.IsSet() {
			if _, err := t.Poll(defaultPollTimeoutMS); err != nil {
				vtxlog.Warnf("tx: poll loop stopped: %v", err)
				return
			}
		}
	})
}

// Wait blocks until the background poll loop started by Run has exited,
// re-raising any panic it caught. A no-op if Run was never called.
func (t *Transmitter) Wait() {
	t.wg.Wait()
}
