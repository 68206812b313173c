// Package safehook runs a user-supplied callback from the polling thread
// with a recovered panic boundary: spec.md §9 requires that "the transport
// must not unwind through a user callback". Grounded on
// github.com/sourcegraph/conc's panics.Catcher, present in the retrieved
// pack's dependency surface (firestige-Otus/go.mod) for exactly this
// "supervise a goroutine/callback, don't let it take the caller down"
// purpose.
package safehook

import (
	"github.com/sourcegraph/conc/panics"

	"vtxgo/pkg/vtxlog"
)

// Run invokes fn, recovering and logging any panic instead of propagating
// it to the poll loop's caller.
func Run(name string, fn func()) {
	var catcher panics.Catcher
	catcher.Try(fn)
	if r := catcher.Recovered(); r != nil {
		vtxlog.Errorf("safehook: %s panicked: %v", name, r.AsError())
	}
}
