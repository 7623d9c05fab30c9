//go:build debug

package debug

import (
	"fmt"
	"runtime"
)

// DetectAllocation runs fn and panics if it made any heap allocation
// (the runtime's malloc count rose),
// verifying the allocation-freedom of Engine.Process. Only compiled into
// -tags debug builds; see alloc_nodebug.go for the always-available no-op.
func DetectAllocation(fn func()) {
	var before, after runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&before)

	fn()

	runtime.ReadMemStats(&after)

	if after.Mallocs > before.Mallocs {
		panic(fmt.Sprintf("allocation detected: %d mallocs during call", after.Mallocs-before.Mallocs))
	}
}
