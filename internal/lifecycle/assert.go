// internal/lifecycle/assert.go

package lifecycle

import (
	"fmt"
	"sync/atomic"
)

var violations atomic.Int64

// Violations returns how many illegal transitions were ignored since process start.
// Builds with the framedebug tag panic instead of counting.
func Violations() int64 {
	return violations.Load()
}

// violation reports an illegal transition. It is a programming error in the
// phase ordering, so debug builds stop immediately.
func violation(format string, args ...any) {
	violations.Add(1)
	if debugAssertions {
		panic(fmt.Sprintf("lifecycle: "+format, args...))
	}
}
