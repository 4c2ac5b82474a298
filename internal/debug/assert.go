package debug

import (
	"fmt"
	"runtime"
)

// Assert panics when a programmer invariant does not hold. Never use it on
// wire input: hostile bytes are errors, not bugs.
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("assert takes at most one message")
	}
	if truth {
		return
	}
	failure := "assertion failed"
	if len(msg) == 1 {
		failure = fmt.Sprintf("assertion failed: %s", msg[0])
	}
	// Name the assertion site; it would otherwise drown in the panic stack.
	if _, file, line, ok := runtime.Caller(1); ok {
		failure = fmt.Sprintf("%s:%d: %s", file, line, failure)
	}
	panic(failure)
}
