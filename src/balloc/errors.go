package balloc

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrOutOfMemory is returned by Alloc when no free group of at least
	// the requested order exists. It aliases the platform ENOMEM errno,
	// the sentinel a hosted Go implementation of this allocator would
	// surface to mmap-style callers.
	ErrOutOfMemory = unix.ENOMEM

	// ErrNotAHead is a contract violation: the address passed to Put
	// does not correspond to a head entry.
	ErrNotAHead = errors.New("balloc: address does not correspond to a head entry")

	// ErrOrderOverflow is a contract violation: a head's order exceeds
	// the pool's max_order.
	ErrOrderOverflow = errors.New("balloc: order exceeds pool max_order")

	// ErrDoubleFree is a contract violation: Put observed a refcount
	// that was already zero.
	ErrDoubleFree = errors.New("balloc: refcount underflow (double free)")
)

// reportContractViolation routes a detected contract breakage (not an
// expected failure like OOM) to the build-tag-selected handler: fatal
// abort in checked builds, best-effort continuation otherwise.
func reportContractViolation(pool *Pool, msg string) {
	contractViolation(pool, msg)
}
