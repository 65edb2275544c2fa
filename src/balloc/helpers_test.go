package balloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// newTestPool builds a pool for a test and registers its teardown.
func newTestPool(t *testing.T, startPfn, nrPages, reservedPages uint64) *Pool {
	t.Helper()
	pool := &Pool{}
	err := PoolInit(pool, startPfn, nrPages, reservedPages)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func newEmptyTestPool(t *testing.T, nrPages uint64) *Pool {
	t.Helper()
	pool := &Pool{}
	err := PoolInitEmpty(pool, nrPages)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

// assertPoolInvariants checks the invariants that can be verified
// without walking every frame: each non-empty
// free-area list is internally consistent (heads really are heads, with
// zero refcount and the matching order), and free_pages matches the sum
// of 2^order over the free heads actually linked in.
func assertPoolInvariants(t *testing.T, pool *Pool) {
	t.Helper()

	var total uint64
	for order := Order(0); order <= pool.maxOrder; order++ {
		head := &pool.freeArea[order]
		for n := head.next; n != head; n = n.next {
			frame := pool.nodeToFrame(n)
			e := pool.entry(frame)
			assert.Equal(t, order, e.Order(), "free_area[%d] holds a head with the wrong order", order)
			assert.Equal(t, int32(0), e.Refcount(), "free_area[%d] holds a non-free head", order)
			total += uint64(1) << uint(order)
		}
	}
	assert.Equal(t, total, pool.FreePages(), "free_pages does not match the sum over free heads")
}

func frameOf(pool *Pool, addr unsafe.Pointer) uint64 {
	return pool.virtToFrame(addr)
}
