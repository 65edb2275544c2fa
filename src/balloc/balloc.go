// Package balloc implements a buddy page allocator for a minimal,
// privileged execution environment: fixed-size base pages and
// power-of-two contiguous page groups ("higher-order pages") drawn from
// one or more bounded physical-address ranges ("pools").
package balloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog"
)

const (
	// PageShift is the base-2 exponent of PageSize.
	PageShift = 12
	// PageSize is the size in bytes of a single base page.
	PageSize = 1 << PageShift

	// MaxOrder is the largest order any pool may expose.
	MaxOrder Order = 11
)

// Order is the base-2 logarithm of a page group's size in pages. An
// order-k group covers 2^k base pages contiguously and is aligned to
// PageSize<<k.
type Order int8

// NoOrder marks a page entry that is not the head of a free or allocated
// group: either a non-head tail of a larger group, or a free page
// covered by a higher-order buddy head.
const NoOrder Order = -1

// PageEntry describes one base-page frame. It is the allocator's only
// per-page state outside the page body; the body of a free head holds
// nothing but its free-list node, and an allocated body holds no
// bookkeeping at all.
type PageEntry struct {
	order    int32 // atomic; holds an Order, or NoOrder
	refcount int32 // atomic; 0 means free
}

// Order returns the entry's current order field.
func (e *PageEntry) Order() Order {
	return Order(atomic.LoadInt32(&e.order))
}

func (e *PageEntry) setOrder(o Order) {
	atomic.StoreInt32(&e.order, int32(o))
}

// Refcount returns the entry's current reference count with acquire
// semantics (ref_get).
func (e *PageEntry) Refcount() int32 {
	return atomic.LoadInt32(&e.refcount)
}

// setRefcounted sets the refcount to 1 (initial-owner convention;
// set_page_refcounted).
func (e *PageEntry) setRefcounted() {
	atomic.StoreInt32(&e.refcount, 1)
}

// refInc atomically increments the refcount (ref_inc).
func (e *PageEntry) refInc() {
	atomic.AddInt32(&e.refcount, 1)
}

// refDecAndTest atomically decrements the refcount and reports whether
// the result is zero (ref_dec_and_test). A decrement that would take the
// refcount negative is a double-free: it is routed to the
// contract-violation path and reported via ErrDoubleFree.
func (e *PageEntry) refDecAndTest(pool *Pool) (bool, error) {
	v := atomic.AddInt32(&e.refcount, -1)
	if v < 0 {
		reportContractViolation(pool, "refcount underflow: double free")
		atomic.StoreInt32(&e.refcount, 0)
		return false, ErrDoubleFree
	}
	return v == 0, nil
}

// Pool is a contiguous physical range and its free-area index: one
// doubly-linked list of free page heads per order, a running free-page
// counter, and a single spinlock guarding the free-area lists and the
// per-entry order field.
type Pool struct {
	rangeStart, rangeEnd uint64 // physical byte addresses
	maxOrder             Order
	freeArea             [MaxOrder + 1]listNode
	freePages            uint64 // atomic
	lock                 spinLock

	table  *pageTable
	addr   *addressSpace
	logger zerolog.Logger
}

func (p *Pool) entry(frame uint64) *PageEntry {
	return &p.table.entries[frame]
}

func (p *Pool) frameToVirt(frame uint64) unsafe.Pointer {
	return p.addr.frameToVirt(frame)
}

func (p *Pool) virtToFrame(addr unsafe.Pointer) uint64 {
	return p.addr.virtToFrame(addr)
}

func (p *Pool) frameToNode(frame uint64) *listNode {
	return (*listNode)(p.addr.frameToVirt(frame))
}

func (p *Pool) nodeToFrame(n *listNode) uint64 {
	return p.addr.virtToFrame(unsafe.Pointer(n))
}

// inRange reports whether a physical byte address belongs to the pool's
// declared range. Buddy relationships are only meaningful inside it.
func (p *Pool) inRange(phys uint64) bool {
	return phys >= p.rangeStart && phys < p.rangeEnd
}

func (p *Pool) addFreePages(delta int64) {
	atomic.AddUint64(&p.freePages, uint64(delta))
}

// FreePages reports the number of base frames currently free. It is a
// lock-free, advisory read: callers must not branch on exact equality
// against a concurrently-mutating pool.
func (p *Pool) FreePages() uint64 {
	return atomic.LoadUint64(&p.freePages)
}

// MaxOrder returns the pool's effective max_order (min(MaxOrder,
// ceil_log2(nr_pages)) as computed at initialisation).
func (p *Pool) MaxOrder() Order {
	return p.maxOrder
}
