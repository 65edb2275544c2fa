package balloc

import "unsafe"

// Alloc allocates a page group of the requested order, returning a
// directly addressable pointer to its body, or ErrOutOfMemory if no
// sufficiently large free group exists in the pool.
func Alloc(pool *Pool, wantOrder Order) (unsafe.Pointer, error) {
	pool.lock.Lock()

	i := wantOrder
	for i <= pool.maxOrder && listEmpty(&pool.freeArea[i]) {
		i++
	}
	if i > pool.maxOrder {
		pool.lock.Unlock()
		pool.logger.Debug().Int8("want_order", int8(wantOrder)).Msg("balloc: alloc out of memory")
		return nil, ErrOutOfMemory
	}

	frame := pool.nodeToFrame(pool.freeArea[i].next)
	frame, finalOrder := extractPage(pool, frame, wantOrder)
	pool.entry(frame).setRefcounted()
	pool.addFreePages(-(int64(1) << uint(finalOrder)))

	pool.lock.Unlock()
	return pool.frameToVirt(frame), nil
}

// Put releases a reference to the page group at addr. When the last
// reference goes away, the group is returned to the pool and coalesced
// with its buddy where possible.
func Put(pool *Pool, addr unsafe.Pointer) error {
	frame := pool.virtToFrame(addr)
	e := pool.entry(frame)

	order := e.Order()
	if order == NoOrder {
		reportContractViolation(pool, "put: address is not a head entry")
		return ErrNotAHead
	}
	if order > pool.maxOrder {
		reportContractViolation(pool, "put: head order exceeds pool max_order")
		return ErrOrderOverflow
	}

	zero, err := e.refDecAndTest(pool)
	if err != nil {
		return err
	}
	if zero {
		pool.lock.Lock()
		// Count only the frames released here: any buddies merged in by
		// attachPage were already counted when they were freed.
		attachPage(pool, frame, order)
		pool.addFreePages(int64(1) << uint(order))
		pool.lock.Unlock()
	}
	return nil
}

// SetRefcounted marks the page at addr as a freshly-owned order-0 head
// with refcount 1, the public equivalent of set_page_refcounted(p).
// Genuine external donations — frames the pool itself never allocated,
// handed in from outside its own range — must call this before Put:
// Put only ever decrements a refcount that something already set, and a
// never-touched PageEntry's zero value would otherwise read as an
// already-freed page and trip the double-free contract check.
func SetRefcounted(pool *Pool, addr unsafe.Pointer) {
	frame := pool.virtToFrame(addr)
	e := pool.entry(frame)
	e.setOrder(0)
	e.setRefcounted()
}

// Get adds a reference to an already-held page group at addr. It is a
// pure atomic increment and is not serialised against the pool: callers
// must already hold a live reference, or it races with a concurrent Put
// that observes the zero transition.
func Get(pool *Pool, addr unsafe.Pointer) {
	frame := pool.virtToFrame(addr)
	pool.entry(frame).refInc()
}

// Split converts an order-k head into 2^k independent order-0 heads,
// each with refcount 1, without touching the free area. It is intended
// for callers that obtained a large contiguous allocation but wish to
// hand out its base pages individually.
func Split(pool *Pool, addr unsafe.Pointer) {
	frame := pool.virtToFrame(addr)
	head := pool.entry(frame)
	order := head.Order()
	head.setOrder(0)

	for i := uint64(1); i < uint64(1)<<uint(order); i++ {
		tail := pool.entry(frame + i)
		tail.setOrder(0)
		tail.setRefcounted()
	}
}
