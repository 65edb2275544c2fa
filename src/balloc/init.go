package balloc

import (
	"math"
	"math/bits"

	"github.com/rs/zerolog"
)

// defaultTableHeadroom is the number of extra frames a default,
// self-allocated address space reserves beyond a pool's own nr_pages, so
// that external pages (frames outside the pool's declared range) have
// somewhere to live when donated through Put.
const defaultTableHeadroom = 4096

// poolConfig collects the options a caller may pass to PoolInit /
// PoolInitEmpty.
type poolConfig struct {
	logger        *zerolog.Logger
	table         *pageTable
	addr          *addressSpace
	tableCapacity uint64
}

// PoolOption configures a pool at construction time, the way
// ConanHorus/fds's BuddyAllocatorOption configures a BuddyAllocator.
type PoolOption func(*poolConfig)

// WithLogger overrides the pool's structured logger.
func WithLogger(l zerolog.Logger) PoolOption {
	return func(c *poolConfig) { c.logger = &l }
}

// WithTableCapacity sets how many frames, counted from start_pfn, the
// pool's self-allocated metadata table and address space cover, in place
// of the default nr_pages plus defaultTableHeadroom. The value must cover
// the pool's own nr_pages as well as any external pages to be donated.
func WithTableCapacity(frames uint64) PoolOption {
	return func(c *poolConfig) { c.tableCapacity = frames }
}

// WithAddressSpace injects a pre-built metadata table and address space
// instead of letting the pool mmap its own arena. Used by tests that
// want several pools to share one address space, or that want a
// non-mmap-backed double.
func WithAddressSpace(table *pageTable, addr *addressSpace) PoolOption {
	return func(c *poolConfig) {
		c.table = table
		c.addr = addr
	}
}

// PoolInit initialises pool over nr_pages frames starting at start_pfn.
// The first reserved_pages frames are held back (refcount 1, never
// discoverable by Alloc); the rest are walked through Put, which
// naturally builds the buddy tree up to max_order.
func PoolInit(pool *Pool, startPfn, nrPages, reservedPages uint64, opts ...PoolOption) error {
	return poolInit(pool, startPfn, nrPages, reservedPages, false, opts...)
}

// PoolInitEmpty initialises pool with no resident range: range_start and
// range_end are set so that no address ever matches as pool-resident, so
// pages later attached via Put never coalesce with one another. This is
// the intended behaviour for a pool that only ever receives external
// donations.
func PoolInitEmpty(pool *Pool, nrPages uint64, opts ...PoolOption) error {
	return poolInit(pool, 0, nrPages, 0, true, opts...)
}

func poolInit(pool *Pool, startPfn, nrPages, reservedPages uint64, emptyAlloc bool, opts ...PoolOption) error {
	cfg := poolConfig{tableCapacity: nrPages + defaultTableHeadroom}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.table == nil || cfg.addr == nil {
		table, addr, err := newMmapBackedArena(startPfn + cfg.tableCapacity)
		if err != nil {
			return err
		}
		cfg.table, cfg.addr = table, addr
	}

	pool.table = cfg.table
	pool.addr = cfg.addr
	if cfg.logger != nil {
		pool.logger = *cfg.logger
	} else {
		pool.logger = defaultLogger
	}

	pool.lock = spinLock{}
	pool.maxOrder = effectiveMaxOrder(nrPages)
	for i := range pool.freeArea {
		listInit(&pool.freeArea[i])
	}

	if emptyAlloc {
		// All pages are attached from outside; an impossible range
		// makes the buddy-range check always reject coalescing.
		pool.rangeStart = math.MaxUint64
		pool.rangeEnd = 0
		pool.logger.Info().
			Uint64("nr_pages", nrPages).
			Int8("max_order", int8(pool.maxOrder)).
			Msg("balloc: pool initialised empty")
		return nil
	}

	pool.rangeStart = startPfn * PageSize
	pool.rangeEnd = pool.rangeStart + nrPages*PageSize

	for i := uint64(0); i < nrPages; i++ {
		pool.entry(startPfn + i).setRefcounted()
	}
	for i := reservedPages; i < nrPages; i++ {
		frame := startPfn + i
		_ = Put(pool, pool.addr.frameToVirt(frame))
	}

	pool.logger.Info().
		Uint64("range_start", pool.rangeStart).
		Uint64("range_end", pool.rangeEnd).
		Int8("max_order", int8(pool.maxOrder)).
		Uint64("reserved_pages", reservedPages).
		Msg("balloc: pool initialised")
	return nil
}

// effectiveMaxOrder computes min(MaxOrder, ceil_log2(nr_pages)).
func effectiveMaxOrder(nrPages uint64) Order {
	return min(MaxOrder, ceilLog2(nrPages))
}

func ceilLog2(n uint64) Order {
	if n <= 1 {
		return 0
	}
	return Order(bits.Len64(n - 1))
}

// Close unmaps the arena behind the pool's address space. It does not
// tell an arena the pool mapped itself from one injected with
// WithAddressSpace: closing a pool that shares an address space unmaps it
// for every pool using it. Pools in a live hypervisor are never
// destroyed; this exists for tests that tear pools down between cases.
func (p *Pool) Close() error {
	return p.addr.unmap()
}
