package balloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// pageTable is the dense, frame-number-indexed metadata array ("vmemmap")
// described by the allocator's data model. It is shared by every pool
// carved out of the same address space, so that frames "external" to one
// pool's range are still addressable through it.
type pageTable struct {
	entries []PageEntry
}

// addressSpace is the phys(frame)<->virt bijection backing a pageTable:
// one anonymous mmap arena, directly addressable, with frame N living at
// base + N*PageSize. This is the concrete default for the
// phys_to_page/virt_to_page mapping and its inverse; tests and advanced
// callers may substitute their own via WithAddressSpace.
type addressSpace struct {
	base uintptr
	data []byte // keeps the mapping alive and enables munmap
}

func newMmapBackedArena(frames uint64) (*pageTable, *addressSpace, error) {
	size := int(frames) * PageSize
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, err
	}
	addr := &addressSpace{
		base: uintptr(unsafe.Pointer(&data[0])),
		data: data,
	}
	table := &pageTable{entries: make([]PageEntry, frames)}
	return table, addr, nil
}

func (a *addressSpace) frameToVirt(frame uint64) unsafe.Pointer {
	return unsafe.Pointer(a.base + uintptr(frame)*PageSize)
}

func (a *addressSpace) virtToFrame(addr unsafe.Pointer) uint64 {
	return (uint64(uintptr(addr)) - uint64(a.base)) / PageSize
}

// unmap releases the backing arena. Pools are normally never destroyed
// in a running hypervisor, but tests tear pools down between cases.
func (a *addressSpace) unmap() error {
	if a == nil || a.data == nil {
		return nil
	}
	return unix.Munmap(a.data)
}
