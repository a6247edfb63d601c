// Package pagefile is the page allocator (component F): fixed-size
// pages over a single resizable mmap region, a free list threaded
// through freed pages themselves, and doubling growth. Grounded in
// original_source/src/disk/executor_disk_impl.cpp's AllocatorImpl
// (AllocatePage/FreePage/Grow) and the free-list recycling pattern in
// other_examples/longluo-database-from-scratch__free_list.go, backed
// by env.MmapRegion instead of a raw mmap/mremap pair.
package pagefile

import (
	"encoding/binary"

	"cheapisdakv/env"
	"cheapisdakv/errs"
)

const (
	PageSize      = 4096
	initialPages  = 16
	noRecycleSlot = -1
)

// Allocator hands out and reclaims PageSize-byte offsets into a single
// mmap'd file. The zero-allocated page at offset 0 is reserved for the
// index root so "page offset 0" is never ambiguous with "no page".
type Allocator struct {
	region   *env.MmapRegion
	allocate int64
	recycle  int64
}

func Open(name string) (*Allocator, error) {
	region, err := env.OpenMmapRegion(name, initialPages*PageSize)
	if err != nil {
		return nil, err
	}
	return &Allocator{region: region, recycle: noRecycleSlot}, nil
}

// Base returns the current backing slice; callers must re-fetch it
// after any call that can Grow, since mremap can move the mapping.
func (a *Allocator) Base() []byte {
	return a.region.Base()
}

// AllocatePage returns a zeroed page's offset, recycling a freed page
// if the free list is non-empty, else bumping the allocate pointer and
// growing the file if it is exhausted.
func (a *Allocator) AllocatePage() (int64, error) {
	if a.recycle != noRecycleSlot {
		offset := a.recycle
		a.recycle = int64(binary.LittleEndian.Uint64(a.Base()[offset : offset+8]))
		zeroPage(a.Base(), offset)
		return offset, nil
	}

	offset := a.allocate
	need := offset + PageSize
	if need > int64(len(a.Base())) {
		if err := a.grow(); err != nil {
			return 0, err
		}
		if need > int64(len(a.Base())) {
			return 0, errs.AllocatorFullErr
		}
	}
	a.allocate = need
	zeroPage(a.Base(), offset)
	return offset, nil
}

// FreePage threads offset onto the free list, storing the previous
// list head in the freed page's first 8 bytes.
func (a *Allocator) FreePage(offset int64) {
	binary.LittleEndian.PutUint64(a.Base()[offset:offset+8], uint64(a.recycle))
	a.recycle = offset
}

func (a *Allocator) grow() error {
	return a.region.Resize(int64(len(a.Base())) * 2)
}

func (a *Allocator) Close() error {
	return a.region.Close()
}

func zeroPage(base []byte, offset int64) {
	page := base[offset : offset+PageSize]
	for i := range page {
		page[i] = 0
	}
}
