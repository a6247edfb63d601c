package env

import (
	"golang.org/x/sys/unix"
)

// MmapRegion is a resizable, writable mapping of a single backing
// file, grounded in original_source/src/env.cpp's MmapRWFile and
// other_examples/Sherlockouo-build_your_own_db__kv.go's extendMmap
// (doubling growth via mremap on Linux).
type MmapRegion struct {
	fd   int
	base []byte
}

// OpenMmapRegion opens (creating if needed) name, grows it to at
// least n bytes and maps it read-write.
func OpenMmapRegion(name string, n int64) (*MmapRegion, error) {
	fd, err := OpenFile(name)
	if err != nil {
		return nil, err
	}

	if err := FileAllocate(fd, n); err != nil {
		unix.Close(fd)
		return nil, err
	}

	base, err := unix.Mmap(fd, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &MmapRegion{fd: fd, base: base}, nil
}

// Base returns the current mapped region. Callers must re-fetch Base
// after any Resize, since the underlying address can move.
func (m *MmapRegion) Base() []byte {
	return m.base
}

// Resize grows the backing file to n bytes and remaps, doubling the
// allocator's usable space (the pagefile package calls this once its
// free list runs dry).
func (m *MmapRegion) Resize(n int64) error {
	if err := FileAllocate(m.fd, n); err != nil {
		return err
	}
	base, err := unix.Mremap(m.base, int(n), unix.MREMAP_MAYMOVE)
	if err != nil {
		return err
	}
	m.base = base
	return nil
}

// Close unmaps and closes the backing file.
func (m *MmapRegion) Close() error {
	if err := unix.Munmap(m.base); err != nil {
		return err
	}
	return unix.Close(m.fd)
}
