// Package env wraps the file- and mapping-level syscalls the disk
// backend needs: allocation, prefetch hints and a resizable mmap
// region. Grounded in original_source/src/env.cpp (OpenFile,
// FileAllocate, FilePrefetch, FileHint, MmapRWFile), translated from
// posix_fallocate/readahead/mremap to golang.org/x/sys/unix, the same
// package the teacher already depends on for flock-adjacent syscalls.
package env

import (
	"golang.org/x/sys/unix"
)

const filePerm = 0644

// AccessPattern mirrors the C++ AccessPattern enum consumed by
// FileHint and MmapRegion.Hint.
type AccessPattern int

const (
	Normal AccessPattern = iota
	Sequential
	Random
)

// OpenFile opens name for read/write, creating it if needed, and
// returns the raw file descriptor. Raw unix.Open is used instead of
// os.OpenFile so the fd's lifetime isn't tied to an *os.File finalizer
// while pagefile and seglog hold onto it across mmap/mremap calls.
func OpenFile(name string) (int, error) {
	return unix.Open(name, unix.O_CREAT|unix.O_RDWR, filePerm)
}

// FileAllocate grows fd to at least n bytes without requiring a write
// of every byte first (posix_fallocate on Linux).
func FileAllocate(fd int, n int64) error {
	return unix.Fallocate(fd, 0, 0, n)
}

// FilePrefetch hints the kernel to read n bytes at offset into page
// cache ahead of a synchronous pread, hiding disk latency behind the
// poll cycle (spec.md's "hide I/O latency behind readiness-loop
// ticks").
func FilePrefetch(fd int, offset int64, n int) error {
	_, _, errno := unix.Syscall(unix.SYS_READAHEAD, uintptr(fd), uintptr(offset), uintptr(n))
	if errno != 0 {
		return errno
	}
	return nil
}

// FileHint advises the kernel of the file's expected access pattern.
func FileHint(fd int, pattern AccessPattern) error {
	return unix.Fadvise(fd, 0, 0, fadviseFlag(pattern))
}

func fadviseFlag(pattern AccessPattern) int {
	switch pattern {
	case Sequential:
		return unix.FADV_SEQUENTIAL
	case Random:
		return unix.FADV_RANDOM
	default:
		return unix.FADV_NORMAL
	}
}

// FileRangeSync starts async writeback of the given byte range
// without waiting for it to land, matching sync_file_range's
// SYNC_FILE_RANGE_WRITE-only usage in the original.
func FileRangeSync(fd int, offset, n int64) error {
	return unix.SyncFileRange(fd, offset, n, unix.SYNC_FILE_RANGE_WRITE)
}
