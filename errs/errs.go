// Package errs collects the sentinel errors used across the server and
// storage engine, named in the teacher's CamelCaseErr convention
// (bitcask2/const/const.go).
package errs

import "errors"

var (
	// ShortWriteErr marks a write() that did not accept the whole
	// buffer. Fatal to the process: the index must never point past
	// the end of the data log (spec.md §4.G).
	ShortWriteErr = errors.New("short write to data file")

	// ShortReadErr marks a pread() that returned fewer bytes than
	// requested. Fatal to the process for the same reason as
	// ShortWriteErr.
	ShortReadErr = errors.New("short read from data file")

	// AllocatorFullErr is returned by AllocatePage when the arena is
	// still too small for another page after the allocator has doubled
	// it.
	AllocatorFullErr = errors.New("page allocator full")

	// LockHeldErr is returned when another process already holds the
	// disk backend's directory lock.
	LockHeldErr = errors.New("data directory is locked by another process")
)
