// Package executor defines the pluggable command backend contract
// (spec.md §4: "dispatches each command to a pluggable storage
// backend") and the in-memory implementation. The disk-resident
// implementation lives in package disk, which also satisfies this
// Executor interface.
package executor

import (
	"cheapisdakv/client"
	"cheapisdakv/poller"
)

// EventSink is the event loop driver's surface an executor needs
// while running Execute: attempting the write-through fast path for a
// freshly-appended reply, resubscribing a client's fd for writable
// readiness when a response could not be written through
// immediately, and releasing a client whose RefCount has dropped to
// zero after being marked for deferred close.
type EventSink interface {
	// TryWrite attempts a single non-blocking write of c.Output to fd,
	// compacting whatever was written. Used as the write-through fast
	// path: a reply appended to a previously-empty output buffer gets
	// one immediate write attempt before falling back to a Writable
	// subscription.
	TryWrite(fd int, c *client.Client) error
	AddEvent(fd int, mask poller.Mask) error
	Release(fd int) error
}

// Executor is the pluggable storage backend contract spec.md §4
// describes. Submit enqueues a command FIFO; Execute drains up to n
// queued commands, writing RESP replies to each task's client output
// buffer.
type Executor interface {
	// Submit copies argv (borrowed from the client's input buffer)
	// into an owned task and increments c.RefCount.
	Submit(argv [][]byte, c *client.Client, fd int)

	// Execute drains up to n queued tasks, dispatching each by
	// command and appending a RESP reply to its client's output
	// buffer (unless the client was closed before execution).
	Execute(n int, currTime int64, sink EventSink)

	// TaskCount reports how many tasks are currently queued, used by
	// the event loop to size the next poll timeout and half-drain.
	TaskCount() int

	// Close releases any resources (open file descriptors, mappings)
	// held by the executor.
	Close() error
}
