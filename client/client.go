// Package client holds the per-connection Client record (spec.md §3,
// §4.C). It is its own package, separate from both the event loop
// driver and the executors, because both of those need to see Client
// without creating an import cycle between them.
package client

import "cheapisdakv/resp"

// Client is the per-accepted-connection record. It is created on
// accept, owned by the event loop and indexed by file descriptor, and
// destroyed when RefCount reaches zero and the connection is
// otherwise eligible for release (peer closed, I/O error, parse
// error, or idle timeout).
type Client struct {
	Resp *resp.Machine

	Input  []byte
	Output []byte

	// LastModTime is seconds since an epoch; -1 marks the listening
	// socket's record, which is exempt from the idle timeout.
	LastModTime int64

	// RefCount counts in-flight tasks referencing this record. It must
	// reach zero before the record can be destroyed.
	RefCount uint32

	// ConsumeLen is how many bytes of Input have already been handed
	// to the parser but have not yet closed a frame.
	ConsumeLen int

	// Close marks the record for deferred destruction: once set, no
	// further reads or writes are issued and no new tasks are
	// submitted, but in-flight tasks still run so RefCount accounting
	// stays simple.
	Close bool
}

// New creates a Client record with the given last-modified time. Pass
// -1 for the listening socket's record.
func New(lastModTime int64) *Client {
	return &Client{
		Resp:        resp.NewMachine(),
		LastModTime: lastModTime,
	}
}

// CompactInput drops the first n bytes of Input, keeping the rest as
// the start of the next frame.
func (c *Client) CompactInput(n int) {
	c.Input = append(c.Input[:0], c.Input[n:]...)
	c.ConsumeLen = 0
}

// CompactOutput drops the first n already-written bytes of Output.
func (c *Client) CompactOutput(n int) {
	c.Output = append(c.Output[:0], c.Output[n:]...)
}
