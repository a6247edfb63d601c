package executor

import (
	"testing"

	"cheapisdakv/client"
	"cheapisdakv/poller"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	added    []int
	released []int
}

// TryWrite is a no-op: these tests have no real fd to write to, so the
// write-through fast path always falls back to the Writable
// subscription the tests assert on via added.
func (f *fakeSink) TryWrite(fd int, c *client.Client) error {
	return nil
}

func (f *fakeSink) AddEvent(fd int, mask poller.Mask) error {
	f.added = append(f.added, fd)
	return nil
}

func (f *fakeSink) Release(fd int) error {
	f.released = append(f.released, fd)
	return nil
}

func argv(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestMemorySetGetDel(t *testing.T) {
	m := NewMemory()
	c := client.New(0)
	sink := &fakeSink{}

	m.Submit(argv("SET", "foo", "bar"), c, 3)
	require.Equal(t, 1, m.TaskCount())
	m.Execute(1, 0, sink)
	require.Equal(t, "+OK\r\n", string(c.Output))
	c.Output = nil

	m.Submit(argv("GET", "foo"), c, 3)
	m.Execute(1, 0, sink)
	require.Equal(t, "$3\r\nbar\r\n", string(c.Output))
	c.Output = nil

	m.Submit(argv("DEL", "foo"), c, 3)
	m.Execute(1, 0, sink)
	require.Equal(t, "+OK\r\n", string(c.Output))
	c.Output = nil

	m.Submit(argv("DEL", "foo"), c, 3)
	m.Execute(1, 0, sink)
	require.Equal(t, "+OK\r\n", string(c.Output), "DEL is idempotent")
	c.Output = nil

	m.Submit(argv("GET", "foo"), c, 3)
	m.Execute(1, 0, sink)
	require.Equal(t, "*-1\r\n", string(c.Output))

	require.Equal(t, uint32(0), c.RefCount)
}

func TestMemoryUnsupportedCommand(t *testing.T) {
	m := NewMemory()
	c := client.New(0)
	sink := &fakeSink{}

	m.Submit(argv("FOO", "bar"), c, 5)
	m.Execute(1, 0, sink)
	require.Equal(t, "-Unsupported Command\r\n", string(c.Output))
}

func TestMemoryReleasesClosedClientAtZeroRefCount(t *testing.T) {
	m := NewMemory()
	c := client.New(0)
	sink := &fakeSink{}

	m.Submit(argv("GET", "foo"), c, 7)
	c.Close = true
	m.Execute(1, 0, sink)

	require.Equal(t, []int{7}, sink.released)
	require.Empty(t, sink.added)
}

func TestMemoryHalfDrain(t *testing.T) {
	m := NewMemory()
	c := client.New(0)
	sink := &fakeSink{}

	for i := 0; i < 5; i++ {
		m.Submit(argv("SET", "k", "v"), c, 1)
	}
	require.Equal(t, 5, m.TaskCount())

	plan := (m.TaskCount() + 1) / 2
	m.Execute(plan, 0, sink)
	require.Equal(t, 2, m.TaskCount())
}
