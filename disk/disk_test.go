package disk

import (
	"testing"

	"cheapisdakv/client"
	"cheapisdakv/errs"
	"cheapisdakv/poller"
	"cheapisdakv/resp"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	added    []int
	released []int
}

// TryWrite is a no-op: these tests have no real fd to write to, so the
// write-through fast path always falls back to the Writable
// subscription, which AddEvent records in added.
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

func TestDiskSetGetDel(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	c := client.New(0)
	sink := &fakeSink{}

	e.Submit(argv("SET", "foo", "bar"), c, 3)
	require.Equal(t, 1, e.TaskCount())
	e.Execute(1, 0, sink)
	require.Equal(t, "+OK\r\n", string(c.Output))
	c.Output = nil

	e.Submit(argv("GET", "foo"), c, 3)
	e.Execute(1, 0, sink)
	require.Equal(t, "$3\r\nbar\r\n", string(c.Output))
	c.Output = nil

	e.Submit(argv("DEL", "foo"), c, 3)
	e.Execute(1, 0, sink)
	require.Equal(t, "+OK\r\n", string(c.Output))
	c.Output = nil

	e.Submit(argv("DEL", "foo"), c, 3)
	e.Execute(1, 0, sink)
	require.Equal(t, "+OK\r\n", string(c.Output), "DEL is idempotent")
	c.Output = nil

	e.Submit(argv("GET", "foo"), c, 3)
	e.Execute(1, 0, sink)
	require.Equal(t, "*-1\r\n", string(c.Output))
}

func TestDiskBatchedSetThenGet(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	c := client.New(0)
	sink := &fakeSink{}

	e.Submit(argv("SET", "a", "1"), c, 1)
	e.Submit(argv("SET", "b", "2"), c, 1)
	e.Submit(argv("SET", "c", "3"), c, 1)
	require.Equal(t, 3, e.TaskCount())
	e.Execute(3, 0, sink)
	require.Equal(t, "+OK\r\n+OK\r\n+OK\r\n", string(c.Output))
	c.Output = nil

	e.Submit(argv("GET", "b"), c, 1)
	e.Execute(1, 0, sink)
	require.Equal(t, "$1\r\n2\r\n", string(c.Output))
}

func TestDiskOverwriteKey(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	c := client.New(0)
	sink := &fakeSink{}

	e.Submit(argv("SET", "k", "v1"), c, 1)
	e.Execute(1, 0, sink)
	c.Output = nil

	e.Submit(argv("SET", "k", "v2longer"), c, 1)
	e.Execute(1, 0, sink)
	c.Output = nil

	e.Submit(argv("GET", "k"), c, 1)
	e.Execute(1, 0, sink)
	require.Equal(t, "$8\r\nv2longer\r\n", string(c.Output))
}

// TestDiskGetPastPackedLengthSaturation exercises a key and value
// both past the packed index hint's saturation point (31 bytes, 2047
// bytes): appendGet must fall back to the record's own header instead
// of trusting the saturated hint, or the value comes back truncated.
func TestDiskGetPastPackedLengthSaturation(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	c := client.New(0)
	sink := &fakeSink{}

	key := make([]byte, 40)
	for i := range key {
		key[i] = byte('a' + i%26)
	}
	val := make([]byte, 3000)
	for i := range val {
		val[i] = byte('0' + i%10)
	}

	e.Submit(argv("SET", string(key), string(val)), c, 1)
	e.Execute(1, 0, sink)
	c.Output = nil

	e.Submit(argv("GET", string(key)), c, 1)
	e.Execute(1, 0, sink)

	want := resp.AppendBulkString(nil, val)
	require.Equal(t, string(want), string(c.Output))
}

func TestDiskOpenRefusesSecondProcess(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	_, err = Open(dir)
	require.ErrorIs(t, err, errs.LockHeldErr)
}

func TestDiskUnsupportedCommand(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	c := client.New(0)
	sink := &fakeSink{}

	e.Submit(argv("FOO", "bar"), c, 1)
	e.Execute(1, 0, sink)
	require.Equal(t, "-Unsupported Command\r\n", string(c.Output))
}
