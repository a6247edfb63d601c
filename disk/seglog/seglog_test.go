package seglog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	lp := Open(dir)

	require.NoError(t, lp.CreateIfNeeded())
	id := lp.CurrentID()

	offsets, err := lp.Append([][]byte{[]byte("foo"), []byte("k2")}, [][]byte{[]byte("bar"), []byte("v2")})
	require.NoError(t, err)
	require.Len(t, offsets, 2)
	require.Equal(t, uint32(0), offsets[0])

	record, err := lp.ReadAt(id, offsets[0], HeaderSize+3+3)
	require.NoError(t, err)
	require.Equal(t, "foo", string(record[HeaderSize:HeaderSize+3]))
	require.Equal(t, "bar", string(record[HeaderSize+3:]))

	record2, err := lp.ReadAt(id, offsets[1], HeaderSize+2+2)
	require.NoError(t, err)
	require.Equal(t, "k2", string(record2[HeaderSize:HeaderSize+2]))
	require.Equal(t, "v2", string(record2[HeaderSize+2:]))

	require.NoError(t, lp.Close())
}

func TestCreateIfNeededOnlyOpensOnce(t *testing.T) {
	dir := t.TempDir()
	l := Open(dir)
	require.NoError(t, l.CreateIfNeeded())
	id1 := l.CurrentID()
	require.NoError(t, l.CreateIfNeeded())
	require.Equal(t, id1, l.CurrentID())
	require.NoError(t, l.Close())
}
