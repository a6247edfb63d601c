package pagefile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateFreeRecycle(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(filepath.Join(dir, "pages.dat"))
	require.NoError(t, err)
	defer a.Close()

	p1, err := a.AllocatePage()
	require.NoError(t, err)
	p2, err := a.AllocatePage()
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)

	a.FreePage(p1)
	p3, err := a.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, p1, p3, "freed page should be recycled before extending the file")
}

func TestAllocatorGrowsPastInitialCapacity(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(filepath.Join(dir, "pages.dat"))
	require.NoError(t, err)
	defer a.Close()

	for i := 0; i < initialPages+4; i++ {
		_, err := a.AllocatePage()
		require.NoError(t, err)
	}
	require.Greater(t, len(a.Base()), initialPages*PageSize)
}

func TestAllocatedPagesAreZeroed(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(filepath.Join(dir, "pages.dat"))
	require.NoError(t, err)
	defer a.Close()

	p, err := a.AllocatePage()
	require.NoError(t, err)
	copy(a.Base()[p:p+PageSize], []byte("dirty"))
	a.FreePage(p)

	p2, err := a.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, p, p2)
	for _, b := range a.Base()[p2 : p2+16] {
		require.Equal(t, byte(0), b)
	}
}
