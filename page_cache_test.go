package bufpatch

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestPageCache(t *testing.T) {
	c := newPageCache(64)
	for i := 0; i < 128; i++ {
		data := make([]byte, i%64)
		for j := range data {
			data[j] = byte(i)
		}
		c.putPage(uint64(i), uint64(i), data)
	}
	for i := 0; i < 128; i++ {
		cp, found := c.getPage(uint64(i))
		require.True(t, found)
		require.Equal(t, uint64(i), cp.lsn)
		require.Len(t, cp.data, 64)
		require.False(t, cp.dirty)
	}
	_, found := c.getPage(1000)
	require.False(t, found)

	require.NoError(t, c.apply(NewCopyInPatch(5, 6, 0, []byte{1, 2})))
	require.NoError(t, c.apply(NewMovePatch(5, 7, 2, 0, 2)))
	require.NoError(t, c.apply(NewFlushPatch(3, 4)))
	require.ErrorIs(t, c.apply(NewFlushPatch(3, 4)), errPatchOutOfOrder)
	require.ErrorIs(t, c.apply(NewCopyInPatch(3, 5, 63, []byte{1, 2})), errPatchOutOfRange)
	require.Error(t, c.apply(NewFlushPatch(1000, 1)))

	cp, _ := c.getPage(5)
	require.Equal(t, []byte{1, 2, 1, 2, 5}, cp.data[:5])
	require.Equal(t, uint64(7), cp.lsn)
	require.True(t, cp.dirty)

	var (
		blockIds []uint64
		counts   []int
	)
	c.rangeDirty(func(blockId uint64, patches []Patch) bool {
		blockIds = append(blockIds, blockId)
		counts = append(counts, len(patches))
		return true
	})
	require.Equal(t, []uint64{3, 5}, blockIds)
	require.Equal(t, []int{1, 2}, counts)

	c.clearDirty()
	c.rangeDirty(func(blockId uint64, patches []Patch) bool {
		t.Fatalf("unexpected dirty page %d", blockId)
		return true
	})
}

func TestPageCacheDirtyOrder(t *testing.T) {
	c := newPageCache(64)
	var want []uint64
	for i := 200; i > 0; i-- {
		c.putPage(uint64(i), 0, nil)
		want = append([]uint64{uint64(i)}, want...)
	}
	for i := 200; i > 0; i-- {
		require.NoError(t, c.apply(NewCopyInPatch(uint64(i), 1, 0, []byte{byte(i)})))
		if i%3 == 0 {
			require.NoError(t, c.apply(NewFlushPatch(uint64(i), 2)))
		}
	}
	var got []uint64
	c.rangeDirty(func(blockId uint64, patches []Patch) bool {
		got = append(got, blockId)
		if blockId%3 == 0 {
			require.Len(t, patches, 2)
		} else {
			require.Len(t, patches, 1)
		}
		require.Equal(t, blockId, patches[0].BlockId())
		return true
	})
	require.Equal(t, want, got)

	got = got[:0]
	c.rangeDirty(func(blockId uint64, patches []Patch) bool {
		got = append(got, blockId)
		return len(got) < 5
	})
	require.Equal(t, want[:5], got)

	c.clearDirty()
	require.NoError(t, c.apply(NewCopyInPatch(9, 3, 0, []byte{1})))
	got = got[:0]
	c.rangeDirty(func(blockId uint64, patches []Patch) bool {
		got = append(got, blockId)
		return true
	})
	require.Equal(t, []uint64{9}, got)
}
