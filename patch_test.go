package bufpatch

import (
	"github.com/stretchr/testify/require"
	"github.com/zbh255/gocode/random"
	"testing"
)

func TestPatchRoundTrip(t *testing.T) {
	patches := []Patch{
		NewFlushPatch(1, 1),
		NewCopyInPatch(2, 7, 4, []byte{0xAA, 0xBB, 0xCC}),
		NewCopyInPatch(3, 1, 0, nil),
		NewCopyInPatch(1<<40, 1<<63, 1024, []byte(random.GenStringOnAscii(128))),
		NewMovePatch(4, 9, 0, 2, 4),
		NewMovePatch(4, 10, 100, 0, 0),
	}
	for _, p := range patches {
		buf := EncodePatch(p)
		require.Equal(t, p.SerializedSize(), len(buf))
		p2, n, err := DecodePatch(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, p, p2)
		require.Equal(t, p.OpCode(), p2.OpCode())
	}
}

func TestPatchHeaderLayout(t *testing.T) {
	buf := EncodePatch(NewFlushPatch(0x0102, 0x0304))
	require.Equal(t, []byte{
		0, 0, 0, 0, 0, 0, 0, 17,
		0, 0, 0, 0, 0, 0, 0x01, 0x02,
		0, 0, 0, 0, 0, 0, 0x03, 0x04,
		byte(OpFlush),
	}, buf)
	buf = EncodePatch(NewMovePatch(1, 2, 3, 4, 5))
	require.Equal(t, headerSize+moveDataSize, len(buf))
	require.Equal(t, byte(OpMove), buf[headerSize-1])
}

func TestCopyInOwnsData(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	p := NewCopyInPatch(1, 1, 0, src)
	src[0] = 9
	copy(src, []byte{7, 7, 7, 7})
	require.Equal(t, []byte{1, 2, 3, 4}, p.Data())
	require.Equal(t, uint64(4), p.Len())

	buf := EncodePatch(p)
	p2, _, err := DecodePatch(buf)
	require.NoError(t, err)
	clear(buf)
	require.Equal(t, []byte{1, 2, 3, 4}, p2.(*CopyInPatch).Data())
}

func TestPatchApply(t *testing.T) {
	t.Run("CopyIn", func(t *testing.T) {
		page := make([]byte, 8)
		NewCopyInPatch(1, 1, 4, []byte{0xAA, 0xBB, 0xCC}).Apply(page)
		require.Equal(t, []byte{0, 0, 0, 0, 0xAA, 0xBB, 0xCC, 0}, page)
	})
	t.Run("MoveForwardOverlap", func(t *testing.T) {
		page := []byte{0, 1, 2, 3, 4, 5, 6, 7}
		NewMovePatch(1, 1, 0, 2, 4).Apply(page)
		require.Equal(t, []byte{2, 3, 4, 5, 4, 5, 6, 7}, page)
	})
	t.Run("MoveBackwardOverlap", func(t *testing.T) {
		page := []byte{0, 1, 2, 3, 4, 5, 6, 7}
		NewMovePatch(1, 1, 2, 0, 4).Apply(page)
		require.Equal(t, []byte{0, 1, 0, 1, 2, 3, 6, 7}, page)
	})
	t.Run("Flush", func(t *testing.T) {
		page := []byte{0, 1, 2, 3}
		NewFlushPatch(1, 1).Apply(page)
		require.Equal(t, []byte{0, 1, 2, 3}, page)
	})
	t.Run("Decoded", func(t *testing.T) {
		page := []byte{0, 1, 2, 3, 4, 5, 6, 7}
		p, _, err := DecodePatch(EncodePatch(NewMovePatch(1, 1, 0, 2, 4)))
		require.NoError(t, err)
		p.Apply(page)
		require.Equal(t, []byte{2, 3, 4, 5, 4, 5, 6, 7}, page)
	})
}

func TestPatchEnd(t *testing.T) {
	end, ok := patchEnd(NewCopyInPatch(1, 1, 4, []byte{1, 2, 3}))
	require.True(t, ok)
	require.Equal(t, uint64(7), end)
	end, ok = patchEnd(NewMovePatch(1, 1, 0, 10, 6))
	require.True(t, ok)
	require.Equal(t, uint64(16), end)
	_, ok = patchEnd(NewMovePatch(1, 1, 1<<63, 0, 1<<63))
	require.False(t, ok)
	end, ok = patchEnd(NewFlushPatch(1, 1))
	require.True(t, ok)
	require.Equal(t, uint64(0), end)
}

func TestOpCodeString(t *testing.T) {
	require.Equal(t, "flush", OpFlush.String())
	require.Equal(t, "copyin", OpCopyIn.String())
	require.Equal(t, "move", OpMove.String())
	require.Equal(t, "opcode(99)", OpCode(99).String())
}
