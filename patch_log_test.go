package bufpatch

import (
	"github.com/stretchr/testify/require"
	"os"
	"path"
	"testing"
)

func TestPatchLog(t *testing.T) {
	initTest(t)
	logPath := path.Join("testdata", "test.patchlog")
	l, err := openPatchLog(logPath, DefaultCodec)
	require.NoError(t, err)
	require.Equal(t, int64(8), l.size())

	batch1 := []Patch{
		NewCopyInPatch(1, 1, 0, []byte("hello")),
		NewFlushPatch(1, 2),
	}
	batch2 := []Patch{
		NewMovePatch(2, 1, 0, 1, 3),
		NewCopyInPatch(1, 3, 8, []byte("world")),
	}
	n, err := l.append(batch1)
	require.NoError(t, err)
	require.Equal(t, batch1[0].SerializedSize()+batch1[1].SerializedSize(), n)
	_, err = l.append(batch2)
	require.NoError(t, err)
	_, err = l.append(nil)
	require.NoError(t, err)

	want := append(append([]Patch{}, batch1...), batch2...)
	var got []Patch
	require.NoError(t, l.replay(func(p Patch) error {
		got = append(got, p)
		return nil
	}))
	require.Equal(t, want, got)
	require.NoError(t, l.close())

	stat, err := os.Stat(logPath)
	require.NoError(t, err)
	// the file is the records and one sentinel
	var total int64 = 8
	for _, p := range want {
		total += int64(p.SerializedSize())
	}
	require.Equal(t, total, stat.Size())

	l, err = openPatchLog(logPath, DefaultCodec)
	require.NoError(t, err)
	require.Equal(t, total, l.size())
	got = got[:0]
	require.NoError(t, l.replay(func(p Patch) error {
		got = append(got, p)
		return nil
	}))
	require.Equal(t, want, got)

	require.NoError(t, l.reset())
	require.Equal(t, int64(8), l.size())
	require.NoError(t, l.replay(func(p Patch) error {
		t.Fatalf("unexpected patch %v", p)
		return nil
	}))
	require.NoError(t, l.close())
}

func TestPatchLogCorrupt(t *testing.T) {
	initTest(t)
	logPath := path.Join("testdata", "test.corrupt.patchlog")
	l, err := openPatchLog(logPath, DefaultCodec)
	require.NoError(t, err)
	_, err = l.append([]Patch{NewFlushPatch(1, 1), NewFlushPatch(1, 2)})
	require.NoError(t, err)
	require.NoError(t, l.close())

	dat, err := os.ReadFile(logPath)
	require.NoError(t, err)
	// op code of the second record
	dat[2*headerSize-1] = 77
	require.NoError(t, os.WriteFile(logPath, dat, 0644))
	_, err = openPatchLog(logPath, DefaultCodec)
	require.ErrorIs(t, err, ErrUnsupportedOpCode)

	// drop the sentinel
	dat[2*headerSize-1] = byte(OpFlush)
	require.NoError(t, os.WriteFile(logPath, dat[:len(dat)-8], 0644))
	_, err = openPatchLog(logPath, DefaultCodec)
	require.ErrorIs(t, err, ErrFormat)
}
