//go:build linux

package sys

import (
	"golang.org/x/sys/unix"
	"os"
)

func Remap(file *os.File, newLength uint64, olddat []byte) (dat []byte, err error) {
	return unix.Mremap(olddat, int(newLength), unix.MREMAP_MAYMOVE)
}
