package bufpatch

import (
	"encoding/binary"
	"fmt"
)

const copyInFixedSize = 8 + 8

// CopyInPatch copies bytes it owns into the page at destOff.
type CopyInPatch struct {
	patchHeader
	destOff uint64
	dat     []byte
}

// NewCopyInPatch copies src, the caller may reuse src afterwards.
func NewCopyInPatch(blockId, seq, destOff uint64, src []byte) *CopyInPatch {
	dat := make([]byte, len(src))
	copy(dat, src)
	return &CopyInPatch{
		patchHeader: patchHeader{blockId: blockId, seq: seq, op: OpCopyIn},
		destOff:     destOff,
		dat:         dat,
	}
}

func decodeCopyInPatch(h patchHeader, data []byte) (Patch, error) {
	if len(data) < copyInFixedSize {
		return nil, fmt.Errorf("%w: copyin payload too short (%d bytes)", ErrFormat, len(data))
	}
	destOff := binary.BigEndian.Uint64(data[0:8])
	n := binary.BigEndian.Uint64(data[8:16])
	data = data[copyInFixedSize:]
	if uint64(len(data)) != n {
		return nil, fmt.Errorf("%w: copyin length %d, %d bytes present", ErrFormat, n, len(data))
	}
	dat := make([]byte, n)
	copy(dat, data)
	h.op = OpCopyIn
	return &CopyInPatch{
		patchHeader: h,
		destOff:     destOff,
		dat:         dat,
	}, nil
}

func (p *CopyInPatch) DestOffset() uint64 {
	return p.destOff
}

func (p *CopyInPatch) Len() uint64 {
	return uint64(len(p.dat))
}

// Data returns the owned bytes, callers must not modify them.
func (p *CopyInPatch) Data() []byte {
	return p.dat
}

func (p *CopyInPatch) DataSize() int {
	return copyInFixedSize + len(p.dat)
}

func (p *CopyInPatch) SerializedSize() int {
	return serializedSize(p)
}

func (p *CopyInPatch) Apply(buf []byte) {
	copy(buf[p.destOff:p.destOff+uint64(len(p.dat))], p.dat)
}

func (p *CopyInPatch) appendData(b []byte) []byte {
	b = binary.BigEndian.AppendUint64(b, p.destOff)
	b = binary.BigEndian.AppendUint64(b, uint64(len(p.dat)))
	return append(b, p.dat...)
}
