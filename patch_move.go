package bufpatch

import (
	"encoding/binary"
	"fmt"
)

const moveDataSize = 8 + 8 + 8

// MovePatch moves n bytes inside the page from srcOff to destOff. The two
// ranges may overlap.
type MovePatch struct {
	patchHeader
	destOff uint64
	srcOff  uint64
	n       uint64
}

func NewMovePatch(blockId, seq, destOff, srcOff, n uint64) *MovePatch {
	return &MovePatch{
		patchHeader: patchHeader{blockId: blockId, seq: seq, op: OpMove},
		destOff:     destOff,
		srcOff:      srcOff,
		n:           n,
	}
}

func decodeMovePatch(h patchHeader, data []byte) (Patch, error) {
	if len(data) != moveDataSize {
		return nil, fmt.Errorf("%w: move payload is %d bytes, want %d", ErrFormat, len(data), moveDataSize)
	}
	h.op = OpMove
	return &MovePatch{
		patchHeader: h,
		destOff:     binary.BigEndian.Uint64(data[0:8]),
		srcOff:      binary.BigEndian.Uint64(data[8:16]),
		n:           binary.BigEndian.Uint64(data[16:24]),
	}, nil
}

func (p *MovePatch) DestOffset() uint64 {
	return p.destOff
}

func (p *MovePatch) SrcOffset() uint64 {
	return p.srcOff
}

func (p *MovePatch) Len() uint64 {
	return p.n
}

func (p *MovePatch) DataSize() int {
	return moveDataSize
}

func (p *MovePatch) SerializedSize() int {
	return serializedSize(p)
}

// Apply relies on copy being memmove: overlapping ranges are handled.
func (p *MovePatch) Apply(buf []byte) {
	copy(buf[p.destOff:p.destOff+p.n], buf[p.srcOff:p.srcOff+p.n])
}

func (p *MovePatch) appendData(b []byte) []byte {
	b = binary.BigEndian.AppendUint64(b, p.destOff)
	b = binary.BigEndian.AppendUint64(b, p.srcOff)
	return binary.BigEndian.AppendUint64(b, p.n)
}
