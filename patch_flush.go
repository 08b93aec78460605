package bufpatch

import "fmt"

// FlushPatch carries no data. It marks a durability boundary of a page in the
// patch stream.
type FlushPatch struct {
	patchHeader
}

func NewFlushPatch(blockId, seq uint64) *FlushPatch {
	return &FlushPatch{
		patchHeader: patchHeader{blockId: blockId, seq: seq, op: OpFlush},
	}
}

func decodeFlushPatch(h patchHeader, data []byte) (Patch, error) {
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: flush patch with %d bytes payload", ErrFormat, len(data))
	}
	h.op = OpFlush
	return &FlushPatch{patchHeader: h}, nil
}

func (p *FlushPatch) DataSize() int {
	return 0
}

func (p *FlushPatch) SerializedSize() int {
	return serializedSize(p)
}

func (p *FlushPatch) Apply(buf []byte) {}

func (p *FlushPatch) appendData(b []byte) []byte {
	return b
}
