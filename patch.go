package bufpatch

import "strconv"

type OpCode uint8

const (
	OpFlush OpCode = iota
	OpCopyIn
	OpMove
)

func (op OpCode) String() string {
	switch op {
	case OpFlush:
		return "flush"
	case OpCopyIn:
		return "copyin"
	case OpMove:
		return "move"
	default:
		return "opcode(" + strconv.Itoa(int(op)) + ")"
	}
}

const (
	lengthFieldSize = 8
	// block id + seq + op code
	headerTailSize = 8 + 8 + 1
	headerSize     = lengthFieldSize + headerTailSize
)

// Patch is one mutation of a page. The implementations are FlushPatch,
// CopyInPatch and MovePatch; the set is closed.
type Patch interface {
	BlockId() uint64
	Seq() uint64
	OpCode() OpCode
	// DataSize is the size of the variant payload.
	DataSize() int
	// SerializedSize includes the length field.
	SerializedSize() int
	// Apply mutates buf, the page the patch targets. Offsets are not checked
	// against len(buf).
	Apply(buf []byte)
	appendData(b []byte) []byte
}

type patchHeader struct {
	blockId uint64
	seq     uint64
	op      OpCode
}

func (h patchHeader) BlockId() uint64 {
	return h.blockId
}

func (h patchHeader) Seq() uint64 {
	return h.seq
}

func (h patchHeader) OpCode() OpCode {
	return h.op
}

func serializedSize(p Patch) int {
	return headerSize + p.DataSize()
}

// patchEnd reports the exclusive end offset a patch touches in its page.
func patchEnd(p Patch) (end uint64, ok bool) {
	switch v := p.(type) {
	case *FlushPatch:
		return 0, true
	case *CopyInPatch:
		return addOffset(v.destOff, uint64(len(v.dat)))
	case *MovePatch:
		dstEnd, ok1 := addOffset(v.destOff, v.n)
		srcEnd, ok2 := addOffset(v.srcOff, v.n)
		return max(dstEnd, srcEnd), ok1 && ok2
	default:
		panic("unknown patch type")
	}
}

func addOffset(off, n uint64) (uint64, bool) {
	end := off + n
	return end, end >= off
}
