package bufpatch

import (
	"encoding/binary"
	"fmt"
)

var (
	_ Codec[Patch] = PatchCodec{}
	_ Codec[Patch] = new(PatchCodec)
)

type Codec[T any] interface {
	Unmarshal(data []byte, v *T) error
	Marshal(v *T) ([]byte, error)
}

// PatchCodec encodes patches in the record format:
//
//	total_length u64 // 0 is the end of stream sentinel
//	block_id     u64
//	seq          u64
//	op_code      u8
//	payload      [total_length-17]byte
//
// All integers are big endian. total_length counts the bytes after itself.
type PatchCodec struct {
	// LegacyMoveTag writes move patches with the copyin op code and decodes
	// both the copyin and the move op codes as copyin. Move patches written
	// this way do not decode as moves; it exists to read and write logs
	// produced by the legacy format only.
	LegacyMoveTag bool
}

var DefaultCodec = PatchCodec{}

func EncodePatch(p Patch) []byte {
	return DefaultCodec.Encode(p)
}

func AppendPatch(dst []byte, p Patch) []byte {
	return DefaultCodec.Append(dst, p)
}

func DecodePatch(buf []byte) (Patch, int, error) {
	return DefaultCodec.Decode(buf)
}

// AppendSentinel appends the zero length record that ends a patch stream.
func AppendSentinel(dst []byte) []byte {
	return binary.BigEndian.AppendUint64(dst, 0)
}

func (c PatchCodec) opCodeOf(p Patch) OpCode {
	if c.LegacyMoveTag && p.OpCode() == OpMove {
		return OpCopyIn
	}
	return p.OpCode()
}

func (c PatchCodec) Encode(p Patch) []byte {
	return c.Append(make([]byte, 0, p.SerializedSize()), p)
}

func (c PatchCodec) Append(dst []byte, p Patch) []byte {
	dst = binary.BigEndian.AppendUint64(dst, uint64(headerTailSize+p.DataSize()))
	dst = binary.BigEndian.AppendUint64(dst, p.BlockId())
	dst = binary.BigEndian.AppendUint64(dst, p.Seq())
	dst = append(dst, byte(c.opCodeOf(p)))
	return p.appendData(dst)
}

// Decode reads one record from the start of buf and reports how many bytes
// it consumed. At the sentinel it returns a nil patch and consumes only the
// length field. Any error leaves the rest of buf untrustworthy.
func (c PatchCodec) Decode(buf []byte) (Patch, int, error) {
	if len(buf) < lengthFieldSize {
		return nil, 0, fmt.Errorf("%w: %d bytes left for the length field", ErrFormat, len(buf))
	}
	length := binary.BigEndian.Uint64(buf)
	if length == 0 {
		return nil, lengthFieldSize, nil
	}
	if length < headerTailSize {
		return nil, 0, fmt.Errorf("%w: record length %d shorter than header", ErrFormat, length)
	}
	if length > uint64(len(buf)-lengthFieldSize) {
		return nil, 0, fmt.Errorf("%w: record length %d, %d bytes left", ErrFormat, length, len(buf)-lengthFieldSize)
	}
	n := lengthFieldSize + int(length)
	p, err := c.decodeRecord(buf[lengthFieldSize:n])
	if err != nil {
		return nil, 0, err
	}
	return p, n, nil
}

// decodeRecord decodes the bytes after the length field.
func (c PatchCodec) decodeRecord(rec []byte) (Patch, error) {
	h := patchHeader{
		blockId: binary.BigEndian.Uint64(rec[0:8]),
		seq:     binary.BigEndian.Uint64(rec[8:16]),
		op:      OpCode(rec[16]),
	}
	data := rec[headerTailSize:]
	switch h.op {
	case OpFlush:
		return decodeFlushPatch(h, data)
	case OpCopyIn:
		return decodeCopyInPatch(h, data)
	case OpMove:
		if c.LegacyMoveTag {
			return decodeCopyInPatch(h, data)
		}
		return decodeMovePatch(h, data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedOpCode, uint8(h.op))
	}
}

func (c PatchCodec) Marshal(v *Patch) ([]byte, error) {
	if v == nil || *v == nil {
		return AppendSentinel(nil), nil
	}
	return c.Encode(*v), nil
}

// Unmarshal requires data to hold exactly one record or the sentinel, which
// sets *v to nil.
func (c PatchCodec) Unmarshal(data []byte, v *Patch) error {
	p, n, err := c.Decode(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrFormat, len(data)-n)
	}
	*v = p
	return nil
}
