package bufpatch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Cursor walks the records of an in-memory patch stream until the sentinel.
// Once the sentinel or an error is reached Next keeps returning false.
type Cursor struct {
	codec PatchCodec
	buf   []byte
	off   int
	cur   Patch
	done  bool
	err   error
}

func NewCursor(buf []byte, codec PatchCodec) *Cursor {
	return &Cursor{
		codec: codec,
		buf:   buf,
	}
}

func (c *Cursor) Next() (bool, error) {
	if c.done || c.err != nil {
		return false, c.err
	}
	c.cur = nil
	if c.off == len(c.buf) {
		c.err = fmt.Errorf("%w: stream ends at offset %d without sentinel", ErrFormat, c.off)
		return false, c.err
	}
	p, n, err := c.codec.Decode(c.buf[c.off:])
	if err != nil {
		c.err = fmt.Errorf("decode record at offset %d: %w", c.off, err)
		return false, c.err
	}
	c.off += n
	if p == nil {
		c.done = true
		return false, nil
	}
	c.cur = p
	return true, nil
}

// Patch returns the record read by the last successful Next.
func (c *Cursor) Patch() Patch {
	return c.cur
}

// Offset is the position of the next record, after the sentinel once the
// stream is done.
func (c *Cursor) Offset() int {
	return c.off
}

func (c *Cursor) Err() error {
	return c.err
}

// ReadPatch reads one record from r. At the sentinel it returns a nil patch.
// io.EOF is returned only when r ends before the first byte of a record.
func ReadPatch(r io.Reader, codec PatchCodec) (p Patch, n int, err error) {
	var lenBuf [lengthFieldSize]byte
	n, err = io.ReadFull(r, lenBuf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		return nil, n, fmt.Errorf("%w: read length field: %w", ErrFormat, err)
	}
	length := binary.BigEndian.Uint64(lenBuf[:])
	if length == 0 {
		return nil, n, nil
	}
	if length < headerTailSize {
		return nil, n, fmt.Errorf("%w: record length %d shorter than header", ErrFormat, length)
	}
	if length > maxRecordSize {
		return nil, n, fmt.Errorf("%w: record length %d too large", ErrFormat, length)
	}
	rec := make([]byte, length)
	readCount, err := io.ReadFull(r, rec)
	n += readCount
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, n, fmt.Errorf("%w: read record body: %w", ErrFormat, err)
	}
	p, err = codec.decodeRecord(rec)
	return p, n, err
}

// 一个页的补丁不会超过这个大小, 长度字段比这个大说明流已经损坏
const maxRecordSize = 1 << 30
