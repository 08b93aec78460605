package bufpatch

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/nyan233/bufpatch/internal/sys"
	"io"
	"os"
	"sync"
)

const (
	logBufSize = 64 * 1024
)

// patchLog is an append only file of patch records that always ends with the
// sentinel. An append overwrites the old sentinel and writes a new one after
// the appended records, so readers never need the file size.
type patchLog struct {
	file  *os.File
	path  string
	codec PatchCodec
	// end is the offset of the sentinel
	end  int64
	pool sync.Pool
}

func openPatchLog(path string, codec PatchCodec) (l *patchLog, err error) {
	l = &patchLog{
		path:  path,
		codec: codec,
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, 0, logBufSize)
				return &b
			},
		},
	}
	l.file, err = sys.OpenFile(path)
	if err != nil {
		return nil, err
	}
	stat, err := l.file.Stat()
	if err != nil {
		_ = l.file.Close()
		return nil, err
	}
	if stat.Size() == 0 {
		err = l.reset()
	} else {
		err = l.scan()
	}
	if err != nil {
		_ = l.file.Close()
		return nil, fmt.Errorf("patch log %s: %w", path, err)
	}
	return l, nil
}

// scan locates the sentinel of an existing log.
func (l *patchLog) scan() error {
	r := bufio.NewReaderSize(io.NewSectionReader(l.file, 0, 1<<62), logBufSize)
	var off int64
	for {
		p, n, err := ReadPatch(r, l.codec)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: log ends at offset %d without sentinel", ErrFormat, off)
		}
		if err != nil {
			return fmt.Errorf("record at offset %d: %w", off, err)
		}
		if p == nil {
			l.end = off
			return nil
		}
		off += int64(n)
	}
}

// append writes the patches and the sentinel, then syncs the file.
func (l *patchLog) append(patches []Patch) (int, error) {
	bp := l.pool.Get().(*[]byte)
	defer func() {
		*bp = (*bp)[:0]
		l.pool.Put(bp)
	}()
	buf := *bp
	for _, p := range patches {
		buf = l.codec.Append(buf, p)
	}
	recordsLen := len(buf)
	buf = AppendSentinel(buf)
	*bp = buf
	if recordsLen == 0 {
		return 0, nil
	}
	// 先写入旧sentinel之后的部分并落盘, 最后再用第一条记录的长度字段覆盖旧的sentinel,
	// 中途崩溃时旧的sentinel依然有效
	err := l.writeAt(buf[lengthFieldSize:], l.end+lengthFieldSize)
	if err != nil {
		return 0, err
	}
	err = l.writeAt(buf[:lengthFieldSize], l.end)
	if err != nil {
		return 0, err
	}
	l.end += int64(recordsLen)
	return recordsLen, nil
}

func (l *patchLog) writeAt(b []byte, off int64) error {
	writeCount, err := l.file.WriteAt(b, off)
	if err != nil {
		return err
	}
	if writeCount != len(b) {
		return fmt.Errorf("write count %d not equal %d", writeCount, len(b))
	}
	return l.file.Sync()
}

// replay calls fn for each record in log order. It stops at the first error,
// the records after a corrupted one are never read.
func (l *patchLog) replay(fn func(p Patch) error) error {
	r := bufio.NewReaderSize(io.NewSectionReader(l.file, 0, l.end+lengthFieldSize), logBufSize)
	var off int64
	for {
		p, n, err := ReadPatch(r, l.codec)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("patch log %s: %w: missing sentinel", l.path, ErrFormat)
		}
		if err != nil {
			return fmt.Errorf("patch log %s: record at offset %d: %w", l.path, off, err)
		}
		if p == nil {
			return nil
		}
		if err = fn(p); err != nil {
			return err
		}
		off += int64(n)
	}
}

// reset drops every record, leaving only the sentinel.
func (l *patchLog) reset() error {
	err := l.file.Truncate(0)
	if err != nil {
		return err
	}
	l.end = 0
	return l.writeAt(AppendSentinel(nil), 0)
}

func (l *patchLog) size() int64 {
	return l.end + lengthFieldSize
}

func (l *patchLog) close() (err error) {
	if l.file == nil {
		return nil
	}
	err = l.file.Close()
	l.file = nil
	return
}
