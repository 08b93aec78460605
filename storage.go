package bufpatch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/nyan233/bufpatch/internal/sys"
	"hash/crc32"
	"os"
)

var (
	metadataMagic = [4]byte{'b', 'p', 'a', 't'}
)

const (
	defaultSlotCount = 64
	// block id msb ~= 2^48
	maxBlockId = 1<<48 - 1
	// magic + sum + pageSize
	metadataSize = 4 + 4 + 4
	slotLsnSize  = 8
)

// mmapPageStorage keeps the pages in one mapped file. Slot 0 holds the
// metadata, block id n lives in slot n+1:
//
//	slot := lsn u64 | page [pageSize]byte
//
// lsn is the seq of the last patch contained in the page.
type mmapPageStorage struct {
	mapFile  *os.File
	path     string
	dat      []byte
	pageSize uint32
}

func newMMapPageStorage(path string, pageSize uint32) *mmapPageStorage {
	return &mmapPageStorage{
		path:     path,
		pageSize: pageSize,
	}
}

func (m *mmapPageStorage) slotSize() uint64 {
	return slotLsnSize + uint64(m.pageSize)
}

func (m *mmapPageStorage) init() (err error) {
	m.mapFile, err = sys.OpenFile(m.path)
	if err != nil {
		return
	}
	stat, err := m.mapFile.Stat()
	if err != nil {
		return
	}
	fileSize := uint64(stat.Size())
	if fileSize == 0 {
		return m.initFile()
	}
	if fileSize < metadataSize {
		return fmt.Errorf("storage %s: file size %d too small", m.path, fileSize)
	}
	m.dat, err = sys.MMap(m.mapFile, fileSize)
	if err != nil {
		return
	}
	return m.loadMetadata()
}

func (m *mmapPageStorage) initFile() (err error) {
	defaultSize := m.slotSize() * defaultSlotCount
	err = m.mapFile.Truncate(int64(defaultSize))
	if err != nil {
		return err
	}
	m.dat, err = sys.MMap(m.mapFile, defaultSize)
	if err != nil {
		return
	}
	copy(m.dat[0:4], metadataMagic[:])
	binary.BigEndian.PutUint32(m.dat[8:12], m.pageSize)
	// sum只计算sum字段后面的值
	binary.BigEndian.PutUint32(m.dat[4:8], crc32.ChecksumIEEE(m.dat[8:metadataSize]))
	return sys.MSync(m.dat[:metadataSize])
}

func (m *mmapPageStorage) loadMetadata() error {
	if [4]byte(m.dat[0:4]) != metadataMagic {
		return fmt.Errorf("storage %s: bad magic %x", m.path, m.dat[0:4])
	}
	sum := binary.BigEndian.Uint32(m.dat[4:8])
	if sum != crc32.ChecksumIEEE(m.dat[8:metadataSize]) {
		return fmt.Errorf("storage %s: metadata checksum mismatch", m.path)
	}
	pageSize := binary.BigEndian.Uint32(m.dat[8:12])
	if m.pageSize != 0 && m.pageSize != pageSize {
		return fmt.Errorf("storage %s: page size is %d, configured %d", m.path, pageSize, m.pageSize)
	}
	m.pageSize = pageSize
	return nil
}

func (m *mmapPageStorage) getPageSize() uint32 {
	return m.pageSize
}

func (m *mmapPageStorage) grow(minSize uint64) (err error) {
	// 大于1GB之后每次增长1GB, 小于1GB则*2
	fileSize := uint64(len(m.dat))
	newFileSize := fileSize
	for newFileSize < minSize {
		if newFileSize > 1024*1024*1024 {
			newFileSize += 1024 * 1024 * 1024
		} else {
			newFileSize *= 2
		}
	}
	err = m.mapFile.Truncate(int64(newFileSize))
	if err != nil {
		return err
	}
	m.dat, err = sys.Remap(m.mapFile, newFileSize, m.dat)
	return err
}

// slot returns the mapped slot of blockId, the file grows to hold it.
func (m *mmapPageStorage) slot(blockId uint64) ([]byte, error) {
	if blockId > maxBlockId {
		return nil, fmt.Errorf("%w: %d", errPageIdOverflow, blockId)
	}
	start := (blockId + 1) * m.slotSize()
	end := start + m.slotSize()
	if end > uint64(len(m.dat)) {
		if err := m.grow(end); err != nil {
			return nil, err
		}
	}
	return m.dat[start:end:end], nil
}

// readPage returns the lsn and a view of the page, the view is invalid after
// the storage grows.
func (m *mmapPageStorage) readPage(blockId uint64) (lsn uint64, data []byte, err error) {
	s, err := m.slot(blockId)
	if err != nil {
		return
	}
	return binary.BigEndian.Uint64(s[:slotLsnSize]), s[slotLsnSize:], nil
}

func (m *mmapPageStorage) setPageLsn(blockId, lsn uint64) error {
	s, err := m.slot(blockId)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(s[:slotLsnSize], lsn)
	return nil
}

func (m *mmapPageStorage) writePage(blockId, lsn uint64, data []byte) error {
	if len(data) != int(m.pageSize) {
		return fmt.Errorf("write page %d: size %d not equal page size %d", blockId, len(data), m.pageSize)
	}
	s, err := m.slot(blockId)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(s[:slotLsnSize], lsn)
	copy(s[slotLsnSize:], data)
	return nil
}

func (m *mmapPageStorage) sync() error {
	return sys.MSync(m.dat)
}

func (m *mmapPageStorage) close() (err error) {
	if m.mapFile == nil {
		return nil
	}
	err = errors.Join(sys.MUnmap(m.mapFile, m.dat), m.mapFile.Close())
	m.mapFile = nil
	m.dat = nil
	return
}
