package bufpatch

import (
	"errors"
	"fmt"
	"github.com/nyan233/bufpatch/internal/sys"
	"os"
	"path/filepath"
	"sync"
)

const (
	minPageSize = 64
	// a copy-in patch of a whole page must fit in one log record
	maxPageSize = maxRecordSize - headerTailSize - copyInFixedSize
)

type Config struct {
	RootDir string
	Name    string
	// PageSize defaults to the system page size, an existing store keeps the
	// size it was created with.
	PageSize uint32
	// LegacyMoveTag selects the legacy wire tag for move patches, see
	// PatchCodec.
	LegacyMoveTag bool
}

// PageStore is a set of fixed size pages mutated through patches. Every
// mutation is a patch with the next seq of its page; Flush makes the pending
// patches durable in the patch log and Checkpoint writes the pages back to
// the mapped storage and empties the log. Init replays the log on top of the
// stored pages.
type PageStore struct {
	mu      sync.Mutex
	cfg     Config
	codec   PatchCodec
	storage *mmapPageStorage
	log     *patchLog
	cache   *pageCache
	stat    iStat
	closed  bool
}

func NewPageStore(cfg Config) *PageStore {
	return &PageStore{
		cfg:   cfg,
		codec: PatchCodec{LegacyMoveTag: cfg.LegacyMoveTag},
	}
}

func (s *PageStore) Init() (err error) {
	defer func() {
		// a failed Init leaves the store closed
		if err != nil {
			s.closed = true
		}
	}()
	if s.cfg.Name == "" {
		return fmt.Errorf("config name is empty")
	}
	if s.cfg.PageSize != 0 && s.cfg.PageSize < minPageSize {
		return fmt.Errorf("page size %d < minPageSize(%d)", s.cfg.PageSize, minPageSize)
	}
	if s.cfg.PageSize > maxPageSize {
		return fmt.Errorf("page size %d > maxPageSize(%d)", s.cfg.PageSize, maxPageSize)
	}
	if s.cfg.RootDir != "" {
		if err = os.MkdirAll(s.cfg.RootDir, 0755); err != nil {
			return
		}
	}
	pageSize := s.cfg.PageSize
	base := filepath.Join(s.cfg.RootDir, s.cfg.Name)
	if _, statErr := os.Stat(base + ".dat"); pageSize == 0 && os.IsNotExist(statErr) {
		pageSize = uint32(sys.GetSysPageSize())
	}
	s.storage = newMMapPageStorage(base+".dat", pageSize)
	if err = s.storage.init(); err != nil {
		_ = s.storage.close()
		return
	}
	if s.storage.getPageSize() > maxPageSize {
		_ = s.storage.close()
		return fmt.Errorf("stored page size %d > maxPageSize(%d)", s.storage.getPageSize(), maxPageSize)
	}
	s.log, err = openPatchLog(base+".patchlog", s.codec)
	if err != nil {
		_ = s.storage.close()
		return
	}
	s.cache = newPageCache(int(s.storage.getPageSize()))
	if err = s.recover(); err != nil {
		_ = s.log.close()
		_ = s.storage.close()
		return
	}
	return nil
}

// recover applies the logged patches newer than the stored pages, then
// empties the log.
func (s *PageStore) recover() error {
	pageSize := int(s.storage.getPageSize())
	err := s.log.replay(func(p Patch) error {
		lsn, data, err := s.storage.readPage(p.BlockId())
		if err != nil {
			return err
		}
		if p.Seq() <= lsn {
			s.stat.replaySkipped.Add(1)
			return nil
		}
		if err = checkPatch(p, lsn, pageSize); err != nil {
			return err
		}
		p.Apply(data)
		s.stat.replayApplied.Add(1)
		return s.storage.setPageLsn(p.BlockId(), p.Seq())
	})
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	if err = s.storage.sync(); err != nil {
		return err
	}
	return s.log.reset()
}

// PageSize is 0 until Init succeeds.
func (s *PageStore) PageSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		return 0
	}
	return s.cache.pageSize
}

func (s *PageStore) page(blockId uint64) (*cachePage, error) {
	if cp, ok := s.cache.getPage(blockId); ok {
		return cp, nil
	}
	lsn, data, err := s.storage.readPage(blockId)
	if err != nil {
		return nil, err
	}
	return s.cache.putPage(blockId, lsn, data), nil
}

// CopyIn writes data into the page at off.
func (s *PageStore) CopyIn(blockId, off uint64, data []byte) (Patch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(blockId, func(seq uint64) Patch {
		return NewCopyInPatch(blockId, seq, off, data)
	})
}

// Move moves n bytes of the page from src to dst, the ranges may overlap.
// With LegacyMoveTag a logged move would not decode, so Move fails.
func (s *PageStore) Move(blockId, dst, src, n uint64) (Patch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codec.LegacyMoveTag {
		return nil, errMoveNotLoggable
	}
	return s.mutate(blockId, func(seq uint64) Patch {
		return NewMovePatch(blockId, seq, dst, src, n)
	})
}

func (s *PageStore) mutate(blockId uint64, build func(seq uint64) Patch) (Patch, error) {
	if s.closed {
		return nil, errStoreClosed
	}
	cp, err := s.page(blockId)
	if err != nil {
		return nil, err
	}
	p := build(cp.lsn + 1)
	if err = s.cache.apply(p); err != nil {
		return nil, err
	}
	s.stat.patchApplied.Add(1)
	return p, nil
}

// Apply applies a patch built elsewhere, e.g. decoded from another log. Its
// seq must be greater than the seq of the last patch of the page. Move
// patches are refused with LegacyMoveTag, like Move.
func (s *PageStore) Apply(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	if s.codec.LegacyMoveTag && p.OpCode() == OpMove {
		return errMoveNotLoggable
	}
	if _, err := s.page(p.BlockId()); err != nil {
		return err
	}
	if err := s.cache.apply(p); err != nil {
		return err
	}
	s.stat.patchApplied.Add(1)
	return nil
}

// ReadPage returns a copy of the current page image and its lsn.
func (s *PageStore) ReadPage(blockId uint64) ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, 0, errStoreClosed
	}
	cp, err := s.page(blockId)
	if err != nil {
		return nil, 0, err
	}
	buf := make([]byte, len(cp.data))
	copy(buf, cp.data)
	return buf, cp.lsn, nil
}

// Flush appends the pending patches to the log, each dirty page closed by a
// flush patch, and syncs the log.
func (s *PageStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	return s.flush()
}

func (s *PageStore) flush() error {
	var batch []Patch
	s.cache.rangeDirty(func(blockId uint64, patches []Patch) bool {
		cp, _ := s.cache.getPage(blockId)
		cp.lsn++
		batch = append(batch, patches...)
		batch = append(batch, NewFlushPatch(blockId, cp.lsn))
		return true
	})
	if len(batch) == 0 {
		return nil
	}
	n, err := s.log.append(batch)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	s.cache.clearDirty()
	s.stat.patchLogged.Add(uint64(len(batch)))
	s.stat.logBytes.Add(uint64(n))
	s.stat.flushCount.Add(1)
	return nil
}

// Checkpoint flushes, writes every modified page back to storage and empties
// the log.
func (s *PageStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	return s.checkpoint()
}

func (s *PageStore) checkpoint() error {
	if err := s.flush(); err != nil {
		return err
	}
	err := s.cache.rangePage(func(blockId uint64, cp *cachePage) error {
		if !cp.dirty {
			return nil
		}
		if err := s.storage.writePage(blockId, cp.lsn, cp.data); err != nil {
			return err
		}
		cp.dirty = false
		return nil
	})
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err = s.storage.sync(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err = s.log.reset(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	s.stat.checkpointCount.Add(1)
	return nil
}

// LogSize is the current size of the patch log in bytes.
func (s *PageStore) LogSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return 0
	}
	return s.log.size()
}

func (s *PageStore) Stat() ExportStat {
	return s.stat.export()
}

// Close flushes the pending patches without a checkpoint, the next Init
// replays them.
func (s *PageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cache == nil {
		return nil
	}
	return errors.Join(s.flush(), s.log.close(), s.storage.close())
}
