package bufpatch

import (
	"fmt"
	cmap "github.com/zbh255/gocode/container/map"
	"slices"
)

type cachePage struct {
	// lsn is the seq of the last patch applied to data
	lsn  uint64
	data []byte
	// 已经修改但还没有写回storage
	dirty bool
}

// pageCache holds the current image of every page touched since the last
// checkpoint, and the patches not yet written to the log.
type pageCache struct {
	c         map[uint64]*cachePage
	dirtyPage *cmap.BTreeMap[uint64, []Patch]
	// BTreeMap.Range must start at a key it holds, so rangeDirty walks these
	dirtyIds []uint64
	pageSize int
}

func newPageCache(pageSize int) *pageCache {
	return &pageCache{
		c:         make(map[uint64]*cachePage, 64),
		dirtyPage: cmap.NewBtreeMap[uint64, []Patch](32),
		pageSize:  pageSize,
	}
}

func (cache *pageCache) getPage(blockId uint64) (*cachePage, bool) {
	cp, ok := cache.c[blockId]
	return cp, ok
}

// putPage caches a copy of data.
func (cache *pageCache) putPage(blockId, lsn uint64, data []byte) *cachePage {
	cp := &cachePage{
		lsn:  lsn,
		data: make([]byte, cache.pageSize),
	}
	copy(cp.data, data)
	cache.c[blockId] = cp
	return cp
}

// apply applies p to its cached page and queues p for the log. The page must
// be cached.
func (cache *pageCache) apply(p Patch) error {
	cp, ok := cache.c[p.BlockId()]
	if !ok {
		return fmt.Errorf("page %d not cached", p.BlockId())
	}
	if err := checkPatch(p, cp.lsn, len(cp.data)); err != nil {
		return err
	}
	p.Apply(cp.data)
	cp.lsn = p.Seq()
	cp.dirty = true
	pending, found := cache.dirtyPage.LoadOk(p.BlockId())
	if !found {
		cache.dirtyIds = append(cache.dirtyIds, p.BlockId())
	}
	pending = append(pending, p)
	cache.dirtyPage.StoreOk(p.BlockId(), pending)
	return nil
}

// checkPatch verifies p can be applied to a page of pageSize bytes whose last
// applied seq is lsn.
func checkPatch(p Patch, lsn uint64, pageSize int) error {
	if p.Seq() <= lsn {
		return fmt.Errorf("%w: page %d seq %d, page lsn %d", errPatchOutOfOrder, p.BlockId(), p.Seq(), lsn)
	}
	end, ok := patchEnd(p)
	if !ok || end > uint64(pageSize) {
		return fmt.Errorf("%w: page %d %s patch seq %d", errPatchOutOfRange, p.BlockId(), p.OpCode(), p.Seq())
	}
	return nil
}

// rangeDirty visits the pending patches of each page in block id order.
func (cache *pageCache) rangeDirty(fn func(blockId uint64, patches []Patch) bool) {
	slices.Sort(cache.dirtyIds)
	for _, blockId := range cache.dirtyIds {
		patches, _ := cache.dirtyPage.LoadOk(blockId)
		if !fn(blockId, patches) {
			return
		}
	}
}

func (cache *pageCache) clearDirty() {
	cache.dirtyPage = cmap.NewBtreeMap[uint64, []Patch](32)
	cache.dirtyIds = cache.dirtyIds[:0]
}

func (cache *pageCache) rangePage(fn func(blockId uint64, cp *cachePage) error) error {
	for blockId, cp := range cache.c {
		if err := fn(blockId, cp); err != nil {
			return err
		}
	}
	return nil
}
