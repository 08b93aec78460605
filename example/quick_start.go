package main

import (
	"fmt"
	"github.com/nyan233/bufpatch"
)

func main() {
	// create files dbset/quick_start.dat and dbset/quick_start.patchlog
	s := bufpatch.NewPageStore(bufpatch.Config{
		RootDir:  "dbset",
		Name:     "quick_start",
		PageSize: 4096,
	})
	// replays the patch log left by the last run
	err := s.Init()
	if err != nil {
		panic(err)
	}
	page, lsn, err := s.ReadPage(1)
	if err != nil {
		panic(err)
	}
	fmt.Printf("page 1 lsn=%d head=%q\n", lsn, page[:16])

	_, err = s.CopyIn(1, 0, []byte("hello patch"))
	if err != nil {
		panic(err)
	}
	_, err = s.Move(1, 6, 0, 5)
	if err != nil {
		panic(err)
	}
	// patches are durable after flush
	err = s.Flush()
	if err != nil {
		panic(fmt.Errorf("flush err:%v", err))
	}

	// a patch stream can be decoded without the store, seq continues the page
	_, lsn, err = s.ReadPage(2)
	if err != nil {
		panic(err)
	}
	var buf []byte
	buf = bufpatch.AppendPatch(buf, bufpatch.NewCopyInPatch(2, lsn+1, 4, []byte{0xAA, 0xBB, 0xCC}))
	buf = bufpatch.AppendPatch(buf, bufpatch.NewMovePatch(2, lsn+2, 0, 4, 3))
	buf = bufpatch.AppendSentinel(buf)
	c := bufpatch.NewCursor(buf, bufpatch.DefaultCodec)
	for {
		ok, err := c.Next()
		if err != nil {
			panic(err)
		}
		if !ok {
			break
		}
		p := c.Patch()
		fmt.Printf("patch block=%d seq=%d op=%s size=%d\n", p.BlockId(), p.Seq(), p.OpCode(), p.SerializedSize())
		if err = s.Apply(p); err != nil {
			panic(err)
		}
	}

	err = s.Checkpoint()
	if err != nil {
		panic(fmt.Errorf("checkpoint err:%v", err))
	}
	fmt.Printf("stat %+v\n", s.Stat())
	err = s.Close()
	if err != nil {
		panic(fmt.Errorf("close err:%v", err))
	}
}
