package bufpatch

import "sync/atomic"

type ExportStat struct {
	PatchApplied    uint64
	PatchLogged     uint64
	LogBytes        uint64
	FlushCount      uint64
	CheckpointCount uint64
	ReplayApplied   uint64
	ReplaySkipped   uint64
}

type iStat struct {
	patchApplied    atomic.Uint64
	patchLogged     atomic.Uint64
	logBytes        atomic.Uint64
	flushCount      atomic.Uint64
	checkpointCount atomic.Uint64
	replayApplied   atomic.Uint64
	replaySkipped   atomic.Uint64
}

func (s *iStat) export() ExportStat {
	return ExportStat{
		PatchApplied:    s.patchApplied.Load(),
		PatchLogged:     s.patchLogged.Load(),
		LogBytes:        s.logBytes.Load(),
		FlushCount:      s.flushCount.Load(),
		CheckpointCount: s.checkpointCount.Load(),
		ReplayApplied:   s.replayApplied.Load(),
		ReplaySkipped:   s.replaySkipped.Load(),
	}
}
