package datarecording

import (
	"github.com/rowbuf/memsim/hooking"
	"github.com/rowbuf/memsim/mem/cache"
	"github.com/rowbuf/memsim/mem/dram"
)

// Table names the AccessLogger records into.
const (
	TableDRAMAccess   = "dram_access"
	TableRowBufferHit = "row_buffer_hit"
	TableBackingWrite = "backing_write"
	TableCacheStats   = "cache_stats"
)

// DRAMAccessEntry is one controller read or write.
type DRAMAccessEntry struct {
	IsWrite bool
	Addr    uint64
	Length  uint64
	Cycles  int
}

// RowBufferHitEntry is one row-buffer hit.
type RowBufferHitEntry struct {
	Channel uint64
	Rank    uint64
	Bank    uint64
	Row     uint64
}

// BackingWriteEntry is one cache-generated backing-store write.
type BackingWriteEntry struct {
	Addr      uint64
	Length    uint64
	Writeback bool
}

// CacheStatsEntry is one published cache counter snapshot.
type CacheStatsEntry struct {
	Reads         uint64
	Writes        uint64
	Hits          uint64
	Misses        uint64
	BackingWrites uint64
}

// An AccessLogger is a hook that records memory hierarchy events into a
// DataRecorder. Attach it to both the controller and the cache.
type AccessLogger struct {
	recorder DataRecorder
}

// NewAccessLogger creates an AccessLogger and its tables.
func NewAccessLogger(recorder DataRecorder) *AccessLogger {
	recorder.CreateTable(TableDRAMAccess, DRAMAccessEntry{})
	recorder.CreateTable(TableRowBufferHit, RowBufferHitEntry{})
	recorder.CreateTable(TableBackingWrite, BackingWriteEntry{})
	recorder.CreateTable(TableCacheStats, CacheStatsEntry{})

	return &AccessLogger{recorder: recorder}
}

// Func records the event carried by ctx.
func (l *AccessLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case dram.HookPosRead, dram.HookPosWrite:
		detail := ctx.Detail.(dram.AccessDetail)
		l.recorder.InsertData(TableDRAMAccess, DRAMAccessEntry{
			IsWrite: ctx.Pos == dram.HookPosWrite,
			Addr:    detail.Addr,
			Length:  detail.Length,
			Cycles:  detail.Cycles,
		})
	case dram.HookPosRowBufferHit:
		detail := ctx.Detail.(dram.RowBufferHitDetail)
		l.recorder.InsertData(TableRowBufferHit, RowBufferHitEntry{
			Channel: detail.Location.Channel,
			Rank:    detail.Location.Rank,
			Bank:    detail.Location.Bank,
			Row:     detail.Location.Row,
		})
	case cache.HookPosBackingWrite:
		detail := ctx.Detail.(cache.BackingWriteDetail)
		l.recorder.InsertData(TableBackingWrite, BackingWriteEntry{
			Addr:      detail.Addr,
			Length:    detail.Length,
			Writeback: detail.Writeback,
		})
	case cache.HookPosStatsUpdate:
		stats := ctx.Detail.(cache.Stats)
		l.recorder.InsertData(TableCacheStats, CacheStatsEntry{
			Reads:         stats.Reads,
			Writes:        stats.Writes,
			Hits:          stats.Hits,
			Misses:        stats.Misses,
			BackingWrites: stats.BackingWrites,
		})
	}
}
