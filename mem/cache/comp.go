// Package cache models a set-associative cache in front of the bus
// facade. It classifies every access as a hit or a miss, selects victims
// under LRU or FIFO replacement, applies a write-back or write-through
// write policy, and publishes aggregate counters through hooks.
package cache

import (
	"fmt"
	"sync"

	"github.com/rowbuf/memsim/hooking"
	"github.com/rowbuf/memsim/mem"
	"github.com/rowbuf/memsim/mem/addr"
)

// Hook positions where the cache reports events.
var (
	HookPosStatsUpdate  = &hooking.HookPos{Name: "Cache Stats Update"}
	HookPosBackingWrite = &hooking.HookPos{Name: "Backing Store Write"}
)

// BackingWriteDetail is the hook detail for HookPosBackingWrite. Writeback
// marks a dirty-eviction flush as opposed to a write-through pass-through.
type BackingWriteDetail struct {
	Addr      uint64
	Length    uint64
	Writeback bool
}

// ReplacementPolicy selects the victim selection scheme.
type ReplacementPolicy int

// Supported replacement policies.
const (
	LRU ReplacementPolicy = iota
	FIFO
)

func (p ReplacementPolicy) String() string {
	if p == FIFO {
		return "FIFO"
	}

	return "LRU"
}

// WritePolicy selects when a cached write reaches the backing store.
type WritePolicy int

// Supported write policies.
const (
	WriteBack WritePolicy = iota
	WriteThrough
)

func (p WritePolicy) String() string {
	if p == WriteThrough {
		return "write-through"
	}

	return "write-back"
}

// A Line holds the bookkeeping of one cache line plus the cached block
// bytes. Lines are owned exclusively by their set slot and mutated only by
// the cache.
type Line struct {
	Valid       bool
	Tag         uint64
	Dirty       bool
	LastUsed    uint64
	InsertOrder uint64
	Data        []byte
}

// A Set is a fixed-size array of lines; its length is the associativity.
type Set struct {
	Lines []Line
}

// A BackingStore is what the cache fills from and flushes to. The region
// table implements it.
type BackingStore interface {
	CheckAccess(a, n uint64, p mem.Perm) error
	ReadBytes(a, n uint64) ([]byte, int, error)
	WriteBytes(a uint64, data []byte) (int, error)
}

// Stats are the aggregate counters of the cache. All counters are
// unsigned and monotonically non-decreasing for the life of the engine.
type Stats struct {
	Reads         uint64
	Writes        uint64
	Hits          uint64
	Misses        uint64
	BackingWrites uint64
}

// A LineSnapshot is a copy of one line's observable state.
type LineSnapshot struct {
	Valid bool
	Tag   uint64
	Dirty bool
}

// A SetSnapshot is a copy of one set's observable state.
type SetSnapshot struct {
	Lines []LineSnapshot
}

// A Comp is a set-associative cache engine. All its state is guarded by a
// single engine-wide lock; the lock order across the hierarchy is fixed as
// cache, then region table, then controller.
type Comp struct {
	hooking.HookableBase

	name         string
	mapper       addr.CacheMapper
	assoc        int
	replacement  ReplacementPolicy
	writePolicy  WritePolicy
	victimFinder VictimFinder
	bottom       BackingStore

	mu    sync.Mutex
	sets  []Set
	stamp uint64
	stats Stats
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// CurrentStats returns a copy of the aggregate counters.
func (c *Comp) CurrentStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// Access classifies one access for the block containing a. It never faults
// the caller and reports nothing per call; callers that need hit/miss
// information derive it from the counters. A backing-store failure during
// the fill leaves the line invalid and surfaces only on the data path
// (ReadBytes/WriteBytes).
func (c *Comp) Access(a uint64, isWrite bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, base, _, err := c.accessBlock(a, isWrite)
	if err == nil && isWrite && c.writePolicy == WriteThrough {
		// Classification-only callers carry no payload, so the
		// pass-through writes the whole cached block.
		_, _ = c.passThrough(base, line.Data)
	}

	c.publishStats()
}

// ReadBytes classifies and serves a read through the cache. Hits are
// served from the cached block without controller traffic; misses fill
// from the backing store. The returned cycle count is the cost of the
// backing traffic the read generated.
func (c *Comp) ReadBytes(a, n uint64) ([]byte, int, error) {
	if n == 0 {
		return []byte{}, 0, nil
	}

	if err := c.bottom.CheckAccess(a, n, mem.PermRead); err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, 0, n)
	total := 0

	for covered := uint64(0); covered < n; {
		cur := a + covered
		_, _, off := c.mapper.Decode(cur)
		chunk := min(c.mapper.BlockSize()-off, n-covered)

		line, _, cycles, err := c.accessBlock(cur, false)
		if err != nil {
			return nil, 0, err
		}

		out = append(out, line.Data[off:off+chunk]...)
		total += cycles
		covered += chunk
	}

	c.publishStats()

	return out, total, nil
}

// WriteBytes classifies and applies a write through the cache. Under
// write-back the bytes stay in the line until eviction; under
// write-through every written chunk also reaches the backing store
// immediately.
func (c *Comp) WriteBytes(a uint64, data []byte) (int, error) {
	n := uint64(len(data))
	if n == 0 {
		return 0, nil
	}

	if err := c.bottom.CheckAccess(a, n, mem.PermWrite); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0

	for covered := uint64(0); covered < n; {
		cur := a + covered
		_, _, off := c.mapper.Decode(cur)
		chunk := min(c.mapper.BlockSize()-off, n-covered)

		line, _, cycles, err := c.accessBlock(cur, true)
		if err != nil {
			return 0, err
		}

		copy(line.Data[off:off+chunk], data[covered:covered+chunk])
		total += cycles

		if c.writePolicy == WriteThrough {
			cycles, err := c.passThrough(cur, data[covered:covered+chunk])
			if err != nil {
				return 0, err
			}

			total += cycles
		}

		covered += chunk
	}

	c.publishStats()

	return total, nil
}

// Reset invalidates every line. The aggregate counters are not cleared;
// they are monotonic for the life of the engine.
func (c *Comp) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for s := range c.sets {
		for w := range c.sets[s].Lines {
			line := &c.sets[s].Lines[w]
			line.Valid = false
			line.Dirty = false
		}
	}
}

// Snapshot returns an independent copy of every set's line states.
func (c *Comp) Snapshot() []SetSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SetSnapshot, len(c.sets))
	for s := range c.sets {
		out[s].Lines = make([]LineSnapshot, len(c.sets[s].Lines))
		for w, line := range c.sets[s].Lines {
			out[s].Lines[w] = LineSnapshot{
				Valid: line.Valid,
				Tag:   line.Tag,
				Dirty: line.Dirty,
			}
		}
	}

	return out
}

// Topology describes the cache geometry and policies.
func (c *Comp) Topology() string {
	blockSize := c.mapper.BlockSize()
	numSets := c.mapper.NumSets()
	total := blockSize * numSets * uint64(c.assoc)

	return fmt.Sprintf("%d bytes, %d-byte blocks, %d-way, %d sets, %s, %s",
		total, blockSize, c.assoc, numSets, c.replacement, c.writePolicy)
}

// accessBlock performs the hit/miss classification and, on a miss, the
// victim flush and line fill for the block containing a. The caller must
// hold c.mu. The returned cycle count is the backing traffic cost.
func (c *Comp) accessBlock(
	a uint64,
	isWrite bool,
) (line *Line, base uint64, cycles int, err error) {
	if isWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	tag, setIdx, _ := c.mapper.Decode(a)
	base = c.mapper.Encode(tag, setIdx, 0)
	set := &c.sets[setIdx]

	for w := range set.Lines {
		candidate := &set.Lines[w]
		if candidate.Valid && candidate.Tag == tag {
			c.stats.Hits++
			candidate.LastUsed = c.nextStamp()

			if isWrite && c.writePolicy == WriteBack {
				candidate.Dirty = true
			}

			return candidate, base, 0, nil
		}
	}

	c.stats.Misses++

	way := c.victimFinder.FindVictim(set)
	victim := &set.Lines[way]

	if victim.Valid && victim.Dirty && c.writePolicy == WriteBack {
		flushCycles, flushErr := c.flush(victim, setIdx)
		if flushErr != nil {
			return nil, 0, 0, flushErr
		}

		cycles += flushCycles
	}

	fillCycles, err := c.fill(victim, tag, base, isWrite)
	if err != nil {
		return nil, 0, 0, err
	}

	cycles += fillCycles

	return victim, base, cycles, nil
}

// flush writes a dirty victim's block back to the backing store before it
// is overwritten.
func (c *Comp) flush(victim *Line, setIdx uint64) (int, error) {
	victimBase := c.mapper.Encode(victim.Tag, setIdx, 0)

	cycles, err := c.bottom.WriteBytes(victimBase, victim.Data)
	if err != nil {
		return 0, err
	}

	victim.Dirty = false
	c.stats.BackingWrites++

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosBackingWrite,
		Detail: BackingWriteDetail{
			Addr:      victimBase,
			Length:    uint64(len(victim.Data)),
			Writeback: true,
		},
	})

	return cycles, nil
}

// fill loads the block at base into the victim line. On a backing failure
// the line is left invalid.
func (c *Comp) fill(
	victim *Line,
	tag, base uint64,
	isWrite bool,
) (int, error) {
	data, cycles, err := c.bottom.ReadBytes(base, c.mapper.BlockSize())
	if err != nil {
		victim.Valid = false
		return 0, err
	}

	stamp := c.nextStamp()
	victim.Valid = true
	victim.Tag = tag
	victim.LastUsed = stamp
	victim.InsertOrder = stamp
	victim.Dirty = isWrite && c.writePolicy == WriteBack
	if victim.Data == nil {
		victim.Data = make([]byte, c.mapper.BlockSize())
	}
	copy(victim.Data, data)

	return cycles, nil
}

// passThrough performs the write-through backing write for one classified
// write access.
func (c *Comp) passThrough(a uint64, data []byte) (int, error) {
	cycles, err := c.bottom.WriteBytes(a, data)
	if err != nil {
		return 0, err
	}

	c.stats.BackingWrites++

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosBackingWrite,
		Detail: BackingWriteDetail{
			Addr:      a,
			Length:    uint64(len(data)),
			Writeback: false,
		},
	})

	return cycles, nil
}

func (c *Comp) publishStats() {
	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosStatsUpdate,
		Detail: c.stats,
	})
}

func (c *Comp) nextStamp() uint64 {
	c.stamp++
	return c.stamp
}
