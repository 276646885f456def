// Package dram models a DRAM memory controller: an array of banks with
// row-buffer state, realistic activate/precharge/access costs, a
// monotonically increasing simulated cycle counter, and a side channel for
// memory-mapped device handlers.
package dram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rowbuf/memsim/hooking"
	"github.com/rowbuf/memsim/mem"
	"github.com/rowbuf/memsim/mem/addr"
)

// Hook positions where the controller reports events.
var (
	HookPosRead           = &hooking.HookPos{Name: "DRAM Read"}
	HookPosWrite          = &hooking.HookPos{Name: "DRAM Write"}
	HookPosRowBufferHit   = &hooking.HookPos{Name: "Row Buffer Hit"}
	HookPosRefreshStarted = &hooking.HookPos{Name: "Refresh Started"}
)

// AccessDetail is the hook detail for HookPosRead and HookPosWrite.
type AccessDetail struct {
	Addr   uint64
	Length uint64
	Cycles int
}

// RowBufferHitDetail is the hook detail for HookPosRowBufferHit.
type RowBufferHitDetail struct {
	Location addr.Location
}

// RefreshDetail is the hook detail for HookPosRefreshStarted.
type RefreshDetail struct {
	Cycles int
}

// A BankSnapshot is a copy of one bank's observable state.
type BankSnapshot struct {
	Name    string
	Open    bool
	OpenRow int
}

// Stats are the aggregate counters of the controller. All counters are
// monotonically non-decreasing for the life of the controller.
type Stats struct {
	Reads         uint64
	Writes        uint64
	RowBufferHits uint64
	Refreshes     uint64
}

// A Comp is a DRAM memory controller. The bus it models is single-ported:
// all reads and writes, including the paced variants, are serialized
// behind one lock, and two accesses are observed in the order they acquire
// it.
type Comp struct {
	hooking.HookableBase

	name        string
	mapper      addr.Mapper
	timing      Timing
	cyclePeriod time.Duration

	lock  sync.Mutex
	banks []*Bank
	cycle uint64
	stats Stats
	mmio  []mmioRange
}

// Name returns the name of the controller.
func (c *Comp) Name() string {
	return c.name
}

// PhysicalSize returns the number of addressable bytes.
func (c *Comp) PhysicalSize() uint64 {
	return c.mapper.PhysicalSize()
}

// Mapper returns the address mapper the controller decodes with.
func (c *Comp) Mapper() addr.Mapper {
	return c.mapper
}

// CurrentCycle returns the simulated cycle counter.
func (c *Comp) CurrentCycle() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.cycle
}

// CurrentStats returns a copy of the aggregate counters.
func (c *Comp) CurrentStats() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.stats
}

// ReadBytes reads n bytes starting at a and returns the data together with
// the cycle cost of the access. A zero-length read is a no-op with zero
// cost. An access that would span past the bank's column count at the
// computed offset fails with OutOfBounds and touches nothing.
func (c *Comp) ReadBytes(a uint64, n uint64) ([]byte, int, error) {
	if n == 0 {
		return []byte{}, 0, nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if r, ok := c.mmioRangeFor(a); ok {
		data, cycles, err := c.mmioRead(r, a, n)
		if err != nil {
			return nil, 0, err
		}

		c.commitRead(a, n, cycles)

		return data, cycles, nil
	}

	loc, err := c.locate(a, n)
	if err != nil {
		return nil, 0, err
	}

	bank := c.banks[c.mapper.BankIndex(loc)]
	cycles := c.prepareBank(bank, loc)
	data := bank.read(int(loc.Row), int(loc.Col), int(n))

	c.commitRead(a, n, cycles)

	return data, cycles, nil
}

// WriteBytes writes data starting at a and returns the cycle cost. The
// same bounds and serialization rules as ReadBytes apply.
func (c *Comp) WriteBytes(a uint64, data []byte) (int, error) {
	n := uint64(len(data))
	if n == 0 {
		return 0, nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if r, ok := c.mmioRangeFor(a); ok {
		cycles, err := c.mmioWrite(r, a, data)
		if err != nil {
			return 0, err
		}

		c.commitWrite(a, n, cycles)

		return cycles, nil
	}

	loc, err := c.locate(a, n)
	if err != nil {
		return 0, err
	}

	bank := c.banks[c.mapper.BankIndex(loc)]
	cycles := c.prepareBank(bank, loc)
	bank.write(int(loc.Row), int(loc.Col), data)

	c.commitWrite(a, n, cycles)

	return cycles, nil
}

// ReadBytesPaced is ReadBytes followed by a wall-clock delay proportional
// to the cycle cost. The synchronous effect commits before the delay
// starts: a caller canceled during the delay only loses the result, never
// the memory effect. Callers must not rely on cancellation for atomicity.
func (c *Comp) ReadBytesPaced(
	ctx context.Context,
	a uint64,
	n uint64,
) ([]byte, int, error) {
	data, cycles, err := c.ReadBytes(a, n)
	if err != nil {
		return nil, 0, err
	}

	if err := c.pace(ctx, cycles); err != nil {
		return nil, 0, err
	}

	return data, cycles, nil
}

// WriteBytesPaced is the paced variant of WriteBytes. The write commits
// before the delay starts.
func (c *Comp) WriteBytesPaced(
	ctx context.Context,
	a uint64,
	data []byte,
) (int, error) {
	cycles, err := c.WriteBytes(a, data)
	if err != nil {
		return 0, err
	}

	if err := c.pace(ctx, cycles); err != nil {
		return 0, err
	}

	return cycles, nil
}

// RefreshAll forces every bank to close its row buffer and charges the
// refresh cycle time once, modeling a broadcast refresh.
func (c *Comp) RefreshAll() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, b := range c.banks {
		b.precharge()
	}

	cycles := c.timing.RefreshCycleTime
	c.cycle += uint64(cycles)
	c.stats.Refreshes++

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosRefreshStarted,
		Detail: RefreshDetail{Cycles: cycles},
	})

	return cycles
}

// Snapshot returns an independent copy of every bank's row-buffer state.
func (c *Comp) Snapshot() []BankSnapshot {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make([]BankSnapshot, 0, len(c.banks))
	for _, b := range c.banks {
		row, open := b.OpenRow()
		out = append(out, BankSnapshot{
			Name:    b.Name(),
			Open:    open,
			OpenRow: row,
		})
	}

	return out
}

// Topology describes the controller geometry.
func (c *Comp) Topology() string {
	m := c.mapper

	return fmt.Sprintf("%d banks x %d rows x %d cols, %d bytes total",
		m.NumBanks(), m.NumRow(), m.NumCol(), m.PhysicalSize())
}

// locate bounds-checks the access and decodes its location. The access
// must fit within one row of one bank.
func (c *Comp) locate(a, n uint64) (addr.Location, error) {
	// The guard is phrased so that a+n cannot wrap around 2^64 and alias
	// an out-of-range access onto valid memory.
	size := c.mapper.PhysicalSize()
	if a >= size || n > size-a {
		return addr.Location{}, &mem.OutOfBoundsError{
			Addr:   a,
			Length: n,
			Limit:  size,
		}
	}

	loc := c.mapper.Decode(a)
	if loc.Col+n > uint64(c.mapper.NumCol()) {
		return addr.Location{}, &mem.OutOfBoundsError{
			Addr:   a,
			Length: n,
			Limit:  a - loc.Col + uint64(c.mapper.NumCol()),
		}
	}

	return loc, nil
}

func (c *Comp) prepareBank(bank *Bank, loc addr.Location) int {
	cycles, rowHit := bank.prepare(int(loc.Row), c.timing)

	if rowHit {
		c.stats.RowBufferHits++
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosRowBufferHit,
			Detail: RowBufferHitDetail{Location: loc},
		})
	}

	return cycles
}

func (c *Comp) commitRead(a, n uint64, cycles int) {
	c.cycle += uint64(cycles)
	c.stats.Reads++

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosRead,
		Detail: AccessDetail{Addr: a, Length: n, Cycles: cycles},
	})
}

func (c *Comp) commitWrite(a, n uint64, cycles int) {
	c.cycle += uint64(cycles)
	c.stats.Writes++

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosWrite,
		Detail: AccessDetail{Addr: a, Length: n, Cycles: cycles},
	})
}

func (c *Comp) mmioRead(
	r mmioRange,
	a, n uint64,
) ([]byte, int, error) {
	if n > r.start+r.size-a {
		return nil, 0, &mem.OutOfBoundsError{
			Addr:   a,
			Length: n,
			Limit:  r.start + r.size,
		}
	}

	return r.handler.Read(a-r.start, n)
}

func (c *Comp) mmioWrite(
	r mmioRange,
	a uint64,
	data []byte,
) (int, error) {
	if uint64(len(data)) > r.start+r.size-a {
		return 0, &mem.OutOfBoundsError{
			Addr:   a,
			Length: uint64(len(data)),
			Limit:  r.start + r.size,
		}
	}

	return r.handler.Write(a-r.start, data)
}

// pace suspends the caller for cycles x cyclePeriod. A zero cycle period
// disables pacing.
func (c *Comp) pace(ctx context.Context, cycles int) error {
	if c.cyclePeriod <= 0 || cycles <= 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(cycles) * c.cyclePeriod)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
