// Package region provides the bus facade in front of the memory
// controller: a table of named, permission-guarded regions over the
// physical address space. Every access is checked against the table before
// it is allowed to reach the controller.
package region

import (
	"sort"
	"sync"

	"github.com/rowbuf/memsim/mem"
	"github.com/rowbuf/memsim/mem/dram"
)

// A Region is one mapped range of the physical address space.
type Region struct {
	Name  string
	Start uint64
	Size  uint64
	Perm  mem.Perm
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Start + r.Size
}

func (r Region) contains(a uint64) bool {
	return a >= r.Start && a < r.End()
}

func (r Region) overlaps(start, size uint64) bool {
	return start < r.End() && r.Start < start+size
}

// A Table maps logical regions over a memory controller and rejects
// unmapped or insufficiently permissioned accesses before delegating.
// Regions never overlap and never exceed the controller's physical size.
type Table struct {
	mu      sync.RWMutex
	ctrl    *dram.Comp
	regions []Region
}

// NewTable creates a Table over ctrl with no regions mapped.
func NewTable(ctrl *dram.Comp) *Table {
	return &Table{ctrl: ctrl}
}

// Map registers a region. It fails with OutOfBounds if the region would
// exceed the controller's physical size and with Overlap if it collides
// with an existing region.
func (t *Table) Map(name string, start, size uint64, p mem.Perm) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	phys := t.ctrl.PhysicalSize()
	if size == 0 || start >= phys || size > phys-start {
		return &mem.OutOfBoundsError{
			Addr:   start,
			Length: size,
			Limit:  phys,
		}
	}

	for _, r := range t.regions {
		if r.overlaps(start, size) {
			return &mem.OverlapError{
				Name:     name,
				Existing: r.Name,
				Start:    start,
				Size:     size,
			}
		}
	}

	t.regions = append(t.regions, Region{
		Name:  name,
		Start: start,
		Size:  size,
		Perm:  p,
	})
	sort.Slice(t.regions, func(i, j int) bool {
		return t.regions[i].Start < t.regions[j].Start
	})

	return nil
}

// CheckAccess verifies that every byte of [a, a+n) is mapped with at least
// the needed permissions. An access may span multiple contiguous regions
// as long as each grants the permission. A zero-length access always
// passes.
func (t *Table) CheckAccess(a, n uint64, needed mem.Perm) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.checkAccessLocked(a, n, needed)
}

func (t *Table) checkAccessLocked(a, n uint64, needed mem.Perm) error {
	covered := uint64(0)

	for covered < n {
		cur := a + covered

		r, ok := t.lookup(cur)
		if !ok {
			return &mem.RegionViolationError{Addr: cur, Needed: needed}
		}

		if !r.Perm.Has(needed) {
			return &mem.RegionViolationError{
				Addr:   cur,
				Needed: needed,
				Region: r.Name,
			}
		}

		covered += min(r.End()-cur, n-covered)
	}

	return nil
}

// ReadBytes checks read permission over the range, then delegates to the
// controller.
func (t *Table) ReadBytes(a, n uint64) ([]byte, int, error) {
	if err := t.CheckAccess(a, n, mem.PermRead); err != nil {
		return nil, 0, err
	}

	return t.ctrl.ReadBytes(a, n)
}

// WriteBytes checks write permission over the range, then delegates to the
// controller.
func (t *Table) WriteBytes(a uint64, data []byte) (int, error) {
	if err := t.CheckAccess(a, uint64(len(data)), mem.PermWrite); err != nil {
		return 0, err
	}

	return t.ctrl.WriteBytes(a, data)
}

// RegisterMMIOHandler forwards a handler registration to the controller.
// A region with exactly matching start and size must have been mapped
// first.
func (t *Table) RegisterMMIOHandler(
	start, size uint64,
	h dram.MMIOHandler,
) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.regions {
		if r.Start == start && r.Size == size {
			return t.ctrl.RegisterMMIOHandler(start, size, h)
		}
	}

	return &mem.RegionViolationError{Addr: start}
}

// Regions returns a copy of the mapped regions in address order.
func (t *Table) Regions() []Region {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Region, len(t.regions))
	copy(out, t.regions)

	return out
}

// lookup finds the region containing a. The region list is sorted by
// start, so a binary search would do, but tables hold a handful of regions
// and a scan keeps the code plain.
func (t *Table) lookup(a uint64) (Region, bool) {
	for _, r := range t.regions {
		if r.contains(a) {
			return r, true
		}
	}

	return Region{}, false
}
