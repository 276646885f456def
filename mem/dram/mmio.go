package dram

import "github.com/rowbuf/memsim/mem"

// An MMIOHandler serves accesses to a memory-mapped device range. The
// controller delegates the whole access to the handler, bypassing DRAM
// state entirely, and charges the handler-reported cycle cost. Offsets are
// relative to the start of the registered range.
type MMIOHandler interface {
	Read(offset uint64, n uint64) (data []byte, cycles int, err error)
	Write(offset uint64, data []byte) (cycles int, err error)
}

type mmioRange struct {
	start   uint64
	size    uint64
	handler MMIOHandler
}

func (r mmioRange) contains(a uint64) bool {
	return a >= r.start && a < r.start+r.size
}

// RegisterMMIOHandler attaches a handler to [start, start+size). The range
// must lie within the physical space and must not collide with an already
// registered handler.
func (c *Comp) RegisterMMIOHandler(
	start, size uint64,
	h MMIOHandler,
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	phys := c.mapper.PhysicalSize()
	if size == 0 || start >= phys || size > phys-start {
		return &mem.OutOfBoundsError{
			Addr:   start,
			Length: size,
			Limit:  phys,
		}
	}

	for _, r := range c.mmio {
		if start < r.start+r.size && r.start < start+size {
			return &mem.OverlapError{
				Name:     "mmio",
				Existing: "mmio",
				Start:    start,
				Size:     size,
			}
		}
	}

	c.mmio = append(c.mmio, mmioRange{start: start, size: size, handler: h})

	return nil
}

// mmioRangeFor finds the handler range that covers the first byte of the
// access, if any.
func (c *Comp) mmioRangeFor(a uint64) (mmioRange, bool) {
	for _, r := range c.mmio {
		if r.contains(a) {
			return r, true
		}
	}

	return mmioRange{}, false
}
