// Package timer implements a memory-mapped countdown timer device. It is
// registered with the memory controller as an MMIO handler and advanced by
// an external clock source through Tick. The interrupt wiring beyond the
// pending flag belongs to an external interrupt controller.
package timer

import (
	"encoding/binary"
	"sync"

	"github.com/rowbuf/memsim/mem"
)

// Register offsets, word-addressable.
const (
	OffCtrl   = 0x00
	OffPeriod = 0x04
	OffCount  = 0x08
	OffStatus = 0x0C

	// RegionSize is the size of the MMIO range the device expects.
	RegionSize = 0x100
)

// CTRL register bits.
const (
	CtrlEnable    = 1 << 0
	CtrlIRQEnable = 1 << 1
)

// STATUS register bits. Pending is sticky and cleared by writing one.
const (
	StatusPending = 1 << 0
)

// A Device is the timer. Each register access costs one cycle on the
// controller's clock.
type Device struct {
	mu sync.Mutex

	enabled   bool
	irqEnable bool
	period    uint32
	count     uint32
	status    uint32

	eventsGenerated uint64
}

// New creates a disabled timer with zero period.
func New() *Device {
	return &Device{}
}

// Tick advances the timer by cycles clock ticks. When the count reaches
// zero the timer sets the pending status, reloads the period, and counts
// one generated event.
func (d *Device) Tick(cycles uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := uint64(0); i < cycles; i++ {
		if !d.enabled || d.period == 0 {
			return
		}

		if d.count == 0 {
			d.eventsGenerated++
			d.status |= StatusPending
			d.count = d.period
		} else {
			d.count--
		}
	}
}

// IRQPending reports whether the timer has an unacknowledged event and
// interrupt generation is enabled.
func (d *Device) IRQPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.irqEnable && d.status&StatusPending != 0
}

// EventsGenerated returns the number of expirations since construction.
func (d *Device) EventsGenerated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.eventsGenerated
}

// Read serves an MMIO read of n bytes at offset. Only accesses contained
// in a single register word are supported.
func (d *Device) Read(offset uint64, n uint64) ([]byte, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	word, off, err := locateRegister(offset, n)
	if err != nil {
		return nil, 0, err
	}

	var v uint32
	switch word {
	case OffCtrl:
		if d.enabled {
			v |= CtrlEnable
		}
		if d.irqEnable {
			v |= CtrlIRQEnable
		}
	case OffPeriod:
		v = d.period
	case OffCount:
		v = d.count
	case OffStatus:
		v = d.status
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)

	out := make([]byte, n)
	copy(out, buf[off:off+n])

	return out, 1, nil
}

// Write serves an MMIO write. Writing STATUS clears the bits that are set
// in the written value (write-one-to-clear). Enabling the timer through
// CTRL reloads the count from the period.
func (d *Device) Write(offset uint64, data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := uint64(len(data))

	word, off, err := locateRegister(offset, n)
	if err != nil {
		return 0, err
	}

	var cur uint32
	switch word {
	case OffPeriod:
		cur = d.period
	case OffCount:
		cur = d.count
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], cur)
	copy(buf[off:off+n], data)
	v := binary.LittleEndian.Uint32(buf[:])

	switch word {
	case OffCtrl:
		wasEnabled := d.enabled
		d.enabled = v&CtrlEnable != 0
		d.irqEnable = v&CtrlIRQEnable != 0

		if d.enabled && !wasEnabled {
			d.count = d.period
		}
	case OffPeriod:
		d.period = v
	case OffCount:
		d.count = v
	case OffStatus:
		d.status &^= v
	}

	return 1, nil
}

// locateRegister validates that [offset, offset+n) lies within a single
// known register word and returns the word offset plus the byte offset
// within it.
func locateRegister(offset, n uint64) (word uint64, off uint64, err error) {
	word = offset &^ 3
	off = offset & 3

	outOfRange := n == 0 || n > 4 || off+n > 4
	switch word {
	case OffCtrl, OffPeriod, OffCount, OffStatus:
	default:
		outOfRange = true
	}

	if outOfRange {
		return 0, 0, &mem.OutOfBoundsError{
			Addr:   offset,
			Length: n,
			Limit:  OffStatus + 4,
		}
	}

	return word, off, nil
}
