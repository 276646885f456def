package dram

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rowbuf/memsim/mem"
)

// scratchHandler is a byte-array device that records the offsets it is
// accessed with.
type scratchHandler struct {
	bytes   [16]byte
	offsets []uint64
}

func (h *scratchHandler) Read(offset uint64, n uint64) ([]byte, int, error) {
	h.offsets = append(h.offsets, offset)

	out := make([]byte, n)
	copy(out, h.bytes[offset:offset+n])

	return out, 2, nil
}

func (h *scratchHandler) Write(offset uint64, data []byte) (int, error) {
	h.offsets = append(h.offsets, offset)
	copy(h.bytes[offset:], data)

	return 2, nil
}

var _ = Describe("MMIO dispatch", func() {
	var (
		c       *Comp
		handler *scratchHandler
	)

	const handlerStart = 64

	BeforeEach(func() {
		c = MakeBuilder().
			WithNumChannel(1).
			WithNumRank(1).
			WithNumBank(1).
			WithNumRow(4).
			WithNumCol(64).
			Build("DRAM")

		handler = &scratchHandler{}
		Expect(c.RegisterMMIOHandler(handlerStart, 16, handler)).To(Succeed())
	})

	It("should route covered accesses to the handler", func() {
		cycles, err := c.WriteBytes(handlerStart+4, []byte{0xAB})
		Expect(err).ToNot(HaveOccurred())
		Expect(cycles).To(Equal(2))

		data, _, err := c.ReadBytes(handlerStart+4, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{0xAB}))

		Expect(handler.offsets).To(Equal([]uint64{4, 4}))
	})

	It("should keep device traffic out of DRAM state", func() {
		_, _ = c.WriteBytes(handlerStart, []byte{1, 2, 3, 4})

		for _, bank := range c.Snapshot() {
			Expect(bank.Open).To(BeFalse())
		}
	})

	It("should count device accesses in the controller counters", func() {
		before := c.CurrentCycle()

		_, _ = c.WriteBytes(handlerStart, []byte{1})
		_, _, _ = c.ReadBytes(handlerStart, 1)

		stats := c.CurrentStats()
		Expect(stats.Reads).To(Equal(uint64(1)))
		Expect(stats.Writes).To(Equal(uint64(1)))
		Expect(c.CurrentCycle()).To(Equal(before + 4))
	})

	It("should reject accesses that run past the handler range", func() {
		_, _, err := c.ReadBytes(handlerStart+12, 8)

		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))
	})

	It("should reject colliding handler ranges", func() {
		err := c.RegisterMMIOHandler(handlerStart+8, 16, &scratchHandler{})

		Expect(err).To(BeAssignableToTypeOf(&mem.OverlapError{}))
	})

	It("should reject ranges outside the physical space", func() {
		err := c.RegisterMMIOHandler(c.PhysicalSize()-8, 16, &scratchHandler{})

		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))
	})

	It("should reject device accesses with a wrapping length", func() {
		_, _, err := c.ReadBytes(handlerStart, math.MaxUint64)
		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))

		Expect(handler.offsets).To(BeEmpty())
	})

	It("should reject ranges that wrap the address space", func() {
		err := c.RegisterMMIOHandler(math.MaxUint64, 2, &scratchHandler{})

		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))
	})

	It("should reject empty ranges", func() {
		err := c.RegisterMMIOHandler(0, 0, &scratchHandler{})

		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))
	})
})
