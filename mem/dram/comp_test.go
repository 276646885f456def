package dram

import (
	"context"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rowbuf/memsim/hooking"
	"github.com/rowbuf/memsim/mem"
)

// recordingHook collects every hook invocation for inspection.
type recordingHook struct {
	ctxs []hooking.HookCtx
}

func (h *recordingHook) Func(ctx hooking.HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

func (h *recordingHook) at(pos *hooking.HookPos) []hooking.HookCtx {
	out := []hooking.HookCtx{}
	for _, ctx := range h.ctxs {
		if ctx.Pos == pos {
			out = append(out, ctx)
		}
	}

	return out
}

var _ = Describe("Comp", func() {
	var (
		timing Timing
		hook   *recordingHook
		c      *Comp
	)

	BeforeEach(func() {
		timing = DDR3Timing()
		hook = &recordingHook{}
		c = MakeBuilder().
			WithNumChannel(1).
			WithNumRank(1).
			WithNumBank(2).
			WithNumRow(4).
			WithNumCol(64).
			WithAdditionalHooks(hook).
			Build("DRAM")
	})

	newRowCost := func() int {
		return timing.RASToCASDelay + timing.CASLatency + timing.BurstLength
	}

	rowHitCost := func() int {
		return timing.CASLatency + timing.BurstLength
	}

	conflictCost := func() int {
		return timing.RowPrechargeTime + newRowCost()
	}

	It("should charge the activate cost on a closed bank", func() {
		_, cycles, err := c.ReadBytes(0, 8)

		Expect(err).ToNot(HaveOccurred())
		Expect(cycles).To(Equal(newRowCost()))
		Expect(c.CurrentCycle()).To(Equal(uint64(cycles)))
	})

	It("should serve a second access to the open row faster", func() {
		_, first, _ := c.ReadBytes(0, 8)
		_, second, err := c.ReadBytes(32, 8)

		Expect(err).ToNot(HaveOccurred())
		Expect(second).To(Equal(rowHitCost()))
		Expect(second).To(BeNumerically("<", first))
		Expect(c.CurrentStats().RowBufferHits).To(Equal(uint64(1)))
	})

	It("should charge precharge plus activate on a row conflict", func() {
		_, _, _ = c.ReadBytes(0, 8)
		_, cycles, err := c.ReadBytes(64, 8)

		Expect(err).ToNot(HaveOccurred())
		Expect(cycles).To(Equal(conflictCost()))
	})

	It("should keep banks independent", func() {
		_, _, _ = c.ReadBytes(0, 8)

		otherBank := uint64(4 * 64)
		_, cycles, err := c.ReadBytes(otherBank, 8)

		Expect(err).ToNot(HaveOccurred())
		Expect(cycles).To(Equal(newRowCost()))
	})

	It("should return written data", func() {
		data := []byte{1, 2, 3, 4}

		_, err := c.WriteBytes(100, data)
		Expect(err).ToNot(HaveOccurred())

		got, _, err := c.ReadBytes(100, 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal(data))
	})

	It("should treat zero-length accesses as no-ops", func() {
		data, cycles, err := c.ReadBytes(0, 0)

		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(BeEmpty())
		Expect(cycles).To(Equal(0))
		Expect(c.CurrentCycle()).To(Equal(uint64(0)))
		Expect(c.CurrentStats().Reads).To(Equal(uint64(0)))
	})

	It("should reject accesses past the physical size", func() {
		_, _, err := c.ReadBytes(c.PhysicalSize()-4, 8)

		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))
		Expect(c.CurrentCycle()).To(Equal(uint64(0)))
	})

	It("should reject wrapping accesses without touching memory", func() {
		_, err := c.WriteBytes(math.MaxUint64, []byte{0xAA})
		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))
		Expect(c.CurrentStats().Writes).To(Equal(uint64(0)))

		_, _, err = c.ReadBytes(0, math.MaxUint64)
		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))

		_, _, err = c.ReadBytes(c.PhysicalSize(), 1)
		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))

		for a := uint64(0); a < c.PhysicalSize(); a += 64 {
			data, _, err := c.ReadBytes(a, 64)
			Expect(err).ToNot(HaveOccurred())
			Expect(data).To(Equal(make([]byte, 64)))
		}
	})

	It("should reject accesses that span a row boundary", func() {
		_, _, err := c.ReadBytes(60, 8)

		Expect(err).To(BeAssignableToTypeOf(&mem.OutOfBoundsError{}))
		Expect(c.CurrentStats().Reads).To(Equal(uint64(0)))
	})

	It("should close every bank on a refresh", func() {
		_, _, _ = c.ReadBytes(0, 8)
		_, _, _ = c.ReadBytes(4*64, 8)

		before := c.CurrentCycle()
		cycles := c.RefreshAll()

		Expect(cycles).To(Equal(timing.RefreshCycleTime))
		Expect(c.CurrentCycle()).To(Equal(before + uint64(cycles)))
		Expect(c.CurrentStats().Refreshes).To(Equal(uint64(1)))

		for _, bank := range c.Snapshot() {
			Expect(bank.Open).To(BeFalse())
		}

		_, reopened, err := c.ReadBytes(0, 8)
		Expect(err).ToNot(HaveOccurred())
		Expect(reopened).To(Equal(newRowCost()))
	})

	It("should report accesses through hooks", func() {
		_, cycles, _ := c.ReadBytes(8, 4)
		_, _ = c.WriteBytes(8, []byte{9})

		reads := hook.at(HookPosRead)
		Expect(reads).To(HaveLen(1))
		Expect(reads[0].Detail).To(Equal(AccessDetail{
			Addr:   8,
			Length: 4,
			Cycles: cycles,
		}))

		Expect(hook.at(HookPosWrite)).To(HaveLen(1))
	})

	It("should expose open rows through snapshots", func() {
		_, _, _ = c.ReadBytes(64, 8)

		snapshot := c.Snapshot()
		Expect(snapshot).To(HaveLen(2))
		Expect(snapshot[0].Open).To(BeTrue())
		Expect(snapshot[0].OpenRow).To(Equal(1))
		Expect(snapshot[1].Open).To(BeFalse())
	})

	It("should panic on negative timing", func() {
		Expect(func() {
			MakeBuilder().
				WithTiming(Timing{CASLatency: -1}).
				Build("Bad")
		}).To(Panic())
	})

	It("should panic on non-positive geometry", func() {
		Expect(func() {
			MakeBuilder().WithNumRow(0).Build("Bad")
		}).To(Panic())
	})
})

var _ = Describe("Comp paced accesses", func() {
	var c *Comp

	BeforeEach(func() {
		c = MakeBuilder().
			WithNumChannel(1).
			WithNumRank(1).
			WithNumBank(1).
			WithNumRow(4).
			WithNumCol(64).
			Build("DRAM")
	})

	It("should behave like the synchronous variant when pacing is off", func() {
		cycles, err := c.WriteBytesPaced(context.Background(), 0, []byte{1})
		Expect(err).ToNot(HaveOccurred())
		Expect(cycles).To(BeNumerically(">", 0))

		data, _, err := c.ReadBytesPaced(context.Background(), 0, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{1}))
	})

	It("should commit the effect even when the caller is canceled", func() {
		paced := MakeBuilder().
			WithNumChannel(1).
			WithNumRank(1).
			WithNumBank(1).
			WithNumRow(4).
			WithNumCol(64).
			WithCyclePeriod(time.Millisecond).
			Build("DRAM")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := paced.WriteBytesPaced(ctx, 0, []byte{42})
		Expect(err).To(MatchError(context.Canceled))

		data, _, err := paced.ReadBytes(0, 1)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{42}))
		Expect(paced.CurrentStats().Writes).To(Equal(uint64(1)))
	})
})
