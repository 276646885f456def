package addr

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Mapper", func() {
	var mapper Mapper

	BeforeEach(func() {
		mapper = MakeMapperBuilder().
			WithNumChannel(2).
			WithNumRank(2).
			WithNumBank(4).
			WithNumRow(8).
			WithNumCol(16).
			Build()
	})

	It("should vary the column fastest", func() {
		Expect(mapper.Decode(0)).To(Equal(Location{}))
		Expect(mapper.Decode(1)).To(Equal(Location{Col: 1}))
		Expect(mapper.Decode(15)).To(Equal(Location{Col: 15}))
		Expect(mapper.Decode(16)).To(Equal(Location{Row: 1}))
	})

	It("should wrap into the next bank after the last row", func() {
		a := uint64(8 * 16)
		Expect(mapper.Decode(a)).To(Equal(Location{Bank: 1}))
	})

	It("should round-trip every address", func() {
		for a := uint64(0); a < mapper.PhysicalSize(); a += 7 {
			Expect(mapper.Encode(mapper.Decode(a))).To(Equal(a))
		}
	})

	It("should report the physical size", func() {
		Expect(mapper.PhysicalSize()).To(Equal(uint64(2 * 2 * 4 * 8 * 16)))
	})

	It("should flatten locations into unique bank indices", func() {
		seen := make(map[int]bool)
		for ch := uint64(0); ch < 2; ch++ {
			for r := uint64(0); r < 2; r++ {
				for b := uint64(0); b < 4; b++ {
					idx := mapper.BankIndex(Location{
						Channel: ch, Rank: r, Bank: b,
					})
					Expect(idx).To(BeNumerically("<", mapper.NumBanks()))
					Expect(seen[idx]).To(BeFalse())
					seen[idx] = true
				}
			}
		}
	})

	Context("with a non-power-of-two geometry", func() {
		BeforeEach(func() {
			mapper = MakeMapperBuilder().
				WithNumChannel(1).
				WithNumRank(1).
				WithNumBank(3).
				WithNumRow(5).
				WithNumCol(10).
				Build()
		})

		It("should still round-trip every address", func() {
			for a := uint64(0); a < mapper.PhysicalSize(); a++ {
				loc := mapper.Decode(a)
				Expect(loc.Bank).To(BeNumerically("<", 3))
				Expect(loc.Row).To(BeNumerically("<", 5))
				Expect(loc.Col).To(BeNumerically("<", 10))
				Expect(mapper.Encode(loc)).To(Equal(a))
			}
		})
	})

	It("should panic on non-positive dimensions", func() {
		Expect(func() {
			MakeMapperBuilder().WithNumRow(0).Build()
		}).To(Panic())

		Expect(func() {
			MakeMapperBuilder().WithNumBank(-1).Build()
		}).To(Panic())
	})
})

var _ = Describe("CacheMapper", func() {
	var mapper CacheMapper

	BeforeEach(func() {
		mapper = MakeCacheMapperBuilder().
			WithBlockSize(16).
			WithNumSets(4).
			Build()
	})

	It("should slice the address into tag, set, and offset", func() {
		tag, set, offset := mapper.Decode(0x12345)
		Expect(offset).To(Equal(uint64(0x5)))
		Expect(set).To(Equal(uint64(0x12345 >> 4 & 0x3)))
		Expect(tag).To(Equal(uint64(0x12345 >> 6)))
	})

	It("should round-trip power-of-two geometries", func() {
		for a := uint64(0); a < 4096; a += 13 {
			tag, set, offset := mapper.Decode(a)
			Expect(mapper.Encode(tag, set, offset)).To(Equal(a))
		}
	})

	It("should map every byte of a block to the same base", func() {
		for a := uint64(0x40); a < 0x50; a++ {
			Expect(mapper.BlockBase(a)).To(Equal(uint64(0x40)))
		}
	})

	Context("with a single set", func() {
		BeforeEach(func() {
			mapper = MakeCacheMapperBuilder().
				WithBlockSize(16).
				WithNumSets(1).
				Build()
		})

		It("should use zero set bits", func() {
			tag, set, _ := mapper.Decode(0x123)
			Expect(set).To(Equal(uint64(0)))
			Expect(tag).To(Equal(uint64(0x123 >> 4)))
		})
	})

	Context("with a non-power-of-two set count", func() {
		BeforeEach(func() {
			mapper = MakeCacheMapperBuilder().
				WithBlockSize(16).
				WithNumSets(3).
				Build()
		})

		It("should keep the set index in range", func() {
			for a := uint64(0); a < 1024; a++ {
				_, set, offset := mapper.Decode(a)
				Expect(set).To(BeNumerically("<", 3))
				Expect(offset).To(BeNumerically("<", 16))
			}
		})
	})

	It("should panic on non-positive dimensions", func() {
		Expect(func() {
			MakeCacheMapperBuilder().WithBlockSize(0).Build()
		}).To(Panic())

		Expect(func() {
			MakeCacheMapperBuilder().WithNumSets(0).Build()
		}).To(Panic())
	})
})
