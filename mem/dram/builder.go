package dram

import (
	"fmt"
	"time"

	"github.com/rowbuf/memsim/hooking"
	"github.com/rowbuf/memsim/mem/addr"
)

// Builder can build memory controllers.
type Builder struct {
	numChannel int
	numRank    int
	numBank    int
	numRow     int
	numCol     int

	timing      Timing
	cyclePeriod time.Duration
	hooks       []hooking.Hook
}

// MakeBuilder creates a Builder with default configuration: a single
// channel of 2 ranks x 8 banks x 1024 rows x 1024 columns with DDR3-like
// timing and pacing disabled.
func MakeBuilder() Builder {
	return Builder{
		numChannel: 1,
		numRank:    2,
		numBank:    8,
		numRow:     1024,
		numCol:     1024,
		timing:     DDR3Timing(),
	}
}

// WithNumChannel sets the number of channels.
func (b Builder) WithNumChannel(n int) Builder {
	b.numChannel = n
	return b
}

// WithNumRank sets the number of ranks per channel.
func (b Builder) WithNumRank(n int) Builder {
	b.numRank = n
	return b
}

// WithNumBank sets the number of banks per rank.
func (b Builder) WithNumBank(n int) Builder {
	b.numBank = n
	return b
}

// WithNumRow sets the number of rows per bank.
func (b Builder) WithNumRow(n int) Builder {
	b.numRow = n
	return b
}

// WithNumCol sets the number of columns per row.
func (b Builder) WithNumCol(n int) Builder {
	b.numCol = n
	return b
}

// WithTiming sets the timing parameters.
func (b Builder) WithTiming(t Timing) Builder {
	b.timing = t
	return b
}

// WithCyclePeriod sets the wall-clock duration of one simulated cycle,
// used only by the paced access variants. Zero disables pacing.
func (b Builder) WithCyclePeriod(d time.Duration) Builder {
	b.cyclePeriod = d
	return b
}

// WithAdditionalHooks adds a hook to the controller.
func (b Builder) WithAdditionalHooks(h hooking.Hook) Builder {
	b.hooks = append(b.hooks, h)
	return b
}

// Build builds a new Comp.
func (b Builder) Build(name string) *Comp {
	b.timing.mustBeNonNegative()

	mapper := addr.MakeMapperBuilder().
		WithNumChannel(b.numChannel).
		WithNumRank(b.numRank).
		WithNumBank(b.numBank).
		WithNumRow(b.numRow).
		WithNumCol(b.numCol).
		Build()

	c := &Comp{
		name:        name,
		mapper:      mapper,
		timing:      b.timing,
		cyclePeriod: b.cyclePeriod,
	}

	c.banks = make([]*Bank, 0, mapper.NumBanks())
	for ch := 0; ch < b.numChannel; ch++ {
		for r := 0; r < b.numRank; r++ {
			for bk := 0; bk < b.numBank; bk++ {
				bankName := fmt.Sprintf("%s.Bank[%d][%d][%d]",
					name, ch, r, bk)
				c.banks = append(c.banks,
					newBank(bankName, b.numRow, b.numCol))
			}
		}
	}

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	return c
}
