// Package addr provides the pure address decompositions used by the
// memory hierarchy: physical address to DRAM location for the memory
// controller, and physical address to tag/set/offset for the cache.
// Both codecs are stateless and deterministic.
package addr

// A Location identifies one column of one DRAM array.
type Location struct {
	Channel uint64
	Rank    uint64
	Bank    uint64
	Row     uint64
	Col     uint64
}

// A Mapper converts between physical addresses and DRAM locations. The
// column is the fastest-varying field, then row, bank, rank, and channel.
type Mapper struct {
	numChannel uint64
	numRank    uint64
	numBank    uint64
	numRow     uint64
	numCol     uint64
}

// MapperBuilder can build DRAM address mappers.
type MapperBuilder struct {
	numChannel int
	numRank    int
	numBank    int
	numRow     int
	numCol     int
}

// MakeMapperBuilder creates a MapperBuilder with default geometry.
func MakeMapperBuilder() MapperBuilder {
	return MapperBuilder{
		numChannel: 1,
		numRank:    2,
		numBank:    8,
		numRow:     1024,
		numCol:     1024,
	}
}

// WithNumChannel sets the number of channels.
func (b MapperBuilder) WithNumChannel(n int) MapperBuilder {
	b.numChannel = n
	return b
}

// WithNumRank sets the number of ranks per channel.
func (b MapperBuilder) WithNumRank(n int) MapperBuilder {
	b.numRank = n
	return b
}

// WithNumBank sets the number of banks per rank.
func (b MapperBuilder) WithNumBank(n int) MapperBuilder {
	b.numBank = n
	return b
}

// WithNumRow sets the number of rows per bank.
func (b MapperBuilder) WithNumRow(n int) MapperBuilder {
	b.numRow = n
	return b
}

// WithNumCol sets the number of columns per row. One column holds one byte.
func (b MapperBuilder) WithNumCol(n int) MapperBuilder {
	b.numCol = n
	return b
}

// Build builds a Mapper.
func (b MapperBuilder) Build() Mapper {
	b.dimensionsMustBePositive()

	return Mapper{
		numChannel: uint64(b.numChannel),
		numRank:    uint64(b.numRank),
		numBank:    uint64(b.numBank),
		numRow:     uint64(b.numRow),
		numCol:     uint64(b.numCol),
	}
}

func (b MapperBuilder) dimensionsMustBePositive() {
	dims := []int{b.numChannel, b.numRank, b.numBank, b.numRow, b.numCol}
	for _, d := range dims {
		if d <= 0 {
			panic("all DRAM dimensions must be positive")
		}
	}
}

// Decode maps a physical address to its DRAM location by successive
// modulo/divide over the geometry. It is exact for any geometry, power of
// two or not.
func (m Mapper) Decode(a uint64) Location {
	loc := Location{}

	loc.Col = a % m.numCol
	a /= m.numCol

	loc.Row = a % m.numRow
	a /= m.numRow

	loc.Bank = a % m.numBank
	a /= m.numBank

	loc.Rank = a % m.numRank
	a /= m.numRank

	loc.Channel = a % m.numChannel

	return loc
}

// Encode is the inverse of Decode for locations within the configured
// geometry.
func (m Mapper) Encode(loc Location) uint64 {
	a := loc.Channel
	a = a*m.numRank + loc.Rank
	a = a*m.numBank + loc.Bank
	a = a*m.numRow + loc.Row
	a = a*m.numCol + loc.Col

	return a
}

// PhysicalSize returns the number of addressable bytes.
func (m Mapper) PhysicalSize() uint64 {
	return m.numChannel * m.numRank * m.numBank * m.numRow * m.numCol
}

// NumBanks returns the total number of banks across all channels and ranks.
func (m Mapper) NumBanks() int {
	return int(m.numChannel * m.numRank * m.numBank)
}

// BankIndex flattens a location into an index into the controller's bank
// array.
func (m Mapper) BankIndex(loc Location) int {
	return int((loc.Channel*m.numRank+loc.Rank)*m.numBank + loc.Bank)
}

// NumRow returns the number of rows per bank.
func (m Mapper) NumRow() int {
	return int(m.numRow)
}

// NumCol returns the number of columns per row.
func (m Mapper) NumCol() int {
	return int(m.numCol)
}
