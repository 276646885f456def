package addr

// A CacheMapper splits a physical address into the tag, set index, and
// block offset used by a set-associative cache.
//
// For power-of-two dimensions the three fields are plain bit slices of the
// address: the offset is the low log2(blockSize) bits, the set index the
// next log2(numSets) bits (zero bits wide when there is a single set), and
// the tag everything above. When a dimension is not a power of two, the
// mapper uses the minimal bit width that can represent the dimension,
// masks, and reduces modulo the dimension so indices stay in range.
type CacheMapper struct {
	blockSize uint64
	numSets   uint64

	offsetBits uint
	setBits    uint
	offsetMask uint64
	setMask    uint64
}

// CacheMapperBuilder can build cache address mappers.
type CacheMapperBuilder struct {
	blockSize int
	numSets   int
}

// MakeCacheMapperBuilder creates a CacheMapperBuilder with default
// geometry.
func MakeCacheMapperBuilder() CacheMapperBuilder {
	return CacheMapperBuilder{
		blockSize: 64,
		numSets:   64,
	}
}

// WithBlockSize sets the block size in bytes.
func (b CacheMapperBuilder) WithBlockSize(n int) CacheMapperBuilder {
	b.blockSize = n
	return b
}

// WithNumSets sets the number of sets.
func (b CacheMapperBuilder) WithNumSets(n int) CacheMapperBuilder {
	b.numSets = n
	return b
}

// Build builds a CacheMapper.
func (b CacheMapperBuilder) Build() CacheMapper {
	if b.blockSize <= 0 {
		panic("block size must be positive")
	}

	if b.numSets <= 0 {
		panic("number of sets must be positive")
	}

	offsetBits := minBitWidth(uint64(b.blockSize))
	setBits := minBitWidth(uint64(b.numSets))

	return CacheMapper{
		blockSize:  uint64(b.blockSize),
		numSets:    uint64(b.numSets),
		offsetBits: offsetBits,
		setBits:    setBits,
		offsetMask: mask(offsetBits),
		setMask:    mask(setBits),
	}
}

// Decode splits a physical address into tag, set index, and block offset.
func (m CacheMapper) Decode(a uint64) (tag, set, offset uint64) {
	offset = a & m.offsetMask
	if offset >= m.blockSize {
		offset %= m.blockSize
	}

	set = (a >> m.offsetBits) & m.setMask
	if set >= m.numSets {
		set %= m.numSets
	}

	tag = a >> (m.offsetBits + m.setBits)

	return tag, set, offset
}

// Encode reconstructs the physical address of a tag/set/offset triple. It
// is the inverse of Decode when the block size and set count are powers of
// two.
func (m CacheMapper) Encode(tag, set, offset uint64) uint64 {
	return tag<<(m.offsetBits+m.setBits) | set<<m.offsetBits | offset
}

// BlockBase returns the address of the first byte of the block that
// contains a.
func (m CacheMapper) BlockBase(a uint64) uint64 {
	tag, set, _ := m.Decode(a)
	return m.Encode(tag, set, 0)
}

// BlockSize returns the block size in bytes.
func (m CacheMapper) BlockSize() uint64 {
	return m.blockSize
}

// NumSets returns the number of sets.
func (m CacheMapper) NumSets() uint64 {
	return m.numSets
}

// minBitWidth returns the minimal number of bits that can represent values
// in [0, n). It is zero when n is 1.
func minBitWidth(n uint64) uint {
	width := uint(0)
	for uint64(1)<<width < n {
		width++
	}

	return width
}

func mask(bits uint) uint64 {
	return uint64(1)<<bits - 1
}
