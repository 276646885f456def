package cache

import (
	"github.com/rowbuf/memsim/hooking"
	"github.com/rowbuf/memsim/mem/addr"
)

// Builder can build cache engines.
type Builder struct {
	cacheSize   int
	blockSize   int
	assoc       int
	replacement ReplacementPolicy
	writePolicy WritePolicy
	bottom      BackingStore
	hooks       []hooking.Hook
}

// MakeBuilder creates a Builder with default configuration: a 32 KiB,
// 4-way cache of 64-byte blocks with LRU replacement and write-back.
func MakeBuilder() Builder {
	return Builder{
		cacheSize:   32768,
		blockSize:   64,
		assoc:       4,
		replacement: LRU,
		writePolicy: WriteBack,
	}
}

// WithCacheSize sets the total capacity in bytes. It must be a multiple of
// the block size.
func (b Builder) WithCacheSize(n int) Builder {
	b.cacheSize = n
	return b
}

// WithBlockSize sets the block size in bytes.
func (b Builder) WithBlockSize(n int) Builder {
	b.blockSize = n
	return b
}

// WithAssociativity sets the number of ways per set.
func (b Builder) WithAssociativity(n int) Builder {
	b.assoc = n
	return b
}

// WithReplacementPolicy sets the victim selection scheme.
func (b Builder) WithReplacementPolicy(p ReplacementPolicy) Builder {
	b.replacement = p
	return b
}

// WithWritePolicy sets the write policy.
func (b Builder) WithWritePolicy(p WritePolicy) Builder {
	b.writePolicy = p
	return b
}

// WithBackingStore sets the layer the cache fills from and flushes to,
// normally the region table.
func (b Builder) WithBackingStore(s BackingStore) Builder {
	b.bottom = s
	return b
}

// WithAdditionalHooks adds a hook to the cache.
func (b Builder) WithAdditionalHooks(h hooking.Hook) Builder {
	b.hooks = append(b.hooks, h)
	return b
}

// Build builds a new Comp. It panics if the configuration is invalid:
// non-positive sizes, a cache size that is not a multiple of the block
// size, or an associativity outside [1, numLines].
func (b Builder) Build(name string) *Comp {
	b.configMustBeValid()

	numLines := b.cacheSize / b.blockSize
	numSets := numLines / b.assoc

	c := &Comp{
		name: name,
		mapper: addr.MakeCacheMapperBuilder().
			WithBlockSize(b.blockSize).
			WithNumSets(numSets).
			Build(),
		assoc:        b.assoc,
		replacement:  b.replacement,
		writePolicy:  b.writePolicy,
		victimFinder: b.victimFinder(),
		bottom:       b.bottom,
	}

	c.sets = make([]Set, numSets)
	for s := range c.sets {
		c.sets[s].Lines = make([]Line, b.assoc)
	}

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	return c
}

func (b Builder) victimFinder() VictimFinder {
	if b.replacement == FIFO {
		return NewFIFOVictimFinder()
	}

	return NewLRUVictimFinder()
}

func (b Builder) configMustBeValid() {
	if b.cacheSize <= 0 || b.blockSize <= 0 {
		panic("cache size and block size must be positive")
	}

	if b.cacheSize%b.blockSize != 0 {
		panic("cache size must be a multiple of the block size")
	}

	numLines := b.cacheSize / b.blockSize
	if b.assoc < 1 || b.assoc > numLines {
		panic("associativity must be in [1, numLines]")
	}

	if numLines%b.assoc != 0 {
		panic("number of lines must be a multiple of the associativity")
	}

	if b.bottom == nil {
		panic("backing store must be set")
	}
}
