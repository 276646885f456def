package cache

// A VictimFinder decides which way of a set should be evicted on a miss.
// Scan order over the ways is fixed, so ties resolve to the lowest way
// index deterministically.
type VictimFinder interface {
	FindVictim(set *Set) int
}

// LRUVictimFinder evicts the least recently used line.
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns an invalid way if the set has one, otherwise the way
// with the smallest LastUsed stamp.
func (f *LRUVictimFinder) FindVictim(set *Set) int {
	if way, ok := invalidWay(set); ok {
		return way
	}

	victim := 0
	for way, line := range set.Lines {
		if line.LastUsed < set.Lines[victim].LastUsed {
			victim = way
		}
	}

	return victim
}

// FIFOVictimFinder evicts lines strictly in insertion order. Hits do not
// protect a line from eviction.
type FIFOVictimFinder struct{}

// NewFIFOVictimFinder returns a newly constructed FIFO victim finder.
func NewFIFOVictimFinder() *FIFOVictimFinder {
	return &FIFOVictimFinder{}
}

// FindVictim returns an invalid way if the set has one, otherwise the way
// with the smallest InsertOrder stamp.
func (f *FIFOVictimFinder) FindVictim(set *Set) int {
	if way, ok := invalidWay(set); ok {
		return way
	}

	victim := 0
	for way, line := range set.Lines {
		if line.InsertOrder < set.Lines[victim].InsertOrder {
			victim = way
		}
	}

	return victim
}

func invalidWay(set *Set) (int, bool) {
	for way, line := range set.Lines {
		if !line.Valid {
			return way, true
		}
	}

	return 0, false
}
