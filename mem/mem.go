// Package mem defines the types shared across the memory hierarchy:
// access permissions and the error taxonomy that every layer reports
// with.
package mem

import "strings"

// Common capacity units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// Perm is a bitmask of access permissions attached to a memory region.
type Perm uint8

// Individual permission bits.
const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

// Has reports whether p includes every bit of q.
func (p Perm) Has(q Perm) bool {
	return p&q == q
}

func (p Perm) String() string {
	var sb strings.Builder

	flags := []struct {
		bit  Perm
		char string
	}{
		{PermRead, "r"},
		{PermWrite, "w"},
		{PermExec, "x"},
	}

	for _, f := range flags {
		if p.Has(f.bit) {
			sb.WriteString(f.char)
		} else {
			sb.WriteString("-")
		}
	}

	return sb.String()
}
