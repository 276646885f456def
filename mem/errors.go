package mem

import "fmt"

// An OutOfBoundsError reports an access that would read or write past the
// modeled physical space, or past a bank's column count at the computed
// offset. The access is rejected before any byte is touched.
type OutOfBoundsError struct {
	Addr   uint64
	Length uint64
	Limit  uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf(
		"access [0x%X, 0x%X) is out of bounds, limit 0x%X",
		e.Addr, e.Addr+e.Length, e.Limit)
}

// A RegionViolationError reports an access that targets an unmapped address,
// or a mapped region that lacks a required permission. It is distinct from
// OutOfBoundsError so that callers can tell "no such memory" from "memory
// exists but is protected".
type RegionViolationError struct {
	Addr   uint64
	Needed Perm

	// Region is the name of the region that rejected the access. It is
	// empty when the address is not mapped at all.
	Region string
}

func (e *RegionViolationError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("address 0x%X is not mapped", e.Addr)
	}

	return fmt.Sprintf("region %q does not permit %s access at 0x%X",
		e.Region, e.Needed, e.Addr)
}

// An OverlapError reports a region registration that collides with an
// already-registered region.
type OverlapError struct {
	Name     string
	Existing string
	Start    uint64
	Size     uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf(
		"region %q [0x%X, 0x%X) overlaps existing region %q",
		e.Name, e.Start, e.Start+e.Size, e.Existing)
}
