package dram

// Timing holds the DRAM timing parameters. All values are cycle counts and
// must be non-negative.
type Timing struct {
	// CASLatency is the column access strobe latency, charged on every
	// read or write once the row is open.
	CASLatency int

	// RASToCASDelay is the cost of activating a row into the row buffer.
	RASToCASDelay int

	// RowPrechargeTime is the cost of closing the open row.
	RowPrechargeTime int

	// RowActiveTime is the minimum time a row must stay open. It is
	// informational and does not enter the cost computation.
	RowActiveTime int

	// RefreshCycleTime is the cost of one broadcast refresh, charged once
	// regardless of bank count.
	RefreshCycleTime int

	// BurstLength is the number of cycles of data transfer per access.
	BurstLength int
}

// DDR3Timing returns timing parameters loosely modeled after DDR3-1600.
func DDR3Timing() Timing {
	return Timing{
		CASLatency:       11,
		RASToCASDelay:    11,
		RowPrechargeTime: 11,
		RowActiveTime:    28,
		RefreshCycleTime: 208,
		BurstLength:      4,
	}
}

func (t Timing) mustBeNonNegative() {
	values := []int{
		t.CASLatency,
		t.RASToCASDelay,
		t.RowPrechargeTime,
		t.RowActiveTime,
		t.RefreshCycleTime,
		t.BurstLength,
	}

	for _, v := range values {
		if v < 0 {
			panic("timing parameters must be non-negative")
		}
	}
}
