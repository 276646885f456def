package dram

// closedRow marks a bank with no open row.
const closedRow = -1

// A Bank is one DRAM bank: a rows-by-columns byte array plus the
// row-buffer state. A read or write may only touch the open row; the
// prepare step performs the precharge/activate transitions and reports
// their cost.
type Bank struct {
	name    string
	numRows int
	numCols int

	openRow int
	rows    [][]byte
}

func newBank(name string, numRows, numCols int) *Bank {
	return &Bank{
		name:    name,
		numRows: numRows,
		numCols: numCols,
		openRow: closedRow,
		rows:    make([][]byte, numRows),
	}
}

// Name returns the name of the bank.
func (b *Bank) Name() string {
	return b.name
}

// OpenRow returns the currently open row, if any.
func (b *Bank) OpenRow() (row int, open bool) {
	if b.openRow == closedRow {
		return 0, false
	}

	return b.openRow, true
}

// prepare drives the row-buffer state machine so that row is open, and
// returns the cycle cost of the access including the column access and
// burst transfer. rowHit reports that the row was already open.
func (b *Bank) prepare(row int, t Timing) (cycles int, rowHit bool) {
	switch {
	case b.openRow == row:
		rowHit = true
	case b.openRow == closedRow:
		cycles += t.RASToCASDelay
		b.openRow = row
	default:
		cycles += t.RowPrechargeTime + t.RASToCASDelay
		b.openRow = row
	}

	cycles += t.CASLatency + t.BurstLength

	return cycles, rowHit
}

// precharge closes the open row without charging cost. The caller accounts
// for the cost, either per access or once for a broadcast refresh.
func (b *Bank) precharge() {
	b.openRow = closedRow
}

// read copies n bytes starting at col out of the open row.
func (b *Bank) read(row, col, n int) []byte {
	out := make([]byte, n)
	copy(out, b.row(row)[col:col+n])

	return out
}

// write copies data into the open row starting at col.
func (b *Bank) write(row, col int, data []byte) {
	copy(b.row(row)[col:], data)
}

// Row storage is allocated on first touch so that large geometries do not
// reserve memory for rows that are never accessed.
func (b *Bank) row(r int) []byte {
	if b.rows[r] == nil {
		b.rows[r] = make([]byte, b.numCols)
	}

	return b.rows[r]
}
