// Package buffers implements the fixed-capacity arenas backing every
// inter-stage edge: one Arena per edge, shaped
// (slot) x (symbol-or-UE) x (antenna-or-subcarrier) x payload, allocated
// once at startup and never reallocated. Addressing is pure index
// arithmetic; CellView never allocates, so there is no dynamic
// allocation on the hot path.
package buffers

import "fmt"

// Arena is a fixed-shape, four-axis backing store: (slot, row, col,
// sample), where row is a symbol or UE index, col is an antenna or
// subcarrier index, and sample indexes the payload carried at that
// coordinate (e.g. the C_all time-domain samples of one antenna's OFDM
// symbol). The whole backing slice is allocated once by New; CellView
// only computes an offset and reslices it.
type Arena[T any] struct {
	slots, rows, cols, payload int
	data                       []T
}

// New allocates an Arena of shape (slots, rows, cols) with payload
// samples per cell. New never runs on the hot path.
func New[T any](slots, rows, cols, payload int) *Arena[T] {
	if slots <= 0 || rows <= 0 || cols <= 0 || payload <= 0 {
		panic(fmt.Sprintf("buffers: invalid arena shape (%d,%d,%d,%d)", slots, rows, cols, payload))
	}
	return &Arena[T]{
		slots:   slots,
		rows:    rows,
		cols:    cols,
		payload: payload,
		data:    make([]T, slots*rows*cols*payload),
	}
}

func (a *Arena[T]) offset(slot, row, col int) int {
	if slot < 0 || slot >= a.slots || row < 0 || row >= a.rows || col < 0 || col >= a.cols {
		panic(fmt.Sprintf("buffers: coord (%d,%d,%d) out of bounds for shape (%d,%d,%d)", slot, row, col, a.slots, a.rows, a.cols))
	}
	return ((slot*a.rows+row)*a.cols + col) * a.payload
}

// CellView returns the payload slice at (slot, row, col): a live view
// into the arena's backing storage, not a copy. The coordinate's owning
// worker writes through it in place; consumers read it only after the
// tracker reports the producing stage complete for that coordinate.
func (a *Arena[T]) CellView(slot, row, col int) []T {
	off := a.offset(slot, row, col)
	return a.data[off : off+a.payload]
}

// Shape returns (slots, rows, cols, payload).
func (a *Arena[T]) Shape() (int, int, int, int) { return a.slots, a.rows, a.cols, a.payload }
