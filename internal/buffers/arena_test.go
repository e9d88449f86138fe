package buffers

import "testing"

func TestCellViewIsLiveAndDisjoint(t *testing.T) {
	a := New[complex64](2, 3, 4, 5)

	v := a.CellView(0, 1, 2)
	if len(v) != 5 {
		t.Fatalf("expected payload length 5, got %d", len(v))
	}
	v[0] = complex(1, 2)

	// Re-fetching the same coordinate must observe the write in place.
	if got := a.CellView(0, 1, 2)[0]; got != complex(1, 2) {
		t.Fatalf("expected live view to observe write, got %v", got)
	}

	// A neighboring coordinate must be untouched.
	if got := a.CellView(0, 1, 3)[0]; got != 0 {
		t.Fatalf("expected neighboring cell untouched, got %v", got)
	}
}

func TestOutOfBoundsPanics(t *testing.T) {
	a := New[complex64](1, 1, 1, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-bounds coordinate")
		}
	}()
	_ = a.CellView(0, 0, 1)
}
