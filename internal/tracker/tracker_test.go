package tracker

import (
	"errors"
	"testing"

	"github.com/bohrm1/agora/internal/agoraerr"
)

func smallConfig() Config {
	return Config{
		FrameWindow:   3,
		SymbolNum:     4,
		ULPilotSyms:   2,
		DemulBlock:    2,
		LocalAntennas: 2,
		TotalAntennas: 2,
		LocalSC:       4,
		LocalUEs:      2,
		NumZFWorkers:  1,
	}
}

func TestTimeIQReadyRequiresAllAntennas(t *testing.T) {
	cfg := smallConfig()
	tr := New(cfg, NumSCBlocks(cfg.LocalSC, cfg.DemulBlock))

	if tr.ReceivedAllTimeIQPkts(0, 0) {
		t.Fatal("expected not ready before any arrival")
	}
	if err := tr.RecordArrival(KindTimeIQ, Coord{Frame: 0, Symbol: 0, Unit: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.ReceivedAllTimeIQPkts(0, 0) {
		t.Fatal("expected not ready after only 1 of 2 antennas")
	}
	if err := tr.RecordArrival(KindTimeIQ, Coord{Frame: 0, Symbol: 0, Unit: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.ReceivedAllTimeIQPkts(0, 0) {
		t.Fatal("expected ready after both antennas arrived")
	}
}

func TestDuplicateArrivalIsNonFatalAndCounted(t *testing.T) {
	cfg := smallConfig()
	tr := New(cfg, NumSCBlocks(cfg.LocalSC, cfg.DemulBlock))

	c := Coord{Frame: 0, Symbol: 0, Unit: 0}
	if err := tr.RecordArrival(KindTimeIQ, c); err != nil {
		t.Fatalf("first arrival should succeed: %v", err)
	}
	err := tr.RecordArrival(KindTimeIQ, c)
	if !errors.Is(err, agoraerr.ErrDuplicateArrival) {
		t.Fatalf("expected ErrDuplicateArrival, got %v", err)
	}
	if agoraerr.IsFatal(err) {
		t.Fatal("duplicate arrival must not be fatal")
	}
	if tr.Duplicates() != 1 {
		t.Fatalf("expected 1 duplicate counted, got %d", tr.Duplicates())
	}
}

func TestSlotOverrunIsFatal(t *testing.T) {
	cfg := smallConfig()
	tr := New(cfg, NumSCBlocks(cfg.LocalSC, cfg.DemulBlock))

	// Claim slot 0 for frame 0.
	if err := tr.RecordArrival(KindTimeIQ, Coord{Frame: 0, Symbol: 0, Unit: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Frame FrameWindow also maps to slot 0, but slot 0 hasn't drained.
	err := tr.RecordArrival(KindTimeIQ, Coord{Frame: cfg.FrameWindow, Symbol: 0, Unit: 0})
	if !errors.Is(err, agoraerr.ErrSlotOverrun) {
		t.Fatalf("expected ErrSlotOverrun, got %v", err)
	}
	if !agoraerr.IsFatal(err) {
		t.Fatal("slot overrun must be fatal")
	}
}

func TestAdvanceFrameCompleteRecyclesSlot(t *testing.T) {
	cfg := smallConfig()
	tr := New(cfg, NumSCBlocks(cfg.LocalSC, cfg.DemulBlock))

	for sym := uint16(0); sym < uint16(cfg.SymbolNum); sym++ {
		for ant := uint32(0); ant < cfg.TotalAntennas; ant++ {
			if err := tr.RecordArrival(KindFreqIQ, Coord{Frame: 0, Symbol: sym, Unit: ant}); err != nil {
				t.Fatalf("freq-iq arrival: %v", err)
			}
		}
	}
	if err := tr.RecordProduction(KindZF, Coord{Frame: 0, Symbol: 0, Unit: 0}); err != nil {
		t.Fatalf("zf production: %v", err)
	}

	dataSymbols := cfg.SymbolNum - cfg.ULPilotSyms
	var lastCompleted bool
	for symOffset := uint32(0); symOffset < dataSymbols; symOffset++ {
		for ue := uint32(0); ue < cfg.LocalUEs; ue++ {
			justCompleted, err := tr.RecordDecodeProduction(Coord{Frame: 0, Unit: tr.PackDecodeUnit(symOffset, ue)})
			if err != nil {
				t.Fatalf("decode production: %v", err)
			}
			lastCompleted = justCompleted
		}
	}
	if !lastCompleted {
		t.Fatal("expected the final decode production to report the barrier complete")
	}

	if err := tr.AdvanceFrameComplete(0); err != nil {
		t.Fatalf("advance_frame_complete: %v", err)
	}
	if tr.CurrentFrame() != 1 {
		t.Fatalf("expected current frame 1, got %d", tr.CurrentFrame())
	}

	// Slot is now free for frame FrameWindow.
	if err := tr.RecordArrival(KindTimeIQ, Coord{Frame: cfg.FrameWindow, Symbol: 0, Unit: 0}); err != nil {
		t.Fatalf("expected slot reuse to succeed, got %v", err)
	}
}

func TestAdvanceFrameCompleteRejectsIncompleteFrame(t *testing.T) {
	cfg := smallConfig()
	tr := New(cfg, NumSCBlocks(cfg.LocalSC, cfg.DemulBlock))

	if err := tr.RecordArrival(KindTimeIQ, Coord{Frame: 0, Symbol: 0, Unit: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.AdvanceFrameComplete(0); err == nil {
		t.Fatal("expected error advancing an incomplete frame")
	}
}

// TestDecodeBarrierOnlyFinalProductionCompletes simulates decode workers
// racing a frame's (data-symbol, local UE) pairs in an arbitrary order —
// one worker could easily still be on data symbol 0 while another has
// already finished symbol 1 — and checks that exactly one
// RecordDecodeProduction call observes the barrier complete, regardless
// of which (symbol, UE) pair it happens to be, not just the syntactic
// last pair.
func TestDecodeBarrierOnlyFinalProductionCompletes(t *testing.T) {
	cfg := smallConfig()
	tr := New(cfg, NumSCBlocks(cfg.LocalSC, cfg.DemulBlock))

	dataSymbols := cfg.SymbolNum - cfg.ULPilotSyms
	total := dataSymbols * cfg.LocalUEs

	// Visit every (symOffset, ue) pair out of order: UE 1 of the later
	// data symbol before UE 0 of the earlier one.
	order := make([]Coord, 0, total)
	for ue := cfg.LocalUEs; ue > 0; ue-- {
		for symOffset := dataSymbols; symOffset > 0; symOffset-- {
			order = append(order, Coord{Frame: 0, Unit: tr.PackDecodeUnit(symOffset-1, ue-1)})
		}
	}

	completions := 0
	for i, c := range order {
		justCompleted, err := tr.RecordDecodeProduction(c)
		if err != nil {
			t.Fatalf("production %d: %v", i, err)
		}
		if justCompleted {
			completions++
			if i != len(order)-1 {
				t.Fatalf("barrier completed early at production %d of %d", i, len(order))
			}
		}
	}
	if completions != 1 {
		t.Fatalf("expected exactly 1 completion signal, got %d", completions)
	}
}

func TestNumSCBlocksBoundary(t *testing.T) {
	cases := []struct{ sc, block, want uint32 }{
		{1201, 4, 301},
		{1200, 300, 4},
		{4, 100, 1}, // block larger than shard: one block spans it
		{0, 4, 0},
	}
	for _, c := range cases {
		if got := NumSCBlocks(c.sc, c.block); got != c.want {
			t.Errorf("NumSCBlocks(%d,%d) = %d, want %d", c.sc, c.block, got, c.want)
		}
	}
}
