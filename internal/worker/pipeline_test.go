package worker

import (
	"sync/atomic"
	"testing"

	"github.com/bohrm1/agora/internal/dsp"
	"github.com/bohrm1/agora/internal/shardmap"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/tracker"
)

// TestPipelineRoundTripLaw drives FFT, ZF, Demul and Decode workers
// directly (bypassing Run's polling loops and the I/O plane) over a
// single server with a known, noise-free, frequency-flat channel and
// checks the bits each UE transmitted on each data symbol come back out
// of Decode unchanged.
//
// The channel gains are genuinely complex (phase-rotating), not just
// real-valued, so the round trip only passes if ZeroForcing recovers the
// true channel rather than its conjugate.
func TestPipelineRoundTripLaw(t *testing.T) {
	const (
		numAnt     = 4
		numSC      = 8
		numUE      = 2
		ulPilot    = 2
		symbolNum  = 4 // 2 pilot + 2 data
		frameWin   = 3
		demulBlock = 4
		numWorkers   = 2 // NumZFWorkers == NumDemulWorkers == NumDecodeWorkers
		framesToTest = 2
	)

	// H[ant][ue]: complex, phase-rotating per-antenna-per-UE channel gain,
	// constant across every subcarrier (frequency-flat) and every frame.
	H := [numAnt][numUE]complex64{
		{1 + 1i, 0.2 - 0.3i},
		{-0.4 + 0.6i, 1 - 1i},
		{0.5 + 0.5i, 0.5 - 0.5i},
		{1 - 1i, -1 + 1i},
	}
	pilotSeq := complex64(1 + 0i)

	// Bits each UE transmits on each of the 2 data symbols, same 2 bits
	// on every subcarrier (a frequency-flat transmission, matching the
	// flat channel above, keeps the synthetic scenario exact without
	// needing a real IDFT).
	txBits := [2][numUE][2]byte{
		{{0, 1}, {1, 0}},
		{{0, 0}, {1, 1}},
	}

	dims := Dimensions{
		FrameWindow:  frameWin,
		SymbolNum:    symbolNum,
		ULPilotSyms:  ulPilot,
		DemulBlock:   demulBlock,
		FramesToTest: framesToTest,

		TotalAntennas: numAnt,
		TotalSC:       numSC,
		TotalUEs:      numUE,

		SelfServer: 0,
		ShardMap: shardmap.Map{Servers: []shardmap.ServerShard{{
			ServerID:    0,
			Antennas:    shardmap.Range{Lo: 0, Hi: numAnt},
			Subcarriers: shardmap.Range{Lo: 0, Hi: numSC},
			UEs:         shardmap.Range{Lo: 0, Hi: numUE},
		}}},

		LocalAntennas:   numAnt,
		GlobalAntOffset: 0,
		LocalSC:         numSC,
		GlobalSCOffset:  0,
		LocalUEs:        numUE,
		GlobalUEOffset:  0,

		NumFFTWorkers:    numWorkers,
		NumZFWorkers:     numWorkers,
		NumDemulWorkers:  numWorkers,
		NumDecodeWorkers: numWorkers,
	}

	edges := NewEdges(dims)
	trCfg := tracker.Config{
		FrameWindow:   dims.FrameWindow,
		SymbolNum:     dims.SymbolNum,
		ULPilotSyms:   dims.ULPilotSyms,
		DemulBlock:    dims.DemulBlock,
		LocalAntennas: dims.LocalAntennas,
		TotalAntennas: dims.TotalAntennas,
		LocalSC:       dims.LocalSC,
		LocalUEs:      dims.LocalUEs,
		NumZFWorkers:  uint32(dims.NumZFWorkers),
	}
	tr := tracker.New(trCfg, dims.NumSCBlocksHere())

	running := new(atomic.Bool)
	running.Store(true)

	fftWorkers := make([]*FFTWorker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		fftWorkers[i] = &FFTWorker{
			ID:       i,
			Antennas: shardmap.EvenSplit(i, numWorkers, dims.LocalAntennas),
			Dims:     dims,
			Edges:    edges,
			Tracker:  tr,
			Stats:    &stats.ThreadStats{},
			Running:  running,
		}
	}

	zfWorkers := make([]*ZFWorker, numWorkers)
	demulWorkers := make([]*DemulWorker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		shard := shardmap.EvenSplit(i, numWorkers, dims.LocalSC)
		zfWorkers[i] = &ZFWorker{
			ID:          i,
			Subcarriers: shard,
			Dims:        dims,
			Edges:       edges,
			Tracker:     tr,
			Stats:       &stats.ThreadStats{},
			Running:     running,
			PilotSeq:    pilotSeq,
		}
		demulWorkers[i] = &DemulWorker{
			ID:          i,
			Subcarriers: shard,
			Dims:        dims,
			Edges:       edges,
			Tracker:     tr,
			Stats:       &stats.ThreadStats{},
			Running:     running,
		}
	}

	decodeWorkers := make([]*DecodeWorker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		decodeWorkers[i] = &DecodeWorker{
			ID:              i,
			NumDemulWorkers: numWorkers,
			Dims:            dims,
			Edges:           edges,
			Tracker:         tr,
			Stats:           &stats.ThreadStats{},
			Running:         running,
		}
	}

	for frame := uint32(0); frame < framesToTest; frame++ {
		slot := int(frame % frameWin)

		// RX: seed TimeIQ with a flat-spectrum impulse (only sample 0
		// set) so FFT reproduces the desired frequency value on every
		// bin, then tell the tracker the packet arrived.
		for sym := uint32(0); sym < symbolNum; sym++ {
			for ant := uint32(0); ant < numAnt; ant++ {
				cell := edges.TimeIQ.CellView(slot, int(sym), int(ant))
				for i := range cell {
					cell[i] = 0
				}
				cell[0] = symbolValue(H, txBits, pilotSeq, ulPilot, sym, ant)

				if err := tr.RecordArrival(tracker.KindTimeIQ, tracker.Coord{
					Frame: frame, Symbol: uint16(sym), Unit: ant,
				}); err != nil {
					t.Fatalf("frame %d sym %d ant %d: RecordArrival(TimeIQ): %v", frame, sym, ant, err)
				}
			}

			for _, w := range fftWorkers {
				w.frame, w.sym = frame, sym
				if err := w.processSymbol(); err != nil {
					t.Fatalf("frame %d sym %d: FFTWorker.processSymbol: %v", frame, sym, err)
				}
			}
		}

		for _, w := range zfWorkers {
			w.frame = frame
			if err := w.processFrame(); err != nil {
				t.Fatalf("frame %d: ZFWorker.processFrame: %v", frame, err)
			}
		}

		for sym := ulPilot; sym < symbolNum; sym++ {
			for _, w := range demulWorkers {
				w.frame, w.sym = frame, uint32(sym)
				if err := w.processSymbol(); err != nil {
					t.Fatalf("frame %d sym %d: DemulWorker.processSymbol: %v", frame, sym, err)
				}
			}

			frameDone := false
			for _, w := range decodeWorkers {
				w.frame, w.sym = frame, uint32(sym)
				done, err := w.processSymbol()
				if err != nil {
					t.Fatalf("frame %d sym %d: DecodeWorker.processSymbol: %v", frame, sym, err)
				}
				if done {
					frameDone = true
				}
			}
			if sym == symbolNum-1 && !frameDone {
				t.Fatalf("frame %d: no decode worker reported completion on the last symbol", frame)
			}
		}

		if err := tr.AdvanceFrameComplete(frame); err != nil {
			t.Fatalf("frame %d: AdvanceFrameComplete: %v", frame, err)
		}

		for sym := ulPilot; sym < symbolNum; sym++ {
			dataIdx := sym - ulPilot
			for ue := uint32(0); ue < numUE; ue++ {
				want := repeatBits(txBits[dataIdx][ue], numSC)
				got := edges.Decoded.CellView(slot, sym, int(ue))
				if string(got) != string(want) {
					t.Fatalf("frame %d sym %d ue %d: decoded bits = %v, want %v", frame, sym, ue, got, want)
				}
			}
		}
	}

	if tr.CurrentFrame() != framesToTest {
		t.Fatalf("tracker.CurrentFrame() = %d, want %d", tr.CurrentFrame(), framesToTest)
	}
}

// symbolValue computes the per-antenna frequency-domain value this
// synthetic test's flat channel produces for (sym, ant): the pilot
// contribution on a UE's own pilot symbol, or the superposed data
// contribution of every UE on a data symbol.
func symbolValue(H [4][2]complex64, txBits [2][2][2]byte, pilotSeq complex64, ulPilot, sym, ant uint32) complex64 {
	if sym < ulPilot {
		ue := sym // pilot symbol i belongs to UE i
		return H[ant][ue] * pilotSeq
	}
	dataIdx := sym - ulPilot
	var acc complex64
	for ue := range txBits[dataIdx] {
		txSym := dsp.ModulateQPSK(txBits[dataIdx][ue][:])[0]
		acc += H[ant][ue] * txSym
	}
	return acc
}

func repeatBits(bits [2]byte, times int) []byte {
	out := make([]byte, 0, 2*times)
	for i := 0; i < times; i++ {
		out = append(out, bits[0], bits[1])
	}
	return out
}
