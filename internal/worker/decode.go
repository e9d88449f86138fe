package worker

import (
	"sync/atomic"
	"time"

	"github.com/bohrm1/agora/internal/cpupoll"
	"github.com/bohrm1/agora/internal/dsp"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/tracker"
)

// DecodeWorker does not own a contiguous shard of its stage's output
// space the way FFT/ZF/Demul do. Instead it strides the flat
// (data-symbol, local UE) index space by NumDemulWorkers, not by the
// decode pool's own size, so the UEs a given demul worker already holds
// in cache line up with the decode worker that consumes them without a
// shuffle. This is carried over unchanged from the reference's own
// partitioning and is a known surprise worth flagging to anyone reading
// the worker-count config: it only covers every pair exactly once when
// NumDecodeWorkersHere == NumDemulWorkersHere, since striding by demul
// count while varying decode worker id mod that same count aliases two
// decode workers onto the same pairs whenever the decode pool is larger.
type DecodeWorker struct {
	ID              int
	NumDemulWorkers int
	Dims            Dimensions
	Edges           *Edges
	Tracker         *tracker.Tracker
	Stats           *stats.ThreadStats
	Running         *atomic.Bool

	frame uint32
	sym   uint32
}

func (w *DecodeWorker) Run() error {
	w.sym = w.Dims.ULPilotSyms
	bo := cpupoll.NewDefault()
	for w.Running.Load() {
		if w.frame >= w.Dims.FramesToTest {
			return nil
		}
		trackerStart := time.Now()
		ready := w.Tracker.ReceivedAllDemodPkts(w.frame, uint16(w.sym))
		w.Stats.AddTracker(time.Since(trackerStart))
		if !ready {
			idleStart := time.Now()
			bo.Idle()
			w.Stats.AddIdle(time.Since(idleStart))
			continue
		}
		bo.Reset()
		start := time.Now()
		done, err := w.processSymbol()
		if err != nil {
			return err
		}
		w.Stats.AddWork(time.Since(start))
		if done {
			trackerStart := time.Now()
			err := w.Tracker.AdvanceFrameComplete(w.frame)
			w.Stats.AddTracker(time.Since(trackerStart))
			if err != nil {
				return err
			}
		}
		w.advance()
	}
	return nil
}

// stride is the denominator of the reference's worker-striping scheme:
// the number of demul workers on this server, never the decode pool's
// own size.
func (w *DecodeWorker) stride() int {
	if w.NumDemulWorkers <= 0 {
		return 1
	}
	return w.NumDemulWorkers
}

// processSymbol decodes every local UE this worker owns for the current
// symbol and reports whether this call observed the frame-wide decode
// barrier complete — i.e. whether the caller must retire the frame with
// AdvanceFrameComplete. Barrier ownership is decided by
// tracker.RecordDecodeProduction's edge-triggered count, not by which
// (symbol, UE) pair is syntactically last, so a worker still catching up
// on an earlier data symbol can never have the frame's slot recycled out
// from under it by a faster sibling.
func (w *DecodeWorker) processSymbol() (bool, error) {
	slot := int(w.frame % w.Dims.FrameWindow)
	symOffset := w.sym - w.Dims.ULPilotSyms

	numSCBlocks := w.Dims.NumSCBlocksHere()
	localUEs := w.Dims.LocalUEs
	frameDone := false

	for localUE := uint32(0); localUE < localUEs; localUE++ {
		flat := int(symOffset*localUEs + localUE)
		if flat%w.stride() != w.ID%w.stride() {
			continue
		}

		llrs := make([]LLRPair, 0, w.Dims.LocalSC)
		for block := uint32(0); block < numSCBlocks; block++ {
			col := int(localUE*numSCBlocks + block)
			lo := block * w.Dims.DemulBlock
			hi := lo + w.Dims.DemulBlock
			if hi > w.Dims.LocalSC {
				hi = w.Dims.LocalSC
			}
			if lo >= hi {
				continue
			}
			cell := w.Edges.Demod.CellView(slot, int(w.sym), col)
			llrs = append(llrs, cell[:hi-lo]...)
		}

		bits := dsp.DecodeQPSKLLRs(llrs)
		dst := w.Edges.Decoded.CellView(slot, int(w.sym), int(localUE))
		copy(dst, bits)
		w.Stats.UnitsProcessed++

		justCompleted, err := w.Tracker.RecordDecodeProduction(tracker.Coord{
			Frame: w.frame,
			Unit:  w.Tracker.PackDecodeUnit(symOffset, localUE),
		})
		if err != nil {
			return false, err
		}
		if justCompleted {
			frameDone = true
		}
	}

	if localUEs == 0 {
		// No local UE ever reaches RecordDecodeProduction, so the barrier
		// can never edge-trigger on its own; the frame still needs
		// retiring on this server (for the antenna/subcarrier shards'
		// slot bookkeeping), so worker 0 alone drives it on the frame's
		// last data symbol.
		dataSymbols := w.Dims.SymbolNum - w.Dims.ULPilotSyms
		lastSym := dataSymbols == 0 || symOffset == dataSymbols-1
		frameDone = w.ID == 0 && lastSym
	}
	return frameDone, nil
}

func (w *DecodeWorker) advance() {
	w.sym++
	if w.sym >= w.Dims.SymbolNum {
		w.sym = w.Dims.ULPilotSyms
		w.frame++
	}
}
