package worker

import (
	"sync/atomic"
	"time"

	"github.com/bohrm1/agora/internal/cpupoll"
	"github.com/bohrm1/agora/internal/dsp"
	"github.com/bohrm1/agora/internal/shardmap"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/tracker"
)

// simpleHash is a Knuth multiplicative hash, used to rotate the order in
// which a ZF worker visits its subcarrier shard each frame, mirroring
// the reference's per-frame hash offset. Every subcarrier in the shard
// still gets a fresh zero-forcing matrix every frame; only the visiting
// order rotates, so channel-estimate cost is not actually spread across
// frames the way the reference's own per-frame subsampling does (see
// the grounding notes for this tradeoff).
func simpleHash(x uint32) uint32 { return x * 2654435761 }

// ZFWorker owns a contiguous shard of the local subcarrier range and, on
// every frame whose pilots are complete, estimates the channel and
// computes the zero-forcing matrix for every subcarrier in its shard,
// starting each frame at a simpleHash-rotated position. The shard is not
// subsampled: no subcarrier is skipped in any frame.
type ZFWorker struct {
	ID           int
	Subcarriers  shardmap.Range // local subcarrier indices this worker owns
	Dims         Dimensions
	Edges        *Edges
	Tracker      *tracker.Tracker
	Stats        *stats.ThreadStats
	Running      *atomic.Bool
	PilotSeq     complex64

	frame uint32
}

func (w *ZFWorker) Run() error {
	bo := cpupoll.NewDefault()
	for w.Running.Load() {
		if w.frame >= w.Dims.FramesToTest {
			return nil
		}
		trackerStart := time.Now()
		ready := w.Tracker.ReceivedAllPilotPkts(w.frame)
		w.Stats.AddTracker(time.Since(trackerStart))
		if !ready {
			idleStart := time.Now()
			bo.Idle()
			w.Stats.AddIdle(time.Since(idleStart))
			continue
		}
		bo.Reset()
		start := time.Now()
		if err := w.processFrame(); err != nil {
			return err
		}
		w.Stats.AddWork(time.Since(start))
		w.frame++
	}
	return nil
}

func (w *ZFWorker) processFrame() error {
	slot := int(w.frame % w.Dims.FrameWindow)
	n := w.Subcarriers.Len()
	if n == 0 {
		return w.publish()
	}
	rotation := simpleHash(w.frame) % n

	for i := uint32(0); i < n; i++ {
		localSC := w.Subcarriers.Lo + (rotation+i)%n

		csi := w.estimateCSI(slot, localSC)
		zf, err := dsp.ZeroForcing(csi)
		if err != nil {
			return err
		}
		dst := w.Edges.ZF.CellView(slot, 0, w.ID)
		base := int(localSC-w.Subcarriers.Lo) * int(w.Dims.TotalUEs*w.Dims.TotalAntennas)
		for r := 0; r < zf.Rows; r++ {
			for c := 0; c < zf.Cols; c++ {
				idx := base + r*zf.Cols + c
				if idx < len(dst) {
					dst[idx] = complex64(zf.At(r, c))
				}
			}
		}
	}
	w.Stats.UnitsProcessed += uint64(n)
	return w.publish()
}

func (w *ZFWorker) publish() error {
	return w.Tracker.RecordProduction(tracker.KindZF, tracker.Coord{Frame: w.frame, Unit: uint32(w.ID)})
}

func (w *ZFWorker) estimateCSI(slot int, localSC uint32) dsp.Matrix {
	globalSC := w.Dims.GlobalSCOffset + localSC
	_ = globalSC // addressing note: CSI is computed purely from this server's own FreqIQ pilot cells, already indexed local-shard-relative.

	pilotFFT := make([][]complex64, w.Dims.ULPilotSyms)
	for sym := uint32(0); sym < w.Dims.ULPilotSyms; sym++ {
		row := make([]complex64, w.Dims.TotalAntennas)
		for ant := uint32(0); ant < w.Dims.TotalAntennas; ant++ {
			cell := w.Edges.FreqIQ.CellView(slot, int(sym), int(ant))
			row[ant] = cell[localSC]
		}
		pilotFFT[sym] = row
	}
	ueCount := int(w.Dims.ULPilotSyms)
	if ueCount > int(w.Dims.TotalUEs) {
		ueCount = int(w.Dims.TotalUEs)
	}
	return dsp.EstimateCSI(pilotFFT, w.PilotSeq, ueCount, int(w.Dims.TotalAntennas))
}
