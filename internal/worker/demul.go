package worker

import (
	"sync/atomic"
	"time"

	"github.com/bohrm1/agora/internal/cpupoll"
	"github.com/bohrm1/agora/internal/dsp"
	"github.com/bohrm1/agora/internal/ioplane"
	"github.com/bohrm1/agora/internal/shardmap"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/tracker"
	"github.com/bohrm1/agora/internal/wire"
)

// DemulWorker owns a contiguous shard of the local subcarrier range,
// identical to its paired ZFWorker's shard (this implementation assumes
// NumZFWorkersHere == NumDemulWorkersHere and pairs them 1:1 by id, so a
// Demul worker always finds its ZF matrices in the ZF arena cell its
// own ID addresses). On every uplink-data symbol whose ZF and freq-IQ
// are both complete, it equalizes and demodulates every subcarrier in
// its shard for every user. DemulBlockSize must evenly divide the
// worker's subcarrier shard width; a block straddling two workers'
// shards is not supported.
type DemulWorker struct {
	ID          int
	Subcarriers shardmap.Range // must equal the paired ZFWorker's Subcarriers
	Dims        Dimensions
	Edges       *Edges
	DemodMirror *Mirror          // optional; nil when this server has no peers to ship demod to
	TX          *ioplane.TXQueue // optional; nil when this server has no peers to ship demod to
	Tracker     *tracker.Tracker
	Stats       *stats.ThreadStats
	Running     *atomic.Bool

	frame uint32
	sym   uint32
}

func (w *DemulWorker) Run() error {
	w.sym = w.Dims.ULPilotSyms
	bo := cpupoll.NewDefault()
	for w.Running.Load() {
		if w.frame >= w.Dims.FramesToTest {
			return nil
		}
		trackerStart := time.Now()
		ready := w.Tracker.ReceivedAllZFPkts(w.frame) && w.Tracker.ReceivedAllULDataPkts(w.frame, uint16(w.sym))
		w.Stats.AddTracker(time.Since(trackerStart))
		if !ready {
			idleStart := time.Now()
			bo.Idle()
			w.Stats.AddIdle(time.Since(idleStart))
			continue
		}
		bo.Reset()
		start := time.Now()
		if err := w.processSymbol(); err != nil {
			return err
		}
		w.Stats.AddWork(time.Since(start))
		w.advance()
	}
	return nil
}

func (w *DemulWorker) processSymbol() error {
	slot := int(w.frame % w.Dims.FrameWindow)
	blockProduced := make(map[int]bool)

	for localSC := w.Subcarriers.Lo; localSC < w.Subcarriers.Hi; localSC++ {
		zfCell := w.Edges.ZF.CellView(slot, 0, w.ID)
		base := int(localSC-w.Subcarriers.Lo) * int(w.Dims.TotalUEs*w.Dims.TotalAntennas)
		zfMat := dsp.NewMatrix(int(w.Dims.TotalUEs), int(w.Dims.TotalAntennas))
		for r := 0; r < zfMat.Rows; r++ {
			for c := 0; c < zfMat.Cols; c++ {
				idx := base + r*zfMat.Cols + c
				if idx < len(zfCell) {
					zfMat.Set(r, c, complex128(zfCell[idx]))
				}
			}
		}

		y := make([]complex64, w.Dims.TotalAntennas)
		for ant := uint32(0); ant < w.Dims.TotalAntennas; ant++ {
			cell := w.Edges.FreqIQ.CellView(slot, int(w.sym), int(ant))
			y[ant] = cell[localSC]
		}
		xhat := dsp.Equalize(zfMat, y)

		blockIdx := int(localSC / w.Dims.DemulBlock)
		pos := int(localSC % w.Dims.DemulBlock)

		for ue := uint32(0); ue < w.Dims.TotalUEs && int(ue) < len(xhat); ue++ {
			llr := dsp.DemodulateQPSKLLR(xhat[ue])

			if ue >= w.Dims.GlobalUEOffset && ue < w.Dims.GlobalUEOffset+w.Dims.LocalUEs {
				localUE := ue - w.Dims.GlobalUEOffset
				col := int(localUE*w.Dims.NumSCBlocksHere()) + blockIdx
				dst := w.Edges.Demod.CellView(slot, int(w.sym), col)
				if pos < len(dst) {
					dst[pos] = llr
				}
				if pos == int(w.Dims.DemulBlock)-1 {
					blockProduced[col] = true
				}
			} else if w.DemodMirror != nil {
				globalSC := int(w.Dims.GlobalSCOffset) + int(localSC)
				w.DemodMirror.PutComplex64At(w.frame, int(w.sym), int(ue), globalSC, []complex64{complex(llr[0], llr[1])})
				if pos == int(w.Dims.DemulBlock)-1 {
					w.enqueueBlockToOwner(ue, uint32(blockIdx))
				}
			}
		}
		w.Stats.UnitsProcessed++
	}

	for col := range blockProduced {
		if err := w.Tracker.RecordProduction(tracker.KindDemod, tracker.Coord{
			Frame: w.frame, Symbol: uint16(w.sym), Unit: uint32(col),
		}); err != nil {
			return err
		}
	}
	return nil
}

// enqueueBlockToOwner hands the TX queue one OutboundPacket for the
// just-completed (ue, blockIdx) LLR chunk, addressed to whichever server
// owns ue's decode work. A missing owner or a full queue is a drop, not
// fatal.
func (w *DemulWorker) enqueueBlockToOwner(ue uint32, blockIdx uint32) {
	if w.TX == nil {
		return
	}
	owner, ok := w.Dims.ShardMap.OwnerOfUE(ue)
	if !ok {
		w.Stats.Drops++
		return
	}
	pkt := wire.OutboundPacket{
		Header: wire.Header{
			Kind:            wire.KindDemod,
			Frame:           w.frame,
			Symbol:          uint16(w.sym),
			AntennaOrUE:     uint16(ue),
			SubcarrierStart: uint16(w.Dims.GlobalSCOffset + blockIdx*w.Dims.DemulBlock),
			SubcarrierLen:   uint16(w.Dims.DemulBlock),
			SourceServer:    w.Dims.SelfServer,
		},
		Dest: owner,
	}
	if err := w.TX.Enqueue(&pkt); err != nil {
		w.Stats.Drops++
	}
}

func (w *DemulWorker) advance() {
	w.sym++
	if w.sym >= w.Dims.SymbolNum {
		w.sym = w.Dims.ULPilotSyms
		w.frame++
	}
}
