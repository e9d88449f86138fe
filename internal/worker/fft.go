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

// FFTWorker owns a contiguous shard of the local antenna range and, for
// every (frame, symbol) whose time-IQ is complete, forward-FFTs each of
// its antennas' time-domain samples and publishes this server's
// subcarrier-shard slice into FreqIQ.
type FFTWorker struct {
	ID       int
	Antennas shardmap.Range // local antenna indices this worker owns
	Dims     Dimensions
	Edges    *Edges
	Mirror   *Mirror          // optional; nil when this server has no peers to ship to
	TX       *ioplane.TXQueue // optional; nil when this server has no peers to ship to
	Tracker  *tracker.Tracker
	Stats    *stats.ThreadStats
	Running  *atomic.Bool

	frame uint32
	sym   uint32
}

// Run executes the cooperative polling loop until Running is cleared or
// FramesToTest frames have been produced.
func (w *FFTWorker) Run() error {
	bo := cpupoll.NewDefault()
	for w.Running.Load() {
		if w.frame >= w.Dims.FramesToTest {
			return nil
		}
		trackerStart := time.Now()
		ready := w.Tracker.ReceivedAllTimeIQPkts(w.frame, uint16(w.sym))
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

func (w *FFTWorker) processSymbol() error {
	slot := int(w.frame % w.Dims.FrameWindow)
	for ant := w.Antennas.Lo; ant < w.Antennas.Hi; ant++ {
		timeSamples := w.Edges.TimeIQ.CellView(slot, int(w.sym), int(ant))
		freq := dsp.FFT(timeSamples)

		globalAnt := w.Dims.GlobalAntOffset + ant
		localShard := freq[w.Dims.GlobalSCOffset : w.Dims.GlobalSCOffset+w.Dims.LocalSC]
		dst := w.Edges.FreqIQ.CellView(slot, int(w.sym), int(globalAnt))
		copy(dst, localShard)

		if w.Mirror != nil {
			w.Mirror.PutComplex64(w.frame, int(w.sym), int(globalAnt), freq)
			w.enqueueToPeers(globalAnt)
		}

		if err := w.Tracker.RecordProduction(tracker.KindFreqIQ, tracker.Coord{
			Frame: w.frame, Symbol: uint16(w.sym), Unit: globalAnt,
		}); err != nil {
			return err
		}
		w.Stats.UnitsProcessed++
	}
	return nil
}

// enqueueToPeers hands one OutboundPacket per remote peer to the TX
// queue, one per peer's subcarrier shard of globalAnt's freq-IQ output.
// A full queue is a drop, not a fatal error: the tracker's duplicate/
// overrun machinery is the fatal backstop, not the hand-off queue.
func (w *FFTWorker) enqueueToPeers(globalAnt uint32) {
	if w.TX == nil {
		return
	}
	for _, peer := range w.Dims.ShardMap.Servers {
		if peer.ServerID == w.Dims.SelfServer || peer.Subcarriers.Len() == 0 {
			continue
		}
		pkt := wire.OutboundPacket{
			Header: wire.Header{
				Kind:            wire.KindFreqIQ,
				Frame:           w.frame,
				Symbol:          uint16(w.sym),
				AntennaOrUE:     uint16(globalAnt),
				SubcarrierStart: uint16(peer.Subcarriers.Lo),
				SubcarrierLen:   uint16(peer.Subcarriers.Len()),
				SourceServer:    w.Dims.SelfServer,
			},
			Dest: peer.ServerID,
		}
		if err := w.TX.Enqueue(&pkt); err != nil {
			w.Stats.Drops++
		}
	}
}

func (w *FFTWorker) advance() {
	w.sym++
	if w.sym >= w.Dims.SymbolNum {
		w.sym = 0
		w.frame++
	}
}
