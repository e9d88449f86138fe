package lifecycle

import (
	"context"

	"github.com/bohrm1/agora/internal/affinity"
	"github.com/bohrm1/agora/internal/ioplane"
	"github.com/bohrm1/agora/internal/shardmap"
	"github.com/bohrm1/agora/internal/worker"
)

// pilotSeq is the known reference pilot symbol every ZF worker
// correlates against for channel estimation. The cluster shard map and
// config table carry no pilot-sequence option, so this is fixed rather
// than configurable, matching a single well-known pilot tone.
const pilotSeq = complex64(1 + 0i)

func (c *Controller) affinityPlan() affinity.Plan {
	return affinity.Plan{
		CoreOffset:        c.cfg.CoreOffset,
		UseHyperthreading: c.cfg.UseHyperthreading,
		PhyCoreNum:        c.cfg.PhyCoreNum,
	}
}

// spawnIO starts the RX and TX goroutines over the shared socket.
func (c *Controller) spawnIO() {
	plan := c.affinityPlan()
	demux := &worker.ArenaDemuxer{Dims: c.dims, Edges: c.edges}

	for i := 0; i < maxInt(c.cfg.RXThreadNum, 1); i++ {
		st := c.newStat("rx")
		core := plan.CoreForSlot(i)
		c.runAffinity(core, func() error {
			return ioplane.RunRX(context.Background(), c.sock, demux, c.tr, c.log, st, c.running)
		})
	}

	src := worker.MirrorSet{FreqIQ: c.freqMirror, Demod: c.demodMirror}
	for i := 0; i < maxInt(c.cfg.TXThreadNum, 1); i++ {
		st := c.newStat("tx")
		core := plan.CoreForSlot(c.cfg.RXThreadNum + i)
		c.runAffinity(core, func() error {
			return ioplane.RunTX(context.Background(), c.sock, c.txQueue, c.addrBook, src, c.log, st, c.running)
		})
	}
}

// spawnWorkers starts the four stage-worker pools, each partitioning its
// owned axis evenly across its configured worker count.
func (c *Controller) spawnWorkers() {
	plan := c.affinityPlan()

	numFFT := maxInt(c.dims.NumFFTWorkers, 0)
	for i := 0; i < numFFT; i++ {
		w := &worker.FFTWorker{
			ID:       i,
			Antennas: shardmap.EvenSplit(i, numFFT, c.dims.LocalAntennas),
			Dims:     c.dims,
			Edges:    c.edges,
			Mirror:   c.freqMirror,
			TX:       c.txQueue,
			Tracker:  c.tr,
			Stats:    c.newStat("fft"),
			Running:  c.running,
		}
		core := plan.CoreForSlot(c.cfg.FFTThreadOffset + i)
		c.runAffinity(core, w.Run)
	}

	numZF := maxInt(c.dims.NumZFWorkers, 0)
	zfShards := make([]shardmap.Range, numZF)
	for i := 0; i < numZF; i++ {
		zfShards[i] = shardmap.EvenSplit(i, numZF, c.dims.LocalSC)
		w := &worker.ZFWorker{
			ID:          i,
			Subcarriers: zfShards[i],
			Dims:        c.dims,
			Edges:       c.edges,
			Tracker:     c.tr,
			Stats:       c.newStat("zf"),
			Running:     c.running,
			PilotSeq:    pilotSeq,
		}
		core := plan.CoreForSlot(c.cfg.ZFThreadOffset + i)
		c.runAffinity(core, w.Run)
	}

	// Demul workers are paired 1:1 by id with ZF workers and must share
	// the identical subcarrier shard so a Demul worker always finds its
	// ZF matrices at its own id's ZF arena cell.
	numDemul := maxInt(c.dims.NumDemulWorkers, 0)
	for i := 0; i < numDemul; i++ {
		shard := shardmap.EvenSplit(i, numDemul, c.dims.LocalSC)
		if i < len(zfShards) {
			shard = zfShards[i]
		}
		w := &worker.DemulWorker{
			ID:          i,
			Subcarriers: shard,
			Dims:        c.dims,
			Edges:       c.edges,
			DemodMirror: c.demodMirror,
			TX:          c.txQueue,
			Tracker:     c.tr,
			Stats:       c.newStat("demul"),
			Running:     c.running,
		}
		core := plan.CoreForSlot(c.cfg.DemulThreadOffset + i)
		c.runAffinity(core, w.Run)
	}

	numDecode := maxInt(c.dims.NumDecodeWorkers, 0)
	for i := 0; i < numDecode; i++ {
		w := &worker.DecodeWorker{
			ID:              i,
			NumDemulWorkers: numDemul,
			Dims:            c.dims,
			Edges:           c.edges,
			Tracker:         c.tr,
			Stats:           c.newStat("decode"),
			Running:         c.running,
		}
		core := plan.CoreForSlot(c.cfg.DecodeThreadOffset + i)
		c.runAffinity(core, w.Run)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
