// Package worker implements the four stage-worker pools (FFT, ZF, Demul,
// Decode): cooperatively-polling, core-pinned loops that each own a
// disjoint shard of a stage's output space and advance only when the
// tracker reports their input ready.
package worker

import (
	"fmt"

	"github.com/bohrm1/agora/internal/config"
	"github.com/bohrm1/agora/internal/shardmap"
)

// Dimensions is the resolved, server-local view of the cluster
// configuration every stage worker needs: sizes, shard offsets, and the
// worker-pool counts, derived once at Init from config.Config and this
// server's shardmap.ServerShard.
type Dimensions struct {
	FrameWindow  uint32
	SymbolNum    uint32
	ULPilotSyms  uint32
	DemulBlock   uint32
	FramesToTest uint32

	TotalAntennas uint32
	TotalSC       uint32
	TotalUEs      uint32

	SelfServer uint16
	ShardMap   shardmap.Map

	// LocalAntennas/LocalSC/LocalUEs are this server's shard widths;
	// GlobalAntOffset/GlobalSCOffset/GlobalUEOffset translate a local
	// index into the cluster-wide axis.
	LocalAntennas    uint32
	GlobalAntOffset  uint32
	LocalSC          uint32
	GlobalSCOffset   uint32
	LocalUEs         uint32
	GlobalUEOffset   uint32

	NumFFTWorkers    int
	NumZFWorkers     int
	NumDemulWorkers  int
	NumDecodeWorkers int
}

// NewDimensions resolves cfg and the shardmap entry for selfServer into a
// Dimensions. It fails if selfServer has no shard map entry.
func NewDimensions(cfg config.Config, selfServer uint16) (Dimensions, error) {
	shard, ok := cfg.ShardMap.ByServer(selfServer)
	if !ok {
		return Dimensions{}, fmt.Errorf("worker: no shard map entry for server %d", selfServer)
	}
	return Dimensions{
		FrameWindow:  cfg.FrameWindow,
		SymbolNum:    cfg.SymbolNumPerFrame,
		ULPilotSyms:  cfg.ULPilotSyms,
		DemulBlock:   cfg.DemulBlockSize,
		FramesToTest: cfg.FramesToTest,

		TotalAntennas: cfg.BSAntNum,
		TotalSC:       cfg.OFDMDataNum,
		TotalUEs:      cfg.UENum,

		SelfServer: selfServer,
		ShardMap:   cfg.ShardMap,

		LocalAntennas:   shard.Antennas.Len(),
		GlobalAntOffset: shard.Antennas.Lo,
		LocalSC:         shard.Subcarriers.Len(),
		GlobalSCOffset:  shard.Subcarriers.Lo,
		LocalUEs:        shard.UEs.Len(),
		GlobalUEOffset:  shard.UEs.Lo,

		NumFFTWorkers:    cfg.NumFFTWorkersHere(),
		NumZFWorkers:     cfg.NumZFWorkersHere(),
		NumDemulWorkers:  cfg.NumDemulWorkersHere(),
		NumDecodeWorkers: cfg.NumDecodeWorkersHere(),
	}, nil
}

// NumSCBlocksHere is the number of demul-production blocks this server's
// subcarrier shard yields at the configured block granularity.
func (d Dimensions) NumSCBlocksHere() uint32 {
	return numSCBlocks(d.LocalSC, d.DemulBlock)
}

func numSCBlocks(scCount, blockSize uint32) uint32 {
	if blockSize == 0 {
		blockSize = 1
	}
	if scCount == 0 {
		return 0
	}
	return (scCount + blockSize - 1) / blockSize
}
