package worker

import (
	"github.com/bohrm1/agora/internal/buffers"
)

// LLRPair is one QPSK symbol's soft decision: in-phase and quadrature
// bit LLRs.
type LLRPair = [2]float32

// Edges bundles the four typed shared-artifact arenas backing the
// pipeline's inter-stage edges: TimeIQ (RX -> FFT), FreqIQ (FFT -> ZF/
// Demul), ZF (ZF -> Demul), Demod (Demul -> Decode), plus the Decoded
// arena holding the Decode stage's terminal output. Each is allocated
// once at startup from Dimensions and never reallocated; addressing is
// pure index arithmetic.
type Edges struct {
	// TimeIQ: (slot, symbol, local antenna) -> TotalSC raw time-domain
	// samples for that antenna's OFDM symbol ("C_all" in the wire model).
	TimeIQ *buffers.Arena[complex64]

	// FreqIQ: (slot, symbol, global antenna) -> this server's
	// subcarrier-shard slice of that antenna's FFT output.
	FreqIQ *buffers.Arena[complex64]

	// ZF: (slot, 0, zf-worker-id) -> that worker's shard of U x A
	// zero-forcing matrices, one (U x A) block per subcarrier it owns,
	// flattened row-major and concatenated by subcarrier.
	ZF *buffers.Arena[complex64]

	// Demod: (slot, symbol, PackDemodUnit(localUE, block)) -> DemulBlock
	// LLR pairs, one per subcarrier in the block.
	Demod *buffers.Arena[LLRPair]

	// Decoded: (slot, symbol, local UE) -> up to LocalSC*2 hard bits,
	// the terminal output of the Decode stage.
	Decoded *buffers.Arena[byte]

	MaxSCPerZFWorker uint32
}

// NewEdges allocates the five arenas sized from d. It panics (via
// buffers.New) if any computed dimension is non-positive; callers should
// validate the configuration (shardmap.Validate, NumZFWorkers > 0, etc.)
// before reaching Init.
func NewEdges(d Dimensions) *Edges {
	maxSCPerZF := uint32(1)
	if d.NumZFWorkers > 0 {
		maxSCPerZF = (d.LocalSC + uint32(d.NumZFWorkers) - 1) / uint32(d.NumZFWorkers)
		if maxSCPerZF == 0 {
			maxSCPerZF = 1
		}
	}

	numSCBlocks := d.NumSCBlocksHere()
	demodCols := d.LocalUEs * numSCBlocks
	if demodCols == 0 {
		demodCols = 1
	}
	decodedWidth := int(d.LocalSC) * 2
	if decodedWidth == 0 {
		decodedWidth = 1
	}
	decodedUEs := maxInt(int(d.LocalUEs), 1)

	return &Edges{
		TimeIQ: buffers.New[complex64](int(d.FrameWindow), int(d.SymbolNum), int(d.LocalAntennas), int(d.TotalSC)),
		FreqIQ: buffers.New[complex64](int(d.FrameWindow), int(d.SymbolNum), int(d.TotalAntennas), int(d.LocalSC)),
		ZF: buffers.New[complex64](int(d.FrameWindow), 1, maxInt(d.NumZFWorkers, 1),
			int(maxSCPerZF*d.TotalUEs*d.TotalAntennas)),
		Demod:            buffers.New[LLRPair](int(d.FrameWindow), int(d.SymbolNum), int(demodCols), int(d.DemulBlock)),
		Decoded:          buffers.New[byte](int(d.FrameWindow), int(d.SymbolNum), decodedUEs, decodedWidth),
		MaxSCPerZFWorker: maxSCPerZF,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
