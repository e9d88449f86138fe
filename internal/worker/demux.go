package worker

import (
	"fmt"

	"github.com/bohrm1/agora/internal/agoraerr"
	"github.com/bohrm1/agora/internal/tracker"
	"github.com/bohrm1/agora/internal/wire"
)

// ArenaDemuxer implements ioplane.Demuxer by decoding an inbound
// packet's payload straight into this server's typed Edges arenas:
// time-IQ from the RRU, freq-IQ from peer servers' FFT output, and
// demod LLR chunks from peer servers' Demul output for locally-owned
// UEs. ZF never crosses the wire in this design — a server always runs
// its own ZF workers over its own subcarrier shard — so KindZF is
// rejected as agoraerr.ErrUnknownShard.
type ArenaDemuxer struct {
	Dims  Dimensions
	Edges *Edges
}

func (a *ArenaDemuxer) Deliver(h wire.Header, payload []byte) (tracker.Coord, error) {
	switch h.Kind {
	case wire.KindTimeIQ:
		return a.deliverTimeIQ(h, payload)
	case wire.KindFreqIQ:
		return a.deliverFreqIQ(h, payload)
	case wire.KindDemod:
		return a.deliverDemod(h, payload)
	default:
		return tracker.Coord{}, fmt.Errorf("%w: kind %s not deliverable over the wire", agoraerr.ErrUnknownShard, h.Kind)
	}
}

func (a *ArenaDemuxer) deliverTimeIQ(h wire.Header, payload []byte) (tracker.Coord, error) {
	if uint32(h.AntennaOrUE) < a.Dims.GlobalAntOffset || uint32(h.AntennaOrUE) >= a.Dims.GlobalAntOffset+a.Dims.LocalAntennas {
		return tracker.Coord{}, fmt.Errorf("%w: antenna %d not in this server's shard", agoraerr.ErrUnknownShard, h.AntennaOrUE)
	}
	localAnt := uint32(h.AntennaOrUE) - a.Dims.GlobalAntOffset
	samples := wire.DecodeComplex64(payload)
	slot := int(h.Frame % a.Dims.FrameWindow)
	dst := a.Edges.TimeIQ.CellView(slot, int(h.Symbol), int(localAnt))
	copy(dst, samples)
	return tracker.Coord{Frame: h.Frame, Symbol: h.Symbol, Unit: localAnt}, nil
}

func (a *ArenaDemuxer) deliverFreqIQ(h wire.Header, payload []byte) (tracker.Coord, error) {
	if uint32(h.SubcarrierStart) < a.Dims.GlobalSCOffset || uint32(h.SubcarrierStart)+uint32(h.SubcarrierLen) > a.Dims.GlobalSCOffset+a.Dims.LocalSC {
		return tracker.Coord{}, fmt.Errorf("%w: subcarrier range [%d,%d) not in this server's shard", agoraerr.ErrUnknownShard, h.SubcarrierStart, h.SubcarrierStart+h.SubcarrierLen)
	}
	localOff := uint32(h.SubcarrierStart) - a.Dims.GlobalSCOffset
	samples := wire.DecodeComplex64(payload)
	slot := int(h.Frame % a.Dims.FrameWindow)
	dst := a.Edges.FreqIQ.CellView(slot, int(h.Symbol), int(h.AntennaOrUE))
	copy(dst[localOff:], samples)
	return tracker.Coord{Frame: h.Frame, Symbol: h.Symbol, Unit: uint32(h.AntennaOrUE)}, nil
}

func (a *ArenaDemuxer) deliverDemod(h wire.Header, payload []byte) (tracker.Coord, error) {
	if uint32(h.AntennaOrUE) < a.Dims.GlobalUEOffset || uint32(h.AntennaOrUE) >= a.Dims.GlobalUEOffset+a.Dims.LocalUEs {
		return tracker.Coord{}, fmt.Errorf("%w: UE %d not owned by this server", agoraerr.ErrUnknownShard, h.AntennaOrUE)
	}
	localUE := uint32(h.AntennaOrUE) - a.Dims.GlobalUEOffset
	// Block numbering is receiver-shard-relative: the sender addresses
	// the subcarrier range its own shard produced, which, for this
	// single-server-correct implementation, is assumed to coincide with
	// the receiver's own block layout.
	blockIdx := uint32(h.SubcarrierStart) / a.Dims.DemulBlock
	col := int(localUE*a.Dims.NumSCBlocksHere() + blockIdx)

	pairs := wire.DecodeComplex64(payload)
	slot := int(h.Frame % a.Dims.FrameWindow)
	dst := a.Edges.Demod.CellView(slot, int(h.Symbol), col)
	for i, p := range pairs {
		if i >= len(dst) {
			break
		}
		dst[i] = LLRPair{real(p), imag(p)}
	}
	return tracker.Coord{Frame: h.Frame, Symbol: h.Symbol, Unit: localUE*a.Dims.NumSCBlocksHere() + blockIdx}, nil
}
