package worker

import (
	"github.com/bohrm1/agora/internal/buffers"
	"github.com/bohrm1/agora/internal/wire"
)

// Mirror is the "to-send" view of an edge that crosses the network: a
// second arena of identical shape to the local buffer, byte-serialized
// so the TX goroutine can frame it directly. It is genuinely distinct
// storage from the local typed arena (buffers.Arena[complex64] for
// FreqIQ, buffers.Arena[LLRPair] for Demod) — the producing worker
// writes both; TX only ever reads the mirror.
//
// Mirror implements ioplane.PayloadSource.
type Mirror struct {
	arena       *buffers.Arena[byte]
	frameWindow uint32
	locate      func(h wire.Header) (row, col, start, length int, ok bool)
}

// NewFreqIQMirror builds the to-send mirror for the FreqIQ edge: one
// cell per (symbol, global antenna) holding that antenna's full
// TotalSC-wide FFT output, byte-encoded, so any peer's requested
// subcarrier sub-range can be sliced out without recomputing anything.
func NewFreqIQMirror(d Dimensions) *Mirror {
	arena := buffers.New[byte](int(d.FrameWindow), int(d.SymbolNum), int(d.TotalAntennas), int(d.TotalSC)*wire.SampleWidth)
	return &Mirror{
		arena:       arena,
		frameWindow: d.FrameWindow,
		locate: func(h wire.Header) (int, int, int, int, bool) {
			if h.Kind != wire.KindFreqIQ {
				return 0, 0, 0, 0, false
			}
			return int(h.Symbol), int(h.AntennaOrUE), int(h.SubcarrierStart) * wire.SampleWidth, int(h.SubcarrierLen) * wire.SampleWidth, true
		},
	}
}

// NewDemodMirror builds the to-send mirror for the Demod edge: one cell
// per (symbol, UE) holding that UE's full TotalSC-wide LLR stream,
// byte-encoded.
func NewDemodMirror(d Dimensions) *Mirror {
	arena := buffers.New[byte](int(d.FrameWindow), int(d.SymbolNum), int(d.TotalUEs), int(d.TotalSC)*wire.SampleWidth)
	return &Mirror{
		arena:       arena,
		frameWindow: d.FrameWindow,
		locate: func(h wire.Header) (int, int, int, int, bool) {
			if h.Kind != wire.KindDemod {
				return 0, 0, 0, 0, false
			}
			return int(h.Symbol), int(h.AntennaOrUE), int(h.SubcarrierStart) * wire.SampleWidth, int(h.SubcarrierLen) * wire.SampleWidth, true
		},
	}
}

// PutComplex64 byte-encodes vals into the mirror cell (frame, row, col)
// starting at sample 0.
func (m *Mirror) PutComplex64(frame uint32, row, col int, vals []complex64) {
	m.PutComplex64At(frame, row, col, 0, vals)
}

// PutComplex64At byte-encodes vals into the mirror cell (frame, row,
// col) starting at sample offset sampleOffset, for producers that fill
// a cell incrementally (one subcarrier, one call) rather than all at
// once.
func (m *Mirror) PutComplex64At(frame uint32, row, col, sampleOffset int, vals []complex64) {
	cell := m.arena.CellView(int(frame%m.frameWindow), row, col)
	byteOff := sampleOffset * wire.SampleWidth
	wire.EncodeComplex64(cell[byteOff:], vals)
}

// Payload implements ioplane.PayloadSource.
func (m *Mirror) Payload(h wire.Header) ([]byte, bool) {
	row, col, start, length, ok := m.locate(h)
	if !ok {
		return nil, false
	}
	cell := m.arena.CellView(int(h.Frame%m.frameWindow), row, col)
	if start < 0 || length < 0 || start+length > len(cell) {
		return nil, false
	}
	return cell[start : start+length], true
}

// MirrorSet dispatches ioplane.PayloadSource lookups to whichever edge
// mirror matches the packet's kind; a server ships both FreqIQ and
// Demod artifacts over the same TX queue so TX needs a single source
// that covers both.
type MirrorSet struct {
	FreqIQ *Mirror
	Demod  *Mirror
}

func (s MirrorSet) Payload(h wire.Header) ([]byte, bool) {
	switch h.Kind {
	case wire.KindFreqIQ:
		if s.FreqIQ == nil {
			return nil, false
		}
		return s.FreqIQ.Payload(h)
	case wire.KindDemod:
		if s.Demod == nil {
			return nil, false
		}
		return s.Demod.Payload(h)
	default:
		return nil, false
	}
}
