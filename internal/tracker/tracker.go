// Package tracker implements the process-wide frame state tracker: a
// lock-free counter matrix indexed by (frame-slot, stage, sub-unit) that
// answers "is work unit X ready?" with a wait-free read from any worker
// thread, and that detects duplicate arrivals and sliding-window overrun.
//
// A single Tracker is constructed once at startup and handed to every
// worker and I/O goroutine as a shared, read-mostly reference; all
// mutation goes through atomic fetch-add, never a lock.
package tracker

import (
	"fmt"
	"sync/atomic"

	"github.com/bohrm1/agora/internal/agoraerr"
)

const unsetOccupant = ^uint32(0)

// Config carries exactly what the tracker needs to size its counter
// arenas and compute predicate thresholds; it is a narrow view of
// internal/config.Config plus the resolved local shard sizes.
type Config struct {
	FrameWindow  uint32
	SymbolNum    uint32
	ULPilotSyms  uint32
	DemulBlock   uint32

	LocalAntennas uint32 // this server's antenna shard size
	TotalAntennas uint32 // cluster-wide antenna count (A)
	LocalSC       uint32 // this server's subcarrier shard size
	LocalUEs      uint32 // this server's UE (decode) shard size
	NumZFWorkers  uint32
}

// Tracker is the frame state tracker for one server process.
type Tracker struct {
	cfg Config

	timeIQ *topic
	freqIQ *topic
	zf     *topic
	demod  *topic
	decode *topic

	slotOccupant []atomic.Uint32 // frame currently resident in each slot, or unsetOccupant
	rruStarted   atomic.Bool
	currentFrame atomic.Uint32 // one past the highest frame AdvanceFrameComplete has retired

	duplicates      atomic.Uint64
	numSCBlocksHere uint32
}

// PackDemodUnit packs a (UE, subcarrier-block) pair local to this
// server into the flat unit index KindDemod coordinates address.
func (tr *Tracker) PackDemodUnit(localUEIdx, blockIdx uint32) uint32 {
	return localUEIdx*tr.numSCBlocksHere + blockIdx
}

// PackDecodeUnit packs a (data-symbol-offset, local UE) pair local to
// this server into the flat unit index the decode-completion barrier
// counts against, mirroring PackDemodUnit.
func (tr *Tracker) PackDecodeUnit(symOffset, localUEIdx uint32) uint32 {
	return symOffset*tr.cfg.LocalUEs + localUEIdx
}

// New builds a Tracker sized for cfg. numSCBlocksHere is the number of
// demul production blocks this server's subcarrier shard yields
// (ceil(LocalSC/DemulBlock)); Demod readiness for a symbol is
// LocalUEs*numSCBlocksHere, since every owned UE needs an LLR chunk from
// every block to be decodable.
func New(cfg Config, numSCBlocksHere uint32) *Tracker {
	w := cfg.FrameWindow
	s := cfg.SymbolNum

	tr := &Tracker{
		cfg:          cfg,
		slotOccupant: make([]atomic.Uint32, w),
	}
	for i := range tr.slotOccupant {
		tr.slotOccupant[i].Store(unsetOccupant)
	}

	tr.timeIQ = newTopic(w, s, cfg.LocalAntennas, 1, func(uint32) uint32 { return cfg.LocalAntennas })
	tr.freqIQ = newTopic(w, s, cfg.TotalAntennas, 1, func(uint32) uint32 { return cfg.TotalAntennas })
	tr.zf = newTopic(w, 1, cfg.NumZFWorkers, 1, func(uint32) uint32 { return cfg.NumZFWorkers })
	demodExpected := cfg.LocalUEs * numSCBlocksHere
	demodUnits := demodExpected
	if demodUnits == 0 {
		demodUnits = 1
	}
	tr.demod = newTopic(w, s, demodUnits, 1, func(uint32) uint32 { return demodExpected })

	dataSymbols := uint32(0)
	if s > cfg.ULPilotSyms {
		dataSymbols = s - cfg.ULPilotSyms
	}
	decodeExpected := dataSymbols * cfg.LocalUEs
	decodeUnits := decodeExpected
	if decodeUnits == 0 {
		decodeUnits = 1
	}
	tr.decode = newTopic(w, 1, decodeUnits, 1, func(uint32) uint32 { return decodeExpected })

	tr.numSCBlocksHere = numSCBlocksHere

	return tr
}

func (tr *Tracker) slot(frame uint32) uint32 { return frame % tr.cfg.FrameWindow }

// touchSlot enforces that a slot is only ever written by one frame at a
// time: the first writer for a frame claims the slot, and every later
// writer for a *different* frame while the claim still stands observes
// ErrSlotOverrun — the window was lapped.
func (tr *Tracker) touchSlot(slot, frame uint32) error {
	for {
		occ := tr.slotOccupant[slot].Load()
		if occ == frame {
			return nil
		}
		if occ != unsetOccupant {
			return fmt.Errorf("%w: slot %d holds frame %d, got write for frame %d", agoraerr.ErrSlotOverrun, slot, occ, frame)
		}
		if tr.slotOccupant[slot].CompareAndSwap(unsetOccupant, frame) {
			return nil
		}
		// lost the race to another writer claiming the same frame; retry
	}
}

// RecordArrival records a packet's arrival from the I/O plane, returning
// agoraerr.ErrDuplicateArrival (non-fatal) if this coordinate already
// reached its expected count, or agoraerr.ErrSlotOverrun (fatal) if the
// destination slot still holds an undrained prior frame.
func (tr *Tracker) RecordArrival(kind Kind, c Coord) error {
	return tr.record(kind, c)
}

// RecordProduction records a worker's publication of its output at c,
// using the same counters RecordArrival feeds — local production and a
// network arrival are two ways of satisfying the same downstream
// predicate, per the tracker's design notes.
func (tr *Tracker) RecordProduction(kind Kind, c Coord) error {
	return tr.record(kind, c)
}

// RecordDecodeProduction records one decode worker's production of a
// (data-symbol, local UE) pair's decoded bits, using a dedicated
// frame-wide barrier counter rather than the per-(slot,sym) gates
// RecordProduction feeds. justCompleted is true for exactly one caller
// per frame: whichever RecordDecodeProduction call's fetch-add lands
// the frame's decode count on dataSymbols*localUEs. The caller that
// observes justCompleted is the one that must call
// AdvanceFrameComplete — ownership of the barrier is decided by the
// counter, not by which (symbol, UE) pair is syntactically last, so a
// worker lagging behind a faster sibling on an earlier data symbol can
// never have its frame retired out from under it.
func (tr *Tracker) RecordDecodeProduction(c Coord) (justCompleted bool, err error) {
	slot := tr.slot(c.Frame)
	if err := tr.touchSlot(slot, c.Frame); err != nil {
		return false, err
	}
	prev, justCompleted := tr.decode.recordComplete(slot, 0, c.Unit)
	if prev >= tr.decode.expectedUnit {
		tr.duplicates.Add(1)
		return false, fmt.Errorf("%w: kind=decode frame=%d unit=%d", agoraerr.ErrDuplicateArrival, c.Frame, c.Unit)
	}
	return justCompleted, nil
}

func (tr *Tracker) record(kind Kind, c Coord) error {
	slot := tr.slot(c.Frame)
	if err := tr.touchSlot(slot, c.Frame); err != nil {
		return err
	}
	t := tr.topicFor(kind)
	prev := t.record(slot, uint32(c.Symbol), c.Unit)
	if prev >= t.expectedUnit {
		tr.duplicates.Add(1)
		return fmt.Errorf("%w: kind=%d frame=%d symbol=%d unit=%d", agoraerr.ErrDuplicateArrival, kind, c.Frame, c.Symbol, c.Unit)
	}
	return nil
}

func (tr *Tracker) topicFor(kind Kind) *topic {
	switch kind {
	case KindTimeIQ:
		return tr.timeIQ
	case KindFreqIQ:
		return tr.freqIQ
	case KindZF:
		return tr.zf
	case KindDemod:
		return tr.demod
	case KindDecode:
		return tr.decode
	default:
		panic(fmt.Sprintf("tracker: unknown kind %d", kind))
	}
}

// ReceivedAllTimeIQPkts reports whether every antenna in this server's
// shard has delivered its time-IQ sample for (frame, symbol).
func (tr *Tracker) ReceivedAllTimeIQPkts(frame uint32, symbol uint16) bool {
	return tr.timeIQ.isReady(tr.slot(frame), uint32(symbol))
}

// ReceivedAllPilotPkts reports whether every antenna in the cluster has
// delivered freq-IQ for every pilot symbol of frame.
func (tr *Tracker) ReceivedAllPilotPkts(frame uint32) bool {
	slot := tr.slot(frame)
	for sym := uint32(0); sym < tr.cfg.ULPilotSyms; sym++ {
		if !tr.freqIQ.isReady(slot, sym) {
			return false
		}
	}
	return true
}

// ReceivedAllULDataPkts reports whether every antenna in the cluster has
// delivered freq-IQ for the given uplink data symbol of frame.
func (tr *Tracker) ReceivedAllULDataPkts(frame uint32, symbol uint16) bool {
	return tr.freqIQ.isReady(tr.slot(frame), uint32(symbol))
}

// ReceivedAllZFPkts reports whether every local ZF worker has published
// its shard's zero-forcing matrices for frame.
func (tr *Tracker) ReceivedAllZFPkts(frame uint32) bool {
	return tr.zf.isReady(tr.slot(frame), 0)
}

// ReceivedAllDemodPkts reports whether every subcarrier block this
// server's owned UEs depend on has delivered its LLR chunk for
// (frame, symbol).
func (tr *Tracker) ReceivedAllDemodPkts(frame uint32, symbol uint16) bool {
	return tr.demod.isReady(tr.slot(frame), uint32(symbol))
}

// NoteRRUArrival flips RRUStarted to true on the first legitimate
// time-IQ packet. Idempotent.
func (tr *Tracker) NoteRRUArrival() {
	tr.rruStarted.Store(true)
}

// RRUStarted reports whether the RRU has sent at least one legitimate
// time-IQ packet.
func (tr *Tracker) RRUStarted() bool {
	return tr.rruStarted.Load()
}

// CurrentFrame returns one past the highest frame number
// AdvanceFrameComplete has retired so far (0 before any frame is
// retired), so after frames 0..N-1 complete it reports N.
func (tr *Tracker) CurrentFrame() uint32 {
	return tr.currentFrame.Load()
}

// Duplicates returns the lifetime count of dropped duplicate arrivals.
func (tr *Tracker) Duplicates() uint64 {
	return tr.duplicates.Load()
}

// AdvanceFrameComplete is called exactly once per frame, by whichever
// decode worker's RecordDecodeProduction call observed justCompleted for
// frame, to verify every predecessor counter (including the decode
// barrier itself) hit its target and then reset the slot so it may host
// frame+FrameWindow.
func (tr *Tracker) AdvanceFrameComplete(frame uint32) error {
	slot := tr.slot(frame)

	if tr.slotOccupant[slot].Load() != frame {
		return fmt.Errorf("%w: advance_frame_complete for frame %d but slot %d holds %d", agoraerr.ErrSlotOverrun, frame, slot, tr.slotOccupant[slot].Load())
	}
	for sym := uint32(0); sym < tr.cfg.SymbolNum; sym++ {
		if !tr.freqIQ.isReady(slot, sym) {
			return fmt.Errorf("agora: advance_frame_complete for frame %d: freq-iq incomplete at symbol %d", frame, sym)
		}
	}
	if !tr.zf.isReady(slot, 0) {
		return fmt.Errorf("agora: advance_frame_complete for frame %d: zf incomplete", frame)
	}
	if !tr.decode.isReady(slot, 0) {
		return fmt.Errorf("agora: advance_frame_complete for frame %d: decode incomplete", frame)
	}

	tr.timeIQ.reset(slot)
	tr.freqIQ.reset(slot)
	tr.zf.reset(slot)
	tr.demod.reset(slot)
	tr.decode.reset(slot)
	tr.slotOccupant[slot].Store(unsetOccupant)

	next := frame + 1
	for {
		cur := tr.currentFrame.Load()
		if next <= cur {
			return nil
		}
		if tr.currentFrame.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// NumSCBlocks computes ceil(scCount/blockSize), the number of
// demul-production blocks a shard of scCount subcarriers yields at the
// configured block granularity; a block size larger than the shard
// yields exactly one block, per the boundary behavior of spec.md §4.3.
func NumSCBlocks(scCount, blockSize uint32) uint32 {
	if blockSize == 0 {
		blockSize = 1
	}
	if scCount == 0 {
		return 0
	}
	return (scCount + blockSize - 1) / blockSize
}
