// Package tracker re-exports the internal frame state tracker as this
// module's stable, public contract: the process-wide object the
// lifecycle controller constructs once and hands as a shared read-only
// reference to every worker and I/O goroutine.
//
// Internal mutation is atomic fetch-add only, never a lock — see
// internal/tracker for the implementation.
package tracker

import "github.com/bohrm1/agora/internal/tracker"

// Kind identifies which packet/production family a Coord addresses.
type Kind = tracker.Kind

const (
	KindTimeIQ = tracker.KindTimeIQ
	KindFreqIQ = tracker.KindFreqIQ
	KindZF     = tracker.KindZF
	KindDemod  = tracker.KindDemod
	KindDecode = tracker.KindDecode
)

// Coord addresses one counter cell; see internal/tracker.Coord for the
// per-Kind interpretation of Symbol and Unit.
type Coord = tracker.Coord

// Config sizes a Tracker's counter arenas.
type Config = tracker.Config

// Tracker is the frame state tracker for one server process.
type Tracker = tracker.Tracker

// New builds a Tracker. numSCBlocksHere is ceil(LocalSC/DemulBlock); use
// NumSCBlocks to compute it.
func New(cfg Config, numSCBlocksHere uint32) *Tracker {
	return tracker.New(cfg, numSCBlocksHere)
}

// NumSCBlocks computes ceil(scCount/blockSize).
func NumSCBlocks(scCount, blockSize uint32) uint32 {
	return tracker.NumSCBlocks(scCount, blockSize)
}
