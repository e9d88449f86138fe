package tracker

import "sync/atomic"

// topic is a pair of counter arenas for one packet/production kind:
// perCoord tracks an exact (slot, sym, unit) cell for duplicate detection,
// and aggregate tracks the (slot, sym) roll-up so predicates are a single
// load plus a comparison, per the tracker's wait-free-read contract.
//
// All counters are machine-word atomics updated with fetch-add; readers
// use plain Load. Once an aggregate reaches its expected total it never
// decreases until Reset, so predicates are monotonic within a slot's
// occupancy, as required.
type topic struct {
	numSyms, numUnits uint32
	perCoord          []atomic.Uint32
	aggregate         []atomic.Uint32

	expectedUnit      uint32
	expectedAggregate func(sym uint32) uint32
}

func newTopic(w, numSyms, numUnits, expectedUnit uint32, expectedAggregate func(uint32) uint32) *topic {
	if numSyms == 0 {
		numSyms = 1
	}
	if numUnits == 0 {
		numUnits = 1
	}
	return &topic{
		numSyms:           numSyms,
		numUnits:          numUnits,
		perCoord:          make([]atomic.Uint32, w*numSyms*numUnits),
		aggregate:         make([]atomic.Uint32, w*numSyms),
		expectedUnit:      expectedUnit,
		expectedAggregate: expectedAggregate,
	}
}

func (t *topic) coordIndex(slot, sym, unit uint32) uint32 {
	return (slot*t.numSyms+sym)*t.numUnits + unit
}

func (t *topic) aggIndex(slot, sym uint32) uint32 {
	return slot*t.numSyms + sym
}

// record increments both the fine-grained cell and the aggregate roll-up,
// returning the pre-increment value of the fine-grained cell (for
// duplicate detection by the caller).
func (t *topic) record(slot, sym, unit uint32) uint32 {
	ci := t.coordIndex(slot, sym, unit)
	prev := t.perCoord[ci].Add(1) - 1
	ai := t.aggIndex(slot, sym)
	t.aggregate[ai].Add(1)
	return prev
}

// recordComplete is record plus an edge-triggered completion signal:
// justCompleted is true for exactly one caller per (slot, sym), the one
// whose fetch-add lands the aggregate on its expected total. Callers
// use this to decide who drives a barrier, instead of a statically
// assigned "last" unit that a concurrently-lagging caller could race
// past.
func (t *topic) recordComplete(slot, sym, unit uint32) (prevUnit uint32, justCompleted bool) {
	ci := t.coordIndex(slot, sym, unit)
	prevUnit = t.perCoord[ci].Add(1) - 1
	ai := t.aggIndex(slot, sym)
	newAgg := t.aggregate[ai].Add(1)
	justCompleted = newAgg == t.expectedAggregate(sym)
	return prevUnit, justCompleted
}

func (t *topic) isReady(slot, sym uint32) bool {
	ai := t.aggIndex(slot, sym)
	return t.aggregate[ai].Load() >= t.expectedAggregate(sym)
}

func (t *topic) count(slot, sym uint32) uint32 {
	return t.aggregate[t.aggIndex(slot, sym)].Load()
}

func (t *topic) reset(slot uint32) {
	for sym := uint32(0); sym < t.numSyms; sym++ {
		t.aggregate[t.aggIndex(slot, sym)].Store(0)
		for unit := uint32(0); unit < t.numUnits; unit++ {
			t.perCoord[t.coordIndex(slot, sym, unit)].Store(0)
		}
	}
}
