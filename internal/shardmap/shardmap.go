// Package shardmap validates and queries the static cluster shard map: for
// each server, the antenna range it receives from the RRU, the subcarrier
// range it owns for ZF/Demul, and the UE range it owns for Decode.
package shardmap

import (
	"fmt"
	"sort"

	"github.com/bohrm1/agora/internal/agoraerr"
)

// Range is a half-open integer interval [Lo, Hi).
type Range struct {
	Lo, Hi uint32
}

// Len returns the number of elements in the range.
func (r Range) Len() uint32 {
	if r.Hi <= r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

// Contains reports whether x falls within the range.
func (r Range) Contains(x uint32) bool {
	return x >= r.Lo && x < r.Hi
}

// ServerShard is one server's share of each axis.
type ServerShard struct {
	ServerID   uint16
	Antennas   Range // RRU antennas this server receives
	Subcarriers Range // subcarrier range owned for ZF/Demul
	UEs        Range // UE range owned for Decode
}

// Map is the static, cluster-wide shard assignment, keyed by server id.
type Map struct {
	Servers []ServerShard
}

// ByServer returns the shard for a given server id, or false if absent.
func (m Map) ByServer(id uint16) (ServerShard, bool) {
	for _, s := range m.Servers {
		if s.ServerID == id {
			return s, true
		}
	}
	return ServerShard{}, false
}

// OwnerOfSubcarrier returns the server id owning a subcarrier, or false
// if no server claims it (which Validate would already have rejected).
func (m Map) OwnerOfSubcarrier(sc uint32) (uint16, bool) {
	for _, s := range m.Servers {
		if s.Subcarriers.Contains(sc) {
			return s.ServerID, true
		}
	}
	return 0, false
}

// OwnerOfUE returns the server id owning a UE's decode work.
func (m Map) OwnerOfUE(ue uint32) (uint16, bool) {
	for _, s := range m.Servers {
		if s.UEs.Contains(ue) {
			return s.ServerID, true
		}
	}
	return 0, false
}

// Validate checks that each axis tiles [0, total) across all servers
// without gaps or overlaps. totalAnt/totalSC/totalUE are the configured
// A, C, U values. Returns agoraerr.ErrShardMapInvalid (wrapped with
// detail) on any violation.
func Validate(m Map, totalAnt, totalSC, totalUE uint32) error {
	if err := validateAxis("antenna", axisRanges(m, func(s ServerShard) Range { return s.Antennas }), totalAnt); err != nil {
		return err
	}
	if err := validateAxis("subcarrier", axisRanges(m, func(s ServerShard) Range { return s.Subcarriers }), totalSC); err != nil {
		return err
	}
	if err := validateAxis("ue", axisRanges(m, func(s ServerShard) Range { return s.UEs }), totalUE); err != nil {
		return err
	}
	return nil
}

func axisRanges(m Map, pick func(ServerShard) Range) []Range {
	out := make([]Range, 0, len(m.Servers))
	for _, s := range m.Servers {
		out = append(out, pick(s))
	}
	return out
}

func validateAxis(name string, ranges []Range, total uint32) error {
	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })

	var cursor uint32
	for _, r := range sorted {
		if r.Lo != cursor {
			return fmt.Errorf("%w: %s axis has gap or overlap at %d (expected %d)", agoraerr.ErrShardMapInvalid, name, r.Lo, cursor)
		}
		if r.Hi < r.Lo {
			return fmt.Errorf("%w: %s axis has inverted range [%d,%d)", agoraerr.ErrShardMapInvalid, name, r.Lo, r.Hi)
		}
		cursor = r.Hi
	}
	if cursor != total {
		return fmt.Errorf("%w: %s axis covers [0,%d), expected [0,%d)", agoraerr.ErrShardMapInvalid, name, cursor, total)
	}
	return nil
}

// EvenSplit computes the worker partition of spec.md §3: thread t of T
// owns [t*D/T, (t+1)*D/T) of a dimension of size D, with the remainder
// absorbed by the last shard.
func EvenSplit(t, total int, dimSize uint32) Range {
	lo := uint32(t) * dimSize / uint32(total)
	hi := uint32(t+1) * dimSize / uint32(total)
	return Range{Lo: lo, Hi: hi}
}
