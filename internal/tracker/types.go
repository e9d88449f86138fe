package tracker

// Kind names the family of counter a caller is recording against or
// reading a predicate for.
type Kind int

const (
	KindTimeIQ Kind = iota
	KindFreqIQ
	KindZF
	KindDemod
	KindDecode
)

// Coord addresses one counter cell. Frame is the global, monotonically
// increasing frame id; Symbol and Unit are interpreted per Kind:
//
//   - KindTimeIQ: Unit is the antenna index within this server's shard.
//   - KindFreqIQ: Unit is the antenna index across the whole cluster
//     (the aggregate's expected total is the cluster-wide antenna count,
//     since every antenna contributes one freq-IQ sample to this
//     server's subcarrier shard for each symbol).
//   - KindZF: Symbol is unused (0); Unit is the local ZF worker id.
//   - KindDemod: Unit packs a (UE, subcarrier-block) pair local to this
//     server, via PackDemodUnit.
//   - KindDecode: Symbol is unused (0); Unit packs a (data-symbol-offset,
//     local UE) pair local to this server, via PackDecodeUnit. This is
//     the frame-wide decode-completion barrier, not a per-symbol gate.
type Coord struct {
	Frame  uint32
	Symbol uint16
	Unit   uint32
}
