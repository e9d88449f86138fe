// Package agoraerr defines the sentinel error values used to distinguish
// fatal failures from recoverable, drop-and-continue ones across the
// pipeline, per the error taxonomy of the baseband pipeline's design.
package agoraerr

import "errors"

// Fatal errors. Observing one of these must flip the process-wide running
// flag and drain all threads; the process exits non-zero.
var (
	// ErrSlotOverrun means a packet or production arrived for a frame
	// slot that still holds an un-drained prior occupant: the sliding
	// window of W frames was lapped.
	ErrSlotOverrun = errors.New("agora: frame slot overrun")

	// ErrTxFailed means the NIC (or its kernel-bypass stand-in) rejected
	// an outbound packet.
	ErrTxFailed = errors.New("agora: tx failed")

	// ErrRxNicError means the receive socket itself faulted, as opposed
	// to a single malformed packet.
	ErrRxNicError = errors.New("agora: rx nic error")

	// ErrCounterOverflow means record_arrival observed a count strictly
	// greater than the expected total for a coordinate that is not a
	// known, allowed retransmit (there are none in this design).
	ErrCounterOverflow = errors.New("agora: counter overflow")

	// ErrShardMapInvalid means the configured cluster shard map leaves a
	// gap or an overlap on some axis; this is checked at startup, before
	// any worker or I/O thread is spawned.
	ErrShardMapInvalid = errors.New("agora: shard map invalid")
)

// Non-fatal errors. These are logged and dropped; the offending packet is
// discarded and processing continues.
var (
	// ErrUnknownShard means a packet's (kind, coord) addresses a shard
	// this server does not own.
	ErrUnknownShard = errors.New("agora: unknown shard")

	// ErrMalformedPacket means the wire header failed to parse or its
	// declared length disagrees with the payload actually present.
	ErrMalformedPacket = errors.New("agora: malformed packet")

	// ErrDuplicateArrival means record_arrival observed a count at or
	// above the expected total, which is the fatal-overflow shape but
	// for a recognized duplicate: a replayed packet.
	ErrDuplicateArrival = errors.New("agora: duplicate arrival")
)

// IsFatal reports whether err should cause the lifecycle controller to
// stop the run, as opposed to being counted and dropped.
func IsFatal(err error) bool {
	switch {
	case errors.Is(err, ErrSlotOverrun),
		errors.Is(err, ErrTxFailed),
		errors.Is(err, ErrRxNicError),
		errors.Is(err, ErrCounterOverflow),
		errors.Is(err, ErrShardMapInvalid):
		return true
	default:
		return false
	}
}
