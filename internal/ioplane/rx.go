package ioplane

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bohrm1/agora/internal/agoraerr"
	"github.com/bohrm1/agora/internal/cpupoll"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/tracker"
	"github.com/bohrm1/agora/internal/wire"
)

// maxDatagramBytes bounds the single RecvFrom buffer; every packet kind's
// PayloadLen plus wire.HeaderLen must fit within it for the configured
// cluster shape.
const maxDatagramBytes = 1 << 16

// Demuxer places an inbound packet's payload into its destination buffer
// and reports the tracker.Coord the caller should record the arrival
// against. Implementations own the actual buffers.Arena addressing;
// ioplane only needs the demux/notify contract.
type Demuxer interface {
	Deliver(h wire.Header, payload []byte) (tracker.Coord, error)
}

// wireKindToTrackerKind maps the wire-level packet kind to the tracker's
// counter family; the two enums are deliberately kept separate since the
// wire format is a cluster-wide contract and the tracker's Kind is a
// single process's internal indexing detail.
func wireKindToTrackerKind(k wire.Kind) tracker.Kind {
	switch k {
	case wire.KindTimeIQ:
		return tracker.KindTimeIQ
	case wire.KindFreqIQ:
		return tracker.KindFreqIQ
	case wire.KindZF:
		return tracker.KindZF
	case wire.KindDemod:
		return tracker.KindDemod
	default:
		panic(fmt.Sprintf("ioplane: unknown wire kind %d", k))
	}
}

// RunRX busy-polls sock for inbound datagrams until ctx is cancelled or
// running is flipped false, demultiplexing each into its destination via
// demux and recording the arrival with tr. It returns nil on a clean
// stop, or a wrapped agoraerr.ErrRxNicError on a genuine socket fault.
// Malformed headers and demux misses are logged and dropped, never
// fatal.
func RunRX(ctx context.Context, sock Socket, demux Demuxer, tr *tracker.Tracker, log *logrus.Logger, st *stats.ThreadStats, running *atomic.Bool) error {
	buf := make([]byte, maxDatagramBytes)
	bo := cpupoll.NewDefault()

	for running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, _, err := sock.RecvFrom(buf)
		if err != nil {
			if IsWouldBlock(err) {
				bo.Idle()
				continue
			}
			return fmt.Errorf("%w: %v", agoraerr.ErrRxNicError, err)
		}
		bo.Reset()

		if err := handleDatagram(buf[:n], demux, tr, log, st); err != nil {
			return err
		}
	}
	return nil
}

func handleDatagram(pkt []byte, demux Demuxer, tr *tracker.Tracker, log *logrus.Logger, st *stats.ThreadStats) error {
	start := time.Now()

	h, err := wire.Unmarshal(pkt)
	if err != nil {
		log.WithError(err).Warn("ioplane: dropping malformed packet")
		st.Drops++
		return nil
	}

	coord, err := demux.Deliver(h, pkt[wire.HeaderLen:])
	if err != nil {
		if agoraerr.IsFatal(err) {
			return err
		}
		log.WithError(err).WithField("kind", h.Kind).Warn("ioplane: dropping undeliverable packet")
		st.Drops++
		return nil
	}
	st.AddWork(time.Since(start))

	trackerStart := time.Now()
	if err := tr.RecordArrival(wireKindToTrackerKind(h.Kind), coord); err != nil {
		st.AddTracker(time.Since(trackerStart))
		if agoraerr.IsFatal(err) {
			return err
		}
		log.WithError(err).Debug("ioplane: duplicate arrival")
		st.Drops++
		return nil
	}
	if h.Kind == wire.KindTimeIQ {
		tr.NoteRRUArrival()
	}
	st.AddTracker(time.Since(trackerStart))
	st.UnitsProcessed++
	return nil
}
