package ioplane

import (
	"context"
	"fmt"
	"sync/atomic"

	"code.hybscloud.com/lfq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/bohrm1/agora/internal/agoraerr"
	"github.com/bohrm1/agora/internal/cpupoll"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/wire"
)

// TXQueue is the lock-free hand-off from stage workers to one TX
// goroutine: many FFT and Demul workers publish concurrently, one
// TX thread drains, which is exactly the MPSC shape of
// code.hybscloud.com/lfq rather than SPSC.
type TXQueue = lfq.MPSC[wire.OutboundPacket]

// NewTXQueue builds a TXQueue sized for capacity outstanding packets.
func NewTXQueue(capacity int) *TXQueue { return lfq.NewMPSC[wire.OutboundPacket](capacity) }

// PayloadSource resolves an outbound packet's header to the payload
// bytes already produced into the "to-send" mirror arena; the queue
// itself only ever carries the small header/destination descriptor.
type PayloadSource interface {
	Payload(h wire.Header) ([]byte, bool)
}

// RunTX drains queue, resolving each packet's payload via src and its
// destination via book, framing it with wire.Header and sending it on
// sock. It returns nil on a clean stop, or a wrapped
// agoraerr.ErrTxFailed on send failure or an unresolvable destination.
func RunTX(ctx context.Context, sock Socket, queue *TXQueue, book map[uint16]unix.Sockaddr, src PayloadSource, log *logrus.Logger, st *stats.ThreadStats, running *atomic.Bool) error {
	hdr := make([]byte, wire.HeaderLen)
	bo := cpupoll.NewDefault()

	for running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := queue.Dequeue()
		if err != nil {
			if lfq.IsWouldBlock(err) {
				bo.Idle()
				continue
			}
			return fmt.Errorf("%w: dequeue: %v", agoraerr.ErrTxFailed, err)
		}
		bo.Reset()

		if err := sendOne(sock, hdr, pkt, book, src, log, st); err != nil {
			return err
		}
	}
	return nil
}

func sendOne(sock Socket, hdr []byte, pkt wire.OutboundPacket, book map[uint16]unix.Sockaddr, src PayloadSource, log *logrus.Logger, st *stats.ThreadStats) error {
	payload, ok := src.Payload(pkt.Header)
	if !ok {
		log.WithField("kind", pkt.Header.Kind).Warn("ioplane: tx payload missing, dropping")
		st.Drops++
		return nil
	}

	dest, ok := book[pkt.Dest]
	if !ok {
		log.WithField("dest", pkt.Dest).Warn("ioplane: unknown tx destination, dropping")
		st.Drops++
		return nil
	}

	pkt.Header.Marshal(hdr)
	full := make([]byte, 0, len(hdr)+len(payload))
	full = append(full, hdr...)
	full = append(full, payload...)

	if err := sock.SendTo(full, dest); err != nil {
		return fmt.Errorf("%w: %v", agoraerr.ErrTxFailed, err)
	}
	st.UnitsProcessed++
	return nil
}
