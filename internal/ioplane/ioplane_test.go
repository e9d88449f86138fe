package ioplane

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bohrm1/agora/internal/agoraerr"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/tracker"
	"github.com/bohrm1/agora/internal/wire"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeDemuxer struct {
	mu        sync.Mutex
	delivered []wire.Header
	reject    bool
}

func (d *fakeDemuxer) Deliver(h wire.Header, payload []byte) (tracker.Coord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return tracker.Coord{}, agoraerr.ErrUnknownShard
	}
	d.delivered = append(d.delivered, h)
	return tracker.Coord{Frame: h.Frame, Symbol: h.Symbol, Unit: uint32(h.AntennaOrUE)}, nil
}

func (d *fakeDemuxer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

func newTestTracker() *tracker.Tracker {
	return tracker.New(tracker.Config{
		FrameWindow:   4,
		SymbolNum:     1,
		ULPilotSyms:   1,
		DemulBlock:    1,
		LocalAntennas: 2,
		TotalAntennas: 2,
		LocalSC:       1,
		LocalUEs:      1,
		NumZFWorkers:  1,
	}, 1)
}

func runRXUntilStopped(t *testing.T, sock Socket, demux Demuxer, tr *tracker.Tracker, st *stats.ThreadStats) error {
	t.Helper()
	running := &atomic.Bool{}
	running.Store(true)
	done := make(chan error, 1)
	go func() {
		done <- RunRX(context.Background(), sock, demux, tr, discardLogger(), st, running)
	}()
	time.Sleep(20 * time.Millisecond)
	running.Store(false)
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("RunRX did not stop after running flipped false")
		return nil
	}
}

func TestRunRXDeliversAndRecords(t *testing.T) {
	sock := NewLoopbackSocket()
	h := wire.Header{Kind: wire.KindTimeIQ, Frame: 0, Symbol: 0, AntennaOrUE: 0, SourceServer: 1}
	buf := make([]byte, wire.HeaderLen+4)
	h.Marshal(buf)
	sock.Inject(buf)

	demux := &fakeDemuxer{}
	tr := newTestTracker()
	st := &stats.ThreadStats{Name: "rx-test", Start: time.Now()}

	if err := runRXUntilStopped(t, sock, demux, tr, st); err != nil {
		t.Fatalf("RunRX returned error: %v", err)
	}
	if demux.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", demux.count())
	}
	if st.UnitsProcessed != 1 {
		t.Fatalf("expected 1 unit processed, got %d", st.UnitsProcessed)
	}
	if tr.Duplicates() != 0 {
		t.Fatalf("expected 0 duplicates, got %d", tr.Duplicates())
	}
}

func TestRunRXDropsMalformedPacket(t *testing.T) {
	sock := NewLoopbackSocket()
	sock.Inject([]byte{1, 2, 3}) // shorter than wire.HeaderLen

	demux := &fakeDemuxer{}
	tr := newTestTracker()
	st := &stats.ThreadStats{Name: "rx-test", Start: time.Now()}

	if err := runRXUntilStopped(t, sock, demux, tr, st); err != nil {
		t.Fatalf("RunRX returned error: %v", err)
	}
	if demux.count() != 0 {
		t.Fatalf("expected 0 deliveries for malformed packet, got %d", demux.count())
	}
	if st.Drops != 1 {
		t.Fatalf("expected 1 drop, got %d", st.Drops)
	}
}

func TestRunRXDropsUnknownShard(t *testing.T) {
	sock := NewLoopbackSocket()
	h := wire.Header{Kind: wire.KindFreqIQ, Frame: 0, Symbol: 0, AntennaOrUE: 9}
	buf := make([]byte, wire.HeaderLen)
	h.Marshal(buf)
	sock.Inject(buf)

	demux := &fakeDemuxer{reject: true}
	tr := newTestTracker()
	st := &stats.ThreadStats{Name: "rx-test", Start: time.Now()}

	if err := runRXUntilStopped(t, sock, demux, tr, st); err != nil {
		t.Fatalf("RunRX returned error: %v", err)
	}
	if st.Drops != 1 {
		t.Fatalf("expected 1 drop for unknown shard, got %d", st.Drops)
	}
}

type fakePayloadSource struct {
	mu sync.Mutex
	m  map[wire.Header][]byte
}

func (s *fakePayloadSource) Payload(h wire.Header) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[h]
	return p, ok
}

func TestRunTXFramesAndSends(t *testing.T) {
	h := wire.Header{Kind: wire.KindZF, Frame: 3, Symbol: 0, AntennaOrUE: 2, SourceServer: 0}
	payload := []byte{9, 9, 9, 9}

	queue := NewTXQueue(4)
	pkt := wire.OutboundPacket{Header: h, Dest: 0}
	if err := queue.Enqueue(&pkt); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	book, err := BuildAddrBook([]string{"127.0.0.1:9999"})
	if err != nil {
		t.Fatalf("BuildAddrBook: %v", err)
	}
	src := &fakePayloadSource{m: map[wire.Header][]byte{h: payload}}
	sock := NewLoopbackSocket()
	st := &stats.ThreadStats{Name: "tx-test", Start: time.Now()}

	running := &atomic.Bool{}
	running.Store(true)
	done := make(chan error, 1)
	go func() {
		done <- RunTX(context.Background(), sock, queue, book, src, discardLogger(), st, running)
	}()
	time.Sleep(20 * time.Millisecond)
	running.Store(false)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunTX returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunTX did not stop after running flipped false")
	}

	if len(sock.Sent) != 1 {
		t.Fatalf("expected 1 sent datagram, got %d", len(sock.Sent))
	}
	got := sock.Sent[0].Bytes
	gotHeader, err := wire.Unmarshal(got)
	if err != nil {
		t.Fatalf("unmarshal sent header: %v", err)
	}
	if gotHeader != h {
		t.Fatalf("sent header = %+v, want %+v", gotHeader, h)
	}
	if string(got[wire.HeaderLen:]) != string(payload) {
		t.Fatalf("sent payload = %v, want %v", got[wire.HeaderLen:], payload)
	}
	if st.UnitsProcessed != 1 {
		t.Fatalf("expected 1 unit processed, got %d", st.UnitsProcessed)
	}
}
