// Package lifecycle implements the master thread's state machine: bring
// up buffers, I/O plane and workers, wait for the RRU to start sending,
// run until the configured frame count is reached, then drain and report.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/bohrm1/agora/internal/affinity"
	"github.com/bohrm1/agora/internal/agoraerr"
	"github.com/bohrm1/agora/internal/config"
	"github.com/bohrm1/agora/internal/ioplane"
	"github.com/bohrm1/agora/internal/shardmap"
	"github.com/bohrm1/agora/internal/stats"
	"github.com/bohrm1/agora/internal/worker"
	"github.com/bohrm1/agora/tracker"
)

// State names a position in the Init -> WaitingForRRU -> Running ->
// Draining -> Stopped lifecycle.
type State int

const (
	StateInit State = iota
	StateWaitingForRRU
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingForRRU:
		return "WaitingForRRU"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Controller owns every long-lived goroutine of one server process and
// drives it through the lifecycle state machine.
type Controller struct {
	cfg   config.Config
	dims  worker.Dimensions
	edges *worker.Edges
	tr    *tracker.Tracker
	log   *logrus.Logger
	runID string

	running *atomic.Bool

	sock     ioplane.Socket
	txQueue  *ioplane.TXQueue
	addrBook map[uint16]unix.Sockaddr

	freqMirror  *worker.Mirror
	demodMirror *worker.Mirror

	stats []*stats.ThreadStats
	wg    sync.WaitGroup
	errs  chan error

	state State
}

// Init loads configuration, validates the shard map, and allocates every
// buffer and queue needed to run. It never spawns a goroutine; that is
// Controller.Run's job, so a caller can inspect a fully-built
// Controller (e.g. in tests) before anything starts polling.
func Init(cfgPath string) (*Controller, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}
	shardMap, err := config.LoadShardMap(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}
	cfg.ShardMap = shardMap

	if err := shardmap.Validate(cfg.ShardMap, cfg.BSAntNum, cfg.OFDMDataNum, cfg.UENum); err != nil {
		return nil, fmt.Errorf("lifecycle: %w: %w", agoraerr.ErrShardMapInvalid, err)
	}

	log := logrus.New()
	if os.Getenv("AGORA_LOG_JSON") == "1" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	selfServer := uint16(cfg.BSServerAddrIdx)
	dims, err := worker.NewDimensions(cfg, selfServer)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}
	edges := worker.NewEdges(dims)

	trCfg := tracker.Config{
		FrameWindow:   cfg.FrameWindow,
		SymbolNum:     cfg.SymbolNumPerFrame,
		ULPilotSyms:   cfg.ULPilotSyms,
		DemulBlock:    cfg.DemulBlockSize,
		LocalAntennas: dims.LocalAntennas,
		TotalAntennas: dims.TotalAntennas,
		LocalSC:       dims.LocalSC,
		LocalUEs:      dims.LocalUEs,
		NumZFWorkers:  uint32(dims.NumZFWorkers),
	}
	tr := tracker.New(trCfg, dims.NumSCBlocksHere())

	addrBook, err := ioplane.BuildAddrBook(cfg.ServerAddrs)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}

	sock, err := ioplane.NewUDPSocket(cfg.SelfAddr(), cfg.UseAFXDP)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}

	hasPeers := len(cfg.ShardMap.Servers) > 1
	var freqMirror, demodMirror *worker.Mirror
	if hasPeers {
		freqMirror = worker.NewFreqIQMirror(dims)
		demodMirror = worker.NewDemodMirror(dims)
	}

	c := &Controller{
		cfg:         cfg,
		dims:        dims,
		edges:       edges,
		tr:          tr,
		log:         log,
		runID:       uuid.New().String(),
		running:     new(atomic.Bool),
		sock:        sock,
		txQueue:     ioplane.NewTXQueue(4096),
		addrBook:    addrBook,
		freqMirror:  freqMirror,
		demodMirror: demodMirror,
		errs:        make(chan error, 1),
		state:       StateInit,
	}
	c.running.Store(true)
	return c, nil
}

// newStat creates and registers a named ThreadStats.
func (c *Controller) newStat(name string) *stats.ThreadStats {
	st := &stats.ThreadStats{Name: name, Start: time.Now()}
	c.stats = append(c.stats, st)
	return st
}

func (c *Controller) logger() *logrus.Entry {
	return c.log.WithField("run_id", c.runID)
}

// fail records the first fatal error and flips running false so every
// goroutine observes the shutdown on its next poll.
func (c *Controller) fail(err error) {
	select {
	case c.errs <- err:
	default:
	}
	c.running.Store(false)
}

// Run drives the full Init (already done) -> WaitingForRRU -> Running ->
// Draining -> Stopped sequence and returns the first fatal error
// observed, nil on a clean frames_to_test completion, or ctx's error
// (e.g. context.Canceled) when ctx is cancelled first.
func (c *Controller) Run(ctx context.Context) error {
	c.spawnIO()
	c.spawnWorkers()

	c.state = StateWaitingForRRU
	if err := c.waitForRRU(ctx); err != nil {
		return c.drain(err)
	}

	c.state = StateRunning
	runErr := c.watchProgress(ctx)

	return c.drain(runErr)
}

// waitForRRU spins, periodically logging, until the tracker observes the
// first legitimate time-IQ arrival.
func (c *Controller) waitForRRU(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if c.tr.RRUStarted() {
			c.logger().Info("lifecycle: RRU started")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.errs:
			return err
		case <-ticker.C:
			c.logger().Debug("lifecycle: waiting for RRU")
		}
	}
}

// watchProgress sleeps 1s at a time, comparing tracker.CurrentFrame
// against frames_to_test, until the run completes, ctx is cancelled, or
// a worker/IO goroutine reports a fatal error.
func (c *Controller) watchProgress(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if c.tr.CurrentFrame() >= c.cfg.FramesToTest && c.cfg.FramesToTest > 0 {
			c.logger().WithField("frames", c.tr.CurrentFrame()).Info("lifecycle: frames_to_test reached")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.errs:
			return err
		case <-ticker.C:
			c.logger().WithField("frames", c.tr.CurrentFrame()).Debug("lifecycle: running")
		}
	}
}

// drain flips running false, gives in-flight goroutines a grace period
// to observe it, joins them, and reports. runErr (possibly nil) is
// always returned unchanged; a socket-close failure during teardown is
// only logged.
func (c *Controller) drain(runErr error) error {
	c.state = StateDraining
	c.running.Store(false)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.logger().Warn("lifecycle: grace period elapsed before all threads joined")
	}

	if err := c.sock.Close(); err != nil {
		c.logger().WithError(err).Warn("lifecycle: closing socket")
	}

	c.state = StateStopped
	if runErr != nil && !isBenignStop(runErr) {
		c.logger().WithError(runErr).Error("lifecycle: run ended with error")
	}
	return runErr
}

func isBenignStop(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Report builds the final per-thread stats report, the Stopped state's
// "observable stats" contract.
func (c *Controller) Report() stats.Report {
	threads := make([]stats.ThreadStats, 0, len(c.stats))
	for _, st := range c.stats {
		threads = append(threads, *st)
	}
	return stats.Report{RunID: c.runID, Threads: threads}
}

func (c *Controller) runAffinity(core int, fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if c.cfg.PhyCoreNum > 0 || c.cfg.CoreOffset > 0 {
			if err := affinity.PinCurrentThread(core); err != nil {
				c.logger().WithError(err).Warn("lifecycle: core pin failed")
			}
		}
		if err := fn(); err != nil {
			c.fail(err)
		}
	}()
}
