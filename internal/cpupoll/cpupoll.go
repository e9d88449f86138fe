// Package cpupoll implements the pipeline's cooperative busy-poll/backoff
// policy: spin for a bounded window, then yield for a short sleep, the
// same order of magnitude as the reference's timestamp-counter-gated
// backoff, expressed without inline assembly.
package cpupoll

import (
	"runtime"
	"time"
)

// Cycles stands in for a cycle-accurate timestamp counter. Go exposes no
// portable rdtsc, so this wraps a monotonic clock read at a fixed
// Frequency-per-second scale, preserving the "cycles / frequency =
// elapsed time" shape of the reference's calibration without actually
// reading a hardware counter.
func Cycles() uint64 { return uint64(time.Now().UnixNano()) }

// Frequency is the assumed Cycles()-per-second rate: Cycles() reports
// nanoseconds, so this is exactly 1e9.
const Frequency = 1e9

// DefaultBusyWindow and DefaultSleep match the 1ms busy-poll / 1us yield
// policy: too eager a yield wrecks throughput under partial load, too
// lazy burns CPU during startup and gap-fill.
const (
	DefaultBusyWindow = time.Millisecond
	DefaultSleep       = time.Microsecond
)

// Backoff tracks one worker or I/O thread's idle streak and decides,
// each loop iteration, whether to keep spinning or yield to the
// scheduler. It is not safe for concurrent use; each polling thread
// owns its own Backoff.
type Backoff struct {
	busyCycles uint64
	sleep      time.Duration
	idleSince  uint64 // 0 means "not currently idle"
}

// New builds a Backoff with the given busy-poll window and yield sleep.
func New(busyWindow, sleep time.Duration) *Backoff {
	return &Backoff{
		busyCycles: uint64(busyWindow.Seconds() * Frequency),
		sleep:      sleep,
	}
}

// NewDefault builds a Backoff using DefaultBusyWindow and DefaultSleep.
func NewDefault() *Backoff { return New(DefaultBusyWindow, DefaultSleep) }

// Reset clears the idle streak; call it whenever a poll found work.
func (b *Backoff) Reset() { b.idleSince = 0 }

// Idle records a fruitless poll and backs off appropriately: a bare
// scheduler yield while inside the busy-poll window, then a short sleep
// once the window has elapsed.
func (b *Backoff) Idle() {
	now := Cycles()
	if b.idleSince == 0 {
		b.idleSince = now
		runtime.Gosched()
		return
	}
	if now-b.idleSince < b.busyCycles {
		runtime.Gosched()
		return
	}
	time.Sleep(b.sleep)
}
