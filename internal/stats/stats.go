// Package stats collects and renders the per-thread run statistics the
// lifecycle controller prints on exit: wall time, cycles spent working,
// cycles spent in tracker operations, idle cycles, and unit counts.
package stats

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// ThreadStats accumulates one worker or I/O thread's lifetime counters.
// Every field is written only by the owning thread, with no atomics or
// locking; a field is only safe to read from another goroutine (e.g.
// Controller.Report walking c.stats) after the owning thread has exited
// and been joined, never concurrently with it.
type ThreadStats struct {
	Name  string
	Start time.Time

	WorkDuration    time.Duration
	TrackerDuration time.Duration
	IdleDuration    time.Duration
	UnitsProcessed  uint64
	Drops           uint64
}

// AddWork accumulates d into WorkDuration.
func (s *ThreadStats) AddWork(d time.Duration) { s.WorkDuration += d }

// AddTracker accumulates d into TrackerDuration.
func (s *ThreadStats) AddTracker(d time.Duration) { s.TrackerDuration += d }

// AddIdle accumulates d into IdleDuration.
func (s *ThreadStats) AddIdle(d time.Duration) { s.IdleDuration += d }

// Report aggregates every thread's final ThreadStats for the run.
type Report struct {
	RunID   string
	Threads []ThreadStats
}

// WriteTable renders the report as an aligned stdout table, matching the
// baseband pipeline's "observable stats on stdout" contract.
func (r Report) WriteTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintln(tw, "thread\twall\twork\ttracker\tidle\tunits\tdrops")
	for _, t := range r.Threads {
		wall := time.Since(t.Start)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			t.Name, wall.Round(time.Microsecond), t.WorkDuration.Round(time.Microsecond),
			t.TrackerDuration.Round(time.Microsecond), t.IdleDuration.Round(time.Microsecond),
			t.UnitsProcessed, t.Drops)
	}
	tw.Flush()
}
