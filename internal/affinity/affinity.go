// Package affinity pins the calling goroutine's OS thread to a single
// physical core, the Go-idiomatic equivalent of the reference
// implementation's pthread_setaffinity_np: runtime.LockOSThread followed
// by golang.org/x/sys/unix.SchedSetaffinity.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Plan assigns each logical thread role a base core offset, mirroring the
// pack's thread layout: master, then RX/TX, then the four worker pools in
// order, skipping hyperthread siblings when UseHyperthreading is false.
type Plan struct {
	CoreOffset        int
	UseHyperthreading bool
	PhyCoreNum        int // physical core count; 0 disables hyperthread-skipping
}

// CoreForSlot returns the logical CPU index for the slot-th thread
// counted from CoreOffset, skipping every other logical core when
// hyperthreading must be avoided and PhyCoreNum is known.
func (p Plan) CoreForSlot(slot int) int {
	if !p.UseHyperthreading && p.PhyCoreNum > 0 {
		return p.CoreOffset + 2*slot
	}
	return p.CoreOffset + slot
}

// PinCurrentThread locks the calling goroutine to its own OS thread and
// restricts that thread's scheduling affinity to exactly core. It must be
// called from the goroutine that will run the hot loop; Go never migrates
// a locked goroutine off its OS thread afterward.
func PinCurrentThread(core int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: pin to core %d: %w", core, err)
	}
	return nil
}
