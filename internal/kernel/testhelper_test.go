package kernel

import (
	"testing"

	"github.com/cuemby/kcont/pkg/ktypes"
)

// testInitProgram is a minimal root init: forever wait() for reparented
// zombies, yielding between empty passes, exiting once killed. Standing in
// here for pkg/kprog.Init so these tests don't create an import cycle
// (pkg/kprog imports internal/kernel).
func testInitProgram() ktypes.Entrypoint {
	return func(rc ktypes.RunContext) {
		sc := rc.(*Syscalls)
		for {
			if rc.Killed() {
				rc.Exit()
			}
			if _, err := sc.Wait(); err != nil {
				rc.Yield()
			}
		}
	}
}

// testSpin returns a program that yields n times, then exits.
func testSpin(n int) ktypes.Entrypoint {
	return func(rc ktypes.RunContext) {
		for i := 0; i < n; i++ {
			if rc.Killed() {
				break
			}
			rc.Yield()
		}
		rc.Exit()
	}
}

// testSleepForever returns a program that sleeps on its own handle and is
// never woken: used where a test needs a process guaranteed to be parked
// in the SLEEPING state (not concurrently executing) when some other goroutine
// mutates it, e.g. a forced container stop.
func testSleepForever() ktypes.Entrypoint {
	return func(rc ktypes.RunContext) {
		rc.Sleep(rc.Self())
	}
}

// newBootedKernel boots a Kernel rooted at a fresh temp directory with
// testInitProgram as root init, returning it ready for Create/Start/CFork
// calls.
// Callers are responsible for Shutdown.
func newBootedKernel(t *testing.T, cfg Config) *Kernel {
	t.Helper()
	root := t.TempDir()
	k := New(cfg)
	if err := k.Boot(root, testInitProgram()); err != nil {
		t.Fatalf("boot: %v", err)
	}
	return k
}
