package kernel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/kcont/pkg/ktypes"
	"github.com/stretchr/testify/require"
)

// findByPID locates a process's current state by pid, for tests that need
// to observe a transition without a Handle in hand. Not used by production
// code: PS() (control.go) and Kill (sleep.go) already do their own scans
// for their own purposes.
func findByPID(k *Kernel, pid int64) (ktypes.ProcState, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for ci := range k.conts {
		for si := range k.conts[ci].Procs {
			p := &k.conts[ci].Procs[si]
			if p.PID == pid && p.State != ktypes.ProcFree {
				return p.State, true
			}
		}
	}
	return 0, false
}

// TestNoMissedWakeup is property 6: Wakeup always observes (and promotes)
// a process that has already transitioned to SLEEPING on the matching key,
// because both the transition and the sweep are serialized by the same
// lock. The test first waits — under that same lock, via polling rather
// than a fixed delay — for the sleeper to actually reach SLEEPING before
// ever calling Wakeup, so the assertion is about the invariant, not about
// timing luck.
func TestNoMissedWakeup(t *testing.T) {
	k := newBootedKernel(t, Config{})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	path := filepath.Join(root, "work")
	require.NoError(t, os.Mkdir(path, 0o755))
	_, err := k.Create(path)
	require.NoError(t, err)
	_, err = k.Start("work")
	require.NoError(t, err)

	done := make(chan struct{})
	entry := func(rc ktypes.RunContext) {
		rc.Sleep("the-key")
		close(done)
		rc.Exit()
	}
	pid, err := k.CFork("work", entry)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, ok := findByPID(k, pid)
		return ok && s == ktypes.ProcSleeping
	}, time.Second, time.Millisecond, "process never reached SLEEPING")

	k.Wakeup("the-key")

	s, ok := findByPID(k, pid)
	require.True(t, ok)
	require.NotEqual(t, ktypes.ProcSleeping, s, "Wakeup did not promote the sleeper out of SLEEPING")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("woken process never resumed and exited")
	}
}
