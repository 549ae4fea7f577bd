package kernel

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/kcont/internal/kernerr"
	"github.com/cuemby/kcont/pkg/kpath"
	"github.com/cuemby/kcont/pkg/ktypes"
	"github.com/stretchr/testify/require"
)

// TestScenarioCreateStartStop is S1: create, start with a forked program,
// see it listed RUNNING with a live pid, stop, and see the container drain
// back to a FREE slot.
func TestScenarioCreateStartStop(t *testing.T) {
	k := newBootedKernel(t, Config{})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	path := filepath.Join(root, "c1")
	require.NoError(t, os.Mkdir(path, 0o755))
	cid, err := k.Create(path)
	require.NoError(t, err)

	_, err = k.Start("c1")
	require.NoError(t, err)
	pid, err := k.CFork("c1", testSpin(1_000_000))
	require.NoError(t, err)
	require.Greater(t, pid, int64(1))

	require.Eventually(t, func() bool {
		for _, snap := range k.PS() {
			if snap.CID == cid {
				for _, p := range snap.Procs {
					if p.PID == pid {
						return true
					}
				}
			}
		}
		return false
	}, time.Second, time.Millisecond, "cps never listed the forked process")

	require.NoError(t, k.Stop("c1"))
	require.Eventually(t, func() bool {
		for _, snap := range k.PS() {
			if snap.CID == cid {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond, "cps kept listing a stopped container")

	k.mu.Lock()
	_, ok := k.lookupContainerByCID(cid)
	k.mu.Unlock()
	require.False(t, ok, "stopped container's slot never returned to FREE")
}

// TestScenarioPauseResume is S2: a PAUSED container makes no scheduling
// progress, and resuming it lets dispatches advance again.
func TestScenarioPauseResume(t *testing.T) {
	k := newBootedKernel(t, Config{})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	path := filepath.Join(root, "c1")
	require.NoError(t, os.Mkdir(path, 0o755))
	_, err := k.Create(path)
	require.NoError(t, err)
	_, err = k.Start("c1")
	require.NoError(t, err)

	var progress int64
	busyLoop := func(rc ktypes.RunContext) {
		for {
			if rc.Killed() {
				rc.Exit()
			}
			atomic.AddInt64(&progress, 1)
			rc.Yield()
		}
	}
	_, err = k.CFork("c1", busyLoop)
	require.NoError(t, err)

	// Let it get at least one dispatch before pausing.
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&progress) > 0
	}, time.Second, time.Millisecond, "busy loop never ran once before pause")
	require.NoError(t, k.Pause("c1"))

	before := atomic.LoadInt64(&progress)
	time.Sleep(50 * time.Millisecond)
	after := atomic.LoadInt64(&progress)
	require.Equal(t, before, after, "busy loop kept advancing while container was PAUSED")

	require.NoError(t, os.Chdir(path))
	defer os.Chdir(root)
	require.True(t, kpath.IsPrefix(kpath.CwdOf(path), path))
	require.NoError(t, k.Resume("c1"))

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&progress) > after
	}, time.Second, time.Millisecond, "busy loop never advanced after resume")
}

// TestScenarioPolicyRejection is S3: a cwd outside a container's rootpath
// fails kpath.IsPrefix, the check the CLI makes before it calls Start, and
// the container stays READY. The CLI check itself lives in cmd/cont and is
// not called here.
func TestScenarioPolicyRejection(t *testing.T) {
	k := newBootedKernel(t, Config{})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	path := filepath.Join(root, "c2")
	require.NoError(t, os.Mkdir(path, 0o755))
	_, err := k.Create(path)
	require.NoError(t, err)

	outside := root // cwd is the kernel's own root dir, not inside c2's rootpath
	require.False(t, kpath.IsPrefix(kpath.CwdOf(outside), path), "test setup: cwd must be outside c2's rootpath")

	k.mu.Lock()
	idx, ok := k.lookupContainerByName("c2")
	require.True(t, ok)
	state := k.conts[idx].State
	k.mu.Unlock()
	require.Equal(t, ktypes.ContainerReady, state, "container must still be READY before the policy-rejected start")
}

// TestScenarioDuplicateName is S4: creating a second container under the
// same name fails with AlreadyExists, regardless of rootpath.
func TestScenarioDuplicateName(t *testing.T) {
	k := newBootedKernel(t, Config{})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	first := filepath.Join(root, "c1")
	second := filepath.Join(root, "other", "c1")
	require.NoError(t, os.Mkdir(first, 0o755))
	require.NoError(t, os.MkdirAll(second, 0o755))

	_, err := k.Create(first)
	require.NoError(t, err)
	_, err = k.Create(second)
	require.ErrorIs(t, err, kernerr.ErrAlreadyExists)
}

// TestScenarioDoubleStop is S5: stopping the same container twice succeeds
// once and fails NotFound the second time, once the slot has been freed.
func TestScenarioDoubleStop(t *testing.T) {
	k := newBootedKernel(t, Config{})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	path := filepath.Join(root, "c1")
	require.NoError(t, os.Mkdir(path, 0o755))
	_, err := k.Create(path)
	require.NoError(t, err)
	_, err = k.Start("c1")
	require.NoError(t, err)

	require.NoError(t, k.Stop("c1"))
	err = k.Stop("c1")
	require.ErrorIs(t, err, kernerr.ErrNotFound)
}
