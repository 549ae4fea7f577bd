package kernel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/kcont/pkg/ktypes"
	"github.com/stretchr/testify/require"
)

// TestForkExitWaitRoundTrip is property 4: the pid Wait returns for a
// reaped child matches the pid Fork handed back when it was created.
func TestForkExitWaitRoundTrip(t *testing.T) {
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

	// Start made "work" the current container, and while one is set a
	// plain fork parents the child to root init. Clear it so the parent's
	// Fork below keeps the child in "work", parented to the parent itself.
	k.mu.Lock()
	k.curCont = -1
	k.mu.Unlock()

	result := make(chan int64, 1)
	parent := func(rc ktypes.RunContext) {
		sc := rc.(*Syscalls)
		childPID, forkErr := sc.Fork(func(rc ktypes.RunContext) { rc.Exit() })
		if forkErr != nil {
			result <- -1
			rc.Exit()
		}
		gotPID, waitErr := sc.Wait()
		switch {
		case waitErr != nil:
			result <- -2
		case gotPID != childPID:
			result <- -3
		default:
			result <- gotPID
		}
		rc.Exit()
	}

	_, err = k.CFork("work", parent)
	require.NoError(t, err)

	select {
	case got := <-result:
		require.Greater(t, got, int64(0), "fork/wait pid round trip failed (see sentinel above)")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for parent program to finish")
	}
}

// TestStopThenWaitFreesContainer is property 3: once a STOPPING container's
// reparented zombies are all reaped, the container itself returns to FREE.
func TestStopThenWaitFreesContainer(t *testing.T) {
	k := newBootedKernel(t, Config{})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	path := filepath.Join(root, "work")
	require.NoError(t, os.Mkdir(path, 0o755))
	cid, err := k.Create(path)
	require.NoError(t, err)
	_, err = k.Start("work")
	require.NoError(t, err)
	_, err = k.CFork("work", testSleepForever())
	require.NoError(t, err)
	_, err = k.CFork("work", testSleepForever())
	require.NoError(t, err)

	require.NoError(t, k.Stop("work"))

	require.Eventually(t, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		idx, ok := k.lookupContainerByCID(cid)
		return !ok || k.conts[idx].State == ktypes.ContainerFree
	}, 2*time.Second, 5*time.Millisecond, "stopped container never drained to FREE")
}
