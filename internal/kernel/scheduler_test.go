package kernel

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/kcont/pkg/ktypes"
	"github.com/stretchr/testify/require"
)

// TestAtMostOneContainerRunning exercises property 1: with several
// containers busy-spinning across multiple simulated CPUs, no sample ever
// observes more than one container in the RUNNING state.
func TestAtMostOneContainerRunning(t *testing.T) {
	k := newBootedKernel(t, Config{CPUs: 2})
	defer func() {
		k.Shutdown()
		k.WaitSchedulers()
	}()

	root := k.CurrentRootDir()
	const nConts = 4
	for i := 0; i < nConts; i++ {
		name := filepath.Join(root, "c"+string(rune('a'+i)))
		require.NoError(t, os.Mkdir(name, 0o755))
		_, err := k.Create(name)
		require.NoError(t, err)
		_, err = k.Start("c" + string(rune('a'+i)))
		require.NoError(t, err)
		_, err = k.CFork("c"+string(rune('a'+i)), testSpin(500))
		require.NoError(t, err)
	}

	var violations int32
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			k.mu.Lock()
			running := 0
			for ci := range k.conts {
				if k.conts[ci].State == ktypes.ContainerRunning {
					running++
				}
			}
			k.mu.Unlock()
			if running > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	close(stop)

	require.Equal(t, int32(0), atomic.LoadInt32(&violations), "observed more than one RUNNING container at once")
}
