package kernel

import (
	"fmt"

	"github.com/cuemby/kcont/pkg/ktypes"
)

// Boot implements the bootstrap sequence (the in-kernel analogue of
// main()'s userinit() call): create the root container bound to
// rootPath, move it straight to RUNNABLE, fork its root init process
// running initEntry, and start Config.CPUs scheduler loops. initEntry is
// typically a loop that just calls Syscalls.Wait forever, standing in
// for the reference kernel's "init" program that reparents and reaps
// orphans.
func (k *Kernel) Boot(rootPath string, initEntry ktypes.Entrypoint) error {
	k.mu.Lock()
	if k.booted {
		k.mu.Unlock()
		return fmt.Errorf("kernel: already booted")
	}
	k.booted = true
	k.mu.Unlock()

	rootCID, err := k.Create(rootPath)
	if err != nil {
		return fmt.Errorf("boot: create root container: %w", err)
	}

	k.mu.Lock()
	idx, ok := k.lookupContainerByCID(rootCID)
	if !ok {
		k.mu.Unlock()
		return fmt.Errorf("boot: root container vanished")
	}
	k.rootCont = idx
	k.conts[idx].State = ktypes.ContainerRunnable
	k.curCont = idx
	k.mu.Unlock()

	initHandle, _, err := k.forkHandle(ktypes.Handle{}, &rootCID, initEntry)
	if err != nil {
		return fmt.Errorf("boot: fork root init: %w", err)
	}

	k.mu.Lock()
	k.initProc = initHandle
	k.mu.Unlock()

	k.stopCh = make(chan struct{})
	for i := 0; i < k.cpuCount; i++ {
		k.schedWG.Add(1)
		go k.runCPU(k.stopCh)
	}

	k.logger.Info().Int64("cid", rootCID).Int("cpus", k.cpuCount).Msg("kernel booted")
	return nil
}

// Shutdown signals every scheduler loop started by Boot to stop after
// its current sweep; call WaitSchedulers to block until they have. It
// does not touch process goroutines or reap anything — callers that want
// a clean tree should Stop every container first.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	stopCh := k.stopCh
	k.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
}

// WaitSchedulers blocks until every scheduler loop started by Boot has
// returned. Call Shutdown first; otherwise this blocks forever.
func (k *Kernel) WaitSchedulers() {
	k.schedWG.Wait()
}
