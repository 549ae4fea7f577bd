package kernel

import (
	"fmt"
	"runtime"
	"time"

	"github.com/cuemby/kcont/internal/kernerr"
	"github.com/cuemby/kcont/internal/kmetrics"
	"github.com/cuemby/kcont/pkg/ktypes"
)

// Fork implements fork, including the cfork three-way container
// selection rule:
//   - targetCID != nil: the new process lands in that container,
//     parented to root init (this is what CFork/`cont cfork` uses).
//   - targetCID == nil and a "current container" is set (Boot, Start and
//     Resume set it, Pause/Stop clear it): the new process lands there,
//     also parented to root init.
//   - otherwise: the new process inherits the caller's own container and
//     is parented to the caller, the ordinary same-container fork.
//
// caller is the zero Handle for forks made on no process's behalf (Boot's
// root init fork and CFork, both of which pass a targetCID); every other
// caller passes its own Self().
func (k *Kernel) Fork(caller ktypes.Handle, targetCID *int64, entry ktypes.Entrypoint) (int64, error) {
	_, pid, err := k.forkHandle(caller, targetCID, entry)
	return pid, err
}

// forkHandle is Fork's implementation, additionally returning the new
// process's Handle (so Boot can remember it as root init) and its pid
// captured before the child is ever scheduled — reading PID back out of
// the slot afterwards would race a child fast enough to exit and be
// reaped before the caller gets a chance to look.
func (k *Kernel) forkHandle(caller ktypes.Handle, targetCID *int64, entry ktypes.Entrypoint) (ktypes.Handle, int64, error) {
	k.mu.Lock()

	var contIdx int
	var parent ktypes.Handle
	var callerProc *ktypes.Process
	if !caller.Zero() {
		callerProc = k.procAt(caller)
		if callerProc == nil {
			k.mu.Unlock()
			return ktypes.Handle{}, 0, fmt.Errorf("fork: caller: %w", kernerr.ErrNotFound)
		}
	}

	switch {
	case targetCID != nil:
		idx, ok := k.lookupContainerByCID(*targetCID)
		if !ok {
			k.mu.Unlock()
			return ktypes.Handle{}, 0, fmt.Errorf("fork: container cid %d: %w", *targetCID, kernerr.ErrNotFound)
		}
		contIdx = idx
		parent = k.initProc
	case k.curCont >= 0:
		contIdx = k.curCont
		parent = k.initProc
	case callerProc != nil:
		contIdx = callerProc.Container
		parent = caller
	default:
		k.mu.Unlock()
		return ktypes.Handle{}, 0, fmt.Errorf("fork: %w", kernerr.ErrNotFound)
	}

	slotIdx, err := k.allocProcess(contIdx)
	if err != nil {
		k.mu.Unlock()
		return ktypes.Handle{}, 0, err
	}
	child := &k.conts[contIdx].Procs[slotIdx]
	child.Parent = parent

	var parentName, parentCwd string
	var parentFiles [ktypes.NOFILE]*ktypes.FileRef
	if callerProc != nil {
		parentName = callerProc.Name
		parentCwd = callerProc.Cwd
		parentFiles = callerProc.Files
	} else {
		parentCwd = k.conts[contIdx].RootPath
	}
	childHandle := ktypes.Handle{Cont: contIdx, Slot: slotIdx, Gen: child.Gen}
	childPID := child.PID
	k.mu.Unlock()

	// Lockless "clone address space / dup open files" work, mirroring
	// copyuvm/filedup running outside ptable.lock in the reference fork().
	child.Name = parentName
	child.Cwd = parentCwd
	for i, f := range parentFiles {
		child.Files[i] = f.Dup()
	}
	child.SetEntry(entry)
	child.CreatedAt = time.Now()

	k.mu.Lock()
	child.State = ktypes.ProcRunnable
	k.mu.Unlock()

	go k.runProcess(childHandle)

	k.logger.Debug().Int64("pid", childPID).Int("cont", contIdx).Msg("fork")
	return childHandle, childPID, nil
}

// exit implements exit: close files, wake the parent (if any),
// reparent any children to root init (waking init if one is already a
// zombie), mark self ZOMBIE, hand the CPU back one last time, and never
// return — mirroring "exit() does not return" via runtime.Goexit.
func (k *Kernel) exit(self ktypes.Handle) {
	k.mu.Lock()
	p := k.procAt(self)
	if p == nil {
		k.mu.Unlock()
		return
	}
	if self == k.initProc {
		k.mu.Unlock()
		panic("kernel: root init process exited")
	}
	k.mu.Unlock()

	for i, f := range p.Files {
		f.Close()
		p.Files[i] = nil
	}
	p.Cwd = ""

	k.mu.Lock()
	k.wakeupLocked(p.Parent)
	cont := &k.conts[p.Container]
	for i := range cont.Procs {
		child := &cont.Procs[i]
		if child.State == ktypes.ProcFree {
			continue
		}
		if child.Parent == self {
			child.Parent = k.initProc
			if child.State == ktypes.ProcZombie {
				k.wakeupLocked(k.initProc)
			}
		}
	}
	p.State = ktypes.ProcZombie
	k.mu.Unlock()

	k.logger.Debug().Int64("pid", p.PID).Msg("exit")

	p.SchedOut() <- struct{}{}
	runtime.Goexit()
}

// Wait implements wait: block until a child of the caller becomes
// a ZOMBIE, reap it (free its slot, freeing the owning container too if
// it was STOPPING and this was its last process), and return its pid.
// Returns kernerr.ErrNoChildren if the caller has no children at all (or
// has been killed while waiting), mirroring wait() returning -1.
func (k *Kernel) Wait(rc ktypes.RunContext) (int64, error) {
	caller := rc.Self()
	for {
		k.mu.Lock()
		havekids := false
		reapedPID := int64(-1)

	outer:
		for ci := range k.conts {
			cont := &k.conts[ci]
			if cont.State == ktypes.ContainerFree {
				continue
			}
			for si := range cont.Procs {
				child := &cont.Procs[si]
				if child.State == ktypes.ProcFree || child.Parent != caller {
					continue
				}
				havekids = true
				if child.State == ktypes.ProcZombie {
					reapedPID = child.PID
					k.freeProcessLocked(ci, si)
					break outer
				}
			}
		}

		if reapedPID != -1 {
			k.maybeFreeStoppingContainersLocked()
			k.mu.Unlock()
			kmetrics.ReapedTotal.Inc()
			return reapedPID, nil
		}

		killed := false
		if p := k.procAt(caller); p != nil {
			killed = p.Killed
		}
		if !havekids || killed {
			k.mu.Unlock()
			return -1, kernerr.ErrNoChildren
		}
		k.mu.Unlock()

		rc.Sleep(caller)
	}
}

// maybeFreeStoppingContainersLocked frees any STOPPING container whose
// last process has just been reaped. Caller must hold k.mu.
func (k *Kernel) maybeFreeStoppingContainersLocked() {
	for ci := range k.conts {
		cont := &k.conts[ci]
		if cont.State != ktypes.ContainerStopping {
			continue
		}
		if k.containerHasLiveProcsLocked(ci) {
			continue
		}
		cont.State = ktypes.ContainerFree
		cont.Name = ""
		cont.RootPath = ""
		cont.RootDir = nil
		cont.CID = 0
		cont.NextProc = 0
	}
}

func (k *Kernel) containerHasLiveProcsLocked(ci int) bool {
	for si := range k.conts[ci].Procs {
		if k.conts[ci].Procs[si].State != ktypes.ProcFree {
			return true
		}
	}
	return false
}

// stopContainerLocked is the process-table side of `cont stop`:
// mark every non-FREE process in the container ZOMBIE and reparent it to
// root init, waking init so a concurrent Wait can reap them, then move
// the container itself to STOPPING — or straight to FREE if it had no
// processes at all. Caller must hold k.mu.
func (k *Kernel) stopContainerLocked(ci int) {
	cont := &k.conts[ci]
	hadProc := false
	for si := range cont.Procs {
		p := &cont.Procs[si]
		if p.State == ktypes.ProcFree {
			continue
		}
		hadProc = true
		p.Killed = true
		if p.State != ktypes.ProcZombie {
			p.State = ktypes.ProcZombie
		}
		p.Parent = k.initProc
	}
	if k.curCont == ci {
		k.curCont = -1
	}
	if k.runningCont == ci {
		k.runningCont = -1
		kmetrics.RunningContainers.Set(0)
	}
	if !hadProc {
		cont.State = ktypes.ContainerFree
		cont.Name = ""
		cont.RootPath = ""
		cont.RootDir = nil
		cont.NextProc = 0
		return
	}
	cont.State = ktypes.ContainerStopping
	k.wakeupLocked(k.initProc)
}
