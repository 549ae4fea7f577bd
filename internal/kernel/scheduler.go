package kernel

import (
	"time"

	"github.com/cuemby/kcont/internal/kmetrics"
	"github.com/cuemby/kcont/pkg/ktypes"
)

// schedulerIdleBackoff is how long a per-CPU loop sleeps after a sweep
// dispatches nothing. The reference scheduler has no equivalent: it spins
// on a real CPU with interrupts enabled, waiting for a timer tick to wake
// something up. A goroutine spinning with no backoff would just burn a
// host CPU core instead, so this port adds a small sleep — purely a
// concession to running on top of a real OS scheduler, not a behavior
// change to the state machines themselves.
const schedulerIdleBackoff = time.Millisecond

// runCPU is one simulated CPU's scheduler loop: it sweeps until stop is
// closed (see Shutdown), then returns. Boot starts Config.CPUs of these
// as goroutines.
func (k *Kernel) runCPU(stop <-chan struct{}) {
	defer k.schedWG.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !k.schedulerSweep() {
			time.Sleep(schedulerIdleBackoff)
		}
	}
}

// schedulerSweep performs one pass over the container table: for every
// RUNNABLE or RUNNING container, advance its nextproc cursor exactly
// once and dispatch the process landed on if (and only if) it is
// RUNNABLE. It enforces this port's Open Question decision — at most one
// container RUNNING system-wide — via k.runningCont, a field the
// scheduler alone reads and writes. Returns whether it dispatched
// anything, so runCPU knows whether to back off.
func (k *Kernel) schedulerSweep() bool {
	k.mu.Lock()
	dispatchedAny := false

	for ci := range k.conts {
		cont := &k.conts[ci]
		if !schedulable(cont.State) || len(cont.Procs) == 0 {
			continue
		}
		if k.runningCont >= 0 && k.runningCont != ci {
			// Another container is already RUNNING on some CPU; leave
			// this one for the next sweep.
			continue
		}

		si := cont.NextProc % len(cont.Procs)
		cont.NextProc = (cont.NextProc + 1) % len(cont.Procs)
		p := &cont.Procs[si]
		if p.State != ktypes.ProcRunnable {
			continue
		}

		p.State = ktypes.ProcRunning
		cont.State = ktypes.ContainerRunning
		k.runningCont = ci
		kmetrics.RunningContainers.Set(1)
		kmetrics.DispatchTotal.Inc()
		k.logger.Debug().Int64("cid", cont.CID).Int64("pid", p.PID).Msg("dispatch")
		k.mu.Unlock()

		// swtch: hand the CPU to the process's goroutine and block
		// until it hands it back (yield, sleep, or exit).
		p.SchedIn() <- struct{}{}
		<-p.SchedOut()

		k.mu.Lock()
		if cont.State != ktypes.ContainerStopping && cont.State != ktypes.ContainerPaused {
			cont.State = ktypes.ContainerRunnable
		}
		if k.runningCont == ci {
			k.runningCont = -1
			kmetrics.RunningContainers.Set(0)
		}
		dispatchedAny = true
	}

	k.mu.Unlock()
	return dispatchedAny
}
