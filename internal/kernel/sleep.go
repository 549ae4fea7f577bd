package kernel

import (
	"github.com/cuemby/kcont/internal/kmetrics"
	"github.com/cuemby/kcont/pkg/ktypes"
)

// wakeupLocked scans every non-FREE process slot in every non-FREE
// container and moves any SLEEPING process whose Chan equals key to
// RUNNABLE. O(NCONT*NPROC), same as the reference wakeup1()'s
// full-table sweep — there is no per-channel index. Caller must hold
// k.mu, which is what makes this safe against the missed-wakeup race:
// a process can only observe itself as SLEEPING-with-this-key while the
// lock is held, and this sweep holds the same lock, so a wakeup that
// starts after the sleeping process set its state cannot be missed.
func (k *Kernel) wakeupLocked(key any) {
	if key == nil {
		return
	}
	for ci := range k.conts {
		cont := &k.conts[ci]
		if cont.State == ktypes.ContainerFree {
			continue
		}
		for si := range cont.Procs {
			p := &cont.Procs[si]
			if p.State == ktypes.ProcSleeping && p.Chan == key {
				p.State = ktypes.ProcRunnable
				p.Chan = nil
			}
		}
	}
}

// Wakeup is the external entry point mirroring wakeup(chan): acquire the
// lock, sweep, release.
func (k *Kernel) Wakeup(key any) {
	k.mu.Lock()
	k.wakeupLocked(key)
	k.mu.Unlock()
	kmetrics.WakeupSweepsTotal.Inc()
}

// killLocked marks a process killed and, if it is currently SLEEPING,
// promotes it to RUNNABLE so it gets a chance to notice Killed() and
// call Exit — mirroring kill1()'s "wake it if sleeping" behavior so a
// killed process is not left parked forever on some channel nobody else
// will ever signal. Caller must hold k.mu.
func (k *Kernel) killLocked(h ktypes.Handle) bool {
	p := k.procAt(h)
	if p == nil {
		return false
	}
	p.Killed = true
	if p.State == ktypes.ProcSleeping {
		p.State = ktypes.ProcRunnable
		p.Chan = nil
	}
	return true
}

// Kill marks the process identified by pid killed, searching every
// container the way kill() does, and returns whether a matching,
// non-ZOMBIE process was found.
func (k *Kernel) Kill(pid int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for ci := range k.conts {
		cont := &k.conts[ci]
		if cont.State == ktypes.ContainerFree {
			continue
		}
		for si := range cont.Procs {
			p := &cont.Procs[si]
			if p.PID == pid && p.State != ktypes.ProcFree && p.State != ktypes.ProcZombie {
				return k.killLocked(ktypes.Handle{Cont: ci, Slot: si, Gen: p.Gen})
			}
		}
	}
	return false
}
