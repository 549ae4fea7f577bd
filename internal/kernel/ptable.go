package kernel

import (
	"github.com/cuemby/kcont/internal/kernerr"
	"github.com/cuemby/kcont/pkg/ktypes"
)

// allocProcess finds a FREE process slot within the given container,
// transitions it to EMBRYO, and assigns the next pid. Allocation
// is refused outright if the owning container is not in READY, RUNNABLE,
// or RUNNING — an EMBRYO, PAUSED, STOPPING, or FREE container has no
// business growing a new process. Caller must hold k.mu; the heavier
// "clone address space" work the reference implementation does lockless
// after allocproc() returns is left to the caller of allocProcess too
// (see Fork in procops.go).
func (k *Kernel) allocProcess(contIdx int) (int, error) {
	cont := &k.conts[contIdx]
	switch cont.State {
	case ktypes.ContainerReady, ktypes.ContainerRunnable, ktypes.ContainerRunning:
	default:
		return -1, kernerr.ErrInvalidState
	}

	for i := range cont.Procs {
		p := &cont.Procs[i]
		if p.State != ktypes.ProcFree {
			continue
		}
		p.State = ktypes.ProcEmbryo
		p.PID = k.nextPID
		k.nextPID++
		p.Gen++
		p.Container = contIdx
		p.Parent = ktypes.Handle{}
		p.Killed = false
		p.Chan = nil
		p.Name = ""
		p.Cwd = ""
		p.Size = 0
		p.PageDir = 0
		p.KStack = nil
		for j := range p.Files {
			p.Files[j] = nil
		}
		p.InitSched()
		return i, nil
	}
	return -1, kernerr.ErrCapacity
}

// freeProcessLocked resets a reaped process slot back to FREE, releasing
// the fields a fresh allocation would otherwise inherit stale values
// from. Caller must hold k.mu.
func (k *Kernel) freeProcessLocked(contIdx, slotIdx int) {
	p := &k.conts[contIdx].Procs[slotIdx]
	p.State = ktypes.ProcFree
	p.PID = 0
	p.Parent = ktypes.Handle{}
	p.Name = ""
	p.Cwd = ""
	p.Killed = false
	p.Chan = nil
	p.Size = 0
	p.PageDir = 0
	p.KStack = nil
	for j, f := range p.Files {
		f.Close()
		p.Files[j] = nil
	}
}

// procAt resolves a Handle to its live Process, rejecting handles whose
// generation no longer matches the slot's current occupant (the slot was
// freed and reused since the handle was taken). The zero Handle always
// resolves to nil, mirroring a null parent pointer. Caller must hold
// k.mu.
func (k *Kernel) procAt(h ktypes.Handle) *ktypes.Process {
	if h.Zero() {
		return nil
	}
	if h.Cont < 0 || h.Cont >= len(k.conts) {
		return nil
	}
	cont := &k.conts[h.Cont]
	if h.Slot < 0 || h.Slot >= len(cont.Procs) {
		return nil
	}
	p := &cont.Procs[h.Slot]
	if p.Gen != h.Gen {
		return nil
	}
	return p
}
