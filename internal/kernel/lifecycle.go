package kernel

import "github.com/cuemby/kcont/pkg/ktypes"

// This file collects the transition guards for both state machines
// small predicates the control API and scheduler consult before
// flipping a container or process to a new state, kept together so the
// full transition table is visible in one place instead of scattered
// across control.go/scheduler.go/procops.go as inline conditionals.

// containerCanStart reports whether `cont start` may move a container to
// RUNNABLE from its current state.
func containerCanStart(s ktypes.ContainerState) bool {
	switch s {
	case ktypes.ContainerReady, ktypes.ContainerRunnable, ktypes.ContainerRunning:
		return true
	default:
		return false
	}
}

// containerCanPause reports whether `cont pause` may move a container to
// PAUSED from its current state.
func containerCanPause(s ktypes.ContainerState) bool {
	switch s {
	case ktypes.ContainerRunnable, ktypes.ContainerRunning:
		return true
	default:
		return false
	}
}

// containerCanResume reports whether `cont resume` may move a container
// back to RUNNABLE.
func containerCanResume(s ktypes.ContainerState) bool {
	return s == ktypes.ContainerPaused
}

// containerCanStop reports whether `cont stop` may begin tearing a
// container down. Every non-FREE state accepts stop, including EMBRYO:
// an EMBRYO slot has no processes yet to reparent, so stopping one is
// just a direct free, but the guard itself doesn't special-case it.
func containerCanStop(s ktypes.ContainerState) bool {
	return s != ktypes.ContainerFree
}

// schedulable reports whether the scheduler should consider dispatching
// into a container in this state at all.
func schedulable(s ktypes.ContainerState) bool {
	return s == ktypes.ContainerRunnable || s == ktypes.ContainerRunning
}
