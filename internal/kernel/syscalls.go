package kernel

import "github.com/cuemby/kcont/pkg/ktypes"

// Syscalls bundles a RunContext with the Kernel operations that need to
// know which process is calling (fork, wait) into the single surface an
// Entrypoint is handed — the in-process analogue of the syscall table a
// trap handler would dispatch through. Every method here is one of the
// kernel-facing entry points a process can call.
type Syscalls struct {
	ktypes.RunContext
	k *Kernel
}

// newSyscalls builds the Syscalls facade a process's Entrypoint receives
// instead of a bare RunContext, so entry points can Fork/Wait without
// reaching into the Kernel directly.
func newSyscalls(k *Kernel, rc ktypes.RunContext) *Syscalls {
	return &Syscalls{RunContext: rc, k: k}
}

// Fork is the plain fork() syscall, as opposed to CFork: it calls
// Kernel.Fork with no target container. While a "current container" is
// set, the child lands there and is parented to root init; otherwise it
// stays in the caller's own container, parented to the caller.
func (s *Syscalls) Fork(entry ktypes.Entrypoint) (int64, error) {
	return s.k.Fork(s.Self(), nil, entry)
}

// Wait blocks until one of the caller's children becomes a zombie and
// reaps it.
func (s *Syscalls) Wait() (int64, error) {
	return s.k.Wait(s.RunContext)
}

// Kill marks pid killed.
func (s *Syscalls) Kill(pid int64) bool {
	return s.k.Kill(pid)
}

// Wakeup wakes every process sleeping on key.
func (s *Syscalls) Wakeup(key any) {
	s.k.Wakeup(key)
}

// GetPID returns the calling process's pid.
func (s *Syscalls) GetPID() int64 {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	if p := s.k.procAt(s.Self()); p != nil {
		return p.PID
	}
	return -1
}
