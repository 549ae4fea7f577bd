// Package kprog provides a handful of built-in Entrypoint programs to
// fork processes from — the in-kernel stand-ins for the tiny user
// binaries (init, sh, sleep) a real kernel would load off disk. Nothing
// here is part of the kernel itself; it is just what cmd/cont forks when
// asked to start a named program inside a container.
package kprog

import (
	"time"

	"github.com/cuemby/kcont/internal/kernel"
	"github.com/cuemby/kcont/pkg/ktypes"
)

// asSyscalls recovers the *kernel.Syscalls facade every Entrypoint is
// actually handed (see internal/kernel's runProcess), so programs in this
// package can Fork/Wait/Wakeup instead of only Yield/Sleep/Exit.
func asSyscalls(rc ktypes.RunContext) *kernel.Syscalls {
	sc, ok := rc.(*kernel.Syscalls)
	if !ok {
		panic("kprog: entrypoint invoked with a RunContext that is not *kernel.Syscalls")
	}
	return sc
}

// Init is the root init program: forever reap any zombie reparented to
// it, yielding between empty passes instead of busy-spinning. Mirrors
// the reference kernel's init, whose entire job after its one real child
// exits is to keep calling wait() so orphans do not pile up as zombies
// forever.
func Init() ktypes.Entrypoint {
	return func(rc ktypes.RunContext) {
		sc := asSyscalls(rc)
		for {
			if rc.Killed() {
				rc.Exit()
			}
			if _, err := sc.Wait(); err != nil {
				rc.Yield()
			}
		}
	}
}

// Sleep returns a program that sleeps for d of wall-clock time, then
// exits. It self-wakes via a real-time timer goroutine calling
// Wakeup(self) — the bridge between this port's logical Sleep/Wakeup
// primitive and an actual clock, which the reference kernel gets for
// free from a hardware timer interrupt.
func Sleep(d time.Duration) ktypes.Entrypoint {
	return func(rc ktypes.RunContext) {
		sc := asSyscalls(rc)
		self := rc.Self()
		timer := time.AfterFunc(d, func() { sc.Wakeup(self) })
		defer timer.Stop()
		rc.Sleep(self)
		rc.Exit()
	}
}

// Spin returns a program that yields n times, then exits — useful for
// exercising the round-robin scheduler with a predictable number of
// dispatches per process.
func Spin(n int) ktypes.Entrypoint {
	return func(rc ktypes.RunContext) {
		for i := 0; i < n; i++ {
			if rc.Killed() {
				break
			}
			rc.Yield()
		}
		rc.Exit()
	}
}

// Fork returns a program that forks once with the given child program,
// then calls Wait once before exiting — a minimal "shell running one job"
// stand-in. The fork follows Syscalls.Fork's rule: while a "current
// container" is set, the child is parented to root init, so this Wait
// returns an error at once instead of waiting for it.
func Fork(child ktypes.Entrypoint) ktypes.Entrypoint {
	return func(rc ktypes.RunContext) {
		sc := asSyscalls(rc)
		if _, err := sc.Fork(child); err == nil {
			sc.Wait()
		}
		rc.Exit()
	}
}
