package kernel

import "github.com/cuemby/kcont/pkg/ktypes"

// procCtx is the concrete ktypes.RunContext a process's entry point gets,
// binding it to the Kernel and its own Handle. It is the in-process
// analogue of the trap frame: everything an Entrypoint can do to
// cooperate with the scheduler funnels through here.
type procCtx struct {
	k *Kernel
	h ktypes.Handle
}

var _ ktypes.RunContext = (*procCtx)(nil)

func (c *procCtx) Self() ktypes.Handle { return c.h }

func (c *procCtx) Killed() bool {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	p := c.k.procAt(c.h)
	return p != nil && p.Killed
}

// Yield gives up the CPU cooperatively: mark RUNNABLE under
// the lock, release, hand control back to the scheduler, then block until
// redispatched.
func (c *procCtx) Yield() {
	c.k.mu.Lock()
	p := c.k.procAt(c.h)
	if p == nil {
		c.k.mu.Unlock()
		return
	}
	p.State = ktypes.ProcRunnable
	c.k.mu.Unlock()

	p.SchedOut() <- struct{}{}
	<-p.SchedIn()
}

// Sleep is the process side of sleep(chan, lock): mark SLEEPING with the
// given channel key under the lock, release, hand control back to the
// scheduler, and block until a matching Wakeup (or Kill) makes this
// process RUNNABLE and the scheduler redispatches it.
func (c *procCtx) Sleep(key any) {
	c.k.mu.Lock()
	p := c.k.procAt(c.h)
	if p == nil {
		c.k.mu.Unlock()
		return
	}
	p.Chan = key
	p.State = ktypes.ProcSleeping
	c.k.mu.Unlock()

	p.SchedOut() <- struct{}{}
	<-p.SchedIn()

	c.k.mu.Lock()
	if p2 := c.k.procAt(c.h); p2 != nil {
		p2.Chan = nil
	}
	c.k.mu.Unlock()
}

// Exit delegates to Kernel.exit, which never returns.
func (c *procCtx) Exit() {
	c.k.exit(c.h)
}

// runProcess is the goroutine body backing a process slot: park until the
// scheduler's first dispatch, run the entry point, and fall through to an
// implicit exit(0) if the entry point returns without calling Exit
// itself (Exit never returns, via runtime.Goexit, so this line only
// executes in the implicit-exit case).
func (k *Kernel) runProcess(h ktypes.Handle) {
	k.mu.Lock()
	p := k.procAt(h)
	k.mu.Unlock()
	if p == nil {
		return
	}

	<-p.SchedIn()

	rc := newSyscalls(k, &procCtx{k: k, h: h})
	if entry := p.Entry(); entry != nil {
		entry(rc)
	}
	k.exit(h)
}
