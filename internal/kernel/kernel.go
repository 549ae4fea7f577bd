// Package kernel is the coarse-locked core of the container-aware process
// lifecycle manager: the container table, each container's process table,
// the round-robin scheduler, sleep/wakeup, fork/exit/wait, and the
// container control API. Every mutating operation lives here, split
// across files the way the reference kernel groups
// them by concern (ctable.go, ptable.go, lifecycle.go, scheduler.go,
// sleep.go, procops.go, control.go) rather than in one file.
package kernel

import (
	"sync"

	"github.com/cuemby/kcont/internal/klog"
	"github.com/cuemby/kcont/pkg/ktypes"
	"github.com/rs/zerolog"
)

// DefaultNCont and DefaultNProc mirror the reference kernel's param.h
// NCONT/NPROC: fixed table sizes chosen at boot.
const (
	DefaultNCont = 16
	DefaultNProc = 64
)

// Config configures a new Kernel.
type Config struct {
	NCont int // container table size; DefaultNCont if zero
	NProc int // per-container process table size; DefaultNProc if zero
	CPUs  int // number of simulated per-CPU scheduler loops; 1 if zero
}

// Kernel holds every piece of mutable state this subsystem owns: the
// container table (with each container's own process table embedded),
// the cid/pid counters, and the "current running container" pointer used
// for fork inheritance. Every field below is protected by mu — the single
// coarse lock this port collapses the container-table and
// process-table locks into.
type Kernel struct {
	mu sync.Mutex

	conts []ktypes.Container

	nextCID int64
	nextPID int64

	// curCont is the "current running container" pointer set by Boot (to
	// the root container), Start and Resume, and cleared by Pause/Stop;
	// authoritative only for fork
	// inheritance. -1 means unset (root implied).
	curCont int

	// runningCont enforces this port's Open Question decision: at most
	// one container RUNNING system-wide. The scheduler reads and writes
	// it; stopContainerLocked also clears it when the container it names
	// is stopped. -1 means no container is RUNNING.
	runningCont int

	rootCont int // index of the root container, always 0 once booted
	initProc ktypes.Handle

	logger zerolog.Logger

	cpuCount int
	stopCh   chan struct{}
	schedWG  sync.WaitGroup
	booted   bool
}

// New allocates a Kernel with fixed-size container and process tables. It
// does not boot the root container; call Boot for that.
func New(cfg Config) *Kernel {
	nCont := cfg.NCont
	if nCont <= 0 {
		nCont = DefaultNCont
	}
	nProc := cfg.NProc
	if nProc <= 0 {
		nProc = DefaultNProc
	}
	cpus := cfg.CPUs
	if cpus <= 0 {
		cpus = 1
	}

	k := &Kernel{
		conts:       make([]ktypes.Container, nCont),
		nextCID:     1,
		nextPID:     1,
		curCont:     -1,
		runningCont: -1,
		rootCont:    -1,
		logger:      klog.WithComponent("kernel"),
		cpuCount:    cpus,
	}
	for i := range k.conts {
		k.conts[i].Procs = make([]ktypes.Process, nProc)
	}
	return k
}

// NCont and NProc report the table sizes this Kernel was constructed
// with, mostly useful to tests and the CLI's `cps` rendering.
func (k *Kernel) NCont() int { return len(k.conts) }
func (k *Kernel) NProc() int {
	if len(k.conts) == 0 {
		return 0
	}
	return len(k.conts[0].Procs)
}
