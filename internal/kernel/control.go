package kernel

import (
	"fmt"
	"os"

	"github.com/cuemby/kcont/internal/kernerr"
	"github.com/cuemby/kcont/internal/kmetrics"
	"github.com/cuemby/kcont/pkg/kpath"
	"github.com/cuemby/kcont/pkg/ktypes"
)

// Create implements `cont create <path>`: derive the
// container's name from the final path component, allocate a container
// slot, and bind it to a real host directory so the rest of this port is
// actually runnable. The directory must already exist — filesystem
// creation is treated as external kernel territory.
func (k *Kernel) Create(fullpath string) (int64, error) {
	name, ok := kpath.Base(fullpath, ktypes.MaxNameLen)
	if !ok {
		return 0, fmt.Errorf("container name from %q exceeds %d bytes: %w", fullpath, ktypes.MaxNameLen, kernerr.ErrCapacity)
	}
	if len(fullpath) > ktypes.MaxRootPathLen {
		return 0, fmt.Errorf("rootpath %q exceeds %d bytes: %w", fullpath, ktypes.MaxRootPathLen, kernerr.ErrCapacity)
	}

	k.mu.Lock()
	if _, exists := k.lookupContainerByName(name); exists {
		k.mu.Unlock()
		return 0, fmt.Errorf("container %q: %w", name, kernerr.ErrAlreadyExists)
	}
	idx, err := k.allocContainer()
	if err != nil {
		k.mu.Unlock()
		return 0, err
	}
	k.mu.Unlock()

	// Resolve the root directory outside the lock, mirroring the
	// lockless post-allocation work allocproc does for kstack/pgdir.
	info, statErr := os.Stat(fullpath)
	if statErr != nil || !info.IsDir() {
		k.mu.Lock()
		k.conts[idx].State = ktypes.ContainerFree
		k.mu.Unlock()
		return 0, fmt.Errorf("resolve rootpath %q: %w", fullpath, kernerr.ErrPathResolution)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	c := &k.conts[idx]
	c.Name = name
	c.RootPath = fullpath
	c.RootDir = &ktypes.RootDir{Path: fullpath}
	c.NextProc = 0
	c.State = ktypes.ContainerReady
	k.logger.Info().Str("name", name).Int64("cid", c.CID).Str("rootpath", fullpath).Msg("container created")
	return c.CID, nil
}

// Start implements `cont start <name>`: move a container
// to RUNNABLE and mark it the "current container" fork inheritance uses.
// Policy (caller must be inside the container's rootpath) is the CLI
// layer's job, not the kernel's — see cmd/cont, which calls
// kpath.IsPrefix before reaching here.
func (k *Kernel) Start(name string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, ok := k.lookupContainerByName(name)
	if !ok {
		return 0, fmt.Errorf("container %q: %w", name, kernerr.ErrNotFound)
	}
	if !containerCanStart(k.conts[idx].State) {
		return 0, fmt.Errorf("container %q: %w", name, kernerr.ErrInvalidState)
	}
	k.conts[idx].State = ktypes.ContainerRunnable
	k.curCont = idx
	return k.conts[idx].CID, nil
}

// Pause implements `cont pause <name>`: move a RUNNABLE or
// RUNNING container to PAUSED and clear it as the current container.
func (k *Kernel) Pause(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, ok := k.lookupContainerByName(name)
	if !ok {
		return fmt.Errorf("container %q: %w", name, kernerr.ErrNotFound)
	}
	if !containerCanPause(k.conts[idx].State) {
		return fmt.Errorf("container %q: %w", name, kernerr.ErrInvalidState)
	}
	k.conts[idx].State = ktypes.ContainerPaused
	if k.curCont == idx {
		k.curCont = -1
	}
	return nil
}

// Resume implements `cont resume <name>`: move a PAUSED
// container back to RUNNABLE. Like Start, the rootpath policy check is
// the CLI's responsibility.
func (k *Kernel) Resume(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, ok := k.lookupContainerByName(name)
	if !ok {
		return fmt.Errorf("container %q: %w", name, kernerr.ErrNotFound)
	}
	if !containerCanResume(k.conts[idx].State) {
		return fmt.Errorf("container %q: %w", name, kernerr.ErrInvalidState)
	}
	k.conts[idx].State = ktypes.ContainerRunnable
	k.curCont = idx
	return nil
}

// Stop implements `cont stop <name>`: zombie-and-reparent
// every process the container owns, moving it to STOPPING (or straight
// to FREE if it had none).
func (k *Kernel) Stop(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, ok := k.lookupContainerByName(name)
	if !ok {
		return fmt.Errorf("container %q: %w", name, kernerr.ErrNotFound)
	}
	if !containerCanStop(k.conts[idx].State) {
		return fmt.Errorf("container %q: %w", name, kernerr.ErrInvalidState)
	}
	k.stopContainerLocked(idx)
	return nil
}

// CFork implements `cont cfork <name>`: fork a new process
// directly into the named container, parented to root init, regardless
// of which process calls it or what the current container is.
func (k *Kernel) CFork(name string, entry ktypes.Entrypoint) (int64, error) {
	k.mu.Lock()
	idx, ok := k.lookupContainerByName(name)
	if !ok {
		k.mu.Unlock()
		return 0, fmt.Errorf("container %q: %w", name, kernerr.ErrNotFound)
	}
	cid := k.conts[idx].CID
	k.mu.Unlock()
	return k.Fork(ktypes.Handle{}, &cid, entry)
}

// RootDirOf implements getcontrootdir: resolve a container's rootpath by
// name.
func (k *Kernel) RootDirOf(name string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, ok := k.lookupContainerByName(name)
	if !ok {
		return "", fmt.Errorf("container %q: %w", name, kernerr.ErrNotFound)
	}
	return k.conts[idx].RootPath, nil
}

// CurrentRootDir implements cgetrootdir: the rootpath of the "current
// container" (root's, if none is set).
func (k *Kernel) CurrentRootDir() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx := k.curCont
	if idx < 0 {
		idx = k.rootCont
	}
	if idx < 0 || idx >= len(k.conts) {
		return "/"
	}
	return k.conts[idx].RootPath
}

// ContainerSnapshot is a point-in-time, lock-free copy of one container
// slot's state, for cps()/inspection without holding k.mu across I/O.
type ContainerSnapshot struct {
	CID      int64
	Name     string
	RootPath string
	State    ktypes.ContainerState
	Procs    []ProcSnapshot
}

// ProcSnapshot is the per-process counterpart of ContainerSnapshot.
type ProcSnapshot struct {
	PID   int64
	State ktypes.ProcState
	Name  string
}

// PS implements cps(): a snapshot of every non-FREE container and its
// non-FREE processes, restoring the reference implementation's quirk of
// always showing a synthetic pid-1 "init" entry per container even
// though this port's init is a single real root process — see
// SPEC_FULL.md's Supplemented Features.
func (k *Kernel) PS() []ContainerSnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]ContainerSnapshot, 0, len(k.conts))
	kmetrics.ProcessesByState.Reset()
	for ci := range k.conts {
		cont := &k.conts[ci]
		if cont.State == ktypes.ContainerFree {
			continue
		}
		snap := ContainerSnapshot{CID: cont.CID, Name: cont.Name, RootPath: cont.RootPath, State: cont.State}
		if ci != k.rootCont {
			snap.Procs = append(snap.Procs, ProcSnapshot{PID: 1, State: ktypes.ProcRunnable, Name: "init"})
		}
		for si := range cont.Procs {
			p := &cont.Procs[si]
			if p.State == ktypes.ProcFree {
				continue
			}
			snap.Procs = append(snap.Procs, ProcSnapshot{PID: p.PID, State: p.State, Name: p.Name})
			kmetrics.ProcessesByState.WithLabelValues(p.State.String()).Inc()
		}
		out = append(out, snap)
	}
	kmetrics.ContainersByState.Reset()
	for _, s := range out {
		kmetrics.ContainersByState.WithLabelValues(s.State.String()).Inc()
	}
	return out
}
