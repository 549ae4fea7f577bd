// Package kernel implements the container-aware process lifecycle
// manager: two coarse-locked tables (containers, each owning a fixed
// process table), a container-granular round-robin scheduler, sleep and
// wakeup, fork/exit/wait with cross-container orphan adoption, and the
// container control API (create/start/pause/resume/stop/cfork).
//
// Every process gets its own goroutine, parked on a channel until the
// scheduler decides to run it — the goroutine-handshake stand-in for a
// real kernel's kstack-and-swtch context switch. Everything exported
// here acquires the Kernel's single coarse lock for the duration of any
// state-table mutation, and releases it before doing anything that could
// block (a context switch, a host filesystem call).
package kernel
