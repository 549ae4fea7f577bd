/*
Package ktypes defines the data structures shared by every subsystem of the
container-aware process lifecycle manager: the container slot, the process
slot it owns an array of, their state enumerations, and the generation-
checked Handle type used for cross-container back-references (a process
adopted by root init after its container is stopped still lives in its
original container's process array, but its parent field now points across
container boundaries).

Nothing in this package acquires a lock or drives a transition; it is pure
data plus the narrow RunContext interface a process entry point uses to
call back into the scheduler (Sleep, Yield, Exit, Killed). All mutation
happens in internal/kernel, which is the only package that should reach
past these accessor methods into the scheduling channels.
*/
package ktypes
