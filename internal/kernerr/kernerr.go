// Package kernerr carries this port's error taxonomy as sentinel errors
// instead of the original kernel's negative-int return codes.
package kernerr

import "errors"

// Sentinels, one per error kind. Wrap with fmt.Errorf("...: %w", Kind)
// at the call site to add context; callers test kind with errors.Is.
var (
	ErrCapacity       = errors.New("capacity exceeded")
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidState   = errors.New("invalid state for requested transition")
	ErrPolicy         = errors.New("policy violation")
	ErrPathResolution = errors.New("path does not resolve to a directory")
	ErrNoChildren     = errors.New("no children")
)

// Is reports whether err wraps target, a thin re-export so callers don't
// need a second import for the common case.
func Is(err, target error) bool { return errors.Is(err, target) }
