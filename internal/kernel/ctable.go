package kernel

import (
	"github.com/cuemby/kcont/internal/kernerr"
	"github.com/cuemby/kcont/pkg/ktypes"
)

// allocContainer finds a FREE container slot, transitions it to EMBRYO,
// and assigns the next cid. Caller must hold k.mu.
func (k *Kernel) allocContainer() (int, error) {
	for i := range k.conts {
		if k.conts[i].State == ktypes.ContainerFree {
			k.conts[i].State = ktypes.ContainerEmbryo
			k.conts[i].CID = k.nextCID
			k.conts[i].Name = ""
			k.conts[i].RootPath = ""
			k.conts[i].RootDir = nil
			k.conts[i].NextProc = 0
			k.nextCID++
			return i, nil
		}
	}
	return -1, kernerr.ErrCapacity
}

// lookupContainerByName returns the index of the first non-FREE slot
// whose name equals name exactly: a full, length-equal comparison, never
// the bounded-length prefix compare the reference implementation's
// strncmp(..., DIRSIZ) performs — see DESIGN.md's Open Question
// decisions, which call that strncmp a latent bug this port does not
// reproduce. Caller must hold k.mu.
func (k *Kernel) lookupContainerByName(name string) (int, bool) {
	for i := range k.conts {
		if k.conts[i].State != ktypes.ContainerFree && k.conts[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// lookupContainerByCID returns the index of the non-FREE slot with the
// given cid. Caller must hold k.mu.
func (k *Kernel) lookupContainerByCID(cid int64) (int, bool) {
	for i := range k.conts {
		if k.conts[i].State != ktypes.ContainerFree && k.conts[i].CID == cid {
			return i, true
		}
	}
	return -1, false
}
