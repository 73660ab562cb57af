// Package mmu implements virtual-to-physical address translation (bare,
// Sv39, Sv48 page tables), A/D-bit enforcement and the physical-memory
// attribute (PMA) check applied after translation (spec §4.3).
package mmu

import (
	"encoding/binary"

	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/priv"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// Mode is the active SATP/MATP translation mode (spec §4.3 "bare /
// 39-bit / 48-bit page tables").
type Mode int

const (
	ModeBare Mode = iota
	ModeSv39
	ModeSv48
)

// AccessType is the class of memory access being translated (spec §4.3).
type AccessType int

const (
	AccessFetch AccessType = iota
	AccessLoad
	AccessStore
	AccessAtomic
	AccessPTW // page-table-walk read, routed through pma_check_ptw_access
)

// Status carries the MSTATUS bits the walker and permission check need
// (spec §4.3 "Permission matrix honours MSTATUS.SUM, MSTATUS.MXR").
type Status struct {
	SUM  bool
	MXR  bool
	MPRV bool
	MPP  priv.Level
}

// Request describes one translation request (spec §4.3 "Translation").
type Request struct {
	VA     uint64
	Bytes  int
	Access AccessType
	Mode   Mode
	RootPA uint64 // satp/matp root PPN * page size
	Priv   priv.Level
	Status Status
}

// effectivePrivilege computes the mode used for this access (spec §4.3:
// "effective mode is M for instruction fetch or the current prv; for
// data accesses it is MPP when MPRV=1 else prv").
func effectivePrivilege(req Request) priv.Level {
	if req.Access == AccessFetch {
		return req.Priv
	}
	if req.Status.MPRV {
		return req.Status.MPP
	}
	return req.Priv
}

const pageSize = 4096
const pteSize = 8

type levelSpec struct {
	levels  int
	vaBits  int
	ppnBits []int // bits per PPN field, outermost first
}

func (m Mode) spec() levelSpec {
	switch m {
	case ModeSv39:
		return levelSpec{levels: 3, vaBits: 39, ppnBits: []int{26, 9, 9}}
	case ModeSv48:
		return levelSpec{levels: 4, vaBits: 48, ppnBits: []int{26, 9, 9, 9}}
	default:
		return levelSpec{levels: 0}
	}
}

// pte bit layout (RV64 Sv39/Sv48).
const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7
)

func causeFor(access AccessType) (pageFault, accessFault trapkind.Cause) {
	switch access {
	case AccessFetch:
		return trapkind.CauseInstructionPageFault, trapkind.CauseInstructionAccessFault
	case AccessStore, AccessAtomic:
		return trapkind.CauseStorePageFault, trapkind.CauseStoreAccessFault
	default:
		return trapkind.CauseLoadPageFault, trapkind.CauseLoadAccessFault
	}
}

// Translate performs the full VA->PA translation (spec §4.3): bare mode
// masks VA to PA; otherwise a 3- or 4-level walk through PTEs read via
// the PTW PMA path, honouring SUM/MXR and A/D-bit enforcement.
func Translate(mem *memregion.PhysicalMemory, pma *PMA, agent memregion.Agent, req Request) (uint64, error) {
	pageFaultCause, accessFaultCause := causeFor(req.Access)

	if req.Mode == ModeBare {
		return req.VA, nil
	}

	spec := req.Mode.spec()
	vpn := make([]uint64, spec.levels)
	shift := 12
	for i := spec.levels - 1; i >= 0; i-- {
		bits := spec.ppnBits[spec.levels-1-i]
		vpn[i] = (req.VA >> uint(shift)) & ((1 << uint(bits)) - 1)
		shift += bits
	}

	effPriv := effectivePrivilege(req)

	pa := req.RootPA
	var leaf uint64
	var leafLevel int
	for level := spec.levels - 1; level >= 0; level-- {
		pteAddr := pa + vpn[level]*pteSize
		buf := make([]byte, 8)
		if err := pma.CheckAndAccess(mem, agent, pteAddr, 8, AccessPTW, req.Status); err != nil {
			return 0, trapkind.NewTrap(accessFaultCause, req.VA)
		}
		if err := mem.Read(agent, pteAddr, 8, buf); err != nil {
			return 0, trapkind.NewTrap(accessFaultCause, req.VA)
		}
		pte := binary.LittleEndian.Uint64(buf)

		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return 0, trapkind.NewTrap(pageFaultCause, req.VA)
		}

		isLeaf := pte&(pteR|pteX) != 0
		if !isLeaf {
			pa = ((pte >> 10) & 0x0FFF_FFFF_FFFF) * pageSize
			continue
		}

		leaf = pte
		leafLevel = level
		break
	}

	if leaf == 0 {
		return 0, trapkind.NewTrap(pageFaultCause, req.VA)
	}

	if leafLevel != 0 {
		// Superpage: all PPN bits below leafLevel must be zero, else
		// misaligned superpage (spec §4.3 "a mis-aligned super-page").
		for i := 0; i < leafLevel; i++ {
			shift := 12
			for j := spec.levels - 1; j > i; j-- {
				shift += spec.ppnBits[spec.levels-1-j]
			}
			bits := spec.ppnBits[spec.levels-1-i]
			if (leaf>>10)&((1<<uint(bits))-1)<<uint(shift-12) != 0 {
				return 0, trapkind.NewTrap(pageFaultCause, req.VA)
			}
		}
	}

	if err := checkPermission(leaf, req, effPriv); err != nil {
		return 0, err
	}

	if leaf&pteA == 0 {
		return 0, trapkind.NewTrap(pageFaultCause, req.VA)
	}
	if (req.Access == AccessStore || req.Access == AccessAtomic) && leaf&pteD == 0 {
		return 0, trapkind.NewTrap(pageFaultCause, req.VA)
	}

	ppn := (leaf >> 10) & 0x0FFF_FFFF_FFFF
	pageOffsetMask := uint64(pageSize - 1)
	return (ppn * pageSize) | (req.VA & pageOffsetMask), nil
}

func checkPermission(pte uint64, req Request, effPriv priv.Level) error {
	pageFaultCause, _ := causeFor(req.Access)

	switch req.Access {
	case AccessFetch:
		if pte&pteX == 0 {
			return trapkind.NewTrap(pageFaultCause, req.VA)
		}
	case AccessStore, AccessAtomic:
		if pte&pteW == 0 {
			return trapkind.NewTrap(pageFaultCause, req.VA)
		}
	default:
		if pte&pteR == 0 {
			if !(req.Status.MXR && pte&pteX != 0) {
				return trapkind.NewTrap(pageFaultCause, req.VA)
			}
		}
	}

	isUserPage := pte&pteU != 0
	if effPriv == priv.User && !isUserPage {
		return trapkind.NewTrap(pageFaultCause, req.VA)
	}
	if effPriv == priv.Supervisor && isUserPage && !req.Status.SUM {
		return trapkind.NewTrap(pageFaultCause, req.VA)
	}
	return nil
}
