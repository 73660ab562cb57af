package mmu

import (
	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// RegionClass classifies a physical region for PMA purposes (spec §4.3
// "region class, size, alignment, access type, and the neighborhood's
// MPROT register").
type RegionClass int

const (
	ClassIO RegionClass = iota
	ClassSP
	ClassScratchpad
	ClassESR
	ClassPCIe
	ClassDRAM
	ClassDRAMUncacheable
)

// uncacheableAliasBase is the high bit that mirrors DRAM through an
// "uncacheable" alias (spec §4.1 table, spec §6 "DRAM | 0x40_00000000").
const uncacheableAliasBase = 0x40_0000_0000

// ClassifyAddr returns the region class and the base physical address
// after collapsing any uncacheable alias (spec §4.1: "the emulator
// collapses it to the base physical address after PMA check").
func ClassifyAddr(addr uint64, dramBase, dramSize uint64) (RegionClass, uint64) {
	alias := dramBase + uncacheableAliasBase
	if addr >= alias && addr < alias+dramSize {
		return ClassDRAMUncacheable, addr - uncacheableAliasBase
	}
	if addr >= dramBase && addr < dramBase+dramSize {
		return ClassDRAM, addr
	}
	switch {
	case addr >= 0x00_0000_0000 && addr < 0x00_4000_0000:
		return ClassIO, addr
	case addr >= 0x00_4000_0000 && addr < 0x00_8000_0000:
		return ClassSP, addr
	case addr >= 0x00_8000_0000 && addr < 0x01_0000_0000:
		return ClassScratchpad, addr
	case addr >= 0x01_0000_0000 && addr < 0x02_0000_0000:
		return ClassESR, addr
	case addr >= 0x40_0000_0000 && addr < 0x80_0000_0000:
		return ClassPCIe, addr
	default:
		return ClassIO, addr
	}
}

// MPROT is the neighborhood's memory-protection register (spec §4.3).
// A zero value permits everything; bits narrow the permitted access.
type MPROT struct {
	DenyWrite bool
	DenyExec  bool
}

// PMA is the physical-memory-attribute checker (spec §4.3 "PMA check").
type PMA struct {
	DRAMBase uint64
	DRAMSize uint64

	// MPROTOf looks up the MPROT register of the neighborhood the
	// accessing agent belongs to; nil means "no MPROT restriction"
	// (used by non-hart agents such as the loader and debug module).
	MPROTOf func(agent memregion.Agent) MPROT
}

func (p *PMA) mprot(agent memregion.Agent) MPROT {
	if p.MPROTOf == nil {
		return MPROT{}
	}
	return p.MPROTOf(agent)
}

// CheckAndAccess validates a page-table-walk read against the PMA
// without needing the rewritten address (the PTW path, spec §4.3
// "pma_check_ptw_access"); mem/status are accepted for symmetry with
// the data-access call sites but the walk never rewrites its own PTE
// address.
func (p *PMA) CheckAndAccess(mem *memregion.PhysicalMemory, agent memregion.Agent, addr uint64, n int, access AccessType, status Status) error {
	_, err := p.Check(agent, addr, n, access)
	return err
}

// Check performs the PMA validation and returns the (possibly rewritten)
// final physical address, or the AccessFault/StoreAccessFault the spec
// calls for.
func (p *PMA) Check(agent memregion.Agent, addr uint64, n int, access AccessType) (uint64, error) {
	class, pa := ClassifyAddr(addr, p.DRAMBase, p.DRAMSize)

	if class == ClassESR {
		if n != 8 || pa%8 != 0 {
			return 0, faultFor(access, addr)
		}
	}

	if access == AccessAtomic && (class == ClassIO || class == ClassSP || class == ClassPCIe) {
		// Atomics to non-cacheable regions are forbidden (spec §4.3).
		return 0, faultFor(access, addr)
	}

	if class == ClassDRAMUncacheable && (access == AccessStore || access == AccessAtomic) {
		if !isServiceProcessor(agent) {
			return 0, trapkind.NewTrap(trapkind.CauseStoreAccessFault, addr)
		}
	}

	mp := p.mprot(agent)
	if (access == AccessStore || access == AccessAtomic) && mp.DenyWrite {
		return 0, faultFor(access, addr)
	}
	if access == AccessFetch && mp.DenyExec {
		return 0, trapkind.NewTrap(trapkind.CauseInstructionAccessFault, addr)
	}

	return pa, nil
}

func isServiceProcessor(agent memregion.Agent) bool {
	return agent.AgentName() == string(memregion.AgentServiceProc)
}

func faultFor(access AccessType, addr uint64) error {
	switch access {
	case AccessFetch:
		return trapkind.NewTrap(trapkind.CauseInstructionAccessFault, addr)
	case AccessStore, AccessAtomic:
		return trapkind.NewTrap(trapkind.CauseStoreAccessFault, addr)
	default:
		return trapkind.NewTrap(trapkind.CauseLoadAccessFault, addr)
	}
}

const l1dLineBytes = 64

// SplitLineCrossing splits a scalar access spanning an L1D line boundary
// into two sub-accesses, in order (spec §4.3 "Line-crossing accesses").
// It returns a single-element slice when addr..addr+n does not cross a
// line boundary.
func SplitLineCrossing(addr uint64, n int) []AccessSpan {
	end := addr + uint64(n)
	lineEnd := (addr/l1dLineBytes + 1) * l1dLineBytes
	if end <= lineEnd {
		return []AccessSpan{{Addr: addr, Bytes: n}}
	}
	firstLen := int(lineEnd - addr)
	return []AccessSpan{
		{Addr: addr, Bytes: firstLen},
		{Addr: lineEnd, Bytes: n - firstLen},
	}
}

// AccessSpan is one PMA-checked sub-access produced by SplitLineCrossing.
type AccessSpan struct {
	Addr  uint64
	Bytes int
}
