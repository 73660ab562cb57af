package chip

import (
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/mmu"
)

// satp mode field encoding. spec.md names "bare / 39-bit / 48-bit page
// tables" but not satp's bit layout; this emulator follows the
// standard RISC-V Sv39/Sv48 satp encoding (mode in bits[63:60], root
// PPN in bits[43:0]) as the natural choice for an RV64 satp/matp CSR —
// an Open Question decision, see DESIGN.md.
const (
	satpModeBare = 0
	satpModeSv39 = 8
	satpModeSv48 = 9
)

func decodeSATP(satp uint64) (mmu.Mode, uint64) {
	mode := satp >> 60
	ppn := satp & ((1 << 44) - 1)
	switch mode {
	case satpModeSv39:
		return mmu.ModeSv39, ppn * 4096
	case satpModeSv48:
		return mmu.ModeSv48, ppn * 4096
	default:
		return mmu.ModeBare, 0
	}
}

// hartTranslator adapts mmu.Translate to the hart.Translator contract
// for one specific hart, pulling satp/matp mode from its owning Core
// (spec §3 "Core: satp, matp").
type hartTranslator struct {
	chip *Chip
	h    *hart.Hart
}

func (t hartTranslator) Translate(mem hart.Memory, agent memregion.Agent, va uint64, bytes int, access mmu.AccessType, status mmu.Status) (uint64, error) {
	satp := t.h.Core.SATP
	if t.h.Priv == 0 {
		// User mode programs run under matp when it is nonzero and fall
		// back to satp otherwise; every other privilege uses satp.
		satp = t.h.Core.MATP
		if satp == 0 {
			satp = t.h.Core.SATP
		}
	}
	mode, rootPA := decodeSATP(satp)
	req := mmu.Request{
		VA:     va,
		Bytes:  bytes,
		Access: access,
		Mode:   mode,
		RootPA: rootPA,
		Priv:   t.h.Priv,
		Status: status,
	}
	return mmu.Translate(t.chip.Memory, t.chip.PMA, agent, req)
}

// TranslatorFor builds the Translator hart.Step needs for hart h.
func (c *Chip) TranslatorFor(h *hart.Hart) hart.Translator {
	return hartTranslator{chip: c, h: h}
}
