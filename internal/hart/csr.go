package hart

import (
	"github.com/sarchlab/shiresim/internal/core"
	"github.com/sarchlab/shiresim/internal/priv"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// CSR addresses for the subset this emulator decodes (spec §3 "CSRs").
// csrStall and the csrTensor* block below have no fixed address in the
// filtered reference sources; the numbering here is this emulator's own
// assignment in the unused 0x7C0-0x7CF vendor window (an Open Question
// decision, see DESIGN.md).
const (
	csrMStatus  = 0x300
	csrMIE      = 0x304
	csrMTVec    = 0x305
	csrMScratch = 0x340
	csrMEPC     = 0x341
	csrMCause   = 0x342
	csrMTVal    = 0x343
	csrMIP      = 0x344
	csrMIDeleg  = 0x303
	csrMEDeleg  = 0x302
	csrDCSR     = 0x7B0
	csrDPC      = 0x7B1
	csrDData0   = 0x7B2
	csrTData1   = 0x7A1
	csrTData2   = 0x7A2

	csrStall = 0x7C0

	csrTensorLoad   = 0x7C1
	csrTensorFMA    = 0x7C2
	csrTensorStore  = 0x7C3
	csrTensorQuant  = 0x7C4
	csrTensorReduce = 0x7C5
	csrTensorWaitLoad   = 0x7C6
	csrTensorWaitFMA    = 0x7C7
	csrTensorWaitStore  = 0x7C8
	csrTensorWaitQuant  = 0x7C9
	csrTensorWaitReduce = 0x7CA
)

func (h *Hart) readCSR(addr uint32) (uint64, error) {
	switch addr {
	case csrMStatus:
		return h.CSR.MStatus, nil
	case csrMIE:
		return h.CSR.MIE, nil
	case csrMTVec:
		return h.CSR.MTVec, nil
	case csrMScratch:
		return h.CSR.MScratch, nil
	case csrMEPC:
		return h.CSR.MEPC, nil
	case csrMCause:
		return h.CSR.MCause, nil
	case csrMTVal:
		return h.CSR.MTVal, nil
	case csrMIP:
		return h.CSR.MIP, nil
	case csrMIDeleg:
		return h.CSR.MIDeleg, nil
	case csrMEDeleg:
		return h.CSR.MEDeleg, nil
	case csrDCSR:
		return h.Debug.DCSR, nil
	case csrDPC:
		return h.Debug.DPC, nil
	case csrDData0:
		return h.Debug.DData0, nil
	case csrTData1:
		return h.Debug.TData1, nil
	case csrTData2:
		return h.Debug.TData2, nil
	default:
		return 0, trapkind.IllegalInstruction(addr)
	}
}

func (h *Hart) writeCSR(addr uint32, v uint64) error {
	switch addr {
	case csrMStatus:
		h.CSR.MStatus = v
	case csrMIE:
		h.CSR.MIE = v
	case csrMTVec:
		h.CSR.MTVec = v
	case csrMScratch:
		h.CSR.MScratch = v
	case csrMEPC:
		h.CSR.MEPC = v &^ 1
	case csrMCause:
		h.CSR.MCause = v
	case csrMTVal:
		h.CSR.MTVal = v
	case csrMIP:
		h.CSR.MIP = v
	case csrMIDeleg:
		h.CSR.MIDeleg = v
	case csrMEDeleg:
		h.CSR.MEDeleg = v
	case csrDCSR:
		h.Debug.DCSR = v
	case csrDPC:
		h.Debug.DPC = v
	case csrDData0:
		h.Debug.DData0 = v
	case csrTData1:
		h.Debug.TData1 = v
	case csrTData2:
		h.Debug.TData2 = v
	default:
		return trapkind.IllegalInstruction(addr)
	}
	return nil
}

// execSystem handles CSR access, ECALL/EBREAK, MRET and WFI (opcode
// SYSTEM, spec §3 CSRs + §4.6 debug entry on ebreak-while-debugging).
func (h *Hart) execSystem(raw uint32, rd, funct3, rs1 uint32) error {
	csrAddr := raw >> 20

	switch funct3 {
	case 0:
		return h.execSystemNonCSR(raw, csrAddr)
	case 1, 2, 3: // CSRRW, CSRRS, CSRRC
		return h.execCSRReg(rd, funct3, rs1, csrAddr)
	case 5, 6, 7: // CSRRWI, CSRRSI, CSRRCI
		return h.execCSRImm(rd, funct3, rs1, csrAddr)
	default:
		return trapkind.IllegalInstruction(raw)
	}
}

func (h *Hart) execSystemNonCSR(raw, csrAddr uint32) error {
	switch csrAddr {
	case 0x000: // ECALL
		return trapkind.NewTrap(ecallCause(h.Priv), 0)
	case 0x001: // EBREAK
		if h.InProgBuf {
			return nil
		}
		return trapkind.NewDebugEntry(trapkind.DebugCauseBreakpoint)
	case 0x302: // MRET
		return h.execMRet()
	case 0x105: // WFI
		h.StartWaiting(WaitInterrupt)
		return nil
	default:
		return trapkind.IllegalInstruction(raw)
	}
}

func ecallCause(p priv.Level) trapkind.Cause {
	switch p {
	case priv.User:
		return 8
	case priv.Supervisor:
		return 9
	default:
		return 11
	}
}

func (h *Hart) execMRet() error {
	mpp := priv.Level((h.CSR.MStatus >> mstatusMPPShift) & mstatusMPPMask)
	mpie := h.CSR.MStatus&mstatusMPIE != 0

	h.CSR.MStatus &^= mstatusMPPMask << mstatusMPPShift
	h.CSR.MStatus &^= mstatusMIE
	if mpie {
		h.CSR.MStatus |= mstatusMIE
	}
	h.CSR.MStatus |= mstatusMPIE

	h.Priv = mpp
	h.NPC = h.CSR.MEPC
	h.Fetch.Invalidate()
	return nil
}

func (h *Hart) execCSRReg(rd, funct3, rs1, csrAddr uint32) error {
	if isTensorCSR(csrAddr) {
		if funct3 != 1 {
			return trapkind.IllegalInstruction(csrAddr)
		}
		if err := h.execTensorCSR(csrAddr, h.X[rs1]); err != nil {
			return err
		}
		h.setX(rd, 0)
		return nil
	}
	if csrAddr == csrStall {
		if funct3 != 1 {
			return trapkind.IllegalInstruction(csrAddr)
		}
		h.execStall()
		h.setX(rd, 0)
		return nil
	}

	old, err := h.readCSR(csrAddr)
	if err != nil {
		return err
	}
	src := h.X[rs1]
	var next uint64
	switch funct3 {
	case 1:
		next = src
	case 2:
		next = old | src
	case 3:
		next = old &^ src
	}
	if funct3 == 1 || rs1 != 0 {
		if err := h.writeCSR(csrAddr, next); err != nil {
			return err
		}
	}
	h.setX(rd, old)
	return nil
}

// execStall implements the vendor CSR_STALL write: parks the hart
// Waiting(interrupt) unless it holds exclusive mode or an enabled
// interrupt is already pending (original_source/sw-sysemu/insns/
// zicsr.cpp "CSR_STALL": "if (!cpu.core->excl_mode) { if
// (((mip|ext_seip)&mie)==0) start_waiting(interrupt) }").
func (h *Hart) execStall() {
	if h.Core.ExclMode != core.ExclNone {
		return
	}
	if (h.CSR.MIP|h.ExtSEIP)&h.CSR.MIE != 0 {
		return
	}
	h.StartWaiting(WaitInterrupt)
}

func (h *Hart) execCSRImm(rd, funct3, rs1, csrAddr uint32) error {
	old, err := h.readCSR(csrAddr)
	if err != nil {
		return err
	}
	imm := uint64(rs1)
	var next uint64
	switch funct3 {
	case 5:
		next = imm
	case 6:
		next = old | imm
	case 7:
		next = old &^ imm
	}
	if funct3 == 5 || rs1 != 0 {
		if err := h.writeCSR(csrAddr, next); err != nil {
			return err
		}
	}
	h.setX(rd, old)
	return nil
}
