package hart

import (
	"encoding/binary"

	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/mmu"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

// Memory is the chip-owned physical memory bus a hart fetches/loads/
// stores through (spec §2 "PhysicalMemory").
type Memory interface {
	Read(agent memregion.Agent, addr uint64, n int, buf []byte) error
	Write(agent memregion.Agent, addr uint64, n int, buf []byte) error
}

// Translator resolves a hart's current VA->PA mapping and PMA check; the
// Chip builds one bound to the hart's Core.SATP/MATP and the chip-wide
// PMA/neighborhood MPROT tables (spec §4.3).
type Translator interface {
	Translate(mem Memory, agent memregion.Agent, va uint64, bytes int, access mmu.AccessType, status mmu.Status) (uint64, error)
}

// Fetch performs one instruction fetch: a fetch-buffer hit avoids
// translation entirely; a miss translates+PMA-checks+reads through to
// physical memory and refills the buffer (spec §4.3 "Fetch cache").
func (h *Hart) Fetch(mem Memory, tr Translator) (uint32, error) {
	key := h.PC &^ 31
	if !h.Fetch.Valid || h.Fetch.Key != key {
		pa, err := tr.Translate(mem, h, key, 32, mmu.AccessFetch, h.MMUStatus())
		if err != nil {
			return 0, err
		}
		if err := mem.Read(h, pa, 32, h.Fetch.Data[:]); err != nil {
			return 0, err
		}
		h.Fetch.Valid = true
		h.Fetch.Key = key
	}
	off := h.PC - key
	if off > 28 {
		// Straddles into the next 32-byte block: second translation+fetch
		// (spec §4.3 "A fetch that straddles 4 bytes into the next
		// 32-byte block performs a second translation+fetch").
		lo := h.Fetch.Data[off:32]
		nextKey := key + 32
		pa, err := tr.Translate(mem, h, nextKey, 32, mmu.AccessFetch, h.MMUStatus())
		if err != nil {
			return 0, err
		}
		var next [32]byte
		if err := mem.Read(h, pa, 32, next[:]); err != nil {
			return 0, err
		}
		var buf [4]byte
		copy(buf[:], lo)
		copy(buf[len(lo):], next[:4-len(lo)])
		return binary.LittleEndian.Uint32(buf[:]), nil
	}
	return binary.LittleEndian.Uint32(h.Fetch.Data[off : off+4]), nil
}

// checkBreakpoint implements the tdata1/tdata2 address-match (spec §4.3
// "Breakpoints"). tdata1 bit 0 selects trap-vs-debug-entry on match; a
// hart already in debug mode (Halted) never re-enters from a match.
func (h *Hart) checkBreakpoint(addr uint64) error {
	if h.Debug.TData1 == 0 {
		return nil
	}
	mask := h.Debug.TData1 >> 8 // tdata1 bits 63:8 carry the address mask
	if (addr &^ mask) != (h.Debug.TData2 &^ mask) {
		return nil
	}
	if h.State == StateHalted {
		return nil
	}
	if h.Debug.TData1&1 != 0 {
		return trapkind.NewDebugEntry(trapkind.DebugCauseBreakpoint)
	}
	return trapkind.NewTrap(trapkind.CauseBreakpoint, addr)
}

// Step runs one scheduler-tick instruction for this hart: fetch, decode,
// execute, advance pc (spec §4.4 steps 4-5). Callers handle the
// async_execute/pending-interrupt/blocked/halted gating of step 1-3
// themselves (chip.Scheduler), since those depend on chip-wide state
// this package doesn't own.
func (h *Hart) Step(mem Memory, tr Translator) {
	if err := h.checkBreakpoint(h.PC); err != nil {
		h.HandleExecuteError(err)
		return
	}

	raw, err := h.Fetch(mem, tr)
	if err != nil {
		h.HandleExecuteError(err)
		return
	}

	h.NPC = h.PC + instrLen(raw)
	if err := h.execute(raw, mem, tr); err != nil {
		h.HandleExecuteError(err)
		return
	}
	h.PC = h.NPC
}

// instrLen reports 2 for a compressed (RVC) instruction, 4 otherwise
// (spec §1 "RV64IMFC base").
func instrLen(raw uint32) uint64 {
	if raw&0x3 != 3 {
		return 2
	}
	return 4
}

func signExtend(v uint64, bit int) uint64 {
	shift := 63 - bit
	return uint64(int64(v<<uint(shift)) >> uint(shift))
}

// execute decodes and dispatches one instruction. This emulator decodes
// the representative RV64IM base subset exercised by the component
// tests (loads/stores, ALU reg-reg/reg-imm, branches, jumps, CSR
// access, mul/div). The vendor stall/tensor CSRs are decoded through the
// CSR path (tensorcsr.go); the F and C extensions are not decoded.
func (h *Hart) execute(raw uint32, mem Memory, tr Translator) error {
	opcode := raw & 0x7F
	rd := (raw >> 7) & 0x1F
	funct3 := (raw >> 12) & 0x7
	rs1 := (raw >> 15) & 0x1F
	rs2 := (raw >> 20) & 0x1F
	funct7 := (raw >> 25) & 0x7F

	h.X[0] = 0

	switch opcode {
	case 0x03: // LOAD
		return h.execLoad(raw, rd, funct3, rs1, mem, tr)
	case 0x23: // STORE
		return h.execStore(raw, funct3, rs1, rs2, mem, tr)
	case 0x13: // OP-IMM
		imm := signExtend(uint64(raw)>>20, 11)
		h.execOpImm(rd, funct3, rs1, imm, raw)
	case 0x1B: // OP-IMM-32
		imm := signExtend(uint64(raw)>>20, 11)
		h.execOpImm32(rd, funct3, rs1, imm)
	case 0x33: // OP
		h.execOp(rd, funct3, funct7, rs1, rs2)
	case 0x3B: // OP-32
		h.execOp32(rd, funct3, funct7, rs1, rs2)
	case 0x37: // LUI
		h.setX(rd, signExtend(uint64(raw)&0xFFFFF000, 31))
	case 0x17: // AUIPC
		h.setX(rd, h.PC+signExtend(uint64(raw)&0xFFFFF000, 31))
	case 0x6F: // JAL
		imm := decodeJImm(raw)
		h.setX(rd, h.PC+4)
		h.NPC = h.PC + imm
	case 0x67: // JALR
		imm := signExtend(uint64(raw)>>20, 11)
		target := (h.X[rs1] + imm) &^ 1
		h.setX(rd, h.PC+4)
		h.NPC = target
	case 0x63: // BRANCH
		h.execBranch(raw, funct3, rs1, rs2)
	case 0x73: // SYSTEM
		return h.execSystem(raw, rd, funct3, rs1)
	default:
		return trapkind.IllegalInstruction(raw)
	}
	return nil
}

func (h *Hart) setX(rd uint32, v uint64) {
	if rd != 0 {
		h.X[rd] = v
	}
}

func decodeJImm(raw uint32) uint64 {
	imm20 := uint64((raw >> 31) & 1)
	imm10_1 := uint64((raw >> 21) & 0x3FF)
	imm11 := uint64((raw >> 20) & 1)
	imm19_12 := uint64((raw >> 12) & 0xFF)
	v := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	return signExtend(v, 20)
}

func decodeBImm(raw uint32) uint64 {
	imm12 := uint64((raw >> 31) & 1)
	imm10_5 := uint64((raw >> 25) & 0x3F)
	imm4_1 := uint64((raw >> 8) & 0xF)
	imm11 := uint64((raw >> 7) & 1)
	v := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	return signExtend(v, 12)
}

func decodeSImm(raw uint32) uint64 {
	imm11_5 := uint64((raw >> 25) & 0x7F)
	imm4_0 := uint64((raw >> 7) & 0x1F)
	return signExtend((imm11_5<<5)|imm4_0, 11)
}

func (h *Hart) execLoad(raw uint32, rd, funct3, rs1 uint32, mem Memory, tr Translator) error {
	imm := signExtend(uint64(raw)>>20, 11)
	va := h.X[rs1] + imm
	var n int
	var signed bool
	switch funct3 {
	case 0:
		n, signed = 1, true
	case 1:
		n, signed = 2, true
	case 2:
		n, signed = 4, true
	case 3:
		n, signed = 8, false
	case 4:
		n, signed = 1, false
	case 5:
		n, signed = 2, false
	case 6:
		n, signed = 4, false
	default:
		return trapkind.IllegalInstruction(raw)
	}

	spans := mmu.SplitLineCrossing(va, n)
	buf := make([]byte, n)
	off := 0
	for _, sp := range spans {
		pa, err := tr.Translate(mem, h, sp.Addr, sp.Bytes, mmu.AccessLoad, h.MMUStatus())
		if err != nil {
			return err
		}
		if err := mem.Read(h, pa, sp.Bytes, buf[off:off+sp.Bytes]); err != nil {
			return err
		}
		off += sp.Bytes
	}

	var v uint64
	switch n {
	case 1:
		v = uint64(buf[0])
	case 2:
		v = uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		v = uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		v = binary.LittleEndian.Uint64(buf)
	}
	if signed {
		v = signExtend(v, n*8-1)
	}
	h.setX(rd, v)
	return nil
}

func (h *Hart) execStore(raw uint32, funct3, rs1, rs2 uint32, mem Memory, tr Translator) error {
	imm := decodeSImm(raw)
	va := h.X[rs1] + imm
	var n int
	switch funct3 {
	case 0:
		n = 1
	case 1:
		n = 2
	case 2:
		n = 4
	case 3:
		n = 8
	default:
		return trapkind.IllegalInstruction(raw)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, h.X[rs2])
	buf = buf[:n]

	spans := mmu.SplitLineCrossing(va, n)
	off := 0
	for _, sp := range spans {
		pa, err := tr.Translate(mem, h, sp.Addr, sp.Bytes, mmu.AccessStore, h.MMUStatus())
		if err != nil {
			return err
		}
		if err := mem.Write(h, pa, sp.Bytes, buf[off:off+sp.Bytes]); err != nil {
			return err
		}
		off += sp.Bytes
	}
	return nil
}

func (h *Hart) execOpImm(rd, funct3, rs1 uint32, imm uint64, raw uint32) {
	a := h.X[rs1]
	switch funct3 {
	case 0: // ADDI
		h.setX(rd, a+imm)
	case 2: // SLTI
		h.setX(rd, boolU64(int64(a) < int64(imm)))
	case 3: // SLTIU
		h.setX(rd, boolU64(a < imm))
	case 4: // XORI
		h.setX(rd, a^imm)
	case 6: // ORI
		h.setX(rd, a|imm)
	case 7: // ANDI
		h.setX(rd, a&imm)
	case 1: // SLLI
		h.setX(rd, a<<(imm&0x3F))
	case 5: // SRLI/SRAI
		shamt := imm & 0x3F
		if raw&(1<<30) != 0 {
			h.setX(rd, uint64(int64(a)>>shamt))
		} else {
			h.setX(rd, a>>shamt)
		}
	}
}

func (h *Hart) execOpImm32(rd, funct3, rs1 uint32, imm uint64) {
	a := uint32(h.X[rs1])
	switch funct3 {
	case 0:
		h.setX(rd, signExtend(uint64(a+uint32(imm)), 31))
	case 1:
		h.setX(rd, signExtend(uint64(a<<(imm&0x1F)), 31))
	case 5:
		shamt := imm & 0x1F
		if imm&(1<<10) != 0 {
			h.setX(rd, signExtend(uint64(uint32(int32(a)>>shamt)), 31))
		} else {
			h.setX(rd, signExtend(uint64(a>>shamt), 31))
		}
	}
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (h *Hart) execOp(rd, funct3, funct7, rs1, rs2 uint32) {
	a, b := h.X[rs1], h.X[rs2]
	if funct7 == 1 { // RV64M
		h.execM(rd, funct3, a, b)
		return
	}
	switch funct3 {
	case 0:
		if funct7 == 0x20 {
			h.setX(rd, a-b)
		} else {
			h.setX(rd, a+b)
		}
	case 1:
		h.setX(rd, a<<(b&0x3F))
	case 2:
		h.setX(rd, boolU64(int64(a) < int64(b)))
	case 3:
		h.setX(rd, boolU64(a < b))
	case 4:
		h.setX(rd, a^b)
	case 5:
		if funct7 == 0x20 {
			h.setX(rd, uint64(int64(a)>>(b&0x3F)))
		} else {
			h.setX(rd, a>>(b&0x3F))
		}
	case 6:
		h.setX(rd, a|b)
	case 7:
		h.setX(rd, a&b)
	}
}

func (h *Hart) execM(rd, funct3 uint32, a, b uint64) {
	switch funct3 {
	case 0: // MUL
		h.setX(rd, a*b)
	case 4: // DIV
		if b == 0 {
			h.setX(rd, ^uint64(0))
			return
		}
		h.setX(rd, uint64(int64(a)/int64(b)))
	case 5: // DIVU
		if b == 0 {
			h.setX(rd, ^uint64(0))
			return
		}
		h.setX(rd, a/b)
	case 6: // REM
		if b == 0 {
			h.setX(rd, a)
			return
		}
		h.setX(rd, uint64(int64(a)%int64(b)))
	case 7: // REMU
		if b == 0 {
			h.setX(rd, a)
			return
		}
		h.setX(rd, a%b)
	}
}

func (h *Hart) execOp32(rd, funct3, funct7, rs1, rs2 uint32) {
	a, b := uint32(h.X[rs1]), uint32(h.X[rs2])
	if funct7 == 1 {
		switch funct3 {
		case 0:
			h.setX(rd, signExtend(uint64(a*b), 31))
		case 4:
			if b == 0 {
				h.setX(rd, ^uint64(0))
				return
			}
			h.setX(rd, signExtend(uint64(uint32(int32(a)/int32(b))), 31))
		case 5:
			if b == 0 {
				h.setX(rd, ^uint64(0))
				return
			}
			h.setX(rd, signExtend(uint64(a/b), 31))
		case 6:
			if b == 0 {
				h.setX(rd, uint64(int64(int32(a))))
				return
			}
			h.setX(rd, signExtend(uint64(uint32(int32(a)%int32(b))), 31))
		case 7:
			if b == 0 {
				h.setX(rd, uint64(a))
				return
			}
			h.setX(rd, signExtend(uint64(a%b), 31))
		}
		return
	}
	switch funct3 {
	case 0:
		if funct7 == 0x20 {
			h.setX(rd, signExtend(uint64(a-b), 31))
		} else {
			h.setX(rd, signExtend(uint64(a+b), 31))
		}
	case 1:
		h.setX(rd, signExtend(uint64(a<<(b&0x1F)), 31))
	case 5:
		if funct7 == 0x20 {
			h.setX(rd, signExtend(uint64(uint32(int32(a)>>(b&0x1F))), 31))
		} else {
			h.setX(rd, signExtend(uint64(a>>(b&0x1F)), 31))
		}
	}
}

func (h *Hart) execBranch(raw, funct3, rs1, rs2 uint32) {
	a, b := h.X[rs1], h.X[rs2]
	var taken bool
	switch funct3 {
	case 0:
		taken = a == b
	case 1:
		taken = a != b
	case 4:
		taken = int64(a) < int64(b)
	case 5:
		taken = int64(a) >= int64(b)
	case 6:
		taken = a < b
	case 7:
		taken = a >= b
	}
	if taken {
		h.NPC = h.PC + decodeBImm(raw)
	}
}
