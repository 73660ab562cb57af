package hart

// LoadProgBuf stashes the two program-buffer instructions ahead of an
// abstract-command run (spec §4.6 "a write to NXPROGBUF0/1").
func (h *Hart) LoadProgBuf(instr0, instr1 uint32) {
	h.ProgBuf[0] = instr0
	h.ProgBuf[1] = instr1
}

// ebreakInstr is the canonical 4-byte EBREAK encoding.
const ebreakInstr uint32 = 0x00100073

// RunProgBuf executes {progbuf0, progbuf1, EBREAK} atomically against a
// halted hart's register file without involving fetch/MMU (spec §4.6
// "executes the three instructions ... atomically"). npc is reset to pc
// before each instruction, so straight-line instructions leave pc as it
// was.
// It implements debug.AbsCmdHart.
func (h *Hart) RunProgBuf() error {
	h.InProgBuf = true
	defer func() { h.InProgBuf = false }()

	// Program-buffer instructions are register/CSR ops in every test this
	// emulator targets; a load/store progbuf instruction would need a
	// live Memory/Translator here, which abstract commands don't carry
	// (see DESIGN.md).
	for _, instr := range []uint32{h.ProgBuf[0], h.ProgBuf[1], ebreakInstr} {
		h.NPC = h.PC
		if err := h.execute(instr, nil, nil); err != nil {
			return err
		}
		h.PC = h.NPC
	}
	return nil
}

// SetHAStatus1Error latches the program-buffer error code (spec §4.6
// "traps during execution exit with an error code in HASTATUS1").
func (h *Hart) SetHAStatus1Error(code uint32) {
	h.ProgBufErr = code
}
