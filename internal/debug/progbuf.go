package debug

import "github.com/sarchlab/shiresim/internal/trapkind"

// AbsCmdHart is the chip-side contract the program buffer drives against
// one halted hart (spec §4.6 "Program buffer").
type AbsCmdHart interface {
	LoadProgBuf(instr0, instr1 uint32)
	RunProgBuf() error // executes {progbuf0, progbuf1, EBREAK} atomically
	SetHAStatus1Error(code uint32)
}

// ErrCodeException is the HASTATUS1 error code latched when a
// program-buffer instruction traps (spec §4.6 "traps during execution
// exit with an error code in HASTATUS1").
const ErrCodeException uint32 = 1

// RunAbstractCommand implements the NXPROGBUF0/1 + ABSCMD sequence: a
// halted hart executes progbuf0, progbuf1, EBREAK atomically; a trap
// during any of the three aborts the sequence and records the error
// (spec §4.6).
func RunAbstractCommand(h AbsCmdHart, progbuf0, progbuf1 uint32) {
	h.LoadProgBuf(progbuf0, progbuf1)
	if err := h.RunProgBuf(); err != nil {
		if _, ok := err.(*trapkind.Trap); ok {
			h.SetHAStatus1Error(ErrCodeException)
			return
		}
	}
}
