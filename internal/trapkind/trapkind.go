// Package trapkind defines the control-flow error types that unwind from
// the MMU, PMA and instruction execute stages up to the scheduler.
//
// The original implementation throws C++ exceptions to unwind trap and
// instruction-restart paths (see spec design notes). Here each path is a
// distinct error type implementing the error interface; the hart's
// HandleExecuteError recovers the concrete kind with a type switch
// instead of a catch clause.
package trapkind

import "fmt"

// Cause identifies a RISC-V trap cause, matching mcause encodings for the
// subset of exceptions this emulator raises.
type Cause uint64

const (
	CauseInstructionAccessFault Cause = 1
	CauseIllegalInstruction     Cause = 2
	CauseBreakpoint             Cause = 3
	CauseLoadAccessFault        Cause = 5
	CauseStoreAccessFault       Cause = 7
	CauseInstructionPageFault   Cause = 12
	CauseLoadPageFault          Cause = 13
	CauseStorePageFault         Cause = 15
)

// Trap is a precise architectural exception: it carries the cause, the
// faulting value to be latched into mtval, and the encoded instruction
// when the cause is an illegal instruction.
type Trap struct {
	Cause Cause
	Tval  uint64
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap: cause=%d tval=0x%x", t.Cause, t.Tval)
}

// NewTrap builds a Trap for the given cause and faulting address/value.
func NewTrap(cause Cause, tval uint64) *Trap {
	return &Trap{Cause: cause, Tval: tval}
}

// IllegalInstruction builds the illegal-instruction trap, tval is the raw
// encoded instruction word per spec §7.
func IllegalInstruction(encoded uint32) *Trap {
	return &Trap{Cause: CauseIllegalInstruction, Tval: uint64(encoded)}
}

// Restart is the instruction_restart sentinel: not an error in the
// architectural sense, it tells the scheduler to leave npc==pc so the
// same instruction is fetched again next tick (used when a tensor CSR
// write finds its FSM busy, spec §4.5 step 2).
type Restart struct{}

func (Restart) Error() string { return "instruction restart" }

// ErrRestart is the single shared Restart value; compare with errors.Is.
var ErrRestart error = Restart{}

// MemoryError is an unmapped or illegal physical address (spec §7
// memory_error). Agents other than the issuing hart see it reported as
// "unknown ESR"/"unmapped address"; a hart sees it surface as a
// bus-error interrupt (spec §4.4 step 5).
type MemoryError struct {
	Addr uint64
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory error at 0x%x", e.Addr)
}

// NewMemoryError builds a MemoryError for the given physical address.
func NewMemoryError(addr uint64) *MemoryError {
	return &MemoryError{Addr: addr}
}

// SysregError is an unknown ESR field or address (spec §7 sysreg_error).
type SysregError struct {
	Offset uint64
}

func (e *SysregError) Error() string {
	return fmt.Sprintf("sysreg error at offset 0x%x", e.Offset)
}

// NewSysregError builds a SysregError for the given ESR field offset.
func NewSysregError(offset uint64) *SysregError {
	return &SysregError{Offset: offset}
}

// DebugEntry is the Debug_entry(cause) sentinel: execute() throws it to
// redirect the hart into debug mode rather than taking an architectural
// trap (spec §4.4 step 5, §4.6).
type DebugEntry struct {
	Cause DebugCause
}

// DebugCause identifies why a hart entered debug mode.
type DebugCause int

const (
	DebugCauseHaltReq DebugCause = iota + 1
	DebugCauseBreakpoint
	DebugCauseStep
	DebugCauseResetHalt
)

func (e *DebugEntry) Error() string {
	return fmt.Sprintf("debug entry: cause=%d", e.Cause)
}

// NewDebugEntry builds a DebugEntry for the given debug cause.
func NewDebugEntry(cause DebugCause) *DebugEntry {
	return &DebugEntry{Cause: cause}
}
