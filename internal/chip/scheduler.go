package chip

import (
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/memregion"
	"github.com/sarchlab/shiresim/internal/mmu"
)

// MPROTOf returns the neighborhood MPROT for an accessing agent; this
// emulator carries no dedicated ESR field for MPROT (spec.md never
// names one), so every neighborhood permits all accesses by default —
// see DESIGN.md for the scope note and how to extend it.
func (c *Chip) MPROTOf(agent memregion.Agent) mmu.MPROT {
	return mmu.MPROT{}
}

// stepHart runs spec §4.4 steps 1-5 for one hart: async_execute, the
// blocked/halted gate, the pending-interrupt wake check, then
// fetch/execute/advance_pc, with the four execute-error outcomes
// already folded into hart.Step via hart.HandleExecuteError.
func (c *Chip) stepHart(id hart.ID) (progressed bool) {
	h := c.hartByID(id)
	if h == nil {
		return false
	}

	c.asyncExecute(h)

	co := c.Cores[int(h.ID.CoreID())]
	if co.ExclMode != 0 && h.ExclBlockedBy(co.ExclMode) {
		h.State = hart.StateBlocked
		return false
	}
	if h.State == hart.StateBlocked {
		h.State = hart.StateRunning
	}

	if h.State == hart.StateHalted {
		return false // program-buffer execution is driven by the debug module directly
	}

	if h.State == hart.StateWaiting {
		if c.checkPendingInterrupt(h) {
			progressed = true
		} else {
			return false
		}
	}

	if h.State != hart.StateRunning {
		return progressed
	}

	h.Step(c.Memory, c.TranslatorFor(h))
	c.pmuInstRet[h.ID]++
	c.removeFromActiveIfWaiting(h)
	return true
}

// checkPendingInterrupt implements spec §4.4 step 3: wake a
// Waiting(interrupt) hart when (mip|ext_seip)&mie becomes nonzero.
func (c *Chip) checkPendingInterrupt(h *hart.Hart) bool {
	if c.PLIC != nil && c.PLIC.Pending(int(h.ID)) {
		h.ExtSEIP |= 1 << 9 // SEIP bit
	}
	if !h.IsWaiting(hart.WaitInterrupt) {
		return false
	}
	if !h.PendingInterrupt() {
		return false
	}
	return h.StopWaiting(hart.WaitInterrupt)
}

// asyncExecute advances the coprocessor FSMs a ready hart's core owns
// (spec §4.4 step 1). TLoad/TMul/TStore/TQuant/TReduce each drain the
// head of the tqueue once they reach their ready state; the concrete
// byte movement/arithmetic a completed op performs lives in
// tensorexec.go, invoked from here (spec §4.5).
func (c *Chip) asyncExecute(h *hart.Hart) {
	fsms := &h.Core.Tensor
	c.execTensorLoad(h, fsms)
	c.execTensorFMA(h, fsms)
	c.execTensorStore(h, fsms)
	c.execTensorQuant(h, fsms)
	c.execTensorReduce(h, fsms)
}

// removeFromActiveIfWaiting moves h out of active into sleeping the
// instant it becomes Waiting/Halted mid-tick (spec §4.4
// "start_waiting(kind) moves the hart from active to sleeping").
func (c *Chip) removeFromActiveIfWaiting(h *hart.Hart) {
	if h.State != hart.StateWaiting && h.State != hart.StateHalted {
		return
	}
	for i, id := range c.active {
		if id == h.ID {
			c.active = append(c.active[:i], c.active[i+1:]...)
			c.sleeping = append(c.sleeping, id)
			return
		}
	}
}

// WakeToAwaking implements the sleeping->awaking hand-off that
// StopWaiting signals; called by RaiseIPI/tensor-completion/debug-resume
// paths once they've confirmed the hart's wait mask drained.
func (c *Chip) WakeToAwaking(id hart.ID) {
	for i, sid := range c.sleeping {
		if sid == id {
			c.sleeping = append(c.sleeping[:i], c.sleeping[i+1:]...)
			c.awaking = append(c.awaking, id)
			return
		}
	}
}
