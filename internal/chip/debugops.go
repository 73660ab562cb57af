package chip

import (
	"github.com/sarchlab/shiresim/internal/debug"
	"github.com/sarchlab/shiresim/internal/hart"
	"github.com/sarchlab/shiresim/internal/trapkind"
)

var _ debug.HartOps = (*Chip)(nil)

// WarmResetHart implements debug.HartOps: puts h back to its reset
// architectural state, leaving it Halted with HaveReset set (spec
// §4.6).
func (c *Chip) WarmResetHart(h uint32) {
	ht := c.hartByID(hart.ID(h))
	if ht == nil {
		return
	}
	fresh := hart.New(ht.ID, ht.Core)
	fresh.PC, fresh.NPC = c.ResetPC, c.ResetPC
	*ht = *fresh
	ht.State = hart.StateHalted
	ht.HaveReset = true
}

// EndWarmResetHart implements debug.HartOps: releases a halted,
// warm-reset hart back to Running once hartreset de-asserts, honouring
// a latched resethaltreq (spec §4.6 "hartreset deasserting releases the
// hart unless resethaltreq is set").
func (c *Chip) EndWarmResetHart(h uint32) {
	ht := c.hartByID(hart.ID(h))
	if ht == nil || !ht.HaveReset {
		return
	}
	if c.Debug.ResetHalt[h] {
		return
	}
	ht.State = hart.StateRunning
}

// ResumeHart implements debug.HartOps.
func (c *Chip) ResumeHart(h uint32) {
	ht := c.hartByID(hart.ID(h))
	if ht == nil || ht.State != hart.StateHalted {
		return
	}
	ht.State = hart.StateRunning
	ht.ResumeAck = true
	c.WakeToAwaking(ht.ID)
}

// ClearResumeAck implements debug.HartOps.
func (c *Chip) ClearResumeAck(h uint32) {
	if ht := c.hartByID(hart.ID(h)); ht != nil {
		ht.ResumeAck = false
	}
}

// HaltReq implements debug.HartOps.
func (c *Chip) HaltReq(h uint32) {
	ht := c.hartByID(hart.ID(h))
	if ht == nil || ht.State == hart.StateHalted {
		return
	}
	ht.EnterDebug(trapkind.DebugCauseHaltReq)
}

// AckHaveReset implements debug.HartOps; Dmctrl.Write owns the actual
// HaveResetBits bookkeeping, this only mirrors the per-hart flag.
func (c *Chip) AckHaveReset(h uint32) {
	if ht := c.hartByID(hart.ID(h)); ht != nil {
		ht.HaveReset = false
	}
}

// SetResetHalt implements debug.HartOps.
func (c *Chip) SetResetHalt(h uint32, set bool) {
	if c.Debug.ResetHalt == nil {
		c.Debug.ResetHalt = map[uint32]bool{}
	}
	c.Debug.ResetHalt[h] = set
}

// WarmResetAllCompute implements debug.HartOps (spec §4.6 "ndmreset
// asserting warm-resets every hart except the I/O shire's").
func (c *Chip) WarmResetAllCompute() {
	for i, ht := range c.Harts {
		if c.shires[c.shireOf(ht.ID)].isIO {
			continue
		}
		c.WarmResetHart(uint32(i))
	}
}

// FullDebugReset implements debug.HartOps (spec §4.6 "dmactive
// deasserting resets the entire debug module").
func (c *Chip) FullDebugReset() {
	for i := range c.Harts {
		c.ClearResumeAck(uint32(i))
	}
}
